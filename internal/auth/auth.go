// Package auth implements the phone-verification and invite-code sub-flow
// that gates the ordering wizard.
//
// The flow is a small state machine: AwaitingPhone -> CodeSent ->
// (existing user) Authenticated, or (new user) AwaitingInviteCode ->
// Authenticated. Every backend failure keeps the flow in its current state
// and surfaces a message with a shake cue; there is no automatic retry.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/stevenxxzgs/omnilaze-universal/internal/client"
	"github.com/stevenxxzgs/omnilaze-universal/internal/models"
	"github.com/stevenxxzgs/omnilaze-universal/internal/validation"
)

// State identifies the auth sub-flow's position.
type State string

const (
	// StateAwaitingPhone is the initial state, before any code is sent.
	StateAwaitingPhone State = "awaiting_phone"
	// StateCodeSent means a verification code was issued for the phone.
	StateCodeSent State = "code_sent"
	// StateAwaitingInviteCode means the phone verified as a new user who
	// must redeem an invite code to finish signing up.
	StateAwaitingInviteCode State = "awaiting_invite_code"
	// StateAuthenticated is the terminal state carrying the identity.
	StateAuthenticated State = "authenticated"
)

// User-facing auth messages for locally detected problems.
const (
	MsgInvalidCode    = "please enter the 6-digit verification code"
	MsgInvalidInvite  = "please enter a valid invite code"
	MsgNetworkFailure = "network error, please try again"
)

// Result reports the outcome of an auth operation.
type Result struct {
	OK      bool
	Message string
	// Shake signals the feedback cue on failures.
	Shake bool
	// DevCode carries the verification code in development mode.
	DevCode string
	State   State
	// Identity is populated once the flow reaches StateAuthenticated.
	Identity models.Identity
}

// Flow is the auth sub-flow. It owns its own resend-cooldown timer and
// in-flight request guard.
type Flow struct {
	mu       sync.Mutex
	backend  client.Backend
	state    State
	phone    string
	identity models.Identity

	cooldownUntil time.Time
	inFlight      bool

	now func() time.Time
}

// Opts holds configuration options for the auth flow.
type Opts struct {
	Clock func() time.Time
}

// Option defines a configuration option for the auth flow.
type Option func(*Opts)

// WithClock injects a time source (used in tests).
func WithClock(clock func() time.Time) Option {
	return func(o *Opts) { o.Clock = clock }
}

// NewFlow creates an auth flow over the given backend.
func NewFlow(backend client.Backend, opts ...Option) *Flow {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	slog.Debug("Creating auth flow")
	return &Flow{backend: backend, state: StateAwaitingPhone, now: cfg.Clock}
}

// State returns the flow's current state.
func (f *Flow) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Identity returns the authenticated identity. Only meaningful once the
// flow has reached StateAuthenticated.
func (f *Flow) Identity() models.Identity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.identity
}

// CooldownRemaining returns how long until another code may be requested.
// Zero means resend is allowed.
func (f *Flow) CooldownRemaining() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	remaining := f.cooldownUntil.Sub(f.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RequestCode validates the phone number and asks the backend to send a
// verification code. A 180-second resend cooldown starts on success.
// Duplicate calls while a request is in flight are suppressed.
func (f *Flow) RequestCode(ctx context.Context, phoneNumber string) (Result, error) {
	f.mu.Lock()
	if f.inFlight {
		f.mu.Unlock()
		slog.Debug("Auth RequestCode suppressed, request in flight")
		return Result{State: f.state}, models.ErrRequestInFlight
	}
	if res := validation.Validate(models.AnswerKindPhone, phoneNumber); !res.IsValid {
		state := f.state
		f.mu.Unlock()
		return Result{Message: res.ErrorMessage, Shake: true, State: state}, nil
	}
	if f.now().Before(f.cooldownUntil) {
		state := f.state
		f.mu.Unlock()
		slog.Debug("Auth RequestCode blocked by cooldown")
		return Result{State: state}, models.ErrResendCooldown
	}
	f.inFlight = true
	f.mu.Unlock()

	resp, err := f.backend.SendVerificationCode(ctx, phoneNumber)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight = false

	if f.state == StateAuthenticated {
		// Stale response: the user authenticated while this was in flight.
		slog.Debug("Auth RequestCode response discarded, already authenticated")
		return Result{State: f.state}, nil
	}
	if err != nil {
		slog.Warn("Auth RequestCode failed", "error", err)
		return Result{Message: MsgNetworkFailure, Shake: true, State: f.state}, nil
	}
	if !resp.Success {
		slog.Warn("Auth RequestCode rejected", "message", resp.Message)
		return Result{Message: resp.Message, Shake: true, State: f.state}, nil
	}

	f.phone = phoneNumber
	f.state = StateCodeSent
	f.cooldownUntil = f.now().Add(models.ResendCooldown)
	slog.Info("Auth verification code requested", "state", f.state)
	return Result{OK: true, Message: resp.Message, DevCode: resp.DevCode, State: f.state}, nil
}

// VerifyCode checks the 6-digit code with the backend. Existing users go
// straight to Authenticated; new users move to AwaitingInviteCode.
func (f *Flow) VerifyCode(ctx context.Context, code string) (Result, error) {
	f.mu.Lock()
	if f.state != StateCodeSent {
		state := f.state
		f.mu.Unlock()
		return Result{State: state}, fmt.Errorf("cannot verify code in state %s", state)
	}
	if !isNumericCode(code, models.VerificationCodeLength) {
		state := f.state
		f.mu.Unlock()
		return Result{Message: MsgInvalidCode, Shake: true, State: state}, nil
	}
	phone := f.phone
	f.mu.Unlock()

	resp, err := f.backend.LoginWithPhone(ctx, phone, code)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateCodeSent {
		slog.Debug("Auth VerifyCode response discarded, state moved on", "state", f.state)
		return Result{State: f.state}, nil
	}
	if err != nil {
		slog.Warn("Auth VerifyCode failed", "error", err)
		return Result{Message: MsgNetworkFailure, Shake: true, State: f.state}, nil
	}
	if !resp.Success {
		slog.Warn("Auth VerifyCode rejected", "message", resp.Message)
		return Result{Message: resp.Message, Shake: true, State: f.state}, nil
	}

	if resp.IsNewUser {
		f.state = StateAwaitingInviteCode
		slog.Info("Auth phone verified for new user", "state", f.state)
		return Result{OK: true, Message: resp.Message, State: f.state}, nil
	}

	f.identity = models.Identity{UserID: resp.UserID, PhoneNumber: phone, IsNewUser: false}
	f.state = StateAuthenticated
	slog.Info("Auth completed for existing user", "userID", resp.UserID)
	return Result{OK: true, Message: resp.Message, State: f.state, Identity: f.identity}, nil
}

// RedeemInvite redeems an invite code for a new user, completing signup.
func (f *Flow) RedeemInvite(ctx context.Context, inviteCode string) (Result, error) {
	f.mu.Lock()
	if f.state != StateAwaitingInviteCode {
		state := f.state
		f.mu.Unlock()
		return Result{State: state}, fmt.Errorf("cannot redeem invite in state %s", state)
	}
	if len(inviteCode) < models.MinInviteCodeLength {
		state := f.state
		f.mu.Unlock()
		return Result{Message: MsgInvalidInvite, Shake: true, State: state}, nil
	}
	phone := f.phone
	f.mu.Unlock()

	resp, err := f.backend.VerifyInviteCode(ctx, phone, inviteCode)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateAwaitingInviteCode {
		slog.Debug("Auth RedeemInvite response discarded, state moved on", "state", f.state)
		return Result{State: f.state}, nil
	}
	if err != nil {
		slog.Warn("Auth RedeemInvite failed", "error", err)
		return Result{Message: MsgNetworkFailure, Shake: true, State: f.state}, nil
	}
	if !resp.Success {
		slog.Warn("Auth RedeemInvite rejected", "message", resp.Message)
		return Result{Message: resp.Message, Shake: true, State: f.state}, nil
	}

	f.identity = models.Identity{UserID: resp.UserID, PhoneNumber: phone, IsNewUser: true}
	f.state = StateAuthenticated
	slog.Info("Auth completed for new user", "userID", resp.UserID)
	return Result{OK: true, Message: resp.Message, State: f.state, Identity: f.identity}, nil
}

// Reset returns the flow to its initial state. Invoked on logout.
func (f *Flow) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = StateAwaitingPhone
	f.phone = ""
	f.identity = models.Identity{}
	f.cooldownUntil = time.Time{}
	slog.Info("Auth flow reset")
}

// isNumericCode reports whether s is exactly length digits.
func isNumericCode(s string, length int) bool {
	if len(s) != length {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
