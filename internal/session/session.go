// Package session persists login sessions and conversation snapshots so a
// returning user resumes the ordering flow where they left off.
package session

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/stevenxxzgs/omnilaze-universal/internal/models"
	"github.com/stevenxxzgs/omnilaze-universal/internal/store"
)

// KV keys used by the bridge.
const (
	sessionKey      = "user_session"
	conversationKey = "conversation_state"
)

// Bridge snapshots wizard state into the store's KV table and restores it on
// startup. A conversation snapshot is only meaningful while its login session
// is still valid, so conversation reads and writes are gated on the session.
type Bridge struct {
	store store.Store
	now   func() time.Time
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithClock overrides the bridge's clock. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(b *Bridge) {
		b.now = now
	}
}

// NewBridge creates a persistence bridge backed by the given store.
func NewBridge(st store.Store, opts ...Option) *Bridge {
	b := &Bridge{store: st, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SaveSession persists the login session.
func (b *Bridge) SaveSession(rec models.SessionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		slog.Error("Bridge SaveSession marshal failed", "error", err)
		return err
	}
	if err := b.store.SetKV(sessionKey, string(data), models.SessionTTL); err != nil {
		slog.Error("Bridge SaveSession store write failed", "error", err)
		return err
	}
	slog.Debug("Session saved", "userID", rec.UserID, "isNewUser", rec.IsNewUser)
	return nil
}

// Session returns the persisted login session, or nil when none exists,
// the stored data is corrupt, or the session has expired. Corrupt and
// expired sessions are cleared so the next read starts clean.
func (b *Bridge) Session() (*models.SessionRecord, error) {
	data, err := b.store.GetKV(sessionKey)
	if err != nil {
		return nil, err
	}
	if data == "" {
		return nil, nil
	}
	var rec models.SessionRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		slog.Warn("Bridge found corrupt session data, clearing", "error", err)
		_ = b.store.DeleteKV(sessionKey)
		return nil, nil
	}
	loginTime := time.UnixMilli(rec.LoginTime)
	if b.now().Sub(loginTime) > models.SessionTTL {
		slog.Debug("Session expired, clearing", "userID", rec.UserID, "loginTime", loginTime)
		_ = b.store.DeleteKV(sessionKey)
		return nil, nil
	}
	return &rec, nil
}

// SaveConversation persists a conversation snapshot. Snapshots written
// without a valid login session are dropped.
func (b *Bridge) SaveConversation(state models.ConversationState) error {
	rec, err := b.Session()
	if err != nil {
		return err
	}
	if rec == nil {
		slog.Debug("No valid session, skipping conversation snapshot")
		return nil
	}
	data, err := json.Marshal(state)
	if err != nil {
		slog.Error("Bridge SaveConversation marshal failed", "error", err)
		return err
	}
	if err := b.store.SetKV(conversationKey, string(data), models.ConversationTTL); err != nil {
		slog.Error("Bridge SaveConversation store write failed", "error", err)
		return err
	}
	slog.Debug("Conversation snapshot saved", "currentStep", state.CurrentStep)
	return nil
}

// Conversation returns the persisted conversation snapshot, or nil when no
// valid session exists, no snapshot was saved, the data is corrupt, or the
// snapshot has aged out.
func (b *Bridge) Conversation() (*models.ConversationState, error) {
	rec, err := b.Session()
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	data, err := b.store.GetKV(conversationKey)
	if err != nil {
		return nil, err
	}
	if data == "" {
		return nil, nil
	}
	var state models.ConversationState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		slog.Warn("Bridge found corrupt conversation data, clearing", "error", err)
		_ = b.store.DeleteKV(conversationKey)
		return nil, nil
	}
	savedAt := time.UnixMilli(state.Timestamp)
	if b.now().Sub(savedAt) > models.ConversationTTL {
		slog.Debug("Conversation snapshot expired, clearing", "savedAt", savedAt)
		_ = b.store.DeleteKV(conversationKey)
		return nil, nil
	}
	return &state, nil
}

// SnapshotObserver returns a callback for wizard snapshot subscriptions.
// Every snapshot it receives is persisted as the conversation record;
// persistence failures are logged and swallowed so they never interrupt
// the flow.
func (b *Bridge) SnapshotObserver() func(models.ConversationState) {
	return func(state models.ConversationState) {
		if err := b.SaveConversation(state); err != nil {
			slog.Warn("Bridge snapshot persistence failed", "error", err)
		}
	}
}

// ClearConversation removes the conversation snapshot but keeps the session.
func (b *Bridge) ClearConversation() error {
	return b.store.DeleteKV(conversationKey)
}

// Clear removes both the session and the conversation snapshot. Called on
// logout.
func (b *Bridge) Clear() error {
	if err := b.store.DeleteKV(conversationKey); err != nil {
		return err
	}
	return b.store.DeleteKV(sessionKey)
}
