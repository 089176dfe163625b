package wizard

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/stevenxxzgs/omnilaze-universal/internal/models"
	"github.com/stevenxxzgs/omnilaze-universal/internal/validation"
)

// OrderSubmitter runs the two-phase order submission when the wizard
// reaches its terminal step.
type OrderSubmitter interface {
	Confirm(ctx context.Context, identity models.Identity, form models.OrderFormData) (models.OrderReceipt, error)
}

// Observer receives a state snapshot after every wizard mutation. The
// persistence bridge subscribes here.
type Observer func(models.ConversationState)

// editSnapshot preserves the exact pre-edit answer and its side-effect
// flags so a cancelled edit restores prior state verbatim.
type editSnapshot struct {
	answer           models.Answer
	addressConfirmed bool
}

// Machine is the wizard state machine. It exclusively owns all wizard
// state; external components read snapshots or request mutations through
// its operations.
type Machine struct {
	mu       sync.Mutex
	registry Registry

	current          int
	answers          map[int]models.Answer
	editing          *int
	snapshot         *editSnapshot
	addressConfirmed bool
	freeOrder        bool

	authenticated bool
	identity      models.Identity

	orderState  models.OrderState
	orderID     string
	orderNumber string

	submitter OrderSubmitter
	observer  Observer
	now       func() time.Time
}

// NewMachine creates a wizard state machine over the given registry.
func NewMachine(registry Registry, submitter OrderSubmitter) *Machine {
	slog.Debug("Creating wizard machine", "steps", len(registry))
	return &Machine{
		registry:   registry,
		current:    StepAddress,
		answers:    make(map[int]models.Answer),
		orderState: models.OrderStateNone,
		submitter:  submitter,
		now:        time.Now,
	}
}

// SetObserver registers the snapshot observer. Pass nil to unsubscribe.
func (m *Machine) SetObserver(obs Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observer = obs
}

// notifyLocked publishes a snapshot to the observer. Callers must hold mu.
func (m *Machine) notifyLocked() {
	if m.observer == nil {
		return
	}
	m.observer(m.snapshotLocked())
}

func (m *Machine) snapshotLocked() models.ConversationState {
	answers := make(map[int]models.Answer, len(m.answers))
	for k, v := range m.answers {
		answers[k] = v
	}
	return models.ConversationState{
		CurrentStep:      m.current,
		CompletedAnswers: answers,
		AddressConfirmed: m.addressConfirmed,
		FreeOrder:        m.freeOrder,
		Timestamp:        m.now().UnixMilli(),
	}
}

// Snapshot returns a copy of the current wizard state projection.
func (m *Machine) Snapshot() models.ConversationState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Authenticate marks the wizard as authenticated and records the phone
// number under its out-of-band answer key. No step input is accepted
// before this.
func (m *Machine) Authenticate(identity models.Identity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authenticated = true
	m.identity = identity
	m.answers[PhoneAnswerKey] = models.Answer{Kind: models.AnswerKindPhone, Value: identity.PhoneNumber}
	slog.Info("Wizard authenticated", "userID", identity.UserID, "isNewUser", identity.IsNewUser)
	m.notifyLocked()
}

// Restore adopts a previously persisted projection as the machine's state.
// The caller must have authenticated the session the projection belongs to.
func (m *Machine) Restore(state models.ConversationState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = state.CurrentStep
	m.answers = make(map[int]models.Answer, len(state.CompletedAnswers))
	for k, v := range state.CompletedAnswers {
		m.answers[k] = v
	}
	m.addressConfirmed = state.AddressConfirmed
	m.freeOrder = state.FreeOrder
	m.editing = nil
	m.snapshot = nil
	slog.Info("Wizard state restored", "currentStep", m.current, "answers", len(m.answers))
}

// Reset discards all wizard state. Invoked on logout.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = StepAddress
	m.answers = make(map[int]models.Answer)
	m.editing = nil
	m.snapshot = nil
	m.addressConfirmed = false
	m.freeOrder = false
	m.authenticated = false
	m.identity = models.Identity{}
	m.orderState = models.OrderStateNone
	m.orderID = ""
	m.orderNumber = ""
	slog.Info("Wizard state reset")
}

// CurrentStep returns the current step index, or StepCompleted.
func (m *Machine) CurrentStep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Completed reports whether the flow has collected every required answer.
func (m *Machine) Completed() bool {
	return m.CurrentStep() == StepCompleted
}

// OrderState returns the order lifecycle state with its identifiers.
func (m *Machine) OrderState() (models.OrderState, string, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orderState, m.orderID, m.orderNumber
}

// Answer returns the completed answer for a step, if any.
func (m *Machine) Answer(stepIdx int) (models.Answer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.answers[stepIdx]
	return a, ok
}

// AdvanceResult reports the outcome of an Advance call.
type AdvanceResult struct {
	// Valid is false when the answer failed validation; the wizard state
	// is unchanged and Shake signals the feedback cue.
	Valid        bool
	ErrorMessage string
	Shake        bool
	// CurrentStep is the step index after the call, or StepCompleted.
	CurrentStep int
	Completed   bool
	// Order carries the submission outcome when the terminal step was
	// acted on. A failed submission leaves the flow on the payment step
	// so the user can re-trigger confirmation.
	Order *models.OrderReceipt
}

// Advance validates the answer for the current step and records it. On
// success the next step is computed from the transition table; reaching
// the terminal step triggers the order submission sub-flow.
func (m *Machine) Advance(ctx context.Context, value string) (AdvanceResult, error) {
	m.mu.Lock()

	if !m.authenticated {
		m.mu.Unlock()
		return AdvanceResult{}, models.ErrNotAuthenticated
	}
	if m.editing != nil {
		m.mu.Unlock()
		return AdvanceResult{}, models.ErrEditInProgress
	}
	if m.current == StepCompleted {
		m.mu.Unlock()
		return AdvanceResult{}, models.ErrFlowComplete
	}

	step := m.registry.Step(m.current)
	if res := validation.Validate(step.Kind, value); !res.IsValid {
		slog.Debug("Wizard advance rejected", "step", m.current, "kind", step.Kind, "error", res.ErrorMessage)
		current := m.current
		m.mu.Unlock()
		return AdvanceResult{Valid: false, ErrorMessage: res.ErrorMessage, Shake: true, CurrentStep: current}, nil
	}

	if m.current == StepPayment {
		return m.confirmPaymentLocked(ctx, value)
	}

	m.answers[m.current] = models.Answer{Kind: step.Kind, Value: value}
	if m.current == StepAddress {
		m.addressConfirmed = true
	}
	next := m.registry.NextStep(m.current, m.answers)
	slog.Info("Wizard advanced", "from", m.current, "to", next, "kind", step.Kind)
	m.current = next
	m.notifyLocked()
	m.mu.Unlock()

	return AdvanceResult{Valid: true, CurrentStep: next, Completed: next == StepCompleted}, nil
}

// confirmPaymentLocked runs the order submission for the terminal step.
// Called with mu held; releases it around the network call so the machine
// stays readable while the request is in flight.
func (m *Machine) confirmPaymentLocked(ctx context.Context, value string) (AdvanceResult, error) {
	identity := m.identity
	form := m.formDataLocked()
	m.mu.Unlock()

	receipt, err := m.submitter.Confirm(ctx, identity, form)

	m.mu.Lock()
	m.applyReceiptLocked(receipt)
	if err != nil || receipt.State != models.OrderStateSubmitted {
		// Leave the flow on the payment step; the user retries by
		// re-triggering confirmation and the sub-flow reuses its draft.
		current := m.current
		m.mu.Unlock()
		slog.Warn("Wizard order submission incomplete", "state", receipt.State, "error", err)
		return AdvanceResult{Valid: true, ErrorMessage: receipt.Message, CurrentStep: current, Order: &receipt}, err
	}

	m.answers[StepPayment] = models.Answer{Kind: models.AnswerKindPayment, Value: value}
	m.current = StepCompleted
	m.notifyLocked()
	m.mu.Unlock()
	slog.Info("Wizard flow completed", "orderNumber", receipt.OrderNumber)
	return AdvanceResult{Valid: true, CurrentStep: StepCompleted, Completed: true, Order: &receipt}, nil
}

// applyReceiptLocked mirrors the submission sub-flow's progress while
// enforcing the monotonic none -> created -> submitted transition.
func (m *Machine) applyReceiptLocked(receipt models.OrderReceipt) {
	if receipt.State == "" || receipt.State == m.orderState {
		return
	}
	if !m.orderState.CanTransitionTo(receipt.State) &&
		!(m.orderState == models.OrderStateNone && receipt.State == models.OrderStateSubmitted) {
		slog.Warn("Wizard ignoring non-monotonic order state", "from", m.orderState, "to", receipt.State)
		return
	}
	if m.orderState == models.OrderStateNone && receipt.State == models.OrderStateSubmitted {
		// The sub-flow passed through created within a single confirm.
		m.orderState = models.OrderStateCreated
	}
	m.orderState = receipt.State
	if receipt.OrderID != "" {
		m.orderID = receipt.OrderID
	}
	if receipt.OrderNumber != "" {
		m.orderNumber = receipt.OrderNumber
	}
}

// formDataLocked assembles the order form from completed answers.
func (m *Machine) formDataLocked() models.OrderFormData {
	form := models.OrderFormData{
		Address:     m.answers[StepAddress].Value,
		Budget:      m.answers[StepBudget].Value,
		FoodType:    m.answers[StepFoodType].Value,
		IsFreeOrder: m.freeOrder,
		Allergies:   []string{},
		Preferences: []string{},
	}
	if a, ok := m.answers[StepAllergy]; ok && a.Value != "" {
		form.Allergies = []string{a.Value}
	}
	if p, ok := m.answers[StepPreference]; ok && p.Value != "" {
		form.Preferences = []string{p.Value}
	}
	return form
}

// BeginEdit enters edit mode for a completed step and returns its current
// answer so the input widget can be pre-populated. The phone answer
// captured during auth is never editable.
func (m *Machine) BeginEdit(stepIdx int) (models.Answer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.editing != nil {
		return models.Answer{}, models.ErrEditInProgress
	}
	if stepIdx < 0 || !m.registry.Contains(stepIdx) {
		return models.Answer{}, models.ErrStepNotEditable
	}
	answer, ok := m.answers[stepIdx]
	if !ok {
		return models.Answer{}, models.ErrStepNotCompleted
	}

	m.snapshot = &editSnapshot{answer: answer, addressConfirmed: m.addressConfirmed}
	idx := stepIdx
	m.editing = &idx
	if stepIdx == StepAddress {
		// The address must be re-confirmed while it is being edited.
		m.addressConfirmed = false
	}
	slog.Debug("Wizard edit started", "step", stepIdx)
	return answer, nil
}

// EditResult reports the outcome of a FinishEdit call.
type EditResult struct {
	Valid        bool
	ErrorMessage string
	Shake        bool
	// Relocated is true when editing a branch-determining step moved the
	// flow back to an earlier unanswered step.
	Relocated   bool
	CurrentStep int
}

// FinishEdit validates the edited value and atomically replaces the
// answer. Editing the branch-determining step re-evaluates all downstream
// answers: steps made irrelevant are deleted, branch-dependent answers are
// cleared, and the flow relocates to the first unanswered relevant step.
func (m *Machine) FinishEdit(value string) (EditResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.editing == nil {
		return EditResult{}, models.ErrNoEditInProgress
	}
	stepIdx := *m.editing
	step := m.registry.Step(stepIdx)

	if res := validation.Validate(step.Kind, value); !res.IsValid {
		// Edit mode stays active on validation failure.
		slog.Debug("Wizard edit rejected", "step", stepIdx, "error", res.ErrorMessage)
		return EditResult{Valid: false, ErrorMessage: res.ErrorMessage, Shake: true, CurrentStep: m.current}, nil
	}

	previous := m.answers[stepIdx]
	m.answers[stepIdx] = models.Answer{Kind: step.Kind, Value: value}
	if stepIdx == StepAddress {
		m.addressConfirmed = true
	}

	relocated := false
	if BranchDetermining(stepIdx) && previous.Value != value {
		m.rebranchLocked(value)
		m.current = m.registry.FirstUnanswered(m.answers)
		relocated = true
		slog.Info("Wizard branch changed", "step", stepIdx, "choice", value, "relocatedTo", m.current)
	}

	m.editing = nil
	m.snapshot = nil
	slog.Info("Wizard edit finished", "step", stepIdx, "relocated", relocated)
	m.notifyLocked()
	return EditResult{Valid: true, Relocated: relocated, CurrentStep: m.current}, nil
}

// rebranchLocked drops downstream answers invalidated by a new branch
// choice: steps irrelevant on the new branch and answers whose meaning
// depends on it (budget, payment confirmation).
func (m *Machine) rebranchLocked(foodType string) {
	for idx := StepFoodType + 1; idx < len(m.registry); idx++ {
		if _, answered := m.answers[idx]; !answered {
			continue
		}
		if !m.registry.Relevant(idx, foodType) || BranchDependent(idx) || idx == StepPayment {
			delete(m.answers, idx)
		}
	}
}

// CancelEdit restores the pre-edit answer verbatim, including side-effect
// flags, and leaves edit mode without recomputation. Always succeeds when
// an edit is active.
func (m *Machine) CancelEdit() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.editing == nil {
		return models.ErrNoEditInProgress
	}
	stepIdx := *m.editing
	m.answers[stepIdx] = m.snapshot.answer
	m.addressConfirmed = m.snapshot.addressConfirmed
	m.editing = nil
	m.snapshot = nil
	slog.Debug("Wizard edit cancelled", "step", stepIdx)
	return nil
}

// ClaimFreeOrder enters the free/promotional order mode: the beverage
// branch is forced, the food-type and budget answers are auto-filled, and
// the flow auto-advances past both without user confirmation.
func (m *Machine) ClaimFreeOrder() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.authenticated {
		return models.ErrNotAuthenticated
	}
	if m.current == StepCompleted {
		return models.ErrFlowComplete
	}
	m.freeOrder = true
	m.answers[StepFoodType] = models.Answer{Kind: models.AnswerKindFoodType, Value: models.FoodTypeBeverage}
	m.rebranchLocked(models.FoodTypeBeverage)
	m.answers[StepBudget] = models.Answer{Kind: models.AnswerKindBudget, Value: "0"}
	m.current = m.registry.FirstUnanswered(m.answers)
	slog.Info("Wizard free order claimed", "currentStep", m.current)
	m.notifyLocked()
	return nil
}
