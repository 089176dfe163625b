package wizard

import (
	"context"
	"errors"
	"testing"

	"github.com/stevenxxzgs/omnilaze-universal/internal/models"
)

// fakeSubmitter is a test double for the order submission sub-flow.
type fakeSubmitter struct {
	confirmFn func(ctx context.Context, identity models.Identity, form models.OrderFormData) (models.OrderReceipt, error)
	calls     []models.OrderFormData
}

func (f *fakeSubmitter) Confirm(ctx context.Context, identity models.Identity, form models.OrderFormData) (models.OrderReceipt, error) {
	f.calls = append(f.calls, form)
	if f.confirmFn != nil {
		return f.confirmFn(ctx, identity, form)
	}
	return models.OrderReceipt{
		State:       models.OrderStateSubmitted,
		OrderID:     "order-1",
		OrderNumber: "ORD20250101001",
		Message:     "order submitted",
	}, nil
}

func testIdentity() models.Identity {
	return models.Identity{UserID: "user-1", PhoneNumber: "13800138000"}
}

func authedMachine(t *testing.T, sub OrderSubmitter) *Machine {
	t.Helper()
	m := NewMachine(DefaultRegistry(), sub)
	m.Authenticate(testIdentity())
	return m
}

// advance pushes one valid answer and fails the test on any error.
func advance(t *testing.T, m *Machine, value string) AdvanceResult {
	t.Helper()
	res, err := m.Advance(context.Background(), value)
	if err != nil {
		t.Fatalf("unexpected advance error: %v", err)
	}
	if !res.Valid {
		t.Fatalf("unexpected validation failure: %q", res.ErrorMessage)
	}
	return res
}

func TestAdvanceRequiresAuthentication(t *testing.T) {
	m := NewMachine(DefaultRegistry(), &fakeSubmitter{})
	if _, err := m.Advance(context.Background(), "海淀区中关村大街1号"); err != models.ErrNotAuthenticated {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestAuthenticateRecordsPhoneOutOfBand(t *testing.T) {
	m := authedMachine(t, &fakeSubmitter{})
	answer, ok := m.Answer(PhoneAnswerKey)
	if !ok {
		t.Fatal("expected phone answer to be recorded")
	}
	if answer.Kind != models.AnswerKindPhone || answer.Value != "13800138000" {
		t.Errorf("unexpected phone answer: %+v", answer)
	}
	// The out-of-band phone answer is never editable.
	if _, err := m.BeginEdit(PhoneAnswerKey); err != models.ErrStepNotEditable {
		t.Errorf("expected ErrStepNotEditable, got %v", err)
	}
}

func TestInvalidAdvanceLeavesStateUnchanged(t *testing.T) {
	m := authedMachine(t, &fakeSubmitter{})
	res, err := m.Advance(context.Background(), "ab")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Valid {
		t.Fatal("expected validation failure")
	}
	if !res.Shake {
		t.Error("expected shake cue")
	}
	if m.CurrentStep() != StepAddress {
		t.Errorf("expected flow to stay on address step, got %d", m.CurrentStep())
	}
	if _, ok := m.Answer(StepAddress); ok {
		t.Error("invalid answer must not be recorded")
	}
}

func TestFoodBranchFullFlow(t *testing.T) {
	sub := &fakeSubmitter{}
	m := authedMachine(t, sub)

	advance(t, m, "海淀区中关村大街1号")
	if m.CurrentStep() != StepFoodType {
		t.Fatalf("expected food type step, got %d", m.CurrentStep())
	}
	advance(t, m, models.FoodTypeFood)
	if m.CurrentStep() != StepAllergy {
		t.Fatalf("expected allergy step, got %d", m.CurrentStep())
	}
	advance(t, m, "peanuts")
	advance(t, m, "spicy")
	if m.CurrentStep() != StepBudget {
		t.Fatalf("expected budget step, got %d", m.CurrentStep())
	}
	advance(t, m, "50")
	if m.CurrentStep() != StepPayment {
		t.Fatalf("expected payment step, got %d", m.CurrentStep())
	}

	res := advance(t, m, "confirmed")
	if !res.Completed || res.CurrentStep != StepCompleted {
		t.Fatalf("expected completed flow, got %+v", res)
	}
	if res.Order == nil || res.Order.State != models.OrderStateSubmitted {
		t.Fatalf("expected submitted order receipt, got %+v", res.Order)
	}

	if len(sub.calls) != 1 {
		t.Fatalf("expected exactly one confirm call, got %d", len(sub.calls))
	}
	form := sub.calls[0]
	if form.Address != "海淀区中关村大街1号" || form.Budget != "50" || form.FoodType != models.FoodTypeFood {
		t.Errorf("unexpected form data: %+v", form)
	}
	if len(form.Allergies) != 1 || form.Allergies[0] != "peanuts" {
		t.Errorf("unexpected allergies: %v", form.Allergies)
	}
	if len(form.Preferences) != 1 || form.Preferences[0] != "spicy" {
		t.Errorf("unexpected preferences: %v", form.Preferences)
	}

	state, orderID, orderNumber := m.OrderState()
	if state != models.OrderStateSubmitted || orderID != "order-1" || orderNumber != "ORD20250101001" {
		t.Errorf("unexpected order state: %v %s %s", state, orderID, orderNumber)
	}

	if _, err := m.Advance(context.Background(), "again"); err != models.ErrFlowComplete {
		t.Errorf("expected ErrFlowComplete, got %v", err)
	}
}

func TestBeverageBranchSkipsAllergyAndPreference(t *testing.T) {
	m := authedMachine(t, &fakeSubmitter{})
	advance(t, m, "海淀区中关村大街1号")
	advance(t, m, models.FoodTypeBeverage)
	if m.CurrentStep() != StepBudget {
		t.Fatalf("expected beverage branch to skip to budget, got %d", m.CurrentStep())
	}
}

func TestPaymentFailureStaysOnPaymentStep(t *testing.T) {
	calls := 0
	sub := &fakeSubmitter{}
	sub.confirmFn = func(ctx context.Context, identity models.Identity, form models.OrderFormData) (models.OrderReceipt, error) {
		calls++
		if calls == 1 {
			return models.OrderReceipt{State: models.OrderStateCreated, OrderID: "order-1", Message: "failed to submit order"}, errors.New("submit failed")
		}
		return models.OrderReceipt{State: models.OrderStateSubmitted, OrderID: "order-1", OrderNumber: "ORD1", Message: "order submitted"}, nil
	}
	m := authedMachine(t, sub)
	advance(t, m, "海淀区中关村大街1号")
	advance(t, m, models.FoodTypeBeverage)
	advance(t, m, "20")

	res, err := m.Advance(context.Background(), "confirmed")
	if err == nil {
		t.Fatal("expected submit error to propagate")
	}
	if res.Completed {
		t.Fatal("flow must not complete on failed submission")
	}
	if m.CurrentStep() != StepPayment {
		t.Fatalf("expected flow to stay on payment step, got %d", m.CurrentStep())
	}
	state, _, _ := m.OrderState()
	if state != models.OrderStateCreated {
		t.Errorf("expected order state created after partial commit, got %v", state)
	}

	// Re-triggering confirmation retries and completes.
	res = advance(t, m, "confirmed")
	if !res.Completed {
		t.Fatal("expected retry to complete the flow")
	}
	state, _, _ = m.OrderState()
	if state != models.OrderStateSubmitted {
		t.Errorf("expected submitted, got %v", state)
	}
}

func TestEditAndCancelRestoresStateVerbatim(t *testing.T) {
	m := authedMachine(t, &fakeSubmitter{})
	advance(t, m, "海淀区中关村大街1号")
	advance(t, m, models.FoodTypeFood)

	before := m.Snapshot()

	answer, err := m.BeginEdit(StepAddress)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer.Value != "海淀区中关村大街1号" {
		t.Errorf("expected pre-edit answer, got %q", answer.Value)
	}
	// A second edit while one is active is rejected.
	if _, err := m.BeginEdit(StepFoodType); err != models.ErrEditInProgress {
		t.Errorf("expected ErrEditInProgress, got %v", err)
	}
	// Step input is rejected while editing.
	if _, err := m.Advance(context.Background(), "anything"); err != models.ErrEditInProgress {
		t.Errorf("expected ErrEditInProgress on advance, got %v", err)
	}
	// Editing the address clears its confirmation until re-confirmed.
	if m.Snapshot().AddressConfirmed {
		t.Error("expected address confirmation cleared during edit")
	}

	if err := m.CancelEdit(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	after := m.Snapshot()
	if after.CurrentStep != before.CurrentStep || after.AddressConfirmed != before.AddressConfirmed {
		t.Errorf("cancel must restore state verbatim: before=%+v after=%+v", before, after)
	}
	if after.CompletedAnswers[StepAddress] != before.CompletedAnswers[StepAddress] {
		t.Error("cancel must restore the original answer")
	}
	if err := m.CancelEdit(); err != models.ErrNoEditInProgress {
		t.Errorf("expected ErrNoEditInProgress, got %v", err)
	}
}

func TestEditValidationFailureKeepsEditActive(t *testing.T) {
	m := authedMachine(t, &fakeSubmitter{})
	advance(t, m, "海淀区中关村大街1号")

	if _, err := m.BeginEdit(StepAddress); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := m.FinishEdit("ab")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Valid || !res.Shake {
		t.Fatalf("expected validation failure with shake, got %+v", res)
	}
	// Edit is still active, so a corrected value can be applied.
	res, err = m.FinishEdit("朝阳区建国路88号")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Valid {
		t.Fatalf("expected corrected edit to succeed, got %+v", res)
	}
	answer, _ := m.Answer(StepAddress)
	if answer.Value != "朝阳区建国路88号" {
		t.Errorf("expected updated answer, got %q", answer.Value)
	}
}

func TestEditBranchChangeInvalidatesDownstreamAnswers(t *testing.T) {
	m := authedMachine(t, &fakeSubmitter{})
	advance(t, m, "海淀区中关村大街1号")
	advance(t, m, models.FoodTypeFood)
	advance(t, m, "peanuts")
	advance(t, m, "spicy")
	advance(t, m, "50")
	if m.CurrentStep() != StepPayment {
		t.Fatalf("expected payment step, got %d", m.CurrentStep())
	}

	if _, err := m.BeginEdit(StepFoodType); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := m.FinishEdit(models.FoodTypeBeverage)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Relocated {
		t.Fatal("expected branch change to relocate the flow")
	}
	if res.CurrentStep != StepBudget {
		t.Errorf("expected relocation to budget, got %d", res.CurrentStep)
	}
	// Irrelevant and branch-dependent answers are gone; the address survives.
	for _, idx := range []int{StepAllergy, StepPreference, StepBudget} {
		if _, ok := m.Answer(idx); ok {
			t.Errorf("expected answer at step %d to be deleted", idx)
		}
	}
	if _, ok := m.Answer(StepAddress); !ok {
		t.Error("address answer must survive the branch change")
	}
}

func TestEditSameBranchValueDoesNotRelocate(t *testing.T) {
	m := authedMachine(t, &fakeSubmitter{})
	advance(t, m, "海淀区中关村大街1号")
	advance(t, m, models.FoodTypeFood)
	advance(t, m, "peanuts")

	if _, err := m.BeginEdit(StepFoodType); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	res, err := m.FinishEdit(models.FoodTypeFood)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Relocated {
		t.Error("re-confirming the same branch must not relocate")
	}
	if _, ok := m.Answer(StepAllergy); !ok {
		t.Error("downstream answers must survive an unchanged branch")
	}
}

func TestBeginEditRejectsUncompletedStep(t *testing.T) {
	m := authedMachine(t, &fakeSubmitter{})
	if _, err := m.BeginEdit(StepBudget); err != models.ErrStepNotCompleted {
		t.Errorf("expected ErrStepNotCompleted, got %v", err)
	}
	if _, err := m.BeginEdit(99); err != models.ErrStepNotEditable {
		t.Errorf("expected ErrStepNotEditable, got %v", err)
	}
}

func TestClaimFreeOrderForcesBeverageBranch(t *testing.T) {
	m := authedMachine(t, &fakeSubmitter{})
	advance(t, m, "海淀区中关村大街1号")

	if err := m.ClaimFreeOrder(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snap := m.Snapshot()
	if !snap.FreeOrder {
		t.Error("expected free order flag")
	}
	if a, _ := m.Answer(StepFoodType); a.Value != models.FoodTypeBeverage {
		t.Errorf("expected beverage food type, got %q", a.Value)
	}
	if a, _ := m.Answer(StepBudget); a.Value != "0" {
		t.Errorf("expected zero budget, got %q", a.Value)
	}
	if m.CurrentStep() != StepPayment {
		t.Errorf("expected flow to land on payment, got %d", m.CurrentStep())
	}

	sub := &fakeSubmitter{}
	m2 := authedMachine(t, sub)
	advance(t, m2, "海淀区中关村大街1号")
	if err := m2.ClaimFreeOrder(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	advance(t, m2, "confirmed")
	if len(sub.calls) != 1 {
		t.Fatalf("expected one confirm call, got %d", len(sub.calls))
	}
	if !sub.calls[0].IsFreeOrder || sub.calls[0].Budget != "0" {
		t.Errorf("unexpected free order form: %+v", sub.calls[0])
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	m := authedMachine(t, &fakeSubmitter{})
	advance(t, m, "海淀区中关村大街1号")
	advance(t, m, models.FoodTypeBeverage)
	snap := m.Snapshot()

	restored := NewMachine(DefaultRegistry(), &fakeSubmitter{})
	restored.Authenticate(testIdentity())
	restored.Restore(snap)

	if restored.CurrentStep() != StepBudget {
		t.Errorf("expected restored flow on budget step, got %d", restored.CurrentStep())
	}
	if a, ok := restored.Answer(StepAddress); !ok || a.Value != "海淀区中关村大街1号" {
		t.Errorf("expected restored address answer, got %+v", a)
	}
	if !restored.Snapshot().AddressConfirmed {
		t.Error("expected restored address confirmation")
	}
}

func TestObserverReceivesSnapshots(t *testing.T) {
	m := NewMachine(DefaultRegistry(), &fakeSubmitter{})
	var snapshots []models.ConversationState
	m.SetObserver(func(s models.ConversationState) {
		snapshots = append(snapshots, s)
	})
	m.Authenticate(testIdentity())
	advance(t, m, "海淀区中关村大街1号")

	if len(snapshots) < 2 {
		t.Fatalf("expected snapshots from authenticate and advance, got %d", len(snapshots))
	}
	last := snapshots[len(snapshots)-1]
	if last.CurrentStep != StepFoodType || !last.AddressConfirmed {
		t.Errorf("unexpected final snapshot: %+v", last)
	}
}

func TestResetClearsEverything(t *testing.T) {
	m := authedMachine(t, &fakeSubmitter{})
	advance(t, m, "海淀区中关村大街1号")
	m.Reset()

	if m.CurrentStep() != StepAddress {
		t.Errorf("expected reset to address step, got %d", m.CurrentStep())
	}
	if _, ok := m.Answer(StepAddress); ok {
		t.Error("expected answers cleared")
	}
	if _, err := m.Advance(context.Background(), "海淀区中关村大街1号"); err != models.ErrNotAuthenticated {
		t.Errorf("expected re-authentication requirement, got %v", err)
	}
}

func TestTransitionTable(t *testing.T) {
	r := DefaultRegistry()
	answers := map[int]models.Answer{}
	if got := r.FirstUnanswered(answers); got != StepAddress {
		t.Errorf("expected first unanswered to be address, got %d", got)
	}
	answers[StepFoodType] = models.Answer{Kind: models.AnswerKindFoodType, Value: models.FoodTypeBeverage}
	if r.Relevant(StepAllergy, models.FoodTypeBeverage) || r.Relevant(StepPreference, models.FoodTypeBeverage) {
		t.Error("allergy and preference must be irrelevant on the beverage branch")
	}
	answers[StepAddress] = models.Answer{Kind: models.AnswerKindAddress, Value: "海淀区中关村大街1号"}
	if got := r.NextStep(StepFoodType, answers); got != StepBudget {
		t.Errorf("expected next step budget on beverage branch, got %d", got)
	}
	answers[StepBudget] = models.Answer{Kind: models.AnswerKindBudget, Value: "20"}
	answers[StepPayment] = models.Answer{Kind: models.AnswerKindPayment, Value: "confirmed"}
	if got := r.NextStep(StepPayment, answers); got != StepCompleted {
		t.Errorf("expected completed sentinel, got %d", got)
	}
}
