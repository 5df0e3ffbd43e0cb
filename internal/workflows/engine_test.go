package workflows

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"selestial_backend/internal/contacts"
	"selestial_backend/platform/logger"
)

type fakeStore struct {
	workflows []Workflow
	fired     map[uuid.UUID]int
}

func newFakeStore(ws ...Workflow) *fakeStore {
	return &fakeStore{workflows: ws, fired: map[uuid.UUID]int{}}
}

func (f *fakeStore) ListActive(_ context.Context, orgID uuid.UUID) ([]Workflow, error) {
	var out []Workflow
	for _, w := range f.workflows {
		if w.OrganizationID == orgID && w.IsActive {
			out = append(out, w)
		}
	}
	return out, nil
}

func (f *fakeStore) RecordFired(_ context.Context, id uuid.UUID) error {
	f.fired[id]++
	return nil
}

type fakeContactStore struct {
	contact contacts.Contact
}

func (f *fakeContactStore) GetByID(_ context.Context, id uuid.UUID) (contacts.Contact, error) {
	if id != f.contact.ID {
		return contacts.Contact{}, contacts.ErrNotFound
	}
	return f.contact, nil
}

type fakeExecutor struct {
	calls  []ActionSpec
	status ActionStatus
}

func (f *fakeExecutor) Execute(_ context.Context, spec ActionSpec, _ contacts.Contact, _ Workflow) ActionResult {
	f.calls = append(f.calls, spec)
	status := f.status
	if status == "" {
		status = ActionExecuted
	}
	return ActionResult{Status: status}
}

func activeContact(orgID uuid.UUID, daysQuiet float64) contacts.Contact {
	last := time.Now().Add(-time.Duration(daysQuiet * 24 * float64(time.Hour)))
	return contacts.Contact{
		ID:             uuid.New(),
		OrganizationID: orgID,
		FirstName:      "Ada",
		LifecycleStage: contacts.StageActive,
		HealthStatus:   contacts.HealthWarning,
		Score:          50,
		LTVCents:       10_000,
		LastActivityAt: &last,
	}
}

func storedWorkflow(orgID uuid.UUID, trigger TriggerType, conditions Conditions) Workflow {
	return Workflow{
		ID:             uuid.New(),
		OrganizationID: orgID,
		Name:           "rule",
		TriggerType:    trigger,
		Conditions:     conditions,
		Actions: []ActionSpec{
			{Type: ActionAddTag, Tag: "flagged"},
			{Type: ActionCreateTask, Title: "Call {{first_name}}"},
		},
		IsActive: true,
	}
}

func TestEvaluateFiresMatchingWorkflow(t *testing.T) {
	orgID := uuid.New()
	contact := activeContact(orgID, 2)
	w := storedWorkflow(orgID, TriggerEvent, Conditions{EventType: "payment_received"})
	store := newFakeStore(w)
	executor := &fakeExecutor{}
	engine := NewEngine(store, &fakeContactStore{contact: contact}, executor, nil, logger.NewNop())

	fired, err := engine.Evaluate(context.Background(), contact.ID, orgID, "payment_received")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if fired != 1 {
		t.Fatalf("fired = %d, want 1", fired)
	}
	if store.fired[w.ID] != 1 {
		t.Fatalf("fire count = %d, want 1", store.fired[w.ID])
	}
	if len(executor.calls) != 2 {
		t.Fatalf("executed %d actions, want 2", len(executor.calls))
	}
	if executor.calls[0].Type != ActionAddTag || executor.calls[1].Type != ActionCreateTask {
		t.Fatalf("actions ran out of order: %v, %v", executor.calls[0].Type, executor.calls[1].Type)
	}
}

func TestEvaluateSkipsNonMatchingTrigger(t *testing.T) {
	orgID := uuid.New()
	contact := activeContact(orgID, 2)
	w := storedWorkflow(orgID, TriggerEvent, Conditions{EventType: "payment_received"})
	store := newFakeStore(w)
	executor := &fakeExecutor{}
	engine := NewEngine(store, &fakeContactStore{contact: contact}, executor, nil, logger.NewNop())

	fired, err := engine.Evaluate(context.Background(), contact.ID, orgID, "email_opened")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if fired != 0 || len(executor.calls) != 0 || store.fired[w.ID] != 0 {
		t.Fatalf("non-matching trigger fired: fired=%d calls=%d count=%d",
			fired, len(executor.calls), store.fired[w.ID])
	}
}

func TestEvaluateRecordsFiredDespiteActionFailures(t *testing.T) {
	orgID := uuid.New()
	contact := activeContact(orgID, 2)
	w := storedWorkflow(orgID, TriggerEvent, Conditions{EventType: "payment_received"})
	store := newFakeStore(w)
	executor := &fakeExecutor{status: ActionFailed}
	engine := NewEngine(store, &fakeContactStore{contact: contact}, executor, nil, logger.NewNop())

	fired, err := engine.Evaluate(context.Background(), contact.ID, orgID, "payment_received")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if fired != 1 {
		t.Fatalf("fired = %d, want 1 even with failing actions", fired)
	}
	if store.fired[w.ID] != 1 {
		t.Fatalf("fire count = %d, want 1 even with failing actions", store.fired[w.ID])
	}
	if len(executor.calls) != 2 {
		t.Fatalf("executed %d actions, want all 2 attempted", len(executor.calls))
	}
}

func TestMatchesTriggers(t *testing.T) {
	now := time.Now()
	orgID := uuid.New()
	threshold := 60

	cases := []struct {
		name      string
		workflow  Workflow
		contact   contacts.Contact
		eventType string
		want      bool
	}{
		{
			name:      "score_drop at threshold",
			workflow:  storedWorkflow(orgID, TriggerScoreDrop, Conditions{Threshold: &threshold}),
			contact:   activeContact(orgID, 2),
			eventType: "score_changed",
			want:      true,
		},
		{
			name:      "score_drop above threshold",
			workflow:  storedWorkflow(orgID, TriggerScoreDrop, Conditions{}),
			contact:   activeContact(orgID, 2), // score 50, default threshold 40
			eventType: "score_changed",
			want:      false,
		},
		{
			name:      "score_drop ignores other events",
			workflow:  storedWorkflow(orgID, TriggerScoreDrop, Conditions{Threshold: &threshold}),
			contact:   activeContact(orgID, 2),
			eventType: "payment_received",
			want:      false,
		},
		{
			name:     "health_change match",
			workflow: storedWorkflow(orgID, TriggerHealthChange, Conditions{HealthStatus: contacts.HealthWarning}),
			contact:  activeContact(orgID, 2),
			want:     true,
		},
		{
			name:     "health_change mismatch",
			workflow: storedWorkflow(orgID, TriggerHealthChange, Conditions{HealthStatus: contacts.HealthCritical}),
			contact:  activeContact(orgID, 2),
			want:     false,
		},
		{
			name:     "lifecycle_change match",
			workflow: storedWorkflow(orgID, TriggerLifecycleChange, Conditions{LifecycleStage: contacts.StageActive}),
			contact:  activeContact(orgID, 2),
			want:     true,
		},
		{
			name:     "inactivity past default",
			workflow: storedWorkflow(orgID, TriggerInactivity, Conditions{}),
			contact:  activeContact(orgID, 20),
			want:     true,
		},
		{
			name:     "inactivity recent activity",
			workflow: storedWorkflow(orgID, TriggerInactivity, Conditions{}),
			contact:  activeContact(orgID, 5),
			want:     false,
		},
	}

	for _, tc := range cases {
		if got := Matches(tc.workflow, tc.contact, tc.eventType, now); got != tc.want {
			t.Fatalf("%s: Matches = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestMatchesInactivityNeedsActivityTimestamp(t *testing.T) {
	orgID := uuid.New()
	w := storedWorkflow(orgID, TriggerInactivity, Conditions{})
	contact := activeContact(orgID, 100)
	contact.LastActivityAt = nil

	if Matches(w, contact, "", time.Now()) {
		t.Fatal("inactivity fired for a contact that was never active")
	}
}

func TestMatchesUniversalFilters(t *testing.T) {
	orgID := uuid.New()
	now := time.Now()
	contact := activeContact(orgID, 2) // ltv 10_000, stage active

	minLTV := int64(50_000)
	w := storedWorkflow(orgID, TriggerEvent, Conditions{
		EventType:   "payment_received",
		MinLTVCents: &minLTV,
	})
	if Matches(w, contact, "payment_received", now) {
		t.Fatal("min_ltv_cents filter did not block")
	}

	w = storedWorkflow(orgID, TriggerEvent, Conditions{
		EventType:       "payment_received",
		LifecycleStages: []contacts.LifecycleStage{contacts.StageChurned},
	})
	if Matches(w, contact, "payment_received", now) {
		t.Fatal("lifecycle_stages filter did not block")
	}

	w = storedWorkflow(orgID, TriggerEvent, Conditions{
		EventType:       "payment_received",
		LifecycleStages: []contacts.LifecycleStage{contacts.StageActive, contacts.StageAtRisk},
	})
	if !Matches(w, contact, "payment_received", now) {
		t.Fatal("matching stage filter blocked")
	}
}

func TestEvaluateIgnoresOtherTenants(t *testing.T) {
	orgID := uuid.New()
	contact := activeContact(orgID, 2)
	foreign := storedWorkflow(uuid.New(), TriggerEvent, Conditions{EventType: "payment_received"})
	store := newFakeStore(foreign)
	executor := &fakeExecutor{}
	engine := NewEngine(store, &fakeContactStore{contact: contact}, executor, nil, logger.NewNop())

	fired, err := engine.Evaluate(context.Background(), contact.ID, orgID, "payment_received")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if fired != 0 || len(executor.calls) != 0 {
		t.Fatalf("foreign tenant workflow fired: fired=%d calls=%d", fired, len(executor.calls))
	}
}

func TestNotifyScoreChangedEvaluatesInProcess(t *testing.T) {
	orgID := uuid.New()
	contact := activeContact(orgID, 2)
	contact.Score = 30
	w := storedWorkflow(orgID, TriggerScoreDrop, Conditions{})
	store := newFakeStore(w)
	executor := &fakeExecutor{}
	engine := NewEngine(store, &fakeContactStore{contact: contact}, executor, nil, logger.NewNop())

	if err := engine.NotifyScoreChanged(context.Background(), orgID, contact.ID); err != nil {
		t.Fatalf("NotifyScoreChanged: %v", err)
	}
	if store.fired[w.ID] != 1 {
		t.Fatalf("fire count = %d, want 1", store.fired[w.ID])
	}
	if len(executor.calls) != 2 {
		t.Fatalf("executed %d actions, want 2", len(executor.calls))
	}
}
