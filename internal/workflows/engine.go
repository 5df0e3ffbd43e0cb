package workflows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"selestial_backend/internal/contacts"
	"selestial_backend/internal/events"
	"selestial_backend/platform/apperr"
	"selestial_backend/platform/logger"

	"github.com/google/uuid"
)

// ActionStatus is the outcome classification for one action invocation.
type ActionStatus string

const (
	ActionExecuted ActionStatus = "executed"
	ActionFailed   ActionStatus = "failed"
	ActionSkipped  ActionStatus = "skipped"
)

// ActionResult is what the executor reports back per action. Failures and
// skips are data, not errors: the engine's bookkeeping must not depend on
// action outcomes.
type ActionResult struct {
	Status ActionStatus
	Detail string
}

// ActionExecutor dispatches one configured action. Implemented by the
// actions package; the engine never calls providers directly.
type ActionExecutor interface {
	Execute(ctx context.Context, spec ActionSpec, contact contacts.Contact, workflow Workflow) ActionResult
}

// ContactStore is the contact read access the engine needs.
type ContactStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (contacts.Contact, error)
}

// Store is the workflow persistence the engine needs.
type Store interface {
	ListActive(ctx context.Context, orgID uuid.UUID) ([]Workflow, error)
	RecordFired(ctx context.Context, id uuid.UUID) error
}

// Engine evaluates an organization's active workflows against a contact's
// current state and fires the ones whose trigger matches.
type Engine struct {
	store        Store
	contactStore ContactStore
	executor     ActionExecutor
	bus          events.Bus
	log          *logger.Logger
	now          func() time.Time
}

// NewEngine creates a workflow engine.
func NewEngine(store Store, contactStore ContactStore, executor ActionExecutor, bus events.Bus, log *logger.Logger) *Engine {
	return &Engine{
		store:        store,
		contactStore: contactStore,
		executor:     executor,
		bus:          bus,
		log:          log,
		now:          time.Now,
	}
}

// Evaluate runs every active workflow of the organization against the
// contact and returns how many fired. No active workflows is a zero result,
// not an error; a missing contact is a structured not-found.
func (e *Engine) Evaluate(ctx context.Context, contactID, orgID uuid.UUID, triggerEventType string) (int, error) {
	contact, err := e.contactStore.GetByID(ctx, contactID)
	if err != nil {
		if errors.Is(err, contacts.ErrNotFound) {
			return 0, apperr.NotFound("contact not found").WithOp("workflows.Evaluate")
		}
		return 0, fmt.Errorf("load contact: %w", err)
	}

	active, err := e.store.ListActive(ctx, orgID)
	if err != nil {
		return 0, fmt.Errorf("list active workflows: %w", err)
	}
	if len(active) == 0 {
		return 0, nil
	}

	now := e.now()
	fired := 0

	for _, workflow := range active {
		if !Matches(workflow, contact, triggerEventType, now) {
			continue
		}

		ok := 0
		for _, spec := range workflow.Actions {
			result := e.executor.Execute(ctx, spec, contact, workflow)
			switch result.Status {
			case ActionExecuted:
				ok++
			case ActionFailed:
				e.log.ActionFailure(string(spec.Type), workflow.ID.String(), errors.New(result.Detail))
			case ActionSkipped:
				e.log.Info("action skipped", "action_type", spec.Type, "workflow_id", workflow.ID, "detail", result.Detail)
			}
		}

		// The rule fired whether or not any action succeeded; conflating
		// the two would corrupt the audit trail.
		if err := e.store.RecordFired(ctx, workflow.ID); err != nil {
			e.log.Error("record workflow fired failed", "workflow_id", workflow.ID, "error", err)
		}
		fired++

		if e.bus != nil {
			e.bus.Publish(ctx, events.WorkflowFired{
				BaseEvent:      events.NewBaseEvent(),
				WorkflowID:     workflow.ID,
				WorkflowName:   workflow.Name,
				OrganizationID: orgID,
				ContactID:      contact.ID,
				TriggerType:    string(workflow.TriggerType),
				ActionsTotal:   len(workflow.Actions),
				ActionsOK:      ok,
			})
		}
	}

	return fired, nil
}

// NotifyScoreChanged evaluates score-change workflows for the contact in the
// calling goroutine. It lets the engine stand in for the task queue when no
// queue is configured, so a score move still reaches the workflow layer.
func (e *Engine) NotifyScoreChanged(ctx context.Context, orgID, contactID uuid.UUID) error {
	_, err := e.Evaluate(ctx, contactID, orgID, "score_changed")
	return err
}

// Matches applies a workflow's trigger predicate and universal filters to a
// contact's current state. Pure so the matching rules are testable without
// any store.
func Matches(w Workflow, contact contacts.Contact, triggerEventType string, now time.Time) bool {
	if !matchesTrigger(w, contact, triggerEventType, now) {
		return false
	}

	if w.Conditions.MinLTVCents != nil && contact.LTVCents < *w.Conditions.MinLTVCents {
		return false
	}
	if len(w.Conditions.LifecycleStages) > 0 {
		allowed := false
		for _, stage := range w.Conditions.LifecycleStages {
			if contact.LifecycleStage == stage {
				allowed = true
				break
			}
		}
		if !allowed {
			return false
		}
	}
	return true
}

func matchesTrigger(w Workflow, contact contacts.Contact, triggerEventType string, now time.Time) bool {
	switch w.TriggerType {
	case TriggerEvent:
		return w.Conditions.EventType == triggerEventType
	case TriggerScoreDrop:
		return triggerEventType == "score_changed" && contact.Score <= w.Conditions.ScoreDropThreshold()
	case TriggerHealthChange:
		return contact.HealthStatus == w.Conditions.HealthStatus
	case TriggerLifecycleChange:
		return contact.LifecycleStage == w.Conditions.LifecycleStage
	case TriggerInactivity:
		if contact.LastActivityAt == nil {
			return false
		}
		daysSince := now.Sub(*contact.LastActivityAt).Hours() / 24
		return daysSince >= float64(w.Conditions.InactivityDays())
	default:
		return false
	}
}
