// Package scoring recomputes a contact's engagement score, health status,
// and lifecycle stage from its recent event history.
package scoring

import (
	"context"
	"fmt"
	"time"

	"selestial_backend/internal/contacts"
	"selestial_backend/internal/events"
	"selestial_backend/internal/timeline"
	"selestial_backend/platform/apperr"
	"selestial_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// significantDelta is the absolute score movement that warrants a
// score_changed event and a workflow evaluation.
const significantDelta = 5

// sweepConcurrency bounds parallel contact scoring during batch sweeps.
const sweepConcurrency = 8

// ContactStore is the contact state access the engine needs.
type ContactStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (contacts.Contact, error)
	UpdateEngagement(ctx context.Context, id uuid.UUID, score int, health contacts.HealthStatus, stage contacts.LifecycleStage) error
	ListLive(ctx context.Context, orgID *uuid.UUID) ([]contacts.Contact, error)
}

// EventStore is the event history access the engine needs.
type EventStore interface {
	ListByContactSince(ctx context.Context, contactID uuid.UUID, since time.Time) ([]timeline.Event, error)
	Append(ctx context.Context, e timeline.Event) (timeline.Event, error)
}

// Notifier requests a workflow evaluation for a contact whose state moved
// significantly. Implemented by the task-queue client; deduplicated there by
// (contact, trigger).
type Notifier interface {
	NotifyScoreChanged(ctx context.Context, orgID, contactID uuid.UUID) error
}

// Request selects what to score: one contact, one organization's live
// contacts, or every live contact system-wide when both ids are nil.
type Request struct {
	ContactID      *uuid.UUID
	OrganizationID *uuid.UUID
}

// Engine is the scoring engine.
type Engine struct {
	contactStore ContactStore
	eventStore   EventStore
	notifier     Notifier
	bus          events.Bus
	weights      Weights
	log          *logger.Logger
	now          func() time.Time
}

// NewEngine creates a scoring engine. A nil notifier disables workflow
// notification (used by tests and one-shot tools).
func NewEngine(contactStore ContactStore, eventStore EventStore, notifier Notifier, bus events.Bus, weights Weights, log *logger.Logger) *Engine {
	if weights == nil {
		weights = DefaultWeights()
	}
	return &Engine{
		contactStore: contactStore,
		eventStore:   eventStore,
		notifier:     notifier,
		bus:          bus,
		weights:      weights,
		log:          log,
		now:          time.Now,
	}
}

// Run scores whatever the request selects and returns the number of contacts
// whose state actually changed. An empty selection is not an error.
func (e *Engine) Run(ctx context.Context, req Request) (int, error) {
	if req.ContactID != nil {
		changed, err := e.ScoreContact(ctx, *req.ContactID)
		if err != nil {
			return 0, err
		}
		if changed {
			return 1, nil
		}
		return 0, nil
	}
	return e.sweep(ctx, req.OrganizationID)
}

// ScoreContact recomputes one contact and persists the outcome when it
// differs from the stored state. Returns whether anything changed.
func (e *Engine) ScoreContact(ctx context.Context, contactID uuid.UUID) (bool, error) {
	contact, err := e.contactStore.GetByID(ctx, contactID)
	if err != nil {
		if err == contacts.ErrNotFound {
			return false, apperr.NotFound("contact not found").WithOp("scoring.ScoreContact")
		}
		return false, fmt.Errorf("load contact: %w", err)
	}

	now := e.now()
	history, err := e.eventStore.ListByContactSince(ctx, contactID, now.Add(-EventWindow))
	if err != nil {
		return false, fmt.Errorf("load contact history: %w", err)
	}

	outcome := Compute(contact, history, e.weights, now)
	if !outcome.Changed(contact) {
		return false, nil
	}

	if err := e.contactStore.UpdateEngagement(ctx, contactID, outcome.Score, outcome.Health, outcome.Stage); err != nil {
		return false, fmt.Errorf("persist engagement: %w", err)
	}

	delta := outcome.Score - contact.Score
	if delta < 0 {
		delta = -delta
	}

	if delta >= significantDelta {
		e.appendScoreChangedEvent(ctx, contact, outcome)
	}

	healthChanged := outcome.Health != contact.HealthStatus
	if (delta >= significantDelta || healthChanged) && e.notifier != nil {
		if err := e.notifier.NotifyScoreChanged(ctx, contact.OrganizationID, contact.ID); err != nil {
			// Evaluation is best-effort here; the daily sweep will catch up.
			e.log.Error("workflow notification failed", "contact_id", contact.ID, "error", err)
		}
	}

	if e.bus != nil {
		e.bus.Publish(ctx, events.ContactScored{
			BaseEvent:      events.NewBaseEvent(),
			ContactID:      contact.ID,
			OrganizationID: contact.OrganizationID,
			PreviousScore:  contact.Score,
			NewScore:       outcome.Score,
			HealthStatus:   string(outcome.Health),
			LifecycleStage: string(outcome.Stage),
			HealthChanged:  healthChanged,
		})
	}

	return true, nil
}

func (e *Engine) appendScoreChangedEvent(ctx context.Context, contact contacts.Contact, outcome Outcome) {
	contactID := contact.ID
	_, err := e.eventStore.Append(ctx, timeline.Event{
		OrganizationID: contact.OrganizationID,
		ContactID:      &contactID,
		EventType:      timeline.TypeScoreChanged,
		SourceSystem:   timeline.SourceInternal,
		Description:    fmt.Sprintf("Score: %d → %d | Health: %s", contact.Score, outcome.Score, outcome.Health),
		Metadata: map[string]any{
			"previous_score":  contact.Score,
			"new_score":       outcome.Score,
			"health_status":   string(outcome.Health),
			"lifecycle_stage": string(outcome.Stage),
		},
	})
	if err != nil {
		// The state update already landed; a missing audit event is not
		// worth failing the scoring pass over.
		e.log.Error("append score_changed event failed", "contact_id", contact.ID, "error", err)
	}
}

// sweep scores all live contacts of one organization, or system-wide when
// orgID is nil. Contacts are processed independently: one failure is logged
// and never aborts the rest.
func (e *Engine) sweep(ctx context.Context, orgID *uuid.UUID) (int, error) {
	live, err := e.contactStore.ListLive(ctx, orgID)
	if err != nil {
		return 0, fmt.Errorf("list live contacts: %w", err)
	}
	if len(live) == 0 {
		return 0, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(sweepConcurrency)

	results := make([]bool, len(live))
	for i, contact := range live {
		g.Go(func() error {
			didChange, err := e.ScoreContact(gctx, contact.ID)
			if err != nil {
				e.log.Error("sweep: scoring contact failed", "contact_id", contact.ID, "error", err)
				return nil
			}
			results[i] = didChange
			return nil
		})
	}
	_ = g.Wait()

	changed := 0
	for _, didChange := range results {
		if didChange {
			changed++
		}
	}
	return changed, nil
}
