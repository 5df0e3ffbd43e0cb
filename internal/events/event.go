// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"selestial_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Ingest Domain Events
// =============================================================================

// EventIngested is published when a provider payload has been normalized and
// appended to a contact's activity log.
type EventIngested struct {
	BaseEvent
	EventID        uuid.UUID  `json:"eventId"`
	OrganizationID uuid.UUID  `json:"organizationId"`
	ContactID      *uuid.UUID `json:"contactId,omitempty"`
	EventType      string     `json:"eventType"`
	SourceSystem   string     `json:"sourceSystem"`
}

func (e EventIngested) EventName() string { return "ingest.event.ingested" }

// ContactCreated is published when ingestion creates a brand-new contact.
type ContactCreated struct {
	BaseEvent
	ContactID      uuid.UUID `json:"contactId"`
	OrganizationID uuid.UUID `json:"organizationId"`
	SourceSystem   string    `json:"sourceSystem"`
}

func (e ContactCreated) EventName() string { return "contacts.contact.created" }

// =============================================================================
// Scoring Domain Events
// =============================================================================

// ContactScored is published when the scoring engine persists a state change
// for a contact.
type ContactScored struct {
	BaseEvent
	ContactID      uuid.UUID `json:"contactId"`
	OrganizationID uuid.UUID `json:"organizationId"`
	PreviousScore  int       `json:"previousScore"`
	NewScore       int       `json:"newScore"`
	HealthStatus   string    `json:"healthStatus"`
	LifecycleStage string    `json:"lifecycleStage"`
	HealthChanged  bool      `json:"healthChanged"`
}

func (e ContactScored) EventName() string { return "scoring.contact.scored" }

// =============================================================================
// Workflow Domain Events
// =============================================================================

// WorkflowFired is published after a workflow's trigger matched and its
// actions were dispatched.
type WorkflowFired struct {
	BaseEvent
	WorkflowID     uuid.UUID `json:"workflowId"`
	WorkflowName   string    `json:"workflowName"`
	OrganizationID uuid.UUID `json:"organizationId"`
	ContactID      uuid.UUID `json:"contactId"`
	TriggerType    string    `json:"triggerType"`
	ActionsTotal   int       `json:"actionsTotal"`
	ActionsOK      int       `json:"actionsOk"`
}

func (e WorkflowFired) EventName() string { return "workflows.workflow.fired" }

// ActionExecuted is published for every action invocation, whether it
// succeeded, failed, or was skipped.
type ActionExecuted struct {
	BaseEvent
	OrganizationID uuid.UUID  `json:"organizationId"`
	ContactID      uuid.UUID  `json:"contactId"`
	WorkflowID     *uuid.UUID `json:"workflowId,omitempty"`
	ActionType     string     `json:"actionType"`
	Status         string     `json:"status"` // executed, failed, skipped
	Detail         string     `json:"detail,omitempty"`
}

func (e ActionExecuted) EventName() string { return "actions.action.executed" }
