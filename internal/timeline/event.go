// Package timeline provides the append-only event store. Every normalized
// fact about a contact — inbound provider activity, score changes, executed
// actions — lands here and is never mutated or deleted.
package timeline

import (
	"time"

	"github.com/google/uuid"
)

// SourceSystem identifies where an event originated.
type SourceSystem string

const (
	SourceStripe   SourceSystem = "stripe"
	SourceGHL      SourceSystem = "ghl"
	SourceTelnyx   SourceSystem = "telnyx"
	SourceInternal SourceSystem = "system"
	SourceManual   SourceSystem = "manual"
)

// Well-known normalized event types. The event_type column is an open enum:
// unrecognized provider types pass through unchanged.
const (
	TypePaymentReceived       = "payment_received"
	TypeSubscriptionCancelled = "subscription_cancelled"
	TypeRefundIssued          = "refund_issued"
	TypeContactCreated        = "contact_created"
	TypeContactUpdated        = "contact_updated"
	TypePipelineMoved         = "pipeline_moved"
	TypeFormSubmitted         = "form_submitted"
	TypeNoteAdded             = "note_added"
	TypeTaskCreated           = "task_created"
	TypeSMSReceived           = "sms_received"
	TypeSMSSent               = "sms_sent"
	TypeCallConnected         = "call_connected"
	TypeCallCompleted         = "call_completed"
	TypeScoreChanged          = "score_changed"
	TypeWorkflowAlert         = "workflow_alert"
	TypeActionExecuted        = "action_executed"
)

// Event is one immutable fact record in a contact's history.
type Event struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	ContactID      *uuid.UUID
	EventType      string
	SourceSystem   SourceSystem
	Description    string
	Metadata       map[string]any
	CreatedAt      time.Time
}
