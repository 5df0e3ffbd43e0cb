// Package actions executes workflow actions against outside providers.
// Credentials are resolved per organization at execution time; a provider
// precondition miss (no credential, no CRM id, no phone number) downgrades
// the action to a skip instead of a failure. Every invocation, whatever its
// outcome, leaves exactly one action_executed event on the contact's
// timeline.
package actions

import (
	"context"
	"fmt"
	"time"

	"selestial_backend/internal/contacts"
	"selestial_backend/internal/events"
	"selestial_backend/internal/organizations"
	"selestial_backend/internal/timeline"
	"selestial_backend/internal/workflows"
	"selestial_backend/platform/logger"

	"github.com/google/uuid"
)

// CredentialSource resolves an organization's provider credentials.
type CredentialSource interface {
	ResolveByID(ctx context.Context, orgID uuid.UUID) (organizations.Credentials, error)
}

// EventAppender records action outcomes on the contact timeline.
type EventAppender interface {
	Append(ctx context.Context, e timeline.Event) (timeline.Event, error)
}

// CRMClient is the subset of the CRM provider the executor uses.
type CRMClient interface {
	MovePipelineStage(ctx context.Context, creds organizations.Credentials, ghlContactID, contactName, pipelineID, stageID string) error
	AddTag(ctx context.Context, creds organizations.Credentials, ghlContactID, tag string) error
	CreateTask(ctx context.Context, creds organizations.Credentials, ghlContactID, title, description string, dueDate time.Time) error
}

// SMSClient is the subset of the telephony provider the executor uses.
type SMSClient interface {
	SendSMS(ctx context.Context, creds organizations.Credentials, toNumber, text string) error
}

// AlertSender emails internal alerts. Optional; a nil sender means alerts
// are recorded on the timeline only.
type AlertSender interface {
	SendAlert(ctx context.Context, toEmail, subject, body string) error
}

// Executor implements workflows.ActionExecutor.
type Executor struct {
	credentials CredentialSource
	eventStore  EventAppender
	crm         CRMClient
	sms         SMSClient
	mailer      AlertSender
	bus         events.Bus
	log         *logger.Logger
	now         func() time.Time
}

// NewExecutor creates an action executor. mailer may be nil.
func NewExecutor(credentials CredentialSource, eventStore EventAppender, crm CRMClient, sms SMSClient, mailer AlertSender, bus events.Bus, log *logger.Logger) *Executor {
	return &Executor{
		credentials: credentials,
		eventStore:  eventStore,
		crm:         crm,
		sms:         sms,
		mailer:      mailer,
		bus:         bus,
		log:         log,
		now:         time.Now,
	}
}

var _ workflows.ActionExecutor = (*Executor)(nil)

// Execute dispatches a single action and records its outcome. It never
// returns an error: the result carries the classification, and recording
// never blocks the workflow engine's bookkeeping.
func (x *Executor) Execute(ctx context.Context, spec workflows.ActionSpec, contact contacts.Contact, workflow workflows.Workflow) workflows.ActionResult {
	creds, err := x.credentials.ResolveByID(ctx, contact.OrganizationID)
	var result workflows.ActionResult
	if err != nil {
		result = workflows.ActionResult{Status: workflows.ActionFailed, Detail: fmt.Sprintf("resolve credentials: %v", err)}
	} else {
		result = x.dispatch(ctx, spec, contact, workflow, creds)
	}

	x.recordOutcome(ctx, spec, contact, workflow, result)
	return result
}

func (x *Executor) dispatch(ctx context.Context, spec workflows.ActionSpec, contact contacts.Contact, workflow workflows.Workflow, creds organizations.Credentials) workflows.ActionResult {
	switch spec.Type {
	case workflows.ActionMovePipelineStage:
		if miss := ghlPrecondition(creds, contact); miss != "" {
			return skipped(miss)
		}
		if err := x.crm.MovePipelineStage(ctx, creds, contact.GHLContactID, contact.FullName(), spec.PipelineID, spec.StageID); err != nil {
			return failed(err)
		}
		return executed(fmt.Sprintf("moved to stage %s", spec.StageID))

	case workflows.ActionAddTag:
		if miss := ghlPrecondition(creds, contact); miss != "" {
			return skipped(miss)
		}
		if err := x.crm.AddTag(ctx, creds, contact.GHLContactID, spec.Tag); err != nil {
			return failed(err)
		}
		return executed(fmt.Sprintf("tagged %q", spec.Tag))

	case workflows.ActionCreateTask:
		if miss := ghlPrecondition(creds, contact); miss != "" {
			return skipped(miss)
		}
		dueDays := spec.DueDays
		if dueDays == 0 {
			dueDays = 1
		}
		due := x.now().AddDate(0, 0, dueDays)
		title := Render(spec.Title, contact)
		description := Render(spec.Description, contact)
		if err := x.crm.CreateTask(ctx, creds, contact.GHLContactID, title, description, due); err != nil {
			return failed(err)
		}
		return executed(fmt.Sprintf("task %q due %s", title, due.Format("2006-01-02")))

	case workflows.ActionSendSMS:
		if !creds.HasTelnyx() {
			return skipped("organization has no telephony credentials")
		}
		if contact.Phone == "" {
			return skipped("contact has no phone number")
		}
		text := Render(spec.Message, contact)
		if err := x.sms.SendSMS(ctx, creds, contact.Phone, text); err != nil {
			return failed(err)
		}
		return executed("sms sent")

	case workflows.ActionInternalAlert:
		return x.internalAlert(ctx, spec, contact, workflow, creds)

	default:
		return skipped(fmt.Sprintf("unknown action type %q", spec.Type))
	}
}

// internalAlert writes an alert event on the contact's timeline and, when
// both an alert address and a mailer are configured, emails it too. Email
// delivery failure does not fail the action: the timeline write is the
// action's contract.
func (x *Executor) internalAlert(ctx context.Context, spec workflows.ActionSpec, contact contacts.Contact, workflow workflows.Workflow, creds organizations.Credentials) workflows.ActionResult {
	message := Render(spec.Message, contact)

	_, err := x.eventStore.Append(ctx, timeline.Event{
		OrganizationID: contact.OrganizationID,
		ContactID:      &contact.ID,
		EventType:      timeline.TypeWorkflowAlert,
		SourceSystem:   timeline.SourceInternal,
		Description:    message,
		Metadata: map[string]any{
			"workflow_id":   workflow.ID.String(),
			"workflow_name": workflow.Name,
		},
	})
	if err != nil {
		return failed(fmt.Errorf("append alert event: %w", err))
	}

	if x.mailer != nil && creds.AlertEmail != "" {
		subject := fmt.Sprintf("[%s] Alert for %s", workflow.Name, contact.FullName())
		if err := x.mailer.SendAlert(ctx, creds.AlertEmail, subject, message); err != nil {
			x.log.Error("alert email delivery failed",
				"workflow_id", workflow.ID,
				"contact_id", contact.ID,
				"error", err,
			)
		}
	}

	return executed("alert recorded")
}

// recordOutcome appends the action_executed event and publishes the domain
// event. Outcome recording is best-effort: a timeline write failure is
// logged, never surfaced, so the at-most-once execution already performed
// is not re-attempted.
func (x *Executor) recordOutcome(ctx context.Context, spec workflows.ActionSpec, contact contacts.Contact, workflow workflows.Workflow, result workflows.ActionResult) {
	_, err := x.eventStore.Append(ctx, timeline.Event{
		OrganizationID: contact.OrganizationID,
		ContactID:      &contact.ID,
		EventType:      timeline.TypeActionExecuted,
		SourceSystem:   timeline.SourceInternal,
		Description:    fmt.Sprintf("%s: %s", spec.Type, result.Status),
		Metadata: map[string]any{
			"action_type":   string(spec.Type),
			"status":        string(result.Status),
			"detail":        result.Detail,
			"workflow_id":   workflow.ID.String(),
			"workflow_name": workflow.Name,
		},
	})
	if err != nil {
		x.log.DatabaseError("append action outcome", err)
	}

	if x.bus != nil {
		workflowID := workflow.ID
		x.bus.Publish(ctx, events.ActionExecuted{
			BaseEvent:      events.NewBaseEvent(),
			OrganizationID: contact.OrganizationID,
			ContactID:      contact.ID,
			WorkflowID:     &workflowID,
			ActionType:     string(spec.Type),
			Status:         string(result.Status),
			Detail:         result.Detail,
		})
	}
}

func ghlPrecondition(creds organizations.Credentials, contact contacts.Contact) string {
	if !creds.HasGHL() {
		return "organization has no CRM credentials"
	}
	if contact.GHLContactID == "" {
		return "contact is not linked to the CRM"
	}
	return ""
}

func executed(detail string) workflows.ActionResult {
	return workflows.ActionResult{Status: workflows.ActionExecuted, Detail: detail}
}

func failed(err error) workflows.ActionResult {
	return workflows.ActionResult{Status: workflows.ActionFailed, Detail: err.Error()}
}

func skipped(reason string) workflows.ActionResult {
	return workflows.ActionResult{Status: workflows.ActionSkipped, Detail: reason}
}
