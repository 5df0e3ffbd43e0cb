// Package workflows provides per-organization automation rules: a stored
// trigger with typed conditions and an ordered action list, evaluated
// against a contact's state whenever that state moves.
package workflows

import (
	"time"

	"selestial_backend/internal/contacts"
	"selestial_backend/platform/apperr"

	"github.com/google/uuid"
)

// TriggerType selects which predicate a workflow's conditions parameterize.
type TriggerType string

const (
	TriggerEvent           TriggerType = "event"
	TriggerScoreDrop       TriggerType = "score_drop"
	TriggerHealthChange    TriggerType = "health_change"
	TriggerLifecycleChange TriggerType = "lifecycle_change"
	TriggerInactivity      TriggerType = "inactivity"
)

var knownTriggers = map[TriggerType]struct{}{
	TriggerEvent:           {},
	TriggerScoreDrop:       {},
	TriggerHealthChange:    {},
	TriggerLifecycleChange: {},
	TriggerInactivity:      {},
}

// IsKnownTrigger reports whether the trigger type is defined.
func IsKnownTrigger(t TriggerType) bool {
	_, ok := knownTriggers[t]
	return ok
}

const (
	// DefaultScoreDropThreshold applies when a score_drop workflow omits one.
	DefaultScoreDropThreshold = 40
	// DefaultInactivityDays applies when an inactivity workflow omits it.
	DefaultInactivityDays = 14
)

// Conditions parameterize a workflow's trigger. Only the fields for the
// workflow's trigger type are meaningful; Validate enforces that at creation
// time so the engine can evaluate without defensive probing. MinLTVCents and
// LifecycleStages are universal filters valid for every trigger type.
type Conditions struct {
	// TriggerEvent
	EventType string `json:"event_type,omitempty"`
	// TriggerScoreDrop
	Threshold *int `json:"threshold,omitempty"`
	// TriggerHealthChange
	HealthStatus contacts.HealthStatus `json:"health_status,omitempty"`
	// TriggerLifecycleChange
	LifecycleStage contacts.LifecycleStage `json:"lifecycle_stage,omitempty"`
	// TriggerInactivity
	Days *int `json:"days,omitempty"`

	// Universal filters
	MinLTVCents     *int64                    `json:"min_ltv_cents,omitempty"`
	LifecycleStages []contacts.LifecycleStage `json:"lifecycle_stages,omitempty"`
}

// Validate checks the conditions against the trigger type.
func (c Conditions) Validate(trigger TriggerType) error {
	switch trigger {
	case TriggerEvent:
		if c.EventType == "" {
			return apperr.Validation("event trigger requires conditions.event_type")
		}
	case TriggerScoreDrop:
		if c.Threshold != nil && (*c.Threshold < contacts.MinScore || *c.Threshold > contacts.MaxScore) {
			return apperr.Validation("score_drop threshold must be between 0 and 100")
		}
	case TriggerHealthChange:
		if !contacts.IsKnownHealth(c.HealthStatus) {
			return apperr.Validation("health_change trigger requires a valid conditions.health_status")
		}
	case TriggerLifecycleChange:
		if !contacts.IsKnownStage(c.LifecycleStage) {
			return apperr.Validation("lifecycle_change trigger requires a valid conditions.lifecycle_stage")
		}
	case TriggerInactivity:
		if c.Days != nil && *c.Days < 1 {
			return apperr.Validation("inactivity days must be at least 1")
		}
	default:
		return apperr.Validation("unknown trigger type")
	}

	for _, stage := range c.LifecycleStages {
		if !contacts.IsKnownStage(stage) {
			return apperr.Validation("lifecycle_stages contains an unknown stage")
		}
	}
	if c.MinLTVCents != nil && *c.MinLTVCents < 0 {
		return apperr.Validation("min_ltv_cents cannot be negative")
	}
	return nil
}

// ScoreDropThreshold returns the configured threshold or the default.
func (c Conditions) ScoreDropThreshold() int {
	if c.Threshold != nil {
		return *c.Threshold
	}
	return DefaultScoreDropThreshold
}

// InactivityDays returns the configured day count or the default.
func (c Conditions) InactivityDays() int {
	if c.Days != nil {
		return *c.Days
	}
	return DefaultInactivityDays
}

// ActionType names an outbound action kind.
type ActionType string

const (
	ActionMovePipelineStage ActionType = "move_pipeline_stage"
	ActionAddTag            ActionType = "add_tag"
	ActionCreateTask        ActionType = "create_task"
	ActionSendSMS           ActionType = "send_sms"
	ActionInternalAlert     ActionType = "internal_alert"
)

// ActionSpec is one configured action within a workflow. As with Conditions,
// only the fields for the action's type are meaningful.
type ActionSpec struct {
	Type ActionType `json:"type"`

	// ActionMovePipelineStage
	PipelineID string `json:"pipeline_id,omitempty"`
	StageID    string `json:"stage_id,omitempty"`

	// ActionAddTag
	Tag string `json:"tag,omitempty"`

	// ActionCreateTask
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	DueDays     int    `json:"due_days,omitempty"`

	// ActionSendSMS / ActionInternalAlert; supports {{first_name}},
	// {{last_name}}, {{email}} tokens.
	Message string `json:"message,omitempty"`
}

// Validate checks the action spec's required fields for its type.
func (a ActionSpec) Validate() error {
	switch a.Type {
	case ActionMovePipelineStage:
		if a.PipelineID == "" || a.StageID == "" {
			return apperr.Validation("move_pipeline_stage requires pipeline_id and stage_id")
		}
	case ActionAddTag:
		if a.Tag == "" {
			return apperr.Validation("add_tag requires tag")
		}
	case ActionCreateTask:
		if a.DueDays < 0 {
			return apperr.Validation("create_task due_days cannot be negative")
		}
	case ActionSendSMS:
		if a.Message == "" {
			return apperr.Validation("send_sms requires message")
		}
	case ActionInternalAlert:
		if a.Message == "" {
			return apperr.Validation("internal_alert requires message")
		}
	default:
		return apperr.Validation("unknown action type")
	}
	return nil
}

// Workflow is one stored automation rule.
type Workflow struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	Name           string
	TriggerType    TriggerType
	Conditions     Conditions
	Actions        []ActionSpec
	IsActive       bool
	LastFiredAt    *time.Time
	FireCount      int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Validate checks the whole workflow definition.
func (w Workflow) Validate() error {
	if w.Name == "" {
		return apperr.Validation("workflow name is required")
	}
	if !IsKnownTrigger(w.TriggerType) {
		return apperr.Validation("unknown trigger type")
	}
	if err := w.Conditions.Validate(w.TriggerType); err != nil {
		return err
	}
	if len(w.Actions) == 0 {
		return apperr.Validation("workflow requires at least one action")
	}
	for _, action := range w.Actions {
		if err := action.Validate(); err != nil {
			return err
		}
	}
	return nil
}
