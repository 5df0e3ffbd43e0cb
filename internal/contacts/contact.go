// Package contacts provides the contact state store for the retention
// pipeline. A contact row carries the mutable engagement state (score,
// health, lifecycle stage, LTV, last activity) owned by exactly one
// organization.
package contacts

import (
	"time"

	"github.com/google/uuid"
)

// LifecycleStage is the tenant-facing funnel position of a contact.
type LifecycleStage string

const (
	StageLead        LifecycleStage = "lead"
	StageOnboarding  LifecycleStage = "onboarding"
	StageActive      LifecycleStage = "active"
	StageAtRisk      LifecycleStage = "at_risk"
	StageChurned     LifecycleStage = "churned"
	StageReactivated LifecycleStage = "reactivated"
)

var knownStages = map[LifecycleStage]struct{}{
	StageLead:        {},
	StageOnboarding:  {},
	StageActive:      {},
	StageAtRisk:      {},
	StageChurned:     {},
	StageReactivated: {},
}

// IsKnownStage reports whether the stage is one of the defined lifecycle stages.
func IsKnownStage(stage LifecycleStage) bool {
	_, ok := knownStages[stage]
	return ok
}

// LiveStages are the stages eligible for re-scoring. Churned contacts are
// final and leads have not engaged yet, so both are skipped by sweeps.
func LiveStages() []LifecycleStage {
	return []LifecycleStage{StageActive, StageAtRisk, StageOnboarding, StageReactivated}
}

// HealthStatus is the coarse classification derived from score and recency.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthWarning  HealthStatus = "warning"
	HealthAtRisk   HealthStatus = "at_risk"
	HealthCritical HealthStatus = "critical"
)

var knownHealth = map[HealthStatus]struct{}{
	HealthHealthy:  {},
	HealthWarning:  {},
	HealthAtRisk:   {},
	HealthCritical: {},
}

// IsKnownHealth reports whether the status is one of the defined health values.
func IsKnownHealth(status HealthStatus) bool {
	_, ok := knownHealth[status]
	return ok
}

const (
	// DefaultScore is the neutral engagement score assigned to new contacts.
	DefaultScore = 50
	// MinScore and MaxScore bound the engagement score.
	MinScore = 0
	MaxScore = 100
)

// Contact is one person tracked for an organization.
type Contact struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	GHLContactID   string
	FirstName      string
	LastName       string
	Email          string
	Phone          string
	LifecycleStage LifecycleStage
	HealthStatus   HealthStatus
	Score          int
	LTVCents       int64
	LastActivityAt *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// FullName joins first and last name, tolerating either being empty.
func (c Contact) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	default:
		return c.FirstName + " " + c.LastName
	}
}

// DaysSinceActivity returns whole-plus-fractional days since the last
// activity, falling back to the creation time when the contact has never
// been active.
func (c Contact) DaysSinceActivity(now time.Time) float64 {
	ref := c.CreatedAt
	if c.LastActivityAt != nil {
		ref = *c.LastActivityAt
	}
	return now.Sub(ref).Hours() / 24
}

// ClampScore bounds a raw score to the valid range.
func ClampScore(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}
