package scoring

import (
	"math"
	"time"

	"selestial_backend/internal/contacts"
	"selestial_backend/internal/timeline"
)

// EventWindow is the trailing period of history considered by the model.
const EventWindow = 60 * 24 * time.Hour

// Outcome is the derived engagement state for one contact.
type Outcome struct {
	Score  int
	Health contacts.HealthStatus
	Stage  contacts.LifecycleStage
}

// Changed reports whether the outcome differs from the contact's stored state.
func (o Outcome) Changed(c contacts.Contact) bool {
	return o.Score != c.Score || o.Health != c.HealthStatus || o.Stage != c.LifecycleStage
}

// recencyMultiplier decays an event's weight by its age in days.
func recencyMultiplier(ageDays float64) float64 {
	switch {
	case ageDays <= 7:
		return 1.0
	case ageDays <= 14:
		return 0.75
	case ageDays <= 30:
		return 0.5
	default:
		return 0.25
	}
}

// inactivityPenalty punishes contacts that have gone quiet.
func inactivityPenalty(daysSinceActivity float64) float64 {
	switch {
	case daysSinceActivity <= 7:
		return 0
	case daysSinceActivity <= 14:
		return -5
	case daysSinceActivity <= 30:
		return -15
	default:
		return -30
	}
}

// deriveHealth classifies score plus recency. The rules overlap, so order
// matters: each is only reached when the previous did not match.
func deriveHealth(score int, daysSinceActivity float64) contacts.HealthStatus {
	switch {
	case score >= 70 && daysSinceActivity <= 7:
		return contacts.HealthHealthy
	case score >= 40 && daysSinceActivity <= 14:
		return contacts.HealthWarning
	case score >= 20 || daysSinceActivity <= 30:
		return contacts.HealthAtRisk
	default:
		return contacts.HealthCritical
	}
}

// deriveStage maps the new health onto the lifecycle stage with guard rails:
// lead, onboarding, and reactivated are never moved by scoring.
func deriveStage(current contacts.LifecycleStage, health contacts.HealthStatus) contacts.LifecycleStage {
	switch current {
	case contacts.StageLead, contacts.StageOnboarding, contacts.StageReactivated:
		return current
	}

	switch {
	case health == contacts.HealthCritical:
		return contacts.StageAtRisk
	case health == contacts.HealthAtRisk && current == contacts.StageActive:
		return contacts.StageAtRisk
	case health == contacts.HealthHealthy && current == contacts.StageAtRisk:
		return contacts.StageActive
	}
	return current
}

// Compute derives the engagement outcome for one contact from its recent
// event history. Pure: same inputs, same outcome, which is what makes
// concurrent re-scoring races harmless.
func Compute(c contacts.Contact, history []timeline.Event, weights Weights, now time.Time) Outcome {
	raw := float64(contacts.DefaultScore)

	cutoff := now.Add(-EventWindow)
	for _, e := range history {
		if e.CreatedAt.Before(cutoff) {
			continue
		}
		ageDays := now.Sub(e.CreatedAt).Hours() / 24
		raw += weights.For(e.EventType) * recencyMultiplier(ageDays)
	}

	daysSinceActivity := c.DaysSinceActivity(now)
	raw += inactivityPenalty(daysSinceActivity)

	score := contacts.ClampScore(int(math.Round(raw)))
	health := deriveHealth(score, daysSinceActivity)
	stage := deriveStage(c.LifecycleStage, health)

	return Outcome{Score: score, Health: health, Stage: stage}
}
