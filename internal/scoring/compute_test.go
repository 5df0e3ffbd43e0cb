package scoring

import (
	"testing"
	"time"

	"selestial_backend/internal/contacts"
	"selestial_backend/internal/timeline"
)

func eventAt(eventType string, at time.Time) timeline.Event {
	return timeline.Event{EventType: eventType, CreatedAt: at}
}

func contactActive(now time.Time, daysAgo float64) contacts.Contact {
	last := now.Add(-time.Duration(daysAgo * 24 * float64(time.Hour)))
	return contacts.Contact{
		LifecycleStage: contacts.StageActive,
		HealthStatus:   contacts.HealthWarning,
		Score:          contacts.DefaultScore,
		LastActivityAt: &last,
	}
}

func TestComputePaymentTwoDaysAgo(t *testing.T) {
	now := time.Now()
	c := contactActive(now, 2)
	history := []timeline.Event{eventAt("payment_received", now.Add(-48*time.Hour))}

	out := Compute(c, history, DefaultWeights(), now)
	if out.Score != 60 {
		t.Fatalf("score = %d, want 60", out.Score)
	}
	if out.Health != contacts.HealthWarning {
		t.Fatalf("health = %s, want warning", out.Health)
	}
}

func TestComputeScoreStaysInRange(t *testing.T) {
	now := time.Now()

	c := contactActive(now, 1)
	var many []timeline.Event
	for i := 0; i < 20; i++ {
		many = append(many, eventAt("payment_received", now.Add(-time.Hour)))
	}
	out := Compute(c, many, DefaultWeights(), now)
	if out.Score != 100 {
		t.Fatalf("score = %d, want clamp at 100", out.Score)
	}

	var bad []timeline.Event
	for i := 0; i < 10; i++ {
		bad = append(bad, eventAt("subscription_cancelled", now.Add(-time.Hour)))
	}
	out = Compute(c, bad, DefaultWeights(), now)
	if out.Score != 0 {
		t.Fatalf("score = %d, want clamp at 0", out.Score)
	}
}

func TestComputeRecencyDecay(t *testing.T) {
	now := time.Now()
	c := contactActive(now, 1)

	cases := []struct {
		ageDays int
		want    int
	}{
		{2, 60},  // full weight
		{10, 58}, // 0.75
		{20, 55}, // 0.5
		{45, 53}, // 0.25
	}
	for _, tc := range cases {
		history := []timeline.Event{
			eventAt("payment_received", now.Add(-time.Duration(tc.ageDays)*24*time.Hour)),
		}
		out := Compute(c, history, DefaultWeights(), now)
		if out.Score != tc.want {
			t.Fatalf("age %dd: score = %d, want %d", tc.ageDays, out.Score, tc.want)
		}
	}
}

func TestComputeIgnoresEventsOutsideWindow(t *testing.T) {
	now := time.Now()
	c := contactActive(now, 1)
	history := []timeline.Event{eventAt("payment_received", now.Add(-61*24*time.Hour))}

	out := Compute(c, history, DefaultWeights(), now)
	if out.Score != contacts.DefaultScore {
		t.Fatalf("score = %d, want %d (stale event must not count)", out.Score, contacts.DefaultScore)
	}
}

func TestComputeInactivityPenalty(t *testing.T) {
	now := time.Now()

	cases := []struct {
		daysQuiet  float64
		wantScore  int
		wantHealth contacts.HealthStatus
	}{
		{2, 50, contacts.HealthWarning},
		{10, 45, contacts.HealthWarning},
		{20, 35, contacts.HealthAtRisk},
		{40, 20, contacts.HealthAtRisk},
	}
	for _, tc := range cases {
		c := contactActive(now, tc.daysQuiet)
		out := Compute(c, nil, DefaultWeights(), now)
		if out.Score != tc.wantScore {
			t.Fatalf("%.0f days quiet: score = %d, want %d", tc.daysQuiet, out.Score, tc.wantScore)
		}
		if out.Health != tc.wantHealth {
			t.Fatalf("%.0f days quiet: health = %s, want %s", tc.daysQuiet, out.Health, tc.wantHealth)
		}
	}
}

func TestComputeLongQuietWithNegativeEventGoesCritical(t *testing.T) {
	now := time.Now()
	c := contactActive(now, 40)
	history := []timeline.Event{eventAt("subscription_cancelled", now.Add(-40*24*time.Hour))}

	out := Compute(c, history, DefaultWeights(), now)
	// 50 - 20*0.25 - 30 = 15
	if out.Score != 15 {
		t.Fatalf("score = %d, want 15", out.Score)
	}
	if out.Health != contacts.HealthCritical {
		t.Fatalf("health = %s, want critical", out.Health)
	}
	if out.Stage != contacts.StageAtRisk {
		t.Fatalf("stage = %s, want at_risk", out.Stage)
	}
}

func TestComputeNeverMovesGuardedStages(t *testing.T) {
	now := time.Now()
	for _, stage := range []contacts.LifecycleStage{
		contacts.StageLead, contacts.StageOnboarding, contacts.StageReactivated,
	} {
		c := contactActive(now, 45)
		c.LifecycleStage = stage
		history := []timeline.Event{eventAt("subscription_cancelled", now.Add(-40*24*time.Hour))}

		out := Compute(c, history, DefaultWeights(), now)
		if out.Stage != stage {
			t.Fatalf("stage %s moved to %s", stage, out.Stage)
		}
	}
}

func TestComputeRecoversAtRiskContact(t *testing.T) {
	now := time.Now()
	c := contactActive(now, 1)
	c.LifecycleStage = contacts.StageAtRisk

	var history []timeline.Event
	for i := 0; i < 3; i++ {
		history = append(history, eventAt("payment_received", now.Add(-time.Hour)))
	}
	out := Compute(c, history, DefaultWeights(), now)
	if out.Health != contacts.HealthHealthy {
		t.Fatalf("health = %s, want healthy", out.Health)
	}
	if out.Stage != contacts.StageActive {
		t.Fatalf("stage = %s, want active", out.Stage)
	}
}

func TestComputeNeverActiveFallsBackToCreatedAt(t *testing.T) {
	now := time.Now()
	c := contacts.Contact{
		LifecycleStage: contacts.StageActive,
		HealthStatus:   contacts.HealthWarning,
		Score:          contacts.DefaultScore,
		CreatedAt:      now.Add(-40 * 24 * time.Hour),
	}
	out := Compute(c, nil, DefaultWeights(), now)
	if out.Score != 20 {
		t.Fatalf("score = %d, want 20", out.Score)
	}
}
