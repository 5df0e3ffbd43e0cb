package audit

import (
	"context"
	"strings"
	"testing"

	"selestial_backend/internal/events"
	platformevents "selestial_backend/platform/events"
	"selestial_backend/platform/logger"

	"github.com/google/uuid"
)

func TestHandleRecordsWorkflowFire(t *testing.T) {
	m := NewModule(logger.NewNop())

	err := m.Handle(context.Background(), events.WorkflowFired{
		BaseEvent:    events.NewBaseEvent(),
		WorkflowID:   uuid.New(),
		WorkflowName: "Win back quiet clients",
		ContactID:    uuid.New(),
		ActionsTotal: 2,
		ActionsOK:    1,
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}

	counters, recent := m.Snapshot()
	if counters[events.WorkflowFired{}.EventName()] != 1 {
		t.Fatalf("counter = %d, want 1", counters[events.WorkflowFired{}.EventName()])
	}
	if len(recent) != 1 || recent[0].Kind != "workflow_fired" {
		t.Fatalf("recent = %+v", recent)
	}
	if !strings.Contains(recent[0].Summary, "Win back quiet clients") {
		t.Fatalf("summary %q missing workflow name", recent[0].Summary)
	}
}

func TestHandleReceivesPublishedEvents(t *testing.T) {
	bus := platformevents.NewInMemoryBus(logger.NewNop())
	m := NewModule(logger.NewNop())
	m.RegisterHandlers(bus)

	err := bus.PublishSync(context.Background(), events.ActionExecuted{
		BaseEvent:  events.NewBaseEvent(),
		ContactID:  uuid.New(),
		ActionType: "send_sms",
		Status:     "skipped",
		Detail:     "contact has no phone number",
	})
	if err != nil {
		t.Fatalf("PublishSync: %v", err)
	}

	counters, recent := m.Snapshot()
	if counters[events.ActionExecuted{}.EventName()] != 1 {
		t.Fatalf("counter = %d, want 1", counters[events.ActionExecuted{}.EventName()])
	}
	if len(recent) != 1 || recent[0].Kind != "action_skipped" {
		t.Fatalf("recent = %+v", recent)
	}
}

func TestRecentIsBoundedNewestFirst(t *testing.T) {
	m := NewModule(logger.NewNop())

	for i := 0; i < recentCap+20; i++ {
		_ = m.Handle(context.Background(), events.ContactScored{
			BaseEvent:     events.NewBaseEvent(),
			ContactID:     uuid.New(),
			PreviousScore: i,
			NewScore:      i + 10,
		})
	}

	_, recent := m.Snapshot()
	if len(recent) != recentCap {
		t.Fatalf("recent length = %d, want %d", len(recent), recentCap)
	}
	if !strings.Contains(recent[0].Summary, "119 ->") {
		t.Fatalf("newest entry not first: %q", recent[0].Summary)
	}
}
