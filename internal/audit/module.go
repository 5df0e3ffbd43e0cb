// Package audit consumes the domain events on the bus and keeps a rolling
// operational summary: per-event counters and the most recent automation
// activity, served on the admin API for quick triage without log access.
package audit

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"selestial_backend/internal/events"
	apphttp "selestial_backend/internal/http"
	"selestial_backend/platform/httpkit"
	"selestial_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

// recentCap bounds the in-memory activity ring.
const recentCap = 100

// Entry is one recorded automation occurrence.
type Entry struct {
	At      time.Time `json:"at"`
	Kind    string    `json:"kind"`
	Summary string    `json:"summary"`
}

// Module is the audit subscriber implementing events.Handler and http.Module.
type Module struct {
	log *logger.Logger

	mu       sync.Mutex
	counters map[string]uint64
	recent   []Entry
}

func NewModule(log *logger.Logger) *Module {
	return &Module{
		log:      log,
		counters: make(map[string]uint64),
	}
}

// RegisterHandlers subscribes to all domain events on the event bus.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.EventIngested{}.EventName(), m)
	bus.Subscribe(events.ContactCreated{}.EventName(), m)
	bus.Subscribe(events.ContactScored{}.EventName(), m)
	bus.Subscribe(events.WorkflowFired{}.EventName(), m)
	bus.Subscribe(events.ActionExecuted{}.EventName(), m)

	m.log.Info("audit module registered event handlers")
}

// Handle routes events to the appropriate recorder.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.EventIngested:
		m.count(e.EventName())
	case events.ContactCreated:
		m.count(e.EventName())
		m.record(e.OccurredAt(), "contact_created",
			fmt.Sprintf("contact %s created via %s", e.ContactID, e.SourceSystem))
	case events.ContactScored:
		m.count(e.EventName())
		m.record(e.OccurredAt(), "contact_scored",
			fmt.Sprintf("contact %s scored %d -> %d (%s)", e.ContactID, e.PreviousScore, e.NewScore, e.HealthStatus))
	case events.WorkflowFired:
		m.count(e.EventName())
		m.record(e.OccurredAt(), "workflow_fired",
			fmt.Sprintf("workflow %q fired for contact %s (%d/%d actions ok)",
				e.WorkflowName, e.ContactID, e.ActionsOK, e.ActionsTotal))
		if e.ActionsOK < e.ActionsTotal {
			m.log.Warn("workflow fired with failing actions",
				"workflow_id", e.WorkflowID, "ok", e.ActionsOK, "total", e.ActionsTotal)
		}
	case events.ActionExecuted:
		m.count(e.EventName())
		m.record(e.OccurredAt(), "action_"+e.Status,
			fmt.Sprintf("%s for contact %s: %s", e.ActionType, e.ContactID, e.Detail))
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
	}
	return nil
}

func (m *Module) count(eventName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[eventName]++
}

func (m *Module) record(at time.Time, kind, summary string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recent = append(m.recent, Entry{At: at, Kind: kind, Summary: summary})
	if len(m.recent) > recentCap {
		m.recent = m.recent[len(m.recent)-recentCap:]
	}
}

// Snapshot returns the current counters and recent activity, newest first.
func (m *Module) Snapshot() (map[string]uint64, []Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	counters := make(map[string]uint64, len(m.counters))
	for name, n := range m.counters {
		counters[name] = n
	}
	recent := make([]Entry, len(m.recent))
	for i, entry := range m.recent {
		recent[len(m.recent)-1-i] = entry
	}
	return counters, recent
}

func (m *Module) Name() string {
	return "audit"
}

// RegisterRoutes mounts the operational summary endpoint.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Admin.GET("/audit/activity", func(c *gin.Context) {
		counters, recent := m.Snapshot()
		httpkit.JSON(c, http.StatusOK, gin.H{
			"counters": counters,
			"recent":   recent,
		})
	})
}

var _ events.Handler = (*Module)(nil)
var _ apphttp.Module = (*Module)(nil)
