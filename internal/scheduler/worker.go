package scheduler

import (
	"context"
	"fmt"
	"time"

	"selestial_backend/internal/scoring"
	"selestial_backend/platform/apperr"
	"selestial_backend/platform/config"
	"selestial_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Scorer is the scoring engine surface the worker drives.
type Scorer interface {
	ScoreContact(ctx context.Context, contactID uuid.UUID) (bool, error)
	Run(ctx context.Context, req scoring.Request) (int, error)
}

// WorkflowEvaluator is the workflow engine surface the worker drives.
type WorkflowEvaluator interface {
	Evaluate(ctx context.Context, contactID, orgID uuid.UUID, triggerEventType string) (int, error)
}

// SweepEnqueuer queues the periodic sweep. Going through the queue instead
// of scoring inline gives sweeps the same retry semantics as every other
// task.
type SweepEnqueuer interface {
	EnqueueScoringSweep(ctx context.Context) error
}

type Worker struct {
	server        *asynq.Server
	mux           *asynq.ServeMux
	scorer        Scorer
	workflows     WorkflowEvaluator
	tasks         SweepEnqueuer
	sweepInterval time.Duration
	log           *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, scorer Scorer, workflows WorkflowEvaluator, tasks SweepEnqueuer, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:        server,
		mux:           mux,
		scorer:        scorer,
		workflows:     workflows,
		tasks:         tasks,
		sweepInterval: cfg.GetSweepInterval(),
		log:           log,
	}

	mux.HandleFunc(TaskScoreContact, w.handleScoreContact)
	mux.HandleFunc(TaskEvaluateWorkflows, w.handleEvaluateWorkflows)
	mux.HandleFunc(TaskScoringSweep, w.handleScoringSweep)

	return w, nil
}

func (w *Worker) handleScoreContact(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseScoreContactPayload(task)
	if err != nil {
		return err
	}

	contactID, err := uuid.Parse(payload.ContactID)
	if err != nil {
		return err
	}

	changed, err := w.scorer.ScoreContact(ctx, contactID)
	if err != nil {
		if apperr.GetKind(err) == apperr.KindNotFound {
			// The contact disappeared between enqueue and execution;
			// retrying cannot help.
			w.log.Warn("scoring task dropped", "contact_id", contactID, "reason", "contact not found")
			return nil
		}
		return err
	}

	if changed {
		w.log.Debug("contact rescored", "contact_id", contactID)
	}
	return nil
}

func (w *Worker) handleEvaluateWorkflows(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseEvaluateWorkflowsPayload(task)
	if err != nil {
		return err
	}

	contactID, err := uuid.Parse(payload.ContactID)
	if err != nil {
		return err
	}
	orgID, err := uuid.Parse(payload.OrganizationID)
	if err != nil {
		return err
	}

	fired, err := w.workflows.Evaluate(ctx, contactID, orgID, payload.Trigger)
	if err != nil {
		if apperr.GetKind(err) == apperr.KindNotFound {
			w.log.Warn("workflow evaluation dropped", "contact_id", contactID, "reason", "contact not found")
			return nil
		}
		return err
	}

	if fired > 0 {
		w.log.Info("workflows fired", "contact_id", contactID, "count", fired)
	}
	return nil
}

func (w *Worker) handleScoringSweep(ctx context.Context, task *asynq.Task) error {
	changed, err := w.scorer.Run(ctx, scoring.Request{})
	if err != nil {
		return err
	}
	w.log.Info("scoring sweep finished", "changed", changed)
	return nil
}

// Run starts the worker and the periodic sweep loop, blocking until the
// context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	if w.sweepInterval > 0 && w.tasks != nil {
		go w.sweepLoop(ctx)
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

func (w *Worker) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(w.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.tasks.EnqueueScoringSweep(ctx); err != nil {
				w.log.Error("scoring sweep enqueue failed", "error", err)
			}
		}
	}
}
