package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"selestial_backend/internal/actions"
	"selestial_backend/internal/audit"
	"selestial_backend/internal/contacts"
	"selestial_backend/internal/events"
	"selestial_backend/internal/organizations"
	"selestial_backend/internal/scheduler"
	"selestial_backend/internal/scoring"
	"selestial_backend/internal/timeline"
	"selestial_backend/internal/workflows"
	"selestial_backend/platform/config"
	"selestial_backend/platform/db"
	"selestial_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)
	audit.NewModule(log).RegisterHandlers(eventBus)

	taskClient, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize task queue client", "error", err)
		panic("failed to initialize task queue client: " + err.Error())
	}
	defer func() { _ = taskClient.Close() }()

	var alertSender actions.AlertSender
	if mailer, err := actions.NewMailer(cfg, log); err != nil {
		log.Error("failed to initialize alert mailer", "error", err)
		panic("failed to initialize alert mailer: " + err.Error())
	} else if mailer != nil {
		alertSender = mailer
	}

	weights, err := scoring.LoadWeights(cfg.GetScoreWeightsFile())
	if err != nil {
		log.Error("failed to load score weights", "error", err)
		panic("failed to load score weights: " + err.Error())
	}

	orgRepo := organizations.NewRepository(pool)
	contactRepo := contacts.NewRepository(pool)
	timelineRepo := timeline.NewRepository(pool)
	workflowRepo := workflows.NewRepository(pool)

	credentials := organizations.NewCredentialResolver(orgRepo, organizations.EnvSecretSource)
	scoringEngine := scoring.NewEngine(contactRepo, timelineRepo, taskClient, eventBus, weights, log)

	executor := actions.NewExecutor(credentials, timelineRepo, actions.NewGHLClient(), actions.NewTelnyxClient(), alertSender, eventBus, log)
	workflowEngine := workflows.NewEngine(workflowRepo, contactRepo, executor, eventBus, log)

	worker, err := scheduler.NewWorker(cfg, scoringEngine, workflowEngine, taskClient, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
