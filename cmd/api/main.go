package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"selestial_backend/internal/actions"
	"selestial_backend/internal/audit"
	"selestial_backend/internal/contacts"
	"selestial_backend/internal/events"
	apphttp "selestial_backend/internal/http"
	"selestial_backend/internal/ingest"
	"selestial_backend/internal/organizations"
	"selestial_backend/internal/scheduler"
	"selestial_backend/internal/scoring"
	"selestial_backend/internal/timeline"
	"selestial_backend/internal/workflows"
	"selestial_backend/platform/config"
	"selestial_backend/platform/db"
	"selestial_backend/platform/logger"
	"selestial_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

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
	log.Info("database connection established")

	eventBus := events.NewInMemoryBus(log)

	auditModule := audit.NewModule(log)
	auditModule.RegisterHandlers(eventBus)

	val := validator.New()

	taskClient := initTaskClient(cfg, log)
	if taskClient != nil {
		defer func() { _ = taskClient.Close() }()
	}

	var archiver ingest.Archiver
	if archive, err := ingest.NewPayloadArchive(ctx, cfg); err != nil {
		log.Error("failed to initialize payload archive", "error", err)
		panic("failed to initialize payload archive: " + err.Error())
	} else if archive != nil {
		archiver = archive
		log.Info("payload archive initialized", "bucket", cfg.GetMinioBucketPayloadArchive())
	}

	var alertSender actions.AlertSender
	if mailer, err := actions.NewMailer(cfg, log); err != nil {
		log.Error("failed to initialize alert mailer", "error", err)
		panic("failed to initialize alert mailer: " + err.Error())
	} else if mailer != nil {
		alertSender = mailer
		log.Info("alert mailer initialized", "host", cfg.GetSMTPHost())
	}

	weights, err := scoring.LoadWeights(cfg.GetScoreWeightsFile())
	if err != nil {
		log.Error("failed to load score weights", "error", err)
		panic("failed to load score weights: " + err.Error())
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	orgRepo := organizations.NewRepository(pool)
	contactRepo := contacts.NewRepository(pool)
	timelineRepo := timeline.NewRepository(pool)
	workflowRepo := workflows.NewRepository(pool)
	keyRepo := ingest.NewRepository(pool)

	credentials := organizations.NewCredentialResolver(orgRepo, organizations.EnvSecretSource)

	executor := actions.NewExecutor(credentials, timelineRepo, actions.NewGHLClient(), actions.NewTelnyxClient(), alertSender, eventBus, log)
	workflowEngine := workflows.NewEngine(workflowRepo, contactRepo, executor, eventBus, log)

	// Without a queue the workflow engine evaluates score changes in-process,
	// so the scoring -> workflow chain stays intact either way.
	var notifier scoring.Notifier = workflowEngine
	if taskClient != nil {
		notifier = taskClient
	}
	scoringEngine := scoring.NewEngine(contactRepo, timelineRepo, notifier, eventBus, weights, log)

	var queue ingest.ScoringQueue
	if taskClient != nil {
		queue = taskClient
	}
	ingestService := ingest.NewService(orgRepo, contactRepo, timelineRepo, archiver, queue, eventBus, log)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			ingest.NewModule(ingestService, keyRepo, val, log),
			scoring.NewModule(scoringEngine),
			workflows.NewModule(workflowRepo, workflowEngine, val),
			contacts.NewModule(contactRepo, timelineRepo),
			timeline.NewModule(timelineRepo),
			auditModule,
		},
	}

	engine := apphttp.NewRouter(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func initTaskClient(cfg config.SchedulerConfig, log *logger.Logger) *scheduler.Client {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; no queued scoring, workflow evaluation runs in-process")
		return nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize task queue client", "error", err)
		return nil
	}
	return client
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
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

	return fmt.Errorf("%s: %w", name, lastErr)
}
