// -----------------------------------------------------------------------
// Application wiring - storage, services, queue workers, HTTP server
// -----------------------------------------------------------------------

package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/folio/internal/common"
	"github.com/ternarybob/folio/internal/pipeline"
	"github.com/ternarybob/folio/internal/queue"
	"github.com/ternarybob/folio/internal/server"
	"github.com/ternarybob/folio/internal/services/browser"
	"github.com/ternarybob/folio/internal/services/credits"
	"github.com/ternarybob/folio/internal/services/extract"
	"github.com/ternarybob/folio/internal/services/mailer"
	"github.com/ternarybob/folio/internal/services/render"
	"github.com/ternarybob/folio/internal/services/scheduler"
	badgerstore "github.com/ternarybob/folio/internal/storage/badger"
	"github.com/ternarybob/folio/internal/storage/blob"
)

const issueQueueName = "issues"

// Poison messages are dropped after this many deliveries
const maxQueueReceives = 3

// App holds all application components and owns their lifecycle
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	Storage *badgerstore.Manager
	Blobs   *blob.FilesystemStore
	Browser *browser.Handle

	Extractor *extract.Service
	Scheduler *scheduler.Scheduler
	Ledger    *credits.Ledger
	Renderer  *render.Renderer
	Mailer    *mailer.Service
	Processor *pipeline.Processor

	Queue  *queue.Queue
	Pool   *queue.Pool
	Server *server.Server

	cron *cron.Cron
}

// New initializes the application with all dependencies. Nothing is
// started yet; call Start to launch the workers and listener.
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	a := &App{
		Config: config,
		Logger: logger,
	}

	storageManager, err := badgerstore.NewManager(logger, &config.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.Storage = storageManager

	blobs, err := blob.NewFilesystemStore(config.Storage.Blobs.Path, logger)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to initialize blob store: %w", err)
	}
	a.Blobs = blobs

	// The browser process starts lazily on first use
	a.Browser = browser.New(browser.Config{
		UserAgent: config.Extractor.UserAgent,
		Headless:  config.Extractor.Headless,
		NoSandbox: config.Extractor.NoSandbox,
	}, logger)

	a.Extractor = extract.NewService(config.Extractor, a.Browser, logger)
	a.Scheduler = scheduler.New(a.Extractor, storageManager.Links, config.Extractor.Concurrency, logger)
	a.Ledger = credits.NewLedger(storageManager.Users, config.Credits.DailyQuota, logger)
	a.Renderer = render.New(a.Browser, logger)
	a.Mailer = mailer.NewService(config.SMTP, logger)

	a.Processor = pipeline.NewProcessor(pipeline.Deps{
		Issues:    storageManager.Issues,
		Links:     storageManager.Links,
		Users:     storageManager.Users,
		Events:    storageManager.Events,
		Blobs:     blobs,
		Scheduler: a.Scheduler,
		Ledger:    a.Ledger,
		Renderer:  a.Renderer,
		Mail:      a.Mailer,
	}, config, logger)

	jobQueue, err := queue.New(
		storageManager.DB().Store().Badger(),
		issueQueueName,
		config.Queue.VisibilityTimeout,
		maxQueueReceives,
	)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to initialize queue: %w", err)
	}
	a.Queue = jobQueue
	a.Pool = queue.NewPool(jobQueue, a.Processor, config.Queue.PollInterval, config.Queue.Concurrency, logger)

	handler := server.NewJobHandler(storageManager.Issues, jobQueue, logger)
	a.Server = server.New(config, handler, logger)

	if err := a.initMaintenance(); err != nil {
		storageManager.Close()
		return nil, err
	}

	logger.Info().
		Str("badger_path", config.Storage.Badger.Path).
		Str("blob_path", config.Storage.Blobs.Path).
		Int("workers", config.Queue.Concurrency).
		Msg("Application initialized")

	return a, nil
}

// initMaintenance schedules the nightly audit event sweep
func (a *App) initMaintenance() error {
	a.cron = cron.New()

	schedule := a.Config.Maintenance.Schedule
	retentionDays := a.Config.Maintenance.EventRetentionDays
	if schedule == "" || retentionDays <= 0 {
		a.Logger.Debug().Msg("Event retention sweep disabled")
		return nil
	}

	_, err := a.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		purged, err := a.Storage.Events.PurgeOlderThan(ctx, retentionDays)
		if err != nil {
			a.Logger.Error().Err(err).Msg("Event retention sweep failed")
			return
		}
		a.Logger.Info().
			Int("purged", purged).
			Int("retention_days", retentionDays).
			Msg("Event retention sweep complete")
	})
	if err != nil {
		return fmt.Errorf("failed to schedule maintenance job: %w", err)
	}
	return nil
}

// Start launches the job workers and the maintenance schedule. The HTTP
// server is started separately by the caller so it can own the listen
// error.
func (a *App) Start(ctx context.Context) {
	a.Pool.Start(ctx)
	a.cron.Start()
}

// Close shuts down components in reverse dependency order. The HTTP
// server must already be stopped by the caller.
func (a *App) Close() {
	a.Pool.Stop()

	cronCtx := a.cron.Stop()
	select {
	case <-cronCtx.Done():
	case <-time.After(30 * time.Second):
		a.Logger.Warn().Msg("Timed out waiting for maintenance job")
	}

	a.Browser.Shutdown()

	if err := a.Storage.Close(); err != nil {
		a.Logger.Error().Err(err).Msg("Failed to close storage")
	}

	a.Logger.Info().Msg("Application shut down")
}
