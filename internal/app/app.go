package app

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/gradus/internal/common"
	"github.com/ternarybob/gradus/internal/handlers"
	"github.com/ternarybob/gradus/internal/interfaces"
	"github.com/ternarybob/gradus/internal/services/events"
	"github.com/ternarybob/gradus/internal/services/insight"
	"github.com/ternarybob/gradus/internal/services/scheduler"
	"github.com/ternarybob/gradus/internal/services/serp"
	"github.com/ternarybob/gradus/internal/services/tracker"
	badgerstore "github.com/ternarybob/gradus/internal/storage/badger"
)

// badgerGCInterval is how often value-log garbage collection runs
const badgerGCInterval = 5 * time.Minute

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger
	gcStop chan struct{}

	// Storage
	DB         *badgerstore.BadgerDB
	JobStorage interfaces.JobStorage

	// Services
	EventService   interfaces.EventService
	SERPClient     interfaces.SearchProvider
	InsightService interfaces.InsightService
	TrackerService *tracker.Service
	RefreshService *scheduler.Service

	// HTTP handlers
	APIHandler *handlers.APIHandler
	JobHandler *handlers.JobHandler
	WSHandler  *handlers.WebSocketHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	// Database
	db, err := badgerstore.NewBadgerDB(logger, &cfg.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.DB = db
	app.JobStorage = badgerstore.NewJobStorage(db, logger)

	app.gcStop = make(chan struct{})
	go app.runBadgerGC()

	// Event bus first so display collaborators can subscribe before
	// any job publishes
	app.EventService = events.NewService(logger)
	app.WSHandler = handlers.NewWebSocketHandler(app.EventService, logger)

	// Provider client
	clientOpts := []serp.ClientOption{
		serp.WithLogger(logger),
		serp.WithRateLimit(cfg.Provider.RequestsPerMinute),
		serp.WithSearchDepth(cfg.Provider.SearchDepth),
		serp.WithCompetitorCount(cfg.Tracker.CompetitorCount),
	}
	if cfg.Provider.BaseURL != "" {
		clientOpts = append(clientOpts, serp.WithBaseURL(cfg.Provider.BaseURL))
	}
	if cfg.Provider.RequestTimeout > 0 {
		clientOpts = append(clientOpts, serp.WithHTTPClient(&http.Client{Timeout: cfg.Provider.RequestTimeout}))
	}
	app.SERPClient = serp.NewClient(cfg.Provider.APIKey, clientOpts...)

	// Insight generation degrades to a sentinel when unconfigured, so
	// construction never fails
	app.InsightService = insight.NewService(&cfg.Insight, logger)

	app.TrackerService = tracker.NewService(
		&cfg.Provider,
		&cfg.Tracker,
		app.JobStorage,
		app.SERPClient,
		app.InsightService,
		app.EventService,
		logger,
	)

	app.RefreshService = scheduler.NewService(&cfg.Refresh, app.TrackerService, logger)
	if err := app.RefreshService.Start(); err != nil {
		return nil, fmt.Errorf("failed to start refresh scheduler: %w", err)
	}

	app.APIHandler = handlers.NewAPIHandler()
	app.JobHandler = handlers.NewJobHandler(app.TrackerService, app.JobStorage, logger)

	logger.Info().
		Str("environment", cfg.Environment).
		Msg("Application initialized")

	return app, nil
}

// runBadgerGC periodically reclaims Badger value-log space
func (a *App) runBadgerGC() {
	ticker := time.NewTicker(badgerGCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.DB.RunGC()
		case <-a.gcStop:
			return
		}
	}
}

// Close shuts down services and storage in reverse dependency order
func (a *App) Close() error {
	a.Logger.Info().Msg("Shutting down application...")

	if a.gcStop != nil {
		close(a.gcStop)
	}

	if a.RefreshService != nil {
		a.RefreshService.Stop()
	}

	if a.TrackerService != nil {
		a.TrackerService.Stop()
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("Failed to close database")
			return err
		}
	}

	a.Logger.Info().Msg("Application shutdown complete")
	return nil
}
