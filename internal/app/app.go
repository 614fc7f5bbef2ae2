package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/aptus/internal/common"
	"github.com/ternarybob/aptus/internal/handlers"
	"github.com/ternarybob/aptus/internal/interfaces"
	"github.com/ternarybob/aptus/internal/models"
	"github.com/ternarybob/aptus/internal/scheduler"
	"github.com/ternarybob/aptus/internal/services/audit"
	"github.com/ternarybob/aptus/internal/services/embeddings"
	"github.com/ternarybob/aptus/internal/services/enrichment"
	"github.com/ternarybob/aptus/internal/services/ingest"
	"github.com/ternarybob/aptus/internal/services/llm"
	"github.com/ternarybob/aptus/internal/services/matching"
	"github.com/ternarybob/aptus/internal/services/parser"
	"github.com/ternarybob/aptus/internal/storage/badger"
	"github.com/ternarybob/aptus/internal/storage/sqlite"
	"github.com/ternarybob/aptus/internal/workers"
	"github.com/ternarybob/arbor"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Storage
	sqliteDB   *sqlite.SQLiteDB
	badgerDB   *badger.BadgerDB
	Candidates interfaces.CandidateStorage
	Jobs       interfaces.JobRequirementStorage
	Matches    interfaces.MatchStorage
	Embeddings interfaces.EmbeddingStorage
	Profiles   interfaces.ProfileStorage
	Queue      interfaces.QueueStorage
	Trackers   interfaces.TrackerStorage
	Audits     interfaces.AuditStorage
	KV         interfaces.KeyValueStorage

	// Services
	LLMService       interfaces.LLMService
	ParserService    interfaces.FileParser
	EmbeddingService *embeddings.Service
	Enrichment       *enrichment.Service
	MatchEngine      *matching.Engine
	AuditService     *audit.Service
	IngestService    *ingest.Service
	ResumeWorker     *workers.ResumeWorker
	Scheduler        *scheduler.Scheduler

	// HTTP handlers
	UploadHandler         *handlers.UploadHandler
	TrackerHandler        *handlers.TrackerHandler
	CandidateHandler      *handlers.CandidateHandler
	JobRequirementHandler *handlers.JobRequirementHandler
	MatchHandler          *handlers.MatchHandler
	QueueHandler          *handlers.QueueHandler
	AuditHandler          *handlers.AuditHandler
	KVHandler             *handlers.KVHandler
	SearchHandler         *handlers.SearchHandler
	StatusHandler         *handlers.StatusHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := app.initServices(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	app.initHandlers()

	if cfg.Scheduler.Enabled {
		if err := app.Scheduler.Start(); err != nil {
			app.Close()
			return nil, fmt.Errorf("failed to start scheduler: %w", err)
		}
		logger.Info().
			Int("workers", cfg.Scheduler.WorkerCount).
			Str("poll_interval", cfg.Scheduler.PollInterval).
			Msg("Scheduler started")
	} else {
		logger.Info().Msg("Scheduler disabled, uploads process inline")
	}

	logger.Info().
		Str("environment", cfg.Environment).
		Msg("Application initialization complete")

	return app, nil
}

// initStorage opens SQLite for domain data and Badger for key/value pairs.
func (a *App) initStorage() error {
	db, err := sqlite.NewSQLiteDB(a.Logger, &a.Config.Storage.SQLite)
	if err != nil {
		return fmt.Errorf("sqlite: %w", err)
	}
	a.sqliteDB = db

	a.Candidates = sqlite.NewCandidateStorage(db, a.Logger)
	a.Jobs = sqlite.NewJobRequirementStorage(db, a.Logger)
	a.Matches = sqlite.NewMatchStorage(db, a.Logger)
	a.Embeddings = sqlite.NewEmbeddingStorage(db, a.Logger)
	a.Profiles = sqlite.NewProfileStorage(db, a.Logger)
	a.Queue = sqlite.NewQueueStorage(db, a.Logger)
	a.Trackers = sqlite.NewTrackerStorage(db, a.Logger)
	a.Audits = sqlite.NewAuditStorage(db, a.Logger)

	kvDB, err := badger.NewBadgerDB(a.Logger, &a.Config.Storage.Badger)
	if err != nil {
		db.Close()
		a.sqliteDB = nil
		return fmt.Errorf("badger: %w", err)
	}
	a.badgerDB = kvDB
	a.KV = badger.NewKVStorage(kvDB, a.Logger)

	return nil
}

// initServices builds business services in dependency order. API keys resolve
// environment first, then the KV store, then the config file.
func (a *App) initServices() error {
	ctx := context.Background()

	llmKey := common.ResolveAPIKey(ctx, a.KV, common.KeyLLMAPIKey, a.Config.LLM.APIKey)
	a.LLMService = llm.NewService(&a.Config.LLM, llmKey, a.Logger)

	a.ParserService = parser.NewService(a.Logger)

	a.EmbeddingService = embeddings.NewService(a.LLMService, a.Embeddings, &a.Config.Embeddings, a.Logger)

	tavilyKey := common.ResolveAPIKey(ctx, a.KV, common.KeyTavilyAPIKey, a.Config.Enrichment.TavilyAPIKey)
	githubToken := common.ResolveAPIKey(ctx, a.KV, common.KeyGitHubToken, a.Config.Enrichment.GitHubToken)

	a.Enrichment = enrichment.NewService(
		a.Profiles,
		a.Config.Enrichment.StalenessTTL(),
		a.Logger,
		enrichment.NewGitHubFetcher(githubToken, a.Logger),
		enrichment.NewSynthFetcher(models.SourceLinkedIn, a.Logger),
		enrichment.NewSynthFetcher(models.SourceTwitter, a.Logger),
		enrichment.NewWebSearchFetcher(&a.Config.Enrichment, tavilyKey, a.Logger),
	)

	a.MatchEngine = matching.NewEngine(
		a.LLMService,
		a.Enrichment,
		a.Matches,
		a.Candidates,
		a.Jobs,
		&a.Config.Matching,
		&a.Config.Enrichment,
		a.Logger,
	)

	a.AuditService = audit.NewService(a.Audits, &a.Config.Audit, a.Logger)

	a.ResumeWorker = workers.NewResumeWorker(
		a.ParserService,
		a.LLMService,
		a.Candidates,
		a.EmbeddingService,
		a.Trackers,
		a.Logger,
	)

	a.IngestService = ingest.NewService(
		a.ParserService,
		a.Trackers,
		a.Queue,
		a.ResumeWorker,
		&a.Config.Scheduler,
		&a.Config.Queue,
		&a.Config.Upload,
		a.Logger,
	)

	a.Scheduler = scheduler.New(a.Queue, &a.Config.Scheduler, &a.Config.Queue, a.Logger)
	a.Scheduler.Register(a.ResumeWorker)
	a.Scheduler.Register(workers.NewCleanupWorker(a.Queue, &a.Config.Scheduler, a.Logger))

	return nil
}

// initHandlers wires HTTP handlers onto the services.
func (a *App) initHandlers() {
	a.UploadHandler = handlers.NewUploadHandler(a.IngestService, a.Logger)
	a.TrackerHandler = handlers.NewTrackerHandler(a.Trackers, a.Logger)
	a.CandidateHandler = handlers.NewCandidateHandler(a.Candidates, a.Profiles, a.Logger)
	a.JobRequirementHandler = handlers.NewJobRequirementHandler(a.Jobs, a.Logger)
	a.MatchHandler = handlers.NewMatchHandler(a.MatchEngine, a.AuditService, a.Matches, a.Logger)
	a.QueueHandler = handlers.NewQueueHandler(a.Queue, a.Logger)
	a.AuditHandler = handlers.NewAuditHandler(a.Audits, a.Logger)
	a.KVHandler = handlers.NewKVHandler(a.KV, a.Logger)
	a.SearchHandler = handlers.NewSearchHandler(a.LLMService, a.Embeddings, a.Logger)
	a.StatusHandler = handlers.NewStatusHandler(a.Config, a.Queue, a.Candidates, a.Logger)
}

// Close stops background work and releases storage. Safe to call on a
// partially initialized App.
func (a *App) Close() error {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}

	var firstErr error
	if a.badgerDB != nil {
		if err := a.badgerDB.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close key/value store")
			firstErr = err
		}
	}
	if a.sqliteDB != nil {
		if err := a.sqliteDB.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close database")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
