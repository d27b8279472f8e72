// Package app assembles the extraction service from configuration. Both the
// HTTP server and the CLI build their components here.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mealvault/mealvault/internal/api"
	"github.com/mealvault/mealvault/internal/cache"
	"github.com/mealvault/mealvault/internal/compliance"
	"github.com/mealvault/mealvault/internal/config"
	"github.com/mealvault/mealvault/internal/database"
	"github.com/mealvault/mealvault/internal/extraction"
	"github.com/mealvault/mealvault/internal/jobs"
	"github.com/mealvault/mealvault/internal/llm"
	"github.com/mealvault/mealvault/internal/metadata"
	"github.com/mealvault/mealvault/internal/metrics"
	"github.com/mealvault/mealvault/internal/models"
	"github.com/mealvault/mealvault/internal/notes"
	"github.com/mealvault/mealvault/internal/scheduler"
	"github.com/mealvault/mealvault/internal/scrapers"
)

const robotsTTL = time.Hour

// App holds the wired components.
type App struct {
	Config     config.Config
	Logger     *slog.Logger
	Metrics    *metrics.HTTPCollector
	Limiter    *compliance.Limiter
	Dispatcher *extraction.Dispatcher
	Tracker    *jobs.Tracker
	Notes      *notes.Importer
	Failures   *database.FailureRepository
	DB         *sql.DB
	Redis      *redis.Client
}

// New connects the optional backends and builds every component. Redis and
// Postgres are used only when their URLs are configured.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}

	collector, err := metrics.NewHTTPCollector()
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	pipeline, err := metrics.NewPipelineCollector(collector.Registry())
	if err != nil {
		return nil, fmt.Errorf("init pipeline metrics: %w", err)
	}
	a.Metrics = collector

	var (
		stateStore compliance.StateStore
		jobStore   jobs.Store
		metaStore  extraction.MetadataStore = extraction.NewMemoryMetadataStore()
	)
	if cfg.Storage.RedisURL != "" {
		client, err := cache.Connect(ctx, cfg.Storage.RedisURL)
		if err != nil {
			return nil, err
		}
		a.Redis = client
		stateStore = cache.NewRedisStateStore(client, 25*time.Hour)
		jobStore = cache.NewRedisJobStore(client, cfg.Jobs.Retention)
		metaStore = cache.NewRedisMetadataStore(client, cfg.Metadata.MaxAge)
		logger.Info("using redis for shared state")
	}

	var failures extraction.FailureRecorder
	if cfg.Storage.DatabaseURL != "" {
		dbCfg := database.DefaultConfig()
		dbCfg.URL = cfg.Storage.DatabaseURL
		db, err := database.Connect(ctx, dbCfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.DB = db
		if err := database.RunMigrations(ctx, db, database.Migrations(), logger); err != nil {
			a.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		a.Failures = database.NewFailureRepository(db)
		failures = a.Failures
		logger.Info("failure log enabled")
	}

	policies := compliance.DefaultPolicies()
	if cfg.Compliance.PolicyFile != "" {
		policies, err = compliance.LoadPolicies(cfg.Compliance.PolicyFile)
		if err != nil {
			a.Close()
			return nil, err
		}
		logger.Info("loaded compliance policies", "file", cfg.Compliance.PolicyFile, "platforms", len(policies))
	}
	complianceCfg := compliance.DefaultComplianceConfig()
	if cfg.Compliance.UserAgent != "" {
		complianceCfg.UserAgent = cfg.Compliance.UserAgent
	}
	httpClient := &http.Client{Timeout: complianceCfg.Timeout}

	a.Limiter, err = compliance.NewLimiter(compliance.Config{
		Policies:   policies,
		Compliance: complianceCfg,
		Robots:     compliance.NewRobotsCache(httpClient, robotsTTL),
		Observer:   pipeline,
	}, stateStore, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	reg, ocr, err := buildRegistry(cfg, httpClient, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Dispatcher = extraction.NewDispatcher(extraction.Config{
		Registry:   reg,
		Gate:       a.Limiter,
		Normalizer: metadata.NewNormalizer(cfg.Metadata.MaxAge, nil),
		Metadata:   metaStore,
		Failures:   failures,
		Observer:   pipeline,
		OCR:        ocr,
	}, logger)

	a.Tracker = jobs.NewTracker(jobStore, jobs.Config{
		Retention:     cfg.Jobs.Retention,
		MaxConcurrent: cfg.Jobs.MaxConcurrent,
		Retry:         jobs.PolicyFromSettings(complianceCfg.Retry),
		Policies:      a.Limiter,
		Observer:      pipeline,
	}, logger)

	if cfg.NoteStore.Enabled() {
		client, err := notes.NewHTTPClient(notes.ClientConfig{
			BaseURL:      cfg.NoteStore.BaseURL,
			ClientID:     cfg.NoteStore.ClientID,
			ClientSecret: cfg.NoteStore.ClientSecret,
			HTTPClient:   httpClient,
		})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.Notes = notes.NewImporter(client, a.Dispatcher, a.Tracker, a.Sink(), logger)
	}

	return a, nil
}

func buildRegistry(cfg config.Config, httpClient *http.Client, logger *slog.Logger) (*extraction.Registry, extraction.ImageTextEngine, error) {
	reg := extraction.NewRegistry()

	if err := reg.Register(models.PlatformFoodBlog, scrapers.NewFoodBlogFactory(httpClient)); err != nil {
		return nil, nil, err
	}

	if cfg.Apify.Token != "" {
		apify, err := scrapers.NewApifyClient(scrapers.ApifyConfig{Token: cfg.Apify.Token}, logger)
		if err != nil {
			return nil, nil, err
		}
		if err := apify.Register(reg); err != nil {
			return nil, nil, err
		}
	} else {
		logger.Warn("APIFY_API_TOKEN not set, social platforms are unavailable")
	}

	var (
		structurer extraction.TextScraper
		ocr        extraction.ImageTextEngine
	)
	if cfg.OpenAI.Enabled() {
		llmCfg := llm.DefaultConfig()
		llmCfg.APIKey = cfg.OpenAI.APIKey
		llmCfg.BaseURL = cfg.OpenAI.BaseURL
		if cfg.OpenAI.Model != "" {
			llmCfg.Model = cfg.OpenAI.Model
		}
		if cfg.OpenAI.VisionModel != "" {
			llmCfg.VisionModel = cfg.OpenAI.VisionModel
		}
		client, err := llm.NewClient(llmCfg, logger)
		if err != nil {
			return nil, nil, err
		}
		structurer = llm.NewStructurer(client)
		ocr = llm.NewOCREngine(client)
	} else {
		logger.Warn("OPENAI_API_KEY not set, image extraction is unavailable and text uses heuristics only")
	}

	chat := structurer
	if chat == nil {
		chat = scrapers.Heuristic{}
	}
	text := map[models.Platform]extraction.TextScraper{
		models.PlatformEmail:      scrapers.NewEmailScraper(structurer),
		models.PlatformWhatsApp:   chat,
		models.PlatformAppleNotes: scrapers.NewNoteScraper(structurer),
		models.PlatformEvernote:   scrapers.NewNoteScraper(structurer),
	}
	for p, s := range text {
		if err := reg.RegisterText(p, s); err != nil {
			return nil, nil, err
		}
	}
	return reg, ocr, nil
}

// Sink logs every recipe an import produces.
func (a *App) Sink() jobs.ResultSink {
	return func(_ context.Context, jobID string, res *extraction.Result) error {
		a.Logger.Info("recipe imported",
			"job_id", jobID,
			"platform", res.Platform,
			"title", res.Recipe.Title,
			"source_url", res.Recipe.SourceURL,
		)
		return nil
	}
}

// Router builds the HTTP handler over the wired components.
func (a *App) Router() http.Handler {
	deps := api.Deps{
		Extractor:  a.Dispatcher,
		Tracker:    a.Tracker,
		Compliance: a.Limiter,
		DB:         a.DB,
		Sink:       a.Sink(),
		Metrics:    a.Metrics,
		Logger:     a.Logger,
	}
	if a.Notes != nil {
		deps.Notes = a.Notes
	}
	if a.Failures != nil {
		deps.Failures = a.Failures
	}
	return api.NewRouter(deps)
}

// Janitor returns a janitor sweeping expired jobs and rate-limit history.
func (a *App) Janitor() *scheduler.Janitor {
	j := scheduler.NewJanitor(a.Config.Jobs.SweepInterval, a.Logger)
	j.Add("import_jobs", scheduler.SweepFunc(a.Tracker.Sweep))
	j.Add("rate_limit_state", scheduler.SweepFunc(a.Limiter.Sweep))
	return j
}

// Close releases backend connections.
func (a *App) Close() error {
	var errs []error
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	return errors.Join(errs...)
}
