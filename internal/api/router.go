// Package api exposes the extraction core over JSON HTTP.
package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mealvault/mealvault/internal/database"
	"github.com/mealvault/mealvault/internal/extraction"
	"github.com/mealvault/mealvault/internal/jobs"
	"github.com/mealvault/mealvault/internal/metrics"
	"github.com/mealvault/mealvault/internal/models"
	"github.com/mealvault/mealvault/internal/notes"
)

// Extractor is the dispatcher surface the handlers use.
type Extractor interface {
	jobs.Extractor
	ExtractText(ctx context.Context, platform models.Platform, text string, meta map[string]string) (*extraction.Result, error)
	ExtractImage(ctx context.Context, image []byte, opts extraction.OCROptions) (*extraction.Result, error)
}

// ComplianceAdmin is the limiter surface behind the admin routes.
type ComplianceAdmin interface {
	Policies() map[models.Platform]models.RateLimitPolicy
	Policy(p models.Platform) (models.RateLimitPolicy, bool)
	UpdatePolicy(p models.Platform, policy models.RateLimitPolicy) error
	ComplianceConfig() models.ComplianceConfig
	UpdateComplianceConfig(cfg models.ComplianceConfig) error
	IsRateLimited(ctx context.Context, p models.Platform) (bool, error)
	TimeUntilNextRequest(ctx context.Context, p models.Platform) (time.Duration, error)
	RequestStats(ctx context.Context, p models.Platform) (models.RequestStats, error)
	ResetRateLimit(ctx context.Context, p models.Platform) error
}

// NoteImporter starts note imports.
type NoteImporter interface {
	Import(ctx context.Context, req notes.ImportRequest) (string, error)
}

// FailureLog is the persisted failure list.
type FailureLog interface {
	List(ctx context.Context, filter database.FailureFilter) ([]models.ExtractionFailure, error)
	Resolve(ctx context.Context, id string) error
	CountUnresolved(ctx context.Context) (map[models.Platform]int, error)
}

// Deps wires the router. Extractor, Tracker and Compliance are required;
// the rest switch their routes off when nil.
type Deps struct {
	Extractor  Extractor
	Tracker    *jobs.Tracker
	Compliance ComplianceAdmin
	Notes      NoteImporter
	Failures   FailureLog
	DB         *sql.DB
	Sink       jobs.ResultSink
	Metrics    *metrics.HTTPCollector
	Logger     *slog.Logger
}

// NewRouter builds the HTTP handler.
func NewRouter(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if deps.Metrics != nil {
		r.Use(deps.Metrics.InstrumentHandler)
		r.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}

	health := &healthHandler{db: deps.DB}
	r.Get("/healthz", health.healthz)

	extract := &extractHandler{extractor: deps.Extractor, logger: deps.Logger}
	imports := &importHandler{extractor: deps.Extractor, tracker: deps.Tracker, notes: deps.Notes, sink: deps.Sink, logger: deps.Logger}
	compliance := &complianceHandler{limiter: deps.Compliance, logger: deps.Logger}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/platforms/detect", extract.detect)

		r.Post("/extract", extract.extractURL)
		r.Post("/extract/text", extract.extractText)
		r.Post("/extract/image", extract.extractImage)

		r.Post("/imports", imports.create)
		if deps.Notes != nil {
			r.Post("/imports/notes", imports.createNotes)
		}
		r.Get("/imports/{id}", imports.status)
		r.Post("/imports/{id}/cancel", imports.cancel)

		r.Route("/compliance", func(r chi.Router) {
			r.Get("/config", compliance.getConfig)
			r.Put("/config", compliance.putConfig)
			r.Get("/platforms", compliance.listPolicies)
			r.Route("/platforms/{platform}", func(r chi.Router) {
				r.Get("/policy", compliance.getPolicy)
				r.Put("/policy", compliance.putPolicy)
				r.Get("/stats", compliance.stats)
				r.Post("/reset", compliance.reset)
			})
		})

		if deps.Failures != nil {
			failures := &failureHandler{repo: deps.Failures, logger: deps.Logger}
			r.Get("/failures", failures.list)
			r.Post("/failures/{id}/resolve", failures.resolve)
		}
	})
	return r
}

type healthHandler struct {
	db *sql.DB
}

func (h *healthHandler) healthz(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := database.HealthCheck(r.Context(), h.db); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
