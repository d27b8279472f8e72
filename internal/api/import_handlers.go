package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mealvault/mealvault/internal/extraction"
	"github.com/mealvault/mealvault/internal/jobs"
	"github.com/mealvault/mealvault/internal/models"
	"github.com/mealvault/mealvault/internal/notes"
)

const maxImportURLs = 500

type importHandler struct {
	extractor Extractor
	tracker   *jobs.Tracker
	notes     NoteImporter
	sink      jobs.ResultSink
	logger    *slog.Logger
}

type createImportRequest struct {
	URLs     []string   `json:"urls"`
	Platform string     `json:"platform,omitempty"`
	Options  optionsDTO `json:"options"`
}

type createImportResponse struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

type progressResponse struct {
	Progress *models.ImportJob `json:"progress"`
}

// create handles POST /api/v1/imports
func (h *importHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createImportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}

	urls, dropped := jobs.UniqueURLs(req.URLs)
	if len(urls) == 0 {
		badRequest(w, errors.New("urls must contain at least one url"))
		return
	}
	if len(urls) > maxImportURLs {
		badRequest(w, fmt.Errorf("at most %d urls per import", maxImportURLs))
		return
	}
	platform, err := optionalPlatform(req.Platform)
	if err != nil {
		writeExtractionError(w, err)
		return
	}

	if dropped > 0 {
		h.logger.Info("dropped duplicate import urls", "dropped", dropped, "kept", len(urls))
	}

	id, err := h.tracker.CreateImport(r.Context(), jobs.URLItems(h.extractor, urls, platform, req.Options.model(), h.sink))
	if err != nil {
		h.logger.Error("failed to create import", "error", err)
		writeError(w, http.StatusInternalServerError, string(extraction.KindUnknown), "failed to create import")
		return
	}
	writeJSON(w, http.StatusAccepted, createImportResponse{JobID: id, Status: "started"})
}

// createNotes handles POST /api/v1/imports/notes
func (h *importHandler) createNotes(w http.ResponseWriter, r *http.Request) {
	var req notes.ImportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	if p, ok := models.ParsePlatform(string(req.Platform)); ok {
		req.Platform = p
	}

	id, err := h.notes.Import(r.Context(), req)
	if errors.Is(err, notes.ErrUnauthorized) {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
		return
	}
	if err != nil {
		h.logger.Info("note import rejected", "platform", req.Platform, "error", err)
		writeExtractionError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, createImportResponse{JobID: id, Status: "started"})
}

// status handles GET /api/v1/imports/{id}
func (h *importHandler) status(w http.ResponseWriter, r *http.Request) {
	job, err := h.tracker.Status(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, jobs.ErrNotFound) {
		writeError(w, http.StatusNotFound, string(extraction.KindNotFound), "import job not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to load import job", "error", err)
		writeError(w, http.StatusInternalServerError, string(extraction.KindUnknown), "failed to load import job")
		return
	}
	writeJSON(w, http.StatusOK, progressResponse{Progress: job})
}

// cancel handles POST /api/v1/imports/{id}/cancel
func (h *importHandler) cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	switch err := h.tracker.Cancel(r.Context(), id); {
	case errors.Is(err, jobs.ErrNotFound):
		writeError(w, http.StatusNotFound, string(extraction.KindNotFound), "import job not found")
	case errors.Is(err, jobs.ErrFinished):
		writeError(w, http.StatusConflict, "JOB_FINISHED", err.Error())
	case err != nil:
		h.logger.Error("failed to cancel import job", "job_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, string(extraction.KindUnknown), "failed to cancel import job")
	default:
		writeJSON(w, http.StatusAccepted, createImportResponse{JobID: id, Status: "cancelling"})
	}
}
