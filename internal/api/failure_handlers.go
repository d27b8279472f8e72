package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mealvault/mealvault/internal/database"
	"github.com/mealvault/mealvault/internal/extraction"
	"github.com/mealvault/mealvault/internal/models"
)

type failureHandler struct {
	repo   FailureLog
	logger *slog.Logger
}

// list handles GET /api/v1/failures?platform=&kind=&unresolved_only=true&limit=100
func (h *failureHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := database.FailureFilter{
		Kind:           q.Get("kind"),
		UnresolvedOnly: q.Get("unresolved_only") == "true",
	}
	if raw := q.Get("platform"); raw != "" {
		p, ok := models.ParsePlatform(raw)
		if !ok {
			badRequest(w, errors.New("unknown platform"))
			return
		}
		filter.Platform = p
	}
	if raw := q.Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			filter.Limit = n
		}
	}

	ctx := r.Context()
	failures, err := h.repo.List(ctx, filter)
	if err != nil {
		h.logger.Error("failed to list extraction failures", "error", err)
		writeError(w, http.StatusInternalServerError, string(extraction.KindUnknown), "failed to list failures")
		return
	}
	unresolved, err := h.repo.CountUnresolved(ctx)
	if err != nil {
		h.logger.Error("failed to count unresolved failures", "error", err)
		unresolved = map[models.Platform]int{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"failures":   failures,
		"count":      len(failures),
		"unresolved": unresolved,
	})
}

// resolve handles POST /api/v1/failures/{id}/resolve
func (h *failureHandler) resolve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		writeError(w, http.StatusNotFound, string(extraction.KindNotFound), "failure not found")
		return
	}
	err := h.repo.Resolve(r.Context(), id)
	if errors.Is(err, database.ErrFailureNotFound) {
		writeError(w, http.StatusNotFound, string(extraction.KindNotFound), "failure not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to resolve failure", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, string(extraction.KindUnknown), "failed to resolve failure")
		return
	}
	h.logger.Info("resolved extraction failure", "id", id)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": id})
}
