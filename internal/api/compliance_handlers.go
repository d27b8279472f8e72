package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/mealvault/mealvault/internal/extraction"
	"github.com/mealvault/mealvault/internal/models"
)

type complianceHandler struct {
	limiter ComplianceAdmin
	logger  *slog.Logger
}

type platformPolicy struct {
	Platform models.Platform `json:"platform"`
	Policy   policyDTO       `json:"policy"`
}

// platformParam resolves {platform}; unknown or unconfigured platforms get
// UNSUPPORTED_PLATFORM.
func (h *complianceHandler) platformParam(w http.ResponseWriter, r *http.Request) (models.Platform, bool) {
	raw := chi.URLParam(r, "platform")
	p, ok := models.ParsePlatform(raw)
	if !ok {
		writeExtractionError(w, &extraction.Error{Kind: extraction.KindUnsupportedPlatform, Message: fmt.Sprintf("unknown platform %q", raw)})
		return "", false
	}
	return p, true
}

func (h *complianceHandler) getConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toComplianceConfigDTO(h.limiter.ComplianceConfig()))
}

func (h *complianceHandler) putConfig(w http.ResponseWriter, r *http.Request) {
	var req complianceConfigDTO
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	if err := h.limiter.UpdateComplianceConfig(req.model()); err != nil {
		badRequest(w, err)
		return
	}
	h.logger.Info("compliance config updated", "user_agent", req.UserAgent)
	writeJSON(w, http.StatusOK, toComplianceConfigDTO(h.limiter.ComplianceConfig()))
}

func (h *complianceHandler) listPolicies(w http.ResponseWriter, r *http.Request) {
	policies := h.limiter.Policies()
	out := make([]platformPolicy, 0, len(policies))
	for p, policy := range policies {
		out = append(out, platformPolicy{Platform: p, Policy: toPolicyDTO(policy)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Platform < out[j].Platform })
	writeJSON(w, http.StatusOK, map[string]any{"platforms": out})
}

func (h *complianceHandler) getPolicy(w http.ResponseWriter, r *http.Request) {
	p, ok := h.platformParam(w, r)
	if !ok {
		return
	}
	policy, ok := h.limiter.Policy(p)
	if !ok {
		writeExtractionError(w, &extraction.Error{Kind: extraction.KindUnsupportedPlatform, Message: fmt.Sprintf("no policy for platform %q", p)})
		return
	}
	writeJSON(w, http.StatusOK, platformPolicy{Platform: p, Policy: toPolicyDTO(policy)})
}

func (h *complianceHandler) putPolicy(w http.ResponseWriter, r *http.Request) {
	p, ok := h.platformParam(w, r)
	if !ok {
		return
	}
	var req policyDTO
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	if err := h.limiter.UpdatePolicy(p, req.model()); err != nil {
		badRequest(w, err)
		return
	}
	writeJSON(w, http.StatusOK, platformPolicy{Platform: p, Policy: req})
}

func (h *complianceHandler) stats(w http.ResponseWriter, r *http.Request) {
	p, ok := h.platformParam(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	stats, err := h.limiter.RequestStats(ctx, p)
	if err != nil {
		h.logger.Error("failed to load request stats", "platform", p, "error", err)
		writeError(w, http.StatusInternalServerError, string(extraction.KindUnknown), "failed to load request stats")
		return
	}
	limited, err := h.limiter.IsRateLimited(ctx, p)
	if err != nil {
		h.logger.Error("failed to check rate limit", "platform", p, "error", err)
		writeError(w, http.StatusInternalServerError, string(extraction.KindUnknown), "failed to check rate limit")
		return
	}
	wait, err := h.limiter.TimeUntilNextRequest(ctx, p)
	if err != nil {
		h.logger.Error("failed to compute next request time", "platform", p, "error", err)
		writeError(w, http.StatusInternalServerError, string(extraction.KindUnknown), "failed to compute next request time")
		return
	}

	writeJSON(w, http.StatusOK, statsDTO{
		Platform:             p,
		TotalRequests:        stats.TotalRequests,
		RequestsLastHour:     stats.RequestsLastHour,
		RequestsLastMinute:   stats.RequestsLastMinute,
		AverageIntervalMs:    stats.AverageInterval.Milliseconds(),
		IsRateLimited:        limited,
		TimeUntilNextRequest: wait.Milliseconds(),
	})
}

func (h *complianceHandler) reset(w http.ResponseWriter, r *http.Request) {
	p, ok := h.platformParam(w, r)
	if !ok {
		return
	}
	if err := h.limiter.ResetRateLimit(r.Context(), p); err != nil {
		h.logger.Error("failed to reset rate limit", "platform", p, "error", err)
		writeError(w, http.StatusInternalServerError, string(extraction.KindUnknown), "failed to reset rate limit")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "platform": p})
}
