package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/mealvault/mealvault/internal/extraction"
)

const maxJSONBody = 1 << 20

// errorResponse is the failure envelope shared by every route.
type errorResponse struct {
	Error      string `json:"error"`
	Code       string `json:"code"`
	RetryAfter int    `json:"retryAfter,omitempty"` // seconds
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

// statusFor maps a failure kind to its HTTP status.
func statusFor(kind extraction.Kind) int {
	switch kind {
	case extraction.KindInvalidInput:
		return http.StatusBadRequest
	case extraction.KindUnsupportedPlatform, extraction.KindInsufficientData:
		return http.StatusUnprocessableEntity
	case extraction.KindRateLimited:
		return http.StatusTooManyRequests
	case extraction.KindPolicyViolation:
		return http.StatusForbidden
	case extraction.KindTimeout:
		return http.StatusGatewayTimeout
	case extraction.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeExtractionError renders a classified failure. Unclassified errors
// become UNKNOWN with their message kept.
func writeExtractionError(w http.ResponseWriter, err error) {
	var e *extraction.Error
	if !errors.As(err, &e) {
		e = &extraction.Error{Kind: extraction.KindUnknown, Message: err.Error()}
	}
	resp := errorResponse{Error: e.Message, Code: string(e.Kind)}
	if e.Kind == extraction.KindRateLimited {
		resp.RetryAfter = e.RetryAfterSeconds()
		if resp.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(resp.RetryAfter))
		}
	}
	writeJSON(w, statusFor(e.Kind), resp)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	return decodeJSONLimit(w, r, dst, maxJSONBody)
}

func decodeJSONLimit(w http.ResponseWriter, r *http.Request, dst any, limit int64) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("request body is required")
		}
		return fmt.Errorf("invalid json body: %w", err)
	}
	return nil
}

func badRequest(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, string(extraction.KindInvalidInput), err.Error())
}
