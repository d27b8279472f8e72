package extraction

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Kind is the machine-readable failure category returned to callers.
type Kind string

const (
	KindInvalidInput        Kind = "INVALID_INPUT"
	KindUnsupportedPlatform Kind = "UNSUPPORTED_PLATFORM"
	KindRateLimited         Kind = "RATE_LIMITED"
	KindPolicyViolation     Kind = "POLICY_VIOLATION"
	KindTimeout             Kind = "TIMEOUT"
	KindNotFound            Kind = "NOT_FOUND"
	KindInsufficientData    Kind = "INSUFFICIENT_DATA"
	KindUnknown             Kind = "UNKNOWN"
)

// Retryable reports whether an operation failing with k may be retried.
func (k Kind) Retryable() bool {
	return k == KindTimeout || k == KindRateLimited
}

// Error is a classified extraction failure.
type Error struct {
	Kind       Kind
	Message    string
	RetryAfter time.Duration // set for KindRateLimited
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Err.Error() != e.Message {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds.
func (e *Error) RetryAfterSeconds() int {
	if e.RetryAfter <= 0 {
		return 0
	}
	return int(math.Ceil(e.RetryAfter.Seconds()))
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of a classified error, KindUnknown for any other
// non-nil error, and "" for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// classifier maps message fragments to kinds. Order matters: the first rule
// with a matching fragment wins. Status codes are handled by statusKind.
var classifier = []struct {
	kind      Kind
	fragments []string
}{
	{KindRateLimited, []string{"rate limit", "too many requests", "quota exceeded", "throttl"}},
	{KindTimeout, []string{"timeout", "timed out", "deadline exceeded"}},
	{KindNotFound, []string{"not found", "private", "does not exist", "removed"}},
	{KindPolicyViolation, []string{"policy", "forbidden", "robots", "blocked", "login required"}},
	{KindInsufficientData, []string{"no recipe", "insufficient", "no content", "nothing to extract", "empty"}},
	{KindInvalidInput, []string{"invalid", "malformed", "unsupported url"}},
}

var (
	statusPattern = regexp.MustCompile(`\b(?:status(?: code)?|http)[\s:=]*([1-5][0-9]{2})\b`)
	urlPattern    = regexp.MustCompile(`https?://\S+`)
)

// statusKind maps an HTTP status code mentioned as "status 404" or
// "HTTP 429" to a kind. ok is false when msg names no status.
func statusKind(msg string) (Kind, bool) {
	m := statusPattern.FindStringSubmatch(msg)
	if m == nil {
		return "", false
	}
	code, _ := strconv.Atoi(m[1])
	switch {
	case code == http.StatusTooManyRequests:
		return KindRateLimited, true
	case code == http.StatusNotFound, code == http.StatusGone:
		return KindNotFound, true
	case code == http.StatusUnauthorized, code == http.StatusForbidden, code == http.StatusUnavailableForLegalReasons:
		return KindPolicyViolation, true
	case code == http.StatusRequestTimeout, code == http.StatusBadGateway,
		code == http.StatusServiceUnavailable, code == http.StatusGatewayTimeout:
		return KindTimeout, true
	case code >= 500:
		return KindUnknown, true
	}
	return "", false
}

// Classify converts a collaborator failure into a classified error. Errors
// that are already classified pass through; others are matched by message.
// This is only used at the boundary to scraper collaborators, whose failures
// arrive as free text. URLs never take part in the match.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Message: "extraction timed out", Err: err}
	}

	cause := err
	var ue *url.Error
	if errors.As(err, &ue) {
		if ue.Timeout() {
			return &Error{Kind: KindTimeout, Message: err.Error(), Err: err}
		}
		cause = ue.Err
	}
	msg := strings.ToLower(urlPattern.ReplaceAllString(cause.Error(), ""))

	if kind, ok := statusKind(msg); ok {
		return &Error{Kind: kind, Message: err.Error(), Err: err}
	}
	for _, rule := range classifier {
		for _, fragment := range rule.fragments {
			if strings.Contains(msg, fragment) {
				return &Error{Kind: rule.kind, Message: err.Error(), Err: err}
			}
		}
	}
	return &Error{Kind: KindUnknown, Message: err.Error(), Err: err}
}
