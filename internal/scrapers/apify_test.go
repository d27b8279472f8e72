package scrapers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mealvault/mealvault/internal/clock"
	"github.com/mealvault/mealvault/internal/extraction"
	"github.com/mealvault/mealvault/internal/models"
)

type fakeApify struct {
	mu    sync.Mutex
	input map[string]any
	auth  string

	polls     atomic.Int32
	aborts    atomic.Int32
	finalPoll string
	items     string
}

func (f *fakeApify) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /acts/{actor}/runs", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.auth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&f.input)
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"data":{"id":"run-1"}}`)
	})
	mux.HandleFunc("GET /actor-runs/run-1", func(w http.ResponseWriter, r *http.Request) {
		status := "RUNNING"
		if f.polls.Add(1) >= 2 {
			status = f.finalPoll
		}
		io.WriteString(w, `{"data":{"status":"`+status+`","defaultDatasetId":"ds-1"}}`)
	})
	mux.HandleFunc("GET /datasets/ds-1/items", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, f.items)
	})
	mux.HandleFunc("POST /actor-runs/run-1/abort", func(w http.ResponseWriter, r *http.Request) {
		f.aborts.Add(1)
		io.WriteString(w, `{"data":{"status":"ABORTING"}}`)
	})
	return mux
}

func newTestApify(t *testing.T, f *fakeApify) *ApifyClient {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	c, err := NewApifyClient(ApifyConfig{
		Token:      "tok",
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
		Clock:      clock.NewFake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewApifyClient() error = %v", err)
	}
	return c
}

const tiktokItem = `[{
	"id": "7234567890",
	"text": "Crispy garlic noodles 🍜\nIngredients\n200g noodles\n4 cloves garlic\nSteps\n1. Boil noodles\n2. Fry garlic and toss #noodles #easyrecipe",
	"authorMeta": {"name": "chefkim", "nickName": "Chef Kim", "verified": true},
	"diggCount": 1200,
	"commentCount": 45,
	"coverUrl": "https://p16.tiktokcdn.com/cover.jpg"
}]`

func TestApifyScrape(t *testing.T) {
	f := &fakeApify{finalPoll: "SUCCEEDED", items: tiktokItem}
	c := newTestApify(t, f)

	scraper, err := c.Factory(models.PlatformTikTok)(context.Background())
	if err != nil {
		t.Fatalf("Factory() error = %v", err)
	}
	p, err := scraper.Scrape(context.Background(), "https://www.tiktok.com/@chefkim/video/7234567890", extraction.Options{})
	if err != nil {
		t.Fatalf("Scrape() error = %v", err)
	}
	if err := scraper.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	if p["title"] != "Crispy garlic noodles 🍜" {
		t.Errorf("title = %v", p["title"])
	}
	if !strings.Contains(p["ingredients"].(string), "4 cloves garlic") {
		t.Errorf("ingredients = %v", p["ingredients"])
	}
	if p["images"] != "https://p16.tiktokcdn.com/cover.jpg" {
		t.Errorf("images = %v", p["images"])
	}
	if meta, ok := p["metadata"].(map[string]any); !ok || meta["diggCount"] != float64(1200) {
		t.Errorf("metadata = %v", p["metadata"])
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.auth != "Bearer tok" {
		t.Errorf("Authorization = %q", f.auth)
	}
	if urls, _ := f.input["postURLs"].([]any); len(urls) != 1 {
		t.Errorf("actor input = %v", f.input)
	}
	if f.aborts.Load() != 0 {
		t.Errorf("finished run was aborted")
	}
}

func TestApifyScrapeFailures(t *testing.T) {
	tests := []struct {
		name      string
		finalPoll string
		items     string
		want      extraction.Kind
	}{
		{"empty dataset", "SUCCEEDED", `[]`, extraction.KindNotFound},
		{"timed out", "TIMED-OUT", `[]`, extraction.KindTimeout},
		{"failed run", "FAILED", `[]`, extraction.KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestApify(t, &fakeApify{finalPoll: tt.finalPoll, items: tt.items})
			scraper, _ := c.Factory(models.PlatformInstagram)(context.Background())
			defer scraper.Close()

			_, err := scraper.Scrape(context.Background(), "https://www.instagram.com/p/Cxyz/", extraction.Options{})
			if got := extraction.KindOf(err); got != tt.want {
				t.Errorf("kind = %s, want %s (err %v)", got, tt.want, err)
			}
		})
	}
}

func TestApifyCloseAbortsInterruptedRun(t *testing.T) {
	f := &fakeApify{finalPoll: "RUNNING"}
	c := newTestApify(t, f)
	scraper, _ := c.Factory(models.PlatformYouTube)(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for f.polls.Load() < 3 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()
	if _, err := scraper.Scrape(ctx, "https://youtu.be/abc", extraction.Options{}); err == nil {
		t.Fatal("Scrape() succeeded on a run that never finished")
	}
	scraper.Close()
	if f.aborts.Load() != 1 {
		t.Errorf("aborts = %d, want 1", f.aborts.Load())
	}
}

func TestApifyStatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":{"type":"rate-limit-exceeded"}}`)
	}))
	defer srv.Close()

	c, _ := NewApifyClient(ApifyConfig{Token: "tok", BaseURL: srv.URL}, nil)
	scraper, _ := c.Factory(models.PlatformPinterest)(context.Background())
	_, err := scraper.Scrape(context.Background(), "https://www.pinterest.com/pin/1/", extraction.Options{})

	var e *extraction.Error
	if !errors.As(err, &e) || e.Kind != extraction.KindRateLimited || e.RetryAfter != 30*time.Second {
		t.Errorf("err = %v, want RATE_LIMITED with 30s retry", err)
	}
}

func TestStatusErrorKinds(t *testing.T) {
	tests := []struct {
		code       int
		retryAfter string
		want       extraction.Kind
	}{
		{http.StatusNotFound, "", extraction.KindNotFound},
		{http.StatusForbidden, "", extraction.KindPolicyViolation},
		{http.StatusBadGateway, "", extraction.KindTimeout},
		{http.StatusServiceUnavailable, "", extraction.KindTimeout},
		{http.StatusServiceUnavailable, "12", extraction.KindRateLimited},
		{http.StatusGatewayTimeout, "", extraction.KindTimeout},
		{http.StatusInternalServerError, "", extraction.KindUnknown},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		if tt.retryAfter != "" {
			rec.Header().Set("Retry-After", tt.retryAfter)
		}
		rec.WriteHeader(tt.code)
		io.WriteString(rec, "upstream says no")

		err := statusError(rec.Result())
		if got := extraction.KindOf(err); got != tt.want {
			t.Errorf("status %d (Retry-After %q): kind = %s, want %s", tt.code, tt.retryAfter, got, tt.want)
		}
	}
}

func TestApifyRegister(t *testing.T) {
	c, _ := NewApifyClient(ApifyConfig{Token: "tok"}, nil)
	reg := extraction.NewRegistry()
	if err := c.Register(reg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	for p := range DefaultActors {
		if _, ok := reg.Factory(p); !ok {
			t.Errorf("no factory registered for %s", p)
		}
	}
	if _, err := NewApifyClient(ApifyConfig{}, nil); err == nil {
		t.Error("NewApifyClient() without token succeeded")
	}
}
