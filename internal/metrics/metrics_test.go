package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mealvault/mealvault/internal/models"
)

func scrape(t *testing.T, c *HTTPCollector) string {
	t.Helper()
	rr := httptest.NewRecorder()
	c.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected metrics handler to return 200, got %d", rr.Code)
	}
	return rr.Body.String()
}

func TestHTTPCollectorRecordsMetrics(t *testing.T) {
	collector, err := NewHTTPCollector()
	if err != nil {
		t.Fatalf("NewHTTPCollector returned error: %v", err)
	}

	handlerInvoked := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerInvoked = true
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("ok"))
	})

	rr := httptest.NewRecorder()
	collector.InstrumentHandler(handler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/test", nil))

	if !handlerInvoked {
		t.Fatal("expected handler to be invoked")
	}
	if rr.Code != http.StatusAccepted {
		t.Fatalf("unexpected status code: %d", rr.Code)
	}

	body := scrape(t, collector)
	if !strings.Contains(body, `mealvault_http_requests_total{method="GET",path="/test",status="202"} 1`) {
		t.Fatalf("requests_total metric not recorded, body=%q", body)
	}
	if !strings.Contains(body, `mealvault_http_request_duration_seconds_count{method="GET",path="/test",status="202"} 1`) {
		t.Fatalf("request_duration_seconds_count metric not recorded, body=%q", body)
	}
}

func TestHTTPCollectorUsesRoutePattern(t *testing.T) {
	collector, err := NewHTTPCollector()
	if err != nil {
		t.Fatalf("NewHTTPCollector returned error: %v", err)
	}

	r := chi.NewRouter()
	r.Use(collector.InstrumentHandler)
	r.Get("/imports/{id}", func(w http.ResponseWriter, r *http.Request) {})

	for _, id := range []string{"a", "b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/imports/"+id, nil))
	}

	body := scrape(t, collector)
	if !strings.Contains(body, `mealvault_http_requests_total{method="GET",path="/imports/{id}",status="200"} 2`) {
		t.Fatalf("route pattern not used as path label, body=%q", body)
	}
}

func TestPipelineCollector(t *testing.T) {
	collector, err := NewHTTPCollector()
	if err != nil {
		t.Fatalf("NewHTTPCollector returned error: %v", err)
	}
	p, err := NewPipelineCollector(collector.Registry())
	if err != nil {
		t.Fatalf("NewPipelineCollector returned error: %v", err)
	}

	p.ObserveExtraction(models.PlatformYouTube, "success", 2*time.Second)
	p.ObserveExtraction(models.PlatformYouTube, "RATE_LIMITED", time.Second)
	p.ObservePermit(models.PlatformTikTok, 0)
	p.ObserveRejection(models.PlatformTikTok, "policy")
	p.ObserveJob(models.ImportStatusCompleted, time.Minute)
	p.ObserveItem(true)
	p.ObserveItem(false)
	p.ObserveItem(false)

	body := scrape(t, collector)
	for _, want := range []string{
		`mealvault_extraction_total{outcome="success",platform="youtube"} 1`,
		`mealvault_extraction_total{outcome="RATE_LIMITED",platform="youtube"} 1`,
		`mealvault_compliance_permits_total{platform="tiktok"} 1`,
		`mealvault_compliance_rejections_total{platform="tiktok",reason="policy"} 1`,
		`mealvault_import_jobs_total{status="completed"} 1`,
		`mealvault_import_items_total{result="failure"} 2`,
		`mealvault_import_items_total{result="success"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %s", want)
		}
	}

	if _, err := NewPipelineCollector(collector.Registry()); err == nil {
		t.Error("registering the pipeline collector twice should fail")
	}
}
