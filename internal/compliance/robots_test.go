package compliance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestRobotsCache(t *testing.T) {
	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		fetches.Add(1)
		w.Write([]byte("User-agent: *\nDisallow: /members/\n\nUser-agent: BadBot\nDisallow: /\n"))
	}))
	defer srv.Close()

	cache := NewRobotsCache(srv.Client(), time.Hour)
	ctx := context.Background()

	tests := []struct {
		path      string
		userAgent string
		want      bool
	}{
		{"/recipes/apple-pie", DefaultUserAgent, true},
		{"/members/saved", DefaultUserAgent, false},
		{"/recipes/apple-pie", "BadBot", false},
	}

	for _, tt := range tests {
		got, err := cache.Allowed(ctx, srv.URL+tt.path, tt.userAgent)
		if err != nil {
			t.Fatalf("Allowed(%s) error = %v", tt.path, err)
		}
		if got != tt.want {
			t.Errorf("Allowed(%s, %s) = %v, want %v", tt.path, tt.userAgent, got, tt.want)
		}
	}

	if n := fetches.Load(); n != 1 {
		t.Errorf("robots.txt fetched %d times, want 1", n)
	}
}

func TestRobotsCacheMissingFileAllowsAll(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	cache := NewRobotsCache(srv.Client(), time.Hour)
	ok, err := cache.Allowed(context.Background(), srv.URL+"/anything", DefaultUserAgent)
	if err != nil {
		t.Fatalf("Allowed() error = %v", err)
	}
	if !ok {
		t.Error("expected missing robots.txt to allow all")
	}
}

func TestRobotsCacheExpires(t *testing.T) {
	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		w.Write([]byte("User-agent: *\nAllow: /\n"))
	}))
	defer srv.Close()

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cache := NewRobotsCache(srv.Client(), time.Minute)
	cache.now = func() time.Time { return now }

	ctx := context.Background()
	cache.Allowed(ctx, srv.URL+"/a", DefaultUserAgent)
	now = now.Add(2 * time.Minute)
	cache.Allowed(ctx, srv.URL+"/b", DefaultUserAgent)

	if n := fetches.Load(); n != 2 {
		t.Errorf("robots.txt fetched %d times, want 2", n)
	}
}
