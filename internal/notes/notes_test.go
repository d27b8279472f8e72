package notes

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
	"testing"
	"time"

	"github.com/mealvault/mealvault/internal/clock"
	"github.com/mealvault/mealvault/internal/extraction"
	"github.com/mealvault/mealvault/internal/jobs"
	"github.com/mealvault/mealvault/internal/models"
)

var pngBytes = []byte("\x89PNG\r\n\x1a\nfake")

func noteStore(t *testing.T) *HTTPClient {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth/token", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["code"] != "good-code" {
			http.Error(w, "bad code", http.StatusUnauthorized)
			return
		}
		io.WriteString(w, `{"access_token":"tok-1","expires_in":3600}`)
	})
	authed := func(h http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") != "Bearer tok-1" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			h(w, r)
		}
	}
	mux.HandleFunc("GET /notebooks/recipes/notes", authed(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"notes":[{"id":"n1","title":"Soup"},{"id":"n2","title":"Card photo"},{"id":"n3","title":"Deleted"}]}`)
	}))
	mux.HandleFunc("GET /notes/n1", authed(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"id":"n1","title":"Soup","content":"<en-note><div>Soup</div></en-note>"}`)
	}))
	mux.HandleFunc("GET /notes/n2", authed(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"id":"n2","title":"Card photo","content":"","resources":[{"id":"r1","mime":"image/png","size":12}]}`)
	}))
	mux.HandleFunc("GET /notes/n2/resources/r1", authed(func(w http.ResponseWriter, r *http.Request) {
		w.Write(pngBytes)
	}))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c, err := NewHTTPClient(ClientConfig{BaseURL: srv.URL, HTTPClient: srv.Client()})
	if err != nil {
		t.Fatalf("NewHTTPClient() error = %v", err)
	}
	return c
}

func TestHTTPClient(t *testing.T) {
	c := noteStore(t)
	ctx := context.Background()

	tok, err := c.ExchangeToken(ctx, "good-code")
	if err != nil || tok.AccessToken != "tok-1" {
		t.Fatalf("ExchangeToken() = %+v, %v", tok, err)
	}
	if _, err := c.ExchangeToken(ctx, "bad-code"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("ExchangeToken(bad) error = %v, want ErrUnauthorized", err)
	}

	refs, err := c.ListNotes(ctx, "tok-1", "recipes")
	if err != nil || len(refs) != 3 {
		t.Fatalf("ListNotes() = %v, %v", refs, err)
	}
	note, err := c.GetNote(ctx, "tok-1", "n2")
	if err != nil || len(note.Resources) != 1 || !note.Resources[0].IsImage() {
		t.Fatalf("GetNote() = %+v, %v", note, err)
	}
	data, err := c.GetResource(ctx, "tok-1", "n2", "r1")
	if err != nil || string(data) != string(pngBytes) {
		t.Errorf("GetResource() = %q, %v", data, err)
	}
	if _, err := c.GetNote(ctx, "tok-1", "n3"); extraction.KindOf(err) != extraction.KindNotFound {
		t.Errorf("GetNote(missing) kind = %s, want NOT_FOUND", extraction.KindOf(err))
	}
	if _, err := c.GetNote(ctx, "wrong", "n1"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("GetNote(wrong token) error = %v", err)
	}
}

type stubExtractor struct {
	mu     sync.Mutex
	texts  []string
	images int
}

func (s *stubExtractor) ExtractText(_ context.Context, p models.Platform, text string, meta map[string]string) (*extraction.Result, error) {
	s.mu.Lock()
	s.texts = append(s.texts, text)
	s.mu.Unlock()
	if strings.TrimSpace(text) == "" {
		return nil, &extraction.Error{Kind: extraction.KindInvalidInput, Message: "text is required"}
	}
	r := models.NewCanonicalRecipe(meta["sourceUrl"], time.Now())
	r.Ingredients = []string{"water"}
	return &extraction.Result{Recipe: r, Platform: p}, nil
}

func (s *stubExtractor) ExtractImage(context.Context, []byte, extraction.OCROptions) (*extraction.Result, error) {
	s.mu.Lock()
	s.images++
	s.mu.Unlock()
	r := models.NewCanonicalRecipe("", time.Now())
	r.Title = "Scanned card"
	r.Ingredients = []string{"flour"}
	return &extraction.Result{Recipe: r, Platform: models.PlatformImageOCR}, nil
}

func TestImporter(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tracker := jobs.NewTracker(jobs.NewMemoryStore(), jobs.Config{Clock: clock.NewFake(time.Now())}, logger)
	x := &stubExtractor{}

	var mu sync.Mutex
	var titles []string
	sink := func(_ context.Context, _ string, res *extraction.Result) error {
		mu.Lock()
		titles = append(titles, res.Recipe.Title)
		mu.Unlock()
		return nil
	}

	imp := NewImporter(noteStore(t), x, tracker, sink, logger)
	ctx := context.Background()
	id, err := imp.Import(ctx, ImportRequest{
		Platform:   models.PlatformEvernote,
		AuthCode:   "good-code",
		NotebookID: "recipes",
		ScanImages: true,
	})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	tracker.Wait()

	job, _ := tracker.Status(ctx, id)
	if job.Status != models.ImportStatusCompleted || job.TotalItems != 3 {
		t.Fatalf("job = %+v", job)
	}
	if job.SuccessCount != 2 || job.FailureCount != 1 {
		t.Errorf("success = %d, failure = %d, errors = %v", job.SuccessCount, job.FailureCount, job.Errors)
	}
	if x.images != 1 {
		t.Errorf("image scans = %d, want 1", x.images)
	}
	if strings.Join(titles, ",") != "Soup,Scanned card" {
		t.Errorf("titles = %v", titles)
	}
}

func TestImporterRejectsBadRequests(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	imp := NewImporter(noteStore(t), &stubExtractor{}, jobs.NewTracker(nil, jobs.Config{}, logger), nil, logger)
	ctx := context.Background()

	tests := []struct {
		name string
		req  ImportRequest
		want extraction.Kind
	}{
		{"social platform", ImportRequest{Platform: models.PlatformTikTok, Token: "tok-1", NotebookID: "recipes"}, extraction.KindUnsupportedPlatform},
		{"no selection", ImportRequest{Platform: models.PlatformAppleNotes, Token: "tok-1"}, extraction.KindInvalidInput},
		{"no credentials", ImportRequest{Platform: models.PlatformAppleNotes, NoteIDs: []string{"n1"}}, extraction.KindInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := imp.Import(ctx, tt.req)
			if got := extraction.KindOf(err); got != tt.want {
				t.Errorf("kind = %s, want %s", got, tt.want)
			}
		})
	}

	if _, err := imp.Import(ctx, ImportRequest{Platform: models.PlatformEvernote, AuthCode: "bad-code", NotebookID: "recipes"}); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("bad auth code error = %v, want ErrUnauthorized", err)
	}
}
