// Package notes imports recipes from note-taking services (Evernote and
// Apple Notes exports) through a note store HTTP API.
package notes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mealvault/mealvault/internal/extraction"
)

// ErrUnauthorized is returned when the note store rejects a token.
var ErrUnauthorized = errors.New("note store rejected the access token")

// Token is an access token obtained from an authorization code.
type Token struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Resource is a binary attachment of a note.
type Resource struct {
	ID       string `json:"id"`
	MIME     string `json:"mime"`
	Filename string `json:"filename,omitempty"`
	Size     int64  `json:"size"`
}

// IsImage reports whether the resource can go through text recognition.
func (r Resource) IsImage() bool {
	return strings.HasPrefix(r.MIME, "image/")
}

// Note is one note with its HTML or ENML body.
type Note struct {
	ID         string     `json:"id"`
	NotebookID string     `json:"notebookId"`
	Title      string     `json:"title"`
	Content    string     `json:"content"`
	SourceURL  string     `json:"sourceUrl,omitempty"`
	Created    time.Time  `json:"created"`
	Updated    time.Time  `json:"updated"`
	Resources  []Resource `json:"resources,omitempty"`
}

// NoteRef identifies a note in a notebook listing.
type NoteRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// NoteStoreClient is the note service surface imports need.
type NoteStoreClient interface {
	ExchangeToken(ctx context.Context, code string) (*Token, error)
	ListNotes(ctx context.Context, token, notebookID string) ([]NoteRef, error)
	GetNote(ctx context.Context, token, noteID string) (*Note, error)
	GetResource(ctx context.Context, token, noteID, resourceID string) ([]byte, error)
}

// ClientConfig configures an HTTPClient.
type ClientConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	HTTPClient   *http.Client
	MaxResource  int64 // bytes; 0 means 10 MiB
}

// HTTPClient talks to a note store REST API.
type HTTPClient struct {
	baseURL      string
	clientID     string
	clientSecret string
	client       *http.Client
	maxResource  int64
}

// NewHTTPClient creates a note store client.
func NewHTTPClient(cfg ClientConfig) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("note store base URL is required")
	}
	c := &HTTPClient{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		client:       cfg.HTTPClient,
		maxResource:  cfg.MaxResource,
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: 30 * time.Second}
	}
	if c.maxResource <= 0 {
		c.maxResource = 10 << 20
	}
	return c, nil
}

func (c *HTTPClient) ExchangeToken(ctx context.Context, code string) (*Token, error) {
	body, _ := json.Marshal(map[string]string{
		"grant_type":    "authorization_code",
		"code":          code,
		"client_id":     c.clientID,
		"client_secret": c.clientSecret,
	})

	var resp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/oauth/token", "", bytes.NewReader(body), &resp); err != nil {
		return nil, fmt.Errorf("exchange token: %w", err)
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("exchange token: empty access token")
	}
	return &Token{
		AccessToken: resp.AccessToken,
		ExpiresAt:   time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second).UTC(),
	}, nil
}

func (c *HTTPClient) ListNotes(ctx context.Context, token, notebookID string) ([]NoteRef, error) {
	var resp struct {
		Notes []NoteRef `json:"notes"`
	}
	path := "/notebooks/" + url.PathEscape(notebookID) + "/notes"
	if err := c.doJSON(ctx, http.MethodGet, path, token, nil, &resp); err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	return resp.Notes, nil
}

func (c *HTTPClient) GetNote(ctx context.Context, token, noteID string) (*Note, error) {
	var note Note
	if err := c.doJSON(ctx, http.MethodGet, "/notes/"+url.PathEscape(noteID), token, nil, &note); err != nil {
		return nil, fmt.Errorf("get note: %w", err)
	}
	return &note, nil
}

func (c *HTTPClient) GetResource(ctx context.Context, token, noteID, resourceID string) ([]byte, error) {
	path := "/notes/" + url.PathEscape(noteID) + "/resources/" + url.PathEscape(resourceID)
	resp, err := c.do(ctx, http.MethodGet, path, token, nil)
	if err != nil {
		return nil, fmt.Errorf("get resource: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResource+1))
	if err != nil {
		return nil, fmt.Errorf("read resource: %w", err)
	}
	if int64(len(data)) > c.maxResource {
		return nil, &extraction.Error{Kind: extraction.KindInvalidInput, Message: fmt.Sprintf("resource larger than %d bytes", c.maxResource)}
	}
	return data, nil
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path, token string, body io.Reader, out any) error {
	resp, err := c.do(ctx, method, path, token, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(out)
}

// do sends a request and maps error statuses; the caller closes the body on
// success.
func (c *HTTPClient) do(ctx context.Context, method, path, token string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
	msg := fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return nil, fmt.Errorf("%w (%s)", ErrUnauthorized, msg)
	case http.StatusNotFound:
		return nil, &extraction.Error{Kind: extraction.KindNotFound, Message: msg}
	case http.StatusTooManyRequests:
		return nil, &extraction.Error{Kind: extraction.KindRateLimited, Message: msg, RetryAfter: 30 * time.Second}
	}
	return nil, errors.New(msg)
}
