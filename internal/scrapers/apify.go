// Package scrapers holds the platform collaborators the extraction
// dispatcher delegates to: Apify actors for social platforms, a schema.org
// reader for food blogs, and text scrapers for email, chat and notes.
package scrapers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mealvault/mealvault/internal/clock"
	"github.com/mealvault/mealvault/internal/extraction"
	"github.com/mealvault/mealvault/internal/models"
)

// DefaultApifyBaseURL is the Apify REST API root.
const DefaultApifyBaseURL = "https://api.apify.com/v2"

// DefaultActors maps each social platform to the public actor that scrapes a
// single post.
var DefaultActors = map[models.Platform]string{
	models.PlatformInstagram: "apify~instagram-scraper",
	models.PlatformTikTok:    "clockworks~tiktok-scraper",
	models.PlatformPinterest: "epctex~pinterest-scraper",
	models.PlatformFacebook:  "apify~facebook-posts-scraper",
	models.PlatformTwitter:   "apidojo~tweet-scraper",
	models.PlatformYouTube:   "streamers~youtube-scraper",
}

// ApifyConfig configures the Apify client.
type ApifyConfig struct {
	Token        string
	BaseURL      string
	PollInterval time.Duration
	Actors       map[models.Platform]string
	HTTPClient   *http.Client
	Clock        clock.Clock
}

// ApifyClient starts actor runs and collects their dataset items.
type ApifyClient struct {
	token   string
	baseURL string
	poll    time.Duration
	actors  map[models.Platform]string
	client  *http.Client
	clock   clock.Clock
	logger  *slog.Logger
}

// NewApifyClient creates a client. The token is required.
func NewApifyClient(cfg ApifyConfig, logger *slog.Logger) (*ApifyClient, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("apify api token is required")
	}
	c := &ApifyClient{
		token:   cfg.Token,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		poll:    cfg.PollInterval,
		actors:  cfg.Actors,
		client:  cfg.HTTPClient,
		clock:   cfg.Clock,
		logger:  logger,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultApifyBaseURL
	}
	if c.poll <= 0 {
		c.poll = 3 * time.Second
	}
	if c.actors == nil {
		c.actors = DefaultActors
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: 30 * time.Second}
	}
	if c.clock == nil {
		c.clock = clock.Real{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c, nil
}

// Register adds a scraper factory for every platform with a configured actor.
func (c *ApifyClient) Register(reg *extraction.Registry) error {
	for _, p := range models.AllPlatforms() {
		if _, ok := c.actors[p]; !ok {
			continue
		}
		if err := reg.Register(p, c.Factory(p)); err != nil {
			return err
		}
	}
	return nil
}

// Factory returns a factory producing single-use scrapers for p.
func (c *ApifyClient) Factory(p models.Platform) extraction.ScraperFactory {
	return func(context.Context) (extraction.Scraper, error) {
		actor, ok := c.actors[p]
		if !ok {
			return nil, fmt.Errorf("no apify actor configured for %s", p)
		}
		return &apifyScraper{client: c, platform: p, actor: actor}, nil
	}
}

// apifyScraper runs one actor for one post. Close aborts the run if the
// scrape was interrupted.
type apifyScraper struct {
	client   *ApifyClient
	platform models.Platform
	actor    string
	runID    string
	finished bool
}

func (s *apifyScraper) Scrape(ctx context.Context, postURL string, opts extraction.Options) (extraction.Payload, error) {
	runID, err := s.client.startRun(ctx, s.actor, actorInput(s.platform, postURL, opts))
	if err != nil {
		return nil, err
	}
	s.runID = runID

	datasetID, err := s.client.waitForRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	s.finished = true

	items, err := s.client.datasetItems(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, &extraction.Error{Kind: extraction.KindNotFound, Message: "post not found or not public"}
	}
	return socialPayload(items[0]), nil
}

func (s *apifyScraper) Close() error {
	if s.runID == "" || s.finished {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.client.abortRun(ctx, s.runID); err != nil {
		s.client.logger.Warn("failed to abort apify run", "run_id", s.runID, "error", err)
		return err
	}
	return nil
}

// actorInput builds the per-actor input document.
func actorInput(p models.Platform, postURL string, opts extraction.Options) map[string]any {
	switch p {
	case models.PlatformTikTok:
		return map[string]any{"postURLs": []string{postURL}, "resultsPerPage": 1}
	case models.PlatformInstagram:
		return map[string]any{"directUrls": []string{postURL}, "resultsType": "posts", "resultsLimit": 1}
	case models.PlatformTwitter:
		return map[string]any{"startUrls": []string{postURL}, "maxItems": 1}
	case models.PlatformFacebook:
		return map[string]any{"startUrls": []map[string]string{{"url": postURL}}, "resultsLimit": 1, "includeComments": opts.IncludeComments}
	default:
		return map[string]any{"startUrls": []map[string]string{{"url": postURL}}, "maxResults": 1, "maxItems": 1}
	}
}

func (c *ApifyClient) startRun(ctx context.Context, actor string, input map[string]any) (string, error) {
	body, err := json.Marshal(input)
	if err != nil {
		return "", fmt.Errorf("encode actor input: %w", err)
	}

	var result struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/acts/"+actor+"/runs", body, http.StatusCreated, &result); err != nil {
		return "", fmt.Errorf("failed to start actor: %w", err)
	}
	return result.Data.ID, nil
}

func (c *ApifyClient) waitForRun(ctx context.Context, runID string) (string, error) {
	for {
		if err := c.clock.Sleep(ctx, c.poll); err != nil {
			return "", err
		}

		var status struct {
			Data struct {
				Status           string `json:"status"`
				DefaultDatasetID string `json:"defaultDatasetId"`
			} `json:"data"`
		}
		if err := c.do(ctx, http.MethodGet, "/actor-runs/"+runID, nil, http.StatusOK, &status); err != nil {
			return "", fmt.Errorf("failed to poll actor run: %w", err)
		}

		switch status.Data.Status {
		case "SUCCEEDED":
			return status.Data.DefaultDatasetID, nil
		case "TIMED-OUT":
			return "", &extraction.Error{Kind: extraction.KindTimeout, Message: "apify actor run timed out"}
		case "FAILED", "ABORTED":
			return "", fmt.Errorf("actor run failed with status: %s", status.Data.Status)
		}
	}
}

func (c *ApifyClient) datasetItems(ctx context.Context, datasetID string) ([]map[string]any, error) {
	var items []map[string]any
	if err := c.do(ctx, http.MethodGet, "/datasets/"+datasetID+"/items?clean=true", nil, http.StatusOK, &items); err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}
	return items, nil
}

func (c *ApifyClient) abortRun(ctx context.Context, runID string) error {
	return c.do(ctx, http.MethodPost, "/actor-runs/"+runID+"/abort", nil, http.StatusOK, nil)
}

// do sends one API request and decodes the response into out.
func (c *ApifyClient) do(ctx context.Context, method, path string, body []byte, want int, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return statusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// statusError classifies an unexpected HTTP response.
func statusError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	msg := fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return &extraction.Error{Kind: extraction.KindRateLimited, Message: msg, RetryAfter: retryAfter(resp.Header.Get("Retry-After"))}
	case http.StatusNotFound, http.StatusGone:
		return &extraction.Error{Kind: extraction.KindNotFound, Message: msg}
	case http.StatusForbidden, http.StatusUnavailableForLegalReasons:
		return &extraction.Error{Kind: extraction.KindPolicyViolation, Message: msg}
	case http.StatusServiceUnavailable:
		if d := retryAfter(resp.Header.Get("Retry-After")); d > 0 {
			return &extraction.Error{Kind: extraction.KindRateLimited, Message: msg, RetryAfter: d}
		}
		return &extraction.Error{Kind: extraction.KindTimeout, Message: msg}
	case http.StatusRequestTimeout, http.StatusBadGateway, http.StatusGatewayTimeout:
		return &extraction.Error{Kind: extraction.KindTimeout, Message: msg}
	}
	if resp.StatusCode >= 500 {
		return &extraction.Error{Kind: extraction.KindUnknown, Message: msg}
	}
	return fmt.Errorf("unexpected %s", msg)
}

// retryAfter parses a Retry-After header given in seconds.
func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// captionKeys name the post text across actors.
var captionKeys = []string{"caption", "text", "full_text", "description", "desc", "message"}

// socialPayload parses the recipe out of a post's caption and keeps the raw
// item for the metadata normalizer.
func socialPayload(item map[string]any) extraction.Payload {
	caption := ""
	for _, k := range captionKeys {
		if s, ok := item[k].(string); ok && strings.TrimSpace(s) != "" {
			caption = s
			break
		}
	}

	p := extraction.ParseRecipeText(caption)
	if title, ok := item["title"].(string); ok && title != "" {
		p["title"] = title
	}
	for _, k := range []string{"displayUrl", "thumbnailUrl", "coverUrl", "imageUrl", "thumbnail"} {
		if v, ok := item[k]; ok {
			p["images"] = v
			break
		}
	}
	p["metadata"] = item
	return p
}
