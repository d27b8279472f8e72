package compliance

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// RobotsChecker decides whether a URL may be fetched by userAgent.
type RobotsChecker interface {
	Allowed(ctx context.Context, rawURL, userAgent string) (bool, error)
}

// RobotsCache fetches robots.txt per host and caches the parsed rules.
type RobotsCache struct {
	client *http.Client
	ttl    time.Duration
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]robotsEntry
}

type robotsEntry struct {
	data      *robotstxt.RobotsData
	fetchedAt time.Time
}

// NewRobotsCache creates a cache that refetches rules after ttl.
func NewRobotsCache(client *http.Client, ttl time.Duration) *RobotsCache {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &RobotsCache{
		client:  client,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]robotsEntry),
	}
}

// Allowed reports whether rawURL's path is permitted for userAgent.
func (c *RobotsCache) Allowed(ctx context.Context, rawURL, userAgent string) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false, fmt.Errorf("parse url: %w", err)
	}
	origin := u.Scheme + "://" + u.Host

	c.mu.RLock()
	entry, ok := c.entries[origin]
	c.mu.RUnlock()

	if !ok || c.now().Sub(entry.fetchedAt) >= c.ttl {
		data, err := c.fetch(ctx, origin, userAgent)
		if err != nil {
			return false, err
		}
		entry = robotsEntry{data: data, fetchedAt: c.now()}

		c.mu.Lock()
		c.entries[origin] = entry
		c.mu.Unlock()
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return entry.data.TestAgent(path, userAgent), nil
}

func (c *RobotsCache) fetch(ctx context.Context, origin, userAgent string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil, fmt.Errorf("build robots request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512*1024))
	if err != nil {
		return nil, fmt.Errorf("read robots.txt: %w", err)
	}

	// 4xx allows everything, 5xx disallows everything.
	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}
	return data, nil
}
