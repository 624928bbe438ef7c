// Package catalog talks to the public Apple Podcasts directory: the iTunes
// Search API for podcast lookup and the top-podcasts RSS feed for charts.
// Neither endpoint needs credentials.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/sethvargo/go-retry"
)

// SourceApple is the chart and catalog source served by this package.
const SourceApple = "apple"

// maxFeedLimit is the largest page the top-podcasts feed serves.
const maxFeedLimit = 200

const retryBase = 250 * time.Millisecond

// ErrUnavailable is returned when the directory cannot be reached or keeps
// failing after retries.
var ErrUnavailable = errors.New("podcast catalog unavailable")

// Config configures the Apple directory client and the chart collector.
type Config struct {
	BaseURL    string        `env:"CATALOG_BASE_URL" envDefault:"https://itunes.apple.com"`
	Country    string        `env:"CHART_COUNTRY" envDefault:"us"`
	Genres     []string      `env:"CHART_GENRES" envSeparator:"," envDefault:"1310,1302,1303,1304,1307,1315"`
	ChartLimit int           `env:"CHART_LIMIT" envDefault:"50"`
	Timeout    time.Duration `env:"CATALOG_TIMEOUT" envDefault:"10s"`
	MaxRetries uint64        `env:"CATALOG_MAX_RETRIES" envDefault:"2"`
}

// Validate checks the collector settings.
func (c Config) Validate() error {
	if _, err := url.Parse(c.BaseURL); err != nil || c.BaseURL == "" {
		return fmt.Errorf("CATALOG_BASE_URL must be a valid URL")
	}
	if len(c.Country) != 2 {
		return fmt.Errorf("CHART_COUNTRY must be a two-letter country code")
	}
	if len(c.Genres) == 0 {
		return fmt.Errorf("CHART_GENRES must list at least one genre")
	}
	if c.ChartLimit < 1 || c.ChartLimit > maxFeedLimit {
		return fmt.Errorf("CHART_LIMIT must be between 1 and %d", maxFeedLimit)
	}
	return nil
}

// Podcast is a directory entry returned by Search.
type Podcast struct {
	ID       string
	Source   string
	Title    string
	Author   string
	Category string
	ImageURL string
	FeedURL  string
}

// ChartEntry is one row of a top-podcasts feed, in rank order.
type ChartEntry struct {
	ID       string
	Title    string
	Author   string
	Category string
}

// Client queries the Apple Podcasts directory.
type Client struct {
	cfg  Config
	http *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the pooled default client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a directory client.
func New(cfg Config, opts ...Option) *Client {
	hc := cleanhttp.DefaultPooledClient()
	hc.Timeout = cfg.Timeout
	c := &Client{cfg: cfg, http: hc}
	for _, opt := range opts {
		opt(c)
	}
	c.cfg.BaseURL = strings.TrimSuffix(c.cfg.BaseURL, "/")
	return c
}

// Search finds podcasts whose title or author matches term.
func (c *Client) Search(ctx context.Context, term string, limit int) ([]Podcast, error) {
	q := url.Values{}
	q.Set("term", term)
	q.Set("media", "podcast")
	q.Set("limit", strconv.Itoa(limit))
	q.Set("country", c.cfg.Country)

	var resp searchResponse
	if err := c.getJSON(ctx, c.cfg.BaseURL+"/search?"+q.Encode(), &resp); err != nil {
		return nil, err
	}

	podcasts := make([]Podcast, 0, len(resp.Results))
	for _, r := range resp.Results {
		if r.CollectionID == 0 {
			continue
		}
		podcasts = append(podcasts, Podcast{
			ID:       strconv.FormatInt(r.CollectionID, 10),
			Source:   SourceApple,
			Title:    r.CollectionName,
			Author:   r.ArtistName,
			Category: r.PrimaryGenreName,
			ImageURL: r.ArtworkURL600,
			FeedURL:  r.FeedURL,
		})
	}
	return podcasts, nil
}

// TopPodcasts returns the current top podcasts of genre in the configured
// country, best rank first.
func (c *Client) TopPodcasts(ctx context.Context, genre string) ([]ChartEntry, error) {
	u := fmt.Sprintf("%s/%s/rss/toppodcasts/limit=%d/genre=%s/json",
		c.cfg.BaseURL, url.PathEscape(c.cfg.Country), c.cfg.ChartLimit, url.PathEscape(genre))

	var resp feedResponse
	if err := c.getJSON(ctx, u, &resp); err != nil {
		return nil, err
	}

	entries := make([]ChartEntry, 0, len(resp.Feed.Entry))
	for _, e := range resp.Feed.Entry {
		id := e.ID.Attributes.ID
		if id == "" {
			continue
		}
		entries = append(entries, ChartEntry{
			ID:       id,
			Title:    e.Name.Label,
			Author:   e.Artist.Label,
			Category: e.Category.Attributes.Label,
		})
	}
	return entries, nil
}

// getJSON fetches u and decodes the body into v. Transport errors, 429 and
// 5xx responses are retried with exponential backoff.
func (c *Client) getJSON(ctx context.Context, u string, v any) error {
	backoff := retry.WithMaxRetries(c.cfg.MaxRetries, retry.NewExponential(retryBase))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			_, _ = io.Copy(io.Discard, resp.Body)
			return retry.RetryableError(fmt.Errorf("unexpected status %d", resp.StatusCode))
		case resp.StatusCode != http.StatusOK:
			_, _ = io.Copy(io.Discard, resp.Body)
			return fmt.Errorf("unexpected status %d", resp.StatusCode)
		}

		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			return fmt.Errorf("failed to decode catalog response: %w", err)
		}
		return nil
	})
	if err != nil {
		return errors.Join(ErrUnavailable, err)
	}
	return nil
}
