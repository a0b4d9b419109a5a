// Package booru queries the image search backend for animated GIF
// candidates. Search is the only remote operation here with internal
// retries: the endpoint rate-limits aggressively and a 429 is worth backing
// off for, while any other failure aborts immediately.
package booru

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const searchAttempts = 4

type Client struct {
	baseURL      string
	apiKey       string
	safeFilterID string
	nsfwFilterID string
	userAgent    string
	http         *http.Client

	// pick selects one image among the qualifying candidates. Tests pin it.
	pick func(n int) int
	// retryInterval seeds the 429 backoff (1s doubling in production).
	retryInterval time.Duration
}

func NewClient(baseURL, apiKey, safeFilterID, nsfwFilterID, userAgent string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		apiKey:        apiKey,
		safeFilterID:  safeFilterID,
		nsfwFilterID:  nsfwFilterID,
		userAgent:     userAgent,
		http:          httpClient,
		pick:          rand.Intn,
		retryInterval: time.Second,
	}
}

// Search looks for an animated GIF matching the user tags. A nil result with
// a nil error means the search succeeded but nothing qualified.
func (c *Client) Search(ctx context.Context, userTags []string, nsfw bool) (*Image, error) {
	baseTags := []string{"safe", "animated", "gif"}
	if nsfw {
		baseTags = []string{"animated", "gif"}
	}
	q := strings.Join(append(append([]string{}, userTags...), baseTags...), ", ")

	params := url.Values{}
	params.Set("q", q)
	params.Set("per_page", "50")
	params.Set("page", "1")
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}
	if nsfw && c.nsfwFilterID != "" {
		params.Set("filter_id", c.nsfwFilterID)
	}
	if !nsfw && c.safeFilterID != "" {
		params.Set("filter_id", c.safeFilterID)
	}

	endpoint := c.baseURL + "/api/v1/json/search/images?" + params.Encode()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.retryInterval
	policy.Multiplier = 2
	policy.RandomizationFactor = 0

	attempt := 0
	search := func() (*Image, error) {
		attempt++
		slog.Info("Search attempt", "attempt", attempt, "q", q)
		return c.searchOnce(ctx, endpoint)
	}

	return backoff.RetryWithData(search, backoff.WithContext(backoff.WithMaxRetries(policy, searchAttempts-1), ctx))
}

func (c *Client) searchOnce(ctx context.Context, endpoint string) (*Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to build search request: %w", err))
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("search request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("search rate limited (429)")
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to read search response: %w", err))
	}

	if resp.StatusCode >= 400 {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200]
		}
		return nil, backoff.Permanent(fmt.Errorf("search HTTP %d: %s", resp.StatusCode, preview))
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to parse search response: %w", err))
	}

	candidates := filterCandidates(parsed.Images)
	slog.Info("Search results", "found", len(parsed.Images), "candidates", len(candidates))
	if len(candidates) == 0 {
		return nil, nil
	}
	img := candidates[c.pick(len(candidates))]
	return &img, nil
}

// filterCandidates keeps GIFs the server has finished processing and that
// expose at least one downloadable representation.
func filterCandidates(images []Image) []Image {
	var out []Image
	for _, img := range images {
		if img.Format != "gif" {
			continue
		}
		if !img.ThumbnailsGenerated {
			continue
		}
		if len(img.RepresentationURLs()) == 0 {
			continue
		}
		out = append(out, img)
	}
	return out
}
