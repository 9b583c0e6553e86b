package fuzzysearch

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/vulpo-bot/vulpo/pkg/logger"
	"github.com/vulpo-bot/vulpo/pkg/metrics"
	"github.com/vulpo-bot/vulpo/pkg/sites"
)

const defaultBaseURL = "https://api.fuzzysearch.net"

// FarDistance is the distance assumed for matches the service returned
// without one. It never passes the near-duplicate filter.
const FarDistance = 10

// Match is one candidate source returned by the reverse search service. URL
// is already canonical; no normalization happens downstream.
type Match struct {
	Site         sites.Site
	SiteID       int64
	URL          string
	Filename     string
	Artists      []string
	Rating       string
	Distance     *int64
	SearchedHash *int64
}

// DistanceOr returns the reported hash distance, or def when the service
// omitted it.
func (m Match) DistanceOr(def int64) int64 {
	if m.Distance == nil {
		return def
	}
	return *m.Distance
}

type wireSiteInfo struct {
	Site string `json:"site"`
}

type wireMatch struct {
	SiteID       int64         `json:"site_id"`
	URL          string        `json:"url"`
	Filename     string        `json:"filename"`
	Artists      []string      `json:"artists"`
	Rating       string        `json:"rating"`
	Distance     *int64        `json:"distance"`
	SearchedHash *int64        `json:"searched_hash"`
	SiteInfo     *wireSiteInfo `json:"site_info"`
}

// Options configures the search client.
type Options struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Client queries the external perceptual-hash search service.
type Client struct {
	http *resty.Client
}

func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}

	http := resty.New().
		SetBaseURL(opts.BaseURL).
		SetHeader("X-Api-Key", opts.APIKey).
		SetTimeout(opts.Timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond)

	return &Client{http: http}
}

// SearchHash looks up sources within the given maximum distance of hash.
// Matches tagged with a site this build does not know are dropped.
func (c *Client) SearchHash(ctx context.Context, hash int64, distance int) ([]Match, error) {
	start := time.Now()

	var wire []wireMatch
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("hash", strconv.FormatInt(hash, 10)).
		SetQueryParam("distance", strconv.Itoa(distance)).
		SetResult(&wire).
		Get("/hashes")
	if err != nil {
		return nil, fmt.Errorf("search hash: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("search hash: unexpected status %s", resp.Status())
	}
	metrics.SearchDuration.Observe(time.Since(start).Seconds())

	matches := make([]Match, 0, len(wire))
	for _, w := range wire {
		if w.SiteInfo == nil {
			continue
		}
		site, ok := sites.Parse(w.SiteInfo.Site)
		if !ok {
			logger.DebugCF("fuzzysearch", "dropping match from unknown site", map[string]any{
				"site": w.SiteInfo.Site,
				"url":  w.URL,
			})
			continue
		}
		matches = append(matches, Match{
			Site:         site,
			SiteID:       w.SiteID,
			URL:          w.URL,
			Filename:     w.Filename,
			Artists:      w.Artists,
			Rating:       w.Rating,
			Distance:     w.Distance,
			SearchedHash: w.SearchedHash,
		})
	}
	return matches, nil
}
