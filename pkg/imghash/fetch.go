package imghash

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/h2non/filetype"

	"github.com/vulpo-bot/vulpo/pkg/metrics"
)

// MaxDownloadSize bounds image downloads; anything larger is skipped rather
// than hashed.
const MaxDownloadSize = 50 * 1024 * 1024

// Fetcher downloads image bytes with a hard size ceiling.
type Fetcher struct {
	http *resty.Client
	max  int64
}

// NewFetcher returns a fetcher capped at maxBytes, or MaxDownloadSize when
// maxBytes is not positive.
func NewFetcher(maxBytes int64) *Fetcher {
	if maxBytes <= 0 {
		maxBytes = MaxDownloadSize
	}
	return &Fetcher{
		http: resty.New().SetTimeout(60 * time.Second),
		max:  maxBytes,
	}
}

// Fetch returns the bytes at url. Oversized or non-image responses are
// errors; callers treat any error as "skip this URL".
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.IsError() {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status())
	}
	if cl := resp.RawResponse.ContentLength; cl > f.max {
		return nil, fmt.Errorf("fetch %s: declared size %d exceeds limit", url, cl)
	}

	data, err := io.ReadAll(io.LimitReader(body, f.max+1))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: read body: %w", url, err)
	}
	if int64(len(data)) > f.max {
		return nil, fmt.Errorf("fetch %s: body exceeds %d bytes", url, f.max)
	}
	metrics.DownloadBytes.Add(float64(len(data)))

	if !filetype.IsImage(data) {
		return nil, fmt.Errorf("fetch %s: response is not an image", url)
	}
	return data, nil
}
