// Package feed fetches and parses the channel's public paginated feed.
package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"tgmirror/internal/metrics"
	"tgmirror/internal/mirror"
)

// retryStatus is the transient-overload status the upstream serves while
// throttling. It is the only status worth retrying; everything else
// non-200 is terminal.
const retryStatus = http.StatusBadGateway

// FetcherConfig controls retry behavior for page and media fetches.
type FetcherConfig struct {
	MaxRetries  int
	BackoffBase time.Duration
	Timeout     time.Duration
	UserAgent   string
}

// Fetcher performs HTTP GETs with bounded retry and exponential backoff.
type Fetcher struct {
	cfg    FetcherConfig
	client *http.Client
	sleep  func(ctx context.Context, d time.Duration) error
	logger *zap.Logger
}

// NewFetcher builds a Fetcher. The zero values of cfg fall back to the
// upstream-observed defaults (10 retries, 5s base delay).
func NewFetcher(cfg FetcherConfig, logger *zap.Logger) *Fetcher {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 10
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 5 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		sleep:  sleepContext,
		logger: logger,
	}
}

// Get fetches a URL, retrying only on the transient-overload status. The
// wait before retry k+1 is BackoffBase * 2^(k-1). Any other non-success
// status, or an exhausted retry budget, is a terminal FetchError.
func (f *Fetcher) Get(ctx context.Context, rawURL string) ([]byte, error) {
	for attempt := 1; attempt <= f.cfg.MaxRetries; attempt++ {
		body, status, err := f.do(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		if status == http.StatusOK {
			return body, nil
		}
		if status != retryStatus {
			return nil, &mirror.FetchError{URL: rawURL, Status: status, Attempts: attempt}
		}
		if attempt == f.cfg.MaxRetries {
			break
		}
		wait := f.cfg.BackoffBase << (attempt - 1)
		metrics.RecordFetchRetry()
		f.logger.Debug("transient status, backing off",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
		)
		if err := f.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, &mirror.FetchError{URL: rawURL, Status: retryStatus, Attempts: f.cfg.MaxRetries}
}

// Download retrieves a media URL using the same retry policy and derives
// the file name and extension from the URL path.
func (f *Fetcher) Download(ctx context.Context, rawURL string) (mirror.Media, error) {
	data, err := f.Get(ctx, rawURL)
	if err != nil {
		return mirror.Media{}, err
	}
	name, ext := splitMediaName(rawURL)
	return mirror.Media{Data: data, Name: name, Ext: ext}, nil
}

func (f *Fetcher) do(ctx context.Context, rawURL string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request for %s: %w", rawURL, err)
	}
	if f.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", f.cfg.UserAgent)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("get %s: %w", rawURL, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read body of %s: %w", rawURL, err)
	}
	return body, resp.StatusCode, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// splitMediaName extracts the base name and extension from a media URL,
// ignoring any query string.
func splitMediaName(rawURL string) (name, ext string) {
	base := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		base = u.Path
	}
	full := path.Base(base)
	ext = strings.TrimPrefix(path.Ext(full), ".")
	name = strings.TrimSuffix(full, path.Ext(full))
	return name, strings.ToLower(ext)
}
