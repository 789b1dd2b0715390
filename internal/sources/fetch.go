package sources

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"covid19datasets/internal/config"
)

// Fetcher reads upstream resources from http(s) URLs or local paths.
// Remote requests share one rate limiter; nothing is retried.
type Fetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
	logger    *slog.Logger
}

// NewFetcher creates a fetcher from the fetch configuration
func NewFetcher(cfg config.FetchConfig, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client:    &http.Client{Timeout: cfg.Timeout},
		limiter:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		userAgent: cfg.UserAgent,
		logger:    logger,
	}
}

// Fetch returns the full content at location. Any failure is returned as
// an *UpstreamError.
func (f *Fetcher) Fetch(ctx context.Context, source, location string) ([]byte, error) {
	start := time.Now()
	var (
		data []byte
		err  error
	)
	if isRemote(location) {
		data, err = f.fetchRemote(ctx, source, location)
	} else {
		data, err = os.ReadFile(location)
		if err != nil {
			err = &UpstreamError{Source: source, Location: location, Err: err}
		}
	}
	if err != nil {
		f.logger.ErrorContext(ctx, "upstream fetch failed",
			slog.String("source", source),
			slog.String("location", location),
			slog.String("error", err.Error()))
		return nil, err
	}

	f.logger.InfoContext(ctx, "upstream fetched",
		slog.String("source", source),
		slog.String("location", location),
		slog.Int("bytes", len(data)),
		slog.Duration("duration", time.Since(start)))
	return data, nil
}

func (f *Fetcher) fetchRemote(ctx context.Context, source, location string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, &UpstreamError{Source: source, Location: location, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, &UpstreamError{Source: source, Location: location, Err: err}
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &UpstreamError{Source: source, Location: location, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &UpstreamError{Source: source, Location: location, Status: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{Source: source, Location: location, Err: fmt.Errorf("read body: %w", err)}
	}
	return data, nil
}

func isRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}
