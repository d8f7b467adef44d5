package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	tberrors "github.com/tunebook/tunebook/internal/errors"
	"github.com/tunebook/tunebook/pkg/version"
)

// Fetcher loads the raw bytes behind a source location.
type Fetcher interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// StatusError reports a non-success HTTP response.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return e.Status
}

// FetchConfig configures the default fetcher.
type FetchConfig struct {
	Timeout           time.Duration
	UserAgent         string
	RequestsPerSecond float64
	Burst             int
	MaxBytes          int64
}

// DefaultFetchConfig returns conservative fetch settings.
func DefaultFetchConfig() FetchConfig {
	return FetchConfig{
		Timeout:           60 * time.Second,
		UserAgent:         "tunebook/" + version.Version,
		RequestsPerSecond: 4,
		Burst:             4,
		MaxBytes:          512 << 20,
	}
}

// SourceFetcher reads http(s) URLs over the network and file:// URLs or
// plain paths from disk.
type SourceFetcher struct {
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
	maxBytes  int64
}

// NewSourceFetcher returns a fetcher for cfg. Zero fields take defaults.
func NewSourceFetcher(cfg FetchConfig) *SourceFetcher {
	def := DefaultFetchConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = def.RequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = def.MaxBytes
	}
	return &SourceFetcher{
		client:    &http.Client{Timeout: cfg.Timeout},
		limiter:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		userAgent: cfg.UserAgent,
		maxBytes:  cfg.MaxBytes,
	}
}

// Fetch implements Fetcher.
func (f *SourceFetcher) Fetch(ctx context.Context, location string) ([]byte, error) {
	if isRemote(location) {
		return f.fetchHTTP(ctx, location)
	}
	return os.ReadFile(localPath(location))
}

func (f *SourceFetcher) fetchHTTP(ctx context.Context, location string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, tberrors.New(tberrors.ErrCodeFetchFailed, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{Code: resp.StatusCode, Status: statusText(resp)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, tberrors.New(tberrors.ErrCodeFetchFailed, "failed to read body", err)
	}
	if int64(len(body)) > f.maxBytes {
		return nil, tberrors.New(tberrors.ErrCodeFetchFailed,
			fmt.Sprintf("response exceeds %d bytes", f.maxBytes), nil)
	}
	return body, nil
}

func statusText(resp *http.Response) string {
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return resp.Status
}

func isRemote(location string) bool {
	lower := strings.ToLower(location)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// localPath strips a file:// scheme.
func localPath(location string) string {
	if !strings.HasPrefix(strings.ToLower(location), "file://") {
		return location
	}
	u, err := url.Parse(location)
	if err != nil || u.Path == "" {
		return location[len("file://"):]
	}
	return u.Path
}
