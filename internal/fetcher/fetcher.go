// Package fetcher retrieves feed documents with HTTP revalidation caching,
// so unchanged feeds — the steady state for status pages — cost a 304.
package fetcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// revalidationState is the cached validators for one feed URL, created
// lazily on the first 200 response and mutated only after a 200.
type revalidationState struct {
	etag         string
	lastModified string
}

// Fetcher performs conditional GETs. Safe for concurrent use across
// distinct URLs; per-URL state is guarded by one mutex.
type Fetcher struct {
	client *http.Client
	logger *zap.Logger

	mu     sync.Mutex
	states map[string]*revalidationState
}

func New(timeout time.Duration, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		logger: logger,
		states: make(map[string]*revalidationState),
	}
}

// Fetch retrieves the current representation of url. Returns (body, true)
// for a 200, and (nil, false) for 304, non-200 responses, timeouts and
// transport failures — none of which mutate the cached validators, so the
// next poll retries with the same conditional headers. Never returns an
// error to the caller: every failure is logged and absorbed per feed.
func (f *Fetcher) Fetch(ctx context.Context, name, url string) ([]byte, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		f.logger.Error("Failed to build feed request",
			zap.String("feed", name),
			zap.String("url", url),
			zap.Error(err),
		)
		return nil, false
	}

	f.mu.Lock()
	if state, ok := f.states[url]; ok {
		if state.etag != "" {
			req.Header.Set("If-None-Match", state.etag)
		}
		if state.lastModified != "" {
			req.Header.Set("If-Modified-Since", state.lastModified)
		}
	}
	f.mu.Unlock()

	resp, err := f.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			f.logger.Warn("Feed fetch timed out",
				zap.String("feed", name),
				zap.String("url", url),
			)
		} else {
			f.logger.Error("Feed fetch failed",
				zap.String("feed", name),
				zap.String("url", url),
				zap.Error(err),
			)
		}
		return nil, false
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return nil, false
	}

	if resp.StatusCode != http.StatusOK {
		f.logger.Error("Feed returned unexpected status",
			zap.String("feed", name),
			zap.String("url", url),
			zap.Int("status", resp.StatusCode),
		)
		return nil, false
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		f.logger.Error("Failed to read feed body",
			zap.String("feed", name),
			zap.String("url", url),
			zap.Error(err),
		)
		return nil, false
	}

	// Either validator may be present independently; update whichever is.
	etag := resp.Header.Get("ETag")
	lastModified := resp.Header.Get("Last-Modified")
	if etag != "" || lastModified != "" {
		f.mu.Lock()
		state, ok := f.states[url]
		if !ok {
			state = &revalidationState{}
			f.states[url] = state
		}
		if etag != "" {
			state.etag = etag
		}
		if lastModified != "" {
			state.lastModified = lastModified
		}
		f.mu.Unlock()
	}

	return body, true
}

func isTimeout(err error) bool {
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded)
}
