package poller

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/marminbh/statuswatch/internal/config"
	"github.com/marminbh/statuswatch/internal/dedup"
	"github.com/marminbh/statuswatch/internal/fetcher"
	"github.com/marminbh/statuswatch/internal/models"
	"github.com/marminbh/statuswatch/internal/pipeline"
)

const rssDocument = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Example Status</title>
    <item>
      <title>Elevated API error rates</title>
      <guid>inc-100</guid>
      <link>https://status.example.com/inc-100</link>
      <description>&lt;p&gt;&lt;strong&gt;API&lt;/strong&gt; affected. Status: Degraded&lt;/p&gt;</description>
      <pubDate>Mon, 02 Jun 2025 15:04:05 GMT</pubDate>
    </item>
    <item>
      <title>Maintenance window complete</title>
      <guid>inc-101</guid>
      <description>&lt;p&gt;Resolved&lt;/p&gt;</description>
      <pubDate>Sun, 01 Jun 2025 02:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

type captureSink struct {
	mu        sync.Mutex
	incidents []models.Incident
}

func (c *captureSink) Name() string { return "capture" }

func (c *captureSink) Emit(_ context.Context, incident models.Incident) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.incidents = append(c.incidents, incident)
	return nil
}

func (c *captureSink) emitted() []models.Incident {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Incident, len(c.incidents))
	copy(out, c.incidents)
	return out
}

func TestPollerCycle(t *testing.T) {
	var hits int
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(rssDocument))
	}))
	defer ts.Close()

	capture := &captureSink{}
	pipe := pipeline.New(dedup.NewStore(), capture, config.PipelineConfig{QueueSize: 32, Workers: 2}, zap.NewNop())
	pipe.Start()

	cfg := config.PollerConfig{
		Feeds:    []config.FeedSource{{Name: "Example", URL: ts.URL}},
		Interval: time.Hour,
	}
	p := New(cfg, fetcher.New(5*time.Second, zap.NewNop()), pipe, zap.NewNop())

	ctx := context.Background()

	// First cycle: changed document, both entries emitted.
	p.checkAllFeeds(ctx)
	// Second cycle: 304, nothing new enters the pipeline.
	p.checkAllFeeds(ctx)
	// Third cycle with the same content would dedup even without the 304.
	p.checkAllFeeds(ctx)

	pipe.Stop()

	emitted := capture.emitted()
	require.Len(t, emitted, 2)
	assert.Equal(t, 3, hits)

	byID := map[string]models.Incident{}
	for _, incident := range emitted {
		byID[incident.ID] = incident
	}

	first, ok := byID["inc-100"]
	require.True(t, ok)
	assert.Equal(t, "Elevated API error rates", first.Title)
	assert.Equal(t, models.OriginPoll, first.Origin)
	assert.Equal(t, "Example", first.SourceName)
	assert.Equal(t, []string{"API"}, first.Components)
	assert.Equal(t, "Degraded", first.Status)
	assert.Equal(t, "https://status.example.com/inc-100", first.Link)

	second, ok := byID["inc-101"]
	require.True(t, ok)
	assert.Equal(t, "Resolved", second.Status)
}

func TestPollerFeedFailureIsolated(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(rssDocument))
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	capture := &captureSink{}
	pipe := pipeline.New(dedup.NewStore(), capture, config.PipelineConfig{QueueSize: 32, Workers: 2}, zap.NewNop())
	pipe.Start()

	cfg := config.PollerConfig{
		Feeds: []config.FeedSource{
			{Name: "Broken", URL: bad.URL},
			{Name: "Example", URL: good.URL},
		},
		Interval: time.Hour,
	}
	p := New(cfg, fetcher.New(5*time.Second, zap.NewNop()), pipe, zap.NewNop())

	p.checkAllFeeds(context.Background())
	pipe.Stop()

	assert.Len(t, capture.emitted(), 2)
}

func TestPollerRunStopsOnCancel(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(rssDocument))
	}))
	defer ts.Close()

	capture := &captureSink{}
	pipe := pipeline.New(dedup.NewStore(), capture, config.PipelineConfig{QueueSize: 32, Workers: 2}, zap.NewNop())
	pipe.Start()
	defer pipe.Stop()

	cfg := config.PollerConfig{
		Feeds:    []config.FeedSource{{Name: "Example", URL: ts.URL}},
		Interval: time.Hour,
	}
	p := New(cfg, fetcher.New(5*time.Second, zap.NewNop()), pipe, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(ctx)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop on context cancellation")
	}
}
