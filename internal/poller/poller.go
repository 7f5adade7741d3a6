// Package poller drives the pull origin: a fixed-interval loop that
// fetches every configured feed concurrently and streams parsed entries
// into the pipeline.
package poller

import (
	"context"
	"sync"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/marminbh/statuswatch/internal/config"
	"github.com/marminbh/statuswatch/internal/fetcher"
	"github.com/marminbh/statuswatch/internal/pipeline"
)

type Poller struct {
	feeds    []config.FeedSource
	interval time.Duration
	fetcher  *fetcher.Fetcher
	pipe     *pipeline.Pipeline
	parser   *gofeed.Parser
	logger   *zap.Logger
}

func New(cfg config.PollerConfig, f *fetcher.Fetcher, pipe *pipeline.Pipeline, logger *zap.Logger) *Poller {
	return &Poller{
		feeds:    cfg.Feeds,
		interval: cfg.Interval,
		fetcher:  f,
		pipe:     pipe,
		parser:   gofeed.NewParser(),
		logger:   logger,
	}
}

// Run polls all feeds once immediately, then on every interval tick until
// ctx is cancelled. Blocking; run it on its own goroutine.
func (p *Poller) Run(ctx context.Context) {
	if len(p.feeds) == 0 {
		p.logger.Info("No feeds configured, poller idle")
		return
	}

	p.logger.Info("Poller started",
		zap.Int("feeds", len(p.feeds)),
		zap.Duration("interval", p.interval),
	)

	p.checkAllFeeds(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("Poller stopped")
			return
		case <-ticker.C:
			p.checkAllFeeds(ctx)
		}
	}
}

// checkAllFeeds fetches every feed on its own goroutine. Failures are
// isolated per feed: one feed erroring never blocks or fails the others.
func (p *Poller) checkAllFeeds(ctx context.Context) {
	var wg sync.WaitGroup
	for _, feed := range p.feeds {
		wg.Add(1)
		go func(feed config.FeedSource) {
			defer wg.Done()
			p.checkFeed(ctx, feed)
		}(feed)
	}
	wg.Wait()
}

// checkFeed fetches one feed and, when the document changed, enqueues its
// entries in document order. Unchanged (304) and failed fetches are no-ops.
func (p *Poller) checkFeed(ctx context.Context, feed config.FeedSource) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Unexpected failure checking feed",
				zap.String("feed", feed.Name),
				zap.Any("panic", r),
			)
		}
	}()

	content, changed := p.fetcher.Fetch(ctx, feed.Name, feed.URL)
	if !changed {
		return
	}

	parsed, err := p.parser.ParseString(string(content))
	if err != nil {
		p.logger.Error("Failed to parse feed document",
			zap.String("feed", feed.Name),
			zap.Error(err),
		)
		return
	}

	for _, entry := range parsed.Items {
		p.pipe.EnqueueEntry(feed.Name, entry)
	}

	p.logger.Debug("Feed checked",
		zap.String("feed", feed.Name),
		zap.Int("entries", len(parsed.Items)),
	)
}
