// Package pipeline coordinates ingestion for both origins: verify (push
// only), normalize, dedup-gate, emit. Handoff from the transport boundary
// is a bounded queue, so webhook acks never wait on pipeline completion.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/marminbh/statuswatch/internal/config"
	"github.com/marminbh/statuswatch/internal/dedup"
	"github.com/marminbh/statuswatch/internal/models"
	"github.com/marminbh/statuswatch/internal/normalize"
	"github.com/marminbh/statuswatch/internal/signature"
	"github.com/marminbh/statuswatch/internal/sink"
)

// emitTimeout bounds a single sink delivery so a stuck sink cannot wedge a
// worker indefinitely.
const emitTimeout = 10 * time.Second

// PushSignature carries the signature material of an inbound webhook.
// An empty Secret disables verification for the item.
type PushSignature struct {
	Scheme    signature.Scheme
	MsgID     string
	Timestamp string
	Value     string
	Secret    string
}

// item is one unit of work. Exactly one of payload/entry is set,
// according to origin.
type item struct {
	ingestID uuid.UUID
	origin   models.Origin
	provider string
	payload  []byte
	sig      PushSignature
	entry    *gofeed.Item
}

// Pipeline owns the ingest queue and worker pool. The dedup store and sink
// are injected so tests can construct isolated instances.
type Pipeline struct {
	store   *dedup.Store
	sink    sink.Sink
	logger  *zap.Logger
	queue   chan item
	workers int

	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

func New(store *dedup.Store, out sink.Sink, cfg config.PipelineConfig, logger *zap.Logger) *Pipeline {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = 4
	}
	return &Pipeline{
		store:   store,
		sink:    out,
		logger:  logger,
		queue:   make(chan item, queueSize),
		workers: workers,
	}
}

// Start launches the worker pool.
func (p *Pipeline) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	p.logger.Info("Pipeline started",
		zap.Int("workers", p.workers),
		zap.Int("queue_size", cap(p.queue)),
	)
}

// Stop closes the intake and waits for in-flight and queued items to
// finish processing. Items are never aborted mid-normalization; they are
// either fully processed or were never accepted.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	p.logger.Info("Pipeline stopped")
}

// EnqueuePush hands a webhook payload to the pipeline. Returns false when
// the intake is closed or the queue is full; the caller's ack to the
// sender is independent of the outcome either way.
func (p *Pipeline) EnqueuePush(provider string, payload []byte, sig PushSignature) bool {
	return p.enqueue(item{
		ingestID: uuid.New(),
		origin:   models.OriginPush,
		provider: provider,
		payload:  payload,
		sig:      sig,
	})
}

// EnqueueEntry hands one parsed feed entry to the pipeline.
func (p *Pipeline) EnqueueEntry(sourceName string, entry *gofeed.Item) bool {
	return p.enqueue(item{
		ingestID: uuid.New(),
		origin:   models.OriginPoll,
		provider: sourceName,
		entry:    entry,
	})
}

func (p *Pipeline) enqueue(it item) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.logger.Warn("Pipeline intake closed, dropping item",
			zap.String("origin", it.origin.String()),
			zap.String("source", it.provider),
		)
		return false
	}
	select {
	case p.queue <- it:
		return true
	default:
		p.logger.Warn("Pipeline queue full, dropping item",
			zap.String("origin", it.origin.String()),
			zap.String("source", it.provider),
			zap.String("ingest_id", it.ingestID.String()),
		)
		return false
	}
}

func (p *Pipeline) worker() {
	defer p.wg.Done()
	for it := range p.queue {
		p.process(it)
	}
}

// process runs one item through verify/normalize/dedup/emit. Every failure
// is terminal for the item and absorbed here: nothing a single payload does
// can take the worker down or affect sibling items.
func (p *Pipeline) process(it item) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("Unexpected failure processing item",
				zap.String("origin", it.origin.String()),
				zap.String("source", it.provider),
				zap.String("ingest_id", it.ingestID.String()),
				zap.Any("panic", r),
			)
		}
	}()

	switch it.origin {
	case models.OriginPush:
		p.processPush(it)
	case models.OriginPoll:
		p.processEntry(it)
	}
}

func (p *Pipeline) processPush(it item) {
	if it.sig.Secret != "" {
		if !p.verify(it) {
			p.logger.Warn("Webhook signature verification failed, dropping",
				zap.String("source", it.provider),
				zap.String("ingest_id", it.ingestID.String()),
			)
			return
		}
	} else {
		p.logger.Debug("No webhook secret configured, skipping verification",
			zap.String("source", it.provider),
		)
	}

	incident, err := normalize.Push(it.payload, it.provider, time.Now().UTC())
	if err != nil {
		p.logger.Error("Failed to normalize webhook payload",
			zap.String("source", it.provider),
			zap.String("ingest_id", it.ingestID.String()),
			zap.Error(err),
		)
		return
	}

	p.gate(it, incident)
}

func (p *Pipeline) verify(it item) bool {
	switch it.sig.Scheme {
	case signature.SchemeTimestamped:
		return signature.VerifyTimestamped(it.payload, it.sig.MsgID, it.sig.Timestamp, it.sig.Value, it.sig.Secret)
	case signature.SchemePlain:
		return signature.VerifyPlain(it.payload, it.sig.Value, it.sig.Secret)
	}
	return false
}

func (p *Pipeline) processEntry(it item) {
	if it.entry == nil {
		return
	}
	incident := normalize.Entry(it.entry, it.provider, time.Now().UTC())
	p.gate(it, incident)
}

// gate is the single dedup decision point. CheckAndMark tests and inserts
// atomically, so concurrent arrivals of one identity get exactly one emit.
func (p *Pipeline) gate(it item, incident models.Incident) {
	if !p.store.CheckAndMark(incident.ID) {
		p.logger.Debug("Duplicate incident, dropping",
			zap.String("incident_id", incident.ID),
			zap.String("origin", it.origin.String()),
			zap.String("source", it.provider),
		)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), emitTimeout)
	defer cancel()

	if err := p.sink.Emit(ctx, incident); err != nil {
		// The id stays marked: emission is at-most-once, never repeated.
		p.logger.Error("Failed to emit incident",
			zap.String("incident_id", incident.ID),
			zap.String("sink", p.sink.Name()),
			zap.Error(err),
		)
		return
	}

	p.logger.Info("Incident emitted",
		zap.String("incident_id", incident.ID),
		zap.String("origin", it.origin.String()),
		zap.String("source", it.provider),
		zap.String("status", incident.Status),
		zap.String("ingest_id", it.ingestID.String()),
	)
}
