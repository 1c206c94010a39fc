package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/tarxiv/tarxiv/internal/core/domain"
	"github.com/tarxiv/tarxiv/internal/core/ports/driven"
	"github.com/tarxiv/tarxiv/internal/core/ports/driving"
	"github.com/tarxiv/tarxiv/internal/logger"
)

// Pipeline defaults.
const (
	DefaultWorkers      = 2
	DefaultMaxAttempts  = 3
	DefaultRadiusArcsec = 15
)

// Ensure IngestionPipeline implements the interface.
var _ driving.Ingestor = (*IngestionPipeline)(nil)

// PipelineConfig configures the ingestion pipeline.
type PipelineConfig struct {
	// Workers is the number of concurrent queue consumers.
	Workers int
	// MaxAttempts bounds retries of one ingestion on transient failures.
	MaxAttempts int
	// RadiusArcsec is the cone-search radius passed to coordinate surveys.
	RadiusArcsec float64
}

// IngestionPipeline drains the notice queue and drives aggregation: for each
// candidate name it looks up seed metadata at TNS, aggregates the remaining
// surveys by coordinates and upserts the result into the document store.
type IngestionPipeline struct {
	tns     driven.Survey
	engine  *AggregationEngine
	store   driven.DocumentStore
	notices <-chan domain.Notice
	cfg     PipelineConfig

	mu    sync.Mutex
	stats driving.IngestStats
}

// NewIngestionPipeline creates a pipeline. tns must be the name-lookup seed
// survey; notices is the monitor's queue and may be nil when the pipeline is
// only used for one-off IngestName calls.
func NewIngestionPipeline(
	tns driven.Survey,
	engine *AggregationEngine,
	store driven.DocumentStore,
	notices <-chan domain.Notice,
	cfg PipelineConfig,
) *IngestionPipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.RadiusArcsec <= 0 {
		cfg.RadiusArcsec = DefaultRadiusArcsec
	}
	return &IngestionPipeline{
		tns:     tns,
		engine:  engine,
		store:   store,
		notices: notices,
		cfg:     cfg,
	}
}

// Run consumes notices until the queue closes or the context is cancelled.
// A permanently failing candidate is recorded as an event and never halts
// the pipeline.
func (p *IngestionPipeline) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for range p.cfg.Workers {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return gctx.Err()
				case notice, ok := <-p.notices:
					if !ok {
						return nil
					}
					p.processNotice(gctx, notice)
				}
			}
		})
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// processNotice ingests every candidate of one notice.
func (p *IngestionPipeline) processNotice(ctx context.Context, notice domain.Notice) {
	for _, name := range notice.Names {
		if ctx.Err() != nil {
			return
		}
		if _, err := p.IngestName(ctx, name); err != nil {
			p.recordFailure(ctx, name, notice.MessageID, err)
			continue
		}
		p.mu.Lock()
		p.stats.Ingested++
		p.mu.Unlock()
	}
}

// IngestName aggregates and persists one object by TNS name. Transient
// failures are retried with exponential backoff up to the configured attempt
// bound; a confirmed no-match is permanent.
func (p *IngestionPipeline) IngestName(ctx context.Context, name string) (*domain.TransientRecord, error) {
	operation := func() (*domain.TransientRecord, error) {
		rec, err := p.ingestOnce(ctx, name)
		if err != nil && !domain.IsRetryable(err) {
			return nil, backoff.Permanent(err)
		}
		return rec, err
	}

	rec, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(uint(p.cfg.MaxAttempts)),
	)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ingestOnce is a single ingestion attempt: seed, aggregate, persist.
func (p *IngestionPipeline) ingestOnce(ctx context.Context, name string) (*domain.TransientRecord, error) {
	seedObj, err := p.tns.GetObject(ctx, domain.Target{Name: name})
	if err != nil {
		return nil, fmt.Errorf("seed lookup %q: %w", name, err)
	}
	if !seedObj.Matched() {
		return nil, fmt.Errorf("seed lookup %q: %w", name, domain.ErrNoMatch)
	}

	target := p.seedTarget(name, seedObj.Meta)
	rec := p.engine.Aggregate(ctx, seedObj.Meta, target)

	if err := p.store.Upsert(ctx, name, rec.Finalize(), driven.CollectionMeta); err != nil {
		return nil, fmt.Errorf("upsert meta %q: %w", name, err)
	}
	if err := p.store.Upsert(ctx, name, rec.Lightcurve, driven.CollectionLightcurve); err != nil {
		return nil, fmt.Errorf("upsert lightcurve %q: %w", name, err)
	}

	logger.Info("ingested %q (%d sources, %d measurements)", name, len(rec.Sources), len(rec.Lightcurve))
	return rec, nil
}

// seedTarget builds the coordinate target for the remaining surveys from the
// TNS seed metadata.
func (p *IngestionPipeline) seedTarget(name string, seed *domain.SurveyMeta) domain.Target {
	target := domain.Target{Name: name, RadiusArcsec: p.cfg.RadiusArcsec}
	target.RA = seedFloat(seed, "ra_deg")
	target.Dec = seedFloat(seed, "dec_deg")
	return target
}

// seedFloat pulls the first float contribution for a field key.
func seedFloat(meta *domain.SurveyMeta, key string) float64 {
	fields := meta.Fields[key]
	if len(fields) == 0 {
		return 0
	}
	if v, ok := fields[0].Value.(float64); ok {
		return v
	}
	return 0
}

// recordFailure persists a non-fatal failed-ingestion event and advances the
// failure counter.
func (p *IngestionPipeline) recordFailure(ctx context.Context, name, messageID string, cause error) {
	p.mu.Lock()
	p.stats.Failed++
	p.mu.Unlock()

	logger.Warn("ingestion failed for %q: %v", name, cause)

	event := map[string]any{
		"object_name": name,
		"message_id":  messageID,
		"error":       cause.Error(),
		"recorded_at": time.Now().UTC().Format(time.RFC3339),
	}
	if err := p.store.Upsert(ctx, uuid.NewString(), event, driven.CollectionEvents); err != nil {
		logger.Warn("recording ingestion failure for %q: %v", name, err)
	}
}

// Stats returns cumulative pipeline counters.
func (p *IngestionPipeline) Stats() driving.IngestStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}
