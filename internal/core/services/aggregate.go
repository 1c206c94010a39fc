package services

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/tarxiv/tarxiv/internal/core/domain"
	"github.com/tarxiv/tarxiv/internal/core/ports/driven"
	"github.com/tarxiv/tarxiv/internal/logger"
)

// DefaultSurveyConcurrency bounds how many survey queries run at once within
// a single aggregation. Each call is independent network I/O; the bound keeps
// us polite towards the surveys' rate limits.
const DefaultSurveyConcurrency = 4

// AggregationEngine fans out to the configured surveys for one transient and
// merges their results into a canonical record under the provenance rules.
type AggregationEngine struct {
	registry *SourceRegistry
	surveys  []driven.Survey
	limit    int
}

// NewAggregationEngine creates an engine over the non-seed surveys.
// The TNS seed metadata is looked up by the caller and passed to Aggregate;
// surveys here are queried by coordinates.
func NewAggregationEngine(registry *SourceRegistry, surveys []driven.Survey, limit int) *AggregationEngine {
	if limit <= 0 {
		limit = DefaultSurveyConcurrency
	}
	return &AggregationEngine{
		registry: registry,
		surveys:  surveys,
		limit:    limit,
	}
}

// Aggregate builds a fresh TransientRecord: seed metadata from TNS first,
// then every survey's contribution, merged in the fixed survey order so the
// output is deterministic regardless of completion order. Survey failures
// are isolated: they are logged and treated as no-match, never propagated.
func (e *AggregationEngine) Aggregate(ctx context.Context, seed *domain.SurveyMeta, target domain.Target) *domain.TransientRecord {
	rec := domain.NewTransientRecord()

	if seed != nil {
		if ref, ok := e.registry.SchemaOf("TNS"); ok {
			rec.RegisterSource(ref)
		}
		rec.MergeMeta(seed)
	}

	results := make([]*domain.SurveyObject, len(e.surveys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.limit)
	for i, survey := range e.surveys {
		g.Go(func() error {
			results[i] = e.query(gctx, survey, target)
			return nil
		})
	}
	// Workers only record into their own slot; the group error is always nil.
	_ = g.Wait()

	// Merge in configured order, not completion order.
	for i, survey := range e.surveys {
		obj := results[i]
		if !obj.Matched() {
			continue
		}
		for _, ref := range survey.Sources() {
			rec.RegisterSource(ref)
		}
		rec.MergeMeta(obj.Meta)
		rec.MergeLightcurve(obj.Lightcurve)
	}

	rec.PeakMags = domain.ComputePeaks(rec.Lightcurve)
	return rec
}

// Surveys returns the configured survey set, in merge order.
func (e *AggregationEngine) Surveys() []driven.Survey {
	return e.surveys
}

// query calls one survey with failure isolation: errors and panics are
// logged and demoted to no-match so the remaining surveys still merge.
func (e *AggregationEngine) query(ctx context.Context, survey driven.Survey, target domain.Target) (obj *domain.SurveyObject) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("survey %s panicked for %q: %v", survey.Name(), target.Name, r)
			obj = nil
		}
	}()

	obj, err := survey.GetObject(ctx, target)
	if err == nil {
		return obj
	}

	switch {
	case errors.Is(err, domain.ErrTransientFailure):
		logger.Warn("survey %s unavailable for %q: %v", survey.Name(), target.Name, err)
	case errors.Is(err, domain.ErrMalformedResponse):
		logger.Warn("survey %s returned malformed response for %q: %v", survey.Name(), target.Name, err)
	default:
		logger.Error("survey %s failed unexpectedly for %q: %v", survey.Name(), target.Name, err)
	}
	return nil
}
