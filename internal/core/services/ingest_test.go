package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tarxiv/tarxiv/internal/adapters/driven/storage/memory"
	"github.com/tarxiv/tarxiv/internal/core/domain"
	"github.com/tarxiv/tarxiv/internal/core/ports/driven"
)

// seedSurvey mimics the TNS name lookup.
type seedSurvey struct {
	objects map[string]*domain.SurveyMeta
	errs    map[string]error
	calls   int
}

func (s *seedSurvey) Name() string                { return domain.SurveyTNS }
func (s *seedSurvey) Sources() []domain.SourceRef { return nil }
func (s *seedSurvey) Close() error                { return nil }

func (s *seedSurvey) GetObject(_ context.Context, target domain.Target) (*domain.SurveyObject, error) {
	s.calls++
	if err := s.errs[target.Name]; err != nil {
		return nil, err
	}
	meta, ok := s.objects[target.Name]
	if !ok {
		return &domain.SurveyObject{}, nil
	}
	return &domain.SurveyObject{Meta: meta}, nil
}

func newSeedSurvey(names ...string) *seedSurvey {
	s := &seedSurvey{
		objects: make(map[string]*domain.SurveyMeta),
		errs:    make(map[string]error),
	}
	for _, name := range names {
		meta := &domain.SurveyMeta{
			Identifiers: []domain.Identifier{{Name: name, Source: domain.SourceTNS}},
		}
		meta.AddField("ra_deg", 37.044652, domain.SourceTNS)
		meta.AddField("dec_deg", 28.326629, domain.SourceTNS)
		s.objects[name] = meta
	}
	return s
}

func TestIngestNamePersistsMetaAndLightcurve(t *testing.T) {
	reg := NewSourceRegistry()
	ztfRef, _ := reg.SchemaOf("ZTF")
	ztf := &fakeSurvey{
		name:    domain.SurveyZTF,
		sources: []domain.SourceRef{ztfRef},
		obj: &domain.SurveyObject{
			Meta: &domain.SurveyMeta{
				Identifiers: []domain.Identifier{{Name: "ZTF24abeiqfc", Source: domain.SourceZTF}},
			},
			Lightcurve: []domain.Measurement{
				{MJD: 60001, Mag: 17.8, MagErr: 0.05, Filter: "g", Unit: "main", Survey: domain.SurveyZTF},
			},
		},
	}
	engine := NewAggregationEngine(reg, []driven.Survey{ztf}, 1)
	store := memory.NewDocumentStore()
	pipeline := NewIngestionPipeline(newSeedSurvey("2024utu"), engine, store, nil, PipelineConfig{})

	rec, err := pipeline.IngestName(context.Background(), "2024utu")
	require.NoError(t, err)
	assert.Equal(t, "2024utu", rec.Name())

	raw, err := store.Get(context.Background(), "2024utu", driven.CollectionMeta)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Contains(t, doc, "identifiers")
	assert.Contains(t, doc, "peak_mag")

	raw, err = store.Get(context.Background(), "2024utu", driven.CollectionLightcurve)
	require.NoError(t, err)
	var lc []domain.Measurement
	require.NoError(t, json.Unmarshal(raw, &lc))
	require.Len(t, lc, 1)
	assert.Equal(t, 17.8, lc[0].Mag)
}

func TestIngestNameNoMatchIsPermanent(t *testing.T) {
	seed := newSeedSurvey() // knows no objects
	engine := NewAggregationEngine(NewSourceRegistry(), nil, 1)
	pipeline := NewIngestionPipeline(seed, engine, memory.NewDocumentStore(), nil, PipelineConfig{MaxAttempts: 3})

	_, err := pipeline.IngestName(context.Background(), "2024nope")
	assert.ErrorIs(t, err, domain.ErrNoMatch)
	// Permanent failures are not retried.
	assert.Equal(t, 1, seed.calls)
}

func TestIngestNameRetriesTransientSeedFailure(t *testing.T) {
	seed := newSeedSurvey("2024utu")
	seed.errs["2024utu"] = domain.ErrTransientFailure
	engine := NewAggregationEngine(NewSourceRegistry(), nil, 1)
	pipeline := NewIngestionPipeline(seed, engine, memory.NewDocumentStore(), nil, PipelineConfig{MaxAttempts: 2})

	_, err := pipeline.IngestName(context.Background(), "2024utu")
	assert.ErrorIs(t, err, domain.ErrTransientFailure)
	assert.Equal(t, 2, seed.calls)
}

func TestRunRecordsFailedIngestionAndContinues(t *testing.T) {
	seed := newSeedSurvey("2024good")
	engine := NewAggregationEngine(NewSourceRegistry(), nil, 1)
	store := memory.NewDocumentStore()

	notices := make(chan domain.Notice, 1)
	notices <- domain.Notice{MessageID: "msg-1", Names: []string{"2024bad", "2024good"}}
	close(notices)

	pipeline := NewIngestionPipeline(seed, engine, store, notices, PipelineConfig{Workers: 1, MaxAttempts: 1})
	require.NoError(t, pipeline.Run(context.Background()))

	stats := pipeline.Stats()
	assert.Equal(t, 1, stats.Ingested)
	assert.Equal(t, 1, stats.Failed)

	// The good candidate landed despite the bad one failing first.
	_, err := store.Get(context.Background(), "2024good", driven.CollectionMeta)
	assert.NoError(t, err)
	// The failure was recorded as an event document.
	assert.Equal(t, 1, store.Len(driven.CollectionEvents))
}

func TestRunStopsOnContextCancel(t *testing.T) {
	notices := make(chan domain.Notice) // never closed
	pipeline := NewIngestionPipeline(
		newSeedSurvey(), NewAggregationEngine(NewSourceRegistry(), nil, 1),
		memory.NewDocumentStore(), notices, PipelineConfig{Workers: 2},
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pipeline.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pipeline did not stop on cancel")
	}
}
