package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tarxiv/tarxiv/internal/adapters/driven/storage/sqlite"
	"github.com/tarxiv/tarxiv/internal/config"
	"github.com/tarxiv/tarxiv/internal/connectors/asassn"
	"github.com/tarxiv/tarxiv/internal/connectors/atlas"
	"github.com/tarxiv/tarxiv/internal/connectors/tns"
	"github.com/tarxiv/tarxiv/internal/connectors/ztf"
	"github.com/tarxiv/tarxiv/internal/core/domain"
	"github.com/tarxiv/tarxiv/internal/core/ports/driven"
	"github.com/tarxiv/tarxiv/internal/core/services"
	"github.com/tarxiv/tarxiv/internal/logger"
)

// app bundles the wired adapters and services a command needs. Close
// releases them in reverse construction order.
type app struct {
	cfg      *config.Config
	registry *services.SourceRegistry
	tns      *tns.Connector
	engine   *services.AggregationEngine
	store    driven.DocumentStore

	closers []func() error
}

// loadConfig reads the configuration from --config or the default location.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(home, ".tarxiv", "config.toml")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// buildApp wires the connectors, aggregation engine and document store from
// configuration.
func buildApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	registry := services.NewSourceRegistry()
	a := &app{cfg: cfg, registry: registry}

	rateDelay, err := cfg.TNSRateDelay()
	if err != nil {
		return nil, err
	}

	a.tns = tns.NewConnector(tns.Config{
		Site:      cfg.TNS.Site,
		APIKey:    cfg.TNS.APIKey,
		BotID:     cfg.TNS.BotID,
		BotType:   cfg.TNS.BotType,
		BotName:   cfg.TNS.BotName,
		RateDelay: rateDelay,
	}, refsFor(registry, "TNS"))
	a.closers = append(a.closers, a.tns.Close)

	atlasConn := atlas.NewConnector(atlas.Config{
		URL:   cfg.ATLAS.URL,
		Token: cfg.ATLAS.Token,
	}, refsFor(registry, "ATLAS_web", "ATLAS_survey", "SHERLOCK"))
	a.closers = append(a.closers, atlasConn.Close)

	ztfConn := ztf.NewConnector(ztf.Config{
		URL: cfg.Fink.URL,
	}, refsFor(registry, "ZTF", "MANGROVE"))
	a.closers = append(a.closers, ztfConn.Close)

	asassnConn := asassn.NewConnector(asassn.Config{
		URL: cfg.ASASSN.URL,
	}, refsFor(registry, "ASAS-SN_survey", "ASAS-SN_skypatrol"))
	a.closers = append(a.closers, asassnConn.Close)

	a.engine = services.NewAggregationEngine(registry,
		[]driven.Survey{atlasConn, ztfConn, asassnConn},
		services.DefaultSurveyConcurrency)

	store, err := sqlite.NewStore(cfg.Database.DataDir)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.store = store
	a.closers = append(a.closers, store.Close)

	return a, nil
}

// pipeline creates an ingestion pipeline over the app's wiring. notices may
// be nil for one-off ingestion.
func (a *app) pipeline(notices <-chan domain.Notice) *services.IngestionPipeline {
	return services.NewIngestionPipeline(a.tns, a.engine, a.store, notices, services.PipelineConfig{
		Workers:      a.cfg.Ingest.Workers,
		MaxAttempts:  a.cfg.Ingest.MaxAttempts,
		RadiusArcsec: a.cfg.Ingest.RadiusArcsec,
	})
}

// Close releases everything buildApp wired, last first.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Warn("closing: %v", err)
		}
	}
}

// refsFor resolves registered provenance records by name. Names are from
// the static table, so a miss is a programming error.
func refsFor(registry *services.SourceRegistry, names ...string) []domain.SourceRef {
	refs := make([]domain.SourceRef, 0, len(names))
	for _, name := range names {
		ref, ok := registry.SchemaOf(name)
		if !ok {
			panic(fmt.Sprintf("unregistered source %q", name))
		}
		refs = append(refs, ref)
	}
	return refs
}

// parseInterval converts a config duration string, falling back on error.
func parseInterval(raw string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
