package driving

import (
	"context"

	"github.com/tarxiv/tarxiv/internal/core/domain"
)

// Ingestor drives aggregation and persistence for transient object names.
type Ingestor interface {
	// IngestName aggregates one object by TNS name and persists the
	// result. Returns the finalized record, or an error after retries
	// are exhausted.
	IngestName(ctx context.Context, name string) (*domain.TransientRecord, error)

	// Run consumes notices from the queue until the context is cancelled,
	// ingesting every candidate name.
	Run(ctx context.Context) error

	// Stats returns cumulative pipeline counters.
	Stats() IngestStats
}

// IngestStats are cumulative counters for one pipeline instance.
type IngestStats struct {
	Ingested int
	Failed   int
}

// Monitor polls the notification channel and produces notices.
type Monitor interface {
	// Start runs the polling loop until the context is cancelled, Stop is
	// called, or credentials become fatally invalid
	// (domain.ErrFatalAuth).
	Start(ctx context.Context) error

	// Stop requests a cooperative shutdown; in-flight fetch, parse and
	// enqueue complete before the loop exits.
	Stop()

	// Notices returns the channel the pipeline consumes from. Closed when
	// the monitor stops.
	Notices() <-chan domain.Notice
}
