package driven

import (
	"context"

	"github.com/tarxiv/tarxiv/internal/core/domain"
)

// Survey queries one external survey or data source for a transient.
// Each survey type (tns, ztf, atlas, asassn) implements this interface.
type Survey interface {
	// Name returns the survey label written into lightcurve rows,
	// e.g. "ZTF".
	Name() string

	// Sources returns the provenance header records this survey can
	// contribute, registered on a record whenever GetObject matches.
	Sources() []domain.SourceRef

	// GetObject queries the survey for the target and normalises the
	// response. A confirmed no-match returns a SurveyObject with nil Meta
	// and no error. Network, timeout and 5xx conditions return an error
	// wrapping domain.ErrTransientFailure; unexpected response shapes
	// return domain.ErrMalformedResponse. The aggregation engine demotes
	// any error to no-match after logging, so one survey's failure never
	// blocks the others.
	GetObject(ctx context.Context, target domain.Target) (*domain.SurveyObject, error)

	// Close releases the survey's client resources.
	Close() error
}
