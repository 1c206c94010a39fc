// Package atlas queries the ATLAS transient web server. ATLAS contributes
// detections from its survey telescopes plus the Sherlock crossmatch, which
// supplies the only redshift estimate carried for objects TNS has none for.
package atlas

import (
	"context"
	"fmt"

	"github.com/tarxiv/tarxiv/internal/core/domain"
	"github.com/tarxiv/tarxiv/internal/core/ports/driven"
)

// Ensure Connector implements the interface.
var _ driven.Survey = (*Connector)(nil)

// Connector adapts the ATLAS transient server to the Survey port.
type Connector struct {
	client  *Client
	sources []domain.SourceRef
}

// NewConnector creates an ATLAS survey connector.
func NewConnector(cfg Config, sources []domain.SourceRef) *Connector {
	return &Connector{
		client:  NewClient(cfg),
		sources: sources,
	}
}

// Name returns the survey label.
func (c *Connector) Name() string {
	return domain.SurveyATLAS
}

// Sources returns the provenance header records for ATLAS.
func (c *Connector) Sources() []domain.SourceRef {
	return c.sources
}

// GetObject resolves the nearest ATLAS source to the target and returns its
// metadata and detection lightcurve. The web-server internal id and the
// survey designation are recorded as distinct identifiers because they come
// from distinct catalogues.
func (c *Connector) GetObject(ctx context.Context, target domain.Target) (*domain.SurveyObject, error) {
	if !target.HasCoordinates() {
		return nil, fmt.Errorf("%w: atlas requires coordinates", domain.ErrInvalidInput)
	}

	atlasID, err := c.client.ConeSearch(ctx, target.RA, target.Dec, target.RadiusArcsec)
	if err != nil {
		return nil, err
	}
	if atlasID == 0 {
		return &domain.SurveyObject{}, nil
	}

	src, err := c.client.GetSource(ctx, atlasID)
	if err != nil {
		return nil, err
	}
	if src == nil {
		return &domain.SurveyObject{}, nil
	}

	meta := &domain.SurveyMeta{
		Identifiers: []domain.Identifier{
			{Name: fmt.Sprintf("%d", src.Object.ID), Source: domain.SourceATLASWeb},
		},
	}
	if src.Object.Designation != nil {
		meta.Identifiers = append(meta.Identifiers, domain.Identifier{
			Name:   *src.Object.Designation,
			Source: domain.SourceATLASSurvey,
		})
	}
	// Sherlock lists crossmatches best first; only the top one is kept.
	if len(src.Sherlock) > 0 && src.Sherlock[0].Z != nil {
		meta.AddField("redshift", *src.Sherlock[0].Z, domain.SourceSherlock)
	}

	lc := make([]domain.Measurement, 0, len(src.LC))
	for _, row := range src.LC {
		limit := row.Mag5Sig
		unit := row.ExpName
		if len(unit) > 3 {
			unit = unit[:3]
		}
		lc = append(lc, domain.Measurement{
			MJD:    row.MJD,
			Mag:    row.Mag,
			MagErr: row.MagErr,
			Limit:  &limit,
			Filter: row.Filter,
			Unit:   unit,
			Survey: domain.SurveyATLAS,
		})
	}

	return &domain.SurveyObject{Meta: meta, Lightcurve: lc}, nil
}

// Close releases the underlying client.
func (c *Connector) Close() error {
	return c.client.Close()
}
