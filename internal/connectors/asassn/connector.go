// Package asassn queries the ASAS-SN SkyPatrol service. SkyPatrol performs
// forced photometry at every master-list position, so a positional match is
// common even for objects ASAS-SN never detected; bad-image rows and
// non-detections are filtered before the lightcurve is returned.
package asassn

import (
	"context"
	"fmt"
	"strconv"

	"github.com/tarxiv/tarxiv/internal/core/domain"
	"github.com/tarxiv/tarxiv/internal/core/ports/driven"
)

// Ensure Connector implements the interface.
var _ driven.Survey = (*Connector)(nil)

// Connector adapts SkyPatrol to the Survey port.
type Connector struct {
	client  *Client
	sources []domain.SourceRef
}

// NewConnector creates an ASAS-SN survey connector.
func NewConnector(cfg Config, sources []domain.SourceRef) *Connector {
	return &Connector{
		client:  NewClient(cfg),
		sources: sources,
	}
}

// Name returns the survey label.
func (c *Connector) Name() string {
	return domain.SurveyASASSN
}

// Sources returns the provenance header records for ASAS-SN.
func (c *Connector) Sources() []domain.SourceRef {
	return c.sources
}

// GetObject cone-searches the master list and returns the nearest source's
// lightcurve. A catalogue match with no photometry still counts as a match:
// the identifier is returned with an empty lightcurve.
func (c *Connector) GetObject(ctx context.Context, target domain.Target) (*domain.SurveyObject, error) {
	if !target.HasCoordinates() {
		return nil, fmt.Errorf("%w: asas-sn requires coordinates", domain.ErrInvalidInput)
	}

	rows, err := c.client.ConeSearch(ctx, target.RA, target.Dec, target.RadiusArcsec)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &domain.SurveyObject{}, nil
	}
	nearest := rows[0]

	meta := &domain.SurveyMeta{
		Identifiers: []domain.Identifier{
			{Name: strconv.FormatInt(nearest.ID, 10), Source: domain.SourceASASSNPatrol},
		},
	}

	epochs, err := c.client.GetLightcurve(ctx, nearest.ID)
	if err != nil {
		return nil, err
	}

	lc := make([]domain.Measurement, 0, len(epochs))
	for _, row := range epochs {
		if row.Quality == "B" {
			continue
		}
		if row.MagErr >= domain.NonDetectionErr {
			continue
		}
		limit := row.Limit
		lc = append(lc, domain.Measurement{
			MJD:    domain.JDToMJD(row.JD),
			Mag:    row.Mag,
			MagErr: row.MagErr,
			Limit:  &limit,
			Filter: row.Filter,
			Unit:   row.Camera,
			Survey: domain.SurveyASASSN,
		})
	}

	return &domain.SurveyObject{Meta: meta, Lightcurve: lc}, nil
}

// Close releases the underlying client.
func (c *Connector) Close() error {
	return c.client.Close()
}
