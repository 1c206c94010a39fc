// Package ztf queries the Fink alert broker for ZTF photometry. Fink serves
// the full ZTF alert history by cone search plus the Mangrove host-galaxy
// crossmatch, which is the only host association carried for ZTF objects.
package ztf

import (
	"context"
	"fmt"

	"github.com/tarxiv/tarxiv/internal/core/domain"
	"github.com/tarxiv/tarxiv/internal/core/ports/driven"
	"github.com/tarxiv/tarxiv/internal/logger"
)

// Ensure Connector implements the interface.
var _ driven.Survey = (*Connector)(nil)

// filterNames maps the ZTF filter id to its bandpass name.
var filterNames = map[int]string{1: "g", 2: "R", 3: "i"}

// Connector adapts the Fink broker to the Survey port.
type Connector struct {
	client  *Client
	sources []domain.SourceRef
}

// NewConnector creates a ZTF survey connector backed by Fink.
func NewConnector(cfg Config, sources []domain.SourceRef) *Connector {
	return &Connector{
		client:  NewClient(cfg),
		sources: sources,
	}
}

// Name returns the survey label.
func (c *Connector) Name() string {
	return domain.SurveyZTF
}

// Sources returns the provenance header records for ZTF.
func (c *Connector) Sources() []domain.SourceRef {
	return c.sources
}

// GetObject cone-searches Fink around the target and returns the matched
// object's metadata and lightcurve. When the cone contains several ZTF
// objects the first, nearest, is taken.
func (c *Connector) GetObject(ctx context.Context, target domain.Target) (*domain.SurveyObject, error) {
	if !target.HasCoordinates() {
		return nil, fmt.Errorf("%w: ztf requires coordinates", domain.ErrInvalidInput)
	}

	ids, err := c.client.ConeSearch(ctx, target.RA, target.Dec, target.RadiusArcsec)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return &domain.SurveyObject{}, nil
	}
	if len(ids) > 1 {
		logger.Warn("ztf: %d objects within %.0f arcsec of %q, keeping %s",
			len(ids), target.RadiusArcsec, target.Name, ids[0])
	}
	objectID := ids[0]

	rows, err := c.client.GetObject(ctx, objectID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		// Cone search hit but the id query missed; Fink is internally
		// inconsistent here, report a miss.
		return &domain.SurveyObject{}, nil
	}

	meta := &domain.SurveyMeta{
		Identifiers: []domain.Identifier{{Name: objectID, Source: domain.SourceZTF}},
	}
	// Mangrove crossmatch columns repeat on every row; Fink encodes an
	// absent association as the literal string "None".
	if name := rows[0].Mangrove2MASS; name != "" && name != "None" {
		meta.AddField("host_name", name, domain.SourceMangrove)
	}
	if name := rows[0].MangroveLEDA; name != "" && name != "None" {
		meta.AddField("host_name", name, domain.SourceMangrove)
	}

	lc := make([]domain.Measurement, 0, len(rows))
	for _, row := range rows {
		filter, ok := filterNames[row.FID]
		if !ok {
			// Only g, R and i exist for ZTF; anything else is a broker
			// artefact and the row is dropped.
			logger.Warn("ztf: %s: dropping row with unknown filter id %d", objectID, row.FID)
			continue
		}
		limit := row.DiffMagLim
		lc = append(lc, domain.Measurement{
			MJD:    domain.JDToMJD(row.JD),
			Mag:    row.MagPSF,
			MagErr: row.SigmaPSF,
			Limit:  &limit,
			Filter: filter,
			Unit:   "main",
			Survey: domain.SurveyZTF,
		})
	}

	return &domain.SurveyObject{Meta: meta, Lightcurve: lc}, nil
}

// Close releases the underlying client.
func (c *Connector) Close() error {
	return c.client.Close()
}
