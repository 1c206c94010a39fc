// Package tns queries the Transient Name Server, the authoritative registry
// of newly reported transients. TNS is the seed source for every ingestion:
// it resolves a name to coordinates and discovery metadata, and it is the
// only survey queried by name rather than by cone search. TNS never returns
// lightcurve rows.
package tns

import (
	"context"
	"fmt"

	"github.com/tarxiv/tarxiv/internal/core/domain"
	"github.com/tarxiv/tarxiv/internal/core/ports/driven"
)

// Ensure Connector implements the interface.
var _ driven.Survey = (*Connector)(nil)

// Connector adapts the TNS API to the Survey port.
type Connector struct {
	client  *Client
	sources []domain.SourceRef
}

// NewConnector creates a TNS survey connector. sources are the provenance
// header records registered when TNS contributes to a record.
func NewConnector(cfg Config, sources []domain.SourceRef) *Connector {
	return &Connector{
		client:  NewClient(cfg),
		sources: sources,
	}
}

// Name returns the survey label.
func (c *Connector) Name() string {
	return domain.SurveyTNS
}

// Sources returns the provenance header records for TNS.
func (c *Connector) Sources() []domain.SourceRef {
	return c.sources
}

// GetObject looks the target up by name and normalises the discovery
// metadata. Redshift and hostname are optional on the wire and included only
// when present.
func (c *Connector) GetObject(ctx context.Context, target domain.Target) (*domain.SurveyObject, error) {
	if target.Name == "" {
		return nil, fmt.Errorf("%w: tns requires an object name", domain.ErrInvalidInput)
	}

	reply, err := c.client.GetObject(ctx, target.Name)
	if err != nil {
		return nil, err
	}
	if reply == nil {
		return &domain.SurveyObject{}, nil
	}

	meta := &domain.SurveyMeta{
		Identifiers: []domain.Identifier{{Name: reply.ObjName, Source: domain.SourceTNS}},
	}
	meta.AddField("ra_deg", reply.RADeg, domain.SourceTNS)
	meta.AddField("dec_deg", reply.DecDeg, domain.SourceTNS)
	meta.AddField("ra_hms", reply.RA, domain.SourceTNS)
	meta.AddField("dec_dms", reply.Dec, domain.SourceTNS)
	meta.AddField("object_type", reply.NamePrefix, domain.SourceTNS)
	meta.AddField("object_type", reply.ObjectType.Name, domain.SourceTNS)
	meta.AddField("discovery_date", reply.DiscoveryDate, domain.SourceTNS)
	meta.AddField("reporting_group", reply.Reporters.GroupName, domain.SourceTNS)
	meta.AddField("discovery_data_source", reply.DataSource.GroupName, domain.SourceTNS)
	if reply.Redshift != nil {
		meta.AddField("redshift", *reply.Redshift, domain.SourceTNS)
	}
	if reply.HostName != nil {
		meta.AddField("host_name", *reply.HostName, domain.SourceTNS)
	}

	return &domain.SurveyObject{Meta: meta}, nil
}

// DownloadBulk fetches the public object list for bulk back-processing.
func (c *Connector) DownloadBulk(ctx context.Context) ([]string, error) {
	return c.client.DownloadBulk(ctx)
}

// Close releases the underlying client.
func (c *Connector) Close() error {
	return c.client.Close()
}
