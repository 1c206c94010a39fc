package services

import (
	"github.com/tarxiv/tarxiv/internal/core/domain"
)

// SourceRegistry is the immutable mapping from survey or catalogue name to
// its provenance record. It is built once at startup and read-only for the
// process lifetime, so it is safe to share across concurrent survey calls
// without synchronisation.
type SourceRegistry struct {
	byName map[string]domain.SourceRef
}

// NewSourceRegistry builds the static source table. The numeric ids match
// the published tarxiv schema.
func NewSourceRegistry() *SourceRegistry {
	refs := []domain.SourceRef{
		{ID: domain.SourceTNS, Name: "TNS", URL: "https://www.wis-tns.org"},
		{ID: domain.SourceATLASWeb, Name: "ATLAS_web", URL: "https://star.pst.qub.ac.uk/sne/atlas4"},
		{ID: domain.SourceATLASSurvey, Name: "ATLAS_survey", URL: "https://fallingstar-data.com"},
		{ID: domain.SourceZTF, Name: "ZTF", URL: "https://www.ztf.caltech.edu"},
		{ID: domain.SourceASASSNSurvey, Name: "ASAS-SN_survey", URL: "https://www.astronomy.ohio-state.edu/asassn"},
		{ID: domain.SourceASASSNPatrol, Name: "ASAS-SN_skypatrol", URL: "http://asas-sn.ifa.hawaii.edu/skypatrol"},
		{ID: domain.SourceSherlock, Name: "SHERLOCK", URL: "https://github.com/thespacedoctor/sherlock"},
		{ID: domain.SourceMangrove, Name: "MANGROVE", URL: "https://mangrove.lal.in2p3.fr"},
	}

	byName := make(map[string]domain.SourceRef, len(refs))
	for _, ref := range refs {
		byName[ref.Name] = ref
	}
	return &SourceRegistry{byName: byName}
}

// IDOf returns the numeric source id for a registered name.
func (r *SourceRegistry) IDOf(name string) (domain.SourceID, bool) {
	ref, ok := r.byName[name]
	return ref.ID, ok
}

// SchemaOf returns the provenance header record for a registered name.
func (r *SourceRegistry) SchemaOf(name string) (domain.SourceRef, bool) {
	ref, ok := r.byName[name]
	return ref, ok
}
