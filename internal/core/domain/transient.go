package domain

import "sort"

// NonDetectionErr is the magnitude-error sentinel surveys use to flag a
// non-detection. Rows with mag_err at or above this value are excluded from
// lightcurves unless non-detections are explicitly requested.
const NonDetectionErr = 99

// Identifier is a survey-local designation for a transient, with the source
// that assigned it.
type Identifier struct {
	Name   string   `json:"name"`
	Source SourceID `json:"source"`
}

// Field is one metadata datum with its provenance. Every value carries
// exactly one source; provenance is assigned by the adapter that produced the
// value, never inferred later.
type Field struct {
	Value  any      `json:"value"`
	Source SourceID `json:"source"`
}

// Measurement is a single photometric point in a lightcurve.
// Limit is the 5-sigma limiting magnitude where the survey reports one.
type Measurement struct {
	MJD    float64  `json:"mjd"`
	Mag    float64  `json:"mag"`
	MagErr float64  `json:"mag_err"`
	Limit  *float64 `json:"limit"`
	Filter string   `json:"filter"`
	Unit   string   `json:"unit"`
	Survey string   `json:"survey"`
}

// IsNonDetection reports whether the row is a non-detection upper limit.
func (m Measurement) IsNonDetection() bool {
	return m.MagErr >= NonDetectionErr
}

// PeakMag is the brightest recorded magnitude for one filter.
type PeakMag struct {
	Filter      string   `json:"filter"`
	Value       float64  `json:"value"`
	MJDRecorded float64  `json:"mjd_recorded"`
	Source      SourceID `json:"source"`
}

// SurveyMeta is the normalised metadata one survey returns for an object.
// Fields is keyed by canonical field name (ra_deg, redshift, host_name, ...);
// each key may carry several contributions from the same survey, e.g. two
// host-galaxy cross-match names.
type SurveyMeta struct {
	Identifiers []Identifier
	Fields      map[string][]Field
}

// AddField appends a single field contribution under the given key.
func (m *SurveyMeta) AddField(key string, value any, source SourceID) {
	if m.Fields == nil {
		m.Fields = make(map[string][]Field)
	}
	m.Fields[key] = append(m.Fields[key], Field{Value: value, Source: source})
}

// SurveyObject is the result of querying one survey for one transient.
// A confirmed no-match is represented by a nil Meta and an empty Lightcurve,
// not by an error.
type SurveyObject struct {
	Meta       *SurveyMeta
	Lightcurve []Measurement
}

// Matched reports whether the survey found the object.
func (o *SurveyObject) Matched() bool {
	return o != nil && o.Meta != nil
}

// Target describes what to look up at a survey: a TNS object name, sky
// coordinates with a cone-search radius, or both.
type Target struct {
	// Name is the canonical TNS object name, e.g. "2024utu".
	Name string
	// RA and Dec are in degrees, RadiusArcsec in arcseconds.
	RA, Dec      float64
	RadiusArcsec float64
}

// HasCoordinates reports whether the target carries usable coordinates.
func (t Target) HasCoordinates() bool {
	return t.RadiusArcsec > 0 && (t.RA != 0 || t.Dec != 0)
}

// TransientRecord is the canonical aggregated object. It is created fresh per
// ingestion, populated by the aggregation engine and never mutated after
// being persisted; re-ingesting the same name overwrites the stored record.
type TransientRecord struct {
	Identifiers []Identifier
	Sources     []SourceRef
	Meta        map[string][]Field
	Lightcurve  []Measurement
	PeakMags    []PeakMag
}

// NewTransientRecord returns an empty record ready for merging.
func NewTransientRecord() *TransientRecord {
	return &TransientRecord{
		Meta: make(map[string][]Field),
	}
}

// RegisterSource appends a provenance header record. List fields are
// append-only during merge, so a source that contributes through several
// adapters appears once per registration.
func (r *TransientRecord) RegisterSource(ref SourceRef) {
	r.Sources = append(r.Sources, ref)
}

// MergeMeta folds one survey's metadata into the record. Identifier and field
// lists are extended, never deduplicated: distinct sources legitimately
// contribute equal-looking values.
func (r *TransientRecord) MergeMeta(meta *SurveyMeta) {
	if meta == nil {
		return
	}
	r.Identifiers = append(r.Identifiers, meta.Identifiers...)
	for key, fields := range meta.Fields {
		r.Meta[key] = append(r.Meta[key], fields...)
	}
}

// MergeLightcurve unions the survey's lightcurve rows into the record.
func (r *TransientRecord) MergeLightcurve(rows []Measurement) {
	r.Lightcurve = append(r.Lightcurve, rows...)
}

// Name returns the canonical object name: the first identifier contributed by
// TNS, or the first identifier of any source when TNS is absent.
func (r *TransientRecord) Name() string {
	for _, id := range r.Identifiers {
		if id.Source == SourceTNS {
			return id.Name
		}
	}
	if len(r.Identifiers) > 0 {
		return r.Identifiers[0].Name
	}
	return ""
}

// ComputePeaks groups measurements by filter and selects the brightest
// (numerically smallest) magnitude per filter. Ties are broken by earliest
// mjd, then by survey priority, so the result is deterministic for any input
// order. Non-detections never participate.
func ComputePeaks(rows []Measurement) []PeakMag {
	best := make(map[string]Measurement)
	for _, row := range rows {
		if row.IsNonDetection() {
			continue
		}
		cur, ok := best[row.Filter]
		if !ok || peakLess(row, cur) {
			best[row.Filter] = row
		}
	}

	filters := make([]string, 0, len(best))
	for f := range best {
		filters = append(filters, f)
	}
	sort.Strings(filters)

	peaks := make([]PeakMag, 0, len(filters))
	for _, f := range filters {
		row := best[f]
		peaks = append(peaks, PeakMag{
			Filter:      f,
			Value:       row.Mag,
			MJDRecorded: row.MJD,
			Source:      SurveySourceID(row.Survey),
		})
	}
	return peaks
}

// peakLess reports whether a beats b as the peak candidate for a filter.
func peakLess(a, b Measurement) bool {
	if a.Mag != b.Mag {
		return a.Mag < b.Mag
	}
	if a.MJD != b.MJD {
		return a.MJD < b.MJD
	}
	return SurveyRank(a.Survey) < SurveyRank(b.Survey)
}

// Finalize normalises the merged metadata into the stored document shape:
// empty fields are dropped and single-element lists collapse to a scalar
// {value, source} pair. Map keys marshal in sorted order, so repeated
// aggregation of identical inputs yields byte-identical documents.
func (r *TransientRecord) Finalize() map[string]any {
	doc := map[string]any{
		"identifiers": r.Identifiers,
		"sources":     r.Sources,
	}
	for key, fields := range r.Meta {
		switch len(fields) {
		case 0:
			// dropped
		case 1:
			doc[key] = fields[0]
		default:
			doc[key] = fields
		}
	}
	if len(r.PeakMags) > 0 {
		doc["peak_mag"] = r.PeakMags
	}
	return doc
}
