package domain

// SourceID identifies a survey or catalogue that contributed a datum.
// IDs are assigned statically by the source registry and are stable across
// runs; they are never derived at runtime.
type SourceID int

// Registry source IDs. The numbering matches the published tarxiv schema and
// must not be reordered.
const (
	SourceTNS          SourceID = 0
	SourceATLASWeb     SourceID = 1
	SourceATLASSurvey  SourceID = 2
	SourceZTF          SourceID = 3
	SourceASASSNSurvey SourceID = 5
	SourceASASSNPatrol SourceID = 6
	SourceSherlock     SourceID = 7
	SourceMangrove     SourceID = 8
)

// SourceRef is the provenance header record for one source, registered on a
// transient record whenever that source contributed data.
type SourceRef struct {
	ID   SourceID `json:"id"`
	Name string   `json:"name"`
	URL  string   `json:"url,omitempty"`
}

// SurveyName is the label a survey writes into lightcurve rows. It is also
// used for the peak-magnitude tie-break ordering.
const (
	SurveyTNS    = "TNS"
	SurveyATLAS  = "ATLAS"
	SurveyZTF    = "ZTF"
	SurveyASASSN = "ASAS-SN"
)

// surveyPriority orders surveys for deterministic tie-breaking when two
// measurements share the same magnitude and mjd. Lower is higher priority.
var surveyPriority = map[string]int{
	SurveyTNS:    0,
	SurveyATLAS:  1,
	SurveyZTF:    2,
	SurveyASASSN: 3,
}

// SurveyRank returns the tie-break rank for a survey name. Unknown surveys
// sort after all known ones.
func SurveyRank(survey string) int {
	if rank, ok := surveyPriority[survey]; ok {
		return rank
	}
	return len(surveyPriority)
}

// surveySourceMap resolves the survey label written into lightcurve rows to
// the registry source that owns those measurements.
var surveySourceMap = map[string]SourceID{
	SurveyTNS:    SourceTNS,
	SurveyATLAS:  SourceATLASSurvey,
	SurveyZTF:    SourceZTF,
	SurveyASASSN: SourceASASSNSurvey,
}

// SurveySourceID returns the provenance source for a survey label.
func SurveySourceID(survey string) SourceID {
	return surveySourceMap[survey]
}
