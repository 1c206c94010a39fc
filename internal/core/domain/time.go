package domain

// mjdOffset is the Julian Date of the Modified Julian Date epoch
// (1858-11-17 00:00 UT).
const mjdOffset = 2400000.5

// JDToMJD converts a Julian Date to a Modified Julian Date. Surveys that
// report timestamps in JD (Fink, SkyPatrol) are normalised with this before
// their rows enter a lightcurve.
func JDToMJD(jd float64) float64 {
	return jd - mjdOffset
}
