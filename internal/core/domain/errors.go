package domain

import "errors"

// Domain errors represent the failure taxonomy shared by connectors, the
// monitor and the pipeline. Connectors classify raw transport errors into
// these sentinels with errors wrapping; callers branch with errors.Is.
var (
	// ErrNotFound indicates a requested document does not exist in the store.
	ErrNotFound = errors.New("not found")

	// ErrNoMatch indicates a survey confirmed the object is absent.
	// Connectors normally signal absence with a nil-meta SurveyObject;
	// this sentinel exists for callers that need an error value, e.g. a
	// TNS seed lookup that came back empty.
	ErrNoMatch = errors.New("no match")

	// ErrTransientFailure indicates a network, timeout or 5xx condition.
	// Safe to retry with bounded backoff.
	ErrTransientFailure = errors.New("transient failure")

	// ErrMalformedResponse indicates a response with an unexpected shape.
	// Logged in full, then demoted to no-match at the adapter boundary.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrAuthExpired indicates expired credentials. Triggers one
	// refresh-and-retry cycle before escalating to ErrFatalAuth.
	ErrAuthExpired = errors.New("authentication expired")

	// ErrFatalAuth indicates credentials are invalid and unrefreshable.
	// The only condition that stops a component outright.
	ErrFatalAuth = errors.New("authentication invalid and unrefreshable")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrMonitorClosed indicates the notice monitor has been stopped.
	ErrMonitorClosed = errors.New("monitor closed")
)

// IsRetryable reports whether an error is worth retrying: transient
// transport failures and expired-but-refreshable auth.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransientFailure) || errors.Is(err, ErrAuthExpired)
}
