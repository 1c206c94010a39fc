// Package driving defines the primary ports of the aggregation core, the
// interfaces the CLI adapter drives the system through.
package driving
