// Package domain contains the core types of the tarxiv aggregation engine:
// the canonical transient record with per-field provenance, lightcurve
// measurements, survey source references and notice types. Domain types have
// no dependencies on connectors or storage adapters.
package domain
