// Package services contains the core behaviours of tarxiv: the immutable
// source registry, the aggregation engine that merges survey responses under
// provenance rules, the notice monitor state machine and the ingestion
// pipeline. Services depend only on domain types and ports.
package services
