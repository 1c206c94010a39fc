// Package connectors groups the survey adapters. Each subpackage implements
// the driven.Survey port for one external service and owns its client
// lifecycle, rate limiting and error classification: tns (Transient Name
// Server), ztf (Fink broker), atlas (ATLAS transient web server) and asassn
// (ASAS-SN SkyPatrol).
package connectors
