// Package http exposes the combined COVID-19 dataset over a read-only JSON
// API. Handlers stay thin: they parse and validate the request, call the
// dataset or a mortality provider, and hand every error to the shared
// RFC 7807 error handler.
//
// # Routes
//
//	GET  /api/health                      liveness
//	GET  /api/health/ready                503 until the first build succeeds
//	GET  /api/combined                    combined table as JSON rows
//	GET  /api/combined.csv                combined table as CSV
//	GET  /api/combined.xlsx               combined table as an Excel workbook
//	GET  /api/combined/build              summary of the last build
//	POST /api/combined/reload             rebuild from freshly fetched sources
//	GET  /api/excess-mortality/{provider} weekly or daily (?daily=true) excess deaths
//	GET  /metrics                         Prometheus exposition
//
// The combined routes accept the filters iso (ISO 3166-1 alpha-3 code),
// from and to (inclusive dates, 2006-01-02).
package http
