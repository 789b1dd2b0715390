// Package sources reads the upstream datasets the combined table is built
// from.
//
// Every dataset is described by a Spec: a decoder (CSV or XLSX), an
// explicit Schema mapping upstream columns to canonical names and kinds,
// and optional prepare/transform hooks. An Adapter binds a Spec to a
// location (http(s) URL or local path) and a Fetcher, loads it once and
// hands out deep copies, so callers may change what they receive.
//
// Fetch failures are reported as *UpstreamError and match
// ErrUpstreamUnavailable. Nothing is retried.
package sources
