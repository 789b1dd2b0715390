// Package shared holds helpers used across the covid19datasets packages
// that belong to no single domain.
//
// The testutil subpackage provides a buffered slog handler so tests can
// assert on what the pipeline logged:
//
//	logger, logs := testutil.NewTestLogger(t)
//	ds := combined.New(srcs, combined.WithLogger(logger))
//	...
//	testutil.AssertLogContains(t, logs, slog.LevelInfo, "combined table built")
package shared
