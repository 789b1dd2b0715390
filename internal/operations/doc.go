// Package operations runs multi-step data builds.
//
// An operation is a Registry of Steps executed in registration order by a
// Runner. Steps hand tables to each other through the OperationState
// context and report the number of rows they produced, which the Runner
// records as step metrics and span attributes.
//
// Failures are returned as *OperationError values. A Classifier supplied by
// the caller decides whether a failure is an upstream, integrity or
// validation problem; context cancellation is always typed as cancellation.
//
// Example usage:
//
//	reg, _ := operations.NewRegistry(
//		operations.NewStep("load", "Load sources", load),
//		operations.NewStep("merge", "Merge tables", merge, "policies"),
//	)
//	state := operations.NewOperationState(buildID)
//	err := operations.NewRunner(reg, operations.WithLogger(logger)).Run(ctx, state)
package operations
