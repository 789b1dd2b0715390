// Package table provides the in-memory tabular type every pipeline stage
// exchanges: an ordered set of typed columns and rows of nullable cells.
//
// # Cells
//
// A cell is nil when the value is missing. Non-missing cells hold
//
//	String -> string
//	Float  -> float64
//	Date   -> time.Time (UTC midnight)
//
// # Copy semantics
//
// Transformations (Select, Drop, Rename, Filter, SortBy, LeftJoin,
// ForwardFill, FillMissing, ...) never modify the receiver. Each returns a
// new Table whose rows share no storage with the input, so a stage can hand
// its output to the next one without the two aliasing each other.
// Only Append mutates a table and is meant for builders and decoders.
//
// # Keys
//
// LeftJoin requires the right-hand table to carry at most one row per join
// key and refuses to duplicate non-key column names, so a left join never
// multiplies rows and never silently renames columns. Index asserts that a
// set of key columns is unique and non-missing and enables Lookup.
package table
