// Package errs defines the closed error taxonomy used across the Temper
// analysis pipeline: structured kinds, not ad hoc strings, so an outer HTTP
// or job layer can map them to its own transport without parsing messages.
package errs

import "fmt"

// SchemaError means a required column is missing from the input table, or
// the input has an unrecognized shape. No rows are parsed when this occurs.
type SchemaError struct {
	MissingColumn string
	Message       string
}

func (e *SchemaError) Error() string {
	if e.MissingColumn != "" {
		return fmt.Sprintf("schema error: missing required column %q", e.MissingColumn)
	}
	return fmt.Sprintf("schema error: %s", e.Message)
}

// RowError is a per-row validation failure. The row is skipped; the
// pipeline continues as long as at least one row survives.
type RowError struct {
	RowIndex int
	Message  string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %s", e.RowIndex, e.Message)
}

// EmptyInputError means parsing produced zero valid rows. No session is
// created.
type EmptyInputError struct {
	TotalRows int
}

func (e *EmptyInputError) Error() string {
	return fmt.Sprintf("empty input: 0 valid rows out of %d", e.TotalRows)
}

// ContractError signals an internal invariant violation, e.g. a running sum
// disagreeing with its definition. It must never be silently recovered.
type ContractError struct {
	Invariant string
	Detail    string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("contract violation (%s): %s", e.Invariant, e.Detail)
}

// RuleError means a rule parameter (replay rules, elo config) is
// misconfigured: a negative window, a non-finite threshold.
type RuleError struct {
	Field   string
	Message string
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("rule error: %s: %s", e.Field, e.Message)
}
