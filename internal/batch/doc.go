// Package batch drives one run over a delegate table.
//
// A run is strictly sequential. For each row it allocates a code, renders the
// QR image and, when enabled, composites the badge. A failing row becomes a
// Failure outcome and the run moves on; only an unreadable input table or a
// failed aggregate write aborts the run.
//
// The Driver owns the used-code set and the ordered outcome list for exactly
// one Run call. Aggregate outputs and the Summary are derived from the outcome
// list after the last row.
package batch
