// Package core provides the domain model for turning delegate rows into badge codes.
//
// # Core Types
//
// Row: one delegate read from the input table, with its raw record preserved.
// CodeSet: the codes issued during one run; owned by the batch driver.
// Allocator: issues <PREFIX><NNN> codes unique within a CodeSet.
// QRPayload: the minimal data encoded into the scannable symbol.
// Record: the full delegate attributes written to the audit outputs.
//
// Nothing in this package touches the filesystem; rendering and table I/O live in
// internal/render and internal/table.
package core
