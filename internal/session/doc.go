// Package session runs one pull-request analysis against the safety service.
//
// A run assigns a fresh session identifier, plans the change records into
// token-budgeted batches and sends the batches one at a time, in order, each
// carrying the same session identifier. Per-batch results are folded into a
// single Verdict: the run is flagged if any batch is flagged, and policy
// results are merged so that a policy flagged in any batch stays flagged.
//
// Any failure aborts the run without a partial verdict.
package session
