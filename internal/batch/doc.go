// Package batch turns a pull request's change records into token-budgeted
// batches for the safety service.
//
// Each ChangeRecord is rendered by Format into a Block whose unit count is
// measured with the configured tokenizer. The diff is the priority signal and
// is never cut; full file content is added only when enough budget remains,
// truncated to fit. Plan then packs blocks into Batches with a single greedy
// pass that preserves file order. A block that is larger than the per-batch
// budget on its own is isolated in a singleton batch rather than dropped.
//
// Everything in this package is pure: no network or file I/O, so planning can
// be tested and previewed (prguard check --dry-run) without a safety service.
package batch
