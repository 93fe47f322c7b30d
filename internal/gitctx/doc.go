// Package gitctx builds change records from a local git repository.
//
// [Range] walks a revision range and returns one record per changed file:
// status, line counts, the file's hunks and, for files that still exist, the
// file body at the range's tip. Commit messages for the range come with it,
// so a local run sees the same inputs as a pull request fetched from GitHub.
// Files are filtered by include/exclude glob patterns.
package gitctx
