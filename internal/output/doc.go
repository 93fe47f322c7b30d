// Package output formats check reports for display or machine consumption.
//
// Three formats are supported:
//   - text: human-readable terminal output (default)
//   - json: the full structured report, including raw service responses
//   - markdown: the pull-request comment body
//
// Use [GetWriter] to obtain a [Writer] for a format, or [WriteReport] to
// write to a file or stdout. [AppendActionsOutput] records the run's status
// for later GitHub Actions steps.
package output
