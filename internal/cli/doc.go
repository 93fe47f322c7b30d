// Package cli wires together the Cobra command tree for the prguard binary.
//
// It defines the root command and its subcommands (check, config, hook,
// version), binds flags, reads configuration, collects pull request or
// revision range changes, runs the safety session and returns the exit code
// that gates CI: 0 when the content passed or was skipped, 1 when it was
// flagged or the check could not complete.
package cli
