// Prguard is a content safety gate for pull requests.
//
// It collects the changed files and commit messages of a pull request (or a
// local revision range), redacts secrets, packs everything into batches that
// fit the safety service's token budget and sends them under one session id.
// The check fails when any batch is flagged or when the check cannot finish.
//
// Usage:
//
//	prguard check                          # GitHub Actions: the triggering pull request
//	prguard check pr 42                    # a pull request of the current repository
//	prguard check range origin/main..HEAD  # a local revision range
//	prguard check pr 42 --dry-run          # show the batch plan without sending anything
//	prguard config init                    # write a default user config file
//	prguard hook install                   # check every push from this clone
package main
