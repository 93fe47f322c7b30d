// Package github reads pull requests from the GitHub REST API and posts the
// verdict back as a comment.
//
// It turns the files of a pull request into change records (patch plus the
// file body at the head commit), collects the commit messages, and parses the
// GitHub Actions event payload. Requests are authenticated with an oauth2
// static token and retried on transient failures.
package github
