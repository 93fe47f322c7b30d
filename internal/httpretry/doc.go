// Package httpretry provides an http.RoundTripper that retries transient
// failures. It is shared by the safety client and the GitHub client.
package httpretry
