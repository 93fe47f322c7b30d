// Package safety is the client for the remote content-safety service.
//
// One Check call carries one batch: a deployment identifier, the run's
// internal session identifier and a single user message. The response is a
// verdict for that batch, {flagged, policies}. Anything other than a 2xx
// response with that shape is returned as an apperr Transport error, so a
// broken safety check can never be mistaken for a clean one.
//
// Transient failures (429 and 5xx) are retried inside the httpretry transport with
// exponential backoff and jitter; once attempts are exhausted the last
// failure is still fatal.
package safety
