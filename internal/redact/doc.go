// Package redact strips secrets from change records before they leave the
// machine for the safety service.
//
// Detection uses regex heuristics for common secret shapes: API key
// assignments, JWTs, private key blocks, cloud and SaaS tokens. Files whose
// paths match configured globs are replaced wholesale instead of scanned.
package redact
