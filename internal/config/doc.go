// Package config loads and merges prguard configuration from multiple sources.
//
// Precedence (highest to lowest):
//  1. CLI flags
//  2. Environment variables (PRGUARD_API_KEY, PRGUARD_MAX_TOKENS, etc.),
//     with the GitHub Actions INPUT_* variables below their PRGUARD_* peers
//  3. Project file (.prguard.yaml in the working directory, or --config)
//  4. User file ($XDG_CONFIG_HOME/prguard/config.yaml)
//  5. Built-in defaults
//
// Use [Load] to obtain a merged [Config], [Save] to write the user file, and
// [SetField] to update a single key.
package config
