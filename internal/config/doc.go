// Package config produces the immutable settings object every other
// component of the harness receives at construction time.
//
// Precedence, lowest to highest:
//
//  1. built-in defaults (Default)
//  2. committed settings.yaml
//  3. uncommitted settings.local.yaml (developer overrides, gitignored)
//  4. AM_* environment variables
//
// Secrets (the customer-scoped credential, the optional team-scoped
// credential) are read exclusively from the environment and can never be set
// from a file. Load fails fast when a required key or secret is absent;
// callers decide whether that means exiting or skipping, never a per-test
// failure, because every test depends on the same settings.
package config
