// Package file provides the TOML-backed implementation of the
// configuration port. Configuration lives in a single user-editable
// file (~/.ruhroh/config.toml by default); edits are picked up live
// via filesystem notification, and an invalid edit leaves the previous
// configuration in effect.
package file
