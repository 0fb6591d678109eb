// Package internal contains helper utilities that are intentionally private to authcore,
// including secure random generation and token hashing helpers.
//
// # Sub-packages
//
//   - jobs — recurring background maintenance tasks (session/code cleanup)
//   - memory — in-memory repository implementations used by tests and embedders
//   - metrics — prometheus instrumentation shared by the engine
//   - postgres — pgx-backed repository implementations with tenant scoping
//
// # What this package must NOT do
//
//   - Export types that appear in the public authcore API.
//   - Be imported by any package outside the authcore module.
package internal
