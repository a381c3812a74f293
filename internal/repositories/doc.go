// Package repositories implements SQLite persistence for control-plane entities.
//
// Key Implementations:
//   - [SessionRepository] : provider tokens keyed by opaque session id, with soft deletes and expiry sweeps
//
// Queries exclude soft-deleted records (deleted_at set) by default.
// Lookups for an unknown or deleted id return an error wrapping [shared.ErrSessionNotFound].
package repositories
