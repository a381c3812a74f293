// Package models defines the data model for the rhythmiq control plane.
//
// The package contains two categories of types:
//
// 1. Client state: values owned by the session layer of the terminal client
//   - [Session] : the client's view of its authentication (session id, expiry, authenticated flag)
//
// 2. Persistent entities: database-backed models with lifecycle management
//   - [StoredSession] : a control-plane session bridging an opaque session id to a provider token
//
// Persistent entities implement the [Model] interface providing ID generation, timestamps and validation.
// The [Repository] interface defines standard CRUD operations for database access.
package models
