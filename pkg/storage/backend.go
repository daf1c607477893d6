// Package storage persists step-by-step browser-interaction telemetry (HTML
// snapshots, screenshots, action descriptors, metadata) to either S3 or the
// local filesystem behind a single backend abstraction.
//
// Artifacts are opaque byte payloads addressed by a deterministic key layout:
//
//	{session_id}/{step_id}/observation.html
//	{session_id}/{step_id}/screenshot.png
//	{session_id}/{step_id}/action.json
//	{session_id}/{step_id}/metadata.json
//
// Sessions and steps have no existence record of their own; they exist while
// at least one artifact key carries their prefix.
package storage

import "context"

// Backend abstracts object persistence over opaque byte keys.
// Implementations must be safe for concurrent use.
type Backend interface {
	// Put stores data at key, overwriting any existing object. Implementations
	// must never expose a partially written object to concurrent readers.
	Put(ctx context.Context, key string, data []byte) error

	// Get retrieves the object at key.
	// Returns ErrObjectNotFound if the object doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// List returns all keys under prefix. Result ordering is not guaranteed.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes the object at key. Deleting a nonexistent key is a no-op.
	Delete(ctx context.Context, key string) error

	// Location returns the externally meaningful address of key, such as an
	// s3:// URL or an absolute filesystem path. Pure; no I/O.
	Location(key string) string
}
