// Package snapshots stores the JSON documents served by the snapshot
// service. A document is addressed by a cleaned relative path such as
// "db.json" or "suggestions/alice.json".
//
// Backends:
//   - Memory: process-local map, used for development and tests.
//   - S3Backend: one object per path in an S3-compatible bucket.
//   - PostgresBackend: a JSONB row per path plus a write audit table.
//   - Cached: read-through cache in front of any Backend.
package snapshots

import (
	"context"

	"github.com/dmitrijs2005/promptvault/internal/common"
)

// ErrNotFound is returned by Get and Delete for a path that was never written.
var ErrNotFound = common.ErrorNotFound

// Backend persists snapshot documents.
type Backend interface {
	// Get returns the stored document or ErrNotFound.
	Get(ctx context.Context, path string) ([]byte, error)
	// Put replaces the document at path; user identifies the writer.
	Put(ctx context.Context, path string, data []byte, user string) error
	// Delete removes the document or returns ErrNotFound.
	Delete(ctx context.Context, path string) error
	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
}
