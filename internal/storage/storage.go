// Package storage persists recovered course documents and archives raw payloads that could not be recovered.
package storage

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jonathan/course-crawler/internal/recovery"
	"github.com/jonathan/course-crawler/internal/types"
)

// Store is a key-value store addressed by career, plus a parallel archive addressed by career and tag.
// Every write replaces the previous value for its key as a single atomic operation.
type Store interface {
	// SaveDocument persists doc and returns where it was written.
	SaveDocument(ctx context.Context, doc *Document) (string, error)
	// ArchiveRaw stores a raw payload verbatim and returns where it was written.
	ArchiveRaw(ctx context.Context, raw *RawArchive) (string, error)
	// Close releases the store's resources.
	Close() error
}

// Document is a recovered document ready to be persisted.
type Document struct {
	RunID   uuid.UUID
	Career  types.Career
	Content *recovery.Document
}

// RawArchive is a raw payload kept for offline inspection.
type RawArchive struct {
	RunID  uuid.UUID
	Career types.Career
	Tag    types.ArchiveTag
	Raw    string
}

// PersistError represents a failed store write.
type PersistError struct {
	Career types.Career
	Op     string
	Cause  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist error for career %s: %s: %v", e.Career, e.Op, e.Cause)
}

func (e *PersistError) Unwrap() error {
	return e.Cause
}

// Backend names a Store implementation.
type Backend string

const (
	// BackendFile writes one file per key under a data directory.
	BackendFile Backend = "file"
	// BackendPostgres writes rows to PostgreSQL.
	BackendPostgres Backend = "postgres"
	// BackendRedis writes string keys to Redis.
	BackendRedis Backend = "redis"
)

func render(doc *Document) ([]byte, error) {
	if doc == nil || doc.Content == nil {
		return nil, fmt.Errorf("document is empty")
	}
	return doc.Content.Indent()
}
