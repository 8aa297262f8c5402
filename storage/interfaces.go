package storage

import (
	"context"
	"iter"

	"github.com/google/uuid"
	"github.com/poiesic/shuttle/core"
)

// RecordSource provides a lazy, cursor-backed sequence of records.
// Implementations must be safe to iterate from a single goroutine.
type RecordSource interface {
	// Records returns a sequence over every record in the source, in the
	// source's native order. Each call starts from the beginning; the
	// sequence cannot be resumed from an arbitrary position.
	// When includeVectors is false, yielded records carry no vector.
	// A non-nil error is yielded at most once and ends the sequence.
	// Iteration may block while the next page is fetched.
	Records(ctx context.Context, includeVectors bool) iter.Seq2[*core.Record, error]
}

// RecordSink accepts batches of records for bulk writing.
// Implementations must be thread-safe; batches may be written concurrently.
type RecordSink interface {
	// InsertBatch writes every record in batch.
	// Returns a *core.TransportError if the write call itself could not
	// complete. Records rejected individually are reported in the result
	// (Failed > 0, Errors populated) without an error.
	InsertBatch(ctx context.Context, batch core.Batch) (*core.BatchResult, error)
}

// Counter is implemented by sources that can report their size up front.
type Counter interface {
	// Count returns the number of records the source currently holds.
	Count(ctx context.Context) (int, error)
}

// RecordLookup retrieves records by identifier.
type RecordLookup interface {
	// GetRecords returns the records that exist for the given IDs, keyed by ID.
	// Missing IDs are omitted (no error).
	GetRecords(ctx context.Context, includeVectors bool, ids ...uuid.UUID) (map[uuid.UUID]*core.Record, error)
}
