package badger

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/poiesic/shuttle/core"
	"github.com/poiesic/shuttle/storage"
)

const (
	// DefaultPageSize is the number of records read per cursor page.
	DefaultPageSize = 100
)

// Collection is a named set of records stored in a Backend.
// It serves as both a record source (cursor-paged reads) and a record sink
// (transactional batch inserts).
type Collection struct {
	backend   *Backend
	name      string
	prefix    []byte
	pageSize  int
	dimension int
	logger    *slog.Logger
}

var (
	_ storage.RecordSource = (*Collection)(nil)
	_ storage.RecordSink   = (*Collection)(nil)
	_ storage.Counter      = (*Collection)(nil)
	_ storage.RecordLookup = (*Collection)(nil)
)

// CollectionOption configures a Collection.
type CollectionOption func(*Collection)

// WithPageSize sets how many records each cursor page reads.
// Values less than 1 are ignored.
func WithPageSize(size int) CollectionOption {
	return func(c *Collection) {
		if size > 0 {
			c.pageSize = size
		}
	}
}

// WithVectorDimension makes InsertBatch reject records whose vector length
// differs from dim. Records without a vector are accepted. Zero disables the check.
func WithVectorDimension(dim int) CollectionOption {
	return func(c *Collection) {
		c.dimension = dim
	}
}

// NewCollection returns the named collection in backend.
// Collections exist implicitly; a collection with no records is empty.
func NewCollection(backend *Backend, name string, opts ...CollectionOption) (*Collection, error) {
	if err := validateCollectionName(name); err != nil {
		return nil, fmt.Errorf("%w: %q", err, name)
	}

	c := &Collection{
		backend:  backend,
		name:     name,
		prefix:   makeCollectionPrefix(name),
		pageSize: DefaultPageSize,
		logger:   backend.logger.With("collection", name),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

// Records iterates the collection in key order, one read transaction per page.
// The cursor between pages is the key of the first unread record, so records
// inserted behind the cursor during iteration are not visited.
func (c *Collection) Records(ctx context.Context, includeVectors bool) iter.Seq2[*core.Record, error] {
	return func(yield func(*core.Record, error) bool) {
		var cursor []byte
		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			page, next, err := c.readPage(cursor, includeVectors)
			if err != nil {
				yield(nil, core.NewTransportError("read page", err))
				return
			}

			for _, record := range page {
				if !yield(record, nil) {
					return
				}
			}

			if next == nil {
				return
			}
			cursor = next
		}
	}
}

// readPage reads up to pageSize records starting at cursor.
// Returns a nil next cursor when the collection is exhausted.
func (c *Collection) readPage(cursor []byte, includeVectors bool) ([]*core.Record, []byte, error) {
	if c.backend.IsClosed() {
		return nil, nil, storage.ErrStorageClosed
	}

	var (
		page []*core.Record
		next []byte
	)

	err := c.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = c.prefix
		opts.PrefetchSize = c.pageSize
		it := tx.NewIterator(opts)
		defer it.Close()

		start := cursor
		if start == nil {
			start = c.prefix
		}

		for it.Seek(start); it.Valid(); it.Next() {
			item := it.Item()
			if len(page) == c.pageSize {
				next = item.KeyCopy(nil)
				return nil
			}

			var record *core.Record
			err := item.Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalRecord(val, includeVectors)
				return err
			})
			if err != nil {
				return fmt.Errorf("key %x: %w", item.Key(), err)
			}
			page = append(page, record)
		}
		return nil
	}, false)

	if err != nil {
		return nil, nil, err
	}
	return page, next, nil
}

// InsertBatch writes a batch in a single transaction.
// Records failing validation are rejected individually and reported in the
// result; the rest are written. Records without an ID are assigned a UUIDv7.
// Existing records with the same ID are overwritten.
func (c *Collection) InsertBatch(ctx context.Context, batch core.Batch) (*core.BatchResult, error) {
	start := time.Now()
	result := &core.BatchResult{
		Index:     batch.Index,
		Attempted: batch.Len(),
	}

	if err := ctx.Err(); err != nil {
		return nil, core.NewTransportError("insert batch", err)
	}
	if c.backend.IsClosed() {
		return nil, core.NewTransportError("insert batch", storage.ErrStorageClosed)
	}

	err := c.backend.WithTx(func(tx *badger.Txn) error {
		for _, record := range batch.Records {
			if reason := c.rejectReason(record); reason != "" {
				result.Errors = append(result.Errors, core.RecordError{ID: recordID(record), Reason: reason})
				continue
			}

			if !record.HasID() {
				id, err := uuid.NewV7()
				if err != nil {
					return err
				}
				record = record.WithID(id)
			}

			value, err := storage.MarshalRecord(record)
			if err != nil {
				result.Errors = append(result.Errors, core.RecordError{ID: record.ID, Reason: err.Error()})
				continue
			}

			if err := tx.Set(makeRecordKey(c.prefix, record.ID), value); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	if err != nil {
		c.logger.Error("batch insert failed", "batch", batch.Index, "err", err)
		return nil, core.NewTransportError("insert batch", err)
	}

	result.Failed = len(result.Errors)
	result.Succeeded = result.Attempted - result.Failed
	result.Duration = time.Since(start)
	return result, nil
}

// rejectReason returns why a record cannot be stored, or "" if it can.
func (c *Collection) rejectReason(record *core.Record) string {
	if err := core.ValidateRecord(record); err != nil {
		return err.Error()
	}
	if err := core.ValidateVectorDimension(record.Vector, c.dimension); err != nil {
		return err.Error()
	}
	return ""
}

func recordID(record *core.Record) uuid.UUID {
	if record == nil {
		return uuid.Nil
	}
	return record.ID
}

// Count returns the number of records in the collection.
func (c *Collection) Count(ctx context.Context) (int, error) {
	if c.backend.IsClosed() {
		return 0, storage.ErrStorageClosed
	}

	count := 0
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = c.prefix
		opts.PrefetchValues = false
		it := tx.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
			if count%10000 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
		}
		return nil
	}, false)
	return count, err
}

// GetRecords retrieves the records that exist for the given IDs.
func (c *Collection) GetRecords(ctx context.Context, includeVectors bool, ids ...uuid.UUID) (map[uuid.UUID]*core.Record, error) {
	if c.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	results := make(map[uuid.UUID]*core.Record, len(ids))
	err := c.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			item, err := tx.Get(makeRecordKey(c.prefix, id))
			if err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					continue
				}
				return err
			}

			err = item.Value(func(val []byte) error {
				record, err := storage.UnmarshalRecord(val, includeVectors)
				if err != nil {
					return err
				}
				results[id] = record
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)

	if err != nil {
		return nil, err
	}
	return results, nil
}

// GetRecord retrieves a single record by ID.
// Returns storage.ErrNotFound if the record doesn't exist.
func (c *Collection) GetRecord(ctx context.Context, id uuid.UUID) (*core.Record, error) {
	records, err := c.GetRecords(ctx, true, id)
	if err != nil {
		return nil, err
	}
	record, ok := records[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return record, nil
}

// Drop deletes every record in the collection.
func (c *Collection) Drop() error {
	if c.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	c.logger.Info("dropping collection")
	return c.backend.DropPrefix(c.prefix)
}

// ListCollections returns the names of every non-empty collection in backend, sorted.
func ListCollections(backend *Backend) ([]string, error) {
	if backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	var names []string
	err := backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(recordPrefix)
		opts.PrefetchValues = false
		it := tx.NewIterator(opts)
		defer it.Close()

		it.Rewind()
		for it.Valid() {
			name, ok := collectionNameFromKey(it.Item().Key())
			if !ok {
				it.Next()
				continue
			}
			names = append(names, name)
			it.Seek(skipCollectionKey(name))
		}
		return nil
	}, false)

	return names, err
}
