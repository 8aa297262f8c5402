package migrate

import (
	"github.com/poiesic/shuttle/core"
)

// Batcher accumulates records into batches of a fixed size.
// Batch indices start at 1 and increase by one per emitted batch.
type Batcher struct {
	size    int
	pending []*core.Record
	next    int
}

// NewBatcher creates a new batcher.
// size: number of records per batch (must be > 0)
func NewBatcher(size int) (*Batcher, error) {
	if size <= 0 {
		return nil, ErrInvalidBatchSize
	}
	return &Batcher{
		size:    size,
		pending: make([]*core.Record, 0, size),
		next:    1,
	}, nil
}

// Add appends a record. When the pending buffer reaches the batch size it is
// emitted as a batch and the second return value is true.
func (b *Batcher) Add(record *core.Record) (core.Batch, bool) {
	b.pending = append(b.pending, record)
	if len(b.pending) < b.size {
		return core.Batch{}, false
	}
	return b.emit(), true
}

// Flush emits any pending records as a final, possibly short, batch.
// Returns false when nothing is pending.
func (b *Batcher) Flush() (core.Batch, bool) {
	if len(b.pending) == 0 {
		return core.Batch{}, false
	}
	return b.emit(), true
}

// Pending returns the number of buffered records.
func (b *Batcher) Pending() int {
	return len(b.pending)
}

func (b *Batcher) emit() core.Batch {
	batch := core.Batch{Index: b.next, Records: b.pending}
	b.next++
	// the emitted slice is owned by the batch from here on
	b.pending = make([]*core.Record, 0, b.size)
	return batch
}

// Chunk splits records into consecutive batches of at most size records.
func Chunk(records []*core.Record, size int) ([]core.Batch, error) {
	b, err := NewBatcher(size)
	if err != nil {
		return nil, err
	}

	batches := make([]core.Batch, 0, (len(records)+size-1)/size)
	for _, record := range records {
		if batch, ok := b.Add(record); ok {
			batches = append(batches, batch)
		}
	}
	if batch, ok := b.Flush(); ok {
		batches = append(batches, batch)
	}
	return batches, nil
}
