package migrate

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/shuttle/core"
)

var errCursorLost = errors.New("cursor lost")

func makeRecords(n int) []*core.Record {
	records := make([]*core.Record, n)
	for i := range records {
		records[i] = &core.Record{
			ID:         uuid.Must(uuid.NewV7()),
			Properties: map[string]any{"n": i, "title": fmt.Sprintf("record %d", i)},
			Vector:     []float32{float32(i), 0.5},
		}
	}
	return records
}

// sliceSource yields records from memory.
type sliceSource struct {
	records []*core.Record
	failAt  int // position at which the cursor breaks, -1 for never
	opened  atomic.Bool
	pulled  atomic.Int32
}

func newSliceSource(records []*core.Record) *sliceSource {
	return &sliceSource{records: records, failAt: -1}
}

func (s *sliceSource) Records(ctx context.Context, includeVectors bool) iter.Seq2[*core.Record, error] {
	return func(yield func(*core.Record, error) bool) {
		s.opened.Store(true)
		for i, record := range s.records {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			if i == s.failAt {
				yield(nil, errCursorLost)
				return
			}
			s.pulled.Add(1)

			out := record
			if !includeVectors {
				out = record.WithoutVector()
			}
			if !yield(out, nil) {
				return
			}
		}
	}
}

// countedSource is a sliceSource that also reports its size.
type countedSource struct {
	*sliceSource
}

func (s countedSource) Count(ctx context.Context) (int, error) {
	return len(s.records), nil
}

// memorySink stores records by ID and records every call it receives.
type memorySink struct {
	// fail returns an error to fail the whole call
	fail func(batch core.Batch, call int) error
	// reject returns a non-empty reason to reject a single record
	reject func(record *core.Record) string
	delay  time.Duration
	// panicOn makes the call for this batch index panic; 0 never panics
	panicOn int
	// nilResult makes every call succeed without returning a result
	nilResult bool

	mu      sync.Mutex
	calls   int
	batches []core.Batch
	stored  map[uuid.UUID]*core.Record
	order   []uuid.UUID

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newMemorySink() *memorySink {
	return &memorySink{stored: make(map[uuid.UUID]*core.Record)}
}

func (s *memorySink) InsertBatch(ctx context.Context, batch core.Batch) (*core.BatchResult, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		cur := s.maxInFlight.Load()
		if n <= cur || s.maxInFlight.CompareAndSwap(cur, n) {
			break
		}
	}

	s.mu.Lock()
	s.calls++
	call := s.calls
	s.mu.Unlock()

	if s.fail != nil {
		if err := s.fail(batch, call); err != nil {
			return nil, err
		}
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.panicOn != 0 && batch.Index == s.panicOn {
		panic(fmt.Sprintf("batch %d: index out of range", batch.Index))
	}
	if s.nilResult {
		return nil, nil
	}

	result := &core.BatchResult{Index: batch.Index, Attempted: batch.Len()}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, record := range batch.Records {
		if s.reject != nil {
			if reason := s.reject(record); reason != "" {
				result.Errors = append(result.Errors, core.RecordError{ID: record.ID, Reason: reason})
				continue
			}
		}
		if _, exists := s.stored[record.ID]; !exists {
			s.order = append(s.order, record.ID)
		}
		s.stored[record.ID] = record
	}
	s.batches = append(s.batches, batch)

	result.Failed = len(result.Errors)
	result.Succeeded = result.Attempted - result.Failed
	return result, nil
}

func (s *memorySink) batchSizes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	sizes := make([]int, len(s.batches))
	for i, b := range s.batches {
		sizes[i] = b.Len()
	}
	return sizes
}

func (s *memorySink) storedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stored)
}

// failBatch makes every call for the given batch index fail with a transport error.
func failBatch(index int) func(core.Batch, int) error {
	return func(batch core.Batch, _ int) error {
		if batch.Index == index {
			return core.NewTransportError("insert batch", errors.New("connection reset"))
		}
		return nil
	}
}
