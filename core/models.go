package core

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Record is a single object moved by a migration: a set of named properties,
// an optional stable identifier and an optional vector.
// Records read from a source are treated as immutable.
type Record struct {
	ID         uuid.UUID      // uuid.Nil when the source did not provide one
	Properties map[string]any // JSON-compatible property values
	Vector     []float32      // nil when vectors were not requested or absent
}

// HasID reports whether the record carries a stable identifier.
func (r *Record) HasID() bool {
	return r.ID != uuid.Nil
}

// WithID returns a shallow copy of the record carrying the given identifier.
func (r *Record) WithID(id uuid.UUID) *Record {
	return &Record{
		ID:         id,
		Properties: r.Properties,
		Vector:     r.Vector,
	}
}

// WithoutVector returns a shallow copy of the record with its vector dropped.
func (r *Record) WithoutVector() *Record {
	return &Record{
		ID:         r.ID,
		Properties: r.Properties,
	}
}

// Clone returns a copy of the record whose property map and vector
// are not shared with the receiver. Nested property values are shared.
func (r *Record) Clone() *Record {
	c := &Record{ID: r.ID}
	if r.Properties != nil {
		c.Properties = maps.Clone(r.Properties)
	}
	if r.Vector != nil {
		c.Vector = append([]float32(nil), r.Vector...)
	}
	return c
}

// Batch is an ordered group of records submitted to a sink in one call.
type Batch struct {
	Index   int // 1-based position of the batch within its run
	Records []*Record
}

// Len returns the number of records in the batch.
func (b Batch) Len() int {
	return len(b.Records)
}

// RecordError describes a single record rejected by a sink.
type RecordError struct {
	ID     uuid.UUID
	Reason string
}

func (e RecordError) String() string {
	return fmt.Sprintf("%s: %s", e.ID, e.Reason)
}

// BatchResult is the outcome of writing one batch.
//
// A batch whose write call failed outright has Err set and Failed equal to
// Attempted. A batch with Failed > 0 and no Err was partially applied.
type BatchResult struct {
	Index     int
	Attempted int
	Succeeded int
	Failed    int
	Errors    []RecordError
	Err       error
	Duration  time.Duration
}

// HasErrors reports whether any record in the batch was not written.
func (r *BatchResult) HasErrors() bool {
	return r.Failed > 0 || r.Err != nil
}

// RunState is the lifecycle state of a migration run.
type RunState int

const (
	RunStateIdle RunState = iota
	RunStateRunning
	RunStateCompleted
	RunStateAborted
)

func (s RunState) String() string {
	switch s {
	case RunStateIdle:
		return "idle"
	case RunStateRunning:
		return "running"
	case RunStateCompleted:
		return "completed"
	case RunStateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("RunState(%d)", int(s))
	}
}

// ErrorPolicy decides what a run does when a batch write fails with a TransportError.
type ErrorPolicy int

const (
	// ErrorPolicyFailFast aborts the run on the first transport error.
	ErrorPolicyFailFast ErrorPolicy = iota
	// ErrorPolicySkipAndContinue records the batch as failed and moves on.
	ErrorPolicySkipAndContinue
)

func (p ErrorPolicy) String() string {
	switch p {
	case ErrorPolicyFailFast:
		return "fail-fast"
	case ErrorPolicySkipAndContinue:
		return "skip-and-continue"
	default:
		return fmt.Sprintf("ErrorPolicy(%d)", int(p))
	}
}

// ParseErrorPolicy parses "fail-fast" or "skip-and-continue" (case-insensitive).
func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fail-fast":
		return ErrorPolicyFailFast, nil
	case "skip-and-continue":
		return ErrorPolicySkipAndContinue, nil
	default:
		return 0, fmt.Errorf("%w: unknown error policy %q", ErrInvalidConfig, s)
	}
}

// FailedBatch describes a batch that had at least one record not written.
type FailedBatch struct {
	Index  int
	Size   int
	Failed int
	Reason string // transport error text, empty for partial failures
	Errors []RecordError
}

// RunSummary aggregates every BatchResult of a run.
// TotalAttempted always equals TotalSucceeded + TotalFailed.
// TotalSkipped counts records that were read but never written because the
// run aborted first.
type RunSummary struct {
	State          RunState
	TotalAttempted int
	TotalSucceeded int
	TotalFailed    int
	TotalSkipped   int
	Batches        int
	StartedAt      time.Time
	FinishedAt     time.Time
	Duration       time.Duration
	FailedBatches  []FailedBatch
	AbortReason    error
}

// FailedIDs returns the identifiers of every individually rejected record.
func (s *RunSummary) FailedIDs() []uuid.UUID {
	var ids []uuid.UUID
	for _, fb := range s.FailedBatches {
		for _, re := range fb.Errors {
			ids = append(ids, re.ID)
		}
	}
	return ids
}
