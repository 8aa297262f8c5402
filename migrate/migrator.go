// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package migrate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/poiesic/shuttle/core"
	"github.com/poiesic/shuttle/storage"
)

// Migrator moves records from a source to a sink.
// A Migrator runs once; build a new one for every run.
type Migrator struct {
	source   storage.RecordSource
	sink     storage.RecordSink
	config   Config
	logger   *slog.Logger
	progress io.Writer
	hook     func(core.BatchResult)
	state    atomic.Int32
}

// Option configures a Migrator.
type Option func(*Migrator)

// WithLogger sets the logger for the migrator.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Migrator) {
		m.logger = logger
	}
}

// WithProgressWriter sets where the progress line is written.
// Progress output is discarded by default.
func WithProgressWriter(w io.Writer) Option {
	return func(m *Migrator) {
		m.progress = w
	}
}

// WithBatchHook registers fn to observe every completed batch.
// With concurrent writes fn is called from multiple goroutines.
func WithBatchHook(fn func(core.BatchResult)) Option {
	return func(m *Migrator) {
		m.hook = fn
	}
}

// NewMigrator creates a new migrator. A nil config uses DefaultConfig.
// The config is copied, so later changes to it do not affect the migrator.
func NewMigrator(source storage.RecordSource, sink storage.RecordSink, config *Config, opts ...Option) (*Migrator, error) {
	if source == nil {
		return nil, ErrSourceRequired
	}
	if sink == nil {
		return nil, ErrSinkRequired
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	m := &Migrator{
		source:   source,
		sink:     sink,
		config:   *config,
		logger:   slog.Default(),
		progress: io.Discard,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "migrator")
	return m, nil
}

// State returns the current run state.
func (m *Migrator) State() core.RunState {
	return core.RunState(m.state.Load())
}

// run holds the mutable state of one Run.
type run struct {
	ctx      context.Context
	writeCtx context.Context
	tracker  *ProgressTracker

	aborted   atomic.Bool
	abortOnce sync.Once
	reason    error
}

func (r *run) abort(reason error) {
	r.abortOnce.Do(func() {
		r.reason = reason
		r.aborted.Store(true)
	})
}

// Run executes the migration.
//
// Records are read from the source until it is exhausted, MaxItems records
// have been read, the context is canceled or the run aborts. The returned
// summary is never nil once the run has started. A run that ends Aborted also
// returns an error wrapping core.ErrAborted and the abort reason.
func (m *Migrator) Run(ctx context.Context) (*core.RunSummary, error) {
	if !m.state.CompareAndSwap(int32(core.RunStateIdle), int32(core.RunStateRunning)) {
		return nil, ErrAlreadyStarted
	}

	batcher, err := NewBatcher(m.config.BatchSize)
	if err != nil {
		m.state.Store(int32(core.RunStateIdle))
		return nil, err
	}

	r := &run{
		ctx:      ctx,
		writeCtx: context.WithoutCancel(ctx),
		tracker:  NewProgressTracker(m.progress, m.logger, m.expectedTotal(ctx), m.config.ReportInterval),
	}

	exec, err := newExecutor(&m.config, func(batch core.Batch) { m.writeBatch(r, batch) }, m.logger)
	if err != nil {
		m.state.Store(int32(core.RunStateIdle))
		return nil, err
	}
	defer exec.release()

	m.logger.Info("starting migration",
		"batchSize", m.config.BatchSize,
		"maxItems", m.config.MaxItems,
		"concurrency", m.config.ConcurrencyLimit,
		"errorPolicy", m.config.ErrorPolicy.String(),
		"includeVectors", m.config.IncludeVectors)
	r.tracker.Start()

	dispatch := func(batch core.Batch) bool {
		if err := ctx.Err(); err != nil {
			r.abort(err)
		}
		if r.aborted.Load() {
			r.tracker.Skip(batch)
			return false
		}
		if err := exec.submit(batch); err != nil {
			m.recordFailure(r, batch, core.NewTransportError("dispatch batch", err), 0)
		}
		return !r.aborted.Load()
	}

	if m.config.MaxItems != 0 {
		consumed := 0
		for record, err := range m.source.Records(ctx, m.config.IncludeVectors) {
			if err != nil {
				r.abort(fmt.Errorf("read source: %w", err))
				break
			}

			consumed++
			if batch, full := batcher.Add(record); full {
				if !dispatch(batch) {
					break
				}
			}

			if m.config.limitsItems() && consumed >= m.config.MaxItems {
				m.logger.Info(fmt.Sprintf("Reached maximum items limit of %d", m.config.MaxItems))
				break
			}
		}
	}

	if batch, ok := batcher.Flush(); ok {
		dispatch(batch)
	}

	exec.wait()
	r.tracker.Finish()

	state := core.RunStateCompleted
	if r.aborted.Load() {
		state = core.RunStateAborted
	}
	m.state.Store(int32(state))

	summary := r.tracker.Summary(state, r.reason)
	m.logger.Info(fmt.Sprintf("Migrated %d objects in %s", summary.TotalSucceeded, summary.Duration.Round(time.Millisecond)),
		"state", state.String(),
		"attempted", summary.TotalAttempted,
		"failed", summary.TotalFailed,
		"batches", summary.Batches)

	if state == core.RunStateAborted {
		return summary, fmt.Errorf("%w: %w", core.ErrAborted, r.reason)
	}
	return summary, nil
}

// writeBatch sends one batch to the sink, retrying transport errors.
// Under fail-fast a batch that has not started when the run aborts is skipped.
func (m *Migrator) writeBatch(r *run, batch core.Batch) {
	if m.config.ErrorPolicy == core.ErrorPolicyFailFast && r.aborted.Load() {
		r.tracker.Skip(batch)
		return
	}

	start := time.Now()
	var result *core.BatchResult
	err := newRetryPolicy(&m.config, m.logger).do(r.ctx, func() error {
		var err error
		result, err = m.insert(r.writeCtx, batch)
		return err
	})

	if err != nil {
		m.recordFailure(r, batch, err, time.Since(start))
		return
	}

	// the sink's counts are normalized so the run totals always balance
	res := *result
	res.Index = batch.Index
	res.Attempted = batch.Len()
	res.Failed = min(max(res.Failed, len(res.Errors)), res.Attempted)
	res.Succeeded = res.Attempted - res.Failed
	res.Err = nil
	res.Duration = time.Since(start)

	r.tracker.Record(res)
	m.notify(res)
}

// insert makes one sink call. Every failure, including a panic or a missing
// result, comes back as a TransportError.
func (m *Migrator) insert(ctx context.Context, batch core.Batch) (result *core.BatchResult, err error) {
	defer func() {
		if p := recover(); p != nil {
			m.logger.Error("sink panicked", "batch", batch.Index, "panic", p)
			result = nil
			err = core.NewTransportError("insert batch", fmt.Errorf("%w: %v", ErrSinkPanicked, p))
		}
	}()

	result, err = m.sink.InsertBatch(ctx, batch)
	switch {
	case err != nil && !core.IsTransportError(err):
		return nil, core.NewTransportError("insert batch", err)
	case err != nil:
		return nil, err
	case result == nil:
		return nil, core.NewTransportError("insert batch", ErrNilResult)
	}
	return result, nil
}

// recordFailure counts every record of batch as failed and applies the error policy.
func (m *Migrator) recordFailure(r *run, batch core.Batch, err error, elapsed time.Duration) {
	res := core.BatchResult{
		Index:     batch.Index,
		Attempted: batch.Len(),
		Failed:    batch.Len(),
		Err:       err,
		Duration:  elapsed,
	}
	r.tracker.Record(res)

	if m.config.ErrorPolicy == core.ErrorPolicyFailFast {
		r.abort(fmt.Errorf("batch %d: %w", batch.Index, err))
	}
	m.notify(res)
}

func (m *Migrator) notify(result core.BatchResult) {
	if m.hook != nil {
		m.hook(result)
	}
}

// expectedTotal returns how many records the run should read, or 0 if unknown.
func (m *Migrator) expectedTotal(ctx context.Context) int {
	total := 0
	if counter, ok := m.source.(storage.Counter); ok && m.config.MaxItems != 0 {
		count, err := counter.Count(ctx)
		if err != nil {
			m.logger.Warn("failed to count source records", "err", err)
		} else {
			total = count
		}
	}

	if m.config.limitsItems() && (total == 0 || total > m.config.MaxItems) {
		total = m.config.MaxItems
	}
	return total
}
