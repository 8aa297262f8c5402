package migrate

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/poiesic/shuttle/core"
)

// ProgressTracker accumulates batch outcomes and reports progress of a migration.
// It is safe for concurrent use by batch writers.
type ProgressTracker struct {
	writer         io.Writer
	logger         *slog.Logger
	total          int
	reportInterval int
	lastReported   int

	attempted     int
	succeeded     int
	failed        int
	skipped       int
	batches       int
	failedBatches []core.FailedBatch

	startTime time.Time
	endTime   time.Time
	started   bool
	mu        sync.Mutex
}

// NewProgressTracker creates a new progress tracker.
// writer: where to write progress output (typically os.Stderr)
// total: expected number of records, or <= 0 when unknown
// reportInterval: report progress every N records, 0 after every batch
func NewProgressTracker(writer io.Writer, logger *slog.Logger, total, reportInterval int) *ProgressTracker {
	if writer == nil {
		writer = io.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProgressTracker{
		writer:         writer,
		logger:         logger,
		total:          total,
		reportInterval: reportInterval,
	}
}

// Start begins tracking progress.
func (p *ProgressTracker) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.startTime = time.Now()
	p.endTime = time.Time{}
	p.started = true
	p.lastReported = 0
}

// Record accounts for one completed sink call and logs its outcome.
func (p *ProgressTracker) Record(result core.BatchResult) {
	switch {
	case result.Err != nil:
		p.logger.Error("batch import failed",
			"batch", result.Index, "records", result.Attempted, "err", result.Err)
	case result.HasErrors():
		p.logger.Warn("batch imported with errors",
			"batch", result.Index, "succeeded", result.Succeeded, "failed", result.Failed)
		for _, re := range result.Errors {
			p.logger.Debug("record rejected", "batch", result.Index, "id", re.ID, "reason", re.Reason)
		}
	default:
		p.logger.Info(fmt.Sprintf("Successfully imported batch of %d items", result.Succeeded),
			"batch", result.Index, "duration", result.Duration)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.batches++
	p.attempted += result.Attempted
	p.succeeded += result.Succeeded
	p.failed += result.Failed

	if result.Failed > 0 {
		fb := core.FailedBatch{
			Index:  result.Index,
			Size:   result.Attempted,
			Failed: result.Failed,
			Errors: result.Errors,
		}
		if result.Err != nil {
			fb.Reason = result.Err.Error()
		}
		p.failedBatches = append(p.failedBatches, fb)
	}

	if p.started && p.attempted-p.lastReported >= p.reportInterval {
		p.report()
		p.lastReported = p.attempted
	}
}

// Skip accounts for a batch that was read but never written.
func (p *ProgressTracker) Skip(batch core.Batch) {
	p.logger.Debug("batch skipped after abort", "batch", batch.Index, "records", batch.Len())

	p.mu.Lock()
	defer p.mu.Unlock()
	p.skipped += batch.Len()
}

// Finish stops the clock and prints final progress.
func (p *ProgressTracker) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	p.endTime = time.Now()
	p.report()
	fmt.Fprintln(p.writer) // Print newline after final progress
}

// Elapsed returns the time elapsed since Start was called, up to Finish.
func (p *ProgressTracker) Elapsed() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.elapsed()
}

// Summary builds a RunSummary from everything recorded so far.
func (p *ProgressTracker) Summary(state core.RunState, reason error) *core.RunSummary {
	p.mu.Lock()
	defer p.mu.Unlock()

	finished := p.endTime
	if finished.IsZero() {
		finished = time.Now()
	}

	failedBatches := make([]core.FailedBatch, len(p.failedBatches))
	copy(failedBatches, p.failedBatches)

	return &core.RunSummary{
		State:          state,
		TotalAttempted: p.attempted,
		TotalSucceeded: p.succeeded,
		TotalFailed:    p.failed,
		TotalSkipped:   p.skipped,
		Batches:        p.batches,
		StartedAt:      p.startTime,
		FinishedAt:     finished,
		Duration:       p.elapsed(),
		FailedBatches:  failedBatches,
		AbortReason:    reason,
	}
}

// elapsed must be called with lock held.
func (p *ProgressTracker) elapsed() time.Duration {
	if !p.started {
		return 0
	}
	if !p.endTime.IsZero() {
		return p.endTime.Sub(p.startTime)
	}
	return time.Since(p.startTime)
}

// report prints the current progress. Must be called with lock held.
func (p *ProgressTracker) report() {
	rate := 0.0
	if secs := p.elapsed().Seconds(); secs > 0 {
		rate = float64(p.attempted) / secs
	}

	if p.total <= 0 {
		fmt.Fprintf(p.writer, "\rProgress: %d records - %.1f records/s", p.attempted, rate)
		return
	}

	percentage := float64(p.attempted) / float64(p.total) * 100.0
	if percentage > 100.0 {
		percentage = 100.0
	}

	fmt.Fprintf(p.writer, "\rProgress: %d/%d (%.1f%%) - %.1f records/s",
		p.attempted, p.total, percentage, rate)
}
