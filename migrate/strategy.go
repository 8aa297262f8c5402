package migrate

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/shuttle/core"
)

// executor runs batch writes. submit may block until the write has been
// accepted; wait blocks until every accepted write has finished.
type executor interface {
	submit(batch core.Batch) error
	wait()
	release()
}

// sequentialExecutor writes each batch on the submitting goroutine.
type sequentialExecutor struct {
	write func(core.Batch)
}

func (e *sequentialExecutor) submit(batch core.Batch) error {
	e.write(batch)
	return nil
}

func (e *sequentialExecutor) wait()    {}
func (e *sequentialExecutor) release() {}

// concurrentExecutor writes batches on an ants pool. A bounded pool blocks
// submit while all of its workers are busy, which caps writes in flight.
type concurrentExecutor struct {
	pool  *ants.Pool
	write func(core.Batch)
	wg    sync.WaitGroup
}

func newConcurrentExecutor(limit int, write func(core.Batch), logger *slog.Logger) (*concurrentExecutor, error) {
	size := limit
	if limit == Unbounded {
		size = -1
	}

	pool, err := ants.NewPool(size, ants.WithPanicHandler(func(p any) {
		logger.Error("batch writer panicked", "panic", p)
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}

	return &concurrentExecutor{
		pool:  pool,
		write: write,
	}, nil
}

func (e *concurrentExecutor) submit(batch core.Batch) error {
	e.wg.Add(1)
	err := e.pool.Submit(func() {
		defer e.wg.Done()
		e.write(batch)
	})
	if err != nil {
		e.wg.Done()
		return err
	}
	return nil
}

func (e *concurrentExecutor) wait() {
	e.wg.Wait()
}

func (e *concurrentExecutor) release() {
	e.pool.Release()
}

func newExecutor(config *Config, write func(core.Batch), logger *slog.Logger) (executor, error) {
	if config.Sequential() {
		return &sequentialExecutor{write: write}, nil
	}
	return newConcurrentExecutor(config.ConcurrencyLimit, write, logger)
}
