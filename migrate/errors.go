package migrate

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrInvalidBatchSize is returned when a batch size is <= 0
	ErrInvalidBatchSize = errors.New("batch size must be greater than 0")

	// ErrSourceRequired is returned when a Migrator is built without a source
	ErrSourceRequired = errors.New("record source is required")

	// ErrSinkRequired is returned when a Migrator is built without a sink
	ErrSinkRequired = errors.New("record sink is required")

	// ErrAlreadyStarted is returned when Run is called more than once
	ErrAlreadyStarted = errors.New("migration already started")

	// ErrNilResult is returned when a sink reports success without a result
	ErrNilResult = errors.New("sink returned no result")

	// ErrSinkPanicked is returned when a sink panics while writing a batch
	ErrSinkPanicked = errors.New("sink panicked")
)
