// Package verify checks that a migration copied every record intact.
//
// A Verifier walks the source, fingerprints each record and compares it with
// the destination's copy of the same identifier. Lookups against the
// destination run concurrently in chunks.
package verify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/poiesic/shuttle/core"
	"github.com/poiesic/shuttle/migrate"
	"github.com/poiesic/shuttle/storage"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultChunkSize is the number of identifiers looked up per destination call.
	DefaultChunkSize = 100

	// DefaultConcurrency is the number of lookups in flight.
	DefaultConcurrency = 4

	// maxReportedIDs bounds the identifier lists kept in a Report.
	maxReportedIDs = 100
)

// Report is the outcome of a verification.
type Report struct {
	Checked      int
	Matched      int
	Missing      int
	Mismatched   int
	Unverifiable int // source records without an identifier

	// MissingIDs and MismatchedIDs hold at most the first 100 identifiers.
	MissingIDs    []uuid.UUID
	MismatchedIDs []uuid.UUID
}

// OK reports whether every checked record was found intact.
func (r *Report) OK() bool {
	return r.Missing == 0 && r.Mismatched == 0
}

func (r *Report) merge(o *Report) {
	r.Checked += o.Checked
	r.Matched += o.Matched
	r.Missing += o.Missing
	r.Mismatched += o.Mismatched
	r.MissingIDs = appendCapped(r.MissingIDs, o.MissingIDs)
	r.MismatchedIDs = appendCapped(r.MismatchedIDs, o.MismatchedIDs)
}

func appendCapped(dst, src []uuid.UUID) []uuid.UUID {
	if room := maxReportedIDs - len(dst); room < len(src) {
		src = src[:max(room, 0)]
	}
	return append(dst, src...)
}

// Verifier compares a source against a destination.
type Verifier struct {
	source         storage.RecordSource
	dest           storage.RecordLookup
	chunkSize      int
	concurrency    int
	includeVectors bool
	maxItems       int
	logger         *slog.Logger
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithChunkSize sets how many identifiers are looked up per destination call.
func WithChunkSize(size int) Option {
	return func(v *Verifier) {
		if size > 0 {
			v.chunkSize = size
		}
	}
}

// WithConcurrency sets how many destination lookups run at once.
func WithConcurrency(n int) Option {
	return func(v *Verifier) {
		if n > 0 {
			v.concurrency = n
		}
	}
}

// WithVectors includes vectors in the comparison.
func WithVectors(include bool) Option {
	return func(v *Verifier) {
		v.includeVectors = include
	}
}

// WithMaxItems stops after n source records; migrate.Unlimited checks them all.
func WithMaxItems(n int) Option {
	return func(v *Verifier) {
		v.maxItems = n
	}
}

// WithLogger sets the logger for the verifier.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Verifier) {
		v.logger = logger
	}
}

// New creates a verifier reading from source and looking records up in dest.
func New(source storage.RecordSource, dest storage.RecordLookup, opts ...Option) *Verifier {
	v := &Verifier{
		source:      source,
		dest:        dest,
		chunkSize:   DefaultChunkSize,
		concurrency: DefaultConcurrency,
		maxItems:    migrate.Unlimited,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Run verifies every source record (up to the configured maximum).
// It fails on the first source or lookup error.
func (v *Verifier) Run(ctx context.Context) (*Report, error) {
	batcher, err := migrate.NewBatcher(v.chunkSize)
	if err != nil {
		return nil, err
	}

	var (
		mu     sync.Mutex
		report Report
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.concurrency)

	check := func(chunk core.Batch) {
		g.Go(func() error {
			partial, err := v.checkChunk(gctx, chunk.Records)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", chunk.Index, err)
			}
			mu.Lock()
			report.merge(partial)
			mu.Unlock()
			return nil
		})
	}

	var sourceErr error
	if v.maxItems != 0 {
		consumed := 0
		for record, err := range v.source.Records(gctx, v.includeVectors) {
			if err != nil {
				sourceErr = fmt.Errorf("read source: %w", err)
				break
			}
			consumed++

			if !record.HasID() {
				mu.Lock()
				report.Unverifiable++
				mu.Unlock()
			} else if chunk, full := batcher.Add(record); full {
				check(chunk)
			}

			if v.maxItems != migrate.Unlimited && consumed >= v.maxItems {
				break
			}
		}
	}
	if chunk, ok := batcher.Flush(); ok && sourceErr == nil {
		check(chunk)
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if sourceErr != nil {
		return nil, sourceErr
	}

	v.logger.Info("verification complete",
		"checked", report.Checked,
		"matched", report.Matched,
		"missing", report.Missing,
		"mismatched", report.Mismatched,
		"unverifiable", report.Unverifiable)
	return &report, nil
}

func (v *Verifier) checkChunk(ctx context.Context, records []*core.Record) (*Report, error) {
	ids := make([]uuid.UUID, len(records))
	for i, record := range records {
		ids[i] = record.ID
	}

	found, err := v.dest.GetRecords(ctx, v.includeVectors, ids...)
	if err != nil {
		return nil, err
	}

	report := &Report{Checked: len(records)}
	for _, record := range records {
		copied, ok := found[record.ID]
		if !ok {
			report.Missing++
			report.MissingIDs = append(report.MissingIDs, record.ID)
			continue
		}

		same, err := sameContent(record, copied, v.includeVectors)
		if err != nil {
			return nil, err
		}
		if same {
			report.Matched++
		} else {
			report.Mismatched++
			report.MismatchedIDs = append(report.MismatchedIDs, record.ID)
			v.logger.Debug("record differs", "id", record.ID)
		}
	}
	return report, nil
}

func sameContent(a, b *core.Record, withVector bool) (bool, error) {
	fa, err := core.FingerprintRecord(a, withVector)
	if err != nil {
		return false, err
	}
	fb, err := core.FingerprintRecord(b, withVector)
	if err != nil {
		return false, err
	}
	return fa == fb, nil
}
