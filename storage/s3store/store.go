// Package s3store keeps records as JSON Lines objects in an S3-compatible bucket.
//
// Each batch written through InsertBatch becomes one object named
// <prefix>batch-<index>.jsonl holding one record per line. Reading lists the
// prefix in key order and streams every object back line by line.
package s3store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/poiesic/shuttle/core"
	"github.com/poiesic/shuttle/storage"
)

const (
	objectSuffix = ".jsonl"
	contentType  = "application/x-ndjson"

	// DefaultListPageSize is the number of keys requested per list call.
	DefaultListPageSize = 1000
)

// API is the subset of the S3 client used by Store.
type API interface {
	s3.ListObjectsV2APIClient
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// jsonRecord is the line format of an object.
type jsonRecord struct {
	ID         uuid.UUID      `json:"id"`
	Properties map[string]any `json:"properties,omitempty"`
	Vector     []float32      `json:"vector,omitempty"`
}

// Store reads and writes records under a key prefix of one bucket.
type Store struct {
	api          API
	bucket       string
	prefix       string
	listPageSize int32
	logger       *slog.Logger
}

var (
	_ storage.RecordSource = (*Store)(nil)
	_ storage.RecordSink   = (*Store)(nil)
)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithListPageSize sets how many keys each list call requests.
func WithListPageSize(n int32) Option {
	return func(s *Store) {
		if n > 0 {
			s.listPageSize = n
		}
	}
}

// New returns a store for bucket. A non-empty prefix is treated as a
// directory: a trailing slash is added if missing.
func New(api API, bucket, prefix string, opts ...Option) (*Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("%w: bucket name is required", storage.ErrInvalidCollection)
	}
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	s := &Store{
		api:          api,
		bucket:       bucket,
		prefix:       prefix,
		listPageSize: DefaultListPageSize,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "s3store", "bucket", bucket, "prefix", prefix)
	return s, nil
}

// ObjectKey returns the key a batch with the given index is written to.
func (s *Store) ObjectKey(index int) string {
	return fmt.Sprintf("%sbatch-%08d%s", s.prefix, index, objectSuffix)
}

// InsertBatch writes the valid records of batch as one object.
// Rewriting a batch index replaces the previous object.
func (s *Store) InsertBatch(ctx context.Context, batch core.Batch) (*core.BatchResult, error) {
	result := &core.BatchResult{
		Index:     batch.Index,
		Attempted: batch.Len(),
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	written := 0
	for _, record := range batch.Records {
		if err := core.ValidateRecord(record); err != nil {
			result.Errors = append(result.Errors, core.RecordError{ID: idOf(record), Reason: err.Error()})
			continue
		}

		id := record.ID
		if !record.HasID() {
			var err error
			if id, err = uuid.NewV7(); err != nil {
				return nil, err
			}
		}

		line := jsonRecord{ID: id, Properties: record.Properties, Vector: record.Vector}
		if err := enc.Encode(&line); err != nil {
			result.Errors = append(result.Errors, core.RecordError{ID: id, Reason: err.Error()})
			continue
		}
		written++
	}

	if written > 0 {
		key := s.ObjectKey(batch.Index)
		_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(buf.Bytes()),
			ContentType: aws.String(contentType),
		})
		if err != nil {
			return nil, core.NewTransportError("put object", err)
		}
		s.logger.Debug("wrote batch object", "key", key, "records", written)
	}

	result.Failed = len(result.Errors)
	result.Succeeded = result.Attempted - result.Failed
	return result, nil
}

func idOf(record *core.Record) uuid.UUID {
	if record == nil {
		return uuid.Nil
	}
	return record.ID
}

// Records streams every record under the prefix, object by object in key order.
func (s *Store) Records(ctx context.Context, includeVectors bool) iter.Seq2[*core.Record, error] {
	return func(yield func(*core.Record, error) bool) {
		paginator := s3.NewListObjectsV2Paginator(s.api, &s3.ListObjectsV2Input{
			Bucket:  aws.String(s.bucket),
			Prefix:  aws.String(s.prefix),
			MaxKeys: aws.Int32(s.listPageSize),
		})

		for paginator.HasMorePages() {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			page, err := paginator.NextPage(ctx)
			if err != nil {
				yield(nil, core.NewTransportError("list objects", err))
				return
			}

			for _, obj := range page.Contents {
				key := aws.ToString(obj.Key)
				if !strings.HasSuffix(key, objectSuffix) {
					continue
				}
				if !s.readObject(ctx, key, includeVectors, yield) {
					return
				}
			}
		}
	}
}

// readObject yields the records of one object. Returns false when iteration must stop.
func (s *Store) readObject(ctx context.Context, key string, includeVectors bool, yield func(*core.Record, error) bool) bool {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		yield(nil, core.NewTransportError("get object", err))
		return false
	}
	defer out.Body.Close()

	dec := json.NewDecoder(out.Body)
	dec.UseNumber()
	for line := 1; ; line++ {
		var jr jsonRecord
		err := dec.Decode(&jr)
		if errors.Is(err, io.EOF) {
			return true
		}
		if err != nil {
			yield(nil, fmt.Errorf("%w: %s line %d: %w", storage.ErrSerializationFailed, key, line, err))
			return false
		}

		record := &core.Record{ID: jr.ID, Properties: storage.RestoreNumbers(jr.Properties)}
		if includeVectors {
			record.Vector = jr.Vector
		}
		if !yield(record, nil) {
			return false
		}
	}
}
