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


// Package shuttle migrates record collections, with optional vectors,
// between stores in batches.
package shuttle

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/shuttle/core"
	"github.com/poiesic/shuttle/migrate"
	"github.com/poiesic/shuttle/storage/badger"
	"github.com/poiesic/shuttle/verify"
)

// Config describes a migration between two collections of a Store.
type Config struct {
	migrate.Config

	SourceCollection      string
	DestinationCollection string

	// ResetDestination drops every record in the destination before the run.
	ResetDestination bool
}

// DefaultConfig returns a Config with the engine defaults and no collections.
func DefaultConfig() *Config {
	return &Config{Config: *migrate.DefaultConfig()}
}

// Validate reports the first invalid setting, wrapping core.ErrInvalidConfig.
func (c *Config) Validate() error {
	switch {
	case c.SourceCollection == "":
		return fmt.Errorf("%w: source collection is required", core.ErrInvalidConfig)
	case c.DestinationCollection == "":
		return fmt.Errorf("%w: destination collection is required", core.ErrInvalidConfig)
	case c.SourceCollection == c.DestinationCollection:
		return fmt.Errorf("%w: source and destination are both %q", core.ErrInvalidConfig, c.SourceCollection)
	}
	return c.Config.Validate()
}

// Store is a badger database holding any number of collections.
type Store struct {
	backend   *badger.Backend
	dimension int
	logger    *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*storeOptions)

type storeOptions struct {
	inMemory  bool
	dimension int
}

// WithInMemory keeps the store in memory; the path is ignored.
func WithInMemory() StoreOption {
	return func(o *storeOptions) {
		o.inMemory = true
	}
}

// WithVectorDimension makes every collection reject vectors of another length.
func WithVectorDimension(dim int) StoreOption {
	return func(o *storeOptions) {
		o.dimension = dim
	}
}

// Open opens the store at path, creating it if needed.
func Open(path string, opts ...StoreOption) (*Store, error) {
	options := &storeOptions{}
	for _, opt := range opts {
		opt(options)
	}

	backend, err := badger.OpenBackend(path, options.inMemory)
	if err != nil {
		return nil, err
	}

	return &Store{
		backend:   backend,
		dimension: options.dimension,
		logger:    slog.Default(),
	}, nil
}

// Close closes the store.
func (s *Store) Close() error {
	if err := s.backend.Close(); err != nil {
		s.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

// Collection returns the named collection.
func (s *Store) Collection(name string, opts ...badger.CollectionOption) (*badger.Collection, error) {
	if s.dimension > 0 {
		opts = append([]badger.CollectionOption{badger.WithVectorDimension(s.dimension)}, opts...)
	}
	return badger.NewCollection(s.backend, name, opts...)
}

// Collections returns the names of every non-empty collection.
func (s *Store) Collections() ([]string, error) {
	return badger.ListCollections(s.backend)
}

// RunMigration copies config.SourceCollection into config.DestinationCollection.
// The configuration is validated before anything is read or written.
func (s *Store) RunMigration(ctx context.Context, config *Config, opts ...migrate.Option) (*core.RunSummary, error) {
	if config == nil {
		return nil, fmt.Errorf("%w: config is required", core.ErrInvalidConfig)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	source, err := s.Collection(config.SourceCollection)
	if err != nil {
		return nil, err
	}
	dest, err := s.Collection(config.DestinationCollection)
	if err != nil {
		return nil, err
	}

	m, err := migrate.NewMigrator(source, dest, &config.Config, opts...)
	if err != nil {
		return nil, err
	}

	if config.ResetDestination {
		if err := dest.Drop(); err != nil {
			return nil, fmt.Errorf("failed to reset destination %q: %w", config.DestinationCollection, err)
		}
	}

	return m.Run(ctx)
}

// Verify compares every record of the source collection with its copy in dest.
func (s *Store) Verify(ctx context.Context, source, dest string, opts ...verify.Option) (*verify.Report, error) {
	src, err := s.Collection(source)
	if err != nil {
		return nil, err
	}
	dst, err := s.Collection(dest)
	if err != nil {
		return nil, err
	}
	return verify.New(src, dst, opts...).Run(ctx)
}
