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


// Package storage provides the storage abstraction layer for shuttle.
//
// This package defines the contracts a migration needs from the stores it
// reads from and writes to. The engine in package migrate only sees these
// interfaces, so any backend (BadgerDB, S3, an in-memory fake) can serve as
// either side of a migration.
//
// # Contracts
//
//   - RecordSource: a lazy, cursor-backed sequence of records
//   - RecordSink: bulk insert of a batch, reporting per-record failures
//   - Counter: optional up-front size, used for progress totals
//   - RecordLookup: fetch records by ID, used for verification
//
// # Failure Modes
//
// Sinks distinguish two failure modes. A write call that cannot complete
// returns a *core.TransportError. A call that completes but rejects some
// records returns a BatchResult with Failed > 0 and a nil error.
//
// # Serialization
//
// MarshalRecord and UnmarshalRecord provide the binary value format used by
// key-value backends. Values are versioned; property payloads are JSON so
// that arbitrary property types survive a round trip.
//
// # Usage
//
// Open a BadgerDB collection and use it as a source:
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	wiki, err := badger.NewCollection(backend, "Wiki")
//	for record, err := range wiki.Records(ctx, true) {
//	    ...
//	}
//
// # Thread Safety
//
// All sink implementations must be thread-safe and support concurrent
// InsertBatch calls from multiple goroutines.
//
// # Context Support
//
// All methods accept context.Context for cancellation and timeout support.
package storage
