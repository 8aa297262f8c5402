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


package core

import (
	"errors"
	"fmt"
)

// Migration errors
var (
	// ErrInvalidConfig indicates a migration was configured with invalid values.
	// It is always returned before any I/O takes place.
	ErrInvalidConfig = errors.New("invalid migration config")

	// ErrAborted indicates a run terminated in the Aborted state.
	ErrAborted = errors.New("migration aborted")
)

// Record validation errors
var (
	// ErrInvalidRecord indicates a Record failed validation.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrEmptyPropertyKey indicates a property with an empty name.
	ErrEmptyPropertyKey = errors.New("property key cannot be empty")

	// ErrInvalidVector indicates a vector containing NaN or infinite components.
	ErrInvalidVector = errors.New("vector contains non-finite values")

	// ErrVectorDimension indicates a vector whose length does not match the collection.
	ErrVectorDimension = errors.New("vector dimension mismatch")
)

// TransportError reports that a call to a record source or sink could not
// complete (network, auth, serialization, storage engine failure).
// It is distinct from a partial batch failure, which is reported as data.
type TransportError struct {
	Op  string
	Err error
}

// NewTransportError wraps err in a TransportError for the named operation.
// Returns nil if err is nil.
func NewTransportError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &TransportError{Op: op, Err: err}
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport error: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether any error in err's chain is a TransportError.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
