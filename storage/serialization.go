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


package storage

//go:generate go run ../cmd/musgen

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/mus-format/mus-go"
	"github.com/poiesic/shuttle/core"
)

// recordCodecVersion is the first byte of every serialized record.
const recordCodecVersion byte = 2

// maxExactInteger is the largest integer a float64 holds exactly.
const maxExactInteger = 1 << 53

// RecordWire is the stored layout of a Record after its version byte.
// Properties are flattened to a JSON object so the layout stays fixed.
type RecordWire struct {
	ID         [16]byte
	Properties string
	Vector     []float32
}

// MarshalRecord serializes a Record to bytes: a version byte followed by the
// RecordWire MUS encoding.
func MarshalRecord(record *core.Record) ([]byte, error) {
	props, err := marshalProperties(record.Properties)
	if err != nil {
		return nil, err
	}

	wire := RecordWire{
		ID:         record.ID,
		Properties: props,
		Vector:     record.Vector,
	}
	buf := make([]byte, 1+RecordWireMUS.Size(wire))
	buf[0] = recordCodecVersion
	n := 1 + RecordWireMUS.Marshal(wire, buf[1:])
	return buf[:n], nil
}

// UnmarshalRecord deserializes a Record from bytes.
// When includeVector is false the decoded vector is dropped.
func UnmarshalRecord(data []byte, includeVector bool) (*core.Record, error) {
	if len(data) == 0 {
		return nil, ErrTruncatedData
	}
	if data[0] != recordCodecVersion {
		return nil, fmt.Errorf("%w: unknown record version %d", ErrSerializationFailed, data[0])
	}

	wire, _, err := RecordWireMUS.Unmarshal(data[1:])
	if err != nil {
		if errors.Is(err, mus.ErrTooSmallByteSlice) {
			return nil, fmt.Errorf("%w: %w", ErrTruncatedData, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}

	props, err := unmarshalProperties(wire.Properties)
	if err != nil {
		return nil, err
	}

	record := &core.Record{
		ID:         uuid.UUID(wire.ID),
		Properties: props,
	}
	if includeVector && len(wire.Vector) > 0 {
		record.Vector = wire.Vector
	}
	return record, nil
}

func marshalProperties(props map[string]any) (string, error) {
	if len(props) == 0 {
		return "", nil
	}
	data, err := json.Marshal(props)
	if err != nil {
		return "", fmt.Errorf("%w: properties: %w", ErrSerializationFailed, err)
	}
	return string(data), nil
}

func unmarshalProperties(data string) (map[string]any, error) {
	if data == "" {
		return nil, nil
	}
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()

	var props map[string]any
	if err := dec.Decode(&props); err != nil {
		return nil, fmt.Errorf("%w: properties: %w", ErrSerializationFailed, err)
	}
	return RestoreNumbers(props), nil
}

// RestoreNumbers replaces, in place, the json.Number values of properties
// decoded with UseNumber. Fractions and integers a float64 holds exactly become
// float64. Larger integers become int64 or uint64, and integers wider than 64
// bits stay json.Number so their digits survive.
func RestoreNumbers(props map[string]any) map[string]any {
	for k, v := range props {
		props[k] = restoreNumber(v)
	}
	return props
}

func restoreNumber(v any) any {
	switch v := v.(type) {
	case json.Number:
		return numberValue(v)
	case map[string]any:
		return RestoreNumbers(v)
	case []any:
		for i := range v {
			v[i] = restoreNumber(v[i])
		}
		return v
	}
	return v
}

func numberValue(n json.Number) any {
	s := n.String()
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		if i >= -maxExactInteger && i <= maxExactInteger {
			return float64(i)
		}
		return i
	}
	if u, err := strconv.ParseUint(s, 10, 64); err == nil {
		return u
	}
	if strings.ContainsAny(s, ".eE") {
		if f, err := n.Float64(); err == nil {
			return f
		}
	}
	return n
}
