package core

import (
	"encoding/binary"
	"encoding/hex"
	"math"
	"slices"

	"github.com/go-crypt/x/blake2b"
	json "github.com/goccy/go-json"
)

// Fingerprint is a BLAKE2b digest of a record's content.
type Fingerprint [16]byte

func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// FingerprintRecord computes a deterministic digest over a record's identifier,
// properties and, when withVector is set, its vector.
// Property keys are hashed in sorted order so map iteration order does not matter.
// Numeric property values hash the same whether held as int or float64.
func FingerprintRecord(record *Record, withVector bool) (Fingerprint, error) {
	var fp Fingerprint

	h, err := blake2b.New(len(fp), nil)
	if err != nil {
		return fp, err
	}

	h.Write(record.ID[:])

	keys := make([]string, 0, len(record.Properties))
	for k := range record.Properties {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		val, err := json.Marshal(record.Properties[k])
		if err != nil {
			return fp, err
		}
		h.Write([]byte(k))
		h.Write([]byte{0})
		h.Write(val)
		h.Write([]byte{0})
	}

	if withVector {
		var buf [4]byte
		for _, v := range record.Vector {
			binary.LittleEndian.PutUint32(buf[:], math.Float32bits(v))
			h.Write(buf[:])
		}
	}

	copy(fp[:], h.Sum(nil))
	return fp, nil
}
