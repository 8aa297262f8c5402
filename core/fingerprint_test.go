package core

import (
	"testing"

	"github.com/google/uuid"
)

func TestFingerprintRecord_Deterministic(t *testing.T) {
	id := uuid.New()
	a := &Record{
		ID:         id,
		Properties: map[string]any{"title": "Wiki", "views": 12, "tags": []any{"x", "y"}},
		Vector:     []float32{0.5, 0.25},
	}
	// Same content as it would come back from a JSON round trip.
	b := &Record{
		ID:         id,
		Properties: map[string]any{"views": float64(12), "tags": []any{"x", "y"}, "title": "Wiki"},
		Vector:     []float32{0.5, 0.25},
	}

	fa, err := FingerprintRecord(a, true)
	if err != nil {
		t.Fatalf("FingerprintRecord() error = %v", err)
	}
	fb, err := FingerprintRecord(b, true)
	if err != nil {
		t.Fatalf("FingerprintRecord() error = %v", err)
	}

	if fa != fb {
		t.Errorf("fingerprints differ for equal content: %s vs %s", fa, fb)
	}
	if len(fa.String()) != 32 {
		t.Errorf("String() length = %d, want 32", len(fa.String()))
	}
}

func TestFingerprintRecord_Differences(t *testing.T) {
	base := &Record{
		ID:         uuid.New(),
		Properties: map[string]any{"title": "Wiki"},
		Vector:     []float32{1, 0},
	}
	baseFP, _ := FingerprintRecord(base, true)

	tests := []struct {
		name   string
		record *Record
	}{
		{"different ID", &Record{ID: uuid.New(), Properties: base.Properties, Vector: base.Vector}},
		{"different property", &Record{ID: base.ID, Properties: map[string]any{"title": "Other"}, Vector: base.Vector}},
		{"different vector", &Record{ID: base.ID, Properties: base.Properties, Vector: []float32{0, 1}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fp, err := FingerprintRecord(tt.record, true)
			if err != nil {
				t.Fatalf("FingerprintRecord() error = %v", err)
			}
			if fp == baseFP {
				t.Errorf("fingerprint should differ")
			}
		})
	}

	t.Run("vector ignored when not requested", func(t *testing.T) {
		other := &Record{ID: base.ID, Properties: base.Properties, Vector: []float32{0, 1}}
		f1, _ := FingerprintRecord(base, false)
		f2, _ := FingerprintRecord(other, false)
		if f1 != f2 {
			t.Errorf("fingerprints should match when vectors are excluded")
		}
	})
}
