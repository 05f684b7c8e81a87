package encoding

import (
	"math"
	"testing"
)

func TestVectorRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		vector []float32
	}{
		{name: "simple vector", vector: []float32{1.0, 2.0, 3.0}},
		{name: "single element", vector: []float32{42.0}},
		{name: "negative values", vector: []float32{-1.5, 0.0, 2.25}},
		{name: "large vector", vector: make([]float32, 1536)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := range tt.vector {
				if tt.vector[i] == 0 {
					tt.vector[i] = float32(i) * 0.1
				}
			}

			encoded, err := EncodeVector(tt.vector)
			if err != nil {
				t.Fatalf("EncodeVector() error = %v", err)
			}
			if len(encoded) != 4*len(tt.vector) {
				t.Errorf("encoded length = %d, want %d", len(encoded), 4*len(tt.vector))
			}

			decoded, err := DecodeVector(encoded)
			if err != nil {
				t.Fatalf("DecodeVector() error = %v", err)
			}
			if len(decoded) != len(tt.vector) {
				t.Fatalf("decoded length = %d, want %d", len(decoded), len(tt.vector))
			}
			for i, v := range decoded {
				if v != tt.vector[i] {
					t.Errorf("decoded[%d] = %v, want %v", i, v, tt.vector[i])
				}
			}
		})
	}
}

func TestEncodeVectorNil(t *testing.T) {
	if _, err := EncodeVector(nil); err == nil {
		t.Error("expected error for nil vector")
	}
}

func TestDecodeVectorBadLength(t *testing.T) {
	if _, err := DecodeVector([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated blob")
	}
}

func TestValidateVector(t *testing.T) {
	tests := []struct {
		name    string
		vector  []float32
		wantErr bool
	}{
		{name: "valid", vector: []float32{1, 2, 3}},
		{name: "nil", vector: nil, wantErr: true},
		{name: "empty", vector: []float32{}, wantErr: true},
		{name: "nan", vector: []float32{1, float32(math.NaN())}, wantErr: true},
		{name: "inf", vector: []float32{float32(math.Inf(1))}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateVector(tt.vector)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateVector() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	meta := map[string]any{
		"lang":  "en",
		"page":  float64(3),
		"draft": true,
		"tags":  []any{"a", "b"},
	}

	encoded, err := EncodeMetadata(meta)
	if err != nil {
		t.Fatalf("EncodeMetadata() error = %v", err)
	}

	decoded, err := DecodeMetadata(encoded)
	if err != nil {
		t.Fatalf("DecodeMetadata() error = %v", err)
	}
	if decoded["lang"] != "en" || decoded["page"] != float64(3) || decoded["draft"] != true {
		t.Errorf("decoded metadata mismatch: %v", decoded)
	}
}

func TestEncodeMetadataEmpty(t *testing.T) {
	s, err := EncodeMetadata(nil)
	if err != nil {
		t.Fatalf("EncodeMetadata(nil) error = %v", err)
	}
	if s != "{}" {
		t.Errorf("EncodeMetadata(nil) = %q, want {}", s)
	}
}

func TestCanonicalMetadataStable(t *testing.T) {
	a := map[string]any{"b": 2, "a": 1, "c": "x"}
	b := map[string]any{"c": "x", "a": 1, "b": 2}
	if CanonicalMetadata(a) != CanonicalMetadata(b) {
		t.Errorf("canonical forms differ: %q vs %q", CanonicalMetadata(a), CanonicalMetadata(b))
	}
	if CanonicalMetadata(nil) != "{}" {
		t.Errorf("CanonicalMetadata(nil) = %q, want {}", CanonicalMetadata(nil))
	}
}
