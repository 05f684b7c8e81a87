// Package encoding converts embedding vectors and document metadata between
// their Go representations and the forms persisted in SQLite.
package encoding

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// ErrInvalidVector is returned when a vector blob or slice is malformed.
var ErrInvalidVector = errors.New("invalid vector")

// EncodeVector converts a float32 slice to a little-endian blob, four bytes
// per component. The same layout is decoded by the vec_l2 SQL function, so
// Go code and the query planner share one format.
func EncodeVector(vector []float32) ([]byte, error) {
	if vector == nil {
		return nil, ErrInvalidVector
	}

	buf := make([]byte, 4*len(vector))
	for i, val := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(val))
	}
	return buf, nil
}

// DecodeVector converts a little-endian blob back to a float32 slice.
func DecodeVector(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("%w: blob length %d is not a multiple of 4", ErrInvalidVector, len(data))
	}

	vector := make([]float32, len(data)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vector, nil
}

// ValidateVector rejects nil, empty, NaN and infinite vectors.
func ValidateVector(vector []float32) error {
	if len(vector) == 0 {
		return ErrInvalidVector
	}
	for _, val := range vector {
		if val != val {
			return fmt.Errorf("%w: NaN component", ErrInvalidVector)
		}
		if math.IsInf(float64(val), 0) {
			return fmt.Errorf("%w: infinite component", ErrInvalidVector)
		}
	}
	return nil
}

// EncodeMetadata serializes metadata as JSON. Nil metadata becomes an empty
// object so json_extract in filter predicates always operates on valid JSON.
func EncodeMetadata(metadata map[string]any) (string, error) {
	if len(metadata) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return "", fmt.Errorf("failed to encode metadata: %w", err)
	}
	return string(data), nil
}

// DecodeMetadata parses a metadata JSON string. Empty input yields nil.
func DecodeMetadata(jsonStr string) (map[string]any, error) {
	if jsonStr == "" || jsonStr == "{}" {
		return nil, nil
	}
	var metadata map[string]any
	if err := json.Unmarshal([]byte(jsonStr), &metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return metadata, nil
}

// CanonicalMetadata renders metadata with sorted keys. Two logically equal
// metadata maps always produce the same string, which is what the query
// path's deduplication keys on.
func CanonicalMetadata(metadata map[string]any) string {
	if len(metadata) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		kb, _ := json.Marshal(k)
		b.Write(kb)
		b.WriteByte(':')
		vb, err := json.Marshal(metadata[k])
		if err != nil {
			b.WriteString(`null`)
			continue
		}
		b.Write(vb)
	}
	b.WriteByte('}')
	return b.String()
}
