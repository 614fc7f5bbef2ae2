package sqlite

import (
	"encoding/binary"
	"fmt"
	"math"
)

// The embedding column is an opaque BLOB of little-endian float32 values.
// The codec lives here so nothing outside this package knows the vector
// representation.

// encodeVector serializes a float32 vector to its BLOB form.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeVector deserializes a BLOB back to a float32 vector, checking the
// stored dimension.
func decodeVector(data []byte, dimension int) ([]float32, error) {
	if len(data) != 4*dimension {
		return nil, fmt.Errorf("embedding blob is %d bytes, expected %d for dimension %d", len(data), 4*dimension, dimension)
	}
	vec := make([]float32, dimension)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}

// cosineSimilarity returns the cosine of the angle between two vectors, or 0
// when either is zero-length or zero-magnitude.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
