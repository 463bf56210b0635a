package embedding

import (
	"context"
	"math"
)

// MockEncoder is a deterministic Encoder for tests: the same text always
// maps to the same unit vector, and only identical texts are identical.
type MockEncoder struct {
	dimension int
}

// NewMockEncoder creates a mock encoder with the given dimension.
func NewMockEncoder(dimension int) *MockEncoder {
	if dimension <= 0 {
		dimension = 64
	}
	return &MockEncoder{dimension: dimension}
}

// Encode produces a character-histogram vector, normalized to unit length.
func (m *MockEncoder) Encode(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, m.dimension)
	for i, r := range text {
		v[(int(r)+i)%m.dimension] += 1.0
	}
	return unit(v), nil
}

// EncodeBatch encodes each text independently.
func (m *MockEncoder) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := m.Encode(ctx, t)
		if err != nil {
			return nil, err
		}
		vectors[i] = v
	}
	return vectors, nil
}

// Model returns the mock model name.
func (m *MockEncoder) Model() string {
	return "mock-encoder"
}

func unit(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(1 / math.Sqrt(sum))
	for i := range v {
		v[i] *= norm
	}
	return v
}

var _ Encoder = (*MockEncoder)(nil)
