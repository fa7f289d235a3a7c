package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentile(t *testing.T) {
	values := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0}

	tests := []struct {
		p    int
		want float64
	}{
		{0, 0.1},
		{50, 0.5},
		{95, 1.0},
		{100, 1.0},
		{-5, 0.1},
		{150, 1.0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Percentile(values, tt.p), 1e-9, "p=%d", tt.p)
	}
}

func TestPercentile_Empty(t *testing.T) {
	assert.Equal(t, 0.0, Percentile(nil, 50))
}

func TestMean(t *testing.T) {
	assert.Equal(t, 0.0, Mean(nil))
	assert.InDelta(t, 2.5, Mean([]float64{1, 2, 3, 4}), 1e-9)
}

func TestDescribe(t *testing.T) {
	values := []float64{1.0, 0.5, 0.75, 0.25}
	d := Describe(values)

	assert.Equal(t, 4, d.Count)
	assert.InDelta(t, 0.625, d.Mean, 1e-9)
	assert.Equal(t, 0.25, d.Min)
	assert.Equal(t, 1.0, d.Max)
	assert.Equal(t, 0.5, d.P50)
	assert.Equal(t, 1.0, d.P95)

	// input untouched
	assert.Equal(t, []float64{1.0, 0.5, 0.75, 0.25}, values)
}

func TestDescribe_Empty(t *testing.T) {
	assert.Equal(t, Distribution{}, Describe(nil))
}
