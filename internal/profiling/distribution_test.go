package profiling

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	summary, err := Summarize([]float64{1, 2, 3, 4, 5, 6, 7, 8})
	require.NoError(t, err)

	assert.Equal(t, 8, summary.Count)
	assert.InDelta(t, 4.5, summary.Mean, 1e-9)
	assert.InDelta(t, 4.5, summary.Median, 1e-9)
	assert.Equal(t, 1.0, summary.Min)
	assert.Equal(t, 8.0, summary.Max)
	assert.Equal(t, 2.0, summary.P25)
	assert.Equal(t, 6.0, summary.P75)

	_, err = Summarize(nil)
	assert.Error(t, err)
}

func TestQuartilesSmallSamples(t *testing.T) {
	q25, q75, err := Quartiles([]float64{10, 20})
	require.NoError(t, err)
	assert.Equal(t, 10.0, q25)
	assert.Equal(t, 20.0, q75)

	q25, q75, err = Quartiles([]float64{7})
	require.NoError(t, err)
	assert.Equal(t, 7.0, q25)
	assert.Equal(t, 7.0, q75)
}

func TestCountOutliers(t *testing.T) {
	data := []float64{10, 11, 12, 13, 14, 100, -50}
	assert.Equal(t, 2, CountOutliers(data, 11, 13, 1.5))
	assert.Equal(t, 0, CountOutliers(data, 11, 13, 100))
}

func TestHistogramCountsEveryValue(t *testing.T) {
	data := []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	edges := BinEdges(0, 10, 5)
	require.Len(t, edges, 6)

	bins := Histogram(data, edges)
	require.Len(t, bins, 5)

	total := 0
	for _, b := range bins {
		total += b.Count
	}
	assert.Equal(t, len(data), total)
	assert.Equal(t, 2, bins[0].Count)
	assert.Equal(t, 3, bins[4].Count, "last bin includes its upper edge")
	assert.Equal(t, 0.0, bins[0].Lower)
	assert.Equal(t, 10.0, bins[4].Upper)
}

func TestHistogramConstantSample(t *testing.T) {
	edges := BinEdges(4, 4, 10)
	assert.Equal(t, []float64{4, 4}, edges)

	bins := Histogram([]float64{4, 4, 4}, edges)
	require.Len(t, bins, 1)
	assert.Equal(t, 3, bins[0].Count)
}

func TestRound(t *testing.T) {
	assert.Equal(t, 2.35, Round(2.345, 2))
	assert.Equal(t, -1.5, Round(-1.45, 1))
	assert.Equal(t, 3.0, Round(3, 2))
}
