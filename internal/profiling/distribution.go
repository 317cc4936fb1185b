package profiling

import (
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"goinsight/domain/analytics"
)

// Summary holds descriptive statistics of a numeric sample
type Summary struct {
	Count  int
	Mean   float64
	Median float64
	StdDev float64
	Min    float64
	Max    float64
	P25    float64
	P75    float64
}

// Summarize computes the descriptive statistics used by the analysis templates
func Summarize(data []float64) (Summary, error) {
	summary := Summary{Count: len(data)}

	mean, err := stats.Mean(data)
	if err != nil {
		return summary, err
	}

	median, err := stats.Median(data)
	if err != nil {
		return summary, err
	}

	stdDev, err := stats.StandardDeviation(data)
	if err != nil {
		return summary, err
	}

	min, err := stats.Min(data)
	if err != nil {
		return summary, err
	}

	max, err := stats.Max(data)
	if err != nil {
		return summary, err
	}

	q25, q75, err := Quartiles(data)
	if err != nil {
		return summary, err
	}

	summary.Mean = mean
	summary.Median = median
	summary.StdDev = stdDev
	summary.Min = min
	summary.Max = max
	summary.P25 = q25
	summary.P75 = q75
	return summary, nil
}

// Quartiles returns the 25th and 75th percentiles. Samples too small to
// interpolate use the nearest-rank method.
func Quartiles(data []float64) (float64, float64, error) {
	percentile := stats.Percentile
	if len(data) < 4 {
		percentile = stats.PercentileNearestRank
	}
	q25, err := percentile(data, 25)
	if err != nil {
		return 0, 0, err
	}
	q75, err := percentile(data, 75)
	if err != nil {
		return 0, 0, err
	}
	return q25, q75, nil
}

// CountOutliers counts values outside the Tukey fences q1-k*IQR and q3+k*IQR
func CountOutliers(data []float64, q25, q75, multiplier float64) int {
	iqr := q75 - q25
	lowerBound := q25 - multiplier*iqr
	upperBound := q75 + multiplier*iqr

	outlierCount := 0
	for _, x := range data {
		if x < lowerBound || x > upperBound {
			outlierCount++
		}
	}
	return outlierCount
}

// BinEdges returns bins+1 evenly spaced edges over [min, max]. A constant
// sample gets a single bin.
func BinEdges(min, max float64, bins int) []float64 {
	if bins < 1 || max <= min {
		return []float64{min, max}
	}
	return floats.Span(make([]float64, bins+1), min, max)
}

// Histogram counts data into the bins described by edges. Every bin is
// half-open except the last, which includes its upper edge. Values outside
// the edges are ignored.
func Histogram(data []float64, edges []float64) []analytics.HistogramBin {
	if len(edges) < 2 {
		return nil
	}
	lo, hi := edges[0], edges[len(edges)-1]

	dividers := make([]float64, len(edges))
	copy(dividers, edges)
	if hi <= lo {
		dividers[len(dividers)-1] = math.Nextafter(lo, math.Inf(1))
	} else {
		dividers[len(dividers)-1] = math.Nextafter(hi, math.Inf(1))
	}

	sorted := make([]float64, 0, len(data))
	for _, x := range data {
		if x >= lo && x <= hi {
			sorted = append(sorted, x)
		}
	}
	sort.Float64s(sorted)

	counts := stat.Histogram(nil, dividers, sorted, nil)

	bins := make([]analytics.HistogramBin, len(counts))
	for i, c := range counts {
		bins[i] = analytics.HistogramBin{
			Lower: Round(edges[i], 4),
			Upper: Round(edges[i+1], 4),
			Count: int(c),
		}
	}
	return bins
}

// Round rounds half away from zero to the given number of decimal places
func Round(x float64, places int32) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	return decimal.NewFromFloat(x).Round(places).InexactFloat64()
}
