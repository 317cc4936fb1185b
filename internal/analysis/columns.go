// Package analysis holds the fixed analytical templates applied uniformly to
// any dataset: the baseline analysis and the metric drill-down.
package analysis

import (
	"fmt"
	"sort"
	"strings"

	"goinsight/adapters/coercer"
	"goinsight/domain/analytics"
	"goinsight/domain/dataset"
	"goinsight/internal/profiling"
	"goinsight/internal/semantics"
)

// Options tunes the templates. The defaults are what every caller gets unless
// configuration overrides them.
type Options struct {
	MaxCategoryCardinality int     `yaml:"max_category_cardinality" env:"ANALYSIS_MAX_CATEGORY_CARDINALITY"`
	HistogramBins          int     `yaml:"histogram_bins" env:"ANALYSIS_HISTOGRAM_BINS"`
	MinOutcomeShare        float64 `yaml:"min_outcome_share" env:"ANALYSIS_MIN_OUTCOME_SHARE"`
	MaxKeyDifferences      int     `yaml:"max_key_differences" env:"ANALYSIS_MAX_KEY_DIFFERENCES"`
}

// DefaultOptions returns the standard template settings
func DefaultOptions() Options {
	return Options{
		MaxCategoryCardinality: 20,
		HistogramBins:          10,
		MinOutcomeShare:        0.05,
		MaxKeyDifferences:      7,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxCategoryCardinality <= 0 {
		o.MaxCategoryCardinality = d.MaxCategoryCardinality
	}
	if o.HistogramBins <= 0 {
		o.HistogramBins = d.HistogramBins
	}
	if o.MinOutcomeShare <= 0 {
		o.MinOutcomeShare = d.MinOutcomeShare
	}
	if o.MaxKeyDifferences <= 0 {
		o.MaxKeyDifferences = d.MaxKeyDifferences
	}
	return o
}

// columnRoles splits a profile into analysable metrics and low-cardinality
// dimensions; everything else is recorded as skipped
type columnRoles struct {
	metrics    []dataset.ColumnProfile
	dimensions []dataset.ColumnProfile
	skipped    []analytics.SkippedColumn
}

func assignRoles(profile *dataset.DatasetProfile, maxCardinality int) columnRoles {
	var roles columnRoles
	skip := func(col dataset.ColumnProfile, reason string) {
		roles.skipped = append(roles.skipped, analytics.SkippedColumn{Column: col.Name, Reason: reason})
	}

	for _, col := range profile.Columns {
		if semantics.IsIdentifier(col, profile.RowCount) {
			skip(col, "identifier or timestamp")
			continue
		}
		switch semantics.SemanticOf(col) {
		case dataset.SemanticNumeric:
			roles.metrics = append(roles.metrics, col)
		case dataset.SemanticCategorical, dataset.SemanticBoolean:
			if col.DistinctCount < 2 || col.DistinctCount > maxCardinality {
				skip(col, fmt.Sprintf("%d distinct values, outside 2..%d", col.DistinctCount, maxCardinality))
				continue
			}
			roles.dimensions = append(roles.dimensions, col)
		case dataset.SemanticDate:
			skip(col, "date")
		default:
			skip(col, "no values")
		}
	}
	return roles
}

// numericPairs returns the parseable metric values with the row index they came from
func numericPairs(c *coercer.TypeCoercer, parsed *dataset.ParsedData, column string) ([]float64, []int) {
	var values []float64
	var rows []int
	for i, row := range parsed.Rows {
		if n, ok := c.Number(row[column]); ok {
			values = append(values, n)
			rows = append(rows, i)
		}
	}
	return values, rows
}

// categoryOf returns the trimmed cell text, or false for a null cell
func categoryOf(c *coercer.TypeCoercer, v dataset.Value) (string, bool) {
	if c.IsNull(v) {
		return "", false
	}
	return strings.TrimSpace(v.String()), true
}

// meanAccumulator keeps a running sum per key and remembers key order
type meanAccumulator struct {
	sums   map[string]float64
	counts map[string]int
}

func newMeanAccumulator() *meanAccumulator {
	return &meanAccumulator{sums: map[string]float64{}, counts: map[string]int{}}
}

func (m *meanAccumulator) add(key string, x float64) {
	m.sums[key] += x
	m.counts[key]++
}

func (m *meanAccumulator) mean(key string) float64 {
	if m.counts[key] == 0 {
		return 0
	}
	return profiling.Round(m.sums[key]/float64(m.counts[key]), 2)
}

func (m *meanAccumulator) sortedKeys() []string {
	keys := make([]string, 0, len(m.counts))
	for k := range m.counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
