// Package quality runs deterministic data-health checks that produce
// advisory warnings. A warning never blocks analysis.
package quality

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"

	"goinsight/adapters/coercer"
	"goinsight/domain/analytics"
	"goinsight/domain/core"
	"goinsight/domain/dataset"
	"goinsight/internal/profiling"
)

// Check names reported in DataQualityCheckResult.ChecksRun
const (
	CheckRowCount       = "row_count"
	CheckTimeCoverage   = "time_coverage"
	CheckNullDensity    = "null_density"
	CheckOutlierDensity = "outlier_density"
)

// Thresholds holds every tunable limit of the checks
type Thresholds struct {
	MinRowCount      int `yaml:"min_row_count" env:"QUALITY_MIN_ROW_COUNT"`
	CriticalRowCount int `yaml:"critical_row_count" env:"QUALITY_CRITICAL_ROW_COUNT"`

	DailyMaxSpanDays    int     `yaml:"daily_max_span_days" env:"QUALITY_DAILY_MAX_SPAN_DAYS"`
	WeeklyMaxSpanDays   int     `yaml:"weekly_max_span_days" env:"QUALITY_WEEKLY_MAX_SPAN_DAYS"`
	LowCoverageRatio    float64 `yaml:"low_coverage_ratio" env:"QUALITY_LOW_COVERAGE_RATIO"`
	SparseLatestRatio   float64 `yaml:"sparse_latest_ratio" env:"QUALITY_SPARSE_LATEST_RATIO"`
	MinPeriodsForSparse int     `yaml:"min_periods_for_sparse" env:"QUALITY_MIN_PERIODS_FOR_SPARSE"`

	NullRatio float64 `yaml:"null_ratio" env:"QUALITY_NULL_RATIO"`

	IQRMultiplier    float64 `yaml:"iqr_multiplier" env:"QUALITY_IQR_MULTIPLIER"`
	OutlierRatio     float64 `yaml:"outlier_ratio" env:"QUALITY_OUTLIER_RATIO"`
	OutlierSampleCap int     `yaml:"outlier_sample_cap" env:"QUALITY_OUTLIER_SAMPLE_CAP"`
	MinOutlierSample int     `yaml:"min_outlier_sample" env:"QUALITY_MIN_OUTLIER_SAMPLE"`
}

// DefaultThresholds returns the standard limits
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinRowCount:         50,
		CriticalRowCount:    10,
		DailyMaxSpanDays:    90,
		WeeklyMaxSpanDays:   365,
		LowCoverageRatio:    0.8,
		SparseLatestRatio:   0.5,
		MinPeriodsForSparse: 3,
		NullRatio:           0.2,
		IQRMultiplier:       1.5,
		OutlierRatio:        0.05,
		OutlierSampleCap:    10000,
		MinOutlierSample:    10,
	}
}

// Checker runs the four independent checks
type Checker struct {
	thresholds Thresholds
	coercer    *coercer.TypeCoercer
	logger     *zap.Logger
}

// NewChecker creates a checker with the given thresholds
func NewChecker(thresholds Thresholds, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{
		thresholds: thresholds,
		coercer:    coercer.Default(),
		logger:     logger.Named("quality"),
	}
}

// Run executes every check against the same parsed data and profile
func (c *Checker) Run(parsed *dataset.ParsedData, profile *dataset.DatasetProfile, versionID core.DatasetVersionID) *analytics.DataQualityCheckResult {
	result := &analytics.DataQualityCheckResult{
		DatasetVersionID: versionID,
		Warnings:         []analytics.QualityWarning{},
	}
	if parsed != nil {
		result.RowCount = parsed.RowCount
	} else if profile != nil {
		result.RowCount = profile.RowCount
	}

	result.ChecksRun = append(result.ChecksRun, CheckRowCount)
	result.Warnings = append(result.Warnings, c.checkRowCount(result.RowCount)...)

	if profile != nil {
		if parsed != nil {
			result.ChecksRun = append(result.ChecksRun, CheckTimeCoverage)
			result.Warnings = append(result.Warnings, c.checkTimeCoverage(parsed, profile)...)
		}

		result.ChecksRun = append(result.ChecksRun, CheckNullDensity)
		result.Warnings = append(result.Warnings, c.checkNullDensity(profile)...)

		if parsed != nil {
			result.ChecksRun = append(result.ChecksRun, CheckOutlierDensity)
			result.Warnings = append(result.Warnings, c.checkOutliers(parsed, profile)...)
		}
	}

	c.logger.Info("quality checks complete",
		zap.String("dataset_version_id", versionID.String()),
		zap.Int("rows", result.RowCount),
		zap.Int("warnings", len(result.Warnings)))

	return result
}

func (c *Checker) checkRowCount(rows int) []analytics.QualityWarning {
	switch {
	case rows < c.thresholds.CriticalRowCount:
		return []analytics.QualityWarning{{
			Code:     analytics.WarnLowRowCount,
			Severity: analytics.SeverityHigh,
			Message: fmt.Sprintf("only %d rows; at least %d are needed for any reliable aggregate",
				rows, c.thresholds.CriticalRowCount),
		}}
	case rows < c.thresholds.MinRowCount:
		return []analytics.QualityWarning{{
			Code:     analytics.WarnLowRowCount,
			Severity: analytics.SeverityMedium,
			Message: fmt.Sprintf("only %d rows; results may not be representative below %d rows",
				rows, c.thresholds.MinRowCount),
		}}
	}
	return nil
}

// granularity is the expected period size of a date column
type granularity string

const (
	granularityDaily   granularity = "daily"
	granularityWeekly  granularity = "weekly"
	granularityMonthly granularity = "monthly"
)

func (c *Checker) granularityFor(span time.Duration) granularity {
	days := span.Hours() / 24
	switch {
	case days < float64(c.thresholds.DailyMaxSpanDays):
		return granularityDaily
	case days < float64(c.thresholds.WeeklyMaxSpanDays):
		return granularityWeekly
	}
	return granularityMonthly
}

func periodKey(t time.Time, g granularity) string {
	t = t.UTC()
	switch g {
	case granularityWeekly:
		year, week := t.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case granularityMonthly:
		return t.Format("2006-01")
	}
	return t.Format("2006-01-02")
}

func expectedPeriods(min, max time.Time, g granularity) int {
	min, max = min.UTC(), max.UTC()
	switch g {
	case granularityWeekly:
		start := min.AddDate(0, 0, -int((min.Weekday()+6)%7))
		return int(max.Sub(start).Hours()/(24*7)) + 1
	case granularityMonthly:
		return (max.Year()-min.Year())*12 + int(max.Month()) - int(min.Month()) + 1
	}
	minDay := time.Date(min.Year(), min.Month(), min.Day(), 0, 0, 0, 0, time.UTC)
	maxDay := time.Date(max.Year(), max.Month(), max.Day(), 0, 0, 0, 0, time.UTC)
	return int(maxDay.Sub(minDay).Hours()/24) + 1
}

// checkTimeCoverage looks at the first date column only
func (c *Checker) checkTimeCoverage(parsed *dataset.ParsedData, profile *dataset.DatasetProfile) []analytics.QualityWarning {
	dates := profile.ColumnsOfType(dataset.TypeDate)
	if len(dates) == 0 {
		return nil
	}
	column := dates[0].Name

	var times []time.Time
	for _, v := range parsed.Column(column) {
		if t, ok := c.coercer.Date(v); ok {
			times = append(times, t)
		}
	}
	if len(times) < 2 {
		return nil
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	min, max := times[0], times[len(times)-1]

	g := c.granularityFor(max.Sub(min))
	counts := make(map[string]int)
	for _, t := range times {
		counts[periodKey(t, g)]++
	}
	expected := expectedPeriods(min, max, g)
	observed := len(counts)

	var warnings []analytics.QualityWarning
	coverage := float64(observed) / float64(expected)
	if coverage < c.thresholds.LowCoverageRatio {
		severity := analytics.SeverityMedium
		if coverage < c.thresholds.LowCoverageRatio/2 {
			severity = analytics.SeverityHigh
		}
		warnings = append(warnings, analytics.QualityWarning{
			Code:     analytics.WarnLowTimeCoverage,
			Severity: severity,
			Column:   column,
			Message: fmt.Sprintf("%q covers %d of %d expected %s periods (%.0f%%)",
				column, observed, expected, g, coverage*100),
		})
	}

	if observed >= c.thresholds.MinPeriodsForSparse {
		periodCounts := make([]float64, 0, observed)
		for _, n := range counts {
			periodCounts = append(periodCounts, float64(n))
		}
		median, err := stats.Median(periodCounts)
		latest := counts[periodKey(max, g)]
		if err == nil && float64(latest) < c.thresholds.SparseLatestRatio*median {
			warnings = append(warnings, analytics.QualityWarning{
				Code:     analytics.WarnSparseLatestPeriod,
				Severity: analytics.SeverityMedium,
				Column:   column,
				Message: fmt.Sprintf("latest %s period %s has %d rows against a median of %.0f; it may be incomplete",
					g, periodKey(max, g), latest, median),
			})
		}
	}
	return warnings
}

// checkNullDensity scales severity with how far a column is over threshold
func (c *Checker) checkNullDensity(profile *dataset.DatasetProfile) []analytics.QualityWarning {
	var warnings []analytics.QualityWarning
	for _, col := range profile.Columns {
		if col.NullRatio <= c.thresholds.NullRatio {
			continue
		}
		over := col.NullRatio / c.thresholds.NullRatio
		severity := analytics.SeverityHigh
		switch {
		case over <= 1.5:
			severity = analytics.SeverityLow
		case over <= 2.5:
			severity = analytics.SeverityMedium
		}
		warnings = append(warnings, analytics.QualityWarning{
			Code:     analytics.WarnHighNullRatio,
			Severity: severity,
			Column:   col.Name,
			Message: fmt.Sprintf("%q is %.0f%% empty (threshold %.0f%%)",
				col.Name, col.NullRatio*100, c.thresholds.NullRatio*100),
		})
	}
	return warnings
}

// sample keeps every k-th value so at most limit remain, in original order
func sample(values []float64, limit int) []float64 {
	if limit <= 0 || len(values) <= limit {
		return values
	}
	step := int(math.Ceil(float64(len(values)) / float64(limit)))
	out := make([]float64, 0, limit)
	for i := 0; i < len(values); i += step {
		out = append(out, values[i])
	}
	return out
}

func (c *Checker) checkOutliers(parsed *dataset.ParsedData, profile *dataset.DatasetProfile) []analytics.QualityWarning {
	var warnings []analytics.QualityWarning
	for _, col := range profile.ColumnsOfType(dataset.TypeNumber) {
		var values []float64
		for _, v := range parsed.Column(col.Name) {
			if n, ok := c.coercer.Number(v); ok {
				values = append(values, n)
			}
		}
		values = sample(values, c.thresholds.OutlierSampleCap)
		if len(values) < c.thresholds.MinOutlierSample {
			continue
		}

		q25, q75, err := profiling.Quartiles(values)
		if err != nil || q75-q25 == 0 {
			continue
		}
		outliers := profiling.CountOutliers(values, q25, q75, c.thresholds.IQRMultiplier)
		ratio := float64(outliers) / float64(len(values))
		if ratio <= c.thresholds.OutlierRatio {
			continue
		}

		severity := analytics.SeverityMedium
		if ratio > 2*c.thresholds.OutlierRatio {
			severity = analytics.SeverityHigh
		}
		warnings = append(warnings, analytics.QualityWarning{
			Code:     analytics.WarnHighOutlierRatio,
			Severity: severity,
			Column:   col.Name,
			Message: fmt.Sprintf("%q has %d outliers beyond %.1fx IQR in %d sampled values (%.1f%%)",
				col.Name, outliers, c.thresholds.IQRMultiplier, len(values), ratio*100),
		})
	}
	return warnings
}
