package analytics

import "goinsight/domain/core"

// Severity grades a quality warning
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Quality warning codes
const (
	WarnLowRowCount        = "LOW_ROW_COUNT"
	WarnLowTimeCoverage    = "LOW_TIME_COVERAGE"
	WarnSparseLatestPeriod = "SPARSE_LATEST_PERIOD"
	WarnHighNullRatio      = "HIGH_NULL_RATIO"
	WarnHighOutlierRatio   = "HIGH_OUTLIER_RATIO"
)

// QualityWarning is advisory; it never blocks analysis
type QualityWarning struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
	Column   string   `json:"column,omitempty"`
}

// DataQualityCheckResult aggregates every check for one dataset version
type DataQualityCheckResult struct {
	DatasetVersionID core.DatasetVersionID `json:"dataset_version_id"`
	RowCount         int                   `json:"row_count"`
	ChecksRun        []string              `json:"checks_run"`
	Warnings         []QualityWarning      `json:"warnings"`
}

// HasWarning reports whether a warning with code was raised
func (r *DataQualityCheckResult) HasWarning(code string) bool {
	_, ok := r.Warning(code)
	return ok
}

// Warning returns the first warning with code
func (r *DataQualityCheckResult) Warning(code string) (QualityWarning, bool) {
	for _, w := range r.Warnings {
		if w.Code == code {
			return w, true
		}
	}
	return QualityWarning{}, false
}

// HistogramBin is a half-open interval [Lower, Upper) except for the last bin
type HistogramBin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// MetricSummary is Phase A of the baseline
type MetricSummary struct {
	Column    string         `json:"column"`
	Count     int            `json:"count"`
	Mean      float64        `json:"mean"`
	Median    float64        `json:"median"`
	StdDev    float64        `json:"std_dev"`
	Min       float64        `json:"min"`
	Max       float64        `json:"max"`
	P25       float64        `json:"p25"`
	P75       float64        `json:"p75"`
	Histogram []HistogramBin `json:"histogram"`
}

// CategoryStat is one category row of a breakdown
type CategoryStat struct {
	Category string  `json:"category"`
	Count    int     `json:"count"`
	Average  float64 `json:"average"`
}

// CategoryBreakdown is Phase B: average of Metric per value of Dimension
type CategoryBreakdown struct {
	Dimension string         `json:"dimension"`
	Metric    string         `json:"metric"`
	Rows      []CategoryStat `json:"rows"`
}

// OutcomeRate is the positive-outcome share inside one segment
type OutcomeRate struct {
	Segment       string  `json:"segment"`
	Count         int     `json:"count"`
	PositiveCount int     `json:"positive_count"`
	Rate          float64 `json:"rate"`
}

// OutcomeBreakdown groups outcome rates by one column
type OutcomeBreakdown struct {
	Column string        `json:"column"`
	Rates  []OutcomeRate `json:"rates"`
}

// KeyDifference compares a metric between the two outcome groups
type KeyDifference struct {
	Metric       string  `json:"metric"`
	PositiveMean float64 `json:"positive_mean"`
	NegativeMean float64 `json:"negative_mean"`
	AbsoluteDiff float64 `json:"absolute_diff"`
	RelativeDiff float64 `json:"relative_diff"`
}

// OutcomeAnalysis is Phase C of the baseline
type OutcomeAnalysis struct {
	Column         string             `json:"column"`
	PositiveValue  string             `json:"positive_value"`
	NegativeValue  string             `json:"negative_value"`
	PositiveRate   float64            `json:"positive_rate"`
	ByCategory     []OutcomeBreakdown `json:"by_category"`
	ByMetric       []OutcomeBreakdown `json:"by_metric"`
	KeyDifferences []KeyDifference    `json:"key_differences"`
}

// SkippedColumn records why a column was left out of the baseline
type SkippedColumn struct {
	Column string `json:"column"`
	Reason string `json:"reason"`
}

// BaselineAnalysisResult is regenerated on demand, never updated in place
type BaselineAnalysisResult struct {
	DatasetVersionID core.DatasetVersionID   `json:"dataset_version_id"`
	RowCount         int                     `json:"row_count"`
	Metrics          []MetricSummary         `json:"metrics"`
	Breakdowns       []CategoryBreakdown     `json:"breakdowns"`
	Outcome          *OutcomeAnalysis        `json:"outcome,omitempty"`
	Skipped          []SkippedColumn         `json:"skipped,omitempty"`
	Quality          *DataQualityCheckResult `json:"quality,omitempty"`
}

// DrillDownRequest selects the metric and outcome to compare
type DrillDownRequest struct {
	FilePath      string `json:"file_path"`
	MetricColumn  string `json:"metric"`
	OutcomeColumn string `json:"outcome"`
}

// PercentileStats summarises one outcome group
type PercentileStats struct {
	Count int     `json:"count"`
	Mean  float64 `json:"mean"`
	P25   float64 `json:"p25"`
	P50   float64 `json:"p50"`
	P75   float64 `json:"p75"`
}

// OutcomeGroup is one side of the drill-down
type OutcomeGroup struct {
	Value     string          `json:"value"`
	Stats     PercentileStats `json:"stats"`
	Histogram []HistogramBin  `json:"histogram"`
}

// SecondaryCell is the metric mean for one (category, outcome group) pair
type SecondaryCell struct {
	Category string  `json:"category"`
	Outcome  string  `json:"outcome"`
	Count    int     `json:"count"`
	Mean     float64 `json:"mean"`
}

// SecondaryBreakdown splits the drill-down by one extra dimension
type SecondaryBreakdown struct {
	Dimension string          `json:"dimension"`
	Cells     []SecondaryCell `json:"cells"`
}

// DrillDownResult is the output of the drill-down template
type DrillDownResult struct {
	DatasetVersionID core.DatasetVersionID `json:"dataset_version_id"`
	Metric           string                `json:"metric"`
	Outcome          string                `json:"outcome"`
	Groups           []OutcomeGroup        `json:"groups"`
	Secondary        *SecondaryBreakdown   `json:"secondary,omitempty"`
}
