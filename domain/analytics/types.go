package analytics

import (
	"goinsight/domain/core"
	"goinsight/domain/dataset"
)

// Intent is the closed set of analytical operations a question can map to
type Intent string

const (
	IntentSum         Intent = "aggregate_sum"
	IntentAvg         Intent = "aggregate_avg"
	IntentMin         Intent = "aggregate_min"
	IntentMax         Intent = "aggregate_max"
	IntentCount       Intent = "aggregate_count"
	IntentGroupBy     Intent = "group_by"
	IntentTimeSeries  Intent = "time_series"
	IntentUnsupported Intent = "unsupported_query"
)

// IsSupported reports whether the intent can be executed
func (i Intent) IsSupported() bool {
	switch i {
	case IntentSum, IntentAvg, IntentMin, IntentMax, IntentCount, IntentGroupBy, IntentTimeSeries:
		return true
	}
	return false
}

// Confidence is a coarse tier attached to a classification
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Classification is the stateless output of the intent classifier
type Classification struct {
	Intent      Intent     `json:"intent"`
	Confidence  Confidence `json:"confidence"`
	MatchedRule string     `json:"matched_rule,omitempty"`
}

// Operation is what the guard validates against a column's allow-list
type Operation string

const (
	OpAverage      Operation = "average"
	OpSum          Operation = "sum"
	OpMin          Operation = "min"
	OpMax          Operation = "max"
	OpCount        Operation = "count"
	OpGroupBy      Operation = "group_by"
	OpCorrelation  Operation = "correlation"
	OpDistribution Operation = "distribution"
	OpTimeBucket   Operation = "time_bucket"
)

// Bucket is the time granularity of a series
type Bucket string

const (
	BucketDay   Bucket = "day"
	BucketMonth Bucket = "month"
	BucketYear  Bucket = "year"
)

// ResolvedColumn pairs a column name with its profile
type ResolvedColumn struct {
	ColumnName    string                `json:"column_name"`
	ColumnProfile dataset.ColumnProfile `json:"column_profile"`
}

// MetricResolution is derived per question and consumed immediately
type MetricResolution struct {
	Metric     ResolvedColumn  `json:"metric"`
	Dimension  *ResolvedColumn `json:"dimension,omitempty"`
	TimeColumn *ResolvedColumn `json:"time_column,omitempty"`
	Bucket     Bucket          `json:"bucket,omitempty"`
}

// SemanticGuardResult explains why a column cannot support an operation
type SemanticGuardResult struct {
	IsValid               bool                  `json:"is_valid"`
	DatasetVersionID      core.DatasetVersionID `json:"dataset_version_id,omitempty"`
	Column                string                `json:"column"`
	SemanticType          dataset.SemanticType  `json:"semantic_type"`
	AttemptedOperation    Operation             `json:"attempted_operation"`
	Reason                string                `json:"reason,omitempty"`
	SuggestedAlternatives []Operation           `json:"suggested_alternatives,omitempty"`
}

// ResultType discriminates AnalysisResult.Data
type ResultType string

const (
	ResultScalar ResultType = "scalar"
	ResultTable  ResultType = "table"
	ResultSeries ResultType = "series"
)

// AnalysisResult is the unit returned by the execution engine.
// Data holds *ScalarData, *TableData or *SeriesData according to Type.
type AnalysisResult struct {
	Type     ResultType     `json:"type"`
	Data     interface{}    `json:"data"`
	Metadata ResultMetadata `json:"metadata"`
}

// ResultMetadata records how a result was computed
type ResultMetadata struct {
	Intent      Intent `json:"intent"`
	Metric      string `json:"metric"`
	Dimension   string `json:"dimension,omitempty"`
	TimeColumn  string `json:"time_column,omitempty"`
	Bucket      Bucket `json:"bucket,omitempty"`
	RowsScanned int    `json:"rows_scanned"`
	ValuesUsed  int    `json:"values_used"`
	RowsSkipped int    `json:"rows_skipped,omitempty"`
}

// ScalarData is a single aggregate. Value is a float64 for numeric
// aggregates and a string for date or lexical min/max.
type ScalarData struct {
	Value     interface{}       `json:"value"`
	ValueKind dataset.ValueKind `json:"value_kind"`
	Formatted string            `json:"formatted"`
}

// TableRow is one group of a group_by result
type TableRow struct {
	Key   string  `json:"key"`
	Total float64 `json:"total"`
	Count int     `json:"count"`
}

// TableData holds group_by output sorted by total descending
type TableData struct {
	Columns []string   `json:"columns"`
	Rows    []TableRow `json:"rows"`
}

// SeriesPoint is one time bucket
type SeriesPoint struct {
	Period string  `json:"period"`
	Value  float64 `json:"value"`
	Count  int     `json:"count"`
}

// SeriesData holds time_series output sorted by period ascending
type SeriesData struct {
	Bucket Bucket        `json:"bucket"`
	Points []SeriesPoint `json:"points"`
}
