// Package engine executes resolved, guard-approved questions over the rows
// of a dataset file.
package engine

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"goinsight/adapters/coercer"
	"goinsight/domain/analytics"
	"goinsight/domain/dataset"
	"goinsight/internal/errors"
	"goinsight/internal/semantics"
	"goinsight/ports"
)

// ExecutionEngine re-parses the source file on every call and keeps no
// state between calls
type ExecutionEngine struct {
	parser  ports.FileParser
	coercer *coercer.TypeCoercer
	logger  *zap.Logger
}

// NewExecutionEngine creates an engine reading files through parser
func NewExecutionEngine(parser ports.FileParser, logger *zap.Logger) *ExecutionEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExecutionEngine{
		parser:  parser,
		coercer: coercer.Default(),
		logger:  logger.Named("engine"),
	}
}

// Execute computes the aggregate for intent. The result and the error are
// mutually exclusive.
func (e *ExecutionEngine) Execute(path string, intent analytics.Intent, resolution *analytics.MetricResolution) (*analytics.AnalysisResult, error) {
	if resolution == nil {
		return nil, errors.ExecutionError("no column resolution supplied")
	}
	if !intent.IsSupported() {
		return nil, errors.Newf(errors.CodeExecutionError, "unsupported intent %q", intent)
	}

	start := time.Now()
	parsed, err := e.parser.Parse(path)
	if err != nil {
		return nil, err
	}

	metric, ok := lookupColumn(parsed.Headers, resolution.Metric.ColumnName)
	if !ok {
		return nil, errors.Newf(errors.CodeExecutionError, "metric column %q not found in %s", resolution.Metric.ColumnName, path)
	}

	meta := analytics.ResultMetadata{
		Intent:      intent,
		Metric:      metric,
		RowsScanned: parsed.RowCount,
	}

	var result *analytics.AnalysisResult
	switch intent {
	case analytics.IntentSum:
		result = e.sum(parsed, metric, meta)
	case analytics.IntentAvg:
		result, err = e.average(parsed, metric, meta)
	case analytics.IntentCount:
		result = e.count(parsed, meta)
	case analytics.IntentMin:
		result = e.extreme(parsed, metric, meta, false)
	case analytics.IntentMax:
		result = e.extreme(parsed, metric, meta, true)
	case analytics.IntentGroupBy:
		if resolution.Dimension == nil {
			return nil, errors.ExecutionError("group_by requires a dimension column")
		}
		dim, found := lookupColumn(parsed.Headers, resolution.Dimension.ColumnName)
		if !found {
			return nil, errors.Newf(errors.CodeExecutionError, "dimension column %q not found in %s", resolution.Dimension.ColumnName, path)
		}
		result = e.groupBy(parsed, metric, dim, meta)
	case analytics.IntentTimeSeries:
		if resolution.TimeColumn == nil {
			return nil, errors.ExecutionError("time_series requires a time column")
		}
		tc, found := lookupColumn(parsed.Headers, resolution.TimeColumn.ColumnName)
		if !found {
			return nil, errors.Newf(errors.CodeExecutionError, "time column %q not found in %s", resolution.TimeColumn.ColumnName, path)
		}
		bucket := resolution.Bucket
		if bucket == "" {
			bucket = analytics.BucketDay
		}
		result = e.timeSeries(parsed, metric, tc, bucket, meta)
	}
	if err != nil {
		return nil, err
	}

	e.logger.Info("analysis executed",
		zap.String("intent", string(intent)),
		zap.String("metric", metric),
		zap.String("result_type", string(result.Type)),
		zap.Int("rows", parsed.RowCount),
		zap.Int("values_used", result.Metadata.ValuesUsed),
		zap.Duration("elapsed", time.Since(start)))

	return result, nil
}

// lookupColumn finds the raw header for a resolved name, tolerating case
// and space/underscore drift
func lookupColumn(headers []string, name string) (string, bool) {
	for _, h := range headers {
		if h == name {
			return h, true
		}
	}
	for _, h := range headers {
		if strings.EqualFold(h, name) {
			return h, true
		}
	}
	want := semantics.NormalizeName(name)
	for _, h := range headers {
		if semantics.NormalizeName(h) == want {
			return h, true
		}
	}
	return "", false
}

func bucketKey(t time.Time, bucket analytics.Bucket) string {
	t = t.UTC()
	switch bucket {
	case analytics.BucketMonth:
		return t.Format("2006-01")
	case analytics.BucketYear:
		return t.Format("2006")
	}
	return t.Format("2006-01-02")
}

func scalar(value interface{}, kind dataset.ValueKind, formatted string) *analytics.ScalarData {
	return &analytics.ScalarData{Value: value, ValueKind: kind, Formatted: formatted}
}
