// Package guard blocks operations that are statistically meaningless for a
// column's semantic type, such as summing a category or averaging a
// day-of-month field.
package guard

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"goinsight/domain/analytics"
	"goinsight/domain/core"
	"goinsight/domain/dataset"
	"goinsight/internal/semantics"
)

// allowedOperations is the fixed allow-list per semantic type
var allowedOperations = map[dataset.SemanticType][]analytics.Operation{
	dataset.SemanticNumeric: {
		analytics.OpAverage, analytics.OpSum, analytics.OpMin, analytics.OpMax,
		analytics.OpCount, analytics.OpGroupBy, analytics.OpCorrelation, analytics.OpDistribution,
	},
	dataset.SemanticCategorical: {analytics.OpCount, analytics.OpGroupBy, analytics.OpDistribution},
	dataset.SemanticBoolean:     {analytics.OpCount, analytics.OpGroupBy, analytics.OpDistribution},
	dataset.SemanticDate: {
		analytics.OpMin, analytics.OpMax, analytics.OpCount, analytics.OpGroupBy, analytics.OpTimeBucket,
	},
	dataset.SemanticUnknown: {},
}

// AllowedOperations returns a copy of the allow-list for a semantic type
func AllowedOperations(t dataset.SemanticType) []analytics.Operation {
	ops := allowedOperations[t]
	out := make([]analytics.Operation, len(ops))
	copy(out, ops)
	return out
}

// IsAllowed reports whether op is on the allow-list of t
func IsAllowed(t dataset.SemanticType, op analytics.Operation) bool {
	for _, allowed := range allowedOperations[t] {
		if allowed == op {
			return true
		}
	}
	return false
}

// MetricOperation maps an intent to the operation applied to its metric
func MetricOperation(intent analytics.Intent) (analytics.Operation, bool) {
	switch intent {
	case analytics.IntentSum, analytics.IntentGroupBy, analytics.IntentTimeSeries:
		return analytics.OpSum, true
	case analytics.IntentAvg:
		return analytics.OpAverage, true
	case analytics.IntentMin:
		return analytics.OpMin, true
	case analytics.IntentMax:
		return analytics.OpMax, true
	case analytics.IntentCount:
		return analytics.OpCount, true
	}
	return "", false
}

type columnCheck struct {
	column analytics.ResolvedColumn
	op     analytics.Operation
}

// SemanticGuard validates resolved columns against their allow-lists.
// It is stateless and safe for concurrent use.
type SemanticGuard struct {
	logger *zap.Logger
}

// NewSemanticGuard creates a guard
func NewSemanticGuard(logger *zap.Logger) *SemanticGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SemanticGuard{logger: logger.Named("guard")}
}

// Validate checks the metric operation always, the dimension only for
// group_by and the time column only for time_series. It returns nil when
// every check passes, otherwise the first failure.
func (g *SemanticGuard) Validate(resolution *analytics.MetricResolution, intent analytics.Intent, versionID core.DatasetVersionID) *analytics.SemanticGuardResult {
	if resolution == nil {
		return &analytics.SemanticGuardResult{
			DatasetVersionID: versionID,
			SemanticType:     dataset.SemanticUnknown,
			Reason:           "no columns were resolved for this question",
		}
	}

	op, ok := MetricOperation(intent)
	if !ok {
		result := &analytics.SemanticGuardResult{
			DatasetVersionID: versionID,
			Column:           resolution.Metric.ColumnName,
			SemanticType:     semantics.SemanticOf(resolution.Metric.ColumnProfile),
			Reason:           fmt.Sprintf("%s is not an operation this engine can run", intent),
		}
		g.logBlocked(result)
		return result
	}

	checks := []columnCheck{{resolution.Metric, op}}
	if intent == analytics.IntentGroupBy && resolution.Dimension != nil {
		checks = append(checks, columnCheck{*resolution.Dimension, analytics.OpGroupBy})
	}
	if intent == analytics.IntentTimeSeries && resolution.TimeColumn != nil {
		checks = append(checks, columnCheck{*resolution.TimeColumn, analytics.OpTimeBucket})
	}

	for _, check := range checks {
		if result := g.Check(check.column.ColumnProfile, check.op); !result.IsValid {
			result.DatasetVersionID = versionID
			g.logBlocked(result)
			return result
		}
	}
	return nil
}

// Check validates a single column and operation pair
func (g *SemanticGuard) Check(col dataset.ColumnProfile, op analytics.Operation) *analytics.SemanticGuardResult {
	semantic := semantics.SemanticOf(col)
	result := &analytics.SemanticGuardResult{
		IsValid:            true,
		Column:             col.Name,
		SemanticType:       semantic,
		AttemptedOperation: op,
	}
	if IsAllowed(semantic, op) {
		return result
	}

	result.IsValid = false
	result.Reason = reason(col.Name, semantic, op)
	result.SuggestedAlternatives = AllowedOperations(semantic)
	return result
}

func (g *SemanticGuard) logBlocked(result *analytics.SemanticGuardResult) {
	g.logger.Info("operation blocked",
		zap.String("dataset_version_id", result.DatasetVersionID.String()),
		zap.String("column", result.Column),
		zap.String("semantic_type", string(result.SemanticType)),
		zap.String("operation", string(result.AttemptedOperation)))
}

func reason(column string, semantic dataset.SemanticType, op analytics.Operation) string {
	switch semantic {
	case dataset.SemanticCategorical:
		return fmt.Sprintf("%q is a categorical column; averaging or summing categories is meaningless, so %s cannot be applied. Try %s instead",
			column, op, listOps(allowedOperations[semantic]))
	case dataset.SemanticBoolean:
		return fmt.Sprintf("%q is a yes/no column; %s of true/false flags is not meaningful. Try %s instead",
			column, op, listOps(allowedOperations[semantic]))
	case dataset.SemanticDate:
		return fmt.Sprintf("%q holds dates or date components; %s over calendar values is not meaningful. Try %s instead",
			column, op, listOps(allowedOperations[semantic]))
	case dataset.SemanticNumeric:
		return fmt.Sprintf("%q is numeric and cannot be used for %s. Try %s instead",
			column, op, listOps(allowedOperations[semantic]))
	}
	return fmt.Sprintf("%q has no usable values, so no operation can be applied to it", column)
}

func listOps(ops []analytics.Operation) string {
	names := make([]string, len(ops))
	for i, op := range ops {
		names[i] = string(op)
	}
	return strings.Join(names, ", ")
}
