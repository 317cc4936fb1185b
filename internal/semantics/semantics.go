// Package semantics is the single source of truth for column semantics:
// raw type inference, guard-level classification and identifier detection.
// Both the profiler and the semantic guard call into it.
package semantics

import (
	"math"
	"regexp"
	"strings"

	"goinsight/adapters/coercer"
	"goinsight/domain/dataset"
)

// InferColumnType runs majority-vote type inference over a column's cells.
// A nil coercer uses the default thresholds.
func InferColumnType(c *coercer.TypeCoercer, values []dataset.Value) dataset.ColumnType {
	if c == nil {
		c = coercer.Default()
	}
	return c.AnalyzeTypeDistribution(values).RecommendedType
}

var (
	// strongTimestampName always marks a column as temporal
	strongTimestampName = regexp.MustCompile(`(?i)(timestamp|created|updated|_at$|^at_)`)
	// componentName marks a column as temporal only with a corroborating value range
	componentName = regexp.MustCompile(`(?i)(date|time|day|month|year|journey)`)
)

// envelope is an inclusive value range typical of a date component
type envelope struct{ lo, hi float64 }

var dateComponentEnvelopes = []envelope{
	{1, 31},      // day of month
	{1, 12},      // month
	{1000, 9999}, // year
}

// IsDateLikeName reports whether a column name reads as temporal
func IsDateLikeName(name string) bool {
	return strongTimestampName.MatchString(name) || componentName.MatchString(name)
}

// FitsDateEnvelope reports whether [min, max] sits inside a date-component range
func FitsDateEnvelope(min, max float64) bool {
	if min != math.Trunc(min) || max != math.Trunc(max) {
		return false
	}
	for _, env := range dateComponentEnvelopes {
		if min >= env.lo && max <= env.hi {
			return true
		}
	}
	return false
}

// Classify maps a profiled column to its guard-level semantic type.
// Numeric columns named like a date component whose integer range fits a
// date-component envelope (a day-of-month field, say) are treated as dates so
// they cannot be summed or averaged.
func Classify(col dataset.ColumnProfile) dataset.SemanticType {
	if col.DistinctCount == 0 {
		return dataset.SemanticUnknown
	}

	switch col.Type {
	case dataset.TypeBoolean:
		return dataset.SemanticBoolean
	case dataset.TypeDate:
		return dataset.SemanticDate
	case dataset.TypeNumber:
		if strongTimestampName.MatchString(col.Name) {
			return dataset.SemanticDate
		}
		if componentName.MatchString(col.Name) && col.Min != nil && col.Max != nil && FitsDateEnvelope(*col.Min, *col.Max) {
			return dataset.SemanticDate
		}
		return dataset.SemanticNumeric
	case dataset.TypeString:
		if IsDateLikeName(col.Name) {
			return dataset.SemanticDate
		}
		return dataset.SemanticCategorical
	}
	return dataset.SemanticUnknown
}

// SemanticOf returns the stored classification, computing it when the
// profile predates it
func SemanticOf(col dataset.ColumnProfile) dataset.SemanticType {
	if col.Semantic != "" {
		return col.Semantic
	}
	return Classify(col)
}

var identifierName = regexp.MustCompile(`(?i)(_id$|_key$|_hash$|^id$|_at$|^created|^updated|^uuid$|^guid$)`)

const (
	// IdentifierDistinctRatio and IdentifierMinDistinct together mark a near-unique column as a key
	IdentifierDistinctRatio = 0.9
	IdentifierMinDistinct   = 100
)

// IsIdentifierName applies the name-pattern half of identifier detection
func IsIdentifierName(name string) bool {
	return identifierName.MatchString(strings.TrimSpace(name))
}

// IsIdentifier reports whether a column is a key or timestamp rather than a
// measurable attribute
func IsIdentifier(col dataset.ColumnProfile, rowCount int) bool {
	if IsIdentifierName(col.Name) {
		return true
	}
	if rowCount == 0 {
		return false
	}
	ratio := float64(col.DistinctCount) / float64(rowCount)
	return ratio > IdentifierDistinctRatio && col.DistinctCount > IdentifierMinDistinct
}

// NormalizeName folds case and treats spaces, dashes and underscores alike
func NormalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)
	return strings.Join(strings.Fields(name), " ")
}
