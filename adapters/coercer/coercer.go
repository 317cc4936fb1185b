package coercer

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"goinsight/domain/dataset"
)

// TypeCoercer handles deterministic coercion of text cells into typed values.
// It is the only place in the module that parses booleans, numbers and dates.
type TypeCoercer struct {
	config CoercionConfig
}

// CoercionConfig defines the majority-vote thresholds used for column typing
type CoercionConfig struct {
	BooleanThreshold float64 `json:"boolean_threshold"` // share of non-null values that must be boolean tokens (inclusive)
	DateThreshold    float64 `json:"date_threshold"`    // share that must parse as dates (exclusive)
	NumericThreshold float64 `json:"numeric_threshold"` // share that must parse as numbers (exclusive)
}

// DefaultCoercionConfig returns the thresholds the profiler uses
func DefaultCoercionConfig() CoercionConfig {
	return CoercionConfig{
		BooleanThreshold: 1.0,
		DateThreshold:    0.8,
		NumericThreshold: 0.8,
	}
}

// NewTypeCoercer creates a coercer with the given config
func NewTypeCoercer(config CoercionConfig) *TypeCoercer {
	return &TypeCoercer{config: config}
}

var defaultCoercer = NewTypeCoercer(DefaultCoercionConfig())

// Default returns a shared coercer with default thresholds. TypeCoercer holds
// no mutable state, so sharing it is safe.
func Default() *TypeCoercer {
	return defaultCoercer
}

var nullTokens = map[string]bool{
	"":     true,
	"null": true,
	"n/a":  true,
	"na":   true,
	"none": true,
	"nil":  true,
	"nan":  true,
}

// IsNull reports whether a cell counts as missing
func (c *TypeCoercer) IsNull(v dataset.Value) bool {
	if v.IsNull() {
		return true
	}
	if v.Kind != dataset.KindText {
		return false
	}
	return nullTokens[strings.ToLower(strings.TrimSpace(v.Text))]
}

// Number converts a cell to a finite float
func (c *TypeCoercer) Number(v dataset.Value) (float64, bool) {
	switch v.Kind {
	case dataset.KindNumber:
		return v.Num, true
	case dataset.KindText:
		return ParseNumber(v.Text)
	}
	return 0, false
}

// Date converts a cell to a time
func (c *TypeCoercer) Date(v dataset.Value) (time.Time, bool) {
	switch v.Kind {
	case dataset.KindDate:
		return v.Time, true
	case dataset.KindText:
		return ParseDate(v.Text)
	}
	return time.Time{}, false
}

// Bool converts a cell to a boolean
func (c *TypeCoercer) Bool(v dataset.Value) (bool, bool) {
	switch v.Kind {
	case dataset.KindBool:
		return v.Bool, true
	case dataset.KindText:
		return ParseBool(v.Text)
	}
	return false, false
}

// Coerce converts a cell to the given column type, returning null when the
// cell does not parse
func (c *TypeCoercer) Coerce(v dataset.Value, t dataset.ColumnType) dataset.Value {
	if c.IsNull(v) {
		return dataset.NullValue()
	}
	switch t {
	case dataset.TypeNumber:
		if n, ok := c.Number(v); ok {
			return dataset.NewNumberValue(n)
		}
	case dataset.TypeDate:
		if d, ok := c.Date(v); ok {
			return dataset.NewDateValue(d)
		}
	case dataset.TypeBoolean:
		if b, ok := c.Bool(v); ok {
			return dataset.NewBoolValue(b)
		}
	case dataset.TypeString:
		return dataset.NewTextValue(v.String())
	}
	return dataset.NullValue()
}

// TypeAnalysis contains the results of type distribution analysis
type TypeAnalysis struct {
	TotalCount       int                `json:"total_count"`
	ValidCount       int                `json:"valid_count"`
	NumericCount     int                `json:"numeric_count"`
	BooleanCount     int                `json:"boolean_count"`
	BooleanWordCount int                `json:"boolean_word_count"` // boolean cells other than the digits 1 and 0
	DateCount        int                `json:"date_count"`
	NumericRatio     float64            `json:"numeric_ratio"`
	BooleanRatio     float64            `json:"boolean_ratio"`
	DateRatio        float64            `json:"date_ratio"`
	RecommendedType  dataset.ColumnType `json:"recommended_type"`
}

// AnalyzeTypeDistribution counts how many non-null cells parse as each type
// and picks the column type by majority vote
func (c *TypeCoercer) AnalyzeTypeDistribution(values []dataset.Value) TypeAnalysis {
	analysis := TypeAnalysis{
		TotalCount: len(values),
	}

	for _, val := range values {
		if c.IsNull(val) {
			continue
		}
		analysis.ValidCount++
		if _, ok := c.Bool(val); ok {
			analysis.BooleanCount++
			if !isDigitFlag(val) {
				analysis.BooleanWordCount++
			}
		}
		if _, ok := c.Date(val); ok {
			analysis.DateCount++
		}
		if _, ok := c.Number(val); ok {
			analysis.NumericCount++
		}
	}

	if analysis.ValidCount > 0 {
		valid := float64(analysis.ValidCount)
		analysis.BooleanRatio = float64(analysis.BooleanCount) / valid
		analysis.DateRatio = float64(analysis.DateCount) / valid
		analysis.NumericRatio = float64(analysis.NumericCount) / valid
	}

	analysis.RecommendedType = c.determineRecommendedType(analysis)
	return analysis
}

// isDigitFlag reports a text cell holding 1 or 0
func isDigitFlag(v dataset.Value) bool {
	if v.Kind != dataset.KindText {
		return false
	}
	token := strings.TrimSpace(v.Text)
	return token == "1" || token == "0"
}

// determineRecommendedType applies the priority boolean, date, number, string
func (c *TypeCoercer) determineRecommendedType(analysis TypeAnalysis) dataset.ColumnType {
	if analysis.ValidCount == 0 {
		return dataset.TypeString
	}
	// a column of only 1 and 0 is an integer column
	if analysis.BooleanRatio >= c.config.BooleanThreshold && analysis.BooleanWordCount > 0 {
		return dataset.TypeBoolean
	}
	if analysis.DateRatio > c.config.DateThreshold {
		return dataset.TypeDate
	}
	if analysis.NumericRatio > c.config.NumericThreshold {
		return dataset.TypeNumber
	}
	return dataset.TypeString
}

var currencySymbols = []string{"$", "€", "£", "¥", "₹"}

// ParseNumber parses a finite number, accepting thousands separators,
// currency symbols, a trailing percent sign and accounting negatives "(12)"
func ParseNumber(s string) (float64, bool) {
	clean := strings.TrimSpace(s)
	if clean == "" {
		return 0, false
	}

	negative := false
	if strings.HasPrefix(clean, "(") && strings.HasSuffix(clean, ")") {
		clean = strings.TrimSuffix(strings.TrimPrefix(clean, "("), ")")
		negative = true
	}
	for _, symbol := range currencySymbols {
		clean = strings.ReplaceAll(clean, symbol, "")
	}
	clean = strings.TrimSuffix(strings.TrimSpace(clean), "%")
	clean = strings.ReplaceAll(clean, ",", "")
	clean = strings.ReplaceAll(clean, " ", "")
	if clean == "" || strings.ContainsAny(clean, "xXpP_") {
		return 0, false
	}

	val, err := strconv.ParseFloat(clean, 64)
	if err != nil || math.IsInf(val, 0) || math.IsNaN(val) {
		return 0, false
	}
	if negative {
		val = -val
	}
	return val, true
}

// ParseBool recognises common boolean tokens, including 1 and 0
func ParseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "t", "yes", "y", "1":
		return true, true
	case "false", "f", "no", "n", "0":
		return false, true
	}
	return false, false
}

// dateLayouts are tried in order; month-first slashes win over day-first
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"2006/01/02 15:04:05",
	"1/2/2006",
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
	"2/1/2006",
	"2/1/2006 15:04",
	"02-Jan-2006",
	"2-Jan-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"2 January 2006",
	"Jan 2006",
	"January 2006",
	"Jan-2006",
	"2006-01",
}

// bareNumber guards against layouts that would otherwise accept plain digits
var bareNumber = regexp.MustCompile(`^[+-]?[0-9]+(\.[0-9]+)?$`)

// ParseDate parses the date patterns the profiler recognises
func ParseDate(s string) (time.Time, bool) {
	clean := strings.TrimSpace(s)
	if clean == "" || bareNumber.MatchString(clean) {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, clean); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var whitespace = regexp.MustCompile(`\s+`)

// Normalize lower-cases, trims and collapses whitespace; used for
// case-insensitive distinct counting and category matching
func Normalize(s string) string {
	return whitespace.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), " ")
}
