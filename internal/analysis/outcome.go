package analysis

import (
	"regexp"
	"sort"
	"strconv"

	"goinsight/adapters/coercer"
	"goinsight/domain/dataset"
	"goinsight/internal/semantics"
)

// outcomeNameHint marks columns that are likely the thing being predicted
var outcomeNameHint = regexp.MustCompile(`(?i)(churn|outcome|target|label|converted|conversion|success|won|default|fraud|cancel|retained|purchased|clicked|survived|approved)`)

var positiveTokens = map[string]bool{
	"true":      true,
	"yes":       true,
	"y":         true,
	"1":         true,
	"churned":   true,
	"converted": true,
	"success":   true,
	"won":       true,
	"positive":  true,
	"purchased": true,
	"approved":  true,
}

// outcome is a binary column split into a positive and a negative side
type outcome struct {
	column          string
	boolean         bool
	positiveKey     string
	negativeKey     string
	positiveDisplay string
	negativeDisplay string
	positives       int
	total           int
}

func outcomeKey(c *coercer.TypeCoercer, v dataset.Value, boolean bool) string {
	if c.IsNull(v) {
		return ""
	}
	if boolean {
		if b, ok := c.Bool(v); ok {
			return strconv.FormatBool(b)
		}
	}
	return coercer.Normalize(v.String())
}

// side reports whether v is on the positive side; ok is false for nulls and
// values outside the two classes
func (o *outcome) side(c *coercer.TypeCoercer, v dataset.Value) (positive bool, ok bool) {
	switch outcomeKey(c, v, o.boolean) {
	case o.positiveKey:
		return true, true
	case o.negativeKey:
		return false, true
	}
	return false, false
}

func (o *outcome) minorityShare() float64 {
	if o.total == 0 {
		return 0
	}
	share := float64(o.positives) / float64(o.total)
	if share > 0.5 {
		share = 1 - share
	}
	return share
}

// inspectOutcome returns the column as a binary outcome, or false when it
// does not hold exactly two distinct non-null values
func inspectOutcome(c *coercer.TypeCoercer, parsed *dataset.ParsedData, col dataset.ColumnProfile) (*outcome, bool) {
	boolean := col.Type == dataset.TypeBoolean
	counts := make(map[string]int)
	display := make(map[string]string)

	for _, row := range parsed.Rows {
		v := row[col.Name]
		key := outcomeKey(c, v, boolean)
		if key == "" {
			continue
		}
		if _, seen := display[key]; !seen {
			display[key], _ = categoryOf(c, v)
		}
		counts[key]++
	}
	if len(counts) != 2 {
		return nil, false
	}

	keys := make([]string, 0, 2)
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	positive := positiveClass(keys, counts, boolean)
	negative := keys[0]
	if positive == keys[0] {
		negative = keys[1]
	}

	return &outcome{
		column:          col.Name,
		boolean:         boolean,
		positiveKey:     positive,
		negativeKey:     negative,
		positiveDisplay: display[positive],
		negativeDisplay: display[negative],
		positives:       counts[positive],
		total:           counts[positive] + counts[negative],
	}, true
}

// positiveClass picks true for booleans, then a single recognised positive
// token, then the minority class. keys are sorted.
func positiveClass(keys []string, counts map[string]int, boolean bool) string {
	if boolean {
		return "true"
	}
	a, b := positiveTokens[keys[0]], positiveTokens[keys[1]]
	switch {
	case a && !b:
		return keys[0]
	case b && !a:
		return keys[1]
	}
	if counts[keys[0]] < counts[keys[1]] {
		return keys[0]
	}
	return keys[1]
}

// detectOutcome scans boolean and two-valued categorical columns, plus 0/1
// numeric columns named like an outcome. It prefers names that hint at an
// outcome and rejects splits more lopsided than minShare.
func detectOutcome(c *coercer.TypeCoercer, parsed *dataset.ParsedData, profile *dataset.DatasetProfile, minShare float64) *outcome {
	var hinted, plain []dataset.ColumnProfile
	for _, col := range profile.Columns {
		if semantics.IsIdentifier(col, profile.RowCount) {
			continue
		}
		semantic := semantics.SemanticOf(col)
		binary := semantic == dataset.SemanticBoolean ||
			(semantic == dataset.SemanticCategorical && col.DistinctCount == 2) ||
			isZeroOneFlag(col)
		if !binary {
			continue
		}
		if outcomeNameHint.MatchString(col.Name) {
			hinted = append(hinted, col)
		} else {
			plain = append(plain, col)
		}
	}

	for _, col := range append(hinted, plain...) {
		o, ok := inspectOutcome(c, parsed, col)
		if ok && o.minorityShare() >= minShare {
			return o
		}
	}
	return nil
}

// isZeroOneFlag matches an outcome-named numeric column holding only 0 and 1
func isZeroOneFlag(col dataset.ColumnProfile) bool {
	if col.Type != dataset.TypeNumber || col.DistinctCount != 2 || col.Min == nil || col.Max == nil {
		return false
	}
	return *col.Min == 0 && *col.Max == 1 && outcomeNameHint.MatchString(col.Name)
}
