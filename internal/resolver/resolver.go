// Package resolver decides which columns a question refers to: the metric,
// the grouping dimension and the time column.
package resolver

import (
	"regexp"
	"sort"
	"strings"

	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"goinsight/domain/analytics"
	"goinsight/domain/dataset"
	"goinsight/internal/errors"
	"goinsight/internal/semantics"
)

// Resolver maps question phrasing onto profiled columns. It holds no
// mutable state.
type Resolver struct {
	logger *zap.Logger
}

// NewResolver creates a resolver
func NewResolver(logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{logger: logger.Named("resolver")}
}

// ResolveAll resolves metric, dimension, time column and bucket for a question
func (r *Resolver) ResolveAll(question string, profile *dataset.DatasetProfile, intent analytics.Intent) (*analytics.MetricResolution, error) {
	if profile == nil || len(profile.Columns) == 0 {
		return nil, errors.InvalidInput("profile has no columns")
	}

	text := normalizeQuestion(question)
	phrases, metricText := splitGroupingPhrase(text)

	metric, rule, err := r.resolveMetric(metricText, profile, intent)
	if err != nil {
		return nil, err
	}
	resolution := &analytics.MetricResolution{
		Metric: resolved(metric),
		Bucket: detectBucket(text),
	}

	if dim := resolveDimension(text, phrases, profile, intent, metric.Name); dim != nil {
		resolution.Dimension = dim
	} else if intent == analytics.IntentGroupBy {
		return nil, errors.Newf(errors.CodeDimensionNotFound,
			"could not find a column to group by in %q; name a column such as \"by region\"", question)
	}

	if tc := resolveTimeColumn(text, profile, intent); tc != nil {
		resolution.TimeColumn = tc
	} else if intent == analytics.IntentTimeSeries {
		return nil, errors.Newf(errors.CodeTimeColumnNotFound,
			"time series requires a date column but none was found in %q", question)
	}

	fields := []zap.Field{
		zap.String("intent", string(intent)),
		zap.String("metric", metric.Name),
		zap.String("rule", rule),
	}
	if resolution.Dimension != nil {
		fields = append(fields, zap.String("dimension", resolution.Dimension.ColumnName))
	}
	if resolution.TimeColumn != nil {
		fields = append(fields, zap.String("time_column", resolution.TimeColumn.ColumnName),
			zap.String("bucket", string(resolution.Bucket)))
	}
	r.logger.Debug("question resolved", fields...)

	return resolution, nil
}

// allowedTypes lists the raw column types a metric may have for an intent
func allowedTypes(intent analytics.Intent) []dataset.ColumnType {
	switch intent {
	case analytics.IntentMin, analytics.IntentMax:
		return []dataset.ColumnType{dataset.TypeNumber, dataset.TypeDate}
	case analytics.IntentCount:
		return []dataset.ColumnType{dataset.TypeNumber, dataset.TypeDate, dataset.TypeString, dataset.TypeBoolean}
	}
	return []dataset.ColumnType{dataset.TypeNumber}
}

// metricSynonyms maps a question word to column-name fragments that usually
// carry that quantity. Keys are also tried in order as column names when the
// question mentions none of them.
var metricSynonyms = []struct {
	word      string
	fragments []string
}{
	{"revenue", []string{"revenue", "sales", "income", "turnover", "amount"}},
	{"sales", []string{"sales", "revenue", "amount"}},
	{"amount", []string{"amount", "value", "total", "price"}},
	{"price", []string{"price", "cost", "fare", "amount"}},
	{"total", []string{"total", "amount", "sum"}},
	{"quantity", []string{"quantity", "qty", "units", "volume"}},
	{"count", []string{"count", "quantity", "qty", "number"}},
}

func (r *Resolver) resolveMetric(text string, profile *dataset.DatasetProfile, intent analytics.Intent) (dataset.ColumnProfile, string, error) {
	types := allowedTypes(intent)
	allowed := candidates(profile, types)
	if len(allowed) == 0 {
		return dataset.ColumnProfile{}, "", errors.Newf(errors.CodeNoNumericColumns,
			"dataset has no column of type %s for %s", joinTypes(types), intent)
	}

	// 1: explicit mention, regardless of type
	if col, ok := explicitMention(text, profile.Columns, types); ok {
		return col, "explicit_mention", nil
	}

	// 2: substring match of singularised question tokens
	tokens := contentTokens(text)
	for _, col := range allowed {
		name := semantics.NormalizeName(col.Name)
		for _, token := range tokens {
			if strings.Contains(name, token) {
				return col, "substring_match", nil
			}
		}
	}

	// 3: synonym table, question-driven first
	for _, syn := range metricSynonyms {
		if !containsWord(text, syn.word) {
			continue
		}
		if col, ok := firstContaining(allowed, syn.fragments); ok {
			return col, "synonym_match", nil
		}
	}
	for _, syn := range metricSynonyms {
		if col, ok := firstContaining(allowed, []string{syn.word}); ok {
			return col, "synonym_default", nil
		}
	}

	// 4: first allowed column, numeric first for count, skipping keys
	return firstNonIdentifier(allowed), "first_allowed", nil
}

// candidates returns the columns of the given types, ordered by type
// preference and then header order
func candidates(profile *dataset.DatasetProfile, types []dataset.ColumnType) []dataset.ColumnProfile {
	var out []dataset.ColumnProfile
	for _, t := range types {
		out = append(out, profile.ColumnsOfType(t)...)
	}
	return out
}

// firstNonIdentifier skips columns named like keys or timestamps. Distinct
// counts are not consulted: a continuous measure is as unique as a key.
func firstNonIdentifier(cols []dataset.ColumnProfile) dataset.ColumnProfile {
	for _, col := range cols {
		if !semantics.IsIdentifierName(col.Name) {
			return col
		}
	}
	return cols[0]
}

func firstContaining(cols []dataset.ColumnProfile, fragments []string) (dataset.ColumnProfile, bool) {
	for _, col := range cols {
		name := semantics.NormalizeName(col.Name)
		for _, f := range fragments {
			if strings.Contains(name, f) {
				return col, true
			}
		}
	}
	return dataset.ColumnProfile{}, false
}

// explicitMention finds columns named in text on word boundaries. Among
// several it prefers allowed types, then the longest name.
func explicitMention(text string, cols []dataset.ColumnProfile, types []dataset.ColumnType) (dataset.ColumnProfile, bool) {
	type match struct {
		col     dataset.ColumnProfile
		allowed bool
		index   int
	}
	var matches []match
	for i, col := range cols {
		if mentions(text, col.Name) {
			matches = append(matches, match{col: col, allowed: typeIn(col.Type, types), index: i})
		}
	}
	if len(matches) == 0 {
		return dataset.ColumnProfile{}, false
	}

	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.allowed != b.allowed {
			return a.allowed
		}
		if len(a.col.Name) != len(b.col.Name) {
			return len(a.col.Name) > len(b.col.Name)
		}
		return a.index < b.index
	})
	return matches[0].col, true
}

// mentions reports a word-boundary match of a column name in text, treating
// spaces, underscores and dashes alike and accepting the plural form
func mentions(text, column string) bool {
	name := semantics.NormalizeName(column)
	if name == "" {
		return false
	}
	return containsWord(text, name) || containsWord(text, inflection.Plural(name))
}

func containsWord(text, phrase string) bool {
	words := strings.Fields(phrase)
	if len(words) == 0 {
		return false
	}
	for i, w := range words {
		words[i] = regexp.QuoteMeta(w)
	}
	pattern := `(^|[^\pL\pN])` + strings.Join(words, `\s+`) + `($|[^\pL\pN])`
	return regexp.MustCompile(pattern).MatchString(text)
}

func typeIn(t dataset.ColumnType, types []dataset.ColumnType) bool {
	for _, allowed := range types {
		if t == allowed {
			return true
		}
	}
	return false
}

func joinTypes(types []dataset.ColumnType) string {
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = string(t)
	}
	return strings.Join(parts, " or ")
}

func resolved(col dataset.ColumnProfile) analytics.ResolvedColumn {
	return analytics.ResolvedColumn{ColumnName: col.Name, ColumnProfile: col}
}

var punctuation = regexp.MustCompile(`[^\pL\pN\s_./-]+`)

// normalizeQuestion lower-cases a question, drops punctuation and treats
// underscores and dashes as spaces so it lines up with normalised column names
func normalizeQuestion(question string) string {
	text := punctuation.ReplaceAllString(strings.ToLower(question), " ")
	return semantics.NormalizeName(text)
}

// stopWords never identify a metric on their own
var stopWords = map[string]bool{
	"what": true, "whats": true, "is": true, "are": true, "was": true, "were": true, "the": true,
	"of": true, "for": true, "and": true, "how": true, "many": true, "much": true, "show": true,
	"me": true, "give": true, "tell": true, "all": true, "there": true, "in": true, "on": true,
	"a": true, "an": true, "which": true, "our": true, "my": true, "do": true, "does": true,
	"did": true, "we": true, "have": true, "has": true, "with": true, "to": true, "from": true,
	"total": true, "sum": true, "average": true, "avg": true, "mean": true, "count": true,
	"number": true, "min": true, "minimum": true, "max": true, "maximum": true, "lowest": true,
	"highest": true, "smallest": true, "largest": true, "biggest": true, "earliest": true,
	"latest": true, "overall": true, "typical": true, "over": true, "time": true, "trend": true,
	"per": true, "by": true, "each": true, "every": true, "value": true, "values": true,
	"grouped": true, "broken": true, "down": true, "split": true, "breakdown": true, "across": true,
}

// contentTokens returns singularised words of at least three letters that
// are not stop words
func contentTokens(text string) []string {
	var tokens []string
	for _, w := range strings.Fields(text) {
		w = strings.Trim(w, "./")
		if len(w) < 3 || stopWords[w] {
			continue
		}
		tokens = append(tokens, inflection.Singular(w))
	}
	return tokens
}
