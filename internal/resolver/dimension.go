package resolver

import (
	"regexp"
	"strings"

	"github.com/jinzhu/inflection"

	"goinsight/domain/analytics"
	"goinsight/domain/dataset"
	"goinsight/internal/semantics"
)

var (
	groupTriggers = map[string]bool{"by": true, "per": true, "across": true, "each": true, "every": true}

	phraseTerminators = map[string]bool{
		"and": true, "with": true, "in": true, "where": true, "over": true, "during": true,
		"from": true, "on": true, "for": true, "sorted": true, "ordered": true, "since": true,
		"between": true, "last": true, "this": true, "that": true,
	}

	temporalWords = map[string]bool{
		"day": true, "days": true, "date": true, "dates": true, "week": true, "weeks": true,
		"month": true, "months": true, "year": true, "years": true, "quarter": true,
		"quarters": true, "time": true, "period": true,
	}

	// categoricalKeywords name columns that are usually grouping dimensions
	categoricalKeywords = []string{"country", "region", "category", "type", "status", "group", "class"}

	timeKeywords = []string{"date", "time", "day", "month", "year", "week", "created", "updated", "timestamp", "period"}
)

// splitGroupingPhrase pulls "by X" style phrases out of text. It returns the
// grouping phrases and the remaining text, so a dimension named after "by"
// is not mistaken for the metric.
func splitGroupingPhrase(text string) ([][]string, string) {
	words := strings.Fields(text)
	var phrases [][]string
	var rest []string

	for i := 0; i < len(words); i++ {
		if groupTriggers[words[i]] && i+1 < len(words) {
			j := i + 1
			for j < len(words) && !phraseTerminators[words[j]] && !groupTriggers[words[j]] {
				j++
			}
			if j > i+1 {
				phrases = append(phrases, words[i+1:j])
				if len(rest) > 0 && rest[len(rest)-1] == "for" {
					rest = rest[:len(rest)-1]
				}
				i = j - 1
				continue
			}
		}
		rest = append(rest, words[i])
	}
	return phrases, strings.Join(rest, " ")
}

func isTemporalPhrase(phrase []string) bool {
	return len(phrase) == 1 && temporalWords[phrase[0]]
}

func dimensionPool(profile *dataset.DatasetProfile, metric string) []dataset.ColumnProfile {
	var pool []dataset.ColumnProfile
	for _, t := range []dataset.ColumnType{dataset.TypeString, dataset.TypeBoolean, dataset.TypeDate, dataset.TypeNumber} {
		for _, col := range profile.ColumnsOfType(t) {
			if col.Name != metric {
				pool = append(pool, col)
			}
		}
	}
	return pool
}

func resolveDimension(text string, phrases [][]string, profile *dataset.DatasetProfile, intent analytics.Intent, metric string) *analytics.ResolvedColumn {
	pool := dimensionPool(profile, metric)

	for _, phrase := range phrases {
		if isTemporalPhrase(phrase) {
			continue
		}
		if col, ok := matchPhrase(phrase, pool); ok {
			dim := resolved(col)
			return &dim
		}
	}

	categorical := categoricalPool(pool)
	for _, kw := range categoricalKeywords {
		if !containsWord(text, kw) && !containsWord(text, inflection.Plural(kw)) {
			continue
		}
		if col, ok := firstContaining(categorical, []string{kw}); ok {
			dim := resolved(col)
			return &dim
		}
	}

	if intent == analytics.IntentGroupBy {
		if col, ok := firstContaining(categorical, categoricalKeywords); ok {
			dim := resolved(col)
			return &dim
		}
	}
	return nil
}

func categoricalPool(pool []dataset.ColumnProfile) []dataset.ColumnProfile {
	var out []dataset.ColumnProfile
	for _, col := range pool {
		if col.Type == dataset.TypeString || col.Type == dataset.TypeBoolean {
			out = append(out, col)
		}
	}
	return out
}

// matchPhrase prefers a column named in full inside the phrase (longest
// name wins), then a column whose name contains a phrase word
func matchPhrase(phrase []string, pool []dataset.ColumnProfile) (dataset.ColumnProfile, bool) {
	text := strings.Join(phrase, " ")

	var best dataset.ColumnProfile
	found := false
	for _, col := range pool {
		if mentions(text, col.Name) && (!found || len(col.Name) > len(best.Name)) {
			best, found = col, true
		}
	}
	if found {
		return best, true
	}

	for _, word := range phrase {
		if len(word) < 3 || stopWords[word] {
			continue
		}
		singular := inflection.Singular(word)
		for _, col := range pool {
			if strings.Contains(semantics.NormalizeName(col.Name), singular) {
				return col, true
			}
		}
	}
	return dataset.ColumnProfile{}, false
}

// resolveTimeColumn only considers columns profiled as dates
func resolveTimeColumn(text string, profile *dataset.DatasetProfile, intent analytics.Intent) *analytics.ResolvedColumn {
	dates := profile.ColumnsOfType(dataset.TypeDate)
	if len(dates) == 0 {
		return nil
	}

	var best dataset.ColumnProfile
	found := false
	for _, col := range dates {
		if mentions(text, col.Name) && (!found || len(col.Name) > len(best.Name)) {
			best, found = col, true
		}
	}
	if found {
		tc := resolved(best)
		return &tc
	}

	if intent != analytics.IntentTimeSeries {
		return nil
	}

	for _, kw := range timeKeywords {
		if !containsWord(text, kw) {
			continue
		}
		if col, ok := firstContaining(dates, []string{kw}); ok {
			tc := resolved(col)
			return &tc
		}
	}

	tc := resolved(dates[0])
	return &tc
}

var (
	monthBucket = regexp.MustCompile(`\b(monthly|per month|by month|each month|every month|month over month)\b`)
	yearBucket  = regexp.MustCompile(`\b(yearly|annual|annually|per year|by year|each year|every year|year over year)\b`)
)

// detectBucket only leaves day granularity when the question asks for it
func detectBucket(text string) analytics.Bucket {
	switch {
	case monthBucket.MatchString(text):
		return analytics.BucketMonth
	case yearBucket.MatchString(text):
		return analytics.BucketYear
	}
	return analytics.BucketDay
}
