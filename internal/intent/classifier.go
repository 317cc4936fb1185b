// Package intent maps free-text questions to the closed set of analytical
// intents using an ordered rule table.
package intent

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"goinsight/domain/analytics"
)

// Rule is one row of the classification table
type Rule struct {
	Name       string
	Intent     analytics.Intent
	Confidence analytics.Confidence
	Pattern    *regexp.Regexp
}

// DefaultRules is evaluated top to bottom and the first match wins.
// Families run most specific first: time series, group by, min, max, sum,
// avg, count. A question mixing an aggregate with temporal language
// ("total revenue over time") therefore resolves to time_series.
var DefaultRules = []Rule{
	{"trend_language", analytics.IntentTimeSeries, analytics.ConfidenceHigh,
		regexp.MustCompile(`\b(over time|trends?|trending|time ?series|timeline)\b`)},
	{"temporal_grouping", analytics.IntentTimeSeries, analytics.ConfidenceHigh,
		regexp.MustCompile(`\b(by|per|each|every)\s+(day|date|week|month|year|quarter)s?\b`)},
	{"periodic_adverb", analytics.IntentTimeSeries, analytics.ConfidenceMedium,
		regexp.MustCompile(`\b(daily|weekly|monthly|yearly|quarterly|annually|annual)\b`)},

	{"explicit_grouping", analytics.IntentGroupBy, analytics.ConfidenceHigh,
		regexp.MustCompile(`\b(grouped by|broken down by|split by|for each|for every|across)\s+\w+`)},
	{"by_dimension", analytics.IntentGroupBy, analytics.ConfidenceHigh,
		regexp.MustCompile(`\b(by|per)\s+\w+`)},
	{"breakdown", analytics.IntentGroupBy, analytics.ConfidenceMedium,
		regexp.MustCompile(`\bbreak ?down\b`)},

	{"min_keyword", analytics.IntentMin, analytics.ConfidenceHigh,
		regexp.MustCompile(`\b(min|minimum|lowest|smallest|least|earliest|cheapest|oldest)\b`)},

	{"max_keyword", analytics.IntentMax, analytics.ConfidenceHigh,
		regexp.MustCompile(`\b(max|maximum|highest|largest|biggest|greatest|latest|newest|most expensive)\b`)},
	{"max_peak", analytics.IntentMax, analytics.ConfidenceMedium,
		regexp.MustCompile(`\b(top|peak)\b`)},

	{"sum_keyword", analytics.IntentSum, analytics.ConfidenceHigh,
		regexp.MustCompile(`\b(total|sum)\b`)},
	{"sum_collective", analytics.IntentSum, analytics.ConfidenceMedium,
		regexp.MustCompile(`\b(overall|combined|aggregate|altogether)\b`)},

	{"avg_keyword", analytics.IntentAvg, analytics.ConfidenceHigh,
		regexp.MustCompile(`\b(average|avg|mean)\b`)},
	{"avg_typical", analytics.IntentAvg, analytics.ConfidenceMedium,
		regexp.MustCompile(`\b(typical|typically|usual)\b`)},

	{"count_keyword", analytics.IntentCount, analytics.ConfidenceHigh,
		regexp.MustCompile(`\b(how many|count|number of)\b`)},
}

// Classifier applies an ordered rule table. It holds no mutable state.
type Classifier struct {
	rules  []Rule
	logger *zap.Logger
}

// NewClassifier creates a classifier over rules; nil rules means DefaultRules
func NewClassifier(rules []Rule, logger *zap.Logger) *Classifier {
	if rules == nil {
		rules = DefaultRules
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{rules: rules, logger: logger.Named("intent")}
}

// Classify returns the intent of the first matching rule, or
// unsupported_query with low confidence
func (c *Classifier) Classify(question string) analytics.Classification {
	text := Normalize(question)
	for _, rule := range c.rules {
		if rule.Pattern.MatchString(text) {
			c.logger.Debug("intent classified",
				zap.String("intent", string(rule.Intent)),
				zap.String("rule", rule.Name))
			return analytics.Classification{
				Intent:      rule.Intent,
				Confidence:  rule.Confidence,
				MatchedRule: rule.Name,
			}
		}
	}
	c.logger.Debug("no intent rule matched", zap.String("question", text))
	return analytics.Classification{
		Intent:     analytics.IntentUnsupported,
		Confidence: analytics.ConfidenceLow,
	}
}

// Normalize lower-cases and trims a question and collapses its whitespace
func Normalize(question string) string {
	return strings.Join(strings.Fields(strings.ToLower(question)), " ")
}
