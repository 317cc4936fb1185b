package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"goinsight/domain/analytics"
)

func TestClassify(t *testing.T) {
	c := NewClassifier(nil, zap.NewNop())

	tests := []struct {
		question   string
		intent     analytics.Intent
		confidence analytics.Confidence
	}{
		{"What is the total revenue?", analytics.IntentSum, analytics.ConfidenceHigh},
		{"sum of category", analytics.IntentSum, analytics.ConfidenceHigh},
		{"Overall sales", analytics.IntentSum, analytics.ConfidenceMedium},
		{"average price by category", analytics.IntentGroupBy, analytics.ConfidenceHigh},
		{"total revenue for each region", analytics.IntentGroupBy, analytics.ConfidenceHigh},
		{"revenue breakdown", analytics.IntentGroupBy, analytics.ConfidenceMedium},
		{"total revenue over time", analytics.IntentTimeSeries, analytics.ConfidenceHigh},
		{"revenue by month", analytics.IntentTimeSeries, analytics.ConfidenceHigh},
		{"Show me the sales trend", analytics.IntentTimeSeries, analytics.ConfidenceHigh},
		{"monthly orders", analytics.IntentTimeSeries, analytics.ConfidenceMedium},
		{"What was the lowest price?", analytics.IntentMin, analytics.ConfidenceHigh},
		{"earliest order date", analytics.IntentMin, analytics.ConfidenceHigh},
		{"highest revenue", analytics.IntentMax, analytics.ConfidenceHigh},
		{"peak load", analytics.IntentMax, analytics.ConfidenceMedium},
		{"What is the mean score?", analytics.IntentAvg, analytics.ConfidenceHigh},
		{"typical basket size", analytics.IntentAvg, analytics.ConfidenceMedium},
		{"How many orders are there?", analytics.IntentCount, analytics.ConfidenceHigh},
		{"number of customers", analytics.IntentCount, analytics.ConfidenceHigh},
		{"tell me a joke", analytics.IntentUnsupported, analytics.ConfidenceLow},
		{"   ", analytics.IntentUnsupported, analytics.ConfidenceLow},
	}

	for _, tt := range tests {
		t.Run(tt.question, func(t *testing.T) {
			got := c.Classify(tt.question)
			assert.Equal(t, tt.intent, got.Intent)
			assert.Equal(t, tt.confidence, got.Confidence)
		})
	}
}

func TestClassifyIsCaseAndSpaceInsensitive(t *testing.T) {
	c := NewClassifier(nil, nil)
	assert.Equal(t, c.Classify("total revenue"), c.Classify("  TOTAL   Revenue  "))
}

func TestDefaultRulesFamilyOrder(t *testing.T) {
	order := []analytics.Intent{
		analytics.IntentTimeSeries,
		analytics.IntentGroupBy,
		analytics.IntentMin,
		analytics.IntentMax,
		analytics.IntentSum,
		analytics.IntentAvg,
		analytics.IntentCount,
	}

	family := 0
	for _, rule := range DefaultRules {
		for family < len(order) && order[family] != rule.Intent {
			family++
		}
		assert.Less(t, family, len(order), "rule %s is out of family order", rule.Name)
	}
}

func TestCustomRules(t *testing.T) {
	rules := []Rule{DefaultRules[len(DefaultRules)-1]}
	c := NewClassifier(rules, nil)

	assert.Equal(t, analytics.IntentCount, c.Classify("count rows").Intent)
	assert.Equal(t, analytics.IntentUnsupported, c.Classify("total revenue").Intent)
}
