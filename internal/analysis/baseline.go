package analysis

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"

	"goinsight/adapters/coercer"
	"goinsight/domain/analytics"
	"goinsight/domain/dataset"
	"goinsight/internal/errors"
	"goinsight/internal/profiling"
	"goinsight/internal/quality"
	"goinsight/ports"
)

// BaselineAnalysisService produces the question-independent overview of a dataset
type BaselineAnalysisService struct {
	parser  ports.FileParser
	checker *quality.Checker
	coercer *coercer.TypeCoercer
	options Options
	logger  *zap.Logger
}

// NewBaselineAnalysisService creates the service. A nil checker leaves the
// quality section out of the result.
func NewBaselineAnalysisService(parser ports.FileParser, checker *quality.Checker, options Options, logger *zap.Logger) *BaselineAnalysisService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BaselineAnalysisService{
		parser:  parser,
		checker: checker,
		coercer: coercer.Default(),
		options: options.withDefaults(),
		logger:  logger.Named("baseline"),
	}
}

// Generate runs the three baseline phases over the file at path
func (s *BaselineAnalysisService) Generate(profile *dataset.DatasetProfile, path string) (*analytics.BaselineAnalysisResult, error) {
	if profile == nil || len(profile.Columns) == 0 {
		return nil, errors.InvalidInput("baseline analysis requires a dataset profile")
	}

	start := time.Now()
	parsed, err := s.parser.Parse(path)
	if err != nil {
		return nil, err
	}

	roles := assignRoles(profile, s.options.MaxCategoryCardinality)
	result := &analytics.BaselineAnalysisResult{
		DatasetVersionID: profile.DatasetVersionID,
		RowCount:         parsed.RowCount,
		Metrics:          []analytics.MetricSummary{},
		Breakdowns:       []analytics.CategoryBreakdown{},
		Skipped:          roles.skipped,
	}

	// Phase A
	var metrics []dataset.ColumnProfile
	for _, col := range roles.metrics {
		summary, ok := s.summarize(parsed, col.Name)
		if !ok {
			result.Skipped = append(result.Skipped, analytics.SkippedColumn{Column: col.Name, Reason: "no numeric values"})
			continue
		}
		result.Metrics = append(result.Metrics, summary)
		metrics = append(metrics, col)
	}

	// Phase B
	for _, dim := range roles.dimensions {
		for _, metric := range metrics {
			if breakdown, ok := s.breakdown(parsed, dim.Name, metric.Name); ok {
				result.Breakdowns = append(result.Breakdowns, breakdown)
			}
		}
	}

	// Phase C
	if o := detectOutcome(s.coercer, parsed, profile, s.options.MinOutcomeShare); o != nil {
		result.Outcome = s.outcomeAnalysis(parsed, o, roles.dimensions, metrics)
	}

	if s.checker != nil {
		result.Quality = s.checker.Run(parsed, profile, profile.DatasetVersionID)
	}

	fields := []zap.Field{
		zap.String("dataset_version_id", profile.DatasetVersionID.String()),
		zap.Int("metrics", len(result.Metrics)),
		zap.Int("breakdowns", len(result.Breakdowns)),
		zap.Duration("elapsed", time.Since(start)),
	}
	if result.Outcome != nil {
		fields = append(fields, zap.String("outcome", result.Outcome.Column))
	}
	s.logger.Info("baseline generated", fields...)

	return result, nil
}

func (s *BaselineAnalysisService) summarize(parsed *dataset.ParsedData, column string) (analytics.MetricSummary, bool) {
	values, _ := numericPairs(s.coercer, parsed, column)
	summary, err := profiling.Summarize(values)
	if err != nil {
		return analytics.MetricSummary{}, false
	}
	edges := profiling.BinEdges(summary.Min, summary.Max, s.options.HistogramBins)

	return analytics.MetricSummary{
		Column:    column,
		Count:     summary.Count,
		Mean:      profiling.Round(summary.Mean, 2),
		Median:    profiling.Round(summary.Median, 2),
		StdDev:    profiling.Round(summary.StdDev, 2),
		Min:       profiling.Round(summary.Min, 2),
		Max:       profiling.Round(summary.Max, 2),
		P25:       profiling.Round(summary.P25, 2),
		P75:       profiling.Round(summary.P75, 2),
		Histogram: profiling.Histogram(values, edges),
	}, true
}

// breakdown averages metric per category, categories sorted alphabetically
func (s *BaselineAnalysisService) breakdown(parsed *dataset.ParsedData, dim, metric string) (analytics.CategoryBreakdown, bool) {
	acc := newMeanAccumulator()
	for _, row := range parsed.Rows {
		category, ok := categoryOf(s.coercer, row[dim])
		if !ok {
			continue
		}
		if n, ok := s.coercer.Number(row[metric]); ok {
			acc.add(category, n)
		}
	}
	keys := acc.sortedKeys()
	if len(keys) == 0 {
		return analytics.CategoryBreakdown{}, false
	}

	out := analytics.CategoryBreakdown{Dimension: dim, Metric: metric, Rows: make([]analytics.CategoryStat, 0, len(keys))}
	for _, k := range keys {
		out.Rows = append(out.Rows, analytics.CategoryStat{Category: k, Count: acc.counts[k], Average: acc.mean(k)})
	}
	return out, true
}

func (s *BaselineAnalysisService) outcomeAnalysis(parsed *dataset.ParsedData, o *outcome, dims, metrics []dataset.ColumnProfile) *analytics.OutcomeAnalysis {
	analysis := &analytics.OutcomeAnalysis{
		Column:         o.column,
		PositiveValue:  o.positiveDisplay,
		NegativeValue:  o.negativeDisplay,
		PositiveRate:   profiling.Round(float64(o.positives)/float64(o.total), 4),
		ByCategory:     []analytics.OutcomeBreakdown{},
		ByMetric:       []analytics.OutcomeBreakdown{},
		KeyDifferences: []analytics.KeyDifference{},
	}

	for _, dim := range dims {
		if dim.Name == o.column {
			continue
		}
		if b, ok := s.ratesByCategory(parsed, o, dim.Name); ok {
			analysis.ByCategory = append(analysis.ByCategory, b)
		}
	}
	for _, metric := range metrics {
		if metric.Name == o.column {
			continue
		}
		if b, ok := s.ratesByQuartile(parsed, o, metric.Name); ok {
			analysis.ByMetric = append(analysis.ByMetric, b)
		}
		if d, ok := s.keyDifference(parsed, o, metric.Name); ok {
			analysis.KeyDifferences = append(analysis.KeyDifferences, d)
		}
	}

	sort.SliceStable(analysis.KeyDifferences, func(i, j int) bool {
		a, b := analysis.KeyDifferences[i], analysis.KeyDifferences[j]
		if math.Abs(a.AbsoluteDiff) != math.Abs(b.AbsoluteDiff) {
			return math.Abs(a.AbsoluteDiff) > math.Abs(b.AbsoluteDiff)
		}
		return math.Abs(a.RelativeDiff) > math.Abs(b.RelativeDiff)
	})
	if len(analysis.KeyDifferences) > s.options.MaxKeyDifferences {
		analysis.KeyDifferences = analysis.KeyDifferences[:s.options.MaxKeyDifferences]
	}
	return analysis
}

// rateCounter tallies positives per segment
type rateCounter struct {
	order     []string
	counts    map[string]int
	positives map[string]int
}

func newRateCounter() *rateCounter {
	return &rateCounter{counts: map[string]int{}, positives: map[string]int{}}
}

func (r *rateCounter) add(segment string, positive bool) {
	if _, ok := r.counts[segment]; !ok {
		r.order = append(r.order, segment)
	}
	r.counts[segment]++
	if positive {
		r.positives[segment]++
	}
}

func (r *rateCounter) rates(segments []string) []analytics.OutcomeRate {
	out := make([]analytics.OutcomeRate, 0, len(segments))
	for _, seg := range segments {
		n := r.counts[seg]
		if n == 0 {
			continue
		}
		out = append(out, analytics.OutcomeRate{
			Segment:       seg,
			Count:         n,
			PositiveCount: r.positives[seg],
			Rate:          profiling.Round(float64(r.positives[seg])/float64(n), 4),
		})
	}
	return out
}

func (s *BaselineAnalysisService) ratesByCategory(parsed *dataset.ParsedData, o *outcome, dim string) (analytics.OutcomeBreakdown, bool) {
	counter := newRateCounter()
	for _, row := range parsed.Rows {
		positive, ok := o.side(s.coercer, row[o.column])
		if !ok {
			continue
		}
		if category, ok := categoryOf(s.coercer, row[dim]); ok {
			counter.add(category, positive)
		}
	}
	if len(counter.order) == 0 {
		return analytics.OutcomeBreakdown{}, false
	}
	segments := append([]string(nil), counter.order...)
	sort.Strings(segments)
	return analytics.OutcomeBreakdown{Column: dim, Rates: counter.rates(segments)}, true
}

// ratesByQuartile bins metric at its quartiles and reports the outcome rate per bin
func (s *BaselineAnalysisService) ratesByQuartile(parsed *dataset.ParsedData, o *outcome, metric string) (analytics.OutcomeBreakdown, bool) {
	values, rows := numericPairs(s.coercer, parsed, metric)
	if len(values) < 4 {
		return analytics.OutcomeBreakdown{}, false
	}
	q25, q75, err := profiling.Quartiles(values)
	if err != nil {
		return analytics.OutcomeBreakdown{}, false
	}
	q50, err := stats.Median(values)
	if err != nil {
		return analytics.OutcomeBreakdown{}, false
	}

	labels := []string{
		fmt.Sprintf("Q1 (<= %s)", format(q25)),
		fmt.Sprintf("Q2 (<= %s)", format(q50)),
		fmt.Sprintf("Q3 (<= %s)", format(q75)),
		fmt.Sprintf("Q4 (> %s)", format(q75)),
	}
	counter := newRateCounter()
	for i, x := range values {
		positive, ok := o.side(s.coercer, parsed.Rows[rows[i]][o.column])
		if !ok {
			continue
		}
		switch {
		case x <= q25:
			counter.add(labels[0], positive)
		case x <= q50:
			counter.add(labels[1], positive)
		case x <= q75:
			counter.add(labels[2], positive)
		default:
			counter.add(labels[3], positive)
		}
	}
	if len(counter.order) == 0 {
		return analytics.OutcomeBreakdown{}, false
	}
	return analytics.OutcomeBreakdown{Column: metric, Rates: counter.rates(labels)}, true
}

func (s *BaselineAnalysisService) keyDifference(parsed *dataset.ParsedData, o *outcome, metric string) (analytics.KeyDifference, bool) {
	var pos, neg []float64
	for _, row := range parsed.Rows {
		positive, ok := o.side(s.coercer, row[o.column])
		if !ok {
			continue
		}
		n, ok := s.coercer.Number(row[metric])
		if !ok {
			continue
		}
		if positive {
			pos = append(pos, n)
		} else {
			neg = append(neg, n)
		}
	}
	posMean, err := stats.Mean(pos)
	if err != nil {
		return analytics.KeyDifference{}, false
	}
	negMean, err := stats.Mean(neg)
	if err != nil {
		return analytics.KeyDifference{}, false
	}

	diff := posMean - negMean
	relative := 0.0
	if negMean != 0 {
		relative = diff / math.Abs(negMean)
	}
	return analytics.KeyDifference{
		Metric:       metric,
		PositiveMean: profiling.Round(posMean, 2),
		NegativeMean: profiling.Round(negMean, 2),
		AbsoluteDiff: profiling.Round(diff, 2),
		RelativeDiff: profiling.Round(relative, 4),
	}, true
}

func format(x float64) string {
	return fmt.Sprint(profiling.Round(x, 2))
}
