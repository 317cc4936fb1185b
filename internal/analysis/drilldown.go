package analysis

import (
	"strings"
	"time"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"

	"goinsight/adapters/coercer"
	"goinsight/domain/analytics"
	"goinsight/domain/dataset"
	"goinsight/internal/errors"
	"goinsight/internal/profiling"
	"goinsight/ports"
)

// DrillDownService compares one metric across the two groups of an outcome column
type DrillDownService struct {
	parser  ports.FileParser
	coercer *coercer.TypeCoercer
	options Options
	logger  *zap.Logger
}

// NewDrillDownService creates the service
func NewDrillDownService(parser ports.FileParser, options Options, logger *zap.Logger) *DrillDownService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DrillDownService{
		parser:  parser,
		coercer: coercer.Default(),
		options: options.withDefaults(),
		logger:  logger.Named("drilldown"),
	}
}

// Generate builds per-group histograms on shared bin edges, percentile stats
// and an optional secondary breakdown. An empty OutcomeColumn falls back to
// the detected outcome.
func (s *DrillDownService) Generate(req analytics.DrillDownRequest, profile *dataset.DatasetProfile) (*analytics.DrillDownResult, error) {
	if profile == nil || len(profile.Columns) == 0 {
		return nil, errors.InvalidInput("drill-down requires a dataset profile")
	}
	if strings.TrimSpace(req.FilePath) == "" {
		return nil, errors.InvalidInput("drill-down requires a file path")
	}

	metricCol, ok := profile.Column(req.MetricColumn)
	if !ok {
		return nil, errors.Newf(errors.CodeValidationError, "metric column %q not found", req.MetricColumn)
	}
	if metricCol.Type != dataset.TypeNumber {
		return nil, errors.Newf(errors.CodeValidationError, "metric column %q is %s, not numeric", metricCol.Name, metricCol.Type)
	}

	start := time.Now()
	parsed, err := s.parser.Parse(req.FilePath)
	if err != nil {
		return nil, err
	}

	o, err := s.outcomeFor(req, parsed, profile)
	if err != nil {
		return nil, err
	}

	// split metric values by outcome side; index 0 is the positive group
	var split [2][]float64
	var all []float64
	for _, row := range parsed.Rows {
		positive, ok := o.side(s.coercer, row[o.column])
		if !ok {
			continue
		}
		n, ok := s.coercer.Number(row[metricCol.Name])
		if !ok {
			continue
		}
		all = append(all, n)
		if positive {
			split[0] = append(split[0], n)
		} else {
			split[1] = append(split[1], n)
		}
	}
	if len(all) == 0 {
		return nil, errors.Newf(errors.CodeValidationError, "no rows have both %q and %q", metricCol.Name, o.column)
	}

	min, _ := stats.Min(all)
	max, _ := stats.Max(all)
	edges := profiling.BinEdges(min, max, s.options.HistogramBins)

	result := &analytics.DrillDownResult{
		DatasetVersionID: profile.DatasetVersionID,
		Metric:           metricCol.Name,
		Outcome:          o.column,
	}
	labels := [2]string{o.positiveDisplay, o.negativeDisplay}
	for i, values := range split {
		result.Groups = append(result.Groups, analytics.OutcomeGroup{
			Value:     labels[i],
			Stats:     percentileStats(values),
			Histogram: profiling.Histogram(values, edges),
		})
	}

	if dim, ok := s.secondaryDimension(profile, metricCol.Name, o.column); ok {
		result.Secondary = s.secondary(parsed, o, metricCol.Name, dim)
	}

	s.logger.Info("drill-down generated",
		zap.String("dataset_version_id", profile.DatasetVersionID.String()),
		zap.String("metric", metricCol.Name),
		zap.String("outcome", o.column),
		zap.Int("values", len(all)),
		zap.Duration("elapsed", time.Since(start)))

	return result, nil
}

func (s *DrillDownService) outcomeFor(req analytics.DrillDownRequest, parsed *dataset.ParsedData, profile *dataset.DatasetProfile) (*outcome, error) {
	if strings.TrimSpace(req.OutcomeColumn) == "" {
		o := detectOutcome(s.coercer, parsed, profile, s.options.MinOutcomeShare)
		if o == nil {
			return nil, errors.ValidationError("no outcome column given and none could be detected")
		}
		return o, nil
	}

	col, ok := profile.Column(req.OutcomeColumn)
	if !ok {
		return nil, errors.Newf(errors.CodeValidationError, "outcome column %q not found", req.OutcomeColumn)
	}
	o, ok := inspectOutcome(s.coercer, parsed, *col)
	if !ok {
		return nil, errors.Newf(errors.CodeValidationError, "outcome column %q must have exactly two distinct values", col.Name)
	}
	return o, nil
}

// secondaryDimension picks the eligible dimension with the fewest distinct
// values; ties keep header order
func (s *DrillDownService) secondaryDimension(profile *dataset.DatasetProfile, metric, outcomeColumn string) (string, bool) {
	roles := assignRoles(profile, s.options.MaxCategoryCardinality)
	var best *dataset.ColumnProfile
	for i := range roles.dimensions {
		dim := &roles.dimensions[i]
		if dim.Name == metric || dim.Name == outcomeColumn {
			continue
		}
		if best == nil || dim.DistinctCount < best.DistinctCount {
			best = dim
		}
	}
	if best == nil {
		return "", false
	}
	return best.Name, true
}

func (s *DrillDownService) secondary(parsed *dataset.ParsedData, o *outcome, metric, dim string) *analytics.SecondaryBreakdown {
	labels := [2]string{o.positiveDisplay, o.negativeDisplay}
	groups := [2]*meanAccumulator{newMeanAccumulator(), newMeanAccumulator()}
	categories := newMeanAccumulator()

	for _, row := range parsed.Rows {
		positive, ok := o.side(s.coercer, row[o.column])
		if !ok {
			continue
		}
		category, ok := categoryOf(s.coercer, row[dim])
		if !ok {
			continue
		}
		n, ok := s.coercer.Number(row[metric])
		if !ok {
			continue
		}
		side := 1
		if positive {
			side = 0
		}
		groups[side].add(category, n)
		categories.add(category, n)
	}

	breakdown := &analytics.SecondaryBreakdown{Dimension: dim, Cells: []analytics.SecondaryCell{}}
	for _, category := range categories.sortedKeys() {
		for side, acc := range groups {
			if acc.counts[category] == 0 {
				continue
			}
			breakdown.Cells = append(breakdown.Cells, analytics.SecondaryCell{
				Category: category,
				Outcome:  labels[side],
				Count:    acc.counts[category],
				Mean:     acc.mean(category),
			})
		}
	}
	return breakdown
}

func percentileStats(values []float64) analytics.PercentileStats {
	if len(values) == 0 {
		return analytics.PercentileStats{}
	}
	summary, err := profiling.Summarize(values)
	if err != nil {
		return analytics.PercentileStats{Count: len(values)}
	}
	return analytics.PercentileStats{
		Count: summary.Count,
		Mean:  profiling.Round(summary.Mean, 2),
		P25:   profiling.Round(summary.P25, 2),
		P50:   profiling.Round(summary.Median, 2),
		P75:   profiling.Round(summary.P75, 2),
	}
}
