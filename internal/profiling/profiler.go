package profiling

import (
	"time"

	"go.uber.org/zap"

	"goinsight/adapters/coercer"
	"goinsight/domain/core"
	"goinsight/domain/dataset"
	"goinsight/internal/errors"
	"goinsight/internal/semantics"
)

// DataProfiler infers a type and summary statistics for every column.
// It is stateless and safe for concurrent use.
type DataProfiler struct {
	coercer *coercer.TypeCoercer
	logger  *zap.Logger
}

// NewDataProfiler creates a profiler; a nil coercer uses default thresholds
func NewDataProfiler(c *coercer.TypeCoercer, logger *zap.Logger) *DataProfiler {
	if c == nil {
		c = coercer.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DataProfiler{coercer: c, logger: logger.Named("profiler")}
}

// Profile builds the dataset profile. The result carries no timestamps, so
// profiling the same data twice yields identical output.
func (p *DataProfiler) Profile(parsed *dataset.ParsedData, versionID core.DatasetVersionID) (*dataset.DatasetProfile, error) {
	if parsed == nil || parsed.RowCount == 0 || len(parsed.Rows) == 0 {
		return nil, errors.New(errors.CodeEmptyDataset, "dataset has no rows")
	}
	if parsed.ColumnCount == 0 || len(parsed.Headers) == 0 {
		return nil, errors.New(errors.CodeEmptyDataset, "dataset has no columns")
	}

	start := time.Now()
	profile := &dataset.DatasetProfile{
		DatasetVersionID: versionID,
		RowCount:         len(parsed.Rows),
		ColumnCount:      len(parsed.Headers),
		Columns:          make([]dataset.ColumnProfile, 0, len(parsed.Headers)),
	}

	for _, header := range parsed.Headers {
		profile.Columns = append(profile.Columns, p.profileColumn(header, parsed.Column(header)))
	}

	p.logger.Info("dataset profiled",
		zap.String("dataset_version_id", versionID.String()),
		zap.Int("rows", profile.RowCount),
		zap.Int("columns", profile.ColumnCount),
		zap.Duration("elapsed", time.Since(start)))

	return profile, nil
}

func (p *DataProfiler) profileColumn(name string, values []dataset.Value) dataset.ColumnProfile {
	col := dataset.ColumnProfile{
		Name: name,
		Type: semantics.InferColumnType(p.coercer, values),
	}

	distinct := make(map[string]struct{})
	var numbers []float64
	for _, v := range values {
		if p.coercer.IsNull(v) {
			col.NullCount++
			continue
		}
		distinct[coercer.Normalize(v.String())] = struct{}{}
		if col.Type == dataset.TypeNumber {
			if n, ok := p.coercer.Number(v); ok {
				numbers = append(numbers, n)
			}
		}
	}

	col.DistinctCount = len(distinct)
	if len(values) > 0 {
		col.NullRatio = Round(float64(col.NullCount)/float64(len(values)), 4)
	}

	if len(numbers) > 0 {
		min, max, sum := numbers[0], numbers[0], 0.0
		for _, n := range numbers {
			if n < min {
				min = n
			}
			if n > max {
				max = n
			}
			sum += n
		}
		mean := sum / float64(len(numbers))
		col.Min = roundedPtr(min)
		col.Max = roundedPtr(max)
		col.Mean = roundedPtr(mean)
	}

	col.Semantic = semantics.Classify(col)
	return col
}

func roundedPtr(x float64) *float64 {
	r := Round(x, 2)
	return &r
}
