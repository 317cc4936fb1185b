package engine

import (
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"goinsight/domain/analytics"
	"goinsight/domain/dataset"
	"goinsight/internal/errors"
)

// BlankGroup labels rows whose dimension cell is empty
const BlankGroup = "(blank)"

func format(x float64) string {
	return decimal.NewFromFloat(x).Round(4).String()
}

func (e *ExecutionEngine) numbers(parsed *dataset.ParsedData, column string) ([]float64, int) {
	values := make([]float64, 0, len(parsed.Rows))
	skipped := 0
	for _, row := range parsed.Rows {
		cell := row[column]
		if e.coercer.IsNull(cell) {
			continue
		}
		n, ok := e.coercer.Number(cell)
		if !ok {
			skipped++
			continue
		}
		values = append(values, n)
	}
	return values, skipped
}

func (e *ExecutionEngine) sum(parsed *dataset.ParsedData, metric string, meta analytics.ResultMetadata) *analytics.AnalysisResult {
	values, skipped := e.numbers(parsed, metric)
	total := 0.0
	for _, v := range values {
		total += v
	}
	meta.ValuesUsed = len(values)
	meta.RowsSkipped = skipped
	return &analytics.AnalysisResult{
		Type:     analytics.ResultScalar,
		Data:     scalar(total, dataset.KindNumber, format(total)),
		Metadata: meta,
	}
}

// average divides by the number of values summed, not the row count
func (e *ExecutionEngine) average(parsed *dataset.ParsedData, metric string, meta analytics.ResultMetadata) (*analytics.AnalysisResult, error) {
	values, skipped := e.numbers(parsed, metric)
	if len(values) == 0 {
		return nil, errors.Newf(errors.CodeExecutionError, "column %q has no numeric values to average", metric)
	}
	total := 0.0
	for _, v := range values {
		total += v
	}
	avg := total / float64(len(values))
	meta.ValuesUsed = len(values)
	meta.RowsSkipped = skipped
	return &analytics.AnalysisResult{
		Type:     analytics.ResultScalar,
		Data:     scalar(avg, dataset.KindNumber, format(avg)),
		Metadata: meta,
	}, nil
}

// count is the row count, independent of nulls
func (e *ExecutionEngine) count(parsed *dataset.ParsedData, meta analytics.ResultMetadata) *analytics.AnalysisResult {
	meta.ValuesUsed = parsed.RowCount
	return &analytics.AnalysisResult{
		Type:     analytics.ResultScalar,
		Data:     scalar(parsed.RowCount, dataset.KindNumber, strconv.Itoa(parsed.RowCount)),
		Metadata: meta,
	}
}

// extreme tracks the running min or max as numbers, dates and raw text in
// one pass, then reports numbers or dates (whichever more cells parse as)
// and falls back to lexical order
func (e *ExecutionEngine) extreme(parsed *dataset.ParsedData, metric string, meta analytics.ResultMetadata, max bool) *analytics.AnalysisResult {
	var (
		numBest, numCount   = 0.0, 0
		dateBest, dateCount = dataset.Value{}, 0
		textBest, textCount = "", 0
	)
	better := func(cmp int) bool {
		if max {
			return cmp > 0
		}
		return cmp < 0
	}

	for _, row := range parsed.Rows {
		cell := row[metric]
		if e.coercer.IsNull(cell) {
			continue
		}
		if n, ok := e.coercer.Number(cell); ok {
			if numCount == 0 || better(compareFloat(n, numBest)) {
				numBest = n
			}
			numCount++
		}
		if d, ok := e.coercer.Date(cell); ok {
			if dateCount == 0 || better(d.Compare(dateBest.Time)) {
				dateBest = dataset.NewDateValue(d)
			}
			dateCount++
		}
		text := strings.TrimSpace(cell.String())
		if textCount == 0 || better(strings.Compare(text, textBest)) {
			textBest = text
		}
		textCount++
	}

	var data *analytics.ScalarData
	switch {
	case numCount > 0 && numCount >= dateCount:
		meta.ValuesUsed = numCount
		data = scalar(numBest, dataset.KindNumber, format(numBest))
	case dateCount > 0:
		meta.ValuesUsed = dateCount
		data = scalar(dateBest.String(), dataset.KindDate, dateBest.String())
	case textCount > 0:
		meta.ValuesUsed = textCount
		data = scalar(textBest, dataset.KindText, textBest)
	default:
		data = scalar(nil, dataset.KindNull, "")
	}
	meta.RowsSkipped = parsed.RowCount - meta.ValuesUsed

	return &analytics.AnalysisResult{Type: analytics.ResultScalar, Data: data, Metadata: meta}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// groupBy sums metric per dimension value. Groups are sorted by total
// descending; equal totals keep first-seen order.
func (e *ExecutionEngine) groupBy(parsed *dataset.ParsedData, metric, dim string, meta analytics.ResultMetadata) *analytics.AnalysisResult {
	index := make(map[string]int)
	var rows []analytics.TableRow

	for _, row := range parsed.Rows {
		key := BlankGroup
		if cell := row[dim]; !e.coercer.IsNull(cell) {
			key = strings.TrimSpace(cell.String())
		}
		i, ok := index[key]
		if !ok {
			i = len(rows)
			index[key] = i
			rows = append(rows, analytics.TableRow{Key: key})
		}
		rows[i].Count++

		cell := row[metric]
		if e.coercer.IsNull(cell) {
			continue
		}
		if n, ok := e.coercer.Number(cell); ok {
			rows[i].Total += n
			meta.ValuesUsed++
		} else {
			meta.RowsSkipped++
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Total > rows[j].Total
	})

	meta.Dimension = dim
	return &analytics.AnalysisResult{
		Type: analytics.ResultTable,
		Data: &analytics.TableData{
			Columns: []string{dim, metric, "count"},
			Rows:    rows,
		},
		Metadata: meta,
	}
}

// timeSeries sums metric per bucket; periods sort ascending. Rows whose time
// cell does not parse as a date are skipped and counted.
func (e *ExecutionEngine) timeSeries(parsed *dataset.ParsedData, metric, timeColumn string, bucket analytics.Bucket, meta analytics.ResultMetadata) *analytics.AnalysisResult {
	points := make(map[string]*analytics.SeriesPoint)

	for _, row := range parsed.Rows {
		t, ok := e.coercer.Date(row[timeColumn])
		if !ok {
			meta.RowsSkipped++
			continue
		}
		key := bucketKey(t, bucket)
		point, ok := points[key]
		if !ok {
			point = &analytics.SeriesPoint{Period: key}
			points[key] = point
		}
		point.Count++

		if n, ok := e.coercer.Number(row[metric]); ok {
			point.Value += n
			meta.ValuesUsed++
		}
	}

	keys := make([]string, 0, len(points))
	for k := range points {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	series := &analytics.SeriesData{Bucket: bucket, Points: make([]analytics.SeriesPoint, 0, len(keys))}
	for _, k := range keys {
		series.Points = append(series.Points, *points[k])
	}

	meta.TimeColumn = timeColumn
	meta.Bucket = bucket
	return &analytics.AnalysisResult{Type: analytics.ResultSeries, Data: series, Metadata: meta}
}
