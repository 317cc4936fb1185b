package profiling

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"goinsight/domain/core"
	"goinsight/domain/dataset"
	"goinsight/internal/errors"
)

func parsedFrom(headers []string, records ...[]string) *dataset.ParsedData {
	rows := make([]dataset.Row, len(records))
	for i, record := range records {
		row := make(dataset.Row, len(headers))
		for j, h := range headers {
			row[h] = dataset.NewTextValue(record[j])
		}
		rows[i] = row
	}
	return &dataset.ParsedData{Headers: headers, Rows: rows, RowCount: len(rows), ColumnCount: len(headers)}
}

func TestProfileInfersTypesAndStats(t *testing.T) {
	parsed := parsedFrom(
		[]string{"order_date", "region", "revenue", "paid", "Date_of_Journey"},
		[]string{"2024-01-01", "North", "1,200.50", "yes", "1"},
		[]string{"2024-01-02", "north ", "$300", "no", "12"},
		[]string{"2024-01-03", "South", "n/a", "yes", "27"},
		[]string{"2024-01-04", "East", "450.255", "no", "3"},
		[]string{"2024-01-05", "", "abc", "yes", "9"},
	)

	profile, err := NewDataProfiler(nil, zap.NewNop()).Profile(parsed, "v1")
	require.NoError(t, err)

	assert.Equal(t, core.DatasetVersionID("v1"), profile.DatasetVersionID)
	assert.Equal(t, 5, profile.RowCount)
	assert.Equal(t, 5, profile.ColumnCount)

	date, ok := profile.Column("order_date")
	require.True(t, ok)
	assert.Equal(t, dataset.TypeDate, date.Type)
	assert.Equal(t, dataset.SemanticDate, date.Semantic)
	assert.Nil(t, date.Mean)

	region, _ := profile.Column("REGION")
	assert.Equal(t, dataset.TypeString, region.Type)
	assert.Equal(t, 3, region.DistinctCount, "distinct count folds case and whitespace")
	assert.Equal(t, 1, region.NullCount)
	assert.Equal(t, 0.2, region.NullRatio)

	revenue, _ := profile.Column("revenue")
	assert.Equal(t, dataset.TypeString, revenue.Type, "3 of 4 non-null values is not above 80%")

	paid, _ := profile.Column("paid")
	assert.Equal(t, dataset.TypeBoolean, paid.Type)
	assert.Equal(t, dataset.SemanticBoolean, paid.Semantic)

	journey, _ := profile.Column("Date_of_Journey")
	assert.Equal(t, dataset.TypeNumber, journey.Type)
	assert.Equal(t, dataset.SemanticDate, journey.Semantic)
}

func TestProfileNumericStatsSkipUnparseable(t *testing.T) {
	records := [][]string{}
	for i := 1; i <= 9; i++ {
		records = append(records, []string{fmt.Sprintf("%d.333", i)})
	}
	records = append(records, []string{"oops"})
	parsed := parsedFrom([]string{"price"}, records...)

	profile, err := NewDataProfiler(nil, nil).Profile(parsed, "v1")
	require.NoError(t, err)

	price := profile.Columns[0]
	assert.Equal(t, dataset.TypeNumber, price.Type)
	require.NotNil(t, price.Min)
	require.NotNil(t, price.Max)
	require.NotNil(t, price.Mean)
	assert.Equal(t, 1.33, *price.Min)
	assert.Equal(t, 9.33, *price.Max)
	assert.Equal(t, 5.33, *price.Mean, "the unparseable cell is excluded, not treated as zero")
	assert.Equal(t, 0, price.NullCount)
	assert.Equal(t, dataset.SemanticNumeric, price.Semantic)
}

func TestProfileMeanWithinRange(t *testing.T) {
	parsed := parsedFrom([]string{"a", "b"},
		[]string{"-5", "0.001"},
		[]string{"17.25", "0.002"},
		[]string{"3", "0.004"},
		[]string{"1e3", "0.003"},
		[]string{"(20)", "0.001"},
	)

	profile, err := NewDataProfiler(nil, nil).Profile(parsed, "v1")
	require.NoError(t, err)

	for _, col := range profile.ColumnsOfType(dataset.TypeNumber) {
		require.NotNil(t, col.Mean, col.Name)
		assert.GreaterOrEqual(t, *col.Mean, *col.Min, col.Name)
		assert.LessOrEqual(t, *col.Mean, *col.Max, col.Name)
	}
	assert.Len(t, profile.ColumnsOfType(dataset.TypeNumber), 2)
}

func TestProfileIsIdempotent(t *testing.T) {
	parsed := parsedFrom([]string{"category", "price"},
		[]string{"Books", "12"},
		[]string{"Toys", "7.5"},
		[]string{"Books", ""},
	)
	profiler := NewDataProfiler(nil, nil)

	first, err := profiler.Profile(parsed, "v1")
	require.NoError(t, err)
	second, err := profiler.Profile(parsed, "v1")
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestProfileEmptyDataset(t *testing.T) {
	profiler := NewDataProfiler(nil, nil)

	_, err := profiler.Profile(&dataset.ParsedData{Headers: []string{"a"}}, "v1")
	assert.True(t, errors.Is(err, errors.CodeEmptyDataset))

	_, err = profiler.Profile(nil, "v1")
	assert.True(t, errors.Is(err, errors.CodeEmptyDataset))

	noColumns := &dataset.ParsedData{Rows: []dataset.Row{{}}, RowCount: 1}
	_, err = profiler.Profile(noColumns, "v1")
	assert.True(t, errors.Is(err, errors.CodeEmptyDataset))
}

func TestProfileZeroOneColumnIsNumeric(t *testing.T) {
	parsed := parsedFrom([]string{"product", "quantity", "active"},
		[]string{"pen", "1", "yes"},
		[]string{"ink", "0", "0"},
		[]string{"pad", "1", "no"},
		[]string{"cap", "1", "1"},
	)

	profile, err := NewDataProfiler(nil, nil).Profile(parsed, "v1")
	require.NoError(t, err)

	quantity, _ := profile.Column("quantity")
	assert.Equal(t, dataset.TypeNumber, quantity.Type)
	assert.Equal(t, dataset.SemanticNumeric, quantity.Semantic)
	require.NotNil(t, quantity.Mean)
	assert.Equal(t, 0.75, *quantity.Mean)

	active, _ := profile.Column("active")
	assert.Equal(t, dataset.TypeBoolean, active.Type, "word tokens alongside digits still read as boolean")
}
