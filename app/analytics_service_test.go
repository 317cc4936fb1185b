package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"goinsight/adapters/excel"
	"goinsight/adapters/store"
	"goinsight/domain/analytics"
	"goinsight/domain/core"
	"goinsight/domain/dataset"
	"goinsight/internal/errors"
)

const salesCSV = `order_date,category,revenue,quantity
2024-01-05,Books,100,1
2024-01-20,Toys,50,2
2024-02-02,Books,30,1
2024-02-15,Games,20,4
2024-03-01,Toys,25,1
`

type testEnv struct {
	svc  *AnalyticsService
	repo *store.MemoryStore
	dir  string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	repo := store.NewMemoryStore()
	parser := excel.NewDataReader(dataset.DefaultParseOptions(), zap.NewNop())
	return testEnv{
		svc:  NewAnalyticsService(parser, repo, DefaultSettings(), zap.NewNop()),
		repo: repo,
		dir:  t.TempDir(),
	}
}

func (e testEnv) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func (e testEnv) register(t *testing.T, content string) core.DatasetVersionID {
	t.Helper()
	version, profile, err := e.svc.RegisterDataset(context.Background(), "sales.csv", e.write(t, "sales.csv", content))
	require.NoError(t, err)
	require.NotNil(t, profile)
	return version.ID
}

func TestRegisterDataset(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	version, profile, err := env.svc.RegisterDataset(ctx, "sales.csv", env.write(t, "sales.csv", salesCSV))
	require.NoError(t, err)
	assert.Equal(t, dataset.StatusReady, version.Status)
	assert.Equal(t, 5, profile.RowCount)
	assert.Equal(t, version.ID, profile.DatasetVersionID)

	stored, err := env.repo.GetByID(ctx, version.ID)
	require.NoError(t, err)
	assert.Equal(t, dataset.StatusReady, stored.Status)

	cached, err := env.repo.GetProfile(ctx, version.ID)
	require.NoError(t, err)
	assert.Same(t, profile, cached)
}

func TestRegisterDatasetRecordsFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, _, err := env.svc.RegisterDataset(ctx, "bad.csv", env.write(t, "bad.csv", "a,b\n1,2,3\n"))
	require.Error(t, err)
	assert.Equal(t, errors.CodeMalformedRow, errors.GetCode(err))

	versions, err := env.svc.ListDatasets(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, versions, 1)
	assert.Equal(t, dataset.StatusFailed, versions[0].Status)
	assert.Contains(t, versions[0].ErrorMessage, "line 2")

	_, err = env.svc.Ask(ctx, versions[0].ID, "total revenue")
	assert.Equal(t, errors.CodeValidationError, errors.GetCode(err))
}

func TestProfileIsReadThrough(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	version := &dataset.Version{
		ID:       "v1",
		FileName: "sales.csv",
		FilePath: env.write(t, "sales.csv", salesCSV),
		Status:   dataset.StatusReady,
	}
	require.NoError(t, env.repo.Create(ctx, version))

	first, err := env.svc.Profile(ctx, "v1")
	require.NoError(t, err)
	second, err := env.svc.Profile(ctx, "v1")
	require.NoError(t, err)
	assert.Same(t, first, second)

	_, err = env.svc.Profile(ctx, "missing")
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
}

func TestAskScalar(t *testing.T) {
	env := newTestEnv(t)
	id := env.register(t, salesCSV)

	resp, err := env.svc.Ask(context.Background(), id, "What is the total revenue?")
	require.NoError(t, err)
	assert.Equal(t, analytics.IntentSum, resp.Classification.Intent)
	assert.Equal(t, "revenue", resp.Resolution.Metric.ColumnName)
	assert.Nil(t, resp.Violation)
	require.NotNil(t, resp.Result)
	assert.Equal(t, 225.0, resp.Result.Data.(*analytics.ScalarData).Value)
}

func TestAskGroupBy(t *testing.T) {
	env := newTestEnv(t)
	id := env.register(t, salesCSV)

	resp, err := env.svc.Ask(context.Background(), id, "revenue by category")
	require.NoError(t, err)
	require.NotNil(t, resp.Result)
	table := resp.Result.Data.(*analytics.TableData)
	require.NotEmpty(t, table.Rows)
	assert.Equal(t, "Books", table.Rows[0].Key)
	assert.Equal(t, 130.0, table.Rows[0].Total)
}

func TestAskReturnsGuardViolation(t *testing.T) {
	env := newTestEnv(t)
	id := env.register(t, salesCSV)

	resp, err := env.svc.Ask(context.Background(), id, "What is the average category?")
	require.NoError(t, err)
	require.NotNil(t, resp.Violation)
	assert.Nil(t, resp.Result)
	assert.False(t, resp.Violation.IsValid)
	assert.Equal(t, analytics.OpAverage, resp.Violation.AttemptedOperation)
	assert.Equal(t, id, resp.Violation.DatasetVersionID)
	assert.NotEmpty(t, resp.Message)
}

func TestAskUnsupported(t *testing.T) {
	env := newTestEnv(t)
	id := env.register(t, salesCSV)

	resp, err := env.svc.Ask(context.Background(), id, "Tell me a joke")
	require.NoError(t, err)
	assert.Equal(t, analytics.IntentUnsupported, resp.Classification.Intent)
	assert.Nil(t, resp.Result)
	assert.Nil(t, resp.Resolution)
	assert.NotEmpty(t, resp.Message)
}

func TestAskResolutionError(t *testing.T) {
	env := newTestEnv(t)
	id := env.register(t, "name,city\nann,paris\nbob,rome\n")

	_, err := env.svc.Ask(context.Background(), id, "What is the total?")
	assert.Equal(t, errors.CodeNoNumericColumns, errors.GetCode(err))
}

func TestQualityAndOverview(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.register(t, salesCSV)

	report, err := env.svc.Quality(ctx, id)
	require.NoError(t, err)
	warning, ok := report.Warning(analytics.WarnLowRowCount)
	require.True(t, ok)
	assert.Equal(t, analytics.SeverityHigh, warning.Severity)

	overview, err := env.svc.Overview(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, overview.Quality)
	require.NotNil(t, overview.Baseline)
	assert.Equal(t, id, overview.Baseline.DatasetVersionID)
	assert.Equal(t, report.Warnings, overview.Quality.Warnings)
}

func TestDrillDownUsesStoredPath(t *testing.T) {
	env := newTestEnv(t)
	var b strings.Builder
	b.WriteString("spend,churned\n")
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&b, "%d,%t\n", i*10, i%4 == 0)
	}
	id := env.register(t, b.String())

	result, err := env.svc.DrillDown(context.Background(), id, analytics.DrillDownRequest{
		FilePath:      "/elsewhere.csv",
		MetricColumn:  "spend",
		OutcomeColumn: "churned",
	})
	require.NoError(t, err)
	require.Len(t, result.Groups, 2)
	assert.Equal(t, 5, result.Groups[0].Stats.Count)
	assert.Equal(t, 15, result.Groups[1].Stats.Count)
}

func TestDeleteDataset(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id := env.register(t, salesCSV)

	require.NoError(t, env.svc.DeleteDataset(ctx, id))
	_, err := env.svc.Baseline(ctx, id)
	assert.Equal(t, errors.CodeNotFound, errors.GetCode(err))
}

func TestAskSumsZeroOneQuantity(t *testing.T) {
	env := newTestEnv(t)
	id := env.register(t, "product,quantity\npen,1\nink,0\npad,1\ncap,1\n")

	resp, err := env.svc.Ask(context.Background(), id, "What is the total quantity?")
	require.NoError(t, err)
	assert.Nil(t, resp.Violation)
	require.NotNil(t, resp.Result)
	assert.Equal(t, 3.0, resp.Result.Data.(*analytics.ScalarData).Value)
}

func TestAskPicksUniqueValuedRevenue(t *testing.T) {
	var b strings.Builder
	b.WriteString("revenue,units\n")
	for i := 0; i < 150; i++ {
		fmt.Fprintf(&b, "%d.%02d,%d\n", 100+i, i%100, i%5+1)
	}
	env := newTestEnv(t)
	id := env.register(t, b.String())

	for _, q := range []string{"What are the total sales?", "what is the total amount", "What is the mean?"} {
		resp, err := env.svc.Ask(context.Background(), id, q)
		require.NoError(t, err, q)
		require.NotNil(t, resp.Resolution, q)
		assert.Equal(t, "revenue", resp.Resolution.Metric.ColumnName, q)
	}
}
