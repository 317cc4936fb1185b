package api

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"goinsight/adapters/excel"
	"goinsight/adapters/store"
	"goinsight/app"
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

func init() {
	gin.SetMode(gin.TestMode)
}

type server struct {
	router *gin.Engine
	dir    string
}

func newServer(t *testing.T, allowLocal bool) server {
	t.Helper()
	dir := t.TempDir()
	parser := excel.NewDataReader(dataset.DefaultParseOptions(), zap.NewNop())
	svc := app.NewAnalyticsService(parser, store.NewMemoryStore(), app.DefaultSettings(), zap.NewNop())

	router := gin.New()
	NewHandler(svc, Options{
		UploadDir:       filepath.Join(dir, "uploads"),
		AllowLocalPaths: allowLocal,
	}, zap.NewNop()).RegisterRoutes(router)
	return server{router: router, dir: dir}
}

func (s server) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s server) upload(t *testing.T, name, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("dataset", name)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/datasets", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s server) register(t *testing.T, content string) string {
	t.Helper()
	rec := s.upload(t, "sales.csv", content)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return gjson.Get(rec.Body.String(), "version.id").String()
}

func TestUploadDataset(t *testing.T) {
	s := newServer(t, false)

	rec := s.upload(t, "sales.csv", salesCSV)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := rec.Body.String()
	assert.Equal(t, "ready", gjson.Get(body, "version.status").String())
	assert.Equal(t, "sales.csv", gjson.Get(body, "version.file_name").String())
	assert.Equal(t, int64(5), gjson.Get(body, "profile.row_count").Int())
	assert.Equal(t, "number", gjson.Get(body, `profile.columns.#(name=="revenue").semantic_type`).String())

	entries, err := os.ReadDir(filepath.Join(s.dir, "uploads"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestUploadRejectsBadInput(t *testing.T) {
	s := newServer(t, false)

	rec := s.upload(t, "notes.pdf", "hello")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errors.CodeUnsupportedFormat, gjson.Get(rec.Body.String(), "code").String())

	rec = s.upload(t, "bad.csv", "a,b\n1,2,3\n")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, errors.CodeMalformedRow, gjson.Get(rec.Body.String(), "code").String())

	rec = s.do(t, http.MethodPost, "/api/datasets", `{"file_path":"/etc/hosts"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegisterLocalPath(t *testing.T) {
	s := newServer(t, true)
	path := filepath.Join(s.dir, "sales.csv")
	require.NoError(t, os.WriteFile(path, []byte(salesCSV), 0o644))

	rec := s.do(t, http.MethodPost, "/api/datasets", fmt.Sprintf(`{"file_path":%q}`, path))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "sales.csv", gjson.Get(rec.Body.String(), "version.file_name").String())

	rec = s.do(t, http.MethodPost, "/api/datasets", fmt.Sprintf(`{"file_path":%q}`, filepath.Join(s.dir, "missing.csv")))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, errors.CodeFileNotFound, gjson.Get(rec.Body.String(), "code").String())
}

func TestListDatasets(t *testing.T) {
	s := newServer(t, false)
	s.register(t, salesCSV)
	s.register(t, salesCSV)

	rec := s.do(t, http.MethodGet, "/api/datasets?limit=1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(1), gjson.Get(rec.Body.String(), "datasets.#").Int())

	rec = s.do(t, http.MethodGet, "/api/datasets", "")
	assert.Equal(t, int64(2), gjson.Get(rec.Body.String(), "datasets.#").Int())

	for _, query := range []string{"limit=0", "limit=abc", "offset=-1"} {
		rec = s.do(t, http.MethodGet, "/api/datasets?"+query, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, query)
	}
}

func TestAsk(t *testing.T) {
	s := newServer(t, false)
	id := s.register(t, salesCSV)

	rec := s.do(t, http.MethodPost, "/api/datasets/"+id+"/ask", `{"question":"What is the total revenue?"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := rec.Body.String()
	assert.Equal(t, "aggregate_sum", gjson.Get(body, "classification.intent").String())
	assert.Equal(t, "scalar", gjson.Get(body, "result.type").String())
	assert.Equal(t, 225.0, gjson.Get(body, "result.data.value").Float())

	rec = s.do(t, http.MethodPost, "/api/datasets/"+id+"/ask", `{"question":"revenue by category"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Books", gjson.Get(rec.Body.String(), "result.data.rows.0.key").String())

	rec = s.do(t, http.MethodPost, "/api/datasets/"+id+"/ask", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAskGuardViolationIsNotAnError(t *testing.T) {
	s := newServer(t, false)
	id := s.register(t, salesCSV)

	rec := s.do(t, http.MethodPost, "/api/datasets/"+id+"/ask", `{"question":"What is the average category?"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, gjson.Get(body, "violation").Exists())
	assert.False(t, gjson.Get(body, "violation.is_valid").Bool())
	assert.False(t, gjson.Get(body, "result").Exists())
}

func TestAskResolutionErrorStatus(t *testing.T) {
	s := newServer(t, false)
	id := s.register(t, "name,city\nann,paris\nbob,rome\n")

	rec := s.do(t, http.MethodPost, "/api/datasets/"+id+"/ask", `{"question":"What is the total?"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, errors.CodeNoNumericColumns, gjson.Get(rec.Body.String(), "code").String())
}

func TestReports(t *testing.T) {
	s := newServer(t, false)
	id := s.register(t, salesCSV)

	rec := s.do(t, http.MethodGet, "/api/datasets/"+id+"/profile", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(4), gjson.Get(rec.Body.String(), "column_count").Int())

	rec = s.do(t, http.MethodGet, "/api/datasets/"+id+"/quality", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "high", gjson.Get(rec.Body.String(), `warnings.#(code=="LOW_ROW_COUNT").severity`).String())

	rec = s.do(t, http.MethodGet, "/api/datasets/"+id+"/baseline", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, gjson.Get(rec.Body.String(), `metrics.#(column=="revenue")`).Exists())

	rec = s.do(t, http.MethodGet, "/api/datasets/"+id+"/overview", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, gjson.Get(rec.Body.String(), "quality.checks_run").IsArray())
	assert.Equal(t, id, gjson.Get(rec.Body.String(), "baseline.dataset_version_id").String())
}

func TestDrillDown(t *testing.T) {
	s := newServer(t, false)
	var b strings.Builder
	b.WriteString("spend,churned\n")
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&b, "%d,%t\n", i*10, i%4 == 0)
	}
	id := s.register(t, b.String())

	rec := s.do(t, http.MethodPost, "/api/datasets/"+id+"/drilldown", `{"metric":"spend","outcome":"churned"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, int64(2), gjson.Get(rec.Body.String(), "groups.#").Int())

	rec = s.do(t, http.MethodPost, "/api/datasets/"+id+"/drilldown", `{"outcome":"churned"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/datasets/"+id+"/drilldown", `{"metric":"churned"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, errors.CodeValidationError, gjson.Get(rec.Body.String(), "code").String())
}

func TestUnknownAndDeletedVersions(t *testing.T) {
	s := newServer(t, false)
	id := s.register(t, salesCSV)

	rec := s.do(t, http.MethodGet, "/api/datasets/nope/profile", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, errors.CodeNotFound, gjson.Get(rec.Body.String(), "code").String())

	rec = s.do(t, http.MethodDelete, "/api/datasets/"+id, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/datasets/"+id+"/baseline", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := map[string]int{
		errors.CodeNotFound:           http.StatusNotFound,
		errors.CodeFileNotFound:       http.StatusNotFound,
		errors.CodeInvalidInput:       http.StatusBadRequest,
		errors.CodeValidationError:    http.StatusBadRequest,
		errors.CodeUnsupportedFormat:  http.StatusBadRequest,
		errors.CodeEmptyFile:          http.StatusUnprocessableEntity,
		errors.CodeEmptyDataset:       http.StatusUnprocessableEntity,
		errors.CodeDimensionNotFound:  http.StatusUnprocessableEntity,
		errors.CodeTimeColumnNotFound: http.StatusUnprocessableEntity,
		errors.CodeDatabaseError:      http.StatusInternalServerError,
		errors.CodeExecutionError:     http.StatusInternalServerError,
	}
	for code, want := range tests {
		assert.Equal(t, want, StatusFor(errors.New(code, "x")), code)
	}
	assert.Equal(t, http.StatusInternalServerError, StatusFor(fmt.Errorf("plain")))
}
