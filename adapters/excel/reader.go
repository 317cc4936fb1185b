package excel

import (
	"encoding/csv"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"goinsight/domain/dataset"
	"goinsight/internal/errors"
)

// fileType is the reader family selected by extension
type fileType string

const (
	fileTypeDelimited   fileType = "delimited"
	fileTypeSpreadsheet fileType = "spreadsheet"
)

var supportedExtensions = map[string]fileType{
	".csv":  fileTypeDelimited,
	".tsv":  fileTypeDelimited,
	".txt":  fileTypeDelimited,
	".xlsx": fileTypeSpreadsheet,
	".xlsm": fileTypeSpreadsheet,
}

// DataReader loads CSV and Excel files into ParsedData. All cells are kept
// as trimmed text; typing happens during profiling.
type DataReader struct {
	defaults dataset.ParseOptions
	logger   *zap.Logger
}

// NewDataReader creates a reader; defaults are used by Parse
func NewDataReader(defaults dataset.ParseOptions, logger *zap.Logger) *DataReader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DataReader{defaults: defaults, logger: logger.Named("parser")}
}

// Parse reads path with the reader's default options
func (r *DataReader) Parse(path string) (*dataset.ParsedData, error) {
	return r.ParseFile(path, r.defaults)
}

// ParseFile reads a delimited or spreadsheet file, dispatching on extension
func (r *DataReader) ParseFile(path string, opts dataset.ParseOptions) (*dataset.ParsedData, error) {
	start := time.Now()

	info, err := os.Stat(path)
	if err != nil {
		return nil, mapOpenError(path, err)
	}
	if info.IsDir() {
		return nil, errors.Newf(errors.CodeUnsupportedFormat, "%s is a directory", path)
	}

	ext := strings.ToLower(filepath.Ext(path))
	kind, ok := supportedExtensions[ext]
	if !ok {
		return nil, errors.Newf(errors.CodeUnsupportedFormat, "unsupported file extension %q: %s", ext, path)
	}
	if info.Size() == 0 {
		return nil, errors.Newf(errors.CodeEmptyFile, "file is empty: %s", path)
	}

	var records [][]string
	var lines []int
	switch kind {
	case fileTypeDelimited:
		records, lines, err = r.readDelimited(path, delimiterFor(ext, opts.Delimiter))
	case fileTypeSpreadsheet:
		records, lines, err = r.readSpreadsheet(path)
	}
	if err != nil {
		return nil, err
	}

	parsed, err := buildParsedData(records, lines, opts.HasHeaders, kind == fileTypeSpreadsheet)
	if err != nil {
		return nil, err
	}
	parsed.SourcePath = path

	r.logger.Info("file parsed",
		zap.String("path", path),
		zap.String("type", string(kind)),
		zap.Int("rows", parsed.RowCount),
		zap.Int("columns", parsed.ColumnCount),
		zap.Duration("elapsed", time.Since(start)))

	return parsed, nil
}

func delimiterFor(ext string, configured rune) rune {
	if ext == ".tsv" && (configured == 0 || configured == ',') {
		return '\t'
	}
	if configured == 0 {
		return ','
	}
	return configured
}

func mapOpenError(path string, err error) error {
	switch {
	case os.IsNotExist(err):
		return errors.WrapWithCode(err, errors.CodeFileNotFound, "file not found: %s", path)
	case os.IsPermission(err):
		return errors.WrapWithCode(err, errors.CodePermissionDenied, "permission denied: %s", path)
	}
	return errors.Wrapf(err, "failed to open %s", path)
}

// readDelimited returns every record with its 1-based source line
func (r *DataReader) readDelimited(path string, delimiter rune) ([][]string, []int, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, mapOpenError(path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var records [][]string
	var lines []int
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if stderrors.As(err, &parseErr) {
				return nil, nil, errors.WrapWithCode(parseErr.Err, errors.CodeMalformedRow,
					"malformed row at line %d in %s", parseErr.StartLine, path)
			}
			return nil, nil, errors.Wrapf(err, "failed to read %s", path)
		}
		line, _ := reader.FieldPos(0)
		records = append(records, record)
		lines = append(lines, line)
	}

	r.logger.Debug("delimited file read", zap.String("path", path), zap.Int("records", len(records)))
	return records, lines, nil
}

// readSpreadsheet reads the first sheet of a workbook
func (r *DataReader) readSpreadsheet(path string) ([][]string, []int, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		if os.IsPermission(err) {
			return nil, nil, mapOpenError(path, err)
		}
		return nil, nil, errors.WrapWithCode(err, errors.CodeUnsupportedFormat, "failed to open workbook %s", path)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, errors.Newf(errors.CodeEmptyFile, "workbook has no sheets: %s", path)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to read sheet %q", sheets[0])
	}

	var records [][]string
	var lines []int
	for i, row := range rows {
		if isBlank(row) {
			continue
		}
		records = append(records, row)
		lines = append(lines, i+1)
	}

	r.logger.Debug("spreadsheet read",
		zap.String("path", path),
		zap.String("sheet", sheets[0]),
		zap.Int("records", len(records)))
	return records, lines, nil
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// buildParsedData enforces header and arity rules. Spreadsheet rows may be
// shorter than the header (trailing blanks are not stored) and are padded
// with nulls; delimited rows must match exactly.
func buildParsedData(records [][]string, lines []int, hasHeaders, padShort bool) (*dataset.ParsedData, error) {
	if len(records) == 0 {
		return nil, errors.New(errors.CodeEmptyFile, "file contains no rows")
	}

	var headers []string
	data := records
	dataLines := lines
	if hasHeaders {
		if isBlank(records[0]) {
			return nil, errors.New(errors.CodeEmptyFile, "header row is empty")
		}
		headers = normalizeHeaders(records[0])
		data = records[1:]
		dataLines = lines[1:]
	} else {
		headers = syntheticHeaders(len(records[0]))
	}

	rows := make([]dataset.Row, 0, len(data))
	for i, record := range data {
		if len(record) > len(headers) || (!padShort && len(record) != len(headers)) {
			return nil, errors.Newf(errors.CodeMalformedRow,
				"malformed row at line %d: expected %d columns, found %d", dataLines[i], len(headers), len(record))
		}
		row := make(dataset.Row, len(headers))
		for j, header := range headers {
			if j < len(record) {
				row[header] = dataset.NewTextValue(strings.TrimSpace(record[j]))
			} else {
				row[header] = dataset.NullValue()
			}
		}
		rows = append(rows, row)
	}

	return &dataset.ParsedData{
		Headers:     headers,
		Rows:        rows,
		RowCount:    len(rows),
		ColumnCount: len(headers),
	}, nil
}

// normalizeHeaders trims names, fills blanks and suffixes duplicates
func normalizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	taken := make(map[string]bool, len(raw))
	next := make(map[string]int, len(raw))
	for i, h := range raw {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		// a suffixed name may already be a real header; keep counting until free
		for base := name; taken[name]; {
			if next[base] == 0 {
				next[base] = 1
			}
			next[base]++
			name = fmt.Sprintf("%s_%d", base, next[base])
		}
		taken[name] = true
		headers[i] = name
	}
	return headers
}

func syntheticHeaders(n int) []string {
	headers := make([]string, n)
	for i := range headers {
		headers[i] = fmt.Sprintf("column_%d", i+1)
	}
	return headers
}
