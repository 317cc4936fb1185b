package dataset

import (
	"strings"
	"time"

	"goinsight/domain/core"
)

// VersionStatus represents the processing state of an uploaded file version
type VersionStatus string

const (
	StatusProcessing VersionStatus = "processing"
	StatusReady      VersionStatus = "ready"
	StatusFailed     VersionStatus = "failed"
)

// Version is the dataset store's record of one uploaded file
type Version struct {
	ID           core.DatasetVersionID `json:"id" db:"id"`
	FileName     string                `json:"file_name" db:"file_name"`
	FilePath     string                `json:"file_path" db:"file_path"`
	Status       VersionStatus         `json:"status" db:"status"`
	ErrorMessage string                `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time             `json:"created_at" db:"created_at"`
}

// Row maps a header to its cell
type Row map[string]Value

// ParsedData is the uniform in-memory form of a delimited or spreadsheet file.
// It is never mutated after the parser returns it.
type ParsedData struct {
	Headers     []string `json:"headers"`
	Rows        []Row    `json:"rows"`
	RowCount    int      `json:"row_count"`
	ColumnCount int      `json:"column_count"`
	SourcePath  string   `json:"source_path,omitempty"`
}

// Column returns every cell of the named column in row order
func (p *ParsedData) Column(name string) []Value {
	values := make([]Value, 0, len(p.Rows))
	for _, row := range p.Rows {
		values = append(values, row[name])
	}
	return values
}

// ColumnType is the profiler's raw inferred type
type ColumnType string

const (
	TypeString  ColumnType = "string"
	TypeNumber  ColumnType = "number"
	TypeBoolean ColumnType = "boolean"
	TypeDate    ColumnType = "date"
)

// SemanticType is the guard-level classification deciding which
// operations are meaningful on a column
type SemanticType string

const (
	SemanticNumeric     SemanticType = "numeric"
	SemanticDate        SemanticType = "date"
	SemanticCategorical SemanticType = "categorical"
	SemanticBoolean     SemanticType = "boolean"
	SemanticUnknown     SemanticType = "unknown"
)

// ColumnProfile summarises one column
type ColumnProfile struct {
	Name          string       `json:"name"`
	Type          ColumnType   `json:"semantic_type"`
	Semantic      SemanticType `json:"guard_type"`
	NullCount     int          `json:"null_count"`
	NullRatio     float64      `json:"null_ratio"`
	DistinctCount int          `json:"distinct_count"`
	Min           *float64     `json:"min,omitempty"`
	Max           *float64     `json:"max,omitempty"`
	Mean          *float64     `json:"mean,omitempty"`
}

// DatasetProfile is produced once per file version and read-only afterwards
type DatasetProfile struct {
	DatasetVersionID core.DatasetVersionID `json:"dataset_version_id"`
	RowCount         int                   `json:"row_count"`
	ColumnCount      int                   `json:"column_count"`
	Columns          []ColumnProfile       `json:"columns"`
}

// Column looks a column up by exact name, then case-insensitively
func (p *DatasetProfile) Column(name string) (*ColumnProfile, bool) {
	for i := range p.Columns {
		if p.Columns[i].Name == name {
			return &p.Columns[i], true
		}
	}
	for i := range p.Columns {
		if strings.EqualFold(p.Columns[i].Name, name) {
			return &p.Columns[i], true
		}
	}
	return nil, false
}

// ColumnsOfType returns the columns whose inferred type is one of types, in header order
func (p *DatasetProfile) ColumnsOfType(types ...ColumnType) []ColumnProfile {
	var out []ColumnProfile
	for _, col := range p.Columns {
		for _, t := range types {
			if col.Type == t {
				out = append(out, col)
				break
			}
		}
	}
	return out
}

// ParseOptions controls how a delimited or spreadsheet file is read
type ParseOptions struct {
	HasHeaders bool `json:"has_headers" yaml:"has_headers"`
	Delimiter  rune `json:"delimiter" yaml:"delimiter"`
}

// DefaultParseOptions expects a header row and comma-delimited text
func DefaultParseOptions() ParseOptions {
	return ParseOptions{HasHeaders: true, Delimiter: ','}
}
