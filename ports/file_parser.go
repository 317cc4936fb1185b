package ports

import "goinsight/domain/dataset"

// FileParser loads a delimited or spreadsheet file into ParsedData
type FileParser interface {
	Parse(path string) (*dataset.ParsedData, error)
}
