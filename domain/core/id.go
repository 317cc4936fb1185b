package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	// Falls back to v4 if the v7 clock read fails
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// DatasetVersionID identifies one uploaded file version in the dataset store.
// The engine treats it as opaque.
type DatasetVersionID ID

func (id DatasetVersionID) String() string { return ID(id).String() }

// NewDatasetVersionID creates a fresh version identifier
func NewDatasetVersionID() DatasetVersionID {
	return DatasetVersionID(NewID())
}

// ParseDatasetVersionID parses a string into DatasetVersionID
func ParseDatasetVersionID(s string) (DatasetVersionID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("dataset version ID cannot be empty")
	}
	return DatasetVersionID(strings.TrimSpace(s)), nil
}
