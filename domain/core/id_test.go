package core

import (
	"testing"
)

// TestNewIDUniqueness tests that NewID generates unique identifiers
func TestNewIDUniqueness(t *testing.T) {
	const numIDs = 10000

	ids := make(map[ID]bool, numIDs)
	for i := 0; i < numIDs; i++ {
		id := NewID()
		if id == "" {
			t.Errorf("Generated empty ID at iteration %d", i)
		}
		if ids[id] {
			t.Errorf("Generated duplicate ID: %s", id)
		}
		ids[id] = true
	}

	if len(ids) != numIDs {
		t.Errorf("Expected %d unique IDs, got %d", numIDs, len(ids))
	}
}

// TestNewDatasetVersionID tests that version IDs are fresh and parse back
func TestNewDatasetVersionID(t *testing.T) {
	a, b := NewDatasetVersionID(), NewDatasetVersionID()
	if a == b {
		t.Errorf("Expected distinct version IDs, got %s twice", a)
	}
	parsed, err := ParseDatasetVersionID(a.String())
	if err != nil || parsed != a {
		t.Errorf("Expected %s to parse back, got %s (%v)", a, parsed, err)
	}
}

// TestParseDatasetVersionID tests dataset version ID parsing
func TestParseDatasetVersionID(t *testing.T) {
	tests := []struct {
		input    string
		expected DatasetVersionID
		hasError bool
	}{
		{"v-123", DatasetVersionID("v-123"), false},
		{"  v-9 ", DatasetVersionID("v-9"), false},
		{"", "", true},
		{"   ", "", true},
	}

	for _, test := range tests {
		result, err := ParseDatasetVersionID(test.input)
		if test.hasError && err == nil {
			t.Errorf("Expected error for input '%s', but got none", test.input)
		}
		if !test.hasError && err != nil {
			t.Errorf("Unexpected error for input '%s': %v", test.input, err)
		}
		if result != test.expected {
			t.Errorf("Expected %s, got %s", test.expected, result)
		}
	}
}
