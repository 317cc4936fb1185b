package errors

import (
	stderrors "errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsInnerCode(t *testing.T) {
	inner := New(CodeMalformedRow, "row 4 has 2 fields, expected 3")
	wrapped := Wrap(inner, "parse sales.csv")

	assert.Equal(t, CodeMalformedRow, GetCode(wrapped))
	assert.Contains(t, wrapped.Error(), "row 4 has 2 fields")
	assert.True(t, stderrors.Is(wrapped, inner))
}

func TestWrapPlainErrorIsInternal(t *testing.T) {
	wrapped := Wrap(fmt.Errorf("boom"), "context")
	assert.Equal(t, CodeInternalError, GetCode(wrapped))
	assert.Nil(t, Wrap(nil, "ignored"))
}

func TestGetCodeThroughFmtWrapping(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeDimensionNotFound, "no dimension"))
	assert.Equal(t, CodeDimensionNotFound, GetCode(err))
	assert.True(t, Is(err, CodeDimensionNotFound))
	assert.False(t, Is(err, CodeTimeColumnNotFound))
	assert.Equal(t, "UNKNOWN", GetCode(fmt.Errorf("plain")))
}

func TestWithCode(t *testing.T) {
	err := WithCode(CodeExecutionError, fmt.Errorf("bad intent"))
	assert.Equal(t, CodeExecutionError, GetCode(err))
	assert.True(t, IsAppError(err))
}

func TestWrapWithCode(t *testing.T) {
	cause := os.ErrNotExist
	err := WrapWithCode(cause, CodeFileNotFound, "file not found: %s", "sales.csv")

	assert.True(t, Is(err, CodeFileNotFound))
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "sales.csv")
	assert.Nil(t, WrapWithCode(nil, CodeFileNotFound, "unused"))
}
