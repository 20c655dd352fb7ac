package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("connection refused")
	err := Wrap(CodeDependency, cause, "retailer unreachable")

	require.NotNil(t, err)
	assert.Equal(t, CodeDependency, err.Code())
	assert.True(t, stdErrors.Is(err, cause))
	assert.Contains(t, err.Error(), "DEPENDENCY_ERROR")
}

func TestAsUnwrapsThroughChain(t *testing.T) {
	inner := New(CodeStateConflict, "transition disallowed")
	wrapped := fmt.Errorf("saving order: %w", inner)

	typed := As(wrapped)
	require.NotNil(t, typed)
	assert.Equal(t, CodeStateConflict, typed.Code())
}

func TestAsReturnsNilForPlainErrors(t *testing.T) {
	assert.Nil(t, As(stdErrors.New("plain")))
	assert.Nil(t, As(nil))
}

func TestMetadataForUnknownCodeFallsBackToInternal(t *testing.T) {
	meta := MetadataFor(Code("WHO_KNOWS"))
	assert.Equal(t, http.StatusInternalServerError, meta.HTTPStatus)
}

func TestRetryableClassification(t *testing.T) {
	assert.False(t, Retryable(New(CodePaymentDeclined, "card declined")))
	assert.False(t, Retryable(New(CodeValidation, "bad amount")))
	assert.True(t, Retryable(New(CodeDependency, "timeout")))
	assert.True(t, Retryable(New(CodeConflict, "version mismatch")))
	assert.True(t, Retryable(stdErrors.New("unclassified")))
}

func TestWithDetails(t *testing.T) {
	err := New(CodeValidation, "validation failed").WithDetails(map[string]string{"qty": "must be positive"})
	details, ok := err.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be positive", details["qty"])
}
