package errors

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	err := NewInternalError("failed to count events", fmt.Errorf("boom"))
	assert.Equal(t, "INTERNAL: failed to count events: boom", err.Error())

	nf := NewNotFoundError("event 7 not found")
	assert.Equal(t, "NOT_FOUND: event 7 not found", nf.Error())
}

func TestAppError_Unwrap(t *testing.T) {
	err := NewUnavailableError("database unavailable", context.DeadlineExceeded)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, err.Retriable())
}

func TestTypeOf_WrappedChain(t *testing.T) {
	inner := NewUnavailableError("database unavailable", nil)
	wrapped := fmt.Errorf("search events: %w", inner)

	assert.Equal(t, ErrorTypeUnavailable, TypeOf(wrapped))
	assert.True(t, IsUnavailable(wrapped))
	assert.False(t, IsType(wrapped, ErrorTypeInternal))
}

func TestTypeOf_PlainErrorIsInternal(t *testing.T) {
	assert.Equal(t, ErrorTypeInternal, TypeOf(fmt.Errorf("plain")))
	assert.False(t, IsUnavailable(nil))
	assert.False(t, NewValidationError("bad").Retriable())
}

func TestPublicMessage_HidesCause(t *testing.T) {
	err := fmt.Errorf("search: %w", NewInternalError("failed to search events", fmt.Errorf("pq: column \"nme\" does not exist")))
	assert.Equal(t, "failed to search events", PublicMessage(err, "internal server error"))
	assert.Equal(t, "internal server error", PublicMessage(fmt.Errorf("plain"), "internal server error"))
}
