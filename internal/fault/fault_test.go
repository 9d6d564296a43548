package fault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientErrorUnwrapsSentinel(t *testing.T) {
	err := NewClientError("email already registered", ErrUniqueViolation)
	wrapped := fmt.Errorf("register: %w", err)

	assert.True(t, IsClientError(wrapped))
	assert.False(t, IsInternalError(wrapped))
	assert.ErrorIs(t, wrapped, ErrUniqueViolation)
	assert.Equal(t, "email already registered", Message(wrapped, "internal error"))
}

func TestInternalErrorHidesMessage(t *testing.T) {
	err := NewInternalError("insert submission", errors.New("disk full"))

	assert.True(t, IsInternalError(err))
	assert.Equal(t, "internal error", Message(err, "internal error"))
	assert.Contains(t, err.Error(), "[InternalError] insert submission: disk full")
}
