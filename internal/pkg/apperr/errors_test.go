package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMatchesKind(t *testing.T) {
	err := InvalidState("shift", "queue_entry", 7, "3", "1")

	assert.True(t, errors.Is(err, ErrInvalidState))
	assert.False(t, errors.Is(err, ErrNotQueued))
	assert.Contains(t, err.Error(), "shift")
	assert.Contains(t, err.Error(), "queue_entry 7")
}

func TestWrappedErrorKeepsKind(t *testing.T) {
	base := New("withdraw", ErrInsufficientFunds, "wallet", 3, "")
	wrapped := fmt.Errorf("request withdrawal: %w", base)

	assert.True(t, errors.Is(wrapped, ErrInsufficientFunds))
	assert.Equal(t, ErrInsufficientFunds, Kind(wrapped))
}

func TestIsRetryable(t *testing.T) {
	cause := errors.New("lock wait timeout exceeded")
	err := Wrap("enqueue", ErrTransient, cause)

	assert.True(t, IsRetryable(err))
	assert.True(t, errors.Is(err, cause))
	assert.False(t, IsRetryable(ErrDuplicate))
	assert.Nil(t, Kind(errors.New("boom")))
}
