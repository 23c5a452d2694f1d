package helper

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewError(t *testing.T) {
	t.Run("Wraps action and error", func(t *testing.T) {
		base := fmt.Errorf("connection refused")
		err := NewError("connecting to database", base)

		assert.Error(t, err, "Expected NewError to return an error")
		assert.Contains(t, err.Error(), "connecting to database", "Expected error to contain the action")
		assert.Contains(t, err.Error(), "connection refused", "Expected error to contain the cause")
	})

	t.Run("Preserves errors.Is matching", func(t *testing.T) {
		sentinel := errors.New("sentinel")
		err := NewError("doing something", sentinel)

		assert.True(t, errors.Is(err, sentinel), "Expected wrapped error to match with errors.Is")
	})
}
