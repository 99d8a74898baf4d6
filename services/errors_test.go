package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	busy := transient("load order", errors.New("database is locked"))
	assert.True(t, IsRetryable(busy))
	assert.True(t, IsRetryable(fmt.Errorf("submit: %w", busy)))

	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(&SessionMismatchError{Reason: "stale"}))
	assert.False(t, IsRetryable(invalid("items", "too many")))
	assert.False(t, IsRetryable(&TableClosedError{RestaurantName: "Warung Senja"}))
}
