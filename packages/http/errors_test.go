package http

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesSentinelOfSameKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", newError(KindTimeout, "dispatch", errors.New("boom")))

	assert.ErrorIs(t, err, ErrTimeout)
	assert.NotErrorIs(t, err, ErrCancelled)
	assert.Equal(t, KindTimeout, KindOf(err))
	assert.Equal(t, "dispatch: timeout: boom", errors.Unwrap(err).Error())
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"plain", errors.New("x"), KindUnknown},
		{"context canceled", context.Canceled, KindCancelled},
		{"deadline", fmt.Errorf("x: %w", context.DeadlineExceeded), KindTimeout},
		{"categorized", ErrAlreadyConsumed, KindAlreadyConsumed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(newError(KindTimeout, "x", nil)))
	assert.True(t, IsRetryable(newError(KindTransport, "x", nil)))
	assert.False(t, IsRetryable(newError(KindCancelled, "x", nil)))
	assert.False(t, IsRetryable(ErrInvalidArgument))
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "body already consumed", KindAlreadyConsumed.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
