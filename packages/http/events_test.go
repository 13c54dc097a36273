package http

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitter_DeliversInOrder(t *testing.T) {
	e := NewEmitter[int](0)
	var got []string
	_, err := e.On(func(v int) { got = append(got, "a") })
	require.NoError(t, err)
	_, err = e.Once(func(v int) { got = append(got, "b") })
	require.NoError(t, err)

	e.Emit(1)
	e.Emit(2)

	assert.Equal(t, []string{"a", "b", "a"}, got)
	assert.Equal(t, 1, e.Len())
}

func TestEmitter_Dispose(t *testing.T) {
	e := NewEmitter[int](0)
	calls := 0
	dispose, err := e.On(func(int) { calls++ })
	require.NoError(t, err)

	dispose()
	dispose()
	e.Emit(1)

	assert.Equal(t, 0, calls)
	assert.Equal(t, 0, e.Len())
}

func TestEmitter_ListenerCap(t *testing.T) {
	e := NewEmitter[int](2)
	for i := 0; i < 2; i++ {
		_, err := e.On(func(int) {})
		require.NoError(t, err)
	}
	_, err := e.On(func(int) {})
	assert.ErrorIs(t, err, ErrLimitReached)

	_, err = e.On(nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestEmitter_ListenerMaySubscribeDuringEmit(t *testing.T) {
	e := NewEmitter[int](0)
	nested := 0
	_, err := e.Once(func(int) {
		_, _ = e.On(func(int) { nested++ })
	})
	require.NoError(t, err)

	e.Emit(1)
	assert.Equal(t, 0, nested)
	e.Emit(2)
	assert.Equal(t, 1, nested)
}
