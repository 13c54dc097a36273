package result

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValue(t *testing.T) {
	ok := Ok(42)
	assert.True(t, ok.IsOk())
	v, err := ok.Unwrap()
	assert.NoError(t, err)
	assert.Equal(t, 42, v)

	boom := errors.New("boom")
	bad := Err[int](boom)
	assert.False(t, bad.IsOk())
	assert.ErrorIs(t, bad.Error(), boom)
	assert.Equal(t, 7, bad.UnwrapOr(7))

	assert.ErrorIs(t, Err[int](nil).Error(), ErrNilError)
	assert.True(t, From("x", nil).IsOk())
	assert.False(t, From("", boom).IsOk())
}
