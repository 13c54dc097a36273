// Package result contains a value that is either a success or an error.
package result

// Value is either Ok(value) or Err(error).
type Value[T any] struct {
	value T
	err   error
}

// Ok wraps a successful value.
func Ok[T any](value T) Value[T] {
	return Value[T]{value: value}
}

// Err wraps a failure. A nil err is replaced by ErrNilError.
func Err[T any](err error) Value[T] {
	if err == nil {
		err = ErrNilError
	}
	return Value[T]{err: err}
}

// From builds a Value from the conventional (value, error) pair.
func From[T any](value T, err error) Value[T] {
	if err != nil {
		return Err[T](err)
	}
	return Ok(value)
}

// IsOk returns whether the value represents a success.
func (v Value[T]) IsOk() bool {
	return v.err == nil
}

// Error returns the failure, or nil on success.
func (v Value[T]) Error() error {
	return v.err
}

// Unwrap returns the (value, error) pair.
func (v Value[T]) Unwrap() (T, error) {
	return v.value, v.err
}

// UnwrapOr returns the value on success and fallback otherwise.
func (v Value[T]) UnwrapOr(fallback T) T {
	if v.err != nil {
		return fallback
	}
	return v.value
}
