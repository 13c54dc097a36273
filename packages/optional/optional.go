// Package optional contains a value that may be absent.
package optional

import (
	"bytes"
	"encoding/json"
	"reflect"
)

// Value is either Some(value) or None. The zero value is None.
type Value[T any] struct {
	indirect *T
}

// None returns an empty Value.
func None[T any]() Value[T] {
	return Value[T]{}
}

// Some wraps value. Wrapping a nil pointer yields None.
func Some[T any](value T) Value[T] {
	v := Value[T]{}
	if !isNilPointer(any(value)) {
		v.indirect = &value
	}
	return v
}

func isNilPointer(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

// IsNone returns whether the value is absent.
func (v Value[T]) IsNone() bool {
	return v.indirect == nil
}

// IsSome returns whether the value is present.
func (v Value[T]) IsSome() bool {
	return v.indirect != nil
}

// Unwrap returns the underlying value and panics if it is absent.
func (v Value[T]) Unwrap() T {
	if v.indirect == nil {
		panic("optional: Unwrap called on None")
	}
	return *v.indirect
}

// UnwrapOr returns the underlying value or fallback when absent.
func (v Value[T]) UnwrapOr(fallback T) T {
	if v.indirect == nil {
		return fallback
	}
	return *v.indirect
}

// Get returns the underlying value and whether it was present.
func (v Value[T]) Get() (T, bool) {
	if v.indirect == nil {
		var zero T
		return zero, false
	}
	return *v.indirect, true
}

// MarshalJSON encodes None as null.
func (v Value[T]) MarshalJSON() ([]byte, error) {
	if v.indirect == nil {
		return []byte("null"), nil
	}
	return json.Marshal(*v.indirect)
}

// UnmarshalJSON decodes null as None.
func (v *Value[T]) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		v.indirect = nil
		return nil
	}
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	v.indirect = &value
	return nil
}
