package result

import "errors"

// ErrNilError is stored by Err when it is handed a nil error.
var ErrNilError = errors.New("result: Err called with nil error")
