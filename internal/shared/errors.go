package shared

import "errors"

// ErrImmutable indicates an attempt to edit a submitted document.
var ErrImmutable = errors.New("document is immutable after submission")
