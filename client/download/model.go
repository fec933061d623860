package download

import (
	"errors"
	"fmt"
)

var (
	ErrSizeMismatch     = errors.New("export size mismatch")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrCancelled        = errors.New("export cancelled")
)

// Error carries the detail of a failed export check.
type Error struct {
	Detail string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%v: %s", e.Err, e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Err
}
