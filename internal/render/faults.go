package render

import (
	"errors"
	"fmt"
)

// ErrUnsupportedType marks a source extension no renderer family covers.
// Non-retriable: the file will not become convertible on a second attempt.
var ErrUnsupportedType = errors.New("unsupported file type")

// Fault is a retriable rendering failure (renderer crash, malformed input
// the renderer choked on, transient I/O).
type Fault struct {
	Family string
	Err    error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s render failed: %v", f.Family, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// NewFault wraps err as a retriable fault attributed to a renderer family.
func NewFault(family string, err error) error {
	if err == nil {
		return nil
	}
	return &Fault{Family: family, Err: err}
}

// IsRetriable reports whether err is a rendering fault eligible for
// automatic re-attempt. Unsupported types and unknown errors are not.
func IsRetriable(err error) bool {
	var fault *Fault
	return errors.As(err, &fault)
}
