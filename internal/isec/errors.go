// Package isec stages variant files and orchestrates the external
// toolkit's set operation between them, turning its output files into
// structured comparison results.
package isec

import (
	"errors"
	"fmt"
)

// ErrAborted is returned when the decision policy declines an action
// the pipeline cannot proceed without.
var ErrAborted = errors.New("aborted by user")

// FileFormatError reports a path that is not in a supported variant
// file format, or not the kind of filesystem object a step expects.
type FileFormatError struct {
	Path string
}

func (e *FileFormatError) Error() string {
	return fmt.Sprintf("file is unknown or unsupported format: %s", e.Path)
}

// IntersectError wraps any failure surfaced by the external toolkit,
// decoupling callers from its details.
type IntersectError struct {
	Op  string // toolkit operation that failed
	Err error
}

func (e *IntersectError) Error() string {
	return fmt.Sprintf("intersection operation failed during %s: %v", e.Op, e.Err)
}

func (e *IntersectError) Unwrap() error {
	return e.Err
}
