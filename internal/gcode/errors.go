package gcode

import (
	"errors"
	"fmt"
)

// ErrNoData is returned when a file was scanned completely but carried neither
// a print time nor any filament usage.
var ErrNoData = errors.New("no usable print time or filament data found")

// ContainerError reports an unreadable archive or one without a toolpath entry.
type ContainerError struct {
	Reason string
	Err    error
}

func (e *ContainerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("container: %s: %v", e.Reason, e.Err)
	}
	return "container: " + e.Reason
}

func (e *ContainerError) Unwrap() error { return e.Err }

// DecodeError reports bytes that could not be decoded as text.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode toolpath text: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IOError wraps filesystem failures while reading a toolpath file.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
