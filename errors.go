// Package tinyfs implements a small POSIX-shaped filesystem backed by a
// single fixed-size, memory-mapped image file.
package tinyfs

import (
	"fmt"
	"syscall"
)

// DriverError wraps a system errno code with an optional descriptive
// message. The core's allocator, directory and filesystem operations return
// it on failure; the bridge hands its Errno back to FUSE.
type DriverError struct {
	Errno   syscall.Errno
	message string
}

func (e *DriverError) Error() string {
	if e.message != "" {
		return e.message
	}
	return e.Errno.Error()
}

// Unwrap lets callers recover the underlying errno with errors.As.
func (e *DriverError) Unwrap() error {
	return e.Errno
}

// New creates a DriverError with a default message derived from errnoCode.
func New(errnoCode syscall.Errno) *DriverError {
	return &DriverError{Errno: errnoCode, message: errnoCode.Error()}
}

// NewWithMessage creates a DriverError from errnoCode with a custom message.
func NewWithMessage(errnoCode syscall.Errno, message string) *DriverError {
	return &DriverError{
		Errno:   errnoCode,
		message: fmt.Sprintf("%s: %s", errnoCode.Error(), message),
	}
}

// Sentinel constructors for the error taxonomy in SPEC_FULL.md §7.
func ErrNotFound() *DriverError  { return New(syscall.ENOENT) }
func ErrNoSpace() *DriverError   { return New(syscall.ENOSPC) }
func ErrExists() *DriverError    { return New(syscall.EEXIST) }
func ErrNotEmpty() *DriverError  { return New(syscall.ENOTEMPTY) }
func ErrNotDir() *DriverError    { return New(syscall.ENOTDIR) }
func ErrIsDir() *DriverError     { return New(syscall.EISDIR) }
func ErrInvalid(msg string) *DriverError {
	return NewWithMessage(syscall.EINVAL, msg)
}
