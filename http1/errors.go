// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package http1

import (
	"errors"
	"fmt"
)

// ErrBareLineFeed is returned in strict mode when a line ends in LF
// without a preceding CR.
var ErrBareLineFeed = errors.New("http1: line terminated by bare LF")

// ErrConflictingContentLength is the cause of a [ContentLengthError]
// when differently cased Content-Length headers disagree.
var ErrConflictingContentLength = errors.New("http1: conflicting content length headers")

// RequestLineError occurs when the request line is not exactly three
// tokens separated by single spaces.
type RequestLineError struct {
	Line string
}

// Error implements the [builtin.error] interface.
func (e RequestLineError) Error() string {
	return fmt.Sprintf("http1: malformed request line: %q", e.Line)
}

// MethodError occurs for any method other than GET.
type MethodError struct {
	Method string
}

// Error implements the [builtin.error] interface.
func (e MethodError) Error() string {
	return fmt.Sprintf("http1: unsupported method: %s", e.Method)
}

// HeaderLineError occurs when a header line does not contain ": ".
type HeaderLineError struct {
	Line string
}

// Error implements the [builtin.error] interface.
func (e HeaderLineError) Error() string {
	return fmt.Sprintf("http1: malformed header line: %q", e.Line)
}

// ContentLengthError occurs when Content-Length is not a non-negative integer.
type ContentLengthError struct {
	Value string
	Cause error
}

// Error implements the [builtin.error] interface.
func (e ContentLengthError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("http1: invalid content length: %q", e.Value)
	}
	return fmt.Sprintf("http1: invalid content length: %q: %s", e.Value, e.Cause)
}

// Unwrap implements the implicit interface used by [errors.Is] and [errors.As].
func (e ContentLengthError) Unwrap() error {
	return e.Cause
}

// BufferLimitError occurs when buffered, unparsed input would grow past
// the configured limit.
type BufferLimitError struct {
	Limit int
}

// Error implements the [builtin.error] interface.
func (e BufferLimitError) Error() string {
	return fmt.Sprintf("http1: request exceeds buffer limit of %d bytes", e.Limit)
}
