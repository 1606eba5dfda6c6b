// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package http1 implements the HTTP/1.x wire format used by evhttp: an
// incremental request parser and a response writer.
package http1

// Request is a single parsed HTTP request.
type Request struct {
	Method  string
	URI     string
	Path    string
	Query   map[string]string
	Version string

	// Header keys are kept exactly as received. A repeated
	// header keeps its last value.
	Header map[string]string
	Body   []byte
}

// State is the progress of a [Parser] through the current request.
type State int

const (
	StateRequestLine State = iota
	StateHeaders
	StateBody
	StateDone
	StateError
)

// String implements the [fmt.Stringer] interface.
func (s State) String() string {
	switch s {
	case StateRequestLine:
		return "request_line"
	case StateHeaders:
		return "headers"
	case StateBody:
		return "body"
	case StateDone:
		return "done"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}
