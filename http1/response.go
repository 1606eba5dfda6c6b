// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package http1

import (
	"io"
	"net/http"
	"slices"
	"strconv"

	"github.com/valyala/bytebufferpool"
)

// NotFoundBody is the body of the canned 404 response.
const NotFoundBody = "<h1>404 Not Found</h1>"

// ResponseWriter builds a response and serializes it to an underlying
// [io.Writer]. After Send the writer is reset so it can be reused for
// the next pipelined request on the same connection.
type ResponseWriter struct {
	w       io.Writer
	version string
	status  int
	header  map[string]string
	body    bytebufferpool.ByteBuffer

	sent       bool
	sentStatus int
	err        error
}

// NewResponseWriter returns a [ResponseWriter] which writes to w.
func NewResponseWriter(w io.Writer) *ResponseWriter {
	return &ResponseWriter{
		w:       w,
		version: "HTTP/1.1",
		status:  http.StatusOK,
		header:  make(map[string]string),
	}
}

// SetStatus sets the response status code.
func (rw *ResponseWriter) SetStatus(code int) {
	rw.status = code
}

// Status returns the response status code.
func (rw *ResponseWriter) Status() int {
	return rw.status
}

// SetHeader sets a header, replacing any previous value.
func (rw *ResponseWriter) SetHeader(name, value string) {
	rw.header[name] = value
}

// Header returns the value of a header.
func (rw *ResponseWriter) Header(name string) (string, bool) {
	v, ok := rw.header[name]
	return v, ok
}

// Write implements the [io.Writer] interface. It appends to the
// buffered body and updates Content-Length to match.
func (rw *ResponseWriter) Write(b []byte) (int, error) {
	n, _ := rw.body.Write(b)
	rw.SetContentLength(rw.body.Len())
	return n, nil
}

// WriteString implements the [io.StringWriter] interface.
func (rw *ResponseWriter) WriteString(s string) (int, error) {
	n, _ := rw.body.WriteString(s)
	rw.SetContentLength(rw.body.Len())
	return n, nil
}

// SetContentLength overrides the announced Content-Length. Handlers
// which stream with SendRaw announce the full length up front.
func (rw *ResponseWriter) SetContentLength(n int) {
	rw.header["Content-Length"] = strconv.Itoa(n)
}

// Len returns the number of buffered body bytes.
func (rw *ResponseWriter) Len() int {
	return rw.body.Len()
}

// Sent reports whether Send or SendRaw was called since the last Reset.
func (rw *ResponseWriter) Sent() bool {
	return rw.sent
}

// SentStatus returns the status code of the last response written by
// Send, or 0 if nothing was sent since the last Reset.
func (rw *ResponseWriter) SentStatus() int {
	return rw.sentStatus
}

// Err returns the first error from writing to the underlying
// [io.Writer], or the error passed to Abort, since the last Reset.
func (rw *ResponseWriter) Err() error {
	return rw.err
}

// Send writes the status line, headers, a blank line and the buffered
// body. Headers are written sorted by name. A Content-Length header is
// always present. The writer is ready for a new response afterwards,
// even if the write failed.
func (rw *ResponseWriter) Send() error {
	if _, ok := rw.header["Content-Length"]; !ok {
		rw.SetContentLength(rw.body.Len())
	}

	b := bytebufferpool.Get()
	defer bytebufferpool.Put(b)

	b.WriteString(rw.version)
	b.WriteByte(' ')
	b.B = strconv.AppendInt(b.B, int64(rw.status), 10)
	b.WriteByte(' ')
	b.WriteString(reason(rw.status))
	b.WriteString("\r\n")

	names := make([]string, 0, len(rw.header))
	for name := range rw.header {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		b.WriteString(name)
		b.WriteString(": ")
		b.WriteString(rw.header[name])
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
	b.Write(rw.body.B)

	rw.sentStatus = rw.status
	rw.reset()
	rw.sent = true

	return rw.write(b.B)
}

// SendRaw writes b as is. It's meant for streaming the remainder of a
// body whose Content-Length was already sent, so the caller is
// responsible for the byte count matching.
func (rw *ResponseWriter) SendRaw(b []byte) error {
	rw.sent = true
	return rw.write(b)
}

// Abort fails the response with err. Nothing more is written and the
// connection is expected to be closed, since a partially written
// response can not be recovered from.
func (rw *ResponseWriter) Abort(err error) {
	if rw.err == nil {
		rw.err = err
	}
}

func (rw *ResponseWriter) write(b []byte) error {
	if rw.err != nil {
		return rw.err
	}
	_, err := rw.w.Write(b)
	if err != nil && rw.err == nil {
		rw.err = err
	}
	return err
}

// SetNotFound replaces the response with the canned 404 response.
func (rw *ResponseWriter) SetNotFound() *ResponseWriter {
	rw.reset()
	rw.status = http.StatusNotFound
	rw.SetHeader("Content-Type", "text/html")
	rw.WriteString(NotFoundBody)
	return rw
}

// NotFound sends the canned 404 response.
func NotFound(rw *ResponseWriter) error {
	return rw.SetNotFound().Send()
}

// Reset discards any unsent response state.
func (rw *ResponseWriter) Reset() {
	rw.reset()
	rw.sent = false
	rw.sentStatus = 0
	rw.err = nil
}

func (rw *ResponseWriter) reset() {
	rw.status = http.StatusOK
	clear(rw.header)
	rw.body.Reset()
}

func reason(code int) string {
	if s := http.StatusText(code); s != "" {
		return s
	}
	return "Unknown"
}
