// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package http1

import (
	"bytes"
	"strconv"
	"strings"
)

// DefaultMaxBufferBytes bounds how many bytes a [Parser] retains by default.
const DefaultMaxBufferBytes = 1 << 20

// ParserOption configures a [Parser].
type ParserOption func(*Parser)

// StrictCRLF makes the parser reject lines terminated by a bare LF.
func StrictCRLF(strict bool) ParserOption {
	return func(p *Parser) {
		p.strict = strict
	}
}

// MaxBufferBytes caps the bytes a [Parser] will retain. A value <= 0
// removes the limit.
func MaxBufferBytes(n int) ParserOption {
	return func(p *Parser) {
		p.maxBuf = n
	}
}

// Parser incrementally parses pipelined HTTP/1.x requests from a byte
// stream which may be split at any boundary.
//
// Bytes are appended with Write and requests are pulled with Next.
// The receive buffer only grows at its tail and is only trimmed at its
// head once a request completes, so any bytes belonging to the next
// request are retained.
type Parser struct {
	buf []byte
	pos int

	state         State
	req           Request
	contentLength int
	err           error

	strict bool
	maxBuf int
}

// NewParser returns a [Parser] waiting for a request line.
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{
		maxBuf: DefaultMaxBufferBytes,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.resetRequest()
	return p
}

// State returns the current parser state.
func (p *Parser) State() State {
	return p.state
}

// Err returns the error which moved the parser into [StateError].
func (p *Parser) Err() error {
	return p.err
}

// Buffered returns the number of bytes received but not yet parsed.
func (p *Parser) Buffered() int {
	return len(p.buf) - p.pos
}

// Write implements the [io.Writer] interface. It appends b to the
// receive buffer. Nothing is parsed until Next is called.
func (p *Parser) Write(b []byte) (int, error) {
	if p.state == StateError {
		return 0, p.err
	}
	if p.maxBuf > 0 && len(p.buf)+len(b) > p.maxBuf {
		return 0, p.fail(BufferLimitError{Limit: p.maxBuf})
	}
	p.buf = append(p.buf, b...)
	return len(b), nil
}

// Next advances the parser as far as the buffered bytes allow. It
// returns a complete [Request] once one is available and (nil, nil)
// when more bytes are needed. Once Next returns an error the parser
// stays in [StateError] and keeps returning that error.
func (p *Parser) Next() (*Request, error) {
	for {
		switch p.state {
		case StateRequestLine:
			line, ok, err := p.line()
			if err != nil {
				return nil, p.fail(err)
			}
			if !ok {
				return nil, nil
			}
			err = p.parseRequestLine(line)
			if err != nil {
				return nil, p.fail(err)
			}
			p.state = StateHeaders
		case StateHeaders:
			line, ok, err := p.line()
			if err != nil {
				return nil, p.fail(err)
			}
			if !ok {
				return nil, nil
			}
			if len(line) > 0 {
				err = p.parseHeader(line)
				if err != nil {
					return nil, p.fail(err)
				}
				continue
			}
			n, err := p.parseContentLength()
			if err != nil {
				return nil, p.fail(err)
			}
			p.contentLength = n
			p.state = StateDone
			if n > 0 {
				p.state = StateBody
			}
		case StateBody:
			if len(p.buf)-p.pos < p.contentLength {
				return nil, nil
			}
			p.req.Body = bytes.Clone(p.buf[p.pos : p.pos+p.contentLength])
			p.pos += p.contentLength
			p.state = StateDone
		case StateDone:
			req := p.req
			p.compact()
			p.resetRequest()
			p.state = StateRequestLine
			return &req, nil
		case StateError:
			return nil, p.err
		}
	}
}

func (p *Parser) fail(err error) error {
	p.state = StateError
	p.err = err
	return err
}

func (p *Parser) resetRequest() {
	p.req = Request{
		Query:  make(map[string]string),
		Header: make(map[string]string),
		Body:   []byte{},
	}
	p.contentLength = 0
}

func (p *Parser) compact() {
	n := copy(p.buf, p.buf[p.pos:])
	p.buf = p.buf[:n]
	p.pos = 0
}

// line returns the next complete line without its terminator and
// advances the cursor past it. ok is false if no terminator has
// been received yet.
func (p *Parser) line() (line string, ok bool, err error) {
	i := bytes.IndexByte(p.buf[p.pos:], '\n')
	if i < 0 {
		return "", false, nil
	}
	end := p.pos + i
	next := end + 1
	if end > p.pos && p.buf[end-1] == '\r' {
		end--
	} else if p.strict {
		return "", false, ErrBareLineFeed
	}
	line = string(p.buf[p.pos:end])
	p.pos = next
	return line, true, nil
}

func (p *Parser) parseRequestLine(line string) error {
	tokens := strings.Split(line, " ")
	if len(tokens) != 3 {
		return RequestLineError{Line: line}
	}
	method, uri, version := tokens[0], tokens[1], tokens[2]
	if method != "GET" {
		return MethodError{Method: method}
	}

	p.req.Method = method
	p.req.URI = uri
	p.req.Version = version

	path, rawQuery, _ := strings.Cut(uri, "?")
	p.req.Path = path
	for _, pair := range strings.Split(rawQuery, "&") {
		kv := strings.Split(pair, "=")
		if len(kv) != 2 || kv[0] == "" {
			continue
		}
		p.req.Query[kv[0]] = kv[1]
	}
	return nil
}

func (p *Parser) parseHeader(line string) error {
	name, value, found := strings.Cut(line, ": ")
	if !found {
		return HeaderLineError{Line: line}
	}
	p.req.Header[name] = value
	return nil
}

func (p *Parser) parseContentLength() (int, error) {
	var v string
	ok := false
	for name, value := range p.req.Header {
		if !strings.EqualFold(name, "Content-Length") {
			continue
		}
		if ok && value != v {
			return 0, ContentLengthError{Value: value, Cause: ErrConflictingContentLength}
		}
		v, ok = value, true
	}
	if !ok {
		return 0, nil
	}

	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, ContentLengthError{Value: v, Cause: err}
	}
	if n < 0 {
		return 0, ContentLengthError{Value: v}
	}
	return n, nil
}
