// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package static serves files from disk.
package static

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/z5labs/evhttp/http1"
	"github.com/z5labs/evhttp/pkg/otelslog"
	"github.com/z5labs/evhttp/pkg/slogfield"
	"github.com/z5labs/evhttp/router"
)

// DefaultChunkSize is how much of a file is read per write.
const DefaultChunkSize = 64 * 1024

type options struct {
	logHandler slog.Handler
	chunkSize  int
}

// Option configures the handlers in this package.
type Option func(*options)

// LogHandler configures the underlying [slog.Handler].
func LogHandler(h slog.Handler) Option {
	return func(o *options) {
		o.logHandler = otelslog.NewHandler(h)
	}
}

// ChunkSize sets how much of a file is read per write.
func ChunkSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.chunkSize = n
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		logHandler: otelslog.Discard{},
		chunkSize:  DefaultChunkSize,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// fileServer streams files. Its chunk buffer makes it stateful, so
// every duplicate gets its own.
type fileServer struct {
	log   *slog.Logger
	opts  options
	chunk []byte
}

func newFileServer(o options) *fileServer {
	return &fileServer{
		log:   slog.New(o.logHandler),
		opts:  o,
		chunk: make([]byte, o.chunkSize),
	}
}

// serve answers with the regular file at name or the canned 404 if
// there is none.
func (s *fileServer) serve(ctx context.Context, name string, w *http1.ResponseWriter) {
	f, err := os.Open(name)
	if err != nil {
		s.notFound(ctx, name, err, w)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		s.notFound(ctx, name, err, w)
		return
	}
	if !info.Mode().IsRegular() {
		s.notFound(ctx, name, errors.New("not a regular file"), w)
		return
	}

	size := info.Size()
	r := io.LimitReader(f, size)

	n, err := io.ReadFull(r, s.chunk)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		w.Abort(err)
		return
	}

	w.SetStatus(http.StatusOK)
	w.SetHeader("Content-Type", ContentType(name, s.chunk[:n]))
	w.SetContentLength(int(size))
	if w.Send() != nil {
		return
	}

	sent := int64(n)
	if w.SendRaw(s.chunk[:n]) != nil {
		return
	}
	for sent < size {
		n, err := r.Read(s.chunk)
		if n > 0 {
			sent += int64(n)
			if w.SendRaw(s.chunk[:n]) != nil {
				return
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			w.Abort(err)
			return
		}
	}

	// the file shrank after the length was announced
	if sent < size {
		w.Abort(io.ErrUnexpectedEOF)
	}
}

func (s *fileServer) notFound(ctx context.Context, name string, err error, w *http1.ResponseWriter) {
	s.log.DebugContext(ctx, "file not found", slogfield.String("file", name), slogfield.Error(err))
	http1.NotFound(w)
}

type fileHandler struct {
	*fileServer
	path string
}

// FileHandler serves the file at path for every request.
func FileHandler(path string, opts ...Option) router.Handler {
	return &fileHandler{
		fileServer: newFileServer(newOptions(opts)),
		path:       path,
	}
}

// Process implements the [router.Handler] interface.
func (h *fileHandler) Process(ctx context.Context, req *http1.Request, w *http1.ResponseWriter) {
	h.serve(ctx, h.path, w)
}

// Duplicate implements the [router.Handler] interface.
func (h *fileHandler) Duplicate() router.Handler {
	return &fileHandler{
		fileServer: newFileServer(h.opts),
		path:       h.path,
	}
}

type fileSystemHandler struct {
	*fileServer
	root string
}

// FileSystemHandler serves the file found by joining root and the
// request path. Paths containing a ".." segment are never served.
func FileSystemHandler(root string, opts ...Option) router.Handler {
	return &fileSystemHandler{
		fileServer: newFileServer(newOptions(opts)),
		root:       root,
	}
}

// Process implements the [router.Handler] interface.
func (h *fileSystemHandler) Process(ctx context.Context, req *http1.Request, w *http1.ResponseWriter) {
	if escapesRoot(req.Path) {
		h.notFound(ctx, req.Path, errors.New("path escapes root"), w)
		return
	}
	h.serve(ctx, filepath.Join(h.root, filepath.FromSlash(req.Path)), w)
}

// Duplicate implements the [router.Handler] interface.
func (h *fileSystemHandler) Duplicate() router.Handler {
	return &fileSystemHandler{
		fileServer: newFileServer(h.opts),
		root:       h.root,
	}
}

func escapesRoot(path string) bool {
	for _, seg := range strings.FieldsFunc(path, isSlash) {
		if seg == ".." {
			return true
		}
	}
	return false
}

func isSlash(r rune) bool {
	return r == '/' || r == '\\'
}
