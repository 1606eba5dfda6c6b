// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package static

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

const defaultContentType = "application/octet-stream"

var contentTypes = map[string]string{
	".html":  "text/html",
	".css":   "text/css",
	".js":    "text/javascript",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".png":   "image/png",
	".svg":   "image/svg+xml",
	".woff":  "application/x-font-woff",
	".woff2": "application/x-font-woff",
}

// ContentType returns the media type for the file at path. Well known
// extensions are looked up directly, anything else is sniffed from
// head, the first bytes of the file.
func ContentType(path string, head []byte) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	if len(head) == 0 {
		return defaultContentType
	}
	return mimetype.Detect(head).String()
}
