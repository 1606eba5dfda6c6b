// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package config

import (
	"context"
	"errors"
	"io/fs"
	"os"
)

// ReadFile opens the file at path. A file which does not exist is
// reported as unset. The caller owns closing the returned file.
func ReadFile(path string) Reader[*os.File] {
	return ReaderFunc[*os.File](func(ctx context.Context) (Value[*os.File], error) {
		f, err := os.Open(path)
		if errors.Is(err, fs.ErrNotExist) {
			return Value[*os.File]{}, nil
		}
		if err != nil {
			return Value[*os.File]{}, err
		}
		return ValueOf(f), nil
	})
}
