// Package file is the local file data source. It opens a path (or standard
// input for "-") and decodes it to UTF-8.
package file

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Local reads a file from the local filesystem.
//
// Encoding is any WHATWG encoding label ("utf-8", "windows-1250",
// "iso-8859-2", "utf-16le", ...). Empty means UTF-8. A leading byte order
// mark is always stripped, and a UTF-16 BOM overrides Encoding.
type Local struct {
	Path     string
	Encoding string

	// Stdin replaces os.Stdin when Path is "-". Tests set it.
	Stdin io.Reader
}

// NewLocal returns a UTF-8 source for path.
func NewLocal(path string) *Local {
	return &Local{Path: path}
}

// Open returns a reader producing UTF-8 text. The caller must Close it.
func (l *Local) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dec, err := decoder(l.Encoding)
	if err != nil {
		return nil, err
	}

	var (
		r      io.Reader
		closer io.Closer = io.NopCloser(nil)
	)
	if l.Path == "-" {
		r = l.Stdin
		if r == nil {
			r = os.Stdin
		}
	} else {
		f, err := os.Open(l.Path)
		if err != nil {
			return nil, fmt.Errorf("open source: %w", err)
		}
		r, closer = f, f
	}

	return &readCloser{
		Reader: transform.NewReader(r, unicode.BOMOverride(dec)),
		Closer: closer,
	}, nil
}

// decoder resolves an encoding label to a decoding transformer.
func decoder(label string) (transform.Transformer, error) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "", "utf-8", "utf8":
		return transform.Nop, nil
	}
	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", label, err)
	}
	return enc.NewDecoder(), nil
}

type readCloser struct {
	io.Reader
	io.Closer
}
