// Package document extracts text from the source PDF and splits it into
// overlapping chunks.
package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/fyrsmithlabs/skyline/internal/apperrors"
)

// PlainTexter is the part of *pdf.Reader the loader uses.
type PlainTexter interface {
	GetPlainText() (io.Reader, error)
}

// OpenFunc opens a PDF. The returned closer is closed after extraction.
type OpenFunc func(path string) (io.Closer, PlainTexter, error)

// OpenPDF opens path with ledongthuc/pdf.
//
// pdf.Open leaves the file open when the reader cannot be built, so the
// file is opened here and closed on every failure path, panics included.
func OpenPDF(path string) (io.Closer, PlainTexter, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	ok := false
	defer func() {
		if !ok {
			f.Close()
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return nil, nil, err
	}
	r, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return nil, nil, err
	}
	ok = true
	return f, r, nil
}

// Loader extracts plain text from a PDF file.
type Loader struct {
	open OpenFunc
}

// NewLoader returns a loader. A nil open uses OpenPDF.
func NewLoader(open OpenFunc) *Loader {
	if open == nil {
		open = OpenPDF
	}
	return &Loader{open: open}
}

// Exists reports whether path names a regular file.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Load returns the document's text.
//
// A missing file is a configuration error. A file that cannot be parsed,
// or whose text is empty after trimming, is a data error.
func (l *Loader) Load(ctx context.Context, path string) (string, error) {
	const op = "document.Load"

	if err := ctx.Err(); err != nil {
		return "", err
	}

	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", apperrors.Wrap(apperrors.KindConfiguration, op, err, "document not found")
		}
		return "", apperrors.Wrap(apperrors.KindConfiguration, op, err, "document not readable")
	}

	text, err := l.extract(path)
	if err != nil {
		return "", apperrors.Wrap(apperrors.KindData, op, err, "document could not be parsed")
	}
	if strings.TrimSpace(text) == "" {
		return "", apperrors.New(apperrors.KindData, op, "document contains no text")
	}
	return text, nil
}

// extract opens and reads the PDF, recovering from parser panics. The
// parser panics on some malformed inputs, both while opening the file and
// while reading its text.
func (l *Loader) extract(path string) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("pdf parser panic: %v", p)
		}
	}()

	closer, r, err := l.open(path)
	if err != nil {
		return "", err
	}
	defer closer.Close()

	rd, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	b, err := io.ReadAll(rd)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
