// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package manifest reads the object list written by pmrep executequery.
//
// Each non-empty line is one object, split on commas. Quoting is not
// supported: pmrep does not quote fields, so a folder or object name that
// contains a comma shifts the remaining fields.
package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/afero"

	"github.com/pdiddy/informatica-export/pkg/types"
)

// ErrMalformedRow is matched by every ParseError.
var ErrMalformedRow = errors.New("malformed manifest row")

// ParseError reports a manifest line with too few fields.
type ParseError struct {
	Line   int
	Fields int
	Text   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("manifest line %d: expected at least %d fields, got %d: %q",
		e.Line, types.MinManifestFields, e.Fields, e.Text)
}

func (e *ParseError) Is(target error) bool {
	return target == ErrMalformedRow
}

// Reader yields manifest rows one line at a time. It is not restartable;
// open the file again to read it twice.
type Reader struct {
	file    afero.File
	scanner *bufio.Scanner
	line    int
}

// Open opens the manifest at path on fs.
func Open(fs afero.Fs, path string) (*Reader, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening manifest %s: %w", path, err)
	}
	return NewReader(f), nil
}

// NewReader reads rows from an already opened file.
func NewReader(f afero.File) *Reader {
	return &Reader{file: f, scanner: bufio.NewScanner(f)}
}

// Next returns the next row, or io.EOF when the manifest is exhausted.
func (r *Reader) Next() (types.ManifestRow, error) {
	for r.scanner.Scan() {
		r.line++
		text := strings.TrimRight(r.scanner.Text(), "\r")
		if text == "" {
			continue
		}
		return ParseLine(r.line, text)
	}
	if err := r.scanner.Err(); err != nil {
		return types.ManifestRow{}, fmt.Errorf("reading manifest line %d: %w", r.line+1, err)
	}
	return types.ManifestRow{}, io.EOF
}

// Close releases the underlying file.
func (r *Reader) Close() error {
	return r.file.Close()
}

// ParseLine splits one manifest line into a row.
func ParseLine(line int, text string) (types.ManifestRow, error) {
	fields := strings.Split(text, ",")
	if len(fields) < types.MinManifestFields {
		return types.ManifestRow{}, &ParseError{Line: line, Fields: len(fields), Text: text}
	}
	return types.ManifestRow{Line: line, Fields: fields}, nil
}
