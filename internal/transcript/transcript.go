// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package transcript writes the persistent run log: one block per pmrep
// invocation with the command line and everything pmrep printed.
package transcript

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/afero"

	"github.com/pdiddy/informatica-export/internal/pmrep"
)

const (
	header    = "Executing command:"
	separator = "---------------------------"
)

// Transcript appends invocation blocks to the log file. Each block is
// flushed as soon as it is written.
type Transcript struct {
	path string
	file afero.File
	w    *bufio.Writer
}

// Open creates or truncates the log file at path.
func Open(fs afero.Fs, path string) (*Transcript, error) {
	f, err := fs.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file %s: %w", path, err)
	}
	return &Transcript{path: path, file: f, w: bufio.NewWriter(f)}, nil
}

// Path returns the log file location.
func (t *Transcript) Path() string {
	return t.path
}

// Record writes one invocation block. Secret arguments of cmd are masked.
func (t *Transcript) Record(executable string, cmd pmrep.Command, res pmrep.Result) error {
	_, _ = fmt.Fprintln(t.w, header)
	_, _ = fmt.Fprintln(t.w, executable+" "+strings.Join(cmd.Redacted(), " "))
	for _, line := range splitLines(res.Output) {
		_, _ = fmt.Fprintln(t.w, line)
	}
	_, _ = fmt.Fprintln(t.w, separator)
	_, _ = fmt.Fprintln(t.w)
	if err := t.w.Flush(); err != nil {
		return fmt.Errorf("writing log file %s: %w", t.path, err)
	}
	return nil
}

// Close flushes pending output and closes the file.
func (t *Transcript) Close() error {
	if err := t.w.Flush(); err != nil {
		_ = t.file.Close()
		return fmt.Errorf("flushing log file %s: %w", t.path, err)
	}
	return t.file.Close()
}

func splitLines(s string) []string {
	s = strings.TrimRight(s, "\r\n")
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}
