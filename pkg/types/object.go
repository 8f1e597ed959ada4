// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Manifest field positions. Field 0 is the object sequence number written by
// pmrep and is not used.
const (
	FieldFolder  = 1
	FieldName    = 2
	FieldType    = 3
	FieldSubtype = 4

	// MinManifestFields is the smallest field count of a valid manifest row.
	MinManifestFields = 5
)

// SubtypeNone is the subtype sentinel for object types that have no subtype.
const SubtypeNone = "none"

// ManifestRow is one parsed line of the executequery output.
type ManifestRow struct {
	// Line is the 1-based line number in the manifest file.
	Line int

	// Fields holds the comma-separated values in file order.
	Fields []string
}

func (r ManifestRow) Folder() string  { return r.Fields[FieldFolder] }
func (r ManifestRow) Name() string    { return r.Fields[FieldName] }
func (r ManifestRow) Type() string    { return r.Fields[FieldType] }
func (r ManifestRow) Subtype() string { return r.Fields[FieldSubtype] }

// ExportTarget describes where and how a single repository object is exported.
type ExportTarget struct {
	Folder  string `json:"folder" yaml:"folder"`
	Name    string `json:"name" yaml:"name"`
	Type    string `json:"type" yaml:"type"`
	Subtype string `json:"subtype" yaml:"subtype"`

	// Dir is the directory the XML file is written to.
	Dir string `json:"dir" yaml:"dir"`

	// Path is the full path of the exported XML file.
	Path string `json:"path" yaml:"path"`
}

// ExportStatus is the outcome of exporting one object.
type ExportStatus string

const (
	ExportSucceeded ExportStatus = "success"
	ExportFailed    ExportStatus = "failed"
)

// ObjectOutcome records the result of one object export.
type ObjectOutcome struct {
	// Number is the 1-based position of the object in the manifest.
	Number int `json:"number" yaml:"number"`

	Target ExportTarget `json:"target" yaml:"target"`

	// ExitCode is the pmrep objectexport exit code.
	ExitCode int `json:"exit_code" yaml:"exit_code"`

	Status ExportStatus `json:"status" yaml:"status"`

	// Error describes a failure that happened outside pmrep, such as a
	// normalization error.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// RunSummary holds the outcome of an export run that reached the export loop.
type RunSummary struct {
	Repository string          `json:"repository" yaml:"repository"`
	Query      string          `json:"query" yaml:"query"`
	StartedAt  time.Time       `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time       `json:"finished_at" yaml:"finished_at"`
	Outcomes   []ObjectOutcome `json:"outcomes" yaml:"outcomes"`
}

// Succeeded returns the number of objects exported successfully.
func (s RunSummary) Succeeded() int {
	return s.count(ExportSucceeded)
}

// Failed returns the number of objects whose export failed.
func (s RunSummary) Failed() int {
	return s.count(ExportFailed)
}

// Total returns the number of objects attempted.
func (s RunSummary) Total() int {
	return len(s.Outcomes)
}

// HasFailures reports whether any object failed to export.
func (s RunSummary) HasFailures() bool {
	return s.Failed() > 0
}

func (s RunSummary) count(status ExportStatus) int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}
