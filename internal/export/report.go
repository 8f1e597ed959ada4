// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package export

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/informatica-export/pkg/types"
)

// Report is the on-disk YAML summary of a run.
type Report struct {
	Repository string         `yaml:"repository"`
	Query      string         `yaml:"query"`
	StartedAt  string         `yaml:"started_at"`
	FinishedAt string         `yaml:"finished_at"`
	Totals     ReportTotals   `yaml:"totals"`
	Objects    []ReportObject `yaml:"objects"`
}

// ReportTotals holds the object counts of a run.
type ReportTotals struct {
	Exported int `yaml:"exported"`
	Failed   int `yaml:"failed"`
	Total    int `yaml:"total"`
}

// ReportObject is one exported object. Path is relative to the output
// directory so reports from different machines compare equal.
type ReportObject struct {
	Number   int    `yaml:"number"`
	Folder   string `yaml:"folder"`
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Subtype  string `yaml:"subtype"`
	Path     string `yaml:"path"`
	Status   string `yaml:"status"`
	ExitCode int    `yaml:"exit_code"`
	Error    string `yaml:"error,omitempty"`
}

// NewReport builds the report for summary. outputDir is stripped from
// object paths.
func NewReport(summary types.RunSummary, outputDir string) Report {
	r := Report{
		Repository: summary.Repository,
		Query:      summary.Query,
		StartedAt:  summary.StartedAt.Format(time.RFC3339),
		FinishedAt: summary.FinishedAt.Format(time.RFC3339),
		Totals: ReportTotals{
			Exported: summary.Succeeded(),
			Failed:   summary.Failed(),
			Total:    summary.Total(),
		},
		Objects: make([]ReportObject, len(summary.Outcomes)),
	}

	for i, o := range summary.Outcomes {
		path := o.Target.Path
		if rel, err := filepath.Rel(outputDir, path); err == nil {
			path = filepath.ToSlash(rel)
		}
		r.Objects[i] = ReportObject{
			Number:   o.Number,
			Folder:   o.Target.Folder,
			Name:     o.Target.Name,
			Type:     o.Target.Type,
			Subtype:  o.Target.Subtype,
			Path:     path,
			Status:   string(o.Status),
			ExitCode: o.ExitCode,
			Error:    o.Error,
		}
	}
	return r
}

// WriteReport writes the YAML report of summary to path.
func WriteReport(fs afero.Fs, path string, summary types.RunSummary, outputDir string) error {
	data, err := yaml.Marshal(NewReport(summary, outputDir))
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return fmt.Errorf("writing report %s: %w", path, err)
	}
	return nil
}
