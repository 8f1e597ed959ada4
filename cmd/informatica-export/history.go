// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/informatica-export/internal/history"
	"github.com/pdiddy/informatica-export/pkg/types"
)

const historyTimeLayout = "2006-01-02 15:04:05Z07:00"

// failedRun is the YAML form of --run output.
type failedRun struct {
	Run     history.Run           `yaml:"run"`
	Objects []types.ObjectOutcome `yaml:"failed_objects"`
}

func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded export runs and the objects that failed",
		Long: `History reads the run database written by --history-db. Without --run it
lists the most recent runs, newest first. With --run it lists the objects that
failed in that run, so they can be investigated or exported again.`,
		RunE: a.runHistory,
	}
	cmd.Flags().String("history-db", "", "run history database (default: the history-db setting)")
	cmd.Flags().Int("limit", 20, "maximum number of runs to list")
	cmd.Flags().Int64("run", 0, "list the failed objects of this run ID")
	cmd.Flags().Bool("yaml", false, "output results as YAML")
	return cmd
}

func (a *app) runHistory(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("history-db")
	if path == "" {
		path = a.v.GetString("history-db")
	}
	if path == "" {
		return fmt.Errorf("no history database: set --history-db")
	}
	if _, err := a.fs.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("history database %s does not exist", path)
		}
		return fmt.Errorf("reading history database %s: %w", path, err)
	}

	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	runID, _ := cmd.Flags().GetInt64("run")
	asYAML, _ := cmd.Flags().GetBool("yaml")
	out := cmd.OutOrStdout()

	if runID == 0 {
		runs, err := store.Runs(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if asYAML {
			return writeYAML(out, runs)
		}
		printRuns(out, path, runs)
		return nil
	}

	run, err := store.Run(cmd.Context(), runID)
	if err != nil {
		return err
	}
	failed, err := store.FailedObjects(cmd.Context(), runID)
	if err != nil {
		return err
	}
	if asYAML {
		return writeYAML(out, failedRun{Run: run, Objects: failed})
	}
	printFailed(out, run, failed)
	return nil
}

func printRuns(w io.Writer, path string, runs []history.Run) {
	if len(runs) == 0 {
		fmt.Fprintf(w, "No runs recorded in %s\n", path)
		return
	}
	for _, r := range runs {
		fmt.Fprintf(w, "Run %d  %s  %s  %s  exported: %d  failed: %d\n",
			r.ID, r.StartedAt.Format(historyTimeLayout), r.Repository, r.Query, r.Exported, r.Failed)
	}
}

func printFailed(w io.Writer, r history.Run, failed []types.ObjectOutcome) {
	fmt.Fprintf(w, "Run %d  %s  %s  %s: %d failed of %d\n",
		r.ID, r.StartedAt.Format(historyTimeLayout), r.Repository, r.Query, len(failed), r.Exported+r.Failed)
	for _, o := range failed {
		t := o.Target
		line := fmt.Sprintf("  %d: %s, %s, %s, %s. Exit code: %d", o.Number, t.Folder, t.Type, t.Subtype, t.Name, o.ExitCode)
		if o.Error != "" {
			line += ". " + o.Error
		}
		fmt.Fprintln(w, line)
	}
}

func writeYAML(w io.Writer, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling history: %w", err)
	}
	_, err = w.Write(data)
	return err
}
