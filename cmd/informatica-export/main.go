// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the informatica-export CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/informatica-export/internal/config"
	"github.com/pdiddy/informatica-export/internal/console"
	"github.com/pdiddy/informatica-export/internal/export"
	"github.com/pdiddy/informatica-export/internal/history"
	"github.com/pdiddy/informatica-export/internal/secrets"
	"github.com/pdiddy/informatica-export/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

const versionTemplate = "informatica-export version {{.Version}}\n"

// app holds the state shared by the root command's hooks.
type app struct {
	v       *viper.Viper
	fs      afero.Fs
	secrets map[string]string
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New(), fs: afero.NewOsFs()}

	rootCmd := &cobra.Command{
		Use:   "informatica-export",
		Short: "Export PowerCenter repository objects into separate XML files",
		Long: `informatica-export connects to a PowerCenter repository with pmrep, runs a
saved query to list the objects to export, and exports every listed object to
<output-dir>/<folder>/<type>[/<subtype>]/<name>.xml.

Environment-specific attributes (creation dates, repository, integration
service, and domain names) are replaced with fixed placeholders so exports
from different environments can be compared. Use --no-replace to keep them.

Every pmrep call and its output is written to the log file.`,
		Version:           version,
		SilenceUsage:      true,
		PersistentPreRunE: a.preRun,
		RunE:              a.runExport,
	}
	rootCmd.SetVersionTemplate(versionTemplate)

	flags := rootCmd.Flags()
	flags.StringP("repository", "r", "", "repository name")
	flags.StringP("domain", "d", "", "domain name (takes precedence over --host/--port)")
	flags.String("host", "", "repository gateway host name")
	flags.StringP("port", "o", "", "repository gateway port number")
	flags.StringP("user", "n", "", "repository user name")
	flags.StringP("security-domain", "s", "", "user security domain")
	flags.StringP("password", "x", "", "repository password (takes precedence over --password-env)")
	flags.StringP("password-env", "X", "", "environment variable holding the repository password")
	flags.StringP("query", "q", "", "saved query listing the objects to export")
	flags.String("commands-dir", "", "directory containing the pmrep executable")
	flags.String("output-dir", "", "root directory of the exported files")
	flags.String("domain-file", "", "path of the domains.infa file")
	flags.String("log-file", "", "log file path (default <output-dir>/informatica-export.log)")
	flags.Bool("no-replace", false, "keep environment-specific attribute values")
	flags.String("report-file", "", "write a YAML run report to this path")
	flags.String("history-db", "", "record the run in this SQLite database")
	flags.Bool("verbose", false, "print debug messages")

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./informatica-export.yaml or ~/.config/informatica-export/informatica-export.yaml)")
	rootCmd.PersistentFlags().String("secrets-dir", ".secrets", "directory of credential files")

	if err := config.Bind(a.v, flags); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newHistoryCmd(a))
	return rootCmd
}

func (a *app) preRun(cmd *cobra.Command, args []string) error {
	if err := a.initConfig(cmd); err != nil {
		return err
	}

	dir, _ := cmd.Flags().GetString("secrets-dir")
	s, err := secrets.Load(a.fs, dir, func(name string, err error) {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: could not read secret %s: %v\n", name, err)
	})
	if err != nil {
		return err
	}
	a.secrets = s
	if len(s) > 0 {
		keys := make([]string, 0, len(s))
		for k := range s {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Fprintf(cmd.ErrOrStderr(), "Loaded secrets: %v\n", keys)
	}
	return nil
}

func (a *app) initConfig(cmd *cobra.Command) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	if cfgFile != "" {
		a.v.SetConfigFile(cfgFile)
	} else {
		a.v.SetConfigName("informatica-export")
		a.v.SetConfigType("yaml")
		a.v.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			a.v.AddConfigPath(filepath.Join(home, ".config", "informatica-export"))
		}
	}

	err := a.v.ReadInConfig()
	if err == nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "Using config file:", a.v.ConfigFileUsed())
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return nil
	}
	if cfgFile != "" {
		return fmt.Errorf("reading config file %s: %w", cfgFile, err)
	}
	return nil
}

func (a *app) runExport(cmd *cobra.Command, args []string) error {
	log := console.New(cmd.OutOrStdout(), a.v.GetBool("verbose"))
	defer log.Sync()

	cfg, warnings, err := config.Load(a.v, a.secrets)
	if err != nil {
		if errors.Is(err, config.ErrMissingOption) {
			_ = cmd.Usage()
		}
		return err
	}
	for _, w := range warnings {
		log.Warn(w)
	}

	summary, err := export.New(cfg, export.WithFs(a.fs), export.WithLogger(log)).Run(cmd.Context())
	if err != nil {
		return err
	}

	if cfg.ReportFile != "" {
		if err := export.WriteReport(a.fs, cfg.ReportFile, summary, cfg.OutputDir); err != nil {
			log.Warn("Could not write run report.", zap.Error(err))
		} else {
			log.Info("Run report written to " + cfg.ReportFile)
		}
	}
	if cfg.HistoryDB != "" {
		recordHistory(cmd.Context(), log, cfg, summary)
	}
	return nil
}

// recordHistory appends the run to the history database. Failures are
// reported but do not fail the run.
func recordHistory(ctx context.Context, log *zap.Logger, cfg types.SessionConfig, summary types.RunSummary) {
	store, err := history.Open(cfg.HistoryDB)
	if err != nil {
		log.Warn("Could not open run history.", zap.Error(err))
		return
	}
	defer store.Close()

	id, err := store.Record(ctx, summary)
	if err != nil {
		log.Warn("Could not record run history.", zap.Error(err))
		return
	}
	log.Debug("run recorded", zap.Int64("run_id", id), zap.String("history_db", cfg.HistoryDB))
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
