// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package config turns merged flag, environment, and config-file settings
// into a validated types.SessionConfig.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/pdiddy/informatica-export/pkg/types"
)

// ErrMissingOption is returned when a required option or option group is
// not set.
var ErrMissingOption = errors.New("required option value missing")

// EnvPrefix prefixes environment variables that set options, e.g.
// INFORMATICA_EXPORT_OUTPUT_DIR.
const EnvPrefix = "INFORMATICA_EXPORT"

// Secrets files consulted when the matching option is not given.
const (
	SecretPassword = "repository-password"
	SecretUser     = "repository-user"
)

// Options mirrors the command-line flags. The flag tag names the option
// group reported when validation fails.
type Options struct {
	Repository     string `mapstructure:"repository" flag:"--repository" validate:"required"`
	Domain         string `mapstructure:"domain"`
	Host           string `mapstructure:"host" flag:"--host --port | --domain" validate:"required_without=Domain"`
	Port           string `mapstructure:"port" flag:"--host --port | --domain" validate:"required_without=Domain"`
	User           string `mapstructure:"user" flag:"--user" validate:"required"`
	SecurityDomain string `mapstructure:"security-domain"`
	Password       string `mapstructure:"password"`
	PasswordEnv    string `mapstructure:"password-env" flag:"--password | --password-env" validate:"required_without=Password"`
	Query          string `mapstructure:"query" flag:"--query" validate:"required"`
	CommandsDir    string `mapstructure:"commands-dir" flag:"--commands-dir" validate:"required"`
	OutputDir      string `mapstructure:"output-dir" flag:"--output-dir" validate:"required"`
	DomainFile     string `mapstructure:"domain-file" flag:"--domain-file" validate:"required"`
	LogFile        string `mapstructure:"log-file"`
	NoReplace      bool   `mapstructure:"no-replace"`
	ReportFile     string `mapstructure:"report-file"`
	HistoryDB      string `mapstructure:"history-db"`
}

// Bind wires flags and INFORMATICA_EXPORT_* environment variables into v.
// Flags take precedence over the environment, which takes precedence over
// the config file.
func Bind(v *viper.Viper, flags *pflag.FlagSet) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return fmt.Errorf("binding flags: %w", err)
	}
	return nil
}

// Load reads Options from v, validates them, and resolves the connection
// target and credential. secrets may supply the user and password. The returned
// warnings describe options that were given but ignored.
func Load(v *viper.Viper, secrets map[string]string) (types.SessionConfig, []string, error) {
	var opts Options
	if err := v.Unmarshal(&opts); err != nil {
		return types.SessionConfig{}, nil, fmt.Errorf("reading options: %w", err)
	}
	if opts.Password == "" && opts.PasswordEnv == "" {
		opts.Password = secrets[SecretPassword]
	}
	if opts.User == "" {
		opts.User = secrets[SecretUser]
	}
	return Resolve(opts)
}

// Resolve validates opts and builds the session configuration.
func Resolve(opts Options) (types.SessionConfig, []string, error) {
	if err := validate(opts); err != nil {
		return types.SessionConfig{}, nil, err
	}

	var warnings []string
	target := types.ConnectTarget{Domain: opts.Domain}
	switch {
	case opts.Domain == "":
		target = types.ConnectTarget{Host: opts.Host, Port: opts.Port}
	case opts.Host != "" || opts.Port != "":
		warnings = append(warnings, "Both --domain and --host specified. --domain value will be used.")
	}

	cred := types.Credential{Password: opts.Password}
	switch {
	case opts.Password == "":
		cred = types.Credential{PasswordEnv: opts.PasswordEnv}
	case opts.PasswordEnv != "":
		warnings = append(warnings, "Both --password and --password-env specified. --password value will be used.")
	}

	logFile := opts.LogFile
	if logFile == "" {
		logFile = filepath.Join(opts.OutputDir, types.DefaultLogFileName)
	}

	cfg := types.SessionConfig{
		Repository:     opts.Repository,
		Target:         target,
		Username:       opts.User,
		SecurityDomain: opts.SecurityDomain,
		Credential:     cred,
		Query:          opts.Query,
		DomainFile:     opts.DomainFile,
		CommandsDir:    opts.CommandsDir,
		OutputDir:      opts.OutputDir,
		LogFile:        logFile,
		Normalize:      !opts.NoReplace,
		ReportFile:     opts.ReportFile,
		HistoryDB:      opts.HistoryDB,
	}
	return cfg, warnings, nil
}

func validate(opts Options) error {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if name := fld.Tag.Get("flag"); name != "" {
			return name
		}
		return fld.Name
	})

	err := v.Struct(opts)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating options: %w", err)
	}

	var missing []string
	seen := make(map[string]bool)
	for _, e := range verrs {
		if seen[e.Field()] {
			continue
		}
		seen[e.Field()] = true
		missing = append(missing, "["+e.Field()+"]")
	}
	return fmt.Errorf("%w: %s", ErrMissingOption, strings.Join(missing, ", "))
}
