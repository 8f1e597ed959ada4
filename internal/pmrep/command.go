// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package pmrep builds and runs PowerCenter pmrep command lines.
// The package returns exit codes and combined output; it never writes the
// transcript itself.
package pmrep

import (
	"github.com/pdiddy/informatica-export/pkg/types"
)

const (
	// Binary is the pmrep executable name, resolved against the commands
	// directory.
	Binary = "pmrep"

	OpConnect      = "connect"
	OpExecuteQuery = "executequery"
	OpObjectExport = "objectexport"

	// EnvDomainsFile points pmrep connect at the domain-definition file.
	EnvDomainsFile = "INFA_DOMAINS_FILE"

	// Redacted replaces secret argument values in logged command lines.
	Redacted = "[REDACTED]"
)

// Arg is one command-line option. Value is passed even when empty unless
// Bare is set.
type Arg struct {
	Flag  string
	Value string

	// Bare marks a flag that takes no value.
	Bare bool

	// Secret marks values that must never reach the transcript.
	Secret bool
}

// Command is one pmrep invocation: the operation, its options, and the
// environment variables set for this call only.
type Command struct {
	Op   string
	Args []Arg
	Env  map[string]string
}

// Argv returns the arguments passed to the pmrep process, operation first.
func (c Command) Argv() []string {
	return c.flatten(false)
}

// Redacted returns the arguments with every secret value masked.
func (c Command) Redacted() []string {
	return c.flatten(true)
}

func (c Command) flatten(redact bool) []string {
	out := make([]string, 0, 1+2*len(c.Args))
	out = append(out, c.Op)
	for _, a := range c.Args {
		out = append(out, a.Flag)
		if a.Bare {
			continue
		}
		if redact && a.Secret {
			out = append(out, Redacted)
			continue
		}
		out = append(out, a.Value)
	}
	return out
}

// Connect builds the connect command for cfg. The domain form is used when a
// domain is configured, and the literal password when one is configured.
func Connect(cfg types.SessionConfig) Command {
	args := []Arg{{Flag: "-r", Value: cfg.Repository}}
	if cfg.Target.UsesDomain() {
		args = append(args, Arg{Flag: "-d", Value: cfg.Target.Domain})
	} else {
		args = append(args,
			Arg{Flag: "-h", Value: cfg.Target.Host},
			Arg{Flag: "-o", Value: cfg.Target.Port},
		)
	}
	args = append(args, Arg{Flag: "-n", Value: cfg.Username, Secret: true})
	if cfg.SecurityDomain != "" {
		args = append(args, Arg{Flag: "-s", Value: cfg.SecurityDomain})
	}
	if cfg.Credential.IsLiteral() {
		args = append(args, Arg{Flag: "-x", Value: cfg.Credential.Password, Secret: true})
	} else {
		args = append(args, Arg{Flag: "-X", Value: cfg.Credential.PasswordEnv, Secret: true})
	}

	return Command{
		Op:   OpConnect,
		Args: args,
		Env:  map[string]string{EnvDomainsFile: cfg.DomainFile},
	}
}

// ExecuteQuery builds the executequery command that writes the object list
// for cfg.Query to the manifest path.
func ExecuteQuery(cfg types.SessionConfig) Command {
	return Command{
		Op: OpExecuteQuery,
		Args: []Arg{
			{Flag: "-q", Value: cfg.Query},
			{Flag: "-u", Value: cfg.ManifestPath()},
		},
	}
}

// ObjectExport builds the objectexport command for one target.
func ObjectExport(t types.ExportTarget) Command {
	return Command{
		Op: OpObjectExport,
		Args: []Arg{
			{Flag: "-n", Value: t.Name},
			{Flag: "-o", Value: t.Type},
			{Flag: "-t", Value: t.Subtype},
			{Flag: "-f", Value: t.Folder},
			{Flag: "-b", Bare: true},
			{Flag: "-u", Value: t.Path},
		},
	}
}
