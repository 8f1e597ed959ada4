package types

import "path/filepath"

const (
	// ManifestFileName is the file executequery writes the object list to,
	// inside the output directory.
	ManifestFileName = "objectlist.txt"

	// DefaultLogFileName is the transcript file name used when no log file
	// path is configured.
	DefaultLogFileName = "informatica-export.log"
)

// ConnectTarget identifies the repository service endpoint. Exactly one form
// is populated after configuration is resolved: Domain, or Host and Port.
type ConnectTarget struct {
	// Domain is the PowerCenter domain name resolved through the
	// domain-definition file.
	Domain string `json:"domain,omitempty" yaml:"domain,omitempty"`

	// Host and Port address the repository gateway directly.
	Host string `json:"host,omitempty" yaml:"host,omitempty"`
	Port string `json:"port,omitempty" yaml:"port,omitempty"`
}

// UsesDomain reports whether the connect call is built from the domain name.
func (t ConnectTarget) UsesDomain() bool {
	return t.Domain != ""
}

// Credential holds the repository password. Exactly one form is populated
// after configuration is resolved.
type Credential struct {
	// Password is the literal password.
	Password string `json:"-" yaml:"-"`

	// PasswordEnv names an environment variable pmrep reads the password from.
	PasswordEnv string `json:"password_env,omitempty" yaml:"password_env,omitempty"`
}

// IsLiteral reports whether the literal password is used.
func (c Credential) IsLiteral() bool {
	return c.Password != ""
}

// SessionConfig holds the validated settings of one export run. It is built
// once by config.Load and passed by value afterwards.
type SessionConfig struct {
	// Repository is the repository name passed to pmrep connect.
	Repository string `json:"repository" yaml:"repository"`

	Target ConnectTarget `json:"target" yaml:"target"`

	// Username is the repository user.
	Username string `json:"username" yaml:"username"`

	// SecurityDomain is the optional LDAP security domain of the user.
	SecurityDomain string `json:"security_domain,omitempty" yaml:"security_domain,omitempty"`

	Credential Credential `json:"credential" yaml:"credential"`

	// Query is the name of the saved repository query that lists the
	// objects to export.
	Query string `json:"query" yaml:"query"`

	// DomainFile is the domains.infa path exported as INFA_DOMAINS_FILE
	// for the connect call.
	DomainFile string `json:"domain_file" yaml:"domain_file"`

	// CommandsDir is the directory containing the pmrep executable.
	CommandsDir string `json:"commands_dir" yaml:"commands_dir"`

	// OutputDir is the root of the exported folder tree.
	OutputDir string `json:"output_dir" yaml:"output_dir"`

	// LogFile is the transcript path.
	LogFile string `json:"log_file" yaml:"log_file"`

	// Normalize enables rewriting of environment-specific attributes in
	// every exported file.
	Normalize bool `json:"normalize" yaml:"normalize"`

	// ReportFile, when set, receives a YAML summary of the run.
	ReportFile string `json:"report_file,omitempty" yaml:"report_file,omitempty"`

	// HistoryDB, when set, is the SQLite database runs are recorded in.
	HistoryDB string `json:"history_db,omitempty" yaml:"history_db,omitempty"`
}

// ManifestPath returns the location executequery writes the object list to.
func (c SessionConfig) ManifestPath() string {
	return filepath.Join(c.OutputDir, ManifestFileName)
}
