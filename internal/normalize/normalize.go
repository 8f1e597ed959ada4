// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package normalize replaces environment-specific attribute values in
// exported XML with fixed placeholders so exports from different
// environments compare equal.
package normalize

import (
	"fmt"
	"regexp"

	"github.com/spf13/afero"
)

// Rule rewrites every ATTR="..." occurrence of one attribute.
type Rule struct {
	Attribute   string
	Placeholder string
	pattern     *regexp.Regexp
}

func newRule(attr, placeholder string) Rule {
	return Rule{
		Attribute:   attr,
		Placeholder: placeholder,
		pattern:     regexp.MustCompile(regexp.QuoteMeta(attr) + `="[^"]*"`),
	}
}

// Replacement returns the text each match is replaced with.
func (r Rule) Replacement() string {
	return r.Attribute + `="` + r.Placeholder + `"`
}

func (r Rule) apply(content []byte) []byte {
	return r.pattern.ReplaceAllLiteral(content, []byte(r.Replacement()))
}

// No replacement text may match another rule's pattern; the rules are then
// independent of the order they run in.
var rules = []Rule{
	newRule("CREATION_DATE", "01/01/2010 01:00:00"),
	newRule("REPOSITORY NAME", "[INFA_REPOSITORY_NAME]"),
	newRule("SERVERNAME ", "[INFA_INTEGRATION_SERVICE_NAME]"),
	newRule("SERVER_DOMAINNAME ", "[INFA_DOMAIN_NAME]"),
}

// Rules returns a copy of the rewrite table.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// Normalize returns content with every rule applied.
func Normalize(content []byte) []byte {
	for _, r := range rules {
		content = r.apply(content)
	}
	return content
}

// File normalizes the file at path in place with a single write. The file
// mode is preserved; no backup is kept.
func File(fs afero.Fs, path string) error {
	info, err := fs.Stat(path)
	if err != nil {
		return fmt.Errorf("normalizing %s: %w", path, err)
	}
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := afero.WriteFile(fs, path, Normalize(data), info.Mode().Perm()); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
