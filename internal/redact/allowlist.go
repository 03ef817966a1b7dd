package redact

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/BurntSushi/toml"
)

// ErrInvalidAllowlist is returned when an allowlist file exists but fails to
// parse or contains an invalid regex.
var ErrInvalidAllowlist = errors.New("invalid allowlist file")

// Allowlist holds compiled path and content regexes that suppress findings
// which would otherwise be reported by Scan (spec.md §4.1's false-positive
// carve-out for project-specific conventions, e.g. fixture files).
type Allowlist struct {
	paths   []*regexp.Regexp
	content []*regexp.Regexp
}

// allowlistFile mirrors a gitleaks-style TOML allowlist document:
//
//	[allowlist]
//	paths = ["testdata/.*", ".*_fixture\\.go"]
//	regexes = ["EXAMPLE_[A-Z_]+_KEY"]
type allowlistFile struct {
	Allowlist struct {
		Paths   []string
		Regexes []string
	}
}

// LoadAllowlist reads a single TOML allowlist file. A missing file is not an
// error: it returns an empty, always-non-matching Allowlist.
func LoadAllowlist(path string) (*Allowlist, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return &Allowlist{}, nil
		}
		return nil, err
	}

	var doc allowlistFile
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return nil, errorf(ErrInvalidAllowlist, "%s: %v", path, err)
	}

	al := &Allowlist{}
	for _, pattern := range doc.Allowlist.Paths {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, errorf(ErrInvalidAllowlist, "path pattern %q in %s: %v", pattern, path, err)
		}
		al.paths = append(al.paths, re)
	}
	for _, pattern := range doc.Allowlist.Regexes {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, errorf(ErrInvalidAllowlist, "content pattern %q in %s: %v", pattern, path, err)
		}
		al.content = append(al.content, re)
	}
	return al, nil
}

// LoadRepoAllowlist loads <repoRoot>/.memoryd-allowlist.toml, the
// project-scoped allowlist consulted alongside the curated rules and the
// Gitleaks supplement.
func LoadRepoAllowlist(repoRoot string) (*Allowlist, error) {
	return LoadAllowlist(filepath.Join(repoRoot, ".memoryd-allowlist.toml"))
}

// AllowsPath reports whether path matches one of the allowlist's path
// patterns, meaning findings in content sourced from that path should be
// dropped entirely before scanning.
func (a *Allowlist) AllowsPath(path string) bool {
	if a == nil {
		return false
	}
	for _, re := range a.paths {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

// Filter removes findings whose matched text (within s) satisfies one of
// the allowlist's content regexes.
func (a *Allowlist) Filter(s string, findings []Finding) []Finding {
	if a == nil || len(a.content) == 0 || len(findings) == 0 {
		return findings
	}
	out := make([]Finding, 0, len(findings))
	for _, f := range findings {
		if a.allowsContent(s[f.Start:f.End]) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func (a *Allowlist) allowsContent(matched string) bool {
	for _, re := range a.content {
		if re.MatchString(matched) {
			return true
		}
	}
	return false
}

func errorf(base error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", base, fmt.Sprintf(format, args...))
}
