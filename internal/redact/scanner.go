// Package redact implements C1, the pattern-based secret scanner and
// redaction utilities described in spec.md §4.1. It is the normative engine
// for memory content (as opposed to internal/logging's much smaller
// redactForLogs, a log-emission concern — see spec.md §9 Open Questions).
package redact

import (
	"regexp"
	"sort"
)

// Kind identifies the category of secret a Finding matched.
type Kind string

const (
	KindPrivateKey       Kind = "private-key"
	KindAWSAccessKeyID   Kind = "aws-access-key-id"
	KindAWSSecretKey     Kind = "aws-secret-access-key"
	KindGitHubToken      Kind = "github-token"
	KindOpenAIAPIKey     Kind = "openai-api-key"
	KindGoogleAPIKey     Kind = "google-api-key"
	KindGenericAPIKey    Kind = "api-key"
	KindEnvAssignment    Kind = "env-assignment"
)

// Finding is a single detected secret occurrence, with byte offsets into the
// scanned string.
type Finding struct {
	Kind       Kind
	Confidence float64
	Start      int
	End        int
}

type patternRule struct {
	kind       Kind
	confidence float64
	re         *regexp.Regexp
	// group, when > 0, selects a capture group as the finding span instead
	// of the whole match (used by env-assignment to redact only the value).
	group int
	// minLen, when > 0, rejects matches shorter than this (used to enforce
	// the length floors some entropy-sensitive patterns need).
	minLen int
}

var rules = []patternRule{
	{
		kind:       KindPrivateKey,
		confidence: 0.99,
		re:         regexp.MustCompile(`-----BEGIN[ A-Z]*PRIVATE KEY-----[\s\S]+?-----END[ A-Z]*PRIVATE KEY-----`),
	},
	{
		kind:       KindAWSAccessKeyID,
		confidence: 0.95,
		re:         regexp.MustCompile(`\b(?:AKIA|ASIA)[0-9A-Z]{16}\b`),
	},
	{
		kind:       KindAWSSecretKey,
		confidence: 0.85,
		re:         regexp.MustCompile(`(?i)aws_secret_access_key\s*[:=]\s*['"]?([A-Za-z0-9/+=]{40})['"]?`),
		group:      1,
	},
	{
		kind:       KindGitHubToken,
		confidence: 0.97,
		re:         regexp.MustCompile(`\b(?:ghp|gho|ghu|ghs|ghr)_[A-Za-z0-9]{36,255}\b`),
	},
	{
		kind:       KindOpenAIAPIKey,
		confidence: 0.9,
		re:         regexp.MustCompile(`\bsk-(?:proj-)?[A-Za-z0-9_-]{20,}\b`),
		minLen:     32,
	},
	{
		kind:       KindGoogleAPIKey,
		confidence: 0.95,
		re:         regexp.MustCompile(`\bAIza[0-9A-Za-z_-]{35}\b`),
	},
	{
		kind:       KindEnvAssignment,
		confidence: 0.8,
		re:         regexp.MustCompile(`(?m)^[ \t]*[A-Z][A-Z0-9_]*(?:TOKEN|SECRET|API_KEY|PASSWORD|ACCESS_KEY|PRIVATE_KEY)[A-Z0-9_]*[ \t]*=[ \t]*(\S+)`),
		group:      1,
	},
	{
		// Generic, low-confidence catch-all for header-style hex/base64
		// credentials. Deliberately lower confidence than every named kind
		// above so a specific match always wins an overlap.
		kind:       KindGenericAPIKey,
		confidence: 0.4,
		re:         regexp.MustCompile(`\b(?:[A-Fa-f0-9]{32,}|[A-Za-z0-9+/]{32,}={0,2})\b`),
	},
}

// Scan runs the fixed pattern set over s and returns non-overlapping
// findings; when two findings overlap, the higher-confidence one wins
// (spec.md §4.1). Scan never panics on malformed/binary input.
func Scan(s string) []Finding {
	return resolveOverlaps(scanRules(s))
}

func scanRule(s string, rule patternRule) []Finding {
	var out []Finding
	defer func() { _ = recover() }() // best-effort: never raise on bad input
	matches := rule.re.FindAllStringSubmatchIndex(s, -1)
	for _, m := range matches {
		start, end := m[0], m[1]
		if rule.group > 0 {
			gi := rule.group * 2
			if gi+1 >= len(m) || m[gi] < 0 {
				continue
			}
			start, end = m[gi], m[gi+1]
		}
		if rule.minLen > 0 && end-start < rule.minLen {
			continue
		}
		out = append(out, Finding{Kind: rule.kind, Confidence: rule.confidence, Start: start, End: end})
	}
	return out
}

// resolveOverlaps sorts findings by start position and, when two findings
// overlap, keeps the one with the higher confidence (ties keep the earlier
// find, i.e. stable sort order).
func resolveOverlaps(findings []Finding) []Finding {
	if len(findings) == 0 {
		return nil
	}
	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Start != findings[j].Start {
			return findings[i].Start < findings[j].Start
		}
		return findings[i].Confidence > findings[j].Confidence
	})

	var kept []Finding
	for _, f := range findings {
		overlapIdx := -1
		for i, k := range kept {
			if overlaps(f, k) {
				overlapIdx = i
				break
			}
		}
		if overlapIdx == -1 {
			kept = append(kept, f)
			continue
		}
		if f.Confidence > kept[overlapIdx].Confidence {
			kept[overlapIdx] = f
		}
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].Start < kept[j].Start })
	return kept
}

func overlaps(a, b Finding) bool {
	return a.Start < b.End && b.Start < a.End
}
