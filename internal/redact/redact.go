package redact

import (
	"fmt"
	"sort"

	"github.com/fyrsmithlabs/memoryd/internal/metrics"
)

// Options configures a redaction pass.
type Options struct {
	// UseGitleaksSupplement additionally runs the bundled Gitleaks ruleset
	// (see gitleaks.go) for broader, lower-confidence coverage. Defaults to
	// true via DefaultOptions.
	UseGitleaksSupplement bool
	// Allowlist, when set, drops findings whose matched text satisfies one
	// of its content regexes before redaction runs.
	Allowlist *Allowlist
}

// DefaultOptions matches the behavior of RedactString/RedactUnknown.
func DefaultOptions() Options {
	return Options{UseGitleaksSupplement: true}
}

func findingsFor(s string, opts Options) []Finding {
	var findings []Finding
	if opts.UseGitleaksSupplement {
		findings = scanWithGitleaks(s)
	} else {
		findings = Scan(s)
	}
	return opts.Allowlist.Filter(s, findings)
}

// RedactString finds and replaces every secret in s with
// "[REDACTED:<kind>]" and returns the redacted string plus the count of
// redactions performed (spec.md §4.1).
func RedactString(s string) (string, int) {
	return RedactStringWithOptions(s, DefaultOptions())
}

// RedactStringWithOptions is RedactString with explicit Options.
func RedactStringWithOptions(s string, opts Options) (string, int) {
	defer func() { _ = recover() }()

	findings := findingsFor(s, opts)
	if len(findings) == 0 {
		return s, 0
	}
	for _, f := range findings {
		metrics.RedactionFindingsTotal.WithLabelValues(string(f.Kind)).Inc()
	}

	// Replace back-to-front so earlier offsets stay valid.
	sorted := make([]Finding, len(findings))
	copy(sorted, findings)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start > sorted[j].Start })

	out := s
	for _, f := range sorted {
		if f.Start < 0 || f.End > len(out) || f.Start > f.End {
			continue
		}
		marker := fmt.Sprintf("[REDACTED:%s]", f.Kind)
		out = out[:f.Start] + marker + out[f.End:]
	}
	return out, len(findings)
}

// RedactUnknown recursively descends v (maps, slices, scalars) and redacts
// any string leaf found along the way. Unknown types are returned as-is.
func RedactUnknown(v any) any {
	red, _ := redactUnknownCounting(v, DefaultOptions())
	return red
}

func redactUnknownCounting(v any, opts Options) (any, int) {
	switch t := v.(type) {
	case string:
		red, n := RedactStringWithOptions(t, opts)
		return red, n
	case map[string]any:
		out := make(map[string]any, len(t))
		total := 0
		for k, val := range t {
			red, n := redactUnknownCounting(val, opts)
			out[k] = red
			total += n
		}
		return out, total
	case []any:
		out := make([]any, len(t))
		total := 0
		for i, val := range t {
			red, n := redactUnknownCounting(val, opts)
			out[i] = red
			total += n
		}
		return out, total
	default:
		return v, 0
	}
}

// RedactObject behaves like RedactUnknown, but additionally replaces whole
// map values whose *key name* matches the sensitive-name policy (password,
// token, apiKey, secret, auth, ...) with "[REDACTED:<keyName>]", recursively
// (spec.md §4.1).
func RedactObject(v any) any {
	red, _ := redactObjectCounting(v, DefaultOptions())
	return red
}

func redactObjectCounting(v any, opts Options) (any, int) {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		total := 0
		for k, val := range t {
			if isSensitiveKey(k) {
				out[k] = fmt.Sprintf("[REDACTED:%s]", k)
				total++
				continue
			}
			red, n := redactObjectCounting(val, opts)
			out[k] = red
			total += n
		}
		return out, total
	case []any:
		out := make([]any, len(t))
		total := 0
		for i, val := range t {
			red, n := redactObjectCounting(val, opts)
			out[i] = red
			total += n
		}
		return out, total
	case string:
		red, n := RedactStringWithOptions(t, opts)
		return red, n
	default:
		return v, 0
	}
}

// RedactWithCount runs RedactObject and also returns the number of
// redactions applied, for callers (the Writer) that need to emit a
// MemoryRedaction event only when count > 0.
func RedactWithCount(v any) (any, int) {
	return redactObjectCounting(v, DefaultOptions())
}

// VectorMetadataOptions configures RedactVectorMetadata.
type VectorMetadataOptions struct {
	// Enabled gates whether redaction runs at all; when false, the metadata
	// passes through untouched (deployments that never ship to a remote
	// backend can skip the cost entirely).
	Enabled bool
}

// RedactVectorMetadata scans only the string leaves of m (a vector record's
// metadata map) before it leaves the process for a remote vector backend.
// Non-string values pass through untouched. When opts.Enabled is false, m is
// returned unmodified (spec.md §4.1).
func RedactVectorMetadata(m map[string]any, opts VectorMetadataOptions) map[string]any {
	if !opts.Enabled || m == nil {
		return m
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok {
			red, _ := RedactString(s)
			out[k] = red
			continue
		}
		out[k] = v
	}
	return out
}
