package redact

import (
	"github.com/zricethezav/gitleaks/v8/detect"
)

// gitleaksConfidence is deliberately below every curated rule above so a
// gitleaks-only hit never displaces a named-kind match on overlap, but still
// catches secret shapes the curated patterns don't name.
const gitleaksConfidence = 0.6

// scanGitleaks runs the bundled Gitleaks ruleset (800+ patterns) over s as a
// broad-coverage supplement to the curated rules in scanner.go, following
// the same detector construction as pkg/secrets/detector.go. Detector
// construction failures are swallowed: gitleaks is a supplement, never a
// hard dependency of the redaction path (best-effort per §4.1).
func scanGitleaks(s string) []Finding {
	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil
	}

	defer func() { _ = recover() }()

	gitleaksFindings := detector.DetectString(s)
	if len(gitleaksFindings) == 0 {
		return nil
	}

	lineStarts := computeLineStarts(s)
	out := make([]Finding, 0, len(gitleaksFindings))
	for _, f := range gitleaksFindings {
		start := offsetOf(lineStarts, f.StartLine, f.StartColumn)
		end := offsetOf(lineStarts, f.StartLine, f.StartColumn+len(f.Secret))
		if start < 0 || end < 0 || end <= start || end > len(s) {
			continue
		}
		out = append(out, Finding{
			Kind:       Kind("gitleaks:" + f.RuleID),
			Confidence: gitleaksConfidence,
			Start:      start,
			End:        end,
		})
	}
	return out
}

// computeLineStarts returns the byte offset that line i (1-indexed) begins at.
func computeLineStarts(s string) []int {
	starts := []int{0, 0} // index 0 unused, line 1 starts at 0
	for i, r := range s {
		if r == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

func offsetOf(lineStarts []int, line, col int) int {
	if line < 1 || line >= len(lineStarts) {
		return -1
	}
	return lineStarts[line] + col
}

// scanWithGitleaks returns curated-rule findings merged with the Gitleaks
// supplement, after overlap resolution. Used by Redact* when the
// UseGitleaksSupplement option is enabled.
func scanWithGitleaks(s string) []Finding {
	findings := append(scanRules(s), scanGitleaks(s)...)
	return resolveOverlaps(findings)
}

func scanRules(s string) []Finding {
	var all []Finding
	for _, rule := range rules {
		all = append(all, scanRule(s, rule)...)
	}
	return all
}
