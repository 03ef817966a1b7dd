package redact

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScanWithGitleaksNeverPanics(t *testing.T) {
	require.NotPanics(t, func() {
		scanWithGitleaks("some ordinary text with no secrets in it at all")
	})
}

func TestScanWithGitleaksPrefersCuratedKindOnOverlap(t *testing.T) {
	s := "openai key: sk-abcdefghijklmnopqrstuvwxyz123456789012"
	findings := scanWithGitleaks(s)
	require.NotEmpty(t, findings)

	for _, f := range findings {
		if f.Start <= len(s) && f.Kind == KindOpenAIAPIKey {
			return
		}
	}
	t.Fatalf("expected curated openai-api-key finding to survive merge with gitleaks supplement, got %+v", findings)
}
