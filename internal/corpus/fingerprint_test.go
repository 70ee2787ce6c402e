// File path: internal/corpus/fingerprint_test.go
package corpus

import "testing"

func TestAnalysisFingerprintStable(t *testing.T) {
	options := map[string]string{"depth": "full", "profile": "gmp"}
	first := AnalysisFingerprint("tenant-a", "Store at 25C\n", options, 3)
	second := AnalysisFingerprint("tenant-a", "  Store   at 25C ", options, 3)
	if first != second {
		t.Fatalf("normalized text should produce identical fingerprints")
	}
}

func TestAnalysisFingerprintSensitivity(t *testing.T) {
	base := AnalysisFingerprint("tenant-a", "Store at 25C", nil, 3)
	cases := map[string]string{
		"tenant":  AnalysisFingerprint("tenant-b", "Store at 25C", nil, 3),
		"text":    AnalysisFingerprint("tenant-a", "Store at 30C", nil, 3),
		"options": AnalysisFingerprint("tenant-a", "Store at 25C", map[string]string{"depth": "full"}, 3),
		"version": AnalysisFingerprint("tenant-a", "Store at 25C", nil, 4),
	}
	for name, got := range cases {
		if got == base {
			t.Fatalf("changing %s should change the fingerprint", name)
		}
	}
}
