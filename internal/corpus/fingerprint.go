// File path: internal/corpus/fingerprint.go
package corpus

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
)

// NormalizeText collapses whitespace runs to single spaces and trims the
// result, so cosmetic formatting differences do not change fingerprints.
func NormalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// AnalysisFingerprint derives the stable cache key for an analysis request.
// It hashes the normalized protocol text, the sorted option set, and the
// tenant's index version, so any document-set change invalidates prior
// results. Fields are NUL-separated to keep the encoding unambiguous.
func AnalysisFingerprint(tenantID, protocolText string, options map[string]string, indexVersion uint64) string {
	hasher := sha256.New()
	write := func(parts ...string) {
		for _, part := range parts {
			_, _ = hasher.Write([]byte(part))
			_, _ = hasher.Write([]byte{0})
		}
	}
	write(strings.TrimSpace(tenantID), NormalizeText(protocolText))
	if len(options) > 0 {
		keys := make([]string, 0, len(options))
		for k := range options {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			write(k, options[k])
		}
	}
	write(strconv.FormatUint(indexVersion, 10))
	return hex.EncodeToString(hasher.Sum(nil))
}
