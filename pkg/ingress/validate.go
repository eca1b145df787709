package ingress

import "strings"

// injectionSignatures are substrings that mark a log payload as an
// attempted injection rather than log content (spec.md §4.10: "reject
// payloads matching known injection signatures (eval/exec calls, script
// tags, templated expressions)"). A plain substring/prefix scan is used
// rather than a library: no WAF-lite package appears anywhere in the
// pack, so this stays on the standard library by necessity rather than
// by default.
var injectionSignatures = []string{
	"eval(",
	"exec(",
	"<script",
	"${",
	"#{",
}

// containsInjectionSignature reports whether body contains any of the
// known injection markers, case-insensitively.
func containsInjectionSignature(body string) bool {
	lower := strings.ToLower(body)
	for _, sig := range injectionSignatures {
		if strings.Contains(lower, sig) {
			return true
		}
	}
	return false
}
