package tooldispatch

import (
	"regexp"

	"github.com/seraphhq/seraph/pkg/masking"
)

// RedactedToken is the replacement for any token-shaped secret found in a
// tool error message or result (spec.md §4.8: "tokens in strings are
// replaced with REDACTED_TOKEN"), adapted from the teacher's
// pkg/masking.MaskedSecretValue constant/substitution idiom — generalized
// from structured Kubernetes Secret field values to inline string tokens.
const RedactedToken = "REDACTED_TOKEN"

// tokenPatterns match common token/credential shapes: bearer tokens, API
// keys passed as key=value or key: value, and JWTs (three base64url
// segments). Order matters only in that all patterns are applied, so
// overlapping matches are fine.
var tokenPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bBearer\s+[A-Za-z0-9\-_.~+/]+=*`),
	regexp.MustCompile(`(?i)\b(api[_-]?key|token|secret|password|authorization)\s*[:=]\s*["']?[A-Za-z0-9\-_./+]{8,}["']?`),
	regexp.MustCompile(`\beyJ[A-Za-z0-9\-_]+\.[A-Za-z0-9\-_]+\.[A-Za-z0-9\-_]+\b`), // JWT
	regexp.MustCompile(`\bsk-[A-Za-z0-9]{16,}\b`),                                  // OpenAI/Anthropic-style API keys
	regexp.MustCompile(`\bghp_[A-Za-z0-9]{20,}\b`),                                 // GitHub PAT
}

// structuredMaskers run before the token-pattern pass: tool results that
// are themselves structured Kubernetes manifests (the common shape for a
// kubectl-style tool's output) get field-aware masking instead of having
// their whole Secret.data values pattern-matched as tokens.
var structuredMaskers = []masking.Masker{
	&masking.KubernetesSecretMasker{},
}

// Redact replaces every token-shaped secret found in s with RedactedToken,
// after first applying any structured masking.Masker whose AppliesTo
// matches (spec.md §4.8: "tokens in strings are replaced with
// REDACTED_TOKEN"). Defensive like the teacher's maskers: on no match, s
// is returned unchanged.
func Redact(s string) string {
	out := s
	for _, m := range structuredMaskers {
		if m.AppliesTo(out) {
			out = m.Mask(out)
		}
	}
	for _, p := range tokenPatterns {
		out = p.ReplaceAllString(out, RedactedToken)
	}
	return out
}
