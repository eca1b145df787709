package investigation

import (
	"encoding/json"
	"regexp"
	"strings"
)

// rawReport is the JSON shape requested from the reasoning service during
// SYNTHESIS (spec.md §4.7: "{rootCauseAnalysis, impactAssessment,
// suggestedRemediation[]}").
type rawReport struct {
	RootCauseAnalysis    string   `json:"rootCauseAnalysis"`
	ImpactAssessment     string   `json:"impactAssessment"`
	SuggestedRemediation []string `json:"suggestedRemediation"`
}

var codeFence = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// ExtractReport robustly pulls a structured Report out of the reasoning
// service's free-text SYNTHESIS response, per spec.md §4.7's fallback
// chain: strip code fences → balance braces → per-field regex → skeleton
// with an "unstructured reply" flag. Never returns nil.
func ExtractReport(text string) *Report {
	if r := tryParse(stripCodeFences(text)); r != nil {
		return r
	}
	if candidate, ok := balancedBraceSubstring(text); ok {
		if r := tryParse(candidate); r != nil {
			return r
		}
	}
	if r := perFieldRegexExtract(text); r != nil {
		return r
	}
	return &Report{
		RootCauseAnalysis: strings.TrimSpace(text),
		Unstructured:      true,
	}
}

func tryParse(s string) *Report {
	var raw rawReport
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil
	}
	if raw.RootCauseAnalysis == "" && raw.ImpactAssessment == "" && len(raw.SuggestedRemediation) == 0 {
		return nil
	}
	return &Report{
		RootCauseAnalysis:    raw.RootCauseAnalysis,
		ImpactAssessment:     raw.ImpactAssessment,
		SuggestedRemediation: raw.SuggestedRemediation,
	}
}

// stripCodeFences removes a wrapping ```json ... ``` or ``` ... ``` fence,
// a common reasoning-service quirk, and falls back to the raw text if no
// fence is present.
func stripCodeFences(text string) string {
	if m := codeFence.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(text)
}

// balancedBraceSubstring scans for the first top-level balanced {...}
// span, tolerating leading/trailing prose the reasoning service added
// around the JSON object.
func balancedBraceSubstring(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
			// inside a string literal, braces don't count
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

var (
	rootCausePattern  = regexp.MustCompile(`(?is)"?rootCauseAnalysis"?\s*[:=]\s*"((?:[^"\\]|\\.)*)"`)
	impactPattern     = regexp.MustCompile(`(?is)"?impactAssessment"?\s*[:=]\s*"((?:[^"\\]|\\.)*)"`)
	remediationPattern = regexp.MustCompile(`(?is)"?suggestedRemediation"?\s*[:=]\s*\[(.*?)\]`)
	remediationItem   = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"`)
)

// perFieldRegexExtract recovers whatever fields it can find independently,
// even when the overall payload isn't valid JSON (e.g. unescaped quotes
// in the middle of one field). Returns nil if nothing at all was found.
func perFieldRegexExtract(text string) *Report {
	r := &Report{}
	found := false

	if m := rootCausePattern.FindStringSubmatch(text); m != nil {
		r.RootCauseAnalysis = unescapeJSONString(m[1])
		found = true
	}
	if m := impactPattern.FindStringSubmatch(text); m != nil {
		r.ImpactAssessment = unescapeJSONString(m[1])
		found = true
	}
	if m := remediationPattern.FindStringSubmatch(text); m != nil {
		items := remediationItem.FindAllStringSubmatch(m[1], -1)
		for _, it := range items {
			r.SuggestedRemediation = append(r.SuggestedRemediation, unescapeJSONString(it[1]))
		}
		if len(items) > 0 {
			found = true
		}
	}

	if !found {
		return nil
	}
	return r
}

func unescapeJSONString(s string) string {
	var out string
	if err := json.Unmarshal([]byte(`"`+s+`"`), &out); err != nil {
		return s
	}
	return out
}
