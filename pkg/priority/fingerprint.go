package priority

import (
	"hash/fnv"
	"regexp"
	"strconv"
	"strings"
)

// normalizeRe strips digit runs and repeated whitespace so that two log
// lines differing only in an embedded timestamp, request id, or count
// still normalize to the same fingerprint input.
var normalizeRe = regexp.MustCompile(`\d+`)

func normalize(s string) string {
	s = normalizeRe.ReplaceAllString(s, "#")
	s = strings.Join(strings.Fields(s), " ")
	return strings.ToLower(strings.TrimSpace(s))
}

// Fingerprint computes a stable fingerprint over normalized log text plus
// key metadata, used by the Deduplicator (C5) and as the exact-match key
// input for the SimilarityCache (C2).
func Fingerprint(log, service, severity string) string {
	h := fnv.New64a()
	h.Write([]byte(normalize(log)))
	h.Write([]byte{0})
	h.Write([]byte(strings.ToLower(service)))
	h.Write([]byte{0})
	h.Write([]byte(strings.ToLower(severity)))
	return strconv.FormatUint(h.Sum64(), 16)
}
