// Package masking provides structural, schema-aware secret masking for
// tool results that pkg/tooldispatch.Redact can't safely handle with
// plain token-pattern matching — a Kubernetes Secret's data values are
// base64, not token-shaped, so only a masker that actually parses the
// manifest can find and mask them without also mangling ConfigMaps or
// other harmless resources in the same result.
package masking

// Masker structurally parses a tool result and masks the fields known to
// carry secret material, leaving everything else byte-for-byte
// unchanged. Masker implementations must be defensive: a parse failure
// or unrecognized shape returns the input unmodified rather than erroring,
// since a tool result masking pass must never be the reason an
// investigation fails.
type Masker interface {
	// AppliesTo is a cheap pre-check (no parsing) deciding whether Mask
	// is worth calling at all.
	AppliesTo(data string) bool

	// Mask returns data with any secret fields it recognizes replaced,
	// or data unchanged if nothing applicable was found.
	Mask(data string) string
}
