package masking

import (
	"encoding/json"
	"io"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// MaskedSecretValue replaces every value of a masked Kubernetes Secret's
// data/stringData fields, and any secret payload found embedded in an
// annotation (e.g. kubectl's last-applied-configuration).
const MaskedSecretValue = "[MASKED_SECRET_DATA]"

var (
	yamlSecretPattern = regexp.MustCompile(`(?m)^kind:\s*Secret\s*$`)
	jsonSecretPattern = regexp.MustCompile(`"kind"\s*:\s*"Secret"`)
)

// KubernetesSecretMasker masks a cluster-inspection tool's Secret output
// (single manifest, SecretList, or a mixed List of resources) while
// leaving ConfigMaps, Pods, and everything else in the same result
// untouched. A cluster-control tool (kubectl get/describe, and similar)
// is the one class of investigation tool Seraph lets an investigation
// invoke that can return this shape (spec.md §4.8's allow-listed
// resource kinds exclude secrets themselves, but a Secret can still
// surface embedded in a List response or an annotation on another
// resource).
type KubernetesSecretMasker struct{}

// AppliesTo is the cheap pre-check: a result can't carry a Secret unless
// it mentions "Secret" and has a recognizable kind: field at all.
func (m *KubernetesSecretMasker) AppliesTo(data string) bool {
	if !strings.Contains(data, "Secret") {
		return false
	}
	return yamlSecretPattern.MatchString(data) || jsonSecretPattern.MatchString(data)
}

// Mask detects JSON vs. YAML and applies the matching parser, returning
// data unchanged if neither parse finds anything to mask.
func (m *KubernetesSecretMasker) Mask(data string) string {
	trimmed := strings.TrimSpace(data)

	// JSON is checked first when the input looks like it, so the YAML
	// decoder (which also accepts JSON) never gets a chance to
	// re-serialize it with YAML formatting.
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		if masked := m.maskJSON(data); masked != data {
			return masked
		}
	}
	if masked := m.maskYAML(data); masked != data {
		return masked
	}
	return data
}

func (m *KubernetesSecretMasker) maskYAML(data string) string {
	decoder := yaml.NewDecoder(strings.NewReader(data))
	var docs []map[string]any
	masked := false

	for {
		var doc map[string]any
		switch err := decoder.Decode(&doc); {
		case err == io.EOF:
			if !masked || len(docs) == 0 {
				return data
			}
			return reencodeYAML(docs, data)
		case err != nil:
			return data // not valid YAML — leave untouched
		case doc == nil:
			continue
		}
		if maskResource(doc) {
			masked = true
		}
		docs = append(docs, doc)
	}
}

func reencodeYAML(docs []map[string]any, original string) string {
	var buf strings.Builder
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	for _, doc := range docs {
		if err := enc.Encode(doc); err != nil {
			return original
		}
	}
	if err := enc.Close(); err != nil {
		return original
	}

	result := strings.TrimRight(buf.String(), "\n")
	if strings.HasSuffix(original, "\n") {
		result += "\n"
	}
	return result
}

func (m *KubernetesSecretMasker) maskJSON(data string) string {
	var obj map[string]any
	if json.Unmarshal([]byte(data), &obj) != nil {
		return data
	}
	if !maskResource(obj) {
		return data
	}

	result, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return data
	}
	out := string(result)
	if strings.HasSuffix(data, "\n") {
		out += "\n"
	}
	return out
}

// maskResource masks resource in place if it's a Secret, a SecretList,
// or a List that contains either, and reports whether anything changed.
func maskResource(resource map[string]any) bool {
	kind, _ := resource["kind"].(string)
	switch {
	case kind == "Secret":
		maskSecretDataFields(resource)
		maskAnnotationSecrets(resource)
		return true
	case kind == "SecretList":
		masked := false
		for _, item := range resourceItems(resource) {
			maskSecretDataFields(item)
			maskAnnotationSecrets(item)
			masked = true
		}
		return masked
	case kind == "List" || strings.HasSuffix(kind, "List"):
		masked := false
		for _, item := range resourceItems(resource) {
			if itemKind, _ := item["kind"].(string); itemKind == "Secret" {
				maskSecretDataFields(item)
				maskAnnotationSecrets(item)
				masked = true
			}
		}
		return masked
	default:
		return false
	}
}

func resourceItems(resource map[string]any) []map[string]any {
	items, ok := resource["items"].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// maskSecretDataFields replaces every value under data/stringData with
// MaskedSecretValue, keeping the keys so a caller can still see which
// fields were present.
func maskSecretDataFields(resource map[string]any) {
	for _, field := range []string{"data", "stringData"} {
		dataMap, ok := resource[field].(map[string]any)
		if !ok {
			continue
		}
		for key := range dataMap {
			dataMap[key] = MaskedSecretValue
		}
	}
}

// maskAnnotationSecrets catches a Secret manifest embedded as JSON inside
// an annotation value — kubectl's kubectl.kubernetes.io/last-applied-
// configuration is the common case when a Secret was applied with
// `kubectl apply`.
func maskAnnotationSecrets(resource map[string]any) {
	metadata, ok := resource["metadata"].(map[string]any)
	if !ok {
		return
	}
	annotations, ok := metadata["annotations"].(map[string]any)
	if !ok {
		return
	}

	for key, val := range annotations {
		strVal, ok := val.(string)
		if !ok || !strings.Contains(strVal, "Secret") {
			continue
		}
		var embedded map[string]any
		if json.Unmarshal([]byte(strVal), &embedded) != nil {
			continue
		}
		kind, _ := embedded["kind"].(string)
		if kind != "Secret" {
			continue
		}
		maskSecretDataFields(embedded)
		if reserialized, err := json.Marshal(embedded); err == nil {
			annotations[key] = string(reserialized)
		}
	}
}
