package masking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKubernetesSecretMasker_AppliesTo(t *testing.T) {
	m := &KubernetesSecretMasker{}

	assert.True(t, m.AppliesTo("kind: Secret\napiVersion: v1\n"))
	assert.True(t, m.AppliesTo(`{"kind":"Secret","apiVersion":"v1"}`))
	assert.False(t, m.AppliesTo("kind: ConfigMap\napiVersion: v1\n"))
	assert.False(t, m.AppliesTo("pod checkout-7f9c is CrashLoopBackOff"))
}

func TestKubernetesSecretMasker_MasksYAMLSecretData(t *testing.T) {
	m := &KubernetesSecretMasker{}
	manifest := `kind: Secret
apiVersion: v1
metadata:
  name: db-creds
  namespace: checkout
data:
  password: cGFzc3dvcmQxMjM=
  username: YWRtaW4=
`
	out := m.Mask(manifest)
	assert.NotContains(t, out, "cGFzc3dvcmQxMjM=")
	assert.NotContains(t, out, "YWRtaW4=")
	assert.Contains(t, out, MaskedSecretValue)
	assert.Contains(t, out, "db-creds") // metadata untouched
}

func TestKubernetesSecretMasker_MasksStringDataField(t *testing.T) {
	m := &KubernetesSecretMasker{}
	manifest := "kind: Secret\napiVersion: v1\nstringData:\n  token: shhh-dont-tell\n"
	out := m.Mask(manifest)
	assert.NotContains(t, out, "shhh-dont-tell")
	assert.Contains(t, out, MaskedSecretValue)
}

func TestKubernetesSecretMasker_LeavesConfigMapUntouched(t *testing.T) {
	m := &KubernetesSecretMasker{}
	manifest := "kind: ConfigMap\napiVersion: v1\ndata:\n  log-level: debug\n"
	out := m.Mask(manifest)
	assert.Equal(t, manifest, out)
}

func TestKubernetesSecretMasker_MasksJSONSecretData(t *testing.T) {
	m := &KubernetesSecretMasker{}
	manifest := `{"kind":"Secret","apiVersion":"v1","metadata":{"name":"db-creds"},"data":{"password":"cGFzc3dvcmQxMjM="}}`
	out := m.Mask(manifest)
	assert.NotContains(t, out, "cGFzc3dvcmQxMjM=")
	assert.Contains(t, out, MaskedSecretValue)
}

func TestKubernetesSecretMasker_MasksSecretListItems(t *testing.T) {
	m := &KubernetesSecretMasker{}
	manifest := `kind: SecretList
apiVersion: v1
items:
  - metadata:
      name: db-creds
    data:
      password: cGFzc3dvcmQxMjM=
  - metadata:
      name: api-creds
    data:
      key: c2VjcmV0a2V5
`
	out := m.Mask(manifest)
	assert.NotContains(t, out, "cGFzc3dvcmQxMjM=")
	assert.NotContains(t, out, "c2VjcmV0a2V5")
}

func TestKubernetesSecretMasker_MasksSecretWithinMixedList(t *testing.T) {
	m := &KubernetesSecretMasker{}
	manifest := `kind: List
apiVersion: v1
items:
  - kind: ConfigMap
    metadata:
      name: settings
    data:
      log-level: debug
  - kind: Secret
    metadata:
      name: db-creds
    data:
      password: cGFzc3dvcmQxMjM=
`
	out := m.Mask(manifest)
	assert.NotContains(t, out, "cGFzc3dvcmQxMjM=")
	assert.Contains(t, out, "log-level: debug") // ConfigMap entry untouched
}

func TestKubernetesSecretMasker_MasksEmbeddedAnnotationSecret(t *testing.T) {
	m := &KubernetesSecretMasker{}
	manifest := `kind: Secret
apiVersion: v1
metadata:
  name: db-creds
  annotations:
    kubectl.kubernetes.io/last-applied-configuration: '{"kind":"Secret","data":{"password":"cGFzc3dvcmQxMjM="}}'
data:
  password: cGFzc3dvcmQxMjM=
`
	out := m.Mask(manifest)
	assert.NotContains(t, out, "cGFzc3dvcmQxMjM=")
}

func TestKubernetesSecretMasker_MalformedInputReturnsUnchanged(t *testing.T) {
	m := &KubernetesSecretMasker{}
	broken := "kind: Secret\n  this is not: [valid yaml"
	assert.Equal(t, broken, m.Mask(broken))
}

func TestKubernetesSecretMasker_PreservesTrailingNewline(t *testing.T) {
	m := &KubernetesSecretMasker{}
	manifest := "kind: Secret\napiVersion: v1\ndata:\n  password: cGFzc3dvcmQxMjM=\n"
	out := m.Mask(manifest)
	require.True(t, len(out) > 0)
	assert.Equal(t, byte('\n'), out[len(out)-1])
}
