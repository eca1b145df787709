package tooldispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateFilesystemPath_AcceptsAllowedRoots(t *testing.T) {
	assert.NoError(t, ValidateFilesystemPath("/tmp/seraph/report-123.json"))
	assert.NoError(t, ValidateFilesystemPath("/var/tmp/seraph-out.txt"))
}

func TestValidateFilesystemPath_RejectsTraversal(t *testing.T) {
	err := ValidateFilesystemPath("/tmp/../etc/passwd")
	require := assert.New(t)
	require.Error(err)
}

func TestValidateFilesystemPath_RejectsOutsideAllowedRoots(t *testing.T) {
	assert.Error(t, ValidateFilesystemPath("/etc/passwd"))
	assert.Error(t, ValidateFilesystemPath("/home/user/.ssh/id_rsa"))
}

func TestValidateFilesystemPath_RejectsProtectedSubdirs(t *testing.T) {
	assert.Error(t, ValidateFilesystemPath("/tmp/systemd/override.conf"))
	assert.Error(t, ValidateFilesystemPath("/tmp/.X11-unix/X0"))
}

func TestValidateFilesystemPath_RejectsBackslashes(t *testing.T) {
	assert.Error(t, ValidateFilesystemPath(`/tmp\..\etc\passwd`))
}

func TestValidateFilesystemPath_RejectsURLEncodedTraversal(t *testing.T) {
	assert.Error(t, ValidateFilesystemPath("/tmp/%2e%2e/etc/passwd"))
}

func TestValidateClusterArgs_AllowsAllowlistedVerbAndResource(t *testing.T) {
	assert.NoError(t, ValidateClusterArgs("get", "pods", []string{"-n", "checkout"}))
	assert.NoError(t, ValidateClusterArgs("describe", "deployment", []string{"checkout-api"}))
}

func TestValidateClusterArgs_RejectsDisallowedVerb(t *testing.T) {
	assert.Error(t, ValidateClusterArgs("delete", "pods", nil))
	assert.Error(t, ValidateClusterArgs("apply", "deployments", nil))
}

func TestValidateClusterArgs_RejectsSecretsAndServiceAccounts(t *testing.T) {
	assert.Error(t, ValidateClusterArgs("get", "secrets", nil))
	assert.Error(t, ValidateClusterArgs("get", "serviceaccounts", nil))
}

func TestValidateClusterArgs_RejectsUnknownResourceKind(t *testing.T) {
	assert.Error(t, ValidateClusterArgs("get", "customresourcedefinitions", nil))
}

func TestValidateClusterArgs_RejectsShellMetacharacters(t *testing.T) {
	assert.Error(t, ValidateClusterArgs("get", "pods", []string{"; rm -rf /"}))
	assert.Error(t, ValidateClusterArgs("get", "pods", []string{"$(whoami)"}))
}

func TestValidateClusterArgs_RejectsIdentityRedirectFlags(t *testing.T) {
	assert.Error(t, ValidateClusterArgs("get", "pods", []string{"--kubeconfig=/tmp/evil"}))
	assert.Error(t, ValidateClusterArgs("get", "pods", []string{"--token=stolen"}))
}
