package tooldispatch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// checkSafety is the Dispatcher's single gate onto ValidateFilesystemPath
// and ValidateClusterArgs, run from execute() before any tool's Execute
// is reached (spec.md §4.8: safety filters are enforced in the
// Dispatcher, not left to individual tools). kind selects which filter,
// if any, applies; a malformed args payload for a filtered kind is
// itself blocked rather than allowed through unchecked.
func checkSafety(kind ToolKind, args json.RawMessage) *ToolError {
	switch kind {
	case KindFilesystemTool:
		var fa FilesystemArgs
		if len(args) == 0 || json.Unmarshal(args, &fa) != nil || fa.Path == "" {
			return &ToolError{Kind: KindBlocked, Message: "filesystem tool call is missing a destination path"}
		}
		if err := ValidateFilesystemPath(fa.Path); err != nil {
			return err.(*ToolError)
		}
	case KindClusterTool:
		var ca ClusterArgs
		if len(args) == 0 || json.Unmarshal(args, &ca) != nil || ca.Verb == "" || ca.ResourceKind == "" {
			return &ToolError{Kind: KindBlocked, Message: "cluster tool call is missing a verb or resource kind"}
		}
		if err := ValidateClusterArgs(ca.Verb, ca.ResourceKind, ca.Args); err != nil {
			return err.(*ToolError)
		}
	}
	return nil
}

// protectedSubdirs are destination path components that are never
// allowed regardless of their parent, per spec.md §4.8.
var protectedSubdirs = map[string]bool{
	"systemd":    true,
	".X11-unix":  true,
	".ICE-unix":  true,
	".Test-unix": true,
}

// allowedRoots are the only filesystem roots a destination path may
// canonically resolve under (spec.md §4.8).
var allowedRoots = []string{"/tmp", "/var/tmp"}

// ValidateFilesystemPath enforces spec.md §4.8's filesystem safety
// filter: the path must canonically lie under an allowed root, must not
// contain traversal sequences (including URL-encoded ones) or
// backslashes, must not touch a protected subdirectory, and — if it
// exists — must not be a symlink resolving outside the allow-list.
func ValidateFilesystemPath(path string) error {
	if strings.Contains(path, "..") {
		return &ToolError{Kind: KindBlocked, Message: "Path traversal detected"}
	}
	if strings.Contains(strings.ToLower(path), "%2e%2e") {
		return &ToolError{Kind: KindBlocked, Message: "Path traversal detected: url-encoded sequence rejected"}
	}
	if strings.Contains(path, "\\") {
		return &ToolError{Kind: KindBlocked, Message: "backslash path separators rejected on posix targets"}
	}

	for _, part := range strings.Split(path, "/") {
		if protectedSubdirs[part] {
			return &ToolError{Kind: KindBlocked, Message: "path touches a protected system directory"}
		}
	}

	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join("/tmp", abs)
	}
	clean := filepath.Clean(abs)

	if !underAllowedRoot(clean) {
		return &ToolError{Kind: KindBlocked, Message: "destination must canonically lie under /tmp or /var/tmp"}
	}

	if resolved, err := filepath.EvalSymlinks(clean); err == nil {
		if !underAllowedRoot(resolved) {
			return &ToolError{Kind: KindBlocked, Message: "symlink resolves outside the allowed destination roots"}
		}
	} else if !os.IsNotExist(err) {
		return &ToolError{Kind: KindBlocked, Message: "unable to resolve destination path"}
	}

	return nil
}

func underAllowedRoot(clean string) bool {
	for _, root := range allowedRoots {
		if clean == root || strings.HasPrefix(clean, root+"/") {
			return true
		}
	}
	return false
}

// allowedVerbs and allowedResourceKinds implement spec.md §4.8's
// cluster-control tool allow-lists. secrets and serviceaccounts are
// explicitly excluded from allowedResourceKinds.
var allowedVerbs = map[string]bool{
	"get":     true,
	"describe": true,
	"logs":    true,
	"top":     true,
	"explain": true,
}

var allowedResourceKinds = map[string]bool{
	"pod":         true,
	"pods":        true,
	"deployment":  true,
	"deployments": true,
	"service":     true,
	"services":    true,
	"node":        true,
	"nodes":       true,
	"namespace":   true,
	"namespaces":  true,
	"event":       true,
	"events":      true,
	"configmap":   true,
	"configmaps":  true,
	"job":         true,
	"jobs":        true,
	"replicaset":  true,
	"replicasets": true,
	"statefulset": true,
	"statefulsets": true,
	"daemonset":    true,
	"daemonsets":   true,
	"ingress":      true,
	"ingresses":    true,
}

// identityRedirectFlags are CLI flags that would let a cluster-control
// tool call escape its configured credentials, per spec.md §4.8.
var identityRedirectFlags = []string{
	"--kubeconfig", "--token", "--certificate-authority",
	"--client-certificate", "--client-key", "--as", "--as-group",
}

var shellMetacharacters = []string{";", "&&", "||", "|", "`", "$(", ">", "<", "\n"}

// ValidateClusterArgs enforces spec.md §4.8's cluster-control tool
// argument sanitization: strip shell metacharacters, allow-list verbs,
// allow-list resource kinds (secrets/serviceaccounts blocked), and reject
// identity-redirecting flags.
func ValidateClusterArgs(verb, resourceKind string, args []string) error {
	if !allowedVerbs[strings.ToLower(verb)] {
		return &ToolError{Kind: KindBlocked, Message: fmt.Sprintf("verb %q is not allow-listed", verb)}
	}

	kind := strings.ToLower(resourceKind)
	if kind == "secret" || kind == "secrets" || kind == "serviceaccount" || kind == "serviceaccounts" {
		return &ToolError{Kind: KindBlocked, Message: fmt.Sprintf("resource kind %q is explicitly blocked", resourceKind)}
	}
	if !allowedResourceKinds[kind] {
		return &ToolError{Kind: KindBlocked, Message: fmt.Sprintf("resource kind %q is not allow-listed", resourceKind)}
	}

	for _, a := range args {
		for _, meta := range shellMetacharacters {
			if strings.Contains(a, meta) {
				return &ToolError{Kind: KindBlocked, Message: "shell metacharacter rejected in argument"}
			}
		}
		lower := strings.ToLower(a)
		for _, flag := range identityRedirectFlags {
			if strings.HasPrefix(lower, flag) {
				return &ToolError{Kind: KindBlocked, Message: fmt.Sprintf("flag %q redirects tool identity and is rejected", flag)}
			}
		}
	}

	return nil
}
