// Package tooldispatch implements Seraph's ToolDispatcher (C8): the
// single logical owner of every outbound tool connection. Workers never
// touch tools directly — they send ExecuteToolMsg over a channel and
// await a ToolResultMsg, per spec.md §4.8.
package tooldispatch

import (
	"context"
	"encoding/json"
)

// ErrorKind classifies a tool failure, per spec.md §4.8's normalized
// error shape.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindTimeout    ErrorKind = "timeout"
	KindUpstream   ErrorKind = "upstream"
	KindBlocked    ErrorKind = "blocked"
)

// ToolError is the normalized failure shape spec.md §4.8 requires: the
// message must never leak secrets (Redact is always applied before it
// reaches a caller).
type ToolError struct {
	Kind    ErrorKind
	Message string
}

func (e *ToolError) Error() string { return string(e.Kind) + ": " + e.Message }

// ToolKind tells the Dispatcher which §4.8 safety filter, if any, to run
// against a tool's arguments before Execute is invoked. A tool author
// declares its Kind; the Dispatcher — not the tool — is what enforces
// the filter, so every filesystem or cluster-control tool is gated the
// same way regardless of how it's implemented.
type ToolKind string

const (
	// KindGenericTool needs no argument-shape safety filter (e.g. a
	// read-only metrics or log-query tool with no destination path or
	// cluster verb to sanitize).
	KindGenericTool ToolKind = ""
	// KindFilesystemTool writes to or reads from a caller-supplied
	// destination path. Its args must unmarshal into FilesystemArgs.
	KindFilesystemTool ToolKind = "filesystem"
	// KindClusterTool runs a cluster-control command (verb + resource
	// kind + raw args, e.g. a kubectl-style invocation). Its args must
	// unmarshal into ClusterArgs.
	KindClusterTool ToolKind = "cluster"
)

// FilesystemArgs is the argument shape ValidateFilesystemPath checks for
// a KindFilesystemTool.
type FilesystemArgs struct {
	Path string `json:"path"`
}

// ClusterArgs is the argument shape ValidateClusterArgs checks for a
// KindClusterTool.
type ClusterArgs struct {
	Verb         string   `json:"verb"`
	ResourceKind string   `json:"resourceKind"`
	Args         []string `json:"args"`
}

// Tool is the contract every dispatched tool implements, per spec.md
// §4.8: "{name, description, inputSchema, execute(args) → result}".
// Grounded on the teacher's per-server/per-tool executor shape
// (pkg/mcp/executor.go), generalized from real MCP transport to a
// uniform in-process function plus an optional JSON-RPC wire option
// (see mcpclient.go). Kind tells the Dispatcher which safety filter to
// run before Execute is ever called.
type Tool struct {
	Name        string
	Description string
	InputSchema json.RawMessage
	Kind        ToolKind
	Execute     func(ctx context.Context, args json.RawMessage) (string, error)
}
