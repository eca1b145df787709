package tooldispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// NewMCPSessionTool adapts a real MCP server tool, reached over an
// already-connected session, into the uniform Tool contract spec.md §4.8
// requires. Grounded on the teacher's Client.CallTool/extractTextContent
// pipeline (pkg/mcp/client.go, pkg/mcp/executor.go), generalized so the
// Dispatcher's redaction applies uniformly regardless of whether a tool
// is an in-process ToolFunc or a remote MCP tool. kind is passed straight
// through to Tool.Kind so the caller declares whether this MCP tool is a
// filesystem or cluster-control tool and gets the matching Dispatcher
// safety filter; pass KindGenericTool when neither applies.
func NewMCPSessionTool(session *mcpsdk.ClientSession, serverID, toolName, description string, inputSchema json.RawMessage, kind ToolKind) Tool {
	return Tool{
		Name:        fmt.Sprintf("%s.%s", serverID, toolName),
		Description: description,
		InputSchema: inputSchema,
		Kind:        kind,
		Execute: func(ctx context.Context, args json.RawMessage) (string, error) {
			var params map[string]any
			if len(args) > 0 {
				if err := json.Unmarshal(args, &params); err != nil {
					return "", &ToolError{Kind: KindValidation, Message: "tool__call arguments must be a JSON object"}
				}
			}

			result, err := session.CallTool(ctx, &mcpsdk.CallToolParams{
				Name:      toolName,
				Arguments: params,
			})
			if err != nil {
				return "", &ToolError{Kind: KindUpstream, Message: err.Error()}
			}

			text := extractTextContent(result)
			if result.IsError {
				return "", &ToolError{Kind: KindUpstream, Message: text}
			}
			return text, nil
		},
	}
}

// extractTextContent concatenates every TextContent item in an MCP
// CallToolResult, skipping non-text content (images, embedded
// resources) — mirrored from the teacher's pkg/mcp/executor.go helper.
func extractTextContent(result *mcpsdk.CallToolResult) string {
	var parts []string
	for _, c := range result.Content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			parts = append(parts, tc.Text)
		}
	}
	return strings.Join(parts, "\n")
}
