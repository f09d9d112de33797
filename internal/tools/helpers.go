// Package tools implements the MCP tool handlers of atlasmcp.
//
// Each tool is a struct that receives its dependencies through its
// constructor, exposes Definition() for registration and Handle() for
// calls. User-facing failures are returned as tool errors with a nil Go
// error, so the host shows them to the model instead of aborting.
package tools

import (
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cast"

	"github.com/HendryAvila/atlasmcp/internal/atlassian"
	"github.com/HendryAvila/atlasmcp/internal/mirror"
)

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not numeric. Hosts send JSON numbers
// as float64, some send numeric strings.
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	raw, ok := req.GetArguments()[key]
	if !ok || raw == nil {
		return defaultVal
	}
	n, err := cast.ToIntE(raw)
	if err != nil {
		return defaultVal
	}
	return n
}

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// stringArg returns a trimmed string argument.
func stringArg(req mcp.CallToolRequest, key string) string {
	return strings.TrimSpace(req.GetString(key, ""))
}

// kindArg reads the required "kind" argument.
func kindArg(req mcp.CallToolRequest) (mirror.Kind, *mcp.CallToolResult) {
	raw := stringArg(req, "kind")
	if raw == "" {
		return "", mcp.NewToolResultError("'kind' is required (issue or page)")
	}
	kind, err := mirror.ParseKind(raw)
	if err != nil {
		return "", mcp.NewToolResultError(err.Error())
	}
	return kind, nil
}

// kindOption is the shared schema of the "kind" argument.
func kindOption(required bool) mcp.ToolOption {
	opts := []mcp.PropertyOption{
		mcp.Description("Entity kind: 'issue' (Jira) or 'page' (Confluence)"),
		mcp.Enum(string(mirror.KindIssue), string(mirror.KindPage)),
	}
	if required {
		opts = append(opts, mcp.Required())
	}
	return mcp.WithString("kind", opts...)
}

// failure formats an operation error for the model, with a next step for
// the error classes the model can act on.
func failure(action string, err error) *mcp.CallToolResult {
	msg := fmt.Sprintf("%s: %v", action, err)
	switch atlassian.CodeOf(err) {
	case atlassian.CodeConfiguration:
		msg += "\nThe connection is not configured; call atlas_status to see which settings are missing."
	case atlassian.CodeNotFound:
		msg += "\nCheck the identifier, or search for it first."
	case atlassian.CodeVersionConflict:
		msg += "\nSomeone else saved in between; re-open the document and apply your edit again."
	}
	return mcp.NewToolResultError(msg)
}

// truncate shortens s to n runes, marking the cut.
func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
