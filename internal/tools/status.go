package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/atlasmcp/internal/atlassian"
	"github.com/HendryAvila/atlasmcp/internal/jira"
	"github.com/HendryAvila/atlasmcp/internal/journal"
	"github.com/HendryAvila/atlasmcp/internal/session"
)

// StatusTool handles the atlas_status MCP tool.
type StatusTool struct {
	jira      *jira.Client
	jiraConn  atlassian.Connection
	wikiConn  atlassian.Connection
	sessions  *session.Manager
	workspace *session.Workspace
	journal   *journal.Store
}

// NewStatusTool creates a StatusTool. store is nil when save history is
// disabled.
func NewStatusTool(jc *jira.Client, jiraConn, wikiConn atlassian.Connection, sessions *session.Manager, ws *session.Workspace, store *journal.Store) *StatusTool {
	return &StatusTool{
		jira:      jc,
		jiraConn:  jiraConn,
		wikiConn:  wikiConn,
		sessions:  sessions,
		workspace: ws,
		journal:   store,
	}
}

// Definition returns the MCP tool definition for atlas_status.
func (t *StatusTool) Definition() mcp.Tool {
	return mcp.NewTool("atlas_status",
		mcp.WithDescription(
			"Show whether Jira and Confluence are configured, which account is used, "+
				"where mirror files are written and how many documents are open. Call this first when a tool reports a configuration error.",
		),
		mcp.WithBoolean("check_connection",
			mcp.Description("Also call Jira to verify the credentials (default: false)"),
		),
	)
}

// Handle processes the atlas_status tool call.
func (t *StatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var sb strings.Builder
	sb.WriteString("## atlasmcp status\n\n")
	writeConn(&sb, "Jira", t.jiraConn)
	writeConn(&sb, "Confluence", t.wikiConn)
	fmt.Fprintf(&sb, "- Mirror directory: %s\n", t.workspace.Root())
	fmt.Fprintf(&sb, "- Open documents: %d\n", t.sessions.Len())
	switch {
	case t.journal == nil:
		sb.WriteString("- Save history: disabled\n")
	default:
		if n, err := t.journal.Count(); err != nil {
			fmt.Fprintf(&sb, "- Save history: enabled (count failed: %v)\n", err)
		} else {
			fmt.Fprintf(&sb, "- Save history: enabled, %d save(s) recorded\n", n)
		}
	}

	if boolArg(req, "check_connection", false) {
		me, err := t.jira.Myself(ctx)
		if err != nil {
			fmt.Fprintf(&sb, "\nJira connection check failed: %v\n", err)
		} else {
			fmt.Fprintf(&sb, "\nJira connection OK, signed in as %s", me.DisplayName)
			if me.EmailAddress != "" {
				fmt.Fprintf(&sb, " <%s>", me.EmailAddress)
			}
			sb.WriteString("\n")
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func writeConn(sb *strings.Builder, name string, conn atlassian.Connection) {
	if err := conn.Validate(); err != nil {
		fmt.Fprintf(sb, "- %s: not configured (%v)\n", name, err)
		return
	}
	fmt.Fprintf(sb, "- %s: %s as %s\n", name, conn.BaseURL, conn.Email)
}
