package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/atlasmcp/internal/confluence"
)

// ─── ConfluenceGetPageTool ───────────────────────────────────────────────────

// ConfluenceGetPageTool handles the confluence_get_page MCP tool.
type ConfluenceGetPageTool struct {
	client *confluence.Client
}

// NewConfluenceGetPageTool creates a ConfluenceGetPageTool.
func NewConfluenceGetPageTool(client *confluence.Client) *ConfluenceGetPageTool {
	return &ConfluenceGetPageTool{client: client}
}

// Definition returns the MCP tool definition for confluence_get_page.
func (t *ConfluenceGetPageTool) Definition() mcp.Tool {
	return mcp.NewTool("confluence_get_page",
		mcp.WithDescription(
			"Read a Confluence page: title, space, version, location in the page tree and the storage-format body. "+
				"Read-only; use atlas_open to edit.",
		),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Page id"),
		),
		mcp.WithBoolean("include_body",
			mcp.Description("Include the page body (default: true)"),
		),
	)
}

// Handle processes the confluence_get_page tool call.
func (t *ConfluenceGetPageTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := stringArg(req, "id")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	page, err := t.client.GetPage(ctx, id)
	if err != nil {
		return failure("reading page", err), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", page.Title)
	fmt.Fprintf(&sb, "- ID: %s\n", page.ID)
	if page.Space != nil {
		fmt.Fprintf(&sb, "- Space: %s (%s)\n", page.Space.Key, orDash(page.Space.Name))
	}
	fmt.Fprintf(&sb, "- Version: %d\n", page.VersionNumber())
	if page.Version != nil && page.Version.By != nil {
		fmt.Fprintf(&sb, "- Last edited by: %s (%s)\n", page.Version.By.DisplayName, page.Version.When)
	}
	if len(page.Ancestors) > 0 {
		titles := make([]string, 0, len(page.Ancestors))
		for _, a := range page.Ancestors {
			titles = append(titles, orDash(a.Title))
		}
		fmt.Fprintf(&sb, "- Path: %s\n", strings.Join(titles, " / "))
	}
	fmt.Fprintf(&sb, "- URL: %s\n", t.client.WebURL(page))

	if boolArg(req, "include_body", true) {
		sb.WriteString("\n## Body (storage format)\n\n")
		sb.WriteString(page.Body.StorageValue())
		sb.WriteString("\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// ─── ConfluenceSearchTool ────────────────────────────────────────────────────

// ConfluenceSearchTool handles the confluence_search MCP tool.
type ConfluenceSearchTool struct {
	client *confluence.Client
}

// NewConfluenceSearchTool creates a ConfluenceSearchTool.
func NewConfluenceSearchTool(client *confluence.Client) *ConfluenceSearchTool {
	return &ConfluenceSearchTool{client: client}
}

// Definition returns the MCP tool definition for confluence_search.
func (t *ConfluenceSearchTool) Definition() mcp.Tool {
	return mcp.NewTool("confluence_search",
		mcp.WithDescription(
			"Search Confluence with CQL, e.g. 'type = page AND space = DOCS AND text ~ \"onboarding\"'. "+
				"Plain words are searched as text.",
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("CQL query or plain search words"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum results (default: 20)"),
		),
	)
}

// Handle processes the confluence_search tool call.
func (t *ConfluenceSearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := stringArg(req, "query")
	if query == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}
	cql := toCQL(query)

	res, err := t.client.Search(ctx, cql, intArg(req, "limit", 20))
	if err != nil {
		return failure("searching content", err), nil
	}
	if len(res.Results) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No content matches: %s", cql)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Results for %s (%d):\n\n", cql, len(res.Results))
	for _, hit := range res.Results {
		id := ""
		if hit.Content != nil {
			id = hit.Content.ID
		}
		fmt.Fprintf(&sb, "- %s [id %s]", hit.Title, orDash(id))
		if hit.LastModified != "" {
			fmt.Fprintf(&sb, " modified %s", hit.LastModified)
		}
		sb.WriteString("\n")
		if hit.Excerpt != "" {
			fmt.Fprintf(&sb, "  %s\n", truncate(strings.Join(strings.Fields(hit.Excerpt), " "), 200))
		}
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// cqlOperators mark a query as CQL rather than plain words.
var cqlOperators = []string{"=", "~", " and ", " or ", " order by ", " in ("}

// toCQL passes CQL through and turns plain words into a text search.
func toCQL(query string) string {
	lower := strings.ToLower(query)
	for _, op := range cqlOperators {
		if strings.Contains(lower, op) {
			return query
		}
	}
	return fmt.Sprintf("text ~ %q", query)
}

// ─── ConfluenceSpacesTool ────────────────────────────────────────────────────

// ConfluenceSpacesTool handles the confluence_spaces MCP tool.
type ConfluenceSpacesTool struct {
	client *confluence.Client
}

// NewConfluenceSpacesTool creates a ConfluenceSpacesTool.
func NewConfluenceSpacesTool(client *confluence.Client) *ConfluenceSpacesTool {
	return &ConfluenceSpacesTool{client: client}
}

// Definition returns the MCP tool definition for confluence_spaces.
func (t *ConfluenceSpacesTool) Definition() mcp.Tool {
	return mcp.NewTool("confluence_spaces",
		mcp.WithDescription("List Confluence spaces visible to the configured account."),
		mcp.WithNumber("limit",
			mcp.Description("Maximum spaces (default: 25)"),
		),
	)
}

// Handle processes the confluence_spaces tool call.
func (t *ConfluenceSpacesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	spaces, err := t.client.Spaces(ctx, intArg(req, "limit", 25))
	if err != nil {
		return failure("listing spaces", err), nil
	}
	if len(spaces) == 0 {
		return mcp.NewToolResultText("No spaces visible."), nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Spaces (%d):\n\n", len(spaces))
	for _, s := range spaces {
		fmt.Fprintf(&sb, "- %s: %s", s.Key, s.Name)
		if s.Type != "" {
			fmt.Fprintf(&sb, " (%s)", s.Type)
		}
		sb.WriteString("\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// ─── ConfluenceChildrenTool ──────────────────────────────────────────────────

// ConfluenceChildrenTool handles the confluence_children MCP tool.
type ConfluenceChildrenTool struct {
	client *confluence.Client
}

// NewConfluenceChildrenTool creates a ConfluenceChildrenTool.
func NewConfluenceChildrenTool(client *confluence.Client) *ConfluenceChildrenTool {
	return &ConfluenceChildrenTool{client: client}
}

// Definition returns the MCP tool definition for confluence_children.
func (t *ConfluenceChildrenTool) Definition() mcp.Tool {
	return mcp.NewTool("confluence_children",
		mcp.WithDescription("List the direct child pages of a Confluence page."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Parent page id"),
		),
	)
}

// Handle processes the confluence_children tool call.
func (t *ConfluenceChildrenTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := stringArg(req, "id")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}

	children, err := t.client.Children(ctx, id)
	if err != nil {
		return failure("listing child pages", err), nil
	}
	if len(children) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("Page %s has no child pages.", id)), nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Child pages of %s (%d):\n\n", id, len(children))
	for _, p := range children {
		fmt.Fprintf(&sb, "- %s: %s (v%d)\n", p.ID, p.Title, p.VersionNumber())
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// ─── ConfluenceAddCommentTool ────────────────────────────────────────────────

// ConfluenceAddCommentTool handles the confluence_add_comment MCP tool.
type ConfluenceAddCommentTool struct {
	client *confluence.Client
}

// NewConfluenceAddCommentTool creates a ConfluenceAddCommentTool.
func NewConfluenceAddCommentTool(client *confluence.Client) *ConfluenceAddCommentTool {
	return &ConfluenceAddCommentTool{client: client}
}

// Definition returns the MCP tool definition for confluence_add_comment.
func (t *ConfluenceAddCommentTool) Definition() mcp.Tool {
	return mcp.NewTool("confluence_add_comment",
		mcp.WithDescription("Add a footer comment to a Confluence page. The body is storage-format XHTML, e.g. '<p>Looks good</p>'."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Page id"),
		),
		mcp.WithString("body",
			mcp.Required(),
			mcp.Description("Comment body in storage format"),
		),
	)
}

// Handle processes the confluence_add_comment tool call.
func (t *ConfluenceAddCommentTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := stringArg(req, "id")
	body := strings.TrimSpace(req.GetString("body", ""))
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}
	if body == "" {
		return mcp.NewToolResultError("'body' is required"), nil
	}
	if !strings.HasPrefix(body, "<") {
		body = "<p>" + body + "</p>"
	}

	c, err := t.client.AddComment(ctx, id, body)
	if err != nil {
		return failure("adding comment", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Comment %s added to page %s.", c.ID, id)), nil
}
