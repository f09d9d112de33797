package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/atlasmcp/internal/jira"
)

// ─── JiraGetIssueTool ────────────────────────────────────────────────────────

// JiraGetIssueTool handles the jira_get_issue MCP tool.
type JiraGetIssueTool struct {
	client *jira.Client
}

// NewJiraGetIssueTool creates a JiraGetIssueTool.
func NewJiraGetIssueTool(client *jira.Client) *JiraGetIssueTool {
	return &JiraGetIssueTool{client: client}
}

// Definition returns the MCP tool definition for jira_get_issue.
func (t *JiraGetIssueTool) Definition() mcp.Tool {
	return mcp.NewTool("jira_get_issue",
		mcp.WithDescription(
			"Read a Jira issue with its description, comments and available workflow transitions. "+
				"Read-only; use atlas_open to edit.",
		),
		mcp.WithString("key",
			mcp.Required(),
			mcp.Description("Issue key, e.g. ENG-7"),
		),
		mcp.WithNumber("max_comments",
			mcp.Description("Show at most this many of the latest comments (default: 10)"),
		),
	)
}

// Handle processes the jira_get_issue tool call.
func (t *JiraGetIssueTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key := stringArg(req, "key")
	if key == "" {
		return mcp.NewToolResultError("'key' is required"), nil
	}
	maxComments := intArg(req, "max_comments", 10)

	ic, err := t.client.GatherContext(ctx, key)
	if err != nil {
		return failure("reading issue", err), nil
	}
	return mcp.NewToolResultText(formatIssue(t.client.BrowseURL(ic.Issue.Key), ic, maxComments)), nil
}

func formatIssue(url string, ic *jira.IssueContext, maxComments int) string {
	issue := ic.Issue
	f := issue.Fields

	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s: %s\n\n", issue.Key, f.Summary)
	fmt.Fprintf(&sb, "- Type: %s\n", orDash(namedName(f.IssueType)))
	fmt.Fprintf(&sb, "- Status: %s\n", orDash(namedName(f.Status)))
	fmt.Fprintf(&sb, "- Priority: %s\n", orDash(namedName(f.Priority)))
	fmt.Fprintf(&sb, "- Assignee: %s\n", orDash(userName(f.Assignee)))
	fmt.Fprintf(&sb, "- Reporter: %s\n", orDash(userName(f.Reporter)))
	if len(f.Labels) > 0 {
		fmt.Fprintf(&sb, "- Labels: %s\n", strings.Join(f.Labels, ", "))
	}
	if f.Parent != nil {
		fmt.Fprintf(&sb, "- Parent: %s\n", f.Parent.Key)
	}
	if len(f.Custom) > 0 {
		fmt.Fprintf(&sb, "- Other fields: %d\n", len(f.Custom))
	}
	fmt.Fprintf(&sb, "- URL: %s\n", url)

	sb.WriteString("\n## Description\n\n")
	if d := f.DescriptionText(); d != "" {
		sb.WriteString(d + "\n")
	} else {
		sb.WriteString("_No description._\n")
	}

	comments := ic.Comments
	fmt.Fprintf(&sb, "\n## Comments (%d)\n\n", len(comments))
	if maxComments > 0 && len(comments) > maxComments {
		comments = comments[len(comments)-maxComments:]
		fmt.Fprintf(&sb, "_Showing the latest %d._\n\n", maxComments)
	}
	for _, c := range comments {
		fmt.Fprintf(&sb, "- %s (%s): %s\n", orDash(userName(c.Author)), c.Created, truncate(c.BodyText(), 500))
	}

	if len(ic.Transitions) > 0 {
		sb.WriteString("\n## Transitions\n\n")
		for _, tr := range ic.Transitions {
			fmt.Fprintf(&sb, "- %s: %s", tr.ID, tr.Name)
			if tr.To != nil && tr.To.Name != "" {
				fmt.Fprintf(&sb, " → %s", tr.To.Name)
			}
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func namedName(n *jira.Named) string {
	if n == nil {
		return ""
	}
	return n.Name
}

func userName(u *jira.User) string {
	if u == nil {
		return ""
	}
	return u.DisplayName
}

// ─── JiraSearchTool ──────────────────────────────────────────────────────────

// JiraSearchTool handles the jira_search MCP tool.
type JiraSearchTool struct {
	client *jira.Client
}

// NewJiraSearchTool creates a JiraSearchTool.
func NewJiraSearchTool(client *jira.Client) *JiraSearchTool {
	return &JiraSearchTool{client: client}
}

// Definition returns the MCP tool definition for jira_search.
func (t *JiraSearchTool) Definition() mcp.Tool {
	return mcp.NewTool("jira_search",
		mcp.WithDescription("Search Jira issues with JQL, e.g. 'project = ENG AND status = \"In Progress\" ORDER BY updated DESC'."),
		mcp.WithString("jql",
			mcp.Required(),
			mcp.Description("JQL query"),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Maximum issues to return (default: 20)"),
		),
	)
}

// Handle processes the jira_search tool call.
func (t *JiraSearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jql := stringArg(req, "jql")
	if jql == "" {
		return mcp.NewToolResultError("'jql' is required"), nil
	}

	res, err := t.client.Search(ctx, jql, intArg(req, "max_results", 20))
	if err != nil {
		return failure("searching issues", err), nil
	}
	if len(res.Issues) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("No issues match: %s", jql)), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d issue(s), showing %d:\n\n", res.Total, len(res.Issues))
	for _, is := range res.Issues {
		fmt.Fprintf(&sb, "- %s [%s] %s", is.Key, orDash(namedName(is.Fields.Status)), is.Fields.Summary)
		if a := userName(is.Fields.Assignee); a != "" {
			fmt.Fprintf(&sb, " (%s)", a)
		}
		sb.WriteString("\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}

// ─── JiraAddCommentTool ──────────────────────────────────────────────────────

// JiraAddCommentTool handles the jira_add_comment MCP tool.
type JiraAddCommentTool struct {
	client *jira.Client
}

// NewJiraAddCommentTool creates a JiraAddCommentTool.
func NewJiraAddCommentTool(client *jira.Client) *JiraAddCommentTool {
	return &JiraAddCommentTool{client: client}
}

// Definition returns the MCP tool definition for jira_add_comment.
func (t *JiraAddCommentTool) Definition() mcp.Tool {
	return mcp.NewTool("jira_add_comment",
		mcp.WithDescription("Add a comment to a Jira issue. The body is Jira wiki markup."),
		mcp.WithString("key",
			mcp.Required(),
			mcp.Description("Issue key, e.g. ENG-7"),
		),
		mcp.WithString("body",
			mcp.Required(),
			mcp.Description("Comment text"),
		),
	)
}

// Handle processes the jira_add_comment tool call.
func (t *JiraAddCommentTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key := stringArg(req, "key")
	body := req.GetString("body", "")
	if key == "" {
		return mcp.NewToolResultError("'key' is required"), nil
	}
	if strings.TrimSpace(body) == "" {
		return mcp.NewToolResultError("'body' is required"), nil
	}

	c, err := t.client.AddComment(ctx, key, body)
	if err != nil {
		return failure("adding comment", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Comment %s added to %s.", c.ID, key)), nil
}

// ─── JiraTransitionTool ──────────────────────────────────────────────────────

// JiraTransitionTool handles the jira_transition MCP tool.
type JiraTransitionTool struct {
	client *jira.Client
}

// NewJiraTransitionTool creates a JiraTransitionTool.
func NewJiraTransitionTool(client *jira.Client) *JiraTransitionTool {
	return &JiraTransitionTool{client: client}
}

// Definition returns the MCP tool definition for jira_transition.
func (t *JiraTransitionTool) Definition() mcp.Tool {
	return mcp.NewTool("jira_transition",
		mcp.WithDescription(
			"Move a Jira issue through its workflow. Without transition_id, lists the transitions available now. "+
				"Status is not editable through atlas_save; use this instead.",
		),
		mcp.WithString("key",
			mcp.Required(),
			mcp.Description("Issue key, e.g. ENG-7"),
		),
		mcp.WithString("transition_id",
			mcp.Description("Transition id or name to perform"),
		),
	)
}

// Handle processes the jira_transition tool call.
func (t *JiraTransitionTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	key := stringArg(req, "key")
	if key == "" {
		return mcp.NewToolResultError("'key' is required"), nil
	}

	transitions, err := t.client.Transitions(ctx, key)
	if err != nil {
		return failure("listing transitions", err), nil
	}

	want := stringArg(req, "transition_id")
	if want == "" {
		if len(transitions) == 0 {
			return mcp.NewToolResultText(fmt.Sprintf("No transitions available for %s.", key)), nil
		}
		var sb strings.Builder
		fmt.Fprintf(&sb, "Transitions available for %s:\n\n", key)
		for _, tr := range transitions {
			fmt.Fprintf(&sb, "- %s: %s\n", tr.ID, tr.Name)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}

	var chosen *jira.Transition
	for i := range transitions {
		if transitions[i].ID == want || strings.EqualFold(transitions[i].Name, want) {
			chosen = &transitions[i]
			break
		}
	}
	if chosen == nil {
		return mcp.NewToolResultError(fmt.Sprintf("transition %q is not available for %s", want, key)), nil
	}

	if err := t.client.Transition(ctx, key, chosen.ID); err != nil {
		return failure("transitioning issue", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s moved with transition %q.", key, chosen.Name)), nil
}

// ─── JiraProjectsTool ────────────────────────────────────────────────────────

// JiraProjectsTool handles the jira_projects MCP tool.
type JiraProjectsTool struct {
	client *jira.Client
}

// NewJiraProjectsTool creates a JiraProjectsTool.
func NewJiraProjectsTool(client *jira.Client) *JiraProjectsTool {
	return &JiraProjectsTool{client: client}
}

// Definition returns the MCP tool definition for jira_projects.
func (t *JiraProjectsTool) Definition() mcp.Tool {
	return mcp.NewTool("jira_projects",
		mcp.WithDescription("List the Jira projects visible to the configured account."),
	)
}

// Handle processes the jira_projects tool call.
func (t *JiraProjectsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projects, err := t.client.Projects(ctx)
	if err != nil {
		return failure("listing projects", err), nil
	}
	if len(projects) == 0 {
		return mcp.NewToolResultText("No projects visible."), nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Projects (%d):\n\n", len(projects))
	for _, p := range projects {
		fmt.Fprintf(&sb, "- %s: %s\n", p.Key, p.Name)
	}
	return mcp.NewToolResultText(sb.String()), nil
}
