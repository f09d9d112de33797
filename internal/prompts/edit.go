// Package prompts implements MCP prompt handlers for atlasmcp.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// EditPrompt handles the atlas-edit MCP prompt.
// It walks the AI through the open, edit, save round trip.
type EditPrompt struct{}

// NewEditPrompt creates an EditPrompt.
func NewEditPrompt() *EditPrompt {
	return &EditPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *EditPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("atlas-edit",
		mcp.WithPromptDescription(
			"Edit a Jira issue or Confluence page: open it as a text document, "+
				"make the requested change and save it back.",
		),
		mcp.WithArgument("kind",
			mcp.ArgumentDescription("'issue' or 'page'"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("id",
			mcp.ArgumentDescription("Issue key or page id"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("change",
			mcp.ArgumentDescription("What to change, in plain words"),
		),
	)
}

// Handle processes the atlas-edit prompt request.
func (p *EditPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	args := req.Params.Arguments
	kind := strings.TrimSpace(args["kind"])
	id := strings.TrimSpace(args["id"])
	if kind == "" || id == "" {
		return nil, fmt.Errorf("atlas-edit needs both 'kind' and 'id'")
	}

	change := strings.TrimSpace(args["change"])
	if change == "" {
		change = "Ask me what I want to change before editing anything."
	} else {
		change = "The change I want: " + change
	}

	bodyHint := "The body is Jira wiki markup."
	if kind == "page" {
		bodyHint = "The body is Confluence storage format (XHTML); keep macros and tags you do not need to touch exactly as they are."
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Edit %s %s", kind, id),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"I want to edit %s %s.\n\n"+
						"Please:\n"+
						"1. Run `atlas_open` with kind=%q and id=%q\n"+
						"2. %s\n"+
						"3. Change only the editable preamble fields and the body. Leave the identifier and version lines alone.\n"+
						"4. Run `atlas_save` with kind=%q and the full edited text\n"+
						"5. Tell me the new version, and warn me clearly if the response says a newer remote version was overwritten\n\n"+
						"%s",
					kind, id, kind, id, change, kind, bodyHint,
				)),
			},
		},
	}, nil
}
