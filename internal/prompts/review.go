package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// ReviewPrompt handles the atlas-review MCP prompt.
// It asks the AI to summarize open documents and recent saves.
type ReviewPrompt struct{}

// NewReviewPrompt creates a ReviewPrompt.
func NewReviewPrompt() *ReviewPrompt {
	return &ReviewPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *ReviewPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("atlas-review",
		mcp.WithPromptDescription(
			"Review the documents open for editing and the latest saves, "+
				"including any that overwrote someone else's changes.",
		),
	)
}

// Handle processes the atlas-review prompt request.
func (p *ReviewPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Review open documents and recent saves",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"Please run `atlas_sessions` and `atlas_history`.\n\n" +
						"Then:\n" +
						"1. List the documents I still have open, with their versions\n" +
						"2. Point out every save marked as a conflict overwrite and offer to open that entity so I can check nothing was lost\n" +
						"3. Point out failed saves and what went wrong\n" +
						"4. If history is disabled, say so and only report the open documents",
				),
			},
		},
	}, nil
}
