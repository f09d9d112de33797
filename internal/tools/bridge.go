package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/atlasmcp/internal/journal"
	"github.com/HendryAvila/atlasmcp/internal/logging"
	"github.com/HendryAvila/atlasmcp/internal/writeback"
)

// JournalBridge records every finished save in the journal and logs it.
// It is the coordinator's observer.
type JournalBridge struct {
	store *journal.Store
	log   logging.Logger
}

// NewJournalBridge creates a bridge. store may be nil, in which case saves
// are only logged.
func NewJournalBridge(store *journal.Store, log logging.Logger) *JournalBridge {
	if log == nil {
		log = logging.Discard()
	}
	return &JournalBridge{store: store, log: log}
}

// Observe implements writeback.Observer. Journal failures are logged and
// never affect the save.
func (b *JournalBridge) Observe(ctx context.Context, o writeback.Outcome) {
	args := []any{
		"kind", o.Kind, "id", o.ID, "action", o.Action,
		"attempts", o.Attempts, "version", o.Version,
	}
	entry := journal.Entry{
		Kind:         string(o.Kind),
		EntityID:     o.ID,
		Action:       string(o.Action),
		Version:      o.Version,
		Attempts:     o.Attempts,
		AutoResolved: o.AutoResolved,
		Outcome:      journal.OutcomeOK,
	}
	if entry.EntityID == "" {
		entry.EntityID = "(unknown)"
	}
	switch {
	case o.Err != nil:
		entry.Outcome = journal.OutcomeError
		entry.Message = o.Err.Error()
		b.log.Warn(ctx, "save failed", append(args, "error", o.Err)...)
	case o.RefreshErr != nil:
		entry.Message = "saved; refresh failed: " + o.RefreshErr.Error()
		b.log.Warn(ctx, "saved, refresh failed", append(args, "error", o.RefreshErr)...)
	case o.AutoResolved:
		entry.Message = "version conflict resolved by retry"
		b.log.Warn(ctx, "save overwrote a newer remote version", args...)
	default:
		b.log.Info(ctx, "saved", args...)
	}

	if b.store == nil {
		return
	}
	if _, err := b.store.Record(entry); err != nil {
		b.log.Error(ctx, "journal record failed", "error", err)
	}
}

// Observer returns Observe as a writeback.Observer.
func (b *JournalBridge) Observer() writeback.Observer {
	return b.Observe
}

// ─── HistoryTool ─────────────────────────────────────────────────────────────

// HistoryTool handles the atlas_history MCP tool.
type HistoryTool struct {
	store *journal.Store
}

// NewHistoryTool creates a HistoryTool.
func NewHistoryTool(store *journal.Store) *HistoryTool {
	return &HistoryTool{store: store}
}

// Definition returns the MCP tool definition for atlas_history.
func (t *HistoryTool) Definition() mcp.Tool {
	return mcp.NewTool("atlas_history",
		mcp.WithDescription(
			"Show recent saves made through atlas_save: which entity, the resulting version, "+
				"how many attempts it took and whether a newer remote version was overwritten.",
		),
		kindOption(false),
		mcp.WithString("id",
			mcp.Description("Only saves of this issue key or page id"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum entries (default: 10)"),
		),
	)
}

// Handle processes the atlas_history tool call.
func (t *HistoryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind := ""
	if stringArg(req, "kind") != "" {
		k, errResult := kindArg(req)
		if errResult != nil {
			return errResult, nil
		}
		kind = string(k)
	}
	id := stringArg(req, "id")
	limit := intArg(req, "limit", 10)

	entries, err := t.store.Recent(kind, id, limit)
	if err != nil {
		return failure("reading history", err), nil
	}
	if len(entries) == 0 {
		return mcp.NewToolResultText("No saves recorded yet."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Recent saves (%d)\n\n", len(entries))
	for _, e := range entries {
		fmt.Fprintf(&sb, "- %s %s %s %s", e.CreatedAt, e.Action, e.Kind, e.EntityID)
		if e.Version > 0 {
			fmt.Fprintf(&sb, " → v%d", e.Version)
		}
		fmt.Fprintf(&sb, " [%s, %d attempt(s)", e.Outcome, e.Attempts)
		if e.AutoResolved {
			sb.WriteString(", conflict overwritten")
		}
		sb.WriteString("]")
		if e.Message != "" && !e.AutoResolved {
			fmt.Fprintf(&sb, "\n  %s", truncate(e.Message, 200))
		}
		sb.WriteString("\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}
