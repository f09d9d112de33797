package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/atlasmcp/internal/mirror"
	"github.com/HendryAvila/atlasmcp/internal/session"
	"github.com/HendryAvila/atlasmcp/internal/writeback"
)

// Documents bundles what the document tools share: the coordinator that
// talks to the remote, the session registry and the mirror workspace.
type Documents struct {
	Coordinator *writeback.Coordinator
	Sessions    *session.Manager
	Workspace   *session.Workspace
}

// open fetches kind/id, writes its mirror and registers the session.
// A mirror write failure is reported in the returned note, not as an
// error: the text itself is still usable.
func (d *Documents) open(ctx context.Context, kind mirror.Kind, id string) (*writeback.Opened, session.Session, string, error) {
	opened, err := d.Coordinator.Open(ctx, kind, id)
	if err != nil {
		return nil, session.Session{}, "", err
	}
	var note string
	path, err := d.Workspace.Write(kind, opened.ID, opened.Text)
	if err != nil {
		note = fmt.Sprintf("Warning: mirror file not written: %v", err)
		path = ""
	}
	s := d.Sessions.Open(kind, opened.ID, path, opened.Version)
	return opened, s, note, nil
}

func describeOpened(o *writeback.Opened, s session.Session) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Opened %s %s", o.Kind, o.ID)
	if o.Title != "" {
		fmt.Fprintf(&sb, " %q", o.Title)
	}
	if o.Kind == mirror.KindPage {
		fmt.Fprintf(&sb, " at version %d", o.Version)
	}
	sb.WriteString(".\n")
	if s.Path != "" {
		fmt.Fprintf(&sb, "Mirror: %s\n", s.Path)
	}
	fmt.Fprintf(&sb, "Session: %s\n", s.ID)
	return sb.String()
}

// ─── OpenTool ────────────────────────────────────────────────────────────────

// OpenTool handles the atlas_open MCP tool.
type OpenTool struct {
	docs *Documents
}

// NewOpenTool creates an OpenTool.
func NewOpenTool(docs *Documents) *OpenTool {
	return &OpenTool{docs: docs}
}

// Definition returns the MCP tool definition for atlas_open.
func (t *OpenTool) Definition() mcp.Tool {
	return mcp.NewTool("atlas_open",
		mcp.WithDescription(
			"Open a Jira issue or Confluence page as an editable text document. "+
				"The document has a YAML preamble between '---' lines (identifier, title, and for pages the version) "+
				"followed by a blank line and the body. Edit the editable fields or the body, then call atlas_save. "+
				"The document is also written to a mirror file in the workspace.",
		),
		kindOption(true),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Issue key (e.g. ENG-7) or page id (e.g. 123456)"),
		),
	)
}

// Handle processes the atlas_open tool call.
func (t *OpenTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, errResult := kindArg(req)
	if errResult != nil {
		return errResult, nil
	}
	id := stringArg(req, "id")
	if id == "" {
		return mcp.NewToolResultError("'id' is required"), nil
	}
	if mirror.IsNew(id) || session.IsDraft(id) {
		return mcp.NewToolResultError(fmt.Sprintf("%q is not a remote %s; use atlas_new to start one", id, kind)), nil
	}

	opened, s, note, err := t.docs.open(ctx, kind, id)
	if err != nil {
		return failure(fmt.Sprintf("opening %s %s", kind, id), err), nil
	}

	response := describeOpened(opened, s)
	if note != "" {
		response += note + "\n"
	}
	response += "\n" + opened.Text
	return mcp.NewToolResultText(response), nil
}

// ─── NewTool ─────────────────────────────────────────────────────────────────

// NewTool handles the atlas_new MCP tool.
type NewTool struct {
	docs *Documents
}

// NewNewTool creates a NewTool.
func NewNewTool(docs *Documents) *NewTool {
	return &NewTool{docs: docs}
}

// Definition returns the MCP tool definition for atlas_new.
func (t *NewTool) Definition() mcp.Tool {
	return mcp.NewTool("atlas_new",
		mcp.WithDescription(
			"Start a new Jira issue or Confluence page as a draft document whose identifier is 'new'. "+
				"Fill in the title and body, then call atlas_save: the entity is created and re-opened under its real identifier.",
		),
		kindOption(true),
		mcp.WithString("container",
			mcp.Required(),
			mcp.Description("Project key for issues (e.g. ENG), space key for pages (e.g. DOCS)"),
		),
		mcp.WithString("type",
			mcp.Description("Issue type for issues (default: Task)"),
		),
		mcp.WithString("parent_id",
			mcp.Description("Parent page id for pages"),
		),
	)
}

// Handle processes the atlas_new tool call.
func (t *NewTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, errResult := kindArg(req)
	if errResult != nil {
		return errResult, nil
	}
	container := stringArg(req, "container")
	if container == "" {
		return mcp.NewToolResultError("'container' is required (project key or space key)"), nil
	}

	extra := stringArg(req, "type")
	if kind == mirror.KindPage {
		extra = stringArg(req, "parent_id")
	}

	text, err := t.docs.Coordinator.Template(kind, container, extra)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	handle, path, err := t.docs.Workspace.Draft(kind, text)
	if err != nil {
		return failure("writing draft", err), nil
	}
	t.docs.Sessions.Open(kind, handle, path, 0)

	response := fmt.Sprintf(
		"Draft %s created in %s.\nDraft id: %s\nMirror: %s\n\n"+
			"Edit the draft, then call atlas_save with kind=%q and id=%q (or pass the edited text).\n\n%s",
		kind, container, handle, path, kind, handle, text,
	)
	return mcp.NewToolResultText(response), nil
}

// ─── SaveTool ────────────────────────────────────────────────────────────────

// SaveTool handles the atlas_save MCP tool.
type SaveTool struct {
	docs *Documents
}

// NewSaveTool creates a SaveTool.
func NewSaveTool(docs *Documents) *SaveTool {
	return &SaveTool{docs: docs}
}

// Definition returns the MCP tool definition for atlas_save.
func (t *SaveTool) Definition() mcp.Tool {
	return mcp.NewTool("atlas_save",
		mcp.WithDescription(
			"Save an edited document back to Jira or Confluence. Pass the full document text, "+
				"or the id of an open document to save its mirror file. "+
				"Pages are written with the next version number; if someone else saved in between, "+
				"the save is retried once on top of their version and the response says so. "+
				"Documents with id 'new' are created.",
		),
		kindOption(true),
		mcp.WithString("text",
			mcp.Description("Full document text (preamble + body). Omit to save the mirror file of the open document 'id'."),
		),
		mcp.WithString("id",
			mcp.Description("Identifier of an open document (issue key, page id, or draft id from atlas_new)"),
		),
	)
}

// Handle processes the atlas_save tool call.
func (t *SaveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	kind, errResult := kindArg(req)
	if errResult != nil {
		return errResult, nil
	}
	id := stringArg(req, "id")
	text := req.GetString("text", "")

	if strings.TrimSpace(text) == "" {
		if id == "" {
			return mcp.NewToolResultError("provide either 'text' or the 'id' of an open document"), nil
		}
		var err error
		text, err = t.readMirror(kind, id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	res, err := t.docs.Coordinator.Save(ctx, kind, text)
	if res == nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var sb strings.Builder
	sb.WriteString(res.Message + "\n")
	fmt.Fprintf(&sb, "Attempts: %d\n", res.Attempts)
	if err != nil {
		fmt.Fprintf(&sb, "Warning: %v\n", err)
	}

	if res.Created {
		if session.IsDraft(id) {
			t.docs.Sessions.Close(kind, id)
			_ = t.docs.Workspace.Remove(kind, id)
		}
		opened, s, note, oerr := t.docs.open(ctx, kind, res.ID)
		if oerr != nil {
			fmt.Fprintf(&sb, "Re-opening %s %s failed: %v\nCall atlas_open with id=%q.\n", kind, res.ID, oerr, res.ID)
			return mcp.NewToolResultText(sb.String()), nil
		}
		sb.WriteString("\n" + describeOpened(opened, s))
		if note != "" {
			sb.WriteString(note + "\n")
		}
		sb.WriteString("\n" + opened.Text)
		return mcp.NewToolResultText(sb.String()), nil
	}

	if res.Text != "" {
		path, werr := t.docs.Workspace.Write(kind, res.ID, res.Text)
		if werr != nil {
			fmt.Fprintf(&sb, "Warning: mirror file not updated: %v\n", werr)
			path = ""
		}
		if _, ok := t.docs.Sessions.Get(kind, res.ID); !ok {
			t.docs.Sessions.Open(kind, res.ID, path, res.Version)
		}
		t.docs.Sessions.MarkSaved(kind, res.ID, res.Version)
		if path != "" {
			fmt.Fprintf(&sb, "Mirror: %s\n", path)
		}
		sb.WriteString("\n" + res.Text)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (t *SaveTool) readMirror(kind mirror.Kind, id string) (string, error) {
	path := t.docs.Workspace.Path(kind, id)
	if s, ok := t.docs.Sessions.Get(kind, id); ok && s.Path != "" {
		path = s.Path
	}
	text, err := session.ReadFile(path)
	if errors.Is(err, session.ErrNoMirror) {
		return "", fmt.Errorf("no open document %s %s: open it with atlas_open or pass 'text'", kind, id)
	}
	return text, err
}

// ─── SessionsTool ────────────────────────────────────────────────────────────

// SessionsTool handles the atlas_sessions MCP tool.
type SessionsTool struct {
	sessions *session.Manager
}

// NewSessionsTool creates a SessionsTool.
func NewSessionsTool(sessions *session.Manager) *SessionsTool {
	return &SessionsTool{sessions: sessions}
}

// Definition returns the MCP tool definition for atlas_sessions.
func (t *SessionsTool) Definition() mcp.Tool {
	return mcp.NewTool("atlas_sessions",
		mcp.WithDescription("List the documents currently open for editing, with their mirror files and versions."),
		mcp.WithBoolean("close_all",
			mcp.Description("Close every open document session after listing (mirror files are kept)"),
		),
	)
}

// Handle processes the atlas_sessions tool call.
func (t *SessionsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list := t.sessions.List()
	if len(list) == 0 {
		return mcp.NewToolResultText("No open documents."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Open documents (%d)\n\n", len(list))
	for _, s := range list {
		fmt.Fprintf(&sb, "- %s %s", s.Kind, s.EntityID)
		if s.Kind == mirror.KindPage && s.Version > 0 {
			fmt.Fprintf(&sb, " v%d", s.Version)
		}
		if session.IsDraft(s.EntityID) {
			sb.WriteString(" (draft)")
		}
		if !s.SavedAt.IsZero() {
			fmt.Fprintf(&sb, " saved %s", s.SavedAt.Format("15:04:05"))
		}
		if s.Path != "" {
			fmt.Fprintf(&sb, " → %s", s.Path)
		}
		sb.WriteString("\n")
	}

	if boolArg(req, "close_all", false) {
		for _, s := range list {
			t.sessions.Close(s.Kind, s.EntityID)
		}
		sb.WriteString("\nAll sessions closed.\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}
