// Package server wires all MCP components and creates the server instance.
//
// This is the composition root: it creates the Atlassian clients, the
// save coordinator, the session registry and the journal, and injects
// them into the tools, prompts and resources. No business logic lives
// here, only wiring.
package server

import (
	"context"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/HendryAvila/atlasmcp/internal/atlassian"
	"github.com/HendryAvila/atlasmcp/internal/config"
	"github.com/HendryAvila/atlasmcp/internal/confluence"
	"github.com/HendryAvila/atlasmcp/internal/jira"
	"github.com/HendryAvila/atlasmcp/internal/journal"
	"github.com/HendryAvila/atlasmcp/internal/logging"
	"github.com/HendryAvila/atlasmcp/internal/prompts"
	"github.com/HendryAvila/atlasmcp/internal/resources"
	"github.com/HendryAvila/atlasmcp/internal/session"
	"github.com/HendryAvila/atlasmcp/internal/tools"
	"github.com/HendryAvila/atlasmcp/internal/writeback"
)

// Version is set at build time via ldflags.
var Version = "dev"

// tool is what every handler in package tools provides.
type tool interface {
	Definition() mcp.Tool
	Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error)
}

// components are the shared dependencies of the tools.
type components struct {
	cfg      *config.Config
	jira     *jira.Client
	wiki     *confluence.Client
	docs     *tools.Documents
	sessions *session.Manager
	journal  *journal.Store
}

// New creates and configures the MCP server with all tools, prompts,
// and resources registered. This is the single place where all
// dependencies are resolved.
//
// The returned cleanup function closes the journal database and must be
// called on shutdown (typically via defer). It is always non-nil and safe
// to call even if the journal failed to open.
func New(cfg *config.Config, log logging.Logger) (*server.MCPServer, func(), error) {
	if log == nil {
		log = logging.Discard()
	}
	ctx := context.Background()

	for _, conn := range []atlassian.Connection{cfg.Jira, cfg.Confluence} {
		if err := conn.Validate(); err != nil {
			log.Warn(ctx, "connection incomplete, its tools will fail until configured", "service", conn.Service, "error", err)
		}
	}

	// --- Journal ---
	//
	// Save history is optional: if the database cannot be opened the
	// server still edits documents, it just does not remember saves.

	cleanup := noop
	store, err := journal.New(journal.Config{DataDir: cfg.JournalDir, MaxMessageLen: 1000})
	if err != nil {
		log.Warn(ctx, "save history disabled", "error", err)
		store = nil
	} else {
		cleanup = func() {
			if err := store.Close(); err != nil {
				log.Warn(ctx, "journal close", "error", err)
			}
		}
	}

	c := newComponents(cfg, store, log)

	s := server.NewMCPServer(
		"atlasmcp",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	for _, t := range c.toolset() {
		s.AddTool(t.Definition(), t.Handle)
	}

	// --- Register prompts ---

	editPrompt := prompts.NewEditPrompt()
	s.AddPrompt(editPrompt.Definition(), editPrompt.Handle)

	reviewPrompt := prompts.NewReviewPrompt()
	s.AddPrompt(reviewPrompt.Definition(), reviewPrompt.Handle)

	// --- Register resources ---

	resourceHandler := resources.NewHandler(c.sessions, store)
	s.AddResource(resourceHandler.SessionsResource(), resourceHandler.HandleSessions)
	s.AddResource(resourceHandler.HistoryResource(), resourceHandler.HandleHistory)

	log.Info(ctx, "server ready",
		"version", Version,
		"jira", cfg.Jira.BaseURL,
		"confluence", cfg.Confluence.BaseURL,
		"mirror_dir", cfg.MirrorDir,
		"history", store != nil,
	)
	return s, cleanup, nil
}

// newComponents builds the clients and the document pipeline. store may
// be nil.
func newComponents(cfg *config.Config, store *journal.Store, log logging.Logger) *components {
	hc := &http.Client{Timeout: cfg.HTTPTimeout}
	ua := "atlasmcp/" + Version

	jc := jira.NewClient(atlassian.NewClient(cfg.Jira, atlassian.WithHTTPClient(hc), atlassian.WithUserAgent(ua)))
	wc := confluence.NewClient(atlassian.NewClient(cfg.Confluence, atlassian.WithHTTPClient(hc), atlassian.WithUserAgent(ua)))

	bridge := tools.NewJournalBridge(store, log)
	sessions := session.NewManager()

	return &components{
		cfg:  cfg,
		jira: jc,
		wiki: wc,
		docs: &tools.Documents{
			Coordinator: writeback.New(jc, wc, writeback.WithObserver(bridge.Observer())),
			Sessions:    sessions,
			Workspace:   session.NewWorkspace(cfg.MirrorDir),
		},
		sessions: sessions,
		journal:  store,
	}
}

// NewCoordinator returns a save coordinator for one-shot use outside the
// MCP server. Saves are logged but not journaled.
func NewCoordinator(cfg *config.Config, log logging.Logger) *writeback.Coordinator {
	if log == nil {
		log = logging.Discard()
	}
	return newComponents(cfg, nil, log).docs.Coordinator
}

// toolset lists every tool the server exposes. atlas_history is only
// present when the journal is open.
func (c *components) toolset() []tool {
	list := []tool{
		// --- Document round trip ---
		tools.NewOpenTool(c.docs),
		tools.NewNewTool(c.docs),
		tools.NewSaveTool(c.docs),
		tools.NewSessionsTool(c.sessions),
		tools.NewStatusTool(c.jira, c.cfg.Jira, c.cfg.Confluence, c.sessions, c.docs.Workspace, c.journal),

		// --- Jira ---
		tools.NewJiraGetIssueTool(c.jira),
		tools.NewJiraSearchTool(c.jira),
		tools.NewJiraAddCommentTool(c.jira),
		tools.NewJiraTransitionTool(c.jira),
		tools.NewJiraProjectsTool(c.jira),

		// --- Confluence ---
		tools.NewConfluenceGetPageTool(c.wiki),
		tools.NewConfluenceSearchTool(c.wiki),
		tools.NewConfluenceSpacesTool(c.wiki),
		tools.NewConfluenceChildrenTool(c.wiki),
		tools.NewConfluenceAddCommentTool(c.wiki),
	}
	if c.journal != nil {
		list = append(list, tools.NewHistoryTool(c.journal))
	}
	return list
}

// noop is the default cleanup when the journal is disabled.
func noop() {}

// serverInstructions returns the system instructions that tell the AI
// how to use atlasmcp.
func serverInstructions() string {
	return `You have access to atlasmcp, which exposes Jira issues and Confluence pages
as editable text documents.

## EDITING ROUND TRIP

1. atlas_open (kind: issue | page, id) returns the document:

   ---
   kind: page
   id: "123456"
   title: Release notes
   version: 7
   ---

   <p>body</p>

2. Edit the editable preamble fields and the body. Issues: summary, type,
   priority, assignee_id, labels, parent. Pages: title, parent_id.
   Never change kind, key/id or version. Read-only fields (status,
   reporter, created, updated, author) are ignored on save.
3. atlas_save (kind, text) writes it back. Instead of text you may pass
   the id of an open document; its mirror file is saved.

Issue bodies are Jira wiki markup. Page bodies are Confluence storage
format (XHTML); preserve macros and tags you are not asked to change.

## CONFLICTS

Pages carry a version. If someone saved the page after you opened it,
atlas_save retries once on top of their version and says "a newer remote
version was detected and overwritten". Tell the user when this happens.
Issues have no version; their saves always apply.

## CREATING

atlas_new (kind, container = project or space key) returns a draft whose
identifier is "new". Fill it in and call atlas_save; the entity is created
and re-opened under its real identifier.

## OTHER TOOLS

- jira_get_issue, jira_search (JQL), jira_add_comment, jira_transition
  (status changes go here, not through atlas_save), jira_projects
- confluence_get_page, confluence_search (CQL or plain words),
  confluence_spaces, confluence_children, confluence_add_comment
- atlas_sessions lists open documents, atlas_history recent saves,
  atlas_status the configuration.

When a tool says a service is not configured, call atlas_status and ask
the user to set JIRA_BASE_URL, JIRA_EMAIL and JIRA_API_TOKEN.`
}
