// Package resources implements MCP resource handlers for atlasmcp.
//
// Resources provide read-only data that the host can consume for context.
// They use URI-based addressing (atlas://...) following MCP conventions.
package resources

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/atlasmcp/internal/journal"
	"github.com/HendryAvila/atlasmcp/internal/session"
)

const (
	SessionsURI = "atlas://sessions"
	HistoryURI  = "atlas://history"
)

// Handler serves the session registry and the save journal.
type Handler struct {
	sessions *session.Manager
	journal  *journal.Store
}

// NewHandler creates a resource Handler. store may be nil; the history
// resource then reports that history is disabled.
func NewHandler(sessions *session.Manager, store *journal.Store) *Handler {
	return &Handler{sessions: sessions, journal: store}
}

// SessionsResource returns the MCP resource definition for open documents.
func (h *Handler) SessionsResource() mcp.Resource {
	return mcp.NewResource(
		SessionsURI,
		"Open documents",
		mcp.WithResourceDescription("Documents currently open for editing, with mirror paths and versions"),
		mcp.WithMIMEType("application/json"),
	)
}

// HistoryResource returns the MCP resource definition for recent saves.
func (h *Handler) HistoryResource() mcp.Resource {
	return mcp.NewResource(
		HistoryURI,
		"Recent saves",
		mcp.WithResourceDescription("The latest saves made through atlas_save, newest first"),
		mcp.WithMIMEType("application/json"),
	)
}

type sessionView struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	EntityID string `json:"entity_id"`
	Path     string `json:"path,omitempty"`
	Version  int    `json:"version,omitempty"`
	OpenedAt string `json:"opened_at"`
	SavedAt  string `json:"saved_at,omitempty"`
}

// HandleSessions returns the open documents as JSON.
func (h *Handler) HandleSessions(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	list := h.sessions.List()
	out := make([]sessionView, 0, len(list))
	for _, s := range list {
		v := sessionView{
			ID:       s.ID,
			Kind:     string(s.Kind),
			EntityID: s.EntityID,
			Path:     s.Path,
			Version:  s.Version,
			OpenedAt: s.OpenedAt.UTC().Format(time.RFC3339),
		}
		if !s.SavedAt.IsZero() {
			v.SavedAt = s.SavedAt.UTC().Format(time.RFC3339)
		}
		out = append(out, v)
	}
	return jsonResource(req.Params.URI, out)
}

// HandleHistory returns the latest journal entries as JSON.
func (h *Handler) HandleHistory(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	if h.journal == nil {
		return errorResource(req.Params.URI, "save history is disabled"), nil
	}
	entries, err := h.journal.Recent("", "", 50)
	if err != nil {
		return errorResource(req.Params.URI, fmt.Sprintf("reading history: %v", err)), nil
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	return jsonResource(req.Params.URI, entries)
}
