package tools

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/HendryAvila/atlasmcp/internal/atlassian"
	"github.com/HendryAvila/atlasmcp/internal/confluence"
	"github.com/HendryAvila/atlasmcp/internal/journal"
	"github.com/HendryAvila/atlasmcp/internal/logging"
	"github.com/HendryAvila/atlasmcp/internal/mirror"
	"github.com/HendryAvila/atlasmcp/internal/session"
	"github.com/HendryAvila/atlasmcp/internal/writeback"
)

// ─── Helpers ─────────────────────────────────────────────────────────────────

// makeReq builds an MCP CallToolRequest with the given arguments.
func makeReq(args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

// resultText extracts the text content from a tool result.
func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil {
		t.Fatal("result is nil")
	}
	if len(result.Content) == 0 {
		t.Fatal("result has no content")
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	t.Fatal("result has no TextContent")
	return ""
}

// isErrorResult checks if the result is an error result.
func isErrorResult(result *mcp.CallToolResult) bool {
	return result != nil && result.IsError
}

// call runs a handler and fails the test on a Go error.
func call(t *testing.T, h func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]interface{}) *mcp.CallToolResult {
	t.Helper()
	result, err := h(context.Background(), makeReq(args))
	if err != nil {
		t.Fatalf("unexpected Go error: %v", err)
	}
	return result
}

type testEnv struct {
	*testSite
	docs    *Documents
	journal *journal.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	site := newTestSite(t)

	store, err := journal.New(journal.Config{DataDir: t.TempDir(), MaxMessageLen: 200})
	if err != nil {
		t.Fatalf("journal.New: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	bridge := NewJournalBridge(store, logging.Discard())
	coord := writeback.New(site.jira, site.wiki, writeback.WithObserver(bridge.Observer()))
	return &testEnv{
		testSite: site,
		docs: &Documents{
			Coordinator: coord,
			Sessions:    session.NewManager(),
			Workspace:   session.NewWorkspace(t.TempDir()),
		},
		journal: store,
	}
}

// ─── Definitions ─────────────────────────────────────────────────────────────

func TestDefinitions(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		tool     mcp.Tool
		name     string
		required []string
	}{
		{NewOpenTool(env.docs).Definition(), "atlas_open", []string{"kind", "id"}},
		{NewNewTool(env.docs).Definition(), "atlas_new", []string{"kind", "container"}},
		{NewSaveTool(env.docs).Definition(), "atlas_save", []string{"kind"}},
		{NewSessionsTool(env.docs.Sessions).Definition(), "atlas_sessions", nil},
		{NewHistoryTool(env.journal).Definition(), "atlas_history", nil},
		{NewJiraGetIssueTool(env.jira).Definition(), "jira_get_issue", []string{"key"}},
		{NewJiraSearchTool(env.jira).Definition(), "jira_search", []string{"jql"}},
		{NewJiraAddCommentTool(env.jira).Definition(), "jira_add_comment", []string{"key", "body"}},
		{NewJiraTransitionTool(env.jira).Definition(), "jira_transition", []string{"key"}},
		{NewJiraProjectsTool(env.jira).Definition(), "jira_projects", nil},
		{NewConfluenceGetPageTool(env.wiki).Definition(), "confluence_get_page", []string{"id"}},
		{NewConfluenceSearchTool(env.wiki).Definition(), "confluence_search", []string{"query"}},
		{NewConfluenceSpacesTool(env.wiki).Definition(), "confluence_spaces", nil},
		{NewConfluenceChildrenTool(env.wiki).Definition(), "confluence_children", []string{"id"}},
		{NewConfluenceAddCommentTool(env.wiki).Definition(), "confluence_add_comment", []string{"id", "body"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.tool.Name != tt.name {
				t.Errorf("Name = %q, want %q", tt.tool.Name, tt.name)
			}
			if tt.tool.Description == "" {
				t.Error("Description is empty")
			}
			got := strings.Join(tt.tool.InputSchema.Required, ",")
			if want := strings.Join(tt.required, ","); got != want {
				t.Errorf("Required = %q, want %q", got, want)
			}
		})
	}
}

// ─── atlas_open ──────────────────────────────────────────────────────────────

func TestOpenTool_Page(t *testing.T) {
	env := newTestEnv(t)
	result := call(t, NewOpenTool(env.docs).Handle, map[string]interface{}{"kind": "page", "id": "42"})
	if isErrorResult(result) {
		t.Fatalf("unexpected error: %s", resultText(t, result))
	}
	text := resultText(t, result)
	for _, want := range []string{"Opened page 42", `"Runbook"`, "at version 3", "Mirror:", "version: 3", "<p>step one</p>"} {
		if !strings.Contains(text, want) {
			t.Errorf("response should contain %q:\n%s", want, text)
		}
	}

	s, ok := env.docs.Sessions.Get(mirror.KindPage, "42")
	if !ok {
		t.Fatal("session not registered")
	}
	if s.Version != 3 {
		t.Errorf("session version = %d, want 3", s.Version)
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		t.Fatalf("reading mirror: %v", err)
	}
	if !strings.HasPrefix(string(data), "---\n") || !strings.Contains(string(data), "<p>step one</p>") {
		t.Errorf("mirror content unexpected:\n%s", data)
	}
}

func TestOpenTool_Issue(t *testing.T) {
	env := newTestEnv(t)
	result := call(t, NewOpenTool(env.docs).Handle, map[string]interface{}{"kind": "issue", "id": "ENG-1"})
	text := resultText(t, result)
	if isErrorResult(result) {
		t.Fatalf("unexpected error: %s", text)
	}
	for _, want := range []string{"Opened issue ENG-1", "key: ENG-1", "summary: Fix login", "h2. Steps"} {
		if !strings.Contains(text, want) {
			t.Errorf("response should contain %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "at version") {
		t.Error("issues have no version")
	}
}

func TestOpenTool_Validation(t *testing.T) {
	env := newTestEnv(t)
	tool := NewOpenTool(env.docs)
	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{"missing kind", map[string]interface{}{"id": "42"}, "'kind' is required"},
		{"bad kind", map[string]interface{}{"kind": "blog", "id": "42"}, "invalid kind"},
		{"missing id", map[string]interface{}{"kind": "page"}, "'id' is required"},
		{"sentinel", map[string]interface{}{"kind": "page", "id": "new"}, "atlas_new"},
		{"draft handle", map[string]interface{}{"kind": "page", "id": "new-1234abcd"}, "atlas_new"},
		{"not found", map[string]interface{}{"kind": "page", "id": "999"}, "404"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := call(t, tool.Handle, tt.args)
			if !isErrorResult(result) {
				t.Fatalf("expected error result, got: %s", resultText(t, result))
			}
			if text := resultText(t, result); !strings.Contains(text, tt.want) {
				t.Errorf("error should contain %q: %s", tt.want, text)
			}
		})
	}
	if env.docs.Sessions.Len() != 0 {
		t.Errorf("failed opens must not register sessions, got %d", env.docs.Sessions.Len())
	}
}

// ─── atlas_save ──────────────────────────────────────────────────────────────

func TestSaveTool_PageText(t *testing.T) {
	env := newTestEnv(t)
	call(t, NewOpenTool(env.docs).Handle, map[string]interface{}{"kind": "page", "id": "42"})
	text, err := env.docs.Workspace.Read(mirror.KindPage, "42")
	if err != nil {
		t.Fatalf("reading mirror: %v", err)
	}
	edited := strings.Replace(text, "<p>step one</p>", "<p>step two</p>", 1)

	result := call(t, NewSaveTool(env.docs).Handle, map[string]interface{}{"kind": "page", "text": edited})
	out := resultText(t, result)
	if isErrorResult(result) {
		t.Fatalf("unexpected error: %s", out)
	}
	if !strings.Contains(out, "Updated page 42 to version 4.") {
		t.Errorf("response should report version 4:\n%s", out)
	}
	if !strings.Contains(out, "Attempts: 1") {
		t.Errorf("response should report one attempt:\n%s", out)
	}

	remote := env.fake.page("42")
	if remote.version != 4 || remote.body != "<p>step two</p>" {
		t.Errorf("remote = v%d %q, want v4 <p>step two</p>", remote.version, remote.body)
	}

	mirrored, _ := env.docs.Workspace.Read(mirror.KindPage, "42")
	if !strings.Contains(mirrored, "version: 4") {
		t.Errorf("mirror should carry the new version:\n%s", mirrored)
	}
	s, _ := env.docs.Sessions.Get(mirror.KindPage, "42")
	if s.Version != 4 || s.SavedAt.IsZero() {
		t.Errorf("session = v%d saved %v, want v4 and a save time", s.Version, s.SavedAt)
	}
}

func TestSaveTool_MirrorFileByID(t *testing.T) {
	env := newTestEnv(t)
	call(t, NewOpenTool(env.docs).Handle, map[string]interface{}{"kind": "page", "id": "42"})
	s, _ := env.docs.Sessions.Get(mirror.KindPage, "42")

	data, err := os.ReadFile(s.Path)
	if err != nil {
		t.Fatal(err)
	}
	edited := strings.Replace(string(data), "title: Runbook", "title: Runbook v2", 1)
	if err := os.WriteFile(s.Path, []byte(edited), 0o644); err != nil {
		t.Fatal(err)
	}

	result := call(t, NewSaveTool(env.docs).Handle, map[string]interface{}{"kind": "page", "id": "42"})
	if isErrorResult(result) {
		t.Fatalf("unexpected error: %s", resultText(t, result))
	}
	if got := env.fake.page("42").title; got != "Runbook v2" {
		t.Errorf("remote title = %q, want Runbook v2", got)
	}
}

func TestSaveTool_ConflictRetriedOnce(t *testing.T) {
	env := newTestEnv(t)
	call(t, NewOpenTool(env.docs).Handle, map[string]interface{}{"kind": "page", "id": "42"})
	text, _ := env.docs.Workspace.Read(mirror.KindPage, "42")
	env.fake.bumpPage("42", 5)

	edited := strings.Replace(text, "<p>step one</p>", "<p>mine</p>", 1)
	result := call(t, NewSaveTool(env.docs).Handle, map[string]interface{}{"kind": "page", "text": edited})
	out := resultText(t, result)
	if isErrorResult(result) {
		t.Fatalf("unexpected error: %s", out)
	}
	if !strings.Contains(out, "overwritten") {
		t.Errorf("response should report the overwrite:\n%s", out)
	}
	if !strings.Contains(out, "Attempts: 2") {
		t.Errorf("response should report two attempts:\n%s", out)
	}
	if got := env.fake.pagePuts; len(got) != 2 || got[0] != 4 || got[1] != 6 {
		t.Errorf("PUT versions = %v, want [4 6]", got)
	}
	remote := env.fake.page("42")
	if remote.version != 6 || remote.body != "<p>mine</p>" {
		t.Errorf("remote = v%d %q", remote.version, remote.body)
	}

	entries, err := env.journal.Recent("page", "42", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || !entries[0].AutoResolved || entries[0].Attempts != 2 {
		t.Errorf("journal entries = %+v, want one auto-resolved entry with 2 attempts", entries)
	}
}

func TestSaveTool_Issue(t *testing.T) {
	env := newTestEnv(t)
	call(t, NewOpenTool(env.docs).Handle, map[string]interface{}{"kind": "issue", "id": "ENG-1"})
	text, _ := env.docs.Workspace.Read(mirror.KindIssue, "ENG-1")
	edited := strings.Replace(text, "summary: Fix login", "summary: Fix login flow", 1)

	result := call(t, NewSaveTool(env.docs).Handle, map[string]interface{}{"kind": "issue", "text": edited})
	out := resultText(t, result)
	if isErrorResult(result) {
		t.Fatalf("unexpected error: %s", out)
	}
	if !strings.Contains(out, "Updated issue ENG-1.") {
		t.Errorf("response:\n%s", out)
	}
	if got := env.fake.issue("ENG-1").summary; got != "Fix login flow" {
		t.Errorf("remote summary = %q", got)
	}
	if len(env.fake.issuePuts) != 1 {
		t.Fatalf("issue PUTs = %d, want 1", len(env.fake.issuePuts))
	}
	if _, ok := env.fake.issuePuts[0]["version"]; ok {
		t.Error("issue updates carry no version")
	}
	if !strings.Contains(out, "summary: Fix login flow") {
		t.Errorf("response should include the refreshed document:\n%s", out)
	}
}

func TestSaveTool_IssueRefreshFailureStillSaved(t *testing.T) {
	env := newTestEnv(t)
	env.fake.mu.Lock()
	env.fake.refreshFails = true
	env.fake.mu.Unlock()

	text := "---\nkind: issue\nkey: ENG-1\nsummary: Fix login flow\n---\n\nnew body"
	result := call(t, NewSaveTool(env.docs).Handle, map[string]interface{}{"kind": "issue", "text": text})
	out := resultText(t, result)
	if isErrorResult(result) {
		t.Fatalf("a save that reached the remote must not be an error: %s", out)
	}
	for _, want := range []string{"Updated issue ENG-1.", "Warning:", "refreshing failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("response should contain %q:\n%s", want, out)
		}
	}
	if got := env.fake.issue("ENG-1").summary; got != "Fix login flow" {
		t.Errorf("remote summary = %q", got)
	}

	entries, err := env.journal.Recent("issue", "ENG-1", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("journal entries = %+v, want 1", entries)
	}
	if entries[0].Outcome != journal.OutcomeOK || !strings.Contains(entries[0].Message, "refresh failed") {
		t.Errorf("entry = %+v, want ok with a refresh warning", entries[0])
	}

	history := resultText(t, call(t, NewHistoryTool(env.journal).Handle, map[string]interface{}{"id": "ENG-1"}))
	if !strings.Contains(history, "[ok, 1 attempt(s)]") || !strings.Contains(history, "refresh failed") {
		t.Errorf("history:\n%s", history)
	}
}

func TestSaveTool_Validation(t *testing.T) {
	env := newTestEnv(t)
	tool := NewSaveTool(env.docs)
	tests := []struct {
		name string
		args map[string]interface{}
		want string
	}{
		{"nothing to save", map[string]interface{}{"kind": "page"}, "provide either 'text'"},
		{"no open document", map[string]interface{}{"kind": "page", "id": "42"}, "no open document page 42"},
		{"no identifier", map[string]interface{}{"kind": "page", "text": "just a body"}, "no identifier"},
		{"kind mismatch", map[string]interface{}{"kind": "issue", "text": "---\nkind: page\nid: \"42\"\n---\n\nx"}, "not a issue"},
		{"remote failure", map[string]interface{}{"kind": "page", "text": "---\nkind: page\nid: \"999\"\ntitle: X\nversion: 1\n---\n\nx"}, "404"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := call(t, tool.Handle, tt.args)
			if !isErrorResult(result) {
				t.Fatalf("expected error result, got: %s", resultText(t, result))
			}
			if text := resultText(t, result); !strings.Contains(text, tt.want) {
				t.Errorf("error should contain %q: %s", tt.want, text)
			}
		})
	}
}

// ─── atlas_new ───────────────────────────────────────────────────────────────

func TestNewTool_PageDraftSavedAndReopened(t *testing.T) {
	env := newTestEnv(t)
	result := call(t, NewNewTool(env.docs).Handle, map[string]interface{}{
		"kind": "page", "container": "DOCS", "parent_id": "42",
	})
	out := resultText(t, result)
	if isErrorResult(result) {
		t.Fatalf("unexpected error: %s", out)
	}

	var handle string
	for _, s := range env.docs.Sessions.List() {
		handle = s.EntityID
	}
	if !session.IsDraft(handle) {
		t.Fatalf("draft session handle = %q", handle)
	}
	if !strings.Contains(out, "Draft id: "+handle) || !strings.Contains(out, "id: new") {
		t.Errorf("response should name the draft and show the template:\n%s", out)
	}

	draft, err := env.docs.Workspace.Read(mirror.KindPage, handle)
	if err != nil {
		t.Fatalf("reading draft: %v", err)
	}
	draft = strings.Replace(draft, "title: New page", "title: Deploy guide", 1) + "<p>hello</p>"
	if _, err := env.docs.Workspace.Write(mirror.KindPage, handle, draft); err != nil {
		t.Fatal(err)
	}

	result = call(t, NewSaveTool(env.docs).Handle, map[string]interface{}{"kind": "page", "id": handle})
	out = resultText(t, result)
	if isErrorResult(result) {
		t.Fatalf("unexpected error: %s", out)
	}
	if !strings.Contains(out, "Created page 100") || !strings.Contains(out, "Opened page 100") {
		t.Errorf("response should report create and re-open:\n%s", out)
	}

	created := env.fake.page("100")
	if created.title != "Deploy guide" || created.parentID != "42" || created.body != "<p>hello</p>" {
		t.Errorf("created page = %+v", created)
	}
	if _, ok := env.docs.Sessions.Get(mirror.KindPage, handle); ok {
		t.Error("draft session should be closed")
	}
	if _, err := env.docs.Workspace.Read(mirror.KindPage, handle); err == nil {
		t.Error("draft mirror should be removed")
	}
	s, ok := env.docs.Sessions.Get(mirror.KindPage, "100")
	if !ok || s.Version != 1 {
		t.Errorf("session for the created page = %+v, %v", s, ok)
	}
}

func TestNewTool_IssueSavedByText(t *testing.T) {
	env := newTestEnv(t)
	result := call(t, NewNewTool(env.docs).Handle, map[string]interface{}{
		"kind": "issue", "container": "ENG", "type": "Story",
	})
	if isErrorResult(result) {
		t.Fatalf("unexpected error: %s", resultText(t, result))
	}
	text := "---\nkind: issue\nkey: new\nsummary: Add SSO\nproject: ENG\ntype: Story\n---\n\nAs a user I want SSO."

	result = call(t, NewSaveTool(env.docs).Handle, map[string]interface{}{"kind": "issue", "text": text})
	out := resultText(t, result)
	if isErrorResult(result) {
		t.Fatalf("unexpected error: %s", out)
	}
	if !strings.Contains(out, "Created issue ENG-2") || !strings.Contains(out, "key: ENG-2") {
		t.Errorf("response:\n%s", out)
	}
	created := env.fake.issue("ENG-2")
	if created.summary != "Add SSO" || created.typ != "Story" || created.description != "As a user I want SSO." {
		t.Errorf("created issue = %+v", created)
	}
}

func TestNewTool_Validation(t *testing.T) {
	env := newTestEnv(t)
	result := call(t, NewNewTool(env.docs).Handle, map[string]interface{}{"kind": "page"})
	if !isErrorResult(result) {
		t.Fatal("expected error for missing container")
	}
	if env.docs.Sessions.Len() != 0 {
		t.Error("no session should be registered")
	}
}

// ─── atlas_sessions / atlas_history ──────────────────────────────────────────

func TestSessionsTool(t *testing.T) {
	env := newTestEnv(t)
	tool := NewSessionsTool(env.docs.Sessions)

	if text := resultText(t, call(t, tool.Handle, nil)); !strings.Contains(text, "No open documents") {
		t.Errorf("empty list: %s", text)
	}

	call(t, NewOpenTool(env.docs).Handle, map[string]interface{}{"kind": "page", "id": "42"})
	call(t, NewOpenTool(env.docs).Handle, map[string]interface{}{"kind": "issue", "id": "ENG-1"})

	text := resultText(t, call(t, tool.Handle, map[string]interface{}{"close_all": true}))
	for _, want := range []string{"Open documents (2)", "issue ENG-1", "page 42 v3", "All sessions closed"} {
		if !strings.Contains(text, want) {
			t.Errorf("response should contain %q:\n%s", want, text)
		}
	}
	if strings.Index(text, "issue ENG-1") > strings.Index(text, "page 42") {
		t.Error("sessions should be sorted by kind")
	}
	if env.docs.Sessions.Len() != 0 {
		t.Errorf("sessions left = %d", env.docs.Sessions.Len())
	}
}

func TestHistoryTool(t *testing.T) {
	env := newTestEnv(t)
	tool := NewHistoryTool(env.journal)

	if text := resultText(t, call(t, tool.Handle, nil)); !strings.Contains(text, "No saves recorded") {
		t.Errorf("empty history: %s", text)
	}

	save := NewSaveTool(env.docs)
	call(t, save.Handle, map[string]interface{}{"kind": "page", "text": "---\nkind: page\nid: \"42\"\ntitle: Runbook\nversion: 3\n---\n\n<p>a</p>"})
	call(t, save.Handle, map[string]interface{}{"kind": "page", "text": "---\nkind: page\nid: \"999\"\ntitle: Gone\nversion: 1\n---\n\n<p>b</p>"})

	text := resultText(t, call(t, tool.Handle, map[string]interface{}{"kind": "page"}))
	for _, want := range []string{"Recent saves (2)", "update page 42 → v4 [ok, 1 attempt(s)]", "update page 999 [error"} {
		if !strings.Contains(text, want) {
			t.Errorf("history should contain %q:\n%s", want, text)
		}
	}

	text = resultText(t, call(t, tool.Handle, map[string]interface{}{"id": "42"}))
	if strings.Contains(text, "999") {
		t.Errorf("id filter leaked other entries:\n%s", text)
	}

	result := call(t, tool.Handle, map[string]interface{}{"kind": "blog"})
	if !isErrorResult(result) {
		t.Error("invalid kind should be rejected")
	}
}

func TestJournalBridge_NilStore(t *testing.T) {
	b := NewJournalBridge(nil, nil)
	b.Observe(context.Background(), writeback.Outcome{Kind: mirror.KindPage, ID: "42", Attempts: 1})
}

func TestJournalBridge_UnknownID(t *testing.T) {
	env := newTestEnv(t)
	b := NewJournalBridge(env.journal, logging.Discard())
	b.Observe(context.Background(), writeback.Outcome{Kind: mirror.KindIssue, Action: writeback.ActionCreate, Err: os.ErrClosed})

	entries, err := env.journal.Recent("issue", "(unknown)", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Outcome != journal.OutcomeError {
		t.Errorf("entries = %+v", entries)
	}
}

// ─── Jira tools ──────────────────────────────────────────────────────────────

func TestJiraGetIssueTool(t *testing.T) {
	env := newTestEnv(t)
	tool := NewJiraGetIssueTool(env.jira)

	text := resultText(t, call(t, tool.Handle, map[string]interface{}{"key": "ENG-1", "max_comments": 1}))
	for _, want := range []string{
		"# ENG-1: Fix login", "- Type: Bug", "- Status: To Do", "- Labels: auth",
		"- Other fields: 1", "/browse/ENG-1", "## Comments (2)", "Showing the latest 1",
		"Also on prod", "31: Done → Done",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output should contain %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "Seen on staging") {
		t.Error("older comment should be cut by max_comments")
	}

	if result := call(t, tool.Handle, map[string]interface{}{"key": "NOPE-1"}); !isErrorResult(result) {
		t.Error("missing issue should be an error result")
	}
	if result := call(t, tool.Handle, nil); !isErrorResult(result) {
		t.Error("missing key should be an error result")
	}
}

func TestJiraSearchTool(t *testing.T) {
	env := newTestEnv(t)
	text := resultText(t, call(t, NewJiraSearchTool(env.jira).Handle, map[string]interface{}{"jql": "project = ENG"}))
	if !strings.Contains(text, "ENG-1 [To Do] Fix login") {
		t.Errorf("output:\n%s", text)
	}
	if env.fake.lastJQL != "project = ENG" {
		t.Errorf("jql sent = %q", env.fake.lastJQL)
	}
}

func TestJiraAddCommentTool(t *testing.T) {
	env := newTestEnv(t)
	tool := NewJiraAddCommentTool(env.jira)

	text := resultText(t, call(t, tool.Handle, map[string]interface{}{"key": "ENG-1", "body": "Fixed in #12"}))
	if !strings.Contains(text, "Comment 3 added to ENG-1") {
		t.Errorf("output: %s", text)
	}
	if got := env.fake.issue("ENG-1").comments; got[len(got)-1] != "Fixed in #12" {
		t.Errorf("comments = %v", got)
	}
	if result := call(t, tool.Handle, map[string]interface{}{"key": "ENG-1", "body": "  "}); !isErrorResult(result) {
		t.Error("blank body should be rejected")
	}
}

func TestJiraTransitionTool(t *testing.T) {
	env := newTestEnv(t)
	tool := NewJiraTransitionTool(env.jira)

	text := resultText(t, call(t, tool.Handle, map[string]interface{}{"key": "ENG-1"}))
	if !strings.Contains(text, "21: Start") || !strings.Contains(text, "31: Done") {
		t.Errorf("listing:\n%s", text)
	}

	text = resultText(t, call(t, tool.Handle, map[string]interface{}{"key": "ENG-1", "transition_id": "done"}))
	if !strings.Contains(text, `moved with transition "Done"`) {
		t.Errorf("output: %s", text)
	}
	if got := env.fake.issue("ENG-1").status; got != "Done" {
		t.Errorf("status = %q, want Done", got)
	}

	result := call(t, tool.Handle, map[string]interface{}{"key": "ENG-1", "transition_id": "99"})
	if !isErrorResult(result) || !strings.Contains(resultText(t, result), "not available") {
		t.Error("unknown transition should be rejected")
	}
}

func TestJiraProjectsTool(t *testing.T) {
	env := newTestEnv(t)
	text := resultText(t, call(t, NewJiraProjectsTool(env.jira).Handle, nil))
	if !strings.Contains(text, "ENG: Engineering") {
		t.Errorf("output: %s", text)
	}
}

// ─── Confluence tools ────────────────────────────────────────────────────────

func TestConfluenceGetPageTool(t *testing.T) {
	env := newTestEnv(t)
	tool := NewConfluenceGetPageTool(env.wiki)

	text := resultText(t, call(t, tool.Handle, map[string]interface{}{"id": "42"}))
	for _, want := range []string{"# Runbook", "- Space: DOCS", "- Version: 3", "- Path: Home", "/wiki/spaces/DOCS/pages/42", "<p>step one</p>"} {
		if !strings.Contains(text, want) {
			t.Errorf("output should contain %q:\n%s", want, text)
		}
	}

	text = resultText(t, call(t, tool.Handle, map[string]interface{}{"id": "42", "include_body": false}))
	if strings.Contains(text, "<p>step one</p>") {
		t.Error("body should be omitted")
	}
}

func TestConfluenceSearchTool(t *testing.T) {
	env := newTestEnv(t)
	text := resultText(t, call(t, NewConfluenceSearchTool(env.wiki).Handle, map[string]interface{}{"query": "runbook"}))
	if !strings.Contains(text, "Runbook [id 42]") {
		t.Errorf("output:\n%s", text)
	}
	if env.fake.lastCQL != `text ~ "runbook"` {
		t.Errorf("cql sent = %q", env.fake.lastCQL)
	}
}

func TestToCQL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"onboarding", `text ~ "onboarding"`},
		{`say "hi"`, `text ~ "say \"hi\""`},
		{"space = DOCS", "space = DOCS"},
		{`title ~ "x"`, `title ~ "x"`},
		{"type in (page, blogpost)", "type in (page, blogpost)"},
	}
	for _, tt := range tests {
		if got := toCQL(tt.in); got != tt.want {
			t.Errorf("toCQL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestConfluenceSpacesAndChildren(t *testing.T) {
	env := newTestEnv(t)

	text := resultText(t, call(t, NewConfluenceSpacesTool(env.wiki).Handle, nil))
	if !strings.Contains(text, "DOCS: Documentation (global)") {
		t.Errorf("spaces:\n%s", text)
	}

	text = resultText(t, call(t, NewConfluenceChildrenTool(env.wiki).Handle, map[string]interface{}{"id": "1"}))
	if !strings.Contains(text, "42: Runbook (v3)") {
		t.Errorf("children:\n%s", text)
	}
	text = resultText(t, call(t, NewConfluenceChildrenTool(env.wiki).Handle, map[string]interface{}{"id": "42"}))
	if !strings.Contains(text, "no child pages") {
		t.Errorf("leaf page:\n%s", text)
	}
}

func TestConfluenceAddCommentTool(t *testing.T) {
	env := newTestEnv(t)
	tool := NewConfluenceAddCommentTool(env.wiki)
	text := resultText(t, call(t, tool.Handle, map[string]interface{}{"id": "42", "body": "Looks good"}))
	if !strings.Contains(text, "Comment c-1 added to page 42") {
		t.Errorf("output: %s", text)
	}
	if result := call(t, tool.Handle, map[string]interface{}{"id": "42"}); !isErrorResult(result) {
		t.Error("missing body should be rejected")
	}
}

// ─── atlas_status / helpers ──────────────────────────────────────────────────

func TestStatusTool(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.journal.Record(journal.Entry{Kind: "page", EntityID: "42", Action: "update"}); err != nil {
		t.Fatal(err)
	}
	tool := NewStatusTool(env.jira, env.jiraConn, env.wikiConn, env.docs.Sessions, env.docs.Workspace, env.journal)

	text := resultText(t, call(t, tool.Handle, map[string]interface{}{"check_connection": true}))
	for _, want := range []string{"- Jira: " + env.jiraConn.BaseURL, "Save history: enabled, 1 save(s) recorded", "Open documents: 0", "signed in as Ana Admin <ana@acme.test>"} {
		if !strings.Contains(text, want) {
			t.Errorf("status should contain %q:\n%s", want, text)
		}
	}

	blank := env.wikiConn
	blank.APIToken = ""
	tool = NewStatusTool(env.jira, env.jiraConn, blank, env.docs.Sessions, env.docs.Workspace, nil)
	text = resultText(t, call(t, tool.Handle, nil))
	if !strings.Contains(text, "- Confluence: not configured") || !strings.Contains(text, "Save history: disabled") {
		t.Errorf("status:\n%s", text)
	}
}

func TestFailure_NextSteps(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"configuration", &atlassian.ConfigError{Service: "jira", Missing: []string{"jira.email"}}, "call atlas_status"},
		{"not found", &atlassian.TransportError{Method: "GET", Path: "/x", StatusCode: 404}, "Check the identifier"},
		{"conflict", &atlassian.TransportError{Method: "PUT", Path: "/x", StatusCode: 409, Body: "Version must be incremented on update."}, "re-open the document"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := failure("doing", tt.err)
			if !isErrorResult(result) {
				t.Fatal("failure must be an error result")
			}
			if text := resultText(t, result); !strings.Contains(text, tt.want) {
				t.Errorf("failure text should contain %q: %s", tt.want, text)
			}
		})
	}

	if text := resultText(t, failure("doing", errors.New("boom"))); text != "doing: boom" {
		t.Errorf("plain error text = %q", text)
	}
}

func TestOpenTool_UnconfiguredPointsToStatus(t *testing.T) {
	env := newTestEnv(t)
	blank := env.wikiConn
	blank.APIToken = ""
	env.docs.Coordinator = writeback.New(env.jira, confluence.NewClient(atlassian.NewClient(blank)))

	result := call(t, NewOpenTool(env.docs).Handle, map[string]interface{}{"kind": "page", "id": "42"})
	if !isErrorResult(result) {
		t.Fatal("expected error result")
	}
	text := resultText(t, result)
	if !strings.Contains(text, "confluence.api_token") || !strings.Contains(text, "atlas_status") {
		t.Errorf("error should name the missing setting and atlas_status: %s", text)
	}
}

func TestIntArg(t *testing.T) {
	req := makeReq(map[string]interface{}{"a": float64(7), "b": "12", "c": "x"})
	if got := intArg(req, "a", 1); got != 7 {
		t.Errorf("float = %d", got)
	}
	if got := intArg(req, "b", 1); got != 12 {
		t.Errorf("string = %d", got)
	}
	if got := intArg(req, "c", 1); got != 1 {
		t.Errorf("invalid = %d", got)
	}
	if got := intArg(req, "missing", 5); got != 5 {
		t.Errorf("missing = %d", got)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("héllo", 2); got != "hé..." {
		t.Errorf("truncate = %q", got)
	}
	if got := truncate("hi", 5); got != "hi" {
		t.Errorf("truncate = %q", got)
	}
}
