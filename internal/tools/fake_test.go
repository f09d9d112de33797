package tools

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/HendryAvila/atlasmcp/internal/atlassian"
	"github.com/HendryAvila/atlasmcp/internal/confluence"
	"github.com/HendryAvila/atlasmcp/internal/jira"
)

// ─── Fake Atlassian site ─────────────────────────────────────────────────────
//
// One httptest server answers both the Jira REST v2 API (under /rest/api/2)
// and the Confluence content API (under /wiki/rest/api), backed by maps.

type fakeIssue struct {
	id          string
	summary     string
	description string
	status      string
	typ         string
	labels      []string
	comments    []string
}

type fakePage struct {
	title    string
	body     string
	version  int
	space    string
	parentID string
}

type fakeAtlassian struct {
	mu        sync.Mutex
	issues    map[string]*fakeIssue
	pages     map[string]*fakePage
	nextIssue int
	nextPage  int
	requests  []string
	lastJQL   string
	lastCQL   string
	pagePuts  []int
	issuePuts []map[string]json.RawMessage
	// refreshFails makes issue reads fail once an issue has been updated.
	refreshFails bool
}

func newFakeAtlassian() *fakeAtlassian {
	return &fakeAtlassian{
		issues: map[string]*fakeIssue{
			"ENG-1": {
				id: "10001", summary: "Fix login", description: "h2. Steps\n\n# open /login",
				status: "To Do", typ: "Bug", labels: []string{"auth"},
				comments: []string{"Seen on staging", "Also on prod"},
			},
		},
		pages: map[string]*fakePage{
			"1":  {title: "Home", body: "<p>root</p>", version: 9, space: "DOCS"},
			"42": {title: "Runbook", body: "<p>step one</p>", version: 3, space: "DOCS", parentID: "1"},
		},
		nextIssue: 2,
		nextPage:  100,
	}
}

func (f *fakeAtlassian) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)

	switch p := r.URL.Path; {
	case strings.HasPrefix(p, "/wiki/rest/api/"):
		f.serveWiki(w, r, strings.Split(strings.TrimPrefix(p, "/wiki/rest/api/"), "/"))
	case strings.HasPrefix(p, "/rest/api/2/"):
		f.serveJira(w, r, strings.Split(strings.TrimPrefix(p, "/rest/api/2/"), "/"))
	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeAtlassian) serveJira(w http.ResponseWriter, r *http.Request, parts []string) {
	switch {
	case parts[0] == "myself":
		writeJSON(w, 200, map[string]any{"accountId": "acc-1", "displayName": "Ana Admin", "emailAddress": "ana@acme.test"})
	case parts[0] == "project":
		writeJSON(w, 200, []map[string]any{{"id": "1", "key": "ENG", "name": "Engineering"}})
	case parts[0] == "search":
		f.lastJQL = r.URL.Query().Get("jql")
		var issues []map[string]any
		for key, is := range f.issues {
			issues = append(issues, f.issueJSON(key, is))
		}
		writeJSON(w, 200, map[string]any{"total": len(issues), "issues": issues})
	case parts[0] == "issue" && len(parts) == 1 && r.Method == http.MethodPost:
		var body struct {
			Fields struct {
				Summary   string `json:"summary"`
				IssueType struct {
					Name string `json:"name"`
				} `json:"issuetype"`
				Description string `json:"description"`
			} `json:"fields"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		key := fmt.Sprintf("ENG-%d", f.nextIssue)
		f.issues[key] = &fakeIssue{
			id: strconv.Itoa(10000 + f.nextIssue), summary: body.Fields.Summary,
			description: body.Fields.Description, status: "To Do", typ: body.Fields.IssueType.Name,
		}
		f.nextIssue++
		writeJSON(w, 201, map[string]any{"id": f.issues[key].id, "key": key})
	case parts[0] == "issue" && len(parts) >= 2:
		is, ok := f.issues[parts[1]]
		if !ok {
			writeJSON(w, 404, map[string]any{"errorMessages": []string{"Issue does not exist or you do not have permission to see it."}})
			return
		}
		f.serveIssue(w, r, parts[1], is, parts[2:])
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeAtlassian) serveIssue(w http.ResponseWriter, r *http.Request, key string, is *fakeIssue, sub []string) {
	switch {
	case len(sub) == 0 && r.Method == http.MethodGet:
		if f.refreshFails && len(f.issuePuts) > 0 {
			writeJSON(w, 503, map[string]any{"errorMessages": []string{"Service unavailable"}})
			return
		}
		writeJSON(w, 200, f.issueJSON(key, is))
	case len(sub) == 0 && r.Method == http.MethodPut:
		var body struct {
			Fields map[string]json.RawMessage `json:"fields"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.issuePuts = append(f.issuePuts, body.Fields)
		if raw, ok := body.Fields["summary"]; ok {
			_ = json.Unmarshal(raw, &is.summary)
		}
		if raw, ok := body.Fields["description"]; ok {
			_ = json.Unmarshal(raw, &is.description)
		}
		if raw, ok := body.Fields["labels"]; ok {
			_ = json.Unmarshal(raw, &is.labels)
		}
		w.WriteHeader(http.StatusNoContent)
	case sub[0] == "comment" && r.Method == http.MethodGet:
		var comments []map[string]any
		for i, c := range is.comments {
			comments = append(comments, map[string]any{
				"id": strconv.Itoa(i + 1), "body": c, "created": "2026-01-0" + strconv.Itoa(i+1),
				"author": map[string]any{"displayName": "Bo"},
			})
		}
		writeJSON(w, 200, map[string]any{"comments": comments})
	case sub[0] == "comment" && r.Method == http.MethodPost:
		var body struct {
			Body string `json:"body"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		is.comments = append(is.comments, body.Body)
		writeJSON(w, 201, map[string]any{"id": strconv.Itoa(len(is.comments)), "body": body.Body})
	case sub[0] == "transitions" && r.Method == http.MethodGet:
		writeJSON(w, 200, map[string]any{"transitions": []map[string]any{
			{"id": "21", "name": "Start", "to": map[string]any{"name": "In Progress"}},
			{"id": "31", "name": "Done", "to": map[string]any{"name": "Done"}},
		}})
	case sub[0] == "transitions" && r.Method == http.MethodPost:
		var body struct {
			Transition struct {
				ID string `json:"id"`
			} `json:"transition"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Transition.ID == "31" {
			is.status = "Done"
		} else {
			is.status = "In Progress"
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeAtlassian) issueJSON(key string, is *fakeIssue) map[string]any {
	return map[string]any{
		"id":  is.id,
		"key": key,
		"fields": map[string]any{
			"summary":           is.summary,
			"description":       is.description,
			"status":            map[string]any{"name": is.status},
			"issuetype":         map[string]any{"name": is.typ},
			"project":           map[string]any{"key": "ENG"},
			"labels":            is.labels,
			"customfield_10010": "Sprint 4",
		},
	}
}

func (f *fakeAtlassian) serveWiki(w http.ResponseWriter, r *http.Request, parts []string) {
	switch {
	case parts[0] == "space":
		writeJSON(w, 200, map[string]any{"results": []map[string]any{
			{"key": "DOCS", "name": "Documentation", "type": "global"},
		}, "size": 1})
	case parts[0] == "search":
		f.lastCQL = r.URL.Query().Get("cql")
		var results []map[string]any
		for id, p := range f.pages {
			results = append(results, map[string]any{
				"title": p.title, "excerpt": "about " + p.title,
				"content": map[string]any{"id": id, "title": p.title},
			})
		}
		writeJSON(w, 200, map[string]any{"results": results, "size": len(results)})
	case parts[0] == "content" && len(parts) == 1 && r.Method == http.MethodPost:
		f.createContent(w, r)
	case parts[0] == "content" && len(parts) >= 2:
		p, ok := f.pages[parts[1]]
		if !ok {
			writeJSON(w, 404, map[string]any{"statusCode": 404, "message": "No content found with id: " + parts[1]})
			return
		}
		switch {
		case len(parts) == 2 && r.Method == http.MethodGet:
			writeJSON(w, 200, f.pageJSON(parts[1], p))
		case len(parts) == 2 && r.Method == http.MethodPut:
			f.updatePage(w, r, parts[1], p)
		case len(parts) == 4 && parts[2] == "child":
			var children []map[string]any
			for id, c := range f.pages {
				if c.parentID == parts[1] {
					children = append(children, f.pageJSON(id, c))
				}
			}
			writeJSON(w, 200, map[string]any{"results": children, "size": len(children)})
		default:
			http.NotFound(w, r)
		}
	default:
		http.NotFound(w, r)
	}
}

type pageBody struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	Space struct {
		Key string `json:"key"`
	} `json:"space"`
	Body struct {
		Storage struct {
			Value string `json:"value"`
		} `json:"storage"`
	} `json:"body"`
	Ancestors []struct {
		ID string `json:"id"`
	} `json:"ancestors"`
	Version struct {
		Number int `json:"number"`
	} `json:"version"`
}

func (f *fakeAtlassian) createContent(w http.ResponseWriter, r *http.Request) {
	var in pageBody
	_ = json.NewDecoder(r.Body).Decode(&in)
	if in.Type == "comment" {
		writeJSON(w, 200, map[string]any{"id": "c-1", "type": "comment", "title": "Re: comment"})
		return
	}
	id := strconv.Itoa(f.nextPage)
	f.nextPage++
	p := &fakePage{title: in.Title, body: in.Body.Storage.Value, version: 1, space: in.Space.Key}
	if len(in.Ancestors) > 0 {
		p.parentID = in.Ancestors[0].ID
	}
	f.pages[id] = p
	writeJSON(w, 200, f.pageJSON(id, p))
}

func (f *fakeAtlassian) updatePage(w http.ResponseWriter, r *http.Request, id string, p *fakePage) {
	var in pageBody
	_ = json.NewDecoder(r.Body).Decode(&in)
	f.pagePuts = append(f.pagePuts, in.Version.Number)
	if in.Version.Number != p.version+1 {
		writeJSON(w, 409, map[string]any{
			"statusCode": 409,
			"message":    fmt.Sprintf("Version must be incremented on update. Current version is: %d", p.version),
		})
		return
	}
	p.version = in.Version.Number
	p.title = in.Title
	p.body = in.Body.Storage.Value
	writeJSON(w, 200, f.pageJSON(id, p))
}

func (f *fakeAtlassian) pageJSON(id string, p *fakePage) map[string]any {
	var ancestors []map[string]any
	if parent, ok := f.pages[p.parentID]; ok {
		ancestors = append(ancestors, map[string]any{"id": p.parentID, "title": parent.title})
	}
	return map[string]any{
		"id":        id,
		"type":      "page",
		"status":    "current",
		"title":     p.title,
		"space":     map[string]any{"key": p.space, "name": "Documentation"},
		"version":   map[string]any{"number": p.version, "when": "2026-02-01T10:00:00.000Z", "by": map[string]any{"displayName": "Ana"}},
		"body":      map[string]any{"storage": map[string]any{"value": p.body, "representation": "storage"}},
		"ancestors": ancestors,
		"_links":    map[string]any{"webui": "/spaces/" + p.space + "/pages/" + id},
	}
}

// page returns a copy of the remote page state.
func (f *fakeAtlassian) page(id string) fakePage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.pages[id]
}

// issue returns a copy of the remote issue state.
func (f *fakeAtlassian) issue(key string) fakeIssue {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.issues[key]
}

// bumpPage simulates another user saving page id.
func (f *fakeAtlassian) bumpPage(id string, to int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[id].version = to
	f.pages[id].body = "<p>their edit</p>"
}

// ─── Clients ─────────────────────────────────────────────────────────────────

type testSite struct {
	fake     *fakeAtlassian
	jiraConn atlassian.Connection
	wikiConn atlassian.Connection
	jira     *jira.Client
	wiki     *confluence.Client
}

func newTestSite(t *testing.T) *testSite {
	t.Helper()
	fake := newFakeAtlassian()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	jiraConn := atlassian.Connection{Service: "jira", BaseURL: srv.URL, Email: "ana@acme.test", APIToken: "t"}
	wikiConn := atlassian.Connection{Service: "confluence", BaseURL: srv.URL + "/wiki", Email: "ana@acme.test", APIToken: "t"}
	return &testSite{
		fake:     fake,
		jiraConn: jiraConn,
		wikiConn: wikiConn,
		jira:     jira.NewClient(atlassian.NewClient(jiraConn, atlassian.WithHTTPClient(srv.Client()))),
		wiki:     confluence.NewClient(atlassian.NewClient(wikiConn, atlassian.WithHTTPClient(srv.Client()))),
	}
}
