// Package writeback opens remote entities as text documents and persists
// edited documents back, handling page version numbers.
//
// Pages use optimistic concurrency: the update carries version+1 and a
// stale version is rejected. On such a rejection the coordinator re-reads
// the current version and retries exactly once. Issues have no
// client-visible version and are updated with a plain PUT, one attempt.
package writeback

import (
	"context"
	"errors"
	"fmt"

	"github.com/HendryAvila/atlasmcp/internal/atlassian"
	"github.com/HendryAvila/atlasmcp/internal/confluence"
	"github.com/HendryAvila/atlasmcp/internal/jira"
	"github.com/HendryAvila/atlasmcp/internal/mirror"
)

// IssueService is the subset of the Jira client the coordinator uses.
type IssueService interface {
	GetIssue(ctx context.Context, key string) (*jira.Issue, error)
	CreateIssue(ctx context.Context, in jira.IssueInput) (*jira.CreatedIssue, error)
	UpdateIssue(ctx context.Context, key string, in jira.IssueInput) error
}

// PageService is the subset of the Confluence client the coordinator uses.
type PageService interface {
	GetPage(ctx context.Context, id string) (*confluence.Page, error)
	CreatePage(ctx context.Context, in confluence.PageInput) (*confluence.Page, error)
	UpdatePage(ctx context.Context, id string, in confluence.PageInput) (*confluence.Page, error)
}

// Action is what a save did remotely.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
)

// Outcome describes one finished save, successful or not.
type Outcome struct {
	Kind         mirror.Kind
	ID           string
	Action       Action
	Version      int
	Attempts     int
	AutoResolved bool
	// Err is set when the save did not happen.
	Err error
	// RefreshErr is set when the save happened but re-reading the entity
	// afterwards failed.
	RefreshErr error
}

// Observer is notified after every save. It must not block for long.
type Observer func(ctx context.Context, o Outcome)

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithObserver registers a save observer.
func WithObserver(fn Observer) Option {
	return func(c *Coordinator) {
		c.observer = fn
	}
}

// Coordinator holds no entity state between calls; every operation
// re-reads what it needs.
type Coordinator struct {
	issues   IssueService
	pages    PageService
	observer Observer
}

// New creates a Coordinator.
func New(issues IssueService, pages PageService, opts ...Option) *Coordinator {
	c := &Coordinator{issues: issues, pages: pages}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Opened is an entity rendered as text.
type Opened struct {
	Kind    mirror.Kind
	ID      string
	Title   string
	Version int
	Text    string
}

// Result is a successful save.
type Result struct {
	Kind    mirror.Kind
	ID      string
	Created bool
	// Version is the page version after the save; 0 for issues.
	Version      int
	Attempts     int
	AutoResolved bool
	Message      string
	// Text is the refreshed document. Empty after a create: the caller
	// re-opens the entity under its real identifier.
	Text  string
	Issue *jira.Issue
	Page  *confluence.Page
}

// SaveError is a failed save. It names the entity and wraps the cause.
type SaveError struct {
	Kind mirror.Kind
	ID   string
	Err  error
}

func (e *SaveError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("saving %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("saving %s %s: %v", e.Kind, e.ID, e.Err)
}

func (e *SaveError) Unwrap() error {
	return e.Err
}

// Open fetches an entity and renders its document.
func (c *Coordinator) Open(ctx context.Context, kind mirror.Kind, id string) (*Opened, error) {
	switch kind {
	case mirror.KindIssue:
		issue, err := c.issues.GetIssue(ctx, id)
		if err != nil {
			return nil, err
		}
		text, err := mirror.SerializeIssue(issue)
		if err != nil {
			return nil, err
		}
		return &Opened{Kind: kind, ID: issue.Key, Title: issue.Fields.Summary, Text: text}, nil
	case mirror.KindPage:
		page, err := c.pages.GetPage(ctx, id)
		if err != nil {
			return nil, err
		}
		text, err := mirror.SerializePage(page)
		if err != nil {
			return nil, err
		}
		return &Opened{Kind: kind, ID: page.ID, Title: page.Title, Version: page.VersionNumber(), Text: text}, nil
	}
	return nil, fmt.Errorf("open: unsupported kind %q", kind)
}

// Template renders a create-intent document. container is the project key
// for issues and the space key for pages; extra is the issue type or the
// parent page id.
func (c *Coordinator) Template(kind mirror.Kind, container, extra string) (string, error) {
	var (
		doc mirror.Document
		err error
	)
	switch kind {
	case mirror.KindIssue:
		doc, err = mirror.NewIssueTemplate(container, extra)
	case mirror.KindPage:
		doc, err = mirror.NewPageTemplate(container, extra)
	default:
		err = fmt.Errorf("template: unsupported kind %q", kind)
	}
	if err != nil {
		return "", err
	}
	return doc.String(), nil
}

// Save parses text and writes it back. A document whose identifier is the
// sentinel "new" is created; anything else is updated.
func (c *Coordinator) Save(ctx context.Context, kind mirror.Kind, text string) (*Result, error) {
	p := mirror.ParseAs(text, kind)
	if p.Kind != "" && p.Kind != kind {
		return nil, &SaveError{Kind: kind, ID: p.ID, Err: fmt.Errorf("document is a %s, not a %s", p.Kind, kind)}
	}
	if p.ID == "" {
		return nil, &SaveError{Kind: kind, Err: errors.New("document has no identifier in its preamble")}
	}

	var (
		res *Result
		err error
	)
	switch kind {
	case mirror.KindIssue:
		if p.IsNew() {
			res, err = c.createIssue(ctx, p)
		} else {
			res, err = c.updateIssue(ctx, p)
		}
	case mirror.KindPage:
		if p.IsNew() {
			res, err = c.createPage(ctx, p)
		} else {
			res, err = c.updatePage(ctx, p)
		}
	default:
		return nil, &SaveError{Kind: kind, ID: p.ID, Err: errors.New("unsupported kind")}
	}

	c.notify(ctx, kind, p, res, err)
	return res, err
}

func (c *Coordinator) notify(ctx context.Context, kind mirror.Kind, p *mirror.Partial, res *Result, err error) {
	if c.observer == nil {
		return
	}
	o := Outcome{Kind: kind, ID: p.ID, Action: ActionUpdate, Err: err}
	if p.IsNew() {
		o.Action = ActionCreate
	}
	if res != nil {
		o.Err, o.RefreshErr = nil, err
		o.ID = res.ID
		o.Version = res.Version
		o.Attempts = res.Attempts
		o.AutoResolved = res.AutoResolved
	}
	c.observer(ctx, o)
}

// ─── Issues ──────────────────────────────────────────────────────────────────

func issueInput(p *mirror.Partial) jira.IssueInput {
	body := p.Body
	in := jira.IssueInput{Description: &body}
	if p.HasTitle {
		title := p.Title
		in.Summary = &title
	}
	if f := p.Issue; f != nil {
		in.IssueType = f.IssueType
		in.Priority = f.Priority
		in.AssigneeID = f.AssigneeID
		in.Labels = f.Labels
		in.ParentKey = f.ParentKey
	}
	return in
}

func (c *Coordinator) createIssue(ctx context.Context, p *mirror.Partial) (*Result, error) {
	in := issueInput(p)
	if !p.HasBody {
		in.Description = nil
	}
	if p.Issue != nil {
		in.ProjectKey = p.Issue.ProjectKey
	}
	created, err := c.issues.CreateIssue(ctx, in)
	if err != nil {
		return nil, &SaveError{Kind: mirror.KindIssue, ID: mirror.SentinelNew, Err: err}
	}
	return &Result{
		Kind:     mirror.KindIssue,
		ID:       created.Key,
		Created:  true,
		Attempts: 1,
		Message:  fmt.Sprintf("Created issue %s. Open it by key to keep editing.", created.Key),
	}, nil
}

func (c *Coordinator) updateIssue(ctx context.Context, p *mirror.Partial) (*Result, error) {
	if err := c.issues.UpdateIssue(ctx, p.ID, issueInput(p)); err != nil {
		return nil, &SaveError{Kind: mirror.KindIssue, ID: p.ID, Err: err}
	}
	res := &Result{
		Kind:     mirror.KindIssue,
		ID:       p.ID,
		Attempts: 1,
		Message:  fmt.Sprintf("Updated issue %s.", p.ID),
	}

	issue, err := c.issues.GetIssue(ctx, p.ID)
	if err != nil {
		return res, fmt.Errorf("issue %s saved, refreshing failed: %w", p.ID, err)
	}
	text, err := mirror.SerializeIssue(issue)
	if err != nil {
		return res, err
	}
	res.Issue = issue
	res.Text = text
	return res, nil
}

// ─── Pages ───────────────────────────────────────────────────────────────────

func (c *Coordinator) createPage(ctx context.Context, p *mirror.Partial) (*Result, error) {
	body := p.Body
	in := confluence.PageInput{Title: p.Title, Body: &body}
	if p.Page != nil {
		in.SpaceKey = p.Page.SpaceKey
		in.ParentID = p.Page.ParentID
	}
	page, err := c.pages.CreatePage(ctx, in)
	if err != nil {
		return nil, &SaveError{Kind: mirror.KindPage, ID: mirror.SentinelNew, Err: err}
	}
	return &Result{
		Kind:     mirror.KindPage,
		ID:       page.ID,
		Created:  true,
		Version:  page.VersionNumber(),
		Attempts: 1,
		Message:  fmt.Sprintf("Created page %s (%q). Open it by id to keep editing.", page.ID, page.Title),
	}, nil
}

func (c *Coordinator) updatePage(ctx context.Context, p *mirror.Partial) (*Result, error) {
	fail := func(err error) (*Result, error) {
		return nil, &SaveError{Kind: mirror.KindPage, ID: p.ID, Err: err}
	}

	body := p.Body
	in := confluence.PageInput{Title: p.Title, Body: &body}
	if p.Page != nil {
		in.ParentID = p.Page.ParentID
	}

	base := p.Version
	if base <= 0 || !p.HasTitle {
		current, err := c.pages.GetPage(ctx, p.ID)
		if err != nil {
			return fail(err)
		}
		if base <= 0 {
			base = current.VersionNumber()
		}
		if !p.HasTitle {
			in.Title = current.Title
		}
	}
	in.Version = base + 1

	res := &Result{Kind: mirror.KindPage, ID: p.ID, Attempts: 1}
	updated, err := c.pages.UpdatePage(ctx, p.ID, in)
	if err != nil {
		if !atlassian.IsVersionConflict(err) {
			return fail(err)
		}
		current, gerr := c.pages.GetPage(ctx, p.ID)
		if gerr != nil {
			return fail(fmt.Errorf("re-reading version after conflict: %w", gerr))
		}
		in.Version = current.VersionNumber() + 1
		res.Attempts = 2
		updated, err = c.pages.UpdatePage(ctx, p.ID, in)
		if err != nil {
			return fail(err)
		}
		res.AutoResolved = true
	}

	res.Version = in.Version
	if v := updated.VersionNumber(); v > 0 {
		res.Version = v
	}
	if res.AutoResolved {
		res.Message = fmt.Sprintf("Updated page %s to version %d (a newer remote version was detected and overwritten).", p.ID, res.Version)
	} else {
		res.Message = fmt.Sprintf("Updated page %s to version %d.", p.ID, res.Version)
	}

	page, err := c.pages.GetPage(ctx, p.ID)
	if err != nil {
		return res, fmt.Errorf("page %s saved, refreshing failed: %w", p.ID, err)
	}
	text, err := mirror.SerializePage(page)
	if err != nil {
		return res, err
	}
	res.Page = page
	res.Version = page.VersionNumber()
	res.Text = text
	return res, nil
}
