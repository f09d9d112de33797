package jira

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/HendryAvila/atlasmcp/internal/atlassian"
	"golang.org/x/sync/errgroup"
)

const apiPrefix = "/rest/api/2"

// Client exposes Jira issue operations on top of an atlassian.Client.
type Client struct {
	api *atlassian.Client
}

// NewClient wraps an authenticated request executor.
func NewClient(api *atlassian.Client) *Client {
	return &Client{api: api}
}

// BrowseURL returns the web URL of an issue.
func (c *Client) BrowseURL(key string) string {
	return c.api.BaseURL() + "/browse/" + key
}

// GetIssue fetches one issue with all navigable fields.
func (c *Client) GetIssue(ctx context.Context, key string) (*Issue, error) {
	raw, err := c.api.Get(ctx, apiPrefix+"/issue/"+url.PathEscape(key))
	if err != nil {
		return nil, fmt.Errorf("getting issue %s: %w", key, err)
	}
	return atlassian.Decode[Issue](raw)
}

// Search runs a JQL query.
func (c *Client) Search(ctx context.Context, jql string, maxResults int) (*SearchResult, error) {
	if maxResults <= 0 {
		maxResults = 20
	}
	q := url.Values{}
	q.Set("jql", jql)
	q.Set("maxResults", strconv.Itoa(maxResults))
	q.Set("fields", "summary,status,priority,assignee,issuetype,updated")

	raw, err := c.api.Get(ctx, apiPrefix+"/search?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("searching issues: %w", err)
	}
	return atlassian.Decode[SearchResult](raw)
}

// CreateIssue creates an issue. ProjectKey, Summary and IssueType are required.
func (c *Client) CreateIssue(ctx context.Context, in IssueInput) (*CreatedIssue, error) {
	if in.ProjectKey == "" {
		return nil, fmt.Errorf("creating issue: project key is required")
	}
	if in.Summary == nil || *in.Summary == "" {
		return nil, fmt.Errorf("creating issue: summary is required")
	}
	if in.IssueType == "" {
		in.IssueType = "Task"
	}
	raw, err := c.api.Post(ctx, apiPrefix+"/issue", in.Payload())
	if err != nil {
		return nil, fmt.Errorf("creating issue in %s: %w", in.ProjectKey, err)
	}
	return atlassian.Decode[CreatedIssue](raw)
}

// UpdateIssue edits fields with a plain PUT. Jira has no client-visible
// version, so nothing is checked.
func (c *Client) UpdateIssue(ctx context.Context, key string, in IssueInput) error {
	if _, err := c.api.Put(ctx, apiPrefix+"/issue/"+url.PathEscape(key), in.Payload()); err != nil {
		return fmt.Errorf("updating issue %s: %w", key, err)
	}
	return nil
}

// Comments lists the comments on an issue.
func (c *Client) Comments(ctx context.Context, key string) ([]Comment, error) {
	raw, err := c.api.Get(ctx, apiPrefix+"/issue/"+url.PathEscape(key)+"/comment")
	if err != nil {
		return nil, fmt.Errorf("listing comments on %s: %w", key, err)
	}
	resp, err := atlassian.Decode[struct {
		Comments []Comment `json:"comments"`
	}](raw)
	if err != nil {
		return nil, err
	}
	return resp.Comments, nil
}

// AddComment posts a wiki-markup comment.
func (c *Client) AddComment(ctx context.Context, key, body string) (*Comment, error) {
	raw, err := c.api.Post(ctx, apiPrefix+"/issue/"+url.PathEscape(key)+"/comment", map[string]string{"body": body})
	if err != nil {
		return nil, fmt.Errorf("commenting on %s: %w", key, err)
	}
	return atlassian.Decode[Comment](raw)
}

// Transitions lists the workflow transitions available on an issue.
func (c *Client) Transitions(ctx context.Context, key string) ([]Transition, error) {
	raw, err := c.api.Get(ctx, apiPrefix+"/issue/"+url.PathEscape(key)+"/transitions")
	if err != nil {
		return nil, fmt.Errorf("listing transitions on %s: %w", key, err)
	}
	resp, err := atlassian.Decode[struct {
		Transitions []Transition `json:"transitions"`
	}](raw)
	if err != nil {
		return nil, err
	}
	return resp.Transitions, nil
}

// Transition moves an issue through a workflow transition.
func (c *Client) Transition(ctx context.Context, key, transitionID string) error {
	body := map[string]any{"transition": map[string]string{"id": transitionID}}
	if _, err := c.api.Post(ctx, apiPrefix+"/issue/"+url.PathEscape(key)+"/transitions", body); err != nil {
		return fmt.Errorf("transitioning %s: %w", key, err)
	}
	return nil
}

// Projects lists the projects visible to the configured user.
func (c *Client) Projects(ctx context.Context) ([]Project, error) {
	raw, err := c.api.Get(ctx, apiPrefix+"/project")
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	projects, err := atlassian.Decode[[]Project](raw)
	if err != nil {
		return nil, err
	}
	return *projects, nil
}

// Myself returns the configured user.
func (c *Client) Myself(ctx context.Context) (*User, error) {
	raw, err := c.api.Get(ctx, apiPrefix+"/myself")
	if err != nil {
		return nil, fmt.Errorf("getting current user: %w", err)
	}
	return atlassian.Decode[User](raw)
}

// GatherContext fetches an issue, its comments and its transitions
// concurrently. The first failure cancels the others.
func (c *Client) GatherContext(ctx context.Context, key string) (*IssueContext, error) {
	out := &IssueContext{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		issue, err := c.GetIssue(gctx, key)
		out.Issue = issue
		return err
	})
	g.Go(func() error {
		comments, err := c.Comments(gctx, key)
		out.Comments = comments
		return err
	})
	g.Go(func() error {
		transitions, err := c.Transitions(gctx, key)
		out.Transitions = transitions
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
