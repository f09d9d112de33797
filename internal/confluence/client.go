package confluence

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/HendryAvila/atlasmcp/internal/atlassian"
)

const (
	apiPrefix  = "/rest/api"
	pageExpand = "body.storage,version,space,ancestors,history"
)

// Client exposes Confluence page operations on top of an atlassian.Client.
type Client struct {
	api *atlassian.Client
}

// NewClient wraps an authenticated request executor.
func NewClient(api *atlassian.Client) *Client {
	return &Client{api: api}
}

// WebURL returns the browser URL of a page.
func (c *Client) WebURL(p *Page) string {
	if p.Links != nil && p.Links.WebUI != "" {
		return c.api.BaseURL() + p.Links.WebUI
	}
	return c.api.BaseURL() + "/pages/viewpage.action?pageId=" + url.QueryEscape(p.ID)
}

// GetPage fetches a page with its storage body and version.
func (c *Client) GetPage(ctx context.Context, id string) (*Page, error) {
	path := apiPrefix + "/content/" + url.PathEscape(id) + "?expand=" + pageExpand
	raw, err := c.api.Get(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("getting page %s: %w", id, err)
	}
	return atlassian.Decode[Page](raw)
}

// CreatePage creates a page in a space, optionally under a parent.
func (c *Client) CreatePage(ctx context.Context, in PageInput) (*Page, error) {
	if in.SpaceKey == "" {
		return nil, fmt.Errorf("creating page: space key is required")
	}
	if in.Title == "" {
		return nil, fmt.Errorf("creating page: title is required")
	}
	if in.Body == nil {
		empty := ""
		in.Body = &empty
	}
	in.Version = 0
	raw, err := c.api.Post(ctx, apiPrefix+"/content", in.payload())
	if err != nil {
		return nil, fmt.Errorf("creating page %q in %s: %w", in.Title, in.SpaceKey, err)
	}
	return atlassian.Decode[Page](raw)
}

// UpdatePage writes a new version of a page. in.Version must be the
// current version plus one. A 2xx response whose body is not a page still
// means the update happened; the returned page then carries only its ID.
func (c *Client) UpdatePage(ctx context.Context, id string, in PageInput) (*Page, error) {
	if in.Version <= 0 {
		return nil, fmt.Errorf("updating page %s: version is required", id)
	}
	raw, err := c.api.Put(ctx, apiPrefix+"/content/"+url.PathEscape(id), in.payload())
	if err != nil {
		return nil, fmt.Errorf("updating page %s to version %d: %w", id, in.Version, err)
	}
	page, err := atlassian.Decode[Page](raw)
	if err != nil {
		return &Page{ID: id}, nil
	}
	return page, nil
}

// Search runs a CQL query.
func (c *Client) Search(ctx context.Context, cql string, limit int) (*SearchResult, error) {
	if limit <= 0 {
		limit = 20
	}
	q := url.Values{}
	q.Set("cql", cql)
	q.Set("limit", strconv.Itoa(limit))
	raw, err := c.api.Get(ctx, apiPrefix+"/search?"+q.Encode())
	if err != nil {
		return nil, fmt.Errorf("searching content: %w", err)
	}
	return atlassian.Decode[SearchResult](raw)
}

// Spaces lists spaces visible to the configured user.
func (c *Client) Spaces(ctx context.Context, limit int) ([]Space, error) {
	if limit <= 0 {
		limit = 25
	}
	raw, err := c.api.Get(ctx, apiPrefix+"/space?limit="+strconv.Itoa(limit))
	if err != nil {
		return nil, fmt.Errorf("listing spaces: %w", err)
	}
	resp, err := atlassian.Decode[list[Space]](raw)
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// Children lists the direct child pages of a page.
func (c *Client) Children(ctx context.Context, id string) ([]Page, error) {
	raw, err := c.api.Get(ctx, apiPrefix+"/content/"+url.PathEscape(id)+"/child/page?expand=version")
	if err != nil {
		return nil, fmt.Errorf("listing children of page %s: %w", id, err)
	}
	resp, err := atlassian.Decode[list[Page]](raw)
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// AddComment posts a storage-format comment on a page.
func (c *Client) AddComment(ctx context.Context, pageID, storageHTML string) (*Page, error) {
	body := map[string]any{
		"type":      "comment",
		"container": map[string]string{"id": pageID, "type": "page"},
		"body": map[string]any{
			"storage": Storage{Value: storageHTML, Representation: "storage"},
		},
	}
	raw, err := c.api.Post(ctx, apiPrefix+"/content", body)
	if err != nil {
		return nil, fmt.Errorf("commenting on page %s: %w", pageID, err)
	}
	return atlassian.Decode[Page](raw)
}
