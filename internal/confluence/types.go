// Package confluence wraps the Confluence content REST API.
//
// Pages are version-numbered: every update must carry the current version
// plus one, otherwise the server rejects it (see atlassian.IsVersionConflict).
package confluence

// Page is a Confluence page as returned by GET /rest/api/content/{id}
// with body.storage, version, space and ancestors expanded.
type Page struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	Status    string     `json:"status"`
	Title     string     `json:"title"`
	Space     *Space     `json:"space,omitempty"`
	Version   *Version   `json:"version,omitempty"`
	Body      Body       `json:"body"`
	Ancestors []Ancestor `json:"ancestors,omitempty"`
	History   *History   `json:"history,omitempty"`
	Links     *Links     `json:"_links,omitempty"`
}

// VersionNumber returns the page version, or 0 when it was not expanded.
func (p *Page) VersionNumber() int {
	if p == nil || p.Version == nil {
		return 0
	}
	return p.Version.Number
}

// ParentID returns the direct parent page id, if any.
func (p *Page) ParentID() string {
	if len(p.Ancestors) == 0 {
		return ""
	}
	return p.Ancestors[len(p.Ancestors)-1].ID
}

// Space is a Confluence space reference.
type Space struct {
	ID   int64  `json:"id,omitempty"`
	Key  string `json:"key"`
	Name string `json:"name,omitempty"`
	Type string `json:"type,omitempty"`
}

// Version is the optimistic-concurrency counter of a page.
type Version struct {
	Number  int    `json:"number"`
	When    string `json:"when,omitempty"`
	Message string `json:"message,omitempty"`
	By      *User  `json:"by,omitempty"`
}

// User is a Confluence user reference.
type User struct {
	AccountID   string `json:"accountId,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	Email       string `json:"email,omitempty"`
}

// Body carries the storage (XHTML) representation of page content.
type Body struct {
	Storage *Storage `json:"storage,omitempty"`
}

// Storage is one representation of a body.
type Storage struct {
	Value          string `json:"value"`
	Representation string `json:"representation"`
}

// StorageValue returns the storage markup, or "" when not expanded.
func (b Body) StorageValue() string {
	if b.Storage == nil {
		return ""
	}
	return b.Storage.Value
}

// Ancestor is a page above this one in the tree.
type Ancestor struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
}

// History carries creation metadata.
type History struct {
	CreatedDate string `json:"createdDate,omitempty"`
	CreatedBy   *User  `json:"createdBy,omitempty"`
}

// Links holds the hypermedia links of a content object.
type Links struct {
	WebUI string `json:"webui,omitempty"`
	Base  string `json:"base,omitempty"`
}

// PageInput is the editable subset sent on create or update.
type PageInput struct {
	SpaceKey string
	Title    string
	Body     *string
	ParentID string
	// Version is the number to write, i.e. current + 1. Required on update.
	Version int
	// Message is an optional version comment.
	Message string
}

// payload builds the request body. Title is required by the API on both
// create and update.
func (in PageInput) payload() map[string]any {
	p := map[string]any{
		"type":  "page",
		"title": in.Title,
	}
	if in.SpaceKey != "" {
		p["space"] = map[string]string{"key": in.SpaceKey}
	}
	if in.Body != nil {
		p["body"] = map[string]any{
			"storage": Storage{Value: *in.Body, Representation: "storage"},
		}
	}
	if in.ParentID != "" {
		p["ancestors"] = []map[string]string{{"id": in.ParentID}}
	}
	if in.Version > 0 {
		v := map[string]any{"number": in.Version}
		if in.Message != "" {
			v["message"] = in.Message
		}
		p["version"] = v
	}
	return p
}

// SearchResult is a page of CQL results.
type SearchResult struct {
	Results []SearchHit `json:"results"`
	Size    int         `json:"size"`
	Limit   int         `json:"limit"`
}

// SearchHit is one CQL search result.
type SearchHit struct {
	Content      *Page  `json:"content,omitempty"`
	Title        string `json:"title"`
	Excerpt      string `json:"excerpt,omitempty"`
	URL          string `json:"url,omitempty"`
	LastModified string `json:"lastModified,omitempty"`
}

// list is the generic paged envelope of the content API.
type list[T any] struct {
	Results []T `json:"results"`
	Size    int `json:"size"`
}
