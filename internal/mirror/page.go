package mirror

import (
	"errors"
	"strconv"
	"strings"

	"github.com/HendryAvila/atlasmcp/internal/confluence"
)

const (
	keySpaceKey = "space_key"
	keySpace    = "space"
	keyParentID = "parent_id"
	keyVersion  = "version"
	keyAuthor   = "author"
)

// PageKeyOrder is the fixed preamble order of page documents.
var PageKeyOrder = []string{
	keyKind, keyID, keyTitle, keySpaceKey, keySpace, keyParentID, keyStatus,
	keyVersion, keyAuthor, keyCreated, keyUpdated,
}

// PageDocument builds the document of a page. The version it carries is
// the one later used to detect conflicting edits.
func PageDocument(page *confluence.Page) (Document, error) {
	if page == nil {
		return Document{}, ErrNilEntity
	}
	values := map[string]string{
		keyKind:     string(KindPage),
		keyID:       page.ID,
		keyTitle:    page.Title,
		keyParentID: page.ParentID(),
		keyStatus:   page.Status,
		keyVersion:  strconv.Itoa(page.VersionNumber()),
	}
	if page.Space != nil {
		values[keySpaceKey] = page.Space.Key
		values[keySpace] = page.Space.Name
	}
	if page.Version != nil {
		values[keyUpdated] = page.Version.When
		if page.Version.By != nil {
			values[keyAuthor] = page.Version.By.DisplayName
		}
	}
	if page.History != nil {
		values[keyCreated] = page.History.CreatedDate
	}

	return Document{
		Preamble: ordered(PageKeyOrder, values),
		Body:     page.Body.StorageValue(),
	}, nil
}

// SerializePage renders the text mirror of a page.
func SerializePage(page *confluence.Page) (string, error) {
	doc, err := PageDocument(page)
	if err != nil {
		return "", err
	}
	return doc.String(), nil
}

// NewPageTemplate returns a create-intent document in spaceKey, optionally
// under parentID.
func NewPageTemplate(spaceKey, parentID string) (Document, error) {
	spaceKey = strings.TrimSpace(spaceKey)
	if spaceKey == "" {
		return Document{}, errors.New("mirror: a space key is required to create a page")
	}
	values := map[string]string{
		keyKind:     string(KindPage),
		keyID:       SentinelNew,
		keyTitle:    "New page",
		keySpaceKey: spaceKey,
		keyParentID: strings.TrimSpace(parentID),
	}
	return Document{
		Preamble: ordered([]string{keyKind, keyID, keyTitle, keySpaceKey, keyParentID}, values),
		Body:     "<p></p>",
	}, nil
}
