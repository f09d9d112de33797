package mirror

import (
	"strings"

	"github.com/spf13/cast"
)

// Partial is what a parsed document says about its entity: the identifier
// and the editable fields that were present and non-empty. Absent fields
// are left unset, never filled from remote state.
type Partial struct {
	// Kind is taken from the preamble; empty when the preamble has none.
	Kind Kind
	ID   string

	Title    string
	HasTitle bool
	Body     string
	// HasBody is false when the body is empty or only whitespace.
	HasBody bool

	// Version is the page version the document was generated from, 0 if
	// absent or unreadable.
	Version int

	// Exactly one of Issue or Page is set once the kind is known.
	Issue *IssueFields
	Page  *PageFields
}

// IsNew reports whether the document asks for a create.
func (p *Partial) IsNew() bool {
	return IsNew(p.ID)
}

// IssueFields are the editable issue fields beyond summary and body.
type IssueFields struct {
	ProjectKey string
	IssueType  string
	Priority   string
	AssigneeID string
	ParentKey  string
	// Labels is nil when the preamble has no labels value.
	Labels []string
}

// PageFields are the editable page fields beyond title and body.
type PageFields struct {
	SpaceKey string
	ParentID string
}

// Parse reads a document into a Partial. It never fails; text without a
// preamble yields a Partial whose Body is the whole input.
func Parse(text string) *Partial {
	return ParseAs(text, "")
}

// ParseAs parses text, using fallback as the kind when the preamble does
// not name one.
func ParseAs(text string, fallback Kind) *Partial {
	doc := ParseDocument(text)
	return doc.Partial(fallback)
}

// Partial extracts the editable view of the document.
func (d Document) Partial(fallback Kind) *Partial {
	pre := trimmed(d.Preamble)
	out := &Partial{Body: d.Body, HasBody: strings.TrimSpace(d.Body) != ""}

	kind := fallback
	if k, err := ParseKind(pre.Value(keyKind)); err == nil {
		kind = k
		out.Kind = k
	}

	switch kind {
	case KindIssue:
		out.ID = firstNonEmpty(pre.Value(keyKey), pre.Value(keyID))
		out.Title, out.HasTitle = firstPresent(d.Preamble, keySummary, keyTitle)
		out.Issue = &IssueFields{
			ProjectKey: pre.Value(keyProject),
			IssueType:  pre.Value(keyType),
			Priority:   pre.Value(keyPriority),
			AssigneeID: pre.Value(keyAssigneeID),
			ParentKey:  pre.Value(keyParent),
			Labels:     splitList(pre.Value(keyLabels)),
		}
	case KindPage:
		out.ID = pre.Value(keyID)
		out.Title, out.HasTitle = firstPresent(d.Preamble, keyTitle)
		out.Page = &PageFields{
			SpaceKey: pre.Value(keySpaceKey),
			ParentID: pre.Value(keyParentID),
		}
	default:
		out.ID = firstNonEmpty(pre.Value(keyID), pre.Value(keyKey))
		out.Title, out.HasTitle = firstPresent(d.Preamble, keyTitle, keySummary)
	}

	if v := pre.Value(keyVersion); v != "" {
		if n, err := cast.ToIntE(v); err == nil && n > 0 {
			out.Version = n
		}
	}

	return out
}

// trimmed copies p with surrounding whitespace removed from every value.
// Titles are read from the untrimmed preamble.
func trimmed(p Preamble) Preamble {
	out := make(Preamble, len(p))
	for i, f := range p {
		out[i] = Field{Key: f.Key, Value: strings.TrimSpace(f.Value)}
	}
	return out
}

// firstPresent returns the first non-blank value among keys, untouched.
// Blank values count as unset.
func firstPresent(p Preamble, keys ...string) (string, bool) {
	for _, k := range keys {
		if v := p.Value(k); strings.TrimSpace(v) != "" {
			return v, true
		}
	}
	return "", false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func splitList(s string) []string {
	s = strings.Trim(strings.TrimSpace(s), "[]")
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, unquote(part))
		}
	}
	return out
}
