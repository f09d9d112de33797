// Package mirror converts Jira issues and Confluence pages to and from an
// editable text document: a YAML preamble between two marker lines,
// followed by a blank line and the raw body.
//
//	---
//	kind: page
//	id: "42"
//	title: Spec
//	version: 3
//	---
//
//	<p>hello</p>
//
// Only editable fields survive a round trip. Parsing never fails: input
// without a well-formed preamble is treated as body.
package mirror

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// Marker delimits the preamble. It must appear alone on its line.
const Marker = "---"

// SentinelNew is the identifier of a document that has not been created
// remotely yet.
const SentinelNew = "new"

// IsNew reports whether id marks create intent.
func IsNew(id string) bool {
	return strings.EqualFold(strings.TrimSpace(id), SentinelNew)
}

// Kind discriminates the entity a document mirrors.
type Kind string

const (
	KindIssue Kind = "issue"
	KindPage  Kind = "page"
)

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindIssue:
		return KindIssue, nil
	case KindPage:
		return KindPage, nil
	}
	return "", fmt.Errorf("invalid kind %q: must be one of: issue, page", s)
}

// intKeys are rendered as YAML integers instead of strings.
var intKeys = map[string]bool{"version": true}

// Field is one preamble entry.
type Field struct {
	Key   string
	Value string
}

// Preamble is the ordered metadata block of a document.
type Preamble []Field

// Get returns the value of key and whether it was present.
func (p Preamble) Get(key string) (string, bool) {
	for _, f := range p {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// Value returns the value of key, or "" when absent.
func (p Preamble) Value(key string) string {
	v, _ := p.Get(key)
	return v
}

// Set replaces the value of key, appending it when absent.
func (p *Preamble) Set(key, value string) {
	for i, f := range *p {
		if f.Key == key {
			(*p)[i].Value = value
			return
		}
	}
	*p = append(*p, Field{Key: key, Value: value})
}

// Document is the text mirror of one entity.
type Document struct {
	Preamble Preamble
	Body     string
}

// String renders the document. The output depends only on the preamble
// order and values, so an unchanged entity always renders identically.
func (d Document) String() string {
	var b strings.Builder
	b.WriteString(Marker)
	b.WriteByte('\n')
	b.WriteString(encodePreamble(d.Preamble))
	b.WriteString(Marker)
	b.WriteString("\n\n")
	b.WriteString(d.Body)
	return b.String()
}

func encodePreamble(p Preamble) string {
	if len(p) == 0 {
		return ""
	}
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range p {
		tag := "!!str"
		if intKeys[f.Key] {
			if _, err := cast.ToIntE(f.Value); err == nil && f.Value != "" {
				tag = "!!int"
			}
		}
		value := &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: f.Value}
		// Block scalars span lines and could carry a marker line.
		if strings.ContainsAny(f.Value, "\r\n") {
			value.Style = yaml.DoubleQuotedStyle
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: f.Key},
			value,
		)
	}
	out, err := yaml.Marshal(node)
	if err != nil {
		// Scalar-only mappings always encode; fall back to the plain form.
		var b strings.Builder
		for _, f := range p {
			fmt.Fprintf(&b, "%s: %q\n", f.Key, f.Value)
		}
		return b.String()
	}
	return string(out)
}

// ParseDocument splits text into preamble and body. The first non-blank
// line must be a marker and a second marker must follow; otherwise the
// whole text is body and the preamble is empty.
func ParseDocument(text string) Document {
	lines := strings.SplitAfter(text, "\n")

	first := -1
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if isMarker(line) {
			first = i
		}
		break
	}
	if first < 0 {
		return Document{Body: text}
	}

	second := -1
	for i := first + 1; i < len(lines); i++ {
		if isMarker(lines[i]) {
			second = i
			break
		}
	}
	if second < 0 {
		return Document{Body: text}
	}

	preamble := strings.Join(lines[first+1:second], "")
	body := strings.Join(lines[second+1:], "")
	switch {
	case strings.HasPrefix(body, "\r\n"):
		body = body[2:]
	case strings.HasPrefix(body, "\n"):
		body = body[1:]
	}

	return Document{Preamble: decodePreamble(preamble), Body: body}
}

// isMarker accepts trailing whitespace only; an indented "---" belongs
// to the YAML inside the preamble.
func isMarker(line string) bool {
	return strings.TrimRight(line, " \t\r\n") == Marker
}

// decodePreamble reads a YAML mapping, keeping key order. Malformed YAML
// falls back to a line-by-line "key: value" reader.
func decodePreamble(src string) Preamble {
	if strings.TrimSpace(src) == "" {
		return nil
	}
	var root yaml.Node
	if err := yaml.Unmarshal([]byte(src), &root); err != nil {
		return decodeLines(src)
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return decodeLines(src)
	}

	m := root.Content[0]
	var p Preamble
	for i := 0; i+1 < len(m.Content); i += 2 {
		k, v := m.Content[i], m.Content[i+1]
		if k.Kind != yaml.ScalarNode {
			continue
		}
		switch v.Kind {
		case yaml.ScalarNode:
			if v.Tag == "!!null" {
				p.Set(k.Value, "")
				continue
			}
			p.Set(k.Value, v.Value)
		case yaml.SequenceNode:
			items := make([]string, 0, len(v.Content))
			for _, item := range v.Content {
				if item.Kind == yaml.ScalarNode {
					items = append(items, item.Value)
				}
			}
			p.Set(k.Value, strings.Join(items, ", "))
		}
	}
	return p
}

func decodeLines(src string) Preamble {
	var p Preamble
	sc := bufio.NewScanner(strings.NewReader(src))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		p.Set(key, unquote(strings.TrimSpace(value)))
	}
	return p
}

func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
