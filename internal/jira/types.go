// Package jira wraps the Jira REST API (v2) endpoints atlasmcp needs.
package jira

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Issue is a Jira issue as returned by GET /rest/api/2/issue/{key}.
type Issue struct {
	ID     string      `json:"id"`
	Key    string      `json:"key"`
	Self   string      `json:"self,omitempty"`
	Fields IssueFields `json:"fields"`
}

// IssueFields holds the typed subset of issue fields plus every other field
// (custom fields included) in Custom, keyed by field id.
type IssueFields struct {
	Summary     string          `json:"summary"`
	Description json.RawMessage `json:"description,omitempty"`
	IssueType   *Named          `json:"issuetype,omitempty"`
	Status      *Named          `json:"status,omitempty"`
	Priority    *Named          `json:"priority,omitempty"`
	Assignee    *User           `json:"assignee,omitempty"`
	Reporter    *User           `json:"reporter,omitempty"`
	Project     *Project        `json:"project,omitempty"`
	Labels      []string        `json:"labels,omitempty"`
	Parent      *IssueRef       `json:"parent,omitempty"`
	Created     string          `json:"created,omitempty"`
	Updated     string          `json:"updated,omitempty"`

	Custom map[string]json.RawMessage `json:"-"`
}

// knownFields lists the JSON keys decoded into typed IssueFields members.
var knownFields = map[string]bool{
	"summary": true, "description": true, "issuetype": true, "status": true,
	"priority": true, "assignee": true, "reporter": true, "project": true,
	"labels": true, "parent": true, "created": true, "updated": true,
}

// UnmarshalJSON decodes the typed fields and keeps the rest in Custom.
func (f *IssueFields) UnmarshalJSON(data []byte) error {
	type plain IssueFields
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for k, v := range all {
		if knownFields[k] || isJSONNull(v) {
			continue
		}
		if p.Custom == nil {
			p.Custom = make(map[string]json.RawMessage)
		}
		p.Custom[k] = v
	}
	*f = IssueFields(p)
	return nil
}

// DescriptionText returns the description as editable markup: the wiki
// markup string when the API returned a string, or the compact JSON of an
// Atlassian Document Format object.
func (f IssueFields) DescriptionText() string {
	raw := bytes.TrimSpace(f.Description)
	if len(raw) == 0 || isJSONNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// Named is any {id, name} reference: status, priority, issue type.
type Named struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// User is a Jira Cloud user reference.
type User struct {
	AccountID    string `json:"accountId,omitempty"`
	DisplayName  string `json:"displayName,omitempty"`
	EmailAddress string `json:"emailAddress,omitempty"`
}

// Project is a project reference.
type Project struct {
	ID   string `json:"id,omitempty"`
	Key  string `json:"key,omitempty"`
	Name string `json:"name,omitempty"`
}

// IssueRef points at another issue (parent, subtask).
type IssueRef struct {
	ID     string `json:"id,omitempty"`
	Key    string `json:"key,omitempty"`
	Fields *struct {
		Summary string `json:"summary,omitempty"`
	} `json:"fields,omitempty"`
}

// IssueInput is the editable subset sent on create or update. Nil pointers
// and empty strings are omitted from the payload so absent values never
// overwrite remote ones.
type IssueInput struct {
	ProjectKey  string
	Summary     *string
	Description *string
	IssueType   string
	Priority    string
	AssigneeID  string
	Labels      []string
	ParentKey   string
}

// Payload builds the {"fields": {...}} request body.
func (in IssueInput) Payload() map[string]any {
	fields := map[string]any{}
	if in.ProjectKey != "" {
		fields["project"] = map[string]string{"key": in.ProjectKey}
	}
	if in.Summary != nil {
		fields["summary"] = *in.Summary
	}
	if in.Description != nil {
		fields["description"] = descriptionValue(*in.Description)
	}
	if in.IssueType != "" {
		fields["issuetype"] = map[string]string{"name": in.IssueType}
	}
	if in.Priority != "" {
		fields["priority"] = map[string]string{"name": in.Priority}
	}
	if in.AssigneeID != "" {
		fields["assignee"] = map[string]string{"accountId": in.AssigneeID}
	}
	if in.Labels != nil {
		fields["labels"] = in.Labels
	}
	if in.ParentKey != "" {
		fields["parent"] = map[string]string{"key": in.ParentKey}
	}
	return map[string]any{"fields": fields}
}

// descriptionValue sends an ADF document back as an object and anything
// else as the string it is.
func descriptionValue(text string) any {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") {
		return text
	}
	var doc struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(trimmed), &doc); err != nil || doc.Type != "doc" {
		return text
	}
	return json.RawMessage(trimmed)
}

// CreatedIssue is the response of POST /rest/api/2/issue.
type CreatedIssue struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Self string `json:"self"`
}

// SearchResult is the response of a JQL search.
type SearchResult struct {
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	Total      int     `json:"total"`
	Issues     []Issue `json:"issues"`
}

// Comment is an issue comment.
type Comment struct {
	ID      string          `json:"id"`
	Author  *User           `json:"author,omitempty"`
	Body    json.RawMessage `json:"body"`
	Created string          `json:"created,omitempty"`
	Updated string          `json:"updated,omitempty"`
}

// BodyText returns the comment body as markup, like DescriptionText.
func (c Comment) BodyText() string {
	return IssueFields{Description: c.Body}.DescriptionText()
}

// Transition is a workflow transition available on an issue.
type Transition struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	To   *Named `json:"to,omitempty"`
}

// IssueContext aggregates what a reader needs to understand an issue.
type IssueContext struct {
	Issue       *Issue
	Comments    []Comment
	Transitions []Transition
}

func isJSONNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}
