package mirror

import (
	"errors"
	"strings"

	"github.com/HendryAvila/atlasmcp/internal/jira"
)

// ErrNilEntity is returned when asked to serialize nothing.
var ErrNilEntity = errors.New("mirror: cannot serialize a nil entity")

// Issue preamble keys, in render order.
const (
	keyKind       = "kind"
	keyKey        = "key"
	keyID         = "id"
	keySummary    = "summary"
	keyTitle      = "title"
	keyProject    = "project"
	keyType       = "type"
	keyStatus     = "status"
	keyPriority   = "priority"
	keyAssignee   = "assignee"
	keyAssigneeID = "assignee_id"
	keyReporter   = "reporter"
	keyLabels     = "labels"
	keyParent     = "parent"
	keyCreated    = "created"
	keyUpdated    = "updated"
)

// IssueKeyOrder is the fixed preamble order of issue documents.
var IssueKeyOrder = []string{
	keyKind, keyKey, keySummary, keyProject, keyType, keyStatus, keyPriority,
	keyAssignee, keyAssigneeID, keyReporter, keyLabels, keyParent, keyCreated, keyUpdated,
}

// IssueDocument builds the document of an issue.
func IssueDocument(issue *jira.Issue) (Document, error) {
	if issue == nil {
		return Document{}, ErrNilEntity
	}
	f := issue.Fields
	values := map[string]string{
		keyKind:    string(KindIssue),
		keyKey:     issue.Key,
		keySummary: f.Summary,
		keyLabels:  strings.Join(f.Labels, ", "),
		keyCreated: f.Created,
		keyUpdated: f.Updated,
	}
	if f.Project != nil {
		values[keyProject] = f.Project.Key
	}
	if f.IssueType != nil {
		values[keyType] = f.IssueType.Name
	}
	if f.Status != nil {
		values[keyStatus] = f.Status.Name
	}
	if f.Priority != nil {
		values[keyPriority] = f.Priority.Name
	}
	if f.Assignee != nil {
		values[keyAssignee] = f.Assignee.DisplayName
		values[keyAssigneeID] = f.Assignee.AccountID
	}
	if f.Reporter != nil {
		values[keyReporter] = f.Reporter.DisplayName
	}
	if f.Parent != nil {
		values[keyParent] = f.Parent.Key
	}

	return Document{
		Preamble: ordered(IssueKeyOrder, values),
		Body:     f.DescriptionText(),
	}, nil
}

// SerializeIssue renders the text mirror of an issue.
func SerializeIssue(issue *jira.Issue) (string, error) {
	doc, err := IssueDocument(issue)
	if err != nil {
		return "", err
	}
	return doc.String(), nil
}

// NewIssueTemplate returns a create-intent document for projectKey.
func NewIssueTemplate(projectKey, issueType string) (Document, error) {
	projectKey = strings.TrimSpace(projectKey)
	if projectKey == "" {
		return Document{}, errors.New("mirror: a project key is required to create an issue")
	}
	if strings.TrimSpace(issueType) == "" {
		issueType = "Task"
	}
	values := map[string]string{
		keyKind:    string(KindIssue),
		keyKey:     SentinelNew,
		keySummary: "New issue",
		keyProject: projectKey,
		keyType:    issueType,
	}
	return Document{
		Preamble: ordered([]string{
			keyKind, keyKey, keySummary, keyProject, keyType, keyPriority, keyAssigneeID, keyLabels, keyParent,
		}, values),
		Body: "",
	}, nil
}

func ordered(order []string, values map[string]string) Preamble {
	p := make(Preamble, 0, len(order))
	for _, k := range order {
		p = append(p, Field{Key: k, Value: values[k]})
	}
	return p
}
