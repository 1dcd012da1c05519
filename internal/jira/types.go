package jira

import "fmt"

// Project represents a JIRA project from GET /rest/api/3/project/search.
type Project struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Issue represents a JIRA issue returned by the search API.
type Issue struct {
	ID     string      `json:"id"`
	Key    string      `json:"key"`
	Fields IssueFields `json:"fields"`

	// ProjectKey is filled in by ListIssues; the search response does not carry it
	// because only id, key, and attachment fields are requested.
	ProjectKey string `json:"-"`
}

// IssueFields contains the only field the migrator requests.
type IssueFields struct {
	Attachment []Attachment `json:"attachment"`
}

// Attachment describes one binary file attached to an issue.
type Attachment struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType,omitempty"`
	Content  string `json:"content"` // download URL
}

// User is the subset of GET /rest/api/3/myself we report.
type User struct {
	AccountID    string `json:"accountId"`
	EmailAddress string `json:"emailAddress"`
	DisplayName  string `json:"displayName"`
}

// searchEnvelope is the shared shape of the paginated project and issue
// search responses. Total is a pointer so a missing field is detectable.
type searchEnvelope struct {
	StartAt    int       `json:"startAt"`
	MaxResults int       `json:"maxResults"`
	Total      *int      `json:"total"`
	Values     []Project `json:"values"`
	Issues     []Issue   `json:"issues"`
}

func (p Project) validate() error {
	if p.Key == "" {
		return fmt.Errorf("project %q has no key", p.ID)
	}
	return nil
}

func (i Issue) validate() error {
	if i.Key == "" {
		return fmt.Errorf("issue %q has no key", i.ID)
	}
	for n, a := range i.Fields.Attachment {
		if err := a.validate(); err != nil {
			return fmt.Errorf("issue %s attachment %d: %w", i.Key, n, err)
		}
	}
	return nil
}

func (a Attachment) validate() error {
	switch {
	case a.ID == "":
		return fmt.Errorf("attachment has no id")
	case a.Filename == "":
		return fmt.Errorf("attachment %s has no filename", a.ID)
	case a.Content == "":
		return fmt.Errorf("attachment %s has no content url", a.ID)
	case a.Size < 0:
		return fmt.Errorf("attachment %s has negative size %d", a.ID, a.Size)
	}
	return nil
}
