package jira

import (
	"fmt"
	"strings"
)

// IssueQuery fills the project key into a JQL template holding a single %s.
// Quotes in the key are escaped so the result stays a valid filter.
func IssueQuery(template, projectKey string) string {
	if template == "" {
		template = "PROJECT = '%s' AND attachments is not EMPTY"
	}
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`, `"`, `\"`).Replace(projectKey)
	return fmt.Sprintf(template, escaped)
}
