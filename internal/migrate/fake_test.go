package migrate

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/dt-pm-tools/jira-attachment-migrator/internal/jira"
)

// fakeSource is an in-memory JIRA. Deleting an attachment removes it from
// later issue listings.
type fakeSource struct {
	mu        sync.Mutex
	projects  []jira.Project
	issues    map[string][]jira.Issue
	listErr   map[string]error
	content   map[string][]byte
	fetchErr  map[string]error
	deleteErr error

	deleted []string
	fetched []string

	// started receives the content URL of each fetch when set; gate blocks
	// every fetch until it is closed.
	started chan string
	gate    chan struct{}

	active, maxActive int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		issues:   map[string][]jira.Issue{},
		listErr:  map[string]error{},
		content:  map[string][]byte{},
		fetchErr: map[string]error{},
	}
}

// add registers an attachment whose payload is body, declared with size.
func (f *fakeSource) add(projectKey, issueKey, id, filename string, size int64, body []byte) {
	if !slices.ContainsFunc(f.projects, func(p jira.Project) bool { return p.Key == projectKey }) {
		f.projects = append(f.projects, jira.Project{ID: projectKey, Key: projectKey, Name: projectKey})
	}
	url := "https://jira.example.com/rest/api/3/attachment/content/" + id
	att := jira.Attachment{ID: id, Filename: filename, Size: size, MimeType: "application/octet-stream", Content: url}
	f.content[url] = body

	issues := f.issues[projectKey]
	for i := range issues {
		if issues[i].Key == issueKey {
			issues[i].Fields.Attachment = append(issues[i].Fields.Attachment, att)
			return
		}
	}
	f.issues[projectKey] = append(issues, jira.Issue{
		ID:     issueKey,
		Key:    issueKey,
		Fields: jira.IssueFields{Attachment: []jira.Attachment{att}},
	})
}

func (f *fakeSource) ListProjects(_ context.Context, keys []string) ([]jira.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []jira.Project
	for _, p := range f.projects {
		if len(keys) == 0 || slices.Contains(keys, p.Key) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeSource) ListIssues(_ context.Context, projectKey string) ([]jira.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.listErr[projectKey]; err != nil {
		return nil, err
	}
	var out []jira.Issue
	for _, is := range f.issues[projectKey] {
		if len(is.Fields.Attachment) == 0 {
			continue
		}
		is.Fields.Attachment = slices.Clone(is.Fields.Attachment)
		is.ProjectKey = projectKey
		out = append(out, is)
	}
	return out, nil
}

func (f *fakeSource) FetchAttachment(_ context.Context, contentURL string) (io.ReadCloser, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, contentURL)
	f.active++
	f.maxActive = max(f.maxActive, f.active)
	err := f.fetchErr[contentURL]
	body, ok := f.content[contentURL]
	started, gate := f.started, f.gate
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if started != nil {
		started <- contentURL
	}
	if gate != nil {
		<-gate
	}

	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: status 404", jira.ErrDownloadFailed)
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

func (f *fakeSource) DeleteAttachment(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, id)
	for p, issues := range f.issues {
		for i := range issues {
			issues[i].Fields.Attachment = slices.DeleteFunc(issues[i].Fields.Attachment, func(a jira.Attachment) bool {
				return a.ID == id
			})
		}
		f.issues[p] = issues
	}
	return nil
}

func (f *fakeSource) deletedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.deleted)
}

func (f *fakeSource) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fetched)
}

// recorder collects final records by "issue/filename".
type recorder struct {
	mu   sync.Mutex
	recs map[string]Record
}

func newRecorder() *recorder {
	return &recorder{recs: map[string]Record{}}
}

func (r *recorder) hook(rec Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs[rec.Job.IssueKey+"/"+rec.Job.Attachment.Filename] = rec
}

func (r *recorder) get(key string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recs[key]
	return rec, ok
}
