package jira

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/dt-pm-tools/jira-attachment-migrator/internal/config"
)

// Client is a JIRA REST API v3 client. It is safe for concurrent use.
type Client struct {
	baseURL    string
	authHeader string
	httpClient *http.Client
	pageSize   int
	issueQuery string
}

// NewClient creates a new JIRA client from the given config. The basic
// credential is encoded once here and reused for every request.
func NewClient(cfg config.JiraConfig) *Client {
	creds := base64.StdEncoding.EncodeToString([]byte(cfg.Email + ":" + cfg.Token))
	baseURL := strings.TrimRight(cfg.URL, "/")
	return &Client{
		baseURL:    baseURL,
		authHeader: "Basic " + creds,
		httpClient: &http.Client{},
		pageSize:   cfg.PageSize,
		issueQuery: cfg.IssueQuery,
	}
}

func (c *Client) restURL(path string) string {
	return c.baseURL + "/rest/api/3" + path
}

// Myself returns the user the credentials belong to.
func (c *Client) Myself(ctx context.Context) (*User, error) {
	var user User
	if err := c.getJSON(ctx, c.restURL("/myself"), &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SearchProjects fetches one page of projects. keys restricts the result to
// the given project keys; empty means every visible project.
func (c *Client) SearchProjects(ctx context.Context, startAt, maxResults int, keys []string) (Page[Project], error) {
	params := url.Values{}
	params.Set("startAt", strconv.Itoa(startAt))
	params.Set("maxResults", strconv.Itoa(maxResults))
	for _, k := range keys {
		params.Add("keys", k)
	}

	var env searchEnvelope
	if err := c.getJSON(ctx, c.restURL("/project/search?"+params.Encode()), &env); err != nil {
		return Page[Project]{}, err
	}
	if env.Total == nil {
		return Page[Project]{}, fmt.Errorf("%w: project search response has no total", ErrSourceUnavailable)
	}
	for _, p := range env.Values {
		if err := p.validate(); err != nil {
			return Page[Project]{}, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
		}
	}
	return Page[Project]{Total: *env.Total, Items: env.Values}, nil
}

// SearchIssues fetches one page of issues matching jql, requesting only the
// fields the migrator uses.
func (c *Client) SearchIssues(ctx context.Context, jql string, startAt, maxResults int) (Page[Issue], error) {
	params := url.Values{}
	params.Set("jql", jql)
	params.Set("fields", "id,key,attachment")
	params.Set("startAt", strconv.Itoa(startAt))
	params.Set("maxResults", strconv.Itoa(maxResults))

	var env searchEnvelope
	if err := c.getJSON(ctx, c.restURL("/search?"+params.Encode()), &env); err != nil {
		return Page[Issue]{}, err
	}
	if env.Total == nil {
		return Page[Issue]{}, fmt.Errorf("%w: issue search response has no total", ErrSourceUnavailable)
	}
	for _, i := range env.Issues {
		if err := i.validate(); err != nil {
			return Page[Issue]{}, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
		}
	}
	return Page[Issue]{Total: *env.Total, Items: env.Issues}, nil
}

// ListProjects returns every project, optionally restricted to keys.
func (c *Client) ListProjects(ctx context.Context, keys []string) ([]Project, error) {
	return ListAll(ctx, c.pageSize, func(ctx context.Context, startAt, maxResults int) (Page[Project], error) {
		return c.SearchProjects(ctx, startAt, maxResults, keys)
	})
}

// ListIssues returns every issue of projectKey that has attachments, using the
// configured query template.
func (c *Client) ListIssues(ctx context.Context, projectKey string) ([]Issue, error) {
	jql := IssueQuery(c.issueQuery, projectKey)
	issues, err := ListAll(ctx, c.pageSize, func(ctx context.Context, startAt, maxResults int) (Page[Issue], error) {
		return c.SearchIssues(ctx, jql, startAt, maxResults)
	})
	if err != nil {
		return nil, err
	}
	for i := range issues {
		issues[i].ProjectKey = projectKey
	}
	return issues, nil
}

// FetchAttachment opens the attachment content stream. Redirects are followed;
// the caller must close the returned body.
func (c *Client) FetchAttachment(ctx context.Context, contentURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, contentURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %w", ErrDownloadFailed, err)
	}
	req.Header.Set("Authorization", c.authHeader)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: executing request: %w", ErrDownloadFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: JIRA returned %d: %s", ErrDownloadFailed, resp.StatusCode, string(body))
	}

	return resp.Body, nil
}

// DeleteAttachment removes an attachment from its issue.
func (c *Client) DeleteAttachment(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.restURL("/attachment/"+url.PathEscape(id)), nil)
	if err != nil {
		return fmt.Errorf("%w: creating request: %w", ErrDeleteFailed, err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: executing request: %w", ErrDeleteFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: JIRA API returned %d: %s", ErrDeleteFailed, resp.StatusCode, string(body))
	}

	return nil
}

func (c *Client) getJSON(ctx context.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("%w: creating request: %w", ErrSourceUnavailable, err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: executing request: %w", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: JIRA API returned %d: %s", ErrSourceUnavailable, resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %w", ErrSourceUnavailable, err)
	}

	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", c.authHeader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
}
