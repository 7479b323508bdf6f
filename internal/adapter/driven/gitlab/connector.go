// Package gitlab implements the Connector port against the GitLab REST API v4.
// No GitLab SDK is used; the adapter is a thin typed HTTP client.
package gitlab

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ericfisherdev/vcsync/internal/domain/model"
	"github.com/ericfisherdev/vcsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.Connector = (*Connector)(nil)

const defaultBaseURL = "https://gitlab.com/api/v4"

// backlogWindow bounds the merge-request backlog fetch.
const backlogWindow = 90 * 24 * time.Hour

// Connector implements the driven.Connector port for one GitLab account.
type Connector struct {
	httpClient *http.Client
	baseURL    string
	token      string
	key        string
	webhookURL string
	secret     string
}

// NewConnector creates a GitLab connector authenticated with a personal
// access token. baseURL may be empty for gitlab.com; self-hosted instances
// pass their own /api/v4 root.
func NewConnector(key, token, baseURL, webhookURL, secret string) *Connector {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Connector{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		token:      token,
		key:        key,
		webhookURL: webhookURL,
		secret:     secret,
	}
}

// IntegrationType returns the vendor tag for this connector.
func (c *Connector) IntegrationType() model.IntegrationType {
	return model.IntegrationGitLab
}

// project is the subset of the GitLab project resource this adapter reads.
type project struct {
	ID                int    `json:"id"`
	PathWithNamespace string `json:"path_with_namespace"`
	WebURL            string `json:"web_url"`
	Description       string `json:"description"`
	Visibility        string `json:"visibility"`
}

// mergeRequest is the subset of the GitLab merge request resource this
// adapter reads. Webhook object_attributes decode into the same shape.
type mergeRequest struct {
	IID             int    `json:"iid"`
	Title           string `json:"title"`
	Description     string `json:"description"`
	State           string `json:"state"`
	CreatedAt       glTime `json:"created_at"`
	UpdatedAt       glTime `json:"updated_at"`
	MergeStatus     string `json:"merge_status"`
	MergedAt        glTime `json:"merged_at"`
	ClosedAt        glTime `json:"closed_at"`
	SourceBranch    string `json:"source_branch"`
	TargetBranch    string `json:"target_branch"`
	SourceProjectID int    `json:"source_project_id"`
	TargetProjectID int    `json:"target_project_id"`
	WebURL          string `json:"web_url"`
	URL             string `json:"url"` // Webhook payloads carry url instead of web_url.
}

// mapRepositoryInfo converts a GitLab project to a descriptor.
func mapRepositoryInfo(p project) model.RepositoryDescriptor {
	return model.RepositoryDescriptor{
		SourceID:    strconv.Itoa(p.ID),
		Name:        p.PathWithNamespace,
		URL:         p.WebURL,
		Description: p.Description,
		Public:      p.Visibility == "public",
	}
}

// mapPullRequestInfo converts a GitLab merge request to a descriptor. The
// merge request iid (the per-project number) is the source id; the global
// id is not addressable in per-project API paths.
func mapPullRequestInfo(mr mergeRequest) model.PullRequestDescriptor {
	var state model.PRState
	switch mr.State {
	case "merged":
		state = model.PRStateMerged
	case "closed", "locked":
		state = model.PRStateClosed
	default: // "opened"
		state = model.PRStateOpen
	}

	webURL := mr.WebURL
	if webURL == "" {
		webURL = mr.URL
	}

	return model.PullRequestDescriptor{
		SourceID:                 strconv.Itoa(mr.IID),
		SourceDisplayID:          strconv.Itoa(mr.IID),
		Title:                    mr.Title,
		Description:              mr.Description,
		SourceState:              mr.State,
		State:                    state,
		SourceCreatedAt:          mr.CreatedAt.Time,
		SourceLastUpdated:        mr.UpdatedAt.Time,
		SourceMergeStatus:        mr.MergeStatus,
		SourceMergedAt:           mr.MergedAt.Time,
		SourceClosedAt:           mr.ClosedAt.Time,
		SourceBranch:             mr.SourceBranch,
		TargetBranch:             mr.TargetBranch,
		SourceRepositorySourceID: strconv.Itoa(mr.SourceProjectID),
		TargetRepositorySourceID: strconv.Itoa(mr.TargetProjectID),
		WebURL:                   webURL,
	}
}

// Repositories returns a pager over every project the token is a member of,
// one API page per batch. GitLab signals the last page with an empty
// X-Next-Page header.
func (c *Connector) Repositories() driven.RepositoryPager {
	return &repoPager{c: c, page: 1}
}

type repoPager struct {
	c    *Connector
	page int
	done bool
}

func (p *repoPager) Next(ctx context.Context) ([]model.RepositoryDescriptor, bool, error) {
	if p.done {
		return nil, false, nil
	}

	query := url.Values{
		"membership": {"true"},
		"per_page":   {"100"},
		"page":       {strconv.Itoa(p.page)},
	}

	var projects []project
	nextPage, err := p.c.get(ctx, "/projects", query, &projects)
	if err != nil {
		return nil, false, err
	}

	batch := make([]model.RepositoryDescriptor, 0, len(projects))
	for _, proj := range projects {
		batch = append(batch, mapRepositoryInfo(proj))
	}

	if nextPage == 0 {
		p.done = true
	} else {
		p.page = nextPage
	}

	return batch, true, nil
}

// PullRequests returns a pager over merge requests of one project. An empty
// prSourceID pages the backlog bounded by the recency window; a non-empty
// one fetches exactly that merge request iid.
func (c *Connector) PullRequests(repoSourceID, prSourceID string) driven.PullRequestPager {
	return &prPager{c: c, repoSourceID: repoSourceID, prSourceID: prSourceID, page: 1}
}

type prPager struct {
	c            *Connector
	repoSourceID string
	prSourceID   string
	page         int
	done         bool
}

func (p *prPager) Next(ctx context.Context) ([]model.PullRequestDescriptor, bool, error) {
	if p.done {
		return nil, false, nil
	}

	if p.prSourceID != "" {
		p.done = true
		var mr mergeRequest
		path := fmt.Sprintf("/projects/%s/merge_requests/%s", url.PathEscape(p.repoSourceID), url.PathEscape(p.prSourceID))
		if _, err := p.c.get(ctx, path, nil, &mr); err != nil {
			return nil, false, err
		}
		return []model.PullRequestDescriptor{mapPullRequestInfo(mr)}, true, nil
	}

	query := url.Values{
		"state":         {"all"},
		"order_by":      {"updated_at"},
		"sort":          {"desc"},
		"updated_after": {time.Now().Add(-backlogWindow).UTC().Format(time.RFC3339)},
		"per_page":      {"100"},
		"page":          {strconv.Itoa(p.page)},
	}

	var mrs []mergeRequest
	path := fmt.Sprintf("/projects/%s/merge_requests", url.PathEscape(p.repoSourceID))
	nextPage, err := p.c.get(ctx, path, query, &mrs)
	if err != nil {
		return nil, false, err
	}

	batch := make([]model.PullRequestDescriptor, 0, len(mrs))
	for _, mr := range mrs {
		batch = append(batch, mapPullRequestInfo(mr))
	}

	if nextPage == 0 {
		p.done = true
	} else {
		p.page = nextPage
	}

	return batch, true, nil
}

// get issues an authenticated GET and decodes the JSON body into out. It
// returns the page number from the X-Next-Page header, zero on the last page.
func (c *Connector) get(ctx context.Context, path string, query url.Values, out any) (int, error) {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Connector) do(ctx context.Context, method, path string, query url.Values, body io.Reader, out any) (int, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return 0, fmt.Errorf("build gitlab request: %w", err)
	}
	req.Header.Set("PRIVATE-TOKEN", c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, &driven.VendorError{Vendor: "gitlab", Operation: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, &driven.VendorError{
			Vendor:     "gitlab",
			Operation:  method + " " + path,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status"),
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return 0, fmt.Errorf("decode gitlab response for %s: %w", path, err)
		}
	}

	nextPage := 0
	if v := resp.Header.Get("X-Next-Page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			nextPage = n
		}
	}

	return nextPage, nil
}

// glTime parses the timestamp formats GitLab emits: RFC3339 in the REST API
// and "2006-01-02 15:04:05 MST" in webhook payloads. null and "" decode to
// the zero time.
type glTime struct {
	time.Time
}

func (t *glTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// null or a non-string; treat as absent.
		t.Time = time.Time{}
		return nil
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}

	formats := []string{
		time.RFC3339,
		time.RFC3339Nano,
		"2006-01-02 15:04:05 MST",
		"2006-01-02 15:04:05 -0700",
	}
	for _, format := range formats {
		if parsed, err := time.Parse(format, s); err == nil {
			t.Time = parsed
			return nil
		}
	}

	return fmt.Errorf("unrecognized gitlab time format: %s", s)
}
