// Package azure implements the Connector port against the Azure DevOps
// Services REST API (7.0).
package azure

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
	"time"

	"github.com/ericfisherdev/vcsync/internal/domain/model"
	"github.com/ericfisherdev/vcsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.Connector = (*Connector)(nil)

const apiVersion = "7.0"

// backlogWindow bounds the pull-request backlog fetch.
const backlogWindow = 90 * 24 * time.Hour

// prPageSize is the $top used when paging pull requests.
const prPageSize = 100

// Connector implements the driven.Connector port for one Azure DevOps
// organization, authenticated with a personal access token.
type Connector struct {
	httpClient *http.Client
	baseURL    string // https://dev.azure.com/{organization}
	pat        string
	key        string
	webhookURL string
}

// NewConnector creates an Azure DevOps connector. baseURL may be empty, in
// which case it is derived from the organization name.
func NewConnector(key, pat, organization, baseURL, webhookURL string) *Connector {
	if baseURL == "" {
		baseURL = "https://dev.azure.com/" + url.PathEscape(organization)
	}
	return &Connector{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		pat:        pat,
		key:        key,
		webhookURL: webhookURL,
	}
}

// IntegrationType returns the vendor tag for this connector.
func (c *Connector) IntegrationType() model.IntegrationType {
	return model.IntegrationAzure
}

// listEnvelope is Azure's collection response shape.
type listEnvelope[T any] struct {
	Count int `json:"count"`
	Value []T `json:"value"`
}

// repository is the subset of the Azure git repository resource this adapter
// reads. The id is a GUID and survives renames.
type repository struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	WebURL  string `json:"webUrl"`
	Project struct {
		Name       string `json:"name"`
		Visibility string `json:"visibility"`
	} `json:"project"`
}

// pullRequest is the subset of the Azure git pull request resource this
// adapter reads.
type pullRequest struct {
	PullRequestID int       `json:"pullRequestId"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Status        string    `json:"status"` // active, completed, abandoned.
	CreationDate  time.Time `json:"creationDate"`
	ClosedDate    time.Time `json:"closedDate"`
	MergeStatus   string    `json:"mergeStatus"`
	SourceRefName string    `json:"sourceRefName"`
	TargetRefName string    `json:"targetRefName"`
	Repository    struct {
		ID     string `json:"id"`
		WebURL string `json:"webUrl"`
	} `json:"repository"`
}

// mapRepositoryInfo converts an Azure git repository to a descriptor.
func mapRepositoryInfo(r repository) model.RepositoryDescriptor {
	return model.RepositoryDescriptor{
		SourceID:    r.ID,
		Name:        r.Project.Name + "/" + r.Name,
		URL:         r.WebURL,
		Description: "",
		Public:      r.Project.Visibility == "public",
	}
}

// mapPullRequestInfo converts an Azure pull request to a descriptor.
//
// Azure reports no last-updated timestamp on pull requests, so it is
// synthesized from closedDate when terminal and creationDate otherwise.
// This is a known approximation, not a correctness guarantee: edits to an
// open PR do not move the synthesized timestamp.
func mapPullRequestInfo(pr pullRequest) model.PullRequestDescriptor {
	var state model.PRState
	var mergedAt, closedAt time.Time
	switch pr.Status {
	case "completed":
		state = model.PRStateMerged
		mergedAt = pr.ClosedDate
		closedAt = pr.ClosedDate
	case "abandoned":
		state = model.PRStateClosed
		closedAt = pr.ClosedDate
	default: // "active"
		state = model.PRStateOpen
	}

	lastUpdated := pr.CreationDate
	if !pr.ClosedDate.IsZero() {
		lastUpdated = pr.ClosedDate
	}

	webURL := ""
	if pr.Repository.WebURL != "" {
		webURL = fmt.Sprintf("%s/pullrequest/%d", pr.Repository.WebURL, pr.PullRequestID)
	}

	return model.PullRequestDescriptor{
		SourceID:                 strconv.Itoa(pr.PullRequestID),
		SourceDisplayID:          strconv.Itoa(pr.PullRequestID),
		Title:                    pr.Title,
		Description:              pr.Description,
		SourceState:              pr.Status,
		State:                    state,
		SourceCreatedAt:          pr.CreationDate,
		SourceLastUpdated:        lastUpdated,
		SourceMergeStatus:        pr.MergeStatus,
		SourceMergedAt:           mergedAt,
		SourceClosedAt:           closedAt,
		SourceBranch:             trimRef(pr.SourceRefName),
		TargetBranch:             trimRef(pr.TargetRefName),
		SourceRepositorySourceID: pr.Repository.ID,
		TargetRepositorySourceID: pr.Repository.ID,
		WebURL:                   webURL,
	}
}

// trimRef strips the refs/heads/ prefix Azure uses on branch names.
func trimRef(ref string) string {
	return strings.TrimPrefix(ref, "refs/heads/")
}

// Repositories returns a pager over every git repository in the
// organization. Azure returns the full collection in one response, so the
// pager yields a single batch.
func (c *Connector) Repositories() driven.RepositoryPager {
	return &repoPager{c: c}
}

type repoPager struct {
	c    *Connector
	done bool
}

func (p *repoPager) Next(ctx context.Context) ([]model.RepositoryDescriptor, bool, error) {
	if p.done {
		return nil, false, nil
	}
	p.done = true

	var envelope listEnvelope[repository]
	if err := p.c.get(ctx, "/_apis/git/repositories", nil, &envelope); err != nil {
		return nil, false, err
	}

	batch := make([]model.RepositoryDescriptor, 0, len(envelope.Value))
	for _, repo := range envelope.Value {
		batch = append(batch, mapRepositoryInfo(repo))
	}

	return batch, true, nil
}

// PullRequests returns a pager over pull requests of one repository. An
// empty prSourceID pages the backlog with $top/$skip, dropping records
// outside the recency window; a non-empty one fetches exactly that pull
// request id.
func (c *Connector) PullRequests(repoSourceID, prSourceID string) driven.PullRequestPager {
	return &prPager{c: c, repoSourceID: repoSourceID, prSourceID: prSourceID}
}

type prPager struct {
	c            *Connector
	repoSourceID string
	prSourceID   string
	skip         int
	done         bool
}

func (p *prPager) Next(ctx context.Context) ([]model.PullRequestDescriptor, bool, error) {
	if p.done {
		return nil, false, nil
	}

	if p.prSourceID != "" {
		p.done = true
		var pr pullRequest
		path := fmt.Sprintf("/_apis/git/repositories/%s/pullrequests/%s",
			url.PathEscape(p.repoSourceID), url.PathEscape(p.prSourceID))
		if err := p.c.get(ctx, path, nil, &pr); err != nil {
			return nil, false, err
		}
		return []model.PullRequestDescriptor{mapPullRequestInfo(pr)}, true, nil
	}

	query := url.Values{
		"searchCriteria.status": {"all"},
		"$top":                  {strconv.Itoa(prPageSize)},
		"$skip":                 {strconv.Itoa(p.skip)},
	}

	var envelope listEnvelope[pullRequest]
	path := fmt.Sprintf("/_apis/git/repositories/%s/pullrequests", url.PathEscape(p.repoSourceID))
	if err := p.c.get(ctx, path, query, &envelope); err != nil {
		return nil, false, err
	}

	// Azure does not order by update time, so old records are skipped
	// per-item instead of terminating the page loop early.
	cutoff := time.Now().Add(-backlogWindow)
	batch := make([]model.PullRequestDescriptor, 0, len(envelope.Value))
	for _, pr := range envelope.Value {
		mapped := mapPullRequestInfo(pr)
		if mapped.SourceLastUpdated.Before(cutoff) {
			continue
		}
		batch = append(batch, mapped)
	}

	if len(envelope.Value) < prPageSize {
		p.done = true
	} else {
		p.skip += prPageSize
	}

	return batch, true, nil
}

// get issues an authenticated GET and decodes the JSON body into out.
func (c *Connector) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Connector) do(ctx context.Context, method, path string, query url.Values, body io.Reader, out any) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("api-version", apiVersion)
	u := c.baseURL + path + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("build azure request: %w", err)
	}
	// PATs use basic auth with an empty username.
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(":"+c.pat)))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &driven.VendorError{Vendor: "azure", Operation: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &driven.VendorError{
			Vendor:     "azure",
			Operation:  method + " " + path,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status"),
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode azure response for %s: %w", path, err)
		}
	}

	return nil
}
