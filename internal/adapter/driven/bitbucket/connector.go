// Package bitbucket implements the Connector port against the Bitbucket
// Cloud REST API 2.0. Pagination is link-based: each page carries the full
// URL of the next one.
package bitbucket

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

const defaultBaseURL = "https://api.bitbucket.org/2.0"

// backlogWindow bounds the pull-request backlog fetch.
const backlogWindow = 90 * 24 * time.Hour

// Connector implements the driven.Connector port for one Bitbucket workspace.
type Connector struct {
	httpClient *http.Client
	baseURL    string
	token      string
	key        string
	workspace  string
	webhookURL string
}

// NewConnector creates a Bitbucket connector authenticated with an access
// token. baseURL may be empty for bitbucket.org.
func NewConnector(key, token, workspace, baseURL, webhookURL string) *Connector {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Connector{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    baseURL,
		token:      token,
		key:        key,
		workspace:  workspace,
		webhookURL: webhookURL,
	}
}

// IntegrationType returns the vendor tag for this connector.
func (c *Connector) IntegrationType() model.IntegrationType {
	return model.IntegrationBitbucket
}

// repository is the subset of the Bitbucket repository resource this adapter
// reads. The UUID (braced form) is the vendor-native id; it survives renames
// and is accepted in API paths in place of the slug.
type repository struct {
	UUID        string `json:"uuid"`
	FullName    string `json:"full_name"`
	Description string `json:"description"`
	IsPrivate   bool   `json:"is_private"`
	Links       links  `json:"links"`
}

type links struct {
	HTML struct {
		Href string `json:"href"`
	} `json:"html"`
}

// pullRequest is the subset of the Bitbucket pull request resource this
// adapter reads.
type pullRequest struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	State   string `json:"state"` // OPEN, MERGED, DECLINED, SUPERSEDED.
	Summary struct {
		Raw string `json:"raw"`
	} `json:"summary"`
	CreatedOn   time.Time `json:"created_on"`
	UpdatedOn   time.Time `json:"updated_on"`
	Source      endpoint  `json:"source"`
	Destination endpoint  `json:"destination"`
	Links       links     `json:"links"`
}

type endpoint struct {
	Branch struct {
		Name string `json:"name"`
	} `json:"branch"`
	Repository struct {
		UUID string `json:"uuid"`
	} `json:"repository"`
}

// mapRepositoryInfo converts a Bitbucket repository to a descriptor.
func mapRepositoryInfo(r repository) model.RepositoryDescriptor {
	return model.RepositoryDescriptor{
		SourceID:    r.UUID,
		Name:        r.FullName,
		URL:         r.Links.HTML.Href,
		Description: r.Description,
		Public:      !r.IsPrivate,
	}
}

// mapPullRequestInfo converts a Bitbucket pull request to a descriptor.
//
// Bitbucket reports no dedicated closure timestamp, so for terminal states
// the closed-at (and merged-at) fields are synthesized from updated_on. This
// is a known approximation: a post-closure touch shifts the synthesized
// timestamp.
func mapPullRequestInfo(pr pullRequest) model.PullRequestDescriptor {
	var state model.PRState
	var mergedAt, closedAt time.Time
	switch pr.State {
	case "MERGED":
		state = model.PRStateMerged
		mergedAt = pr.UpdatedOn
		closedAt = pr.UpdatedOn
	case "DECLINED", "SUPERSEDED":
		state = model.PRStateClosed
		closedAt = pr.UpdatedOn
	default: // "OPEN"
		state = model.PRStateOpen
	}

	return model.PullRequestDescriptor{
		SourceID:                 strconv.Itoa(pr.ID),
		SourceDisplayID:          strconv.Itoa(pr.ID),
		Title:                    pr.Title,
		Description:              pr.Summary.Raw,
		SourceState:              pr.State,
		State:                    state,
		SourceCreatedAt:          pr.CreatedOn,
		SourceLastUpdated:        pr.UpdatedOn,
		SourceMergedAt:           mergedAt,
		SourceClosedAt:           closedAt,
		SourceBranch:             pr.Source.Branch.Name,
		TargetBranch:             pr.Destination.Branch.Name,
		SourceRepositorySourceID: pr.Source.Repository.UUID,
		TargetRepositorySourceID: pr.Destination.Repository.UUID,
		WebURL:                   pr.Links.HTML.Href,
	}
}

// page is the Bitbucket paginated envelope: values plus the URL of the next
// page, absent on the last one.
type page[T any] struct {
	Values []T    `json:"values"`
	Next   string `json:"next"`
}

// Repositories returns a pager over every repository in the workspace.
func (c *Connector) Repositories() driven.RepositoryPager {
	return &repoPager{
		c:       c,
		nextURL: fmt.Sprintf("%s/repositories/%s?pagelen=100", c.baseURL, url.PathEscape(c.workspace)),
	}
}

type repoPager struct {
	c       *Connector
	nextURL string
}

func (p *repoPager) Next(ctx context.Context) ([]model.RepositoryDescriptor, bool, error) {
	if p.nextURL == "" {
		return nil, false, nil
	}

	var pg page[repository]
	if err := p.c.getURL(ctx, p.nextURL, &pg); err != nil {
		return nil, false, err
	}
	p.nextURL = pg.Next

	batch := make([]model.RepositoryDescriptor, 0, len(pg.Values))
	for _, repo := range pg.Values {
		batch = append(batch, mapRepositoryInfo(repo))
	}

	return batch, true, nil
}

// PullRequests returns a pager over pull requests of one repository. An
// empty prSourceID pages the backlog in every state, most recently updated
// first, stopping past the recency window; a non-empty one fetches exactly
// that pull request id.
func (c *Connector) PullRequests(repoSourceID, prSourceID string) driven.PullRequestPager {
	p := &prPager{c: c, prSourceID: prSourceID, repoSourceID: repoSourceID}
	if prSourceID == "" {
		p.nextURL = fmt.Sprintf(
			"%s/repositories/%s/%s/pullrequests?state=OPEN&state=MERGED&state=DECLINED&state=SUPERSEDED&sort=-updated_on&pagelen=50",
			c.baseURL, url.PathEscape(c.workspace), url.PathEscape(repoSourceID),
		)
	}
	return p
}

type prPager struct {
	c            *Connector
	repoSourceID string
	prSourceID   string
	nextURL      string
	done         bool
}

func (p *prPager) Next(ctx context.Context) ([]model.PullRequestDescriptor, bool, error) {
	if p.done {
		return nil, false, nil
	}

	if p.prSourceID != "" {
		p.done = true
		u := fmt.Sprintf("%s/repositories/%s/%s/pullrequests/%s",
			p.c.baseURL, url.PathEscape(p.c.workspace), url.PathEscape(p.repoSourceID), url.PathEscape(p.prSourceID))
		var pr pullRequest
		if err := p.c.getURL(ctx, u, &pr); err != nil {
			return nil, false, err
		}
		return []model.PullRequestDescriptor{mapPullRequestInfo(pr)}, true, nil
	}

	if p.nextURL == "" {
		return nil, false, nil
	}

	var pg page[pullRequest]
	if err := p.c.getURL(ctx, p.nextURL, &pg); err != nil {
		return nil, false, err
	}
	p.nextURL = pg.Next

	cutoff := time.Now().Add(-backlogWindow)
	batch := make([]model.PullRequestDescriptor, 0, len(pg.Values))
	for _, pr := range pg.Values {
		if pr.UpdatedOn.Before(cutoff) {
			p.done = true
			break
		}
		batch = append(batch, mapPullRequestInfo(pr))
	}

	if p.nextURL == "" {
		p.done = true
	}

	return batch, true, nil
}

// getURL issues an authenticated GET against an absolute URL and decodes the
// JSON body into out.
func (c *Connector) getURL(ctx context.Context, u string, out any) error {
	return c.doURL(ctx, http.MethodGet, u, nil, out)
}

func (c *Connector) doURL(ctx context.Context, method, u string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("build bitbucket request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &driven.VendorError{Vendor: "bitbucket", Operation: method + " " + u, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &driven.VendorError{
			Vendor:     "bitbucket",
			Operation:  method + " " + u,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status"),
		}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode bitbucket response: %w", err)
		}
	}

	return nil
}
