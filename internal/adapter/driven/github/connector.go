// Package github implements the Connector port using the go-github library.
package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"
	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/ericfisherdev/vcsync/internal/domain/model"
	"github.com/ericfisherdev/vcsync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.Connector = (*Connector)(nil)

// backlogWindow bounds the pull-request backlog fetch: PRs untouched for
// longer than this are not re-fetched during a full sync.
const backlogWindow = 90 * 24 * time.Hour

// Connector implements the driven.Connector port for one GitHub account
// using the go-github library.
type Connector struct {
	gh         *gh.Client
	key        string
	org        string // Organization login; empty means the authenticated user's repositories.
	webhookURL string
	secret     string

	mu        sync.Mutex
	repoNames map[string][2]string // source id -> [owner, name], filled lazily.
}

// NewConnector creates a GitHub connector with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with PAT auth)
//
// webhookURL is the ingress endpoint registered with each repository's hooks.
func NewConnector(key, token, org, webhookURL, secret string) *Connector {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient).WithAuthToken(token)

	return &Connector{
		gh:         client,
		key:        key,
		org:        org,
		webhookURL: webhookURL,
		secret:     secret,
		repoNames:  make(map[string][2]string),
	}
}

// NewConnectorWithHTTPClient creates a Connector with a custom http.Client
// and base URL. This constructor is intended for testing, allowing injection
// of an httptest server.
func NewConnectorWithHTTPClient(httpClient *http.Client, baseURL, key, org, webhookURL string) (*Connector, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &Connector{
		gh:         client,
		key:        key,
		org:        org,
		webhookURL: webhookURL,
		repoNames:  make(map[string][2]string),
	}, nil
}

// IntegrationType returns the vendor tag for this connector.
func (c *Connector) IntegrationType() model.IntegrationType {
	return model.IntegrationGitHub
}

// Repositories returns a pager over every repository visible to the
// connector account, one GitHub API page per batch.
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

	var (
		repos []*gh.Repository
		resp  *gh.Response
		err   error
	)
	if p.c.org != "" {
		opts := &gh.RepositoryListByOrgOptions{
			ListOptions: gh.ListOptions{Page: p.page, PerPage: 100},
		}
		repos, resp, err = p.c.gh.Repositories.ListByOrg(ctx, p.c.org, opts)
	} else {
		opts := &gh.RepositoryListByAuthenticatedUserOptions{
			ListOptions: gh.ListOptions{Page: p.page, PerPage: 100},
		}
		repos, resp, err = p.c.gh.Repositories.ListByAuthenticatedUser(ctx, opts)
	}
	if err != nil {
		return nil, false, vendorErr("list repositories", resp, err)
	}

	batch := make([]model.RepositoryDescriptor, 0, len(repos))
	for _, repo := range repos {
		p.c.rememberRepo(repo)
		batch = append(batch, mapRepositoryInfo(repo))
	}

	if resp.NextPage == 0 {
		p.done = true
	} else {
		p.page = resp.NextPage
	}

	return batch, true, nil
}

// PullRequests returns a pager over pull requests of one repository. An
// empty prSourceID pages through the backlog, most recently updated first,
// stopping past the recency window; a non-empty one fetches exactly that
// pull request number.
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

	owner, name, err := p.c.resolveRepo(ctx, p.repoSourceID)
	if err != nil {
		return nil, false, err
	}

	if p.prSourceID != "" {
		p.done = true
		number, err := strconv.Atoi(p.prSourceID)
		if err != nil {
			return nil, false, fmt.Errorf("github pull request id %q: %w", p.prSourceID, err)
		}
		pr, resp, err := p.c.gh.PullRequests.Get(ctx, owner, name, number)
		if err != nil {
			return nil, false, vendorErr("get pull request", resp, err)
		}
		return []model.PullRequestDescriptor{mapPullRequestInfo(pr)}, true, nil
	}

	opts := &gh.PullRequestListOptions{
		State:       "all",
		Sort:        "updated",
		Direction:   "desc",
		ListOptions: gh.ListOptions{Page: p.page, PerPage: 100},
	}
	prs, resp, err := p.c.gh.PullRequests.List(ctx, owner, name, opts)
	if err != nil {
		return nil, false, vendorErr("list pull requests", resp, err)
	}

	cutoff := time.Now().Add(-backlogWindow)
	batch := make([]model.PullRequestDescriptor, 0, len(prs))
	for _, pr := range prs {
		if pr.GetUpdatedAt().Time.Before(cutoff) {
			p.done = true
			break
		}
		batch = append(batch, mapPullRequestInfo(pr))
	}

	if resp.NextPage == 0 {
		p.done = true
	} else {
		p.page = resp.NextPage
	}

	return batch, true, nil
}

// rememberRepo caches the owner/name pair under the repository's source id
// so later PR and webhook calls skip the GetByID round trip.
func (c *Connector) rememberRepo(repo *gh.Repository) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.repoNames[strconv.FormatInt(repo.GetID(), 10)] = [2]string{repo.GetOwner().GetLogin(), repo.GetName()}
}

// resolveRepo maps a vendor-native repository id to its owner/name pair.
func (c *Connector) resolveRepo(ctx context.Context, sourceID string) (owner, name string, err error) {
	c.mu.Lock()
	cached, ok := c.repoNames[sourceID]
	c.mu.Unlock()
	if ok {
		return cached[0], cached[1], nil
	}

	id, err := strconv.ParseInt(sourceID, 10, 64)
	if err != nil {
		return "", "", fmt.Errorf("github repository id %q: %w", sourceID, err)
	}

	repo, resp, err := c.gh.Repositories.GetByID(ctx, id)
	if err != nil {
		return "", "", vendorErr("get repository", resp, err)
	}

	c.rememberRepo(repo)
	return repo.GetOwner().GetLogin(), repo.GetName(), nil
}

// vendorErr wraps a go-github failure as a VendorError carrying the response
// status when one was received.
func vendorErr(operation string, resp *gh.Response, err error) error {
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	return &driven.VendorError{Vendor: "github", Operation: operation, StatusCode: status, Err: err}
}
