package application

import (
	"context"
	"fmt"

	"github.com/ericfisherdev/vcsync/internal/domain/model"
	"github.com/ericfisherdev/vcsync/internal/domain/port/driven"
)

// fakeRepoStore is an in-memory RepositoryStore mirroring the SQLite
// adapter's conflict semantics.
type fakeRepoStore struct {
	rows map[string]*model.Repository
}

func newFakeRepoStore() *fakeRepoStore {
	return &fakeRepoStore{rows: make(map[string]*model.Repository)}
}

func sourceKey(connectorKey, sourceID string) string {
	return connectorKey + "|" + sourceID
}

func (s *fakeRepoStore) Upsert(_ context.Context, repo model.Repository) error {
	for _, row := range s.rows {
		if row.ConnectorKey == repo.ConnectorKey && row.SourceID == repo.SourceID {
			row.Name = repo.Name
			row.URL = repo.URL
			row.Description = repo.Description
			row.Public = repo.Public
			row.LastChecked = repo.LastChecked
			return nil
		}
	}
	stored := repo
	s.rows[repo.Key] = &stored
	return nil
}

func (s *fakeRepoStore) GetByKey(_ context.Context, key string) (*model.Repository, error) {
	row, ok := s.rows[key]
	if !ok {
		return nil, nil
	}
	copied := *row
	return &copied, nil
}

func (s *fakeRepoStore) GetBySource(_ context.Context, connectorKey, sourceID string) (*model.Repository, error) {
	for _, row := range s.rows {
		if row.ConnectorKey == connectorKey && row.SourceID == sourceID {
			copied := *row
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *fakeRepoStore) FindInOrganization(_ context.Context, organizationKey, sourceID, excludeConnectorKey string) (*model.Repository, error) {
	for _, row := range s.rows {
		if row.OrganizationKey == organizationKey && row.SourceID == sourceID && row.ConnectorKey != excludeConnectorKey {
			copied := *row
			return &copied, nil
		}
	}
	return nil, nil
}

func (s *fakeRepoStore) TransitionImportState(_ context.Context, key string, from, to model.ImportState) (bool, error) {
	row, ok := s.rows[key]
	if !ok || row.ImportState != from {
		return false, nil
	}
	row.ImportState = to
	return true, nil
}

func (s *fakeRepoStore) UpdateWebhookInfo(_ context.Context, key string, info model.WebhookInfo) error {
	row, ok := s.rows[key]
	if !ok {
		return driven.ErrRepositoryNotFound
	}
	row.Webhooks = info
	return nil
}

func (s *fakeRepoStore) ListByConnector(_ context.Context, connectorKey string) ([]model.Repository, error) {
	var repos []model.Repository
	for _, row := range s.rows {
		if row.ConnectorKey == connectorKey {
			repos = append(repos, *row)
		}
	}
	return repos, nil
}

// fakePRStore is an in-memory PullRequestStore.
type fakePRStore struct {
	rows map[string]*model.PullRequest
}

func newFakePRStore() *fakePRStore {
	return &fakePRStore{rows: make(map[string]*model.PullRequest)}
}

func (s *fakePRStore) Upsert(_ context.Context, pr model.PullRequest) error {
	key := sourceKey(pr.RepositoryKey, pr.SourceID)
	if existing, ok := s.rows[key]; ok {
		pr.Key = existing.Key
	}
	stored := pr
	s.rows[key] = &stored
	return nil
}

func (s *fakePRStore) GetBySource(_ context.Context, repositoryKey, sourceID string) (*model.PullRequest, error) {
	row, ok := s.rows[sourceKey(repositoryKey, sourceID)]
	if !ok {
		return nil, nil
	}
	copied := *row
	return &copied, nil
}

func (s *fakePRStore) ListByRepository(_ context.Context, repositoryKey string) ([]model.PullRequest, error) {
	var prs []model.PullRequest
	for _, row := range s.rows {
		if row.RepositoryKey == repositoryKey {
			prs = append(prs, *row)
		}
	}
	return prs, nil
}

// capturePublisher records every published message.
type capturePublisher struct {
	messages []driven.Message
	err      error
}

func (p *capturePublisher) Publish(_ context.Context, msg driven.Message) error {
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, msg)
	return nil
}

func (p *capturePublisher) byType(messageType string) []driven.Message {
	var matched []driven.Message
	for _, msg := range p.messages {
		if msg.Type == messageType {
			matched = append(matched, msg)
		}
	}
	return matched
}

// slicePagers yield pre-canned batches.
type repoSlicePager struct {
	pages [][]model.RepositoryDescriptor
}

func (p *repoSlicePager) Next(_ context.Context) ([]model.RepositoryDescriptor, bool, error) {
	if len(p.pages) == 0 {
		return nil, false, nil
	}
	page := p.pages[0]
	p.pages = p.pages[1:]
	return page, true, nil
}

type prSlicePager struct {
	pages [][]model.PullRequestDescriptor
}

func (p *prSlicePager) Next(_ context.Context) ([]model.PullRequestDescriptor, bool, error) {
	if len(p.pages) == 0 {
		return nil, false, nil
	}
	page := p.pages[0]
	p.pages = p.pages[1:]
	return page, true, nil
}

// fakeConnector serves canned pages and records webhook registrations.
type fakeConnector struct {
	integrationType model.IntegrationType
	repoPages       [][]model.RepositoryDescriptor
	prPages         [][]model.PullRequestDescriptor
	registration    *driven.WebhookRegistration
	webhookEvent    *driven.WebhookEvent

	registeredSourceIDs []string
	previousHookIDs     [][]string
	prRequests          [][2]string
}

func (c *fakeConnector) IntegrationType() model.IntegrationType {
	return c.integrationType
}

func (c *fakeConnector) Repositories() driven.RepositoryPager {
	return &repoSlicePager{pages: c.repoPages}
}

func (c *fakeConnector) PullRequests(repoSourceID, prSourceID string) driven.PullRequestPager {
	c.prRequests = append(c.prRequests, [2]string{repoSourceID, prSourceID})
	return &prSlicePager{pages: c.prPages}
}

func (c *fakeConnector) RegisterWebhooks(_ context.Context, repoSourceID string, previousHookIDs []string) (*driven.WebhookRegistration, error) {
	c.registeredSourceIDs = append(c.registeredSourceIDs, repoSourceID)
	c.previousHookIDs = append(c.previousHookIDs, previousHookIDs)
	if c.registration == nil {
		return &driven.WebhookRegistration{ActiveWebhook: "hook-new"}, nil
	}
	return c.registration, nil
}

func (c *fakeConnector) NormalizeWebhook(_ string, _ []byte) (*driven.WebhookEvent, error) {
	return c.webhookEvent, nil
}

// fakeResolver resolves connector keys against a static map.
type fakeResolver struct {
	connectors map[string]driven.Connector
}

func (r *fakeResolver) Resolve(_ context.Context, connectorKey string) (driven.Connector, error) {
	connector, ok := r.connectors[connectorKey]
	if !ok {
		return nil, fmt.Errorf("connector %s: %w", connectorKey, driven.ErrConnectorNotFound)
	}
	return connector, nil
}
