package application

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/ericfisherdev/vcsync/internal/domain/model"
	"github.com/ericfisherdev/vcsync/internal/domain/port/driven"
)

// PullRequestsResult is the structured outcome of a pull-request
// reconciliation.
type PullRequestsResult struct {
	Success      bool
	Message      string
	PullRequests []model.PullRequestRecord
}

// PRService is the pull-request reconciliation engine.
type PRService struct {
	repoStore  driven.RepositoryStore
	prStore    driven.PullRequestStore
	connectors driven.ConnectorResolver
	publisher  driven.Publisher
}

// NewPRService creates a PRService with all required dependencies.
func NewPRService(repoStore driven.RepositoryStore, prStore driven.PullRequestStore, connectors driven.ConnectorResolver, publisher driven.Publisher) *PRService {
	return &PRService{
		repoStore:  repoStore,
		prStore:    prStore,
		connectors: connectors,
		publisher:  publisher,
	}
}

// ReconcilePullRequests idempotently merges the descriptor batches yielded
// by pages into the store, scoped to one repository. Each descriptor upserts
// on (repositoryKey, sourceID); IsNew reports whether a row existed before.
// All mapped fields are overwritten unconditionally — the latest vendor
// snapshot wins. The page sequence is consumed eagerly; callers wanting to
// bound memory invoke once per page with a single-page pager.
//
// An unresolvable repository key fails the call before anything is written.
func (s *PRService) ReconcilePullRequests(ctx context.Context, repositoryKey string, pages driven.PullRequestPager) (*PullRequestsResult, error) {
	repo, err := s.repoStore.GetByKey(ctx, repositoryKey)
	if err != nil {
		return nil, err
	}
	if repo == nil {
		return &PullRequestsResult{Success: false, Message: "repository not found"}, nil
	}

	var records []model.PullRequestRecord
	for {
		batch, ok, err := pages.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}

		for _, descriptor := range batch {
			prior, err := s.prStore.GetBySource(ctx, repositoryKey, descriptor.SourceID)
			if err != nil {
				return nil, err
			}

			pr := model.PullRequest{Key: uuid.NewString(), RepositoryKey: repositoryKey}
			if prior != nil {
				pr.Key = prior.Key
			}
			descriptor.Apply(&pr)

			if err := s.prStore.Upsert(ctx, pr); err != nil {
				return nil, err
			}

			records = append(records, model.PullRequestRecord{
				Key:           pr.Key,
				RepositoryKey: repositoryKey,
				IsNew:         prior == nil,
				PullRequest:   descriptor,
			})
		}
	}

	if err := publishPullRequestsEvent(ctx, s.publisher, repositoryKey, records); err != nil {
		return nil, err
	}

	return &PullRequestsResult{Success: true, PullRequests: records}, nil
}

// SyncPullRequests fetches the backlog of one repository from its connector
// and reconciles it. The backlog is bounded by the connector's recency
// window.
func (s *PRService) SyncPullRequests(ctx context.Context, repositoryKey string) (*PullRequestsResult, error) {
	repo, err := s.repoStore.GetByKey(ctx, repositoryKey)
	if err != nil {
		return nil, err
	}
	if repo == nil {
		return &PullRequestsResult{Success: false, Message: "repository not found"}, nil
	}

	connector, err := s.connectors.Resolve(ctx, repo.ConnectorKey)
	if err != nil {
		return &PullRequestsResult{Success: false, Message: err.Error()}, nil
	}

	result, err := s.ReconcilePullRequests(ctx, repositoryKey, connector.PullRequests(repo.SourceID, ""))
	if err != nil {
		return nil, err
	}

	if result.Success {
		slog.Info("pull requests synced", "repository", repositoryKey, "count", len(result.PullRequests))
	}
	return result, nil
}

// UpsertFromWebhook reconciles the single already-mapped descriptor carried
// by a normalized pull-request webhook, resolving the owning repository by
// (connectorKey, repositorySourceID).
func (s *PRService) UpsertFromWebhook(ctx context.Context, request model.PullRequestUpsertRequested) (*PullRequestsResult, error) {
	repo, err := s.repoStore.GetBySource(ctx, request.ConnectorKey, request.RepositorySourceID)
	if err != nil {
		return nil, err
	}
	if repo == nil {
		return &PullRequestsResult{
			Success: false,
			Message: fmt.Sprintf("repository %s/%s not found", request.ConnectorKey, request.RepositorySourceID),
		}, nil
	}

	pager := singlePage{descriptors: []model.PullRequestDescriptor{request.PullRequest}}
	return s.ReconcilePullRequests(ctx, repo.Key, &pager)
}

// singlePage is a one-batch pager wrapping descriptors already in hand.
type singlePage struct {
	descriptors []model.PullRequestDescriptor
	consumed    bool
}

func (p *singlePage) Next(_ context.Context) ([]model.PullRequestDescriptor, bool, error) {
	if p.consumed {
		return nil, false, nil
	}
	p.consumed = true
	return p.descriptors, true, nil
}
