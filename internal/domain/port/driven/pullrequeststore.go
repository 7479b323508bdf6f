package driven

import (
	"context"

	"github.com/ericfisherdev/vcsync/internal/domain/model"
)

// PullRequestStore defines the driven port for pull request persistence.
// Upsert overwrites every mapped field on conflict of (RepositoryKey,
// SourceID); the stored key never changes on conflict.
type PullRequestStore interface {
	Upsert(ctx context.Context, pr model.PullRequest) error
	GetBySource(ctx context.Context, repositoryKey, sourceID string) (*model.PullRequest, error)
	ListByRepository(ctx context.Context, repositoryKey string) ([]model.PullRequest, error)
}
