package driven

import (
	"context"

	"github.com/ericfisherdev/vcsync/internal/domain/model"
)

// RepositoryStore defines the driven port for repository persistence.
//
// Upsert inserts the repository or, when a row already exists for
// (ConnectorKey, SourceID), refreshes the display fields (name, url,
// description, public, last checked) while leaving import state, polling,
// webhook bookkeeping and counters untouched. The stored key never changes
// on conflict.
//
// TransitionImportState applies a guarded state change: it succeeds only if
// the row is currently in the from state, and reports whether a row changed.
type RepositoryStore interface {
	Upsert(ctx context.Context, repo model.Repository) error
	GetByKey(ctx context.Context, key string) (*model.Repository, error)
	GetBySource(ctx context.Context, connectorKey, sourceID string) (*model.Repository, error)
	// FindInOrganization looks up a repository by (organizationKey, sourceID)
	// held under any connector other than excludeConnectorKey. Returns nil, nil
	// when no such row exists.
	FindInOrganization(ctx context.Context, organizationKey, sourceID, excludeConnectorKey string) (*model.Repository, error)
	TransitionImportState(ctx context.Context, key string, from, to model.ImportState) (bool, error)
	UpdateWebhookInfo(ctx context.Context, key string, info model.WebhookInfo) error
	ListByConnector(ctx context.Context, connectorKey string) ([]model.Repository, error)
}
