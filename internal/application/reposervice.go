package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/vcsync/internal/domain/model"
	"github.com/ericfisherdev/vcsync/internal/domain/port/driven"
)

// RepositoryRecord is one row of a repository reconciliation result.
type RepositoryRecord struct {
	Key                  string
	SourceID             string
	IsNew                bool
	ExistsInOrganization bool
	Repository           model.Repository
}

// RepositoriesResult is the structured outcome of a repository
// reconciliation. Business-expected failures (missing organization key,
// unknown connector) are reported here with Success=false rather than as
// errors; only infrastructure failures surface as errors.
type RepositoriesResult struct {
	Success      bool
	Message      string
	Repositories []RepositoryRecord
}

// RepoService is the repository reconciliation engine plus the
// repository-scoped command handlers (connector refresh, webhook
// registration, import-state transitions, push gating).
type RepoService struct {
	repoStore  driven.RepositoryStore
	connectors driven.ConnectorResolver
	publisher  driven.Publisher
}

// NewRepoService creates a RepoService with all required dependencies.
func NewRepoService(repoStore driven.RepositoryStore, connectors driven.ConnectorResolver, publisher driven.Publisher) *RepoService {
	return &RepoService{
		repoStore:  repoStore,
		connectors: connectors,
		publisher:  publisher,
	}
}

// ReconcileRepositories idempotently merges a batch of vendor-fetched
// descriptors into the store for one connector within an organization.
//
// Every descriptor is staged with a fresh candidate key and defaulted
// fields. If the same vendor-native repository already exists in the
// organization under a DIFFERENT connector, no new row is created and the
// pre-existing canonical key is reported instead. Otherwise the descriptor
// is upserted on (connectorKey, sourceID): display fields refresh, import
// state and counters are preserved, and IsNew reports whether a row existed
// before this call. A descriptor list with duplicate source ids is not
// rejected; the last one in iteration order wins.
func (s *RepoService) ReconcileRepositories(ctx context.Context, organizationKey, connectorKey string, integrationType model.IntegrationType, descriptors []model.RepositoryDescriptor) (*RepositoriesResult, error) {
	if organizationKey == "" {
		return &RepositoriesResult{Success: false, Message: "organization key is required"}, nil
	}

	now := time.Now().UTC()
	records := make([]RepositoryRecord, 0, len(descriptors))

	for _, descriptor := range descriptors {
		staged := model.Repository{
			Key:             uuid.NewString(),
			ConnectorKey:    connectorKey,
			OrganizationKey: organizationKey,
			SourceID:        descriptor.SourceID,
			IntegrationType: integrationType,
			Name:            descriptor.Name,
			URL:             descriptor.URL,
			Description:     descriptor.Description,
			Public:          descriptor.Public,
			ImportState:     model.ImportDisabled,
			LastChecked:     now,
		}

		// Cross-connector de-duplication: the vendor-native identity may
		// already be tracked under another connector in this organization.
		canonical, err := s.repoStore.FindInOrganization(ctx, organizationKey, descriptor.SourceID, connectorKey)
		if err != nil {
			return nil, err
		}
		if canonical != nil {
			records = append(records, RepositoryRecord{
				Key:                  canonical.Key,
				SourceID:             descriptor.SourceID,
				IsNew:                false,
				ExistsInOrganization: true,
				Repository:           *canonical,
			})
			continue
		}

		prior, err := s.repoStore.GetBySource(ctx, connectorKey, descriptor.SourceID)
		if err != nil {
			return nil, err
		}
		if prior != nil {
			staged.Key = prior.Key
			staged.ImportState = prior.ImportState
			staged.Polling = prior.Polling
			staged.Webhooks = prior.Webhooks
			staged.CommitCount = prior.CommitCount
			staged.LastImported = prior.LastImported
		}

		if err := s.repoStore.Upsert(ctx, staged); err != nil {
			return nil, err
		}

		records = append(records, RepositoryRecord{
			Key:        staged.Key,
			SourceID:   descriptor.SourceID,
			IsNew:      prior == nil,
			Repository: staged,
		})
	}

	if err := publishRepositoryEvents(ctx, s.publisher, records); err != nil {
		return nil, err
	}

	return &RepositoriesResult{Success: true, Repositories: records}, nil
}

// RefreshConnectorRepositories fetches every repository page visible to the
// connector and reconciles page by page, so batch commits stay independent
// of vendor pagination. A RepositoriesImported event is published once the
// refresh completes, carrying every repository key observed.
func (s *RepoService) RefreshConnectorRepositories(ctx context.Context, organizationKey, connectorKey string) (*RepositoriesResult, error) {
	connector, err := s.connectors.Resolve(ctx, connectorKey)
	if err != nil {
		return &RepositoriesResult{Success: false, Message: err.Error()}, nil
	}

	var all []RepositoryRecord
	pager := connector.Repositories()
	for {
		batch, ok, err := pager.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}

		result, err := s.ReconcileRepositories(ctx, organizationKey, connectorKey, connector.IntegrationType(), batch)
		if err != nil {
			return nil, err
		}
		if !result.Success {
			return result, nil
		}
		all = append(all, result.Repositories...)
	}

	keys := make([]string, 0, len(all))
	for _, record := range all {
		keys = append(keys, record.Key)
	}
	msg, err := newMessage(model.TopicRepositoryEvents, model.MsgRepositoriesImported, model.RepositoriesImported{
		OrganizationKey: organizationKey,
		ConnectorKey:    connectorKey,
		RepositoryKeys:  keys,
	})
	if err != nil {
		return nil, err
	}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		return nil, fmt.Errorf("publish repositories imported: %w", err)
	}

	slog.Info("connector repositories refreshed",
		"connector", connectorKey,
		"organization", organizationKey,
		"repositories", len(all),
	)

	return &RepositoriesResult{Success: true, Repositories: all}, nil
}

// PushResult is the structured outcome of a remote push notification.
type PushResult struct {
	Success       bool
	Message       string
	RepositoryKey string
}

// HandleRemotePush reacts to a vendor push notification. It advances the
// repository from CHECK_FOR_UPDATES to UPDATE_READY; a repository in any
// other state is left unchanged and the result reports Success=false. This
// gating keeps webhook storms from double-queuing update work.
func (s *RepoService) HandleRemotePush(ctx context.Context, push model.RemoteRepositoryPush) (*PushResult, error) {
	repo, err := s.repoStore.GetBySource(ctx, push.ConnectorKey, push.RepositorySourceID)
	if err != nil {
		return nil, err
	}
	if repo == nil {
		return &PushResult{Success: false, Message: "repository not found"}, nil
	}

	transitioned, err := s.repoStore.TransitionImportState(ctx, repo.Key, model.CheckForUpdates, model.UpdateReady)
	if err != nil {
		return nil, err
	}
	if !transitioned {
		return &PushResult{
			Success:       false,
			Message:       fmt.Sprintf("repository in state %s ignores push", repo.ImportState),
			RepositoryKey: repo.Key,
		}, nil
	}

	slog.Info("repository queued for update", "repository", repo.Key, "connector", push.ConnectorKey)
	return &PushResult{Success: true, RepositoryKey: repo.Key}, nil
}

// TransitionResult is the structured outcome of an operator import-state
// command.
type TransitionResult struct {
	Success bool
	Message string
}

// SetImportState applies an operator-driven import-state transition after
// validating it against the lifecycle state machine.
func (s *RepoService) SetImportState(ctx context.Context, repositoryKey string, target model.ImportState) (*TransitionResult, error) {
	if !target.Valid() {
		return &TransitionResult{Success: false, Message: fmt.Sprintf("unknown import state %s", target)}, nil
	}

	repo, err := s.repoStore.GetByKey(ctx, repositoryKey)
	if err != nil {
		return nil, err
	}
	if repo == nil {
		return &TransitionResult{Success: false, Message: "repository not found"}, nil
	}

	if !repo.ImportState.CanTransition(target) {
		return &TransitionResult{
			Success: false,
			Message: fmt.Sprintf("transition %s -> %s is not permitted", repo.ImportState, target),
		}, nil
	}

	transitioned, err := s.repoStore.TransitionImportState(ctx, repositoryKey, repo.ImportState, target)
	if err != nil {
		return nil, err
	}
	if !transitioned {
		// The state moved between read and write; the caller may retry.
		return &TransitionResult{Success: false, Message: "repository state changed concurrently"}, nil
	}

	return &TransitionResult{Success: true}, nil
}

// RegisterWebhooks (re)registers vendor webhooks for the listed
// repositories. Stale hooks recorded in the repository's bookkeeping are
// deleted before the new one is created; on success the bookkeeping is
// replaced wholesale. A vendor failure aborts the command so the message is
// redelivered and registration retried.
func (s *RepoService) RegisterWebhooks(ctx context.Context, connectorKey string, repositoryKeys []string) (*TransitionResult, error) {
	connector, err := s.connectors.Resolve(ctx, connectorKey)
	if err != nil {
		return &TransitionResult{Success: false, Message: err.Error()}, nil
	}

	for _, key := range repositoryKeys {
		repo, err := s.repoStore.GetByKey(ctx, key)
		if err != nil {
			return nil, err
		}
		if repo == nil {
			return &TransitionResult{Success: false, Message: fmt.Sprintf("repository %s not found", key)}, nil
		}

		registration, err := connector.RegisterWebhooks(ctx, repo.SourceID, repo.Webhooks.KnownHookIDs())
		if err != nil {
			return nil, err
		}

		info := model.WebhookInfo{
			ActiveWebhook:    registration.ActiveWebhook,
			RegisteredEvents: registration.RegisteredEvents,
		}
		if err := s.repoStore.UpdateWebhookInfo(ctx, key, info); err != nil {
			return nil, err
		}

		slog.Info("repository webhooks registered",
			"repository", key,
			"hook", registration.ActiveWebhook,
			"deleted", len(registration.DeletedWebhooks),
		)
	}

	return &TransitionResult{Success: true}, nil
}
