package application

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ericfisherdev/vcsync/internal/domain/model"
	"github.com/ericfisherdev/vcsync/internal/domain/port/driven"
)

// newMessage builds a bus message with a JSON-encoded payload.
func newMessage(topic, messageType string, payload any) (driven.Message, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return driven.Message{}, fmt.Errorf("marshal %s payload: %w", messageType, err)
	}
	return driven.Message{Topic: topic, Type: messageType, Body: body}, nil
}

// publishRepositoryEvents emits one RepositoryCreated or RepositoryUpdated
// event per reconciled row, so downstream consumers can react per entity.
func publishRepositoryEvents(ctx context.Context, publisher driven.Publisher, records []RepositoryRecord) error {
	for _, record := range records {
		messageType := model.MsgRepositoryUpdated
		if record.IsNew {
			messageType = model.MsgRepositoryCreated
		}

		repo := record.Repository
		msg, err := newMessage(model.TopicRepositoryEvents, messageType, model.RepositoryEvent{
			Key:             record.Key,
			ConnectorKey:    repo.ConnectorKey,
			OrganizationKey: repo.OrganizationKey,
			SourceID:        repo.SourceID,
			IntegrationType: repo.IntegrationType,
			Name:            repo.Name,
			URL:             repo.URL,
			Description:     repo.Description,
			Public:          repo.Public,
		})
		if err != nil {
			return err
		}
		if err := publisher.Publish(ctx, msg); err != nil {
			return fmt.Errorf("publish %s for %s: %w", messageType, record.Key, err)
		}
	}
	return nil
}

// publishPullRequestsEvent emits a single PullRequestsCreated or
// PullRequestsUpdated event carrying every reconciled row. The created vs.
// updated choice is keyed off the FIRST row's novelty: a mixed batch is
// published whole under the first row's event type. Callers that care about
// mixed semantics must submit homogeneous batches. Preserved as documented
// contract behavior, not corrected here.
func publishPullRequestsEvent(ctx context.Context, publisher driven.Publisher, repositoryKey string, records []model.PullRequestRecord) error {
	if len(records) == 0 {
		return nil
	}

	messageType := model.MsgPullRequestsUpdated
	if records[0].IsNew {
		messageType = model.MsgPullRequestsCreated
	}

	msg, err := newMessage(model.TopicPullRequestEvents, messageType, model.PullRequestsEvent{
		RepositoryKey: repositoryKey,
		PullRequests:  records,
	})
	if err != nil {
		return err
	}
	if err := publisher.Publish(ctx, msg); err != nil {
		return fmt.Errorf("publish %s for %s: %w", messageType, repositoryKey, err)
	}
	return nil
}
