package application

import (
	"context"
	"log/slog"

	"github.com/ericfisherdev/vcsync/internal/domain/model"
	"github.com/ericfisherdev/vcsync/internal/domain/port/driven"
)

// WebhookService turns raw vendor webhook deliveries into canonical bus
// messages. It sits between the webhook HTTP endpoint (out of scope) and
// the dispatch router: the endpoint hands over the connector key, the
// vendor's event-type string, and the raw payload.
type WebhookService struct {
	connectors driven.ConnectorResolver
	publisher  driven.Publisher
}

// NewWebhookService creates a WebhookService.
func NewWebhookService(connectors driven.ConnectorResolver, publisher driven.Publisher) *WebhookService {
	return &WebhookService{connectors: connectors, publisher: publisher}
}

// HandleDelivery normalizes one vendor webhook delivery and publishes the
// canonical message on the sync topic. Event types the vendor adapter does
// not recognize are dropped silently. Returns whether a message was
// published.
func (s *WebhookService) HandleDelivery(ctx context.Context, connectorKey, eventType string, payload []byte) (bool, error) {
	connector, err := s.connectors.Resolve(ctx, connectorKey)
	if err != nil {
		return false, err
	}

	event, err := connector.NormalizeWebhook(eventType, payload)
	if err != nil {
		return false, err
	}
	if event == nil {
		slog.Debug("webhook event dropped", "connector", connectorKey, "event_type", eventType)
		return false, nil
	}

	var msg driven.Message
	switch {
	case event.Push != nil:
		msg, err = newMessage(model.TopicSync, model.MsgRemoteRepositoryPushEvent, event.Push)
	case event.PullRequest != nil:
		msg, err = newMessage(model.TopicSync, model.MsgPullRequestUpsertRequested, event.PullRequest)
	default:
		slog.Debug("webhook event dropped", "connector", connectorKey, "event_type", eventType)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := s.publisher.Publish(ctx, msg); err != nil {
		return false, err
	}
	return true, nil
}
