package application

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/vcsync/internal/domain/model"
	"github.com/ericfisherdev/vcsync/internal/domain/port/driven"
)

func TestWebhookService_HandleDelivery_Push(t *testing.T) {
	publisher := &capturePublisher{}
	connector := &fakeConnector{
		webhookEvent: &driven.WebhookEvent{
			Push: &model.RemoteRepositoryPush{ConnectorKey: "conn-a", RepositorySourceID: "10002"},
		},
	}
	resolver := &fakeResolver{connectors: map[string]driven.Connector{"conn-a": connector}}
	service := NewWebhookService(resolver, publisher)

	published, err := service.HandleDelivery(context.Background(), "conn-a", "push", []byte(`{}`))
	require.NoError(t, err)
	assert.True(t, published)

	require.Len(t, publisher.messages, 1)
	msg := publisher.messages[0]
	assert.Equal(t, model.TopicSync, msg.Topic)
	assert.Equal(t, model.MsgRemoteRepositoryPushEvent, msg.Type)

	var payload model.RemoteRepositoryPush
	require.NoError(t, json.Unmarshal(msg.Body, &payload))
	assert.Equal(t, "conn-a", payload.ConnectorKey)
	assert.Equal(t, "10002", payload.RepositorySourceID)
}

func TestWebhookService_HandleDelivery_PullRequest(t *testing.T) {
	publisher := &capturePublisher{}
	connector := &fakeConnector{
		webhookEvent: &driven.WebhookEvent{
			PullRequest: &model.PullRequestUpsertRequested{
				ConnectorKey:       "conn-a",
				RepositorySourceID: "10002",
				PullRequest:        model.PullRequestDescriptor{SourceID: "501", Title: "Add retry"},
			},
		},
	}
	resolver := &fakeResolver{connectors: map[string]driven.Connector{"conn-a": connector}}
	service := NewWebhookService(resolver, publisher)

	published, err := service.HandleDelivery(context.Background(), "conn-a", "pull_request", []byte(`{}`))
	require.NoError(t, err)
	assert.True(t, published)

	require.Len(t, publisher.messages, 1)
	msg := publisher.messages[0]
	assert.Equal(t, model.TopicSync, msg.Topic)
	assert.Equal(t, model.MsgPullRequestUpsertRequested, msg.Type)

	var payload model.PullRequestUpsertRequested
	require.NoError(t, json.Unmarshal(msg.Body, &payload))
	assert.Equal(t, "501", payload.PullRequest.SourceID)
}

func TestWebhookService_HandleDelivery_UnrecognizedEventDropped(t *testing.T) {
	publisher := &capturePublisher{}
	resolver := &fakeResolver{connectors: map[string]driven.Connector{"conn-a": &fakeConnector{}}}
	service := NewWebhookService(resolver, publisher)

	published, err := service.HandleDelivery(context.Background(), "conn-a", "issue_comment", []byte(`{}`))
	require.NoError(t, err)
	assert.False(t, published)
	assert.Empty(t, publisher.messages)
}

func TestWebhookService_HandleDelivery_UnknownConnector(t *testing.T) {
	service := NewWebhookService(&fakeResolver{}, &capturePublisher{})

	published, err := service.HandleDelivery(context.Background(), "missing", "push", []byte(`{}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, driven.ErrConnectorNotFound)
	assert.False(t, published)
}
