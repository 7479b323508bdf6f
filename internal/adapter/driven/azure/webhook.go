package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ericfisherdev/vcsync/internal/domain/model"
	"github.com/ericfisherdev/vcsync/internal/domain/port/driven"
)

// hookEventTypes are the service-hook event types this connector subscribes
// to. Azure requires one subscription per event type.
var hookEventTypes = []string{
	"git.push",
	"git.pullrequest.created",
	"git.pullrequest.updated",
	"git.pullrequest.merged",
}

type subscription struct {
	ID string `json:"id"`
}

// RegisterWebhooks deletes the previously registered service-hook
// subscriptions and creates fresh ones pointing at the connector's ingress
// URL, one per event type. Because Azure subscriptions come in a set, the
// active webhook id is the comma-joined list of subscription ids. A 404 on
// delete counts as already gone; any other failure fails the operation.
func (c *Connector) RegisterWebhooks(ctx context.Context, repoSourceID string, previousHookIDs []string) (*driven.WebhookRegistration, error) {
	deleted := make([]string, 0, len(previousHookIDs))
	for _, joined := range previousHookIDs {
		for _, hookID := range strings.Split(joined, ",") {
			if hookID == "" {
				continue
			}
			if err := c.do(ctx, "DELETE", "/_apis/hooks/subscriptions/"+hookID, nil, nil, nil); err != nil {
				var ve *driven.VendorError
				if !errors.As(err, &ve) || ve.StatusCode != 404 {
					return nil, err
				}
			}
			deleted = append(deleted, hookID)
		}
	}

	created := make([]string, 0, len(hookEventTypes))
	for _, eventType := range hookEventTypes {
		payload := map[string]any{
			"publisherId":      "tfs",
			"eventType":        eventType,
			"consumerId":       "webHooks",
			"consumerActionId": "httpRequest",
			"publisherInputs":  map[string]string{"repository": repoSourceID},
			"consumerInputs":   map[string]string{"url": c.webhookURL},
		}
		body, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal subscription payload: %w", err)
		}

		var sub subscription
		if err := c.do(ctx, "POST", "/_apis/hooks/subscriptions", nil, bytes.NewReader(body), &sub); err != nil {
			return nil, err
		}
		created = append(created, sub.ID)
	}

	return &driven.WebhookRegistration{
		ActiveWebhook:    strings.Join(created, ","),
		DeletedWebhooks:  deleted,
		RegisteredEvents: hookEventTypes,
	}, nil
}

// pushResource is the resource of a git.push service-hook event.
type pushResource struct {
	Repository struct {
		ID string `json:"id"`
	} `json:"repository"`
}

// webhookEnvelope is the service-hook delivery envelope. The eventType is
// repeated inside the body; the resource shape depends on it.
type webhookEnvelope struct {
	EventType string          `json:"eventType"`
	Resource  json.RawMessage `json:"resource"`
}

// NormalizeWebhook maps an Azure service-hook delivery to the canonical
// shape. "git.push" resolves to a repository push; the "git.pullrequest.*"
// family resolves to a single-PR upsert request. Every other event type is
// dropped. An empty eventType falls back to the envelope's own field.
func (c *Connector) NormalizeWebhook(eventType string, payload []byte) (*driven.WebhookEvent, error) {
	var envelope webhookEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return nil, fmt.Errorf("parse service hook payload: %w", err)
	}
	if eventType == "" {
		eventType = envelope.EventType
	}

	switch {
	case eventType == "git.push":
		var resource pushResource
		if err := json.Unmarshal(envelope.Resource, &resource); err != nil {
			return nil, fmt.Errorf("parse git.push resource: %w", err)
		}
		return &driven.WebhookEvent{
			Push: &model.RemoteRepositoryPush{
				ConnectorKey:       c.key,
				RepositorySourceID: resource.Repository.ID,
			},
		}, nil

	case strings.HasPrefix(eventType, "git.pullrequest."):
		var pr pullRequest
		if err := json.Unmarshal(envelope.Resource, &pr); err != nil {
			return nil, fmt.Errorf("parse %s resource: %w", eventType, err)
		}
		if pr.PullRequestID == 0 {
			return nil, fmt.Errorf("%s resource missing pull request", eventType)
		}
		return &driven.WebhookEvent{
			PullRequest: &model.PullRequestUpsertRequested{
				ConnectorKey:       c.key,
				RepositorySourceID: pr.Repository.ID,
				PullRequest:        mapPullRequestInfo(pr),
			},
		}, nil
	}

	return nil, nil
}
