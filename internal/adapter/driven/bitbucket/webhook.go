package bitbucket

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/ericfisherdev/vcsync/internal/domain/model"
	"github.com/ericfisherdev/vcsync/internal/domain/port/driven"
)

// hookEvents are the vendor event keys every registered hook subscribes to.
var hookEvents = []string{
	"repo:push",
	"pullrequest:created",
	"pullrequest:updated",
	"pullrequest:fulfilled",
	"pullrequest:rejected",
}

type hook struct {
	UUID string `json:"uuid"`
}

// RegisterWebhooks deletes the previously registered hooks on the repository
// and creates a fresh one pointing at the connector's ingress URL. A 404 on
// delete counts as already gone; any other failure fails the operation.
func (c *Connector) RegisterWebhooks(ctx context.Context, repoSourceID string, previousHookIDs []string) (*driven.WebhookRegistration, error) {
	repoPath := fmt.Sprintf("%s/repositories/%s/%s/hooks",
		c.baseURL, url.PathEscape(c.workspace), url.PathEscape(repoSourceID))

	deleted := make([]string, 0, len(previousHookIDs))
	for _, hookID := range previousHookIDs {
		if err := c.doURL(ctx, "DELETE", repoPath+"/"+url.PathEscape(hookID), nil, nil); err != nil {
			var ve *driven.VendorError
			if !errors.As(err, &ve) || ve.StatusCode != 404 {
				return nil, err
			}
		}
		deleted = append(deleted, hookID)
	}

	payload := map[string]any{
		"description": "vcsync",
		"url":         c.webhookURL,
		"active":      true,
		"events":      hookEvents,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal hook payload: %w", err)
	}

	var created hook
	if err := c.doURL(ctx, "POST", repoPath, bytes.NewReader(body), &created); err != nil {
		return nil, err
	}

	return &driven.WebhookRegistration{
		ActiveWebhook:    created.UUID,
		DeletedWebhooks:  deleted,
		RegisteredEvents: hookEvents,
	}, nil
}

// webhookPayload is the subset of a Bitbucket webhook this adapter reads.
// Push and pull request payloads share the repository envelope.
type webhookPayload struct {
	Repository  repository  `json:"repository"`
	PullRequest pullRequest `json:"pullrequest"`
}

// NormalizeWebhook maps a Bitbucket webhook to the canonical shape.
// "repo:push" resolves to a repository push; the whole "pullrequest:*"
// family resolves to a single-PR upsert request. Every other event key is
// dropped.
func (c *Connector) NormalizeWebhook(eventType string, payload []byte) (*driven.WebhookEvent, error) {
	switch {
	case eventType == "repo:push":
		var event webhookPayload
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("parse repo:push payload: %w", err)
		}
		return &driven.WebhookEvent{
			Push: &model.RemoteRepositoryPush{
				ConnectorKey:       c.key,
				RepositorySourceID: event.Repository.UUID,
			},
		}, nil

	case strings.HasPrefix(eventType, "pullrequest:"):
		var event webhookPayload
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("parse %s payload: %w", eventType, err)
		}
		if event.PullRequest.ID == 0 {
			return nil, fmt.Errorf("%s payload missing pull request", eventType)
		}
		return &driven.WebhookEvent{
			PullRequest: &model.PullRequestUpsertRequested{
				ConnectorKey:       c.key,
				RepositorySourceID: event.Repository.UUID,
				PullRequest:        mapPullRequestInfo(event.PullRequest),
			},
		}, nil
	}

	return nil, nil
}
