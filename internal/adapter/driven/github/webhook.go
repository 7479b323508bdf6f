package github

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/vcsync/internal/domain/model"
	"github.com/ericfisherdev/vcsync/internal/domain/port/driven"
)

// hookEvents are the vendor event types every registered hook subscribes to.
var hookEvents = []string{"push", "pull_request"}

// RegisterWebhooks deletes the previously registered hooks on the repository
// and creates a fresh one pointing at the connector's ingress URL. A hook
// that no longer exists upstream counts as deleted; any other failure fails
// the whole operation.
func (c *Connector) RegisterWebhooks(ctx context.Context, repoSourceID string, previousHookIDs []string) (*driven.WebhookRegistration, error) {
	owner, name, err := c.resolveRepo(ctx, repoSourceID)
	if err != nil {
		return nil, err
	}

	deleted := make([]string, 0, len(previousHookIDs))
	for _, hookID := range previousHookIDs {
		id, err := strconv.ParseInt(hookID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("github hook id %q: %w", hookID, err)
		}
		resp, err := c.gh.Repositories.DeleteHook(ctx, owner, name, id)
		if err != nil && (resp == nil || resp.StatusCode != 404) {
			return nil, vendorErr("delete hook", resp, err)
		}
		deleted = append(deleted, hookID)
	}

	hook := &gh.Hook{
		Events: hookEvents,
		Active: gh.Ptr(true),
		Config: &gh.HookConfig{
			URL:         gh.Ptr(c.webhookURL),
			ContentType: gh.Ptr("json"),
		},
	}
	if c.secret != "" {
		hook.Config.Secret = gh.Ptr(c.secret)
	}

	created, resp, err := c.gh.Repositories.CreateHook(ctx, owner, name, hook)
	if err != nil {
		return nil, vendorErr("create hook", resp, err)
	}

	return &driven.WebhookRegistration{
		ActiveWebhook:    strconv.FormatInt(created.GetID(), 10),
		DeletedWebhooks:  deleted,
		RegisteredEvents: hookEvents,
	}, nil
}

// NormalizeWebhook maps a GitHub webhook delivery to the canonical shape.
// "push" resolves to a repository push; "pull_request" to a single-PR upsert
// request. Every other event type is dropped.
func (c *Connector) NormalizeWebhook(eventType string, payload []byte) (*driven.WebhookEvent, error) {
	switch eventType {
	case "push":
		var event gh.PushEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("parse push payload: %w", err)
		}
		return &driven.WebhookEvent{
			Push: &model.RemoteRepositoryPush{
				ConnectorKey:       c.key,
				RepositorySourceID: strconv.FormatInt(event.GetRepo().GetID(), 10),
			},
		}, nil

	case "pull_request":
		var event gh.PullRequestEvent
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("parse pull_request payload: %w", err)
		}
		if event.GetPullRequest() == nil {
			return nil, fmt.Errorf("pull_request payload missing pull request")
		}
		return &driven.WebhookEvent{
			PullRequest: &model.PullRequestUpsertRequested{
				ConnectorKey:       c.key,
				RepositorySourceID: strconv.FormatInt(event.GetRepo().GetID(), 10),
				PullRequest:        mapPullRequestInfo(event.GetPullRequest()),
			},
		}, nil
	}

	return nil, nil
}
