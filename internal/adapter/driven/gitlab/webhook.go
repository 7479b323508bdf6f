package gitlab

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/ericfisherdev/vcsync/internal/domain/model"
	"github.com/ericfisherdev/vcsync/internal/domain/port/driven"
)

// registeredEvents names the hook subscriptions this connector maintains.
var registeredEvents = []string{"push_events", "merge_requests_events"}

type hook struct {
	ID int `json:"id"`
}

// RegisterWebhooks deletes the previously registered project hooks and
// creates a fresh one pointing at the connector's ingress URL. A 404 on
// delete counts as already gone; any other failure fails the operation.
func (c *Connector) RegisterWebhooks(ctx context.Context, repoSourceID string, previousHookIDs []string) (*driven.WebhookRegistration, error) {
	deleted := make([]string, 0, len(previousHookIDs))
	for _, hookID := range previousHookIDs {
		path := fmt.Sprintf("/projects/%s/hooks/%s", url.PathEscape(repoSourceID), url.PathEscape(hookID))
		if _, err := c.do(ctx, "DELETE", path, nil, nil, nil); err != nil {
			var ve *driven.VendorError
			if !errors.As(err, &ve) || ve.StatusCode != 404 {
				return nil, err
			}
		}
		deleted = append(deleted, hookID)
	}

	payload := map[string]any{
		"url":                   c.webhookURL,
		"push_events":           true,
		"merge_requests_events": true,
	}
	if c.secret != "" {
		payload["token"] = c.secret
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal hook payload: %w", err)
	}

	var created hook
	path := fmt.Sprintf("/projects/%s/hooks", url.PathEscape(repoSourceID))
	if _, err := c.do(ctx, "POST", path, nil, bytes.NewReader(body), &created); err != nil {
		return nil, err
	}

	return &driven.WebhookRegistration{
		ActiveWebhook:    strconv.Itoa(created.ID),
		DeletedWebhooks:  deleted,
		RegisteredEvents: registeredEvents,
	}, nil
}

// pushPayload is the subset of a GitLab push webhook this adapter reads.
type pushPayload struct {
	ProjectID int `json:"project_id"`
	Project   struct {
		ID int `json:"id"`
	} `json:"project"`
}

// mrPayload is the subset of a GitLab merge request webhook this adapter reads.
type mrPayload struct {
	Project struct {
		ID int `json:"id"`
	} `json:"project"`
	ObjectAttributes mergeRequest `json:"object_attributes"`
}

// NormalizeWebhook maps a GitLab webhook to the canonical shape. GitLab
// names the event in the X-Gitlab-Event header ("Push Hook", "Merge Request
// Hook"); the payload's object_kind strings are accepted as well. Every
// other event type is dropped.
func (c *Connector) NormalizeWebhook(eventType string, payload []byte) (*driven.WebhookEvent, error) {
	switch eventType {
	case "Push Hook", "push":
		var event pushPayload
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("parse push payload: %w", err)
		}
		projectID := event.ProjectID
		if projectID == 0 {
			projectID = event.Project.ID
		}
		return &driven.WebhookEvent{
			Push: &model.RemoteRepositoryPush{
				ConnectorKey:       c.key,
				RepositorySourceID: strconv.Itoa(projectID),
			},
		}, nil

	case "Merge Request Hook", "merge_request":
		var event mrPayload
		if err := json.Unmarshal(payload, &event); err != nil {
			return nil, fmt.Errorf("parse merge_request payload: %w", err)
		}
		return &driven.WebhookEvent{
			PullRequest: &model.PullRequestUpsertRequested{
				ConnectorKey:       c.key,
				RepositorySourceID: strconv.Itoa(event.Project.ID),
				PullRequest:        mapPullRequestInfo(event.ObjectAttributes),
			},
		}, nil
	}

	return nil, nil
}
