package driven

import (
	"context"

	"github.com/ericfisherdev/vcsync/internal/domain/model"
)

// RepositoryPager is a finite, forward-only sequence of repository descriptor
// batches, one batch per vendor page. Next returns ok=false once the vendor
// signals no more pages. Callers must not assume batch size, and may stop
// iterating at any point without leaking resources; restarting means asking
// the connector for a fresh pager.
type RepositoryPager interface {
	Next(ctx context.Context) (batch []model.RepositoryDescriptor, ok bool, err error)
}

// PullRequestPager is the pull-request counterpart of RepositoryPager.
type PullRequestPager interface {
	Next(ctx context.Context) (batch []model.PullRequestDescriptor, ok bool, err error)
}

// WebhookRegistration reports the outcome of registering repository webhooks
// with the vendor.
type WebhookRegistration struct {
	ActiveWebhook    string
	DeletedWebhooks  []string
	RegisteredEvents []string
}

// WebhookEvent is the canonical result of normalizing one vendor webhook
// payload. Exactly one field is set; both nil means the event type is not
// one this system reacts to and the payload was dropped.
type WebhookEvent struct {
	Push        *model.RemoteRepositoryPush
	PullRequest *model.PullRequestUpsertRequested
}

// Connector is the vendor-agnostic capability contract every provider
// adapter implements: one authenticated handle to one vendor account.
type Connector interface {
	IntegrationType() model.IntegrationType

	// Repositories returns a pager over every repository visible to the
	// connector account.
	Repositories() RepositoryPager

	// PullRequests returns a pager over pull requests of one repository.
	// An empty prSourceID fetches the backlog bounded by a vendor-specific
	// recency window; a non-empty one fetches exactly that record.
	PullRequests(repoSourceID, prSourceID string) PullRequestPager

	// RegisterWebhooks deletes the previously registered hooks and creates a
	// fresh one pointing at this system's ingress. Any failure fails the
	// whole operation; no partial registration is left silently dangling.
	RegisterWebhooks(ctx context.Context, repoSourceID string, previousHookIDs []string) (*WebhookRegistration, error)

	// NormalizeWebhook maps a vendor webhook payload and event-type string to
	// the canonical shape. Unrecognized event types return nil, nil.
	NormalizeWebhook(eventType string, payload []byte) (*WebhookEvent, error)
}

// ConnectorResolver resolves a connector key to the adapter holding that
// account's credentials. Returns ErrConnectorNotFound for unknown keys.
type ConnectorResolver interface {
	Resolve(ctx context.Context, connectorKey string) (Connector, error)
}
