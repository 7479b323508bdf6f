package model

// Topics. Each dispatcher subscriber owns exactly one input topic; handlers
// publish to the event topics as a side effect of successful handling.
const (
	TopicSync              = "vcsync.sync"
	TopicRepositoryEvents  = "vcsync.repositories"
	TopicPullRequestEvents = "vcsync.pull-requests"
)

// Message type strings. The envelope's Type field carries one of these and
// selects the payload shape for deserialization dispatch.
const (
	// Commands.
	MsgRefreshConnectorRepositories          = "RefreshConnectorRepositories"
	MsgSyncPullRequests                      = "SyncPullRequests"
	MsgRegisterRepositoriesConnectorWebhooks = "RegisterRepositoriesConnectorWebhooks"
	MsgSetRepositoryImportState              = "SetRepositoryImportState"

	// Events.
	MsgRemoteRepositoryPushEvent  = "RemoteRepositoryPushEvent"
	MsgPullRequestUpsertRequested = "PullRequestUpsertRequested"
	MsgRepositoryCreated          = "RepositoryCreated"
	MsgRepositoryUpdated          = "RepositoryUpdated"
	MsgRepositoriesImported       = "RepositoriesImported"
	MsgPullRequestsCreated        = "PullRequestsCreated"
	MsgPullRequestsUpdated        = "PullRequestsUpdated"
)

// RefreshConnectorRepositories asks for a full repository refresh of one
// connector within an organization.
type RefreshConnectorRepositories struct {
	OrganizationKey string `json:"organization_key"`
	ConnectorKey    string `json:"connector_key"`
}

// SyncPullRequests asks for a pull-request backlog sync of one repository.
type SyncPullRequests struct {
	RepositoryKey string `json:"repository_key"`
}

// RegisterRepositoriesConnectorWebhooks asks the connector to (re)register
// push/PR webhooks for the listed repositories.
type RegisterRepositoriesConnectorWebhooks struct {
	ConnectorKey   string   `json:"connector_key"`
	RepositoryKeys []string `json:"repository_keys"`
}

// SetRepositoryImportState is the operator command moving a repository
// through its import lifecycle. The transition is validated against the
// state machine before it is applied.
type SetRepositoryImportState struct {
	RepositoryKey string      `json:"repository_key"`
	ImportState   ImportState `json:"import_state"`
}

// RemoteRepositoryPush is the canonical shape of a vendor push webhook.
type RemoteRepositoryPush struct {
	ConnectorKey       string `json:"connector_key"`
	RepositorySourceID string `json:"repository_source_id"`
}

// PullRequestUpsertRequested is the canonical shape of a vendor pull-request
// webhook: one already-mapped descriptor for one repository.
type PullRequestUpsertRequested struct {
	ConnectorKey       string                `json:"connector_key"`
	RepositorySourceID string                `json:"repository_source_id"`
	PullRequest        PullRequestDescriptor `json:"pull_request"`
}

// RepositoryEvent is the payload of RepositoryCreated and RepositoryUpdated,
// one event per reconciled repository row.
type RepositoryEvent struct {
	Key             string          `json:"key"`
	ConnectorKey    string          `json:"connector_key"`
	OrganizationKey string          `json:"organization_key"`
	SourceID        string          `json:"source_id"`
	IntegrationType IntegrationType `json:"integration_type"`
	Name            string          `json:"name"`
	URL             string          `json:"url"`
	Description     string          `json:"description"`
	Public          bool            `json:"public"`
}

// RepositoriesImported is published once a connector refresh completes,
// carrying every repository key observed during the refresh.
type RepositoriesImported struct {
	OrganizationKey string   `json:"organization_key"`
	ConnectorKey    string   `json:"connector_key"`
	RepositoryKeys  []string `json:"repository_keys"`
}

// PullRequestRecord is one reconciled pull request inside a
// PullRequestsCreated/PullRequestsUpdated event.
type PullRequestRecord struct {
	Key           string                `json:"key"`
	RepositoryKey string                `json:"repository_key"`
	IsNew         bool                  `json:"is_new"`
	PullRequest   PullRequestDescriptor `json:"pull_request"`
}

// PullRequestsEvent is the payload of PullRequestsCreated and
// PullRequestsUpdated: one event per reconciliation call.
type PullRequestsEvent struct {
	RepositoryKey string              `json:"repository_key"`
	PullRequests  []PullRequestRecord `json:"pull_requests"`
}
