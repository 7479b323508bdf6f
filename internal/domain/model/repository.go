// Package model holds the domain entities reconciled by vcsync.
package model

import "time"

// Repository is a vendor repository tracked in the local system of record.
// (ConnectorKey, SourceID) is globally unique; at most one row per
// (OrganizationKey, SourceID) pair is canonical across connectors.
type Repository struct {
	Key             string // System-generated, stable across reconciliations.
	ConnectorKey    string
	OrganizationKey string
	SourceID        string // Vendor-native repository id.
	IntegrationType IntegrationType
	Name            string
	URL             string
	Description     string
	Public          bool
	Polling         bool
	ImportState     ImportState
	Webhooks        WebhookInfo
	CommitCount     int64
	LastChecked     time.Time
	LastImported    time.Time
}

// WebhookInfo is the webhook registration bookkeeping persisted with each
// repository. Fields are accessed by name, so it is a typed struct rather
// than an opaque vendor metadata map.
type WebhookInfo struct {
	ActiveWebhook    string   `json:"active_webhook,omitempty"`
	InactiveWebhooks []string `json:"inactive_webhooks,omitempty"`
	RegisteredEvents []string `json:"registered_events,omitempty"`
}

// KnownHookIDs returns every hook id this repository has ever registered,
// active first. Used when re-registering to clean up stale vendor hooks.
func (w WebhookInfo) KnownHookIDs() []string {
	ids := make([]string, 0, len(w.InactiveWebhooks)+1)
	if w.ActiveWebhook != "" {
		ids = append(ids, w.ActiveWebhook)
	}
	ids = append(ids, w.InactiveWebhooks...)
	return ids
}
