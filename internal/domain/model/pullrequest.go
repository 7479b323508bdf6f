package model

import "time"

// PullRequest is a vendor pull request tracked against an owning Repository.
// (RepositoryKey, SourceID) is unique. Every reconciliation overwrites all
// mapped source fields with the latest vendor snapshot.
type PullRequest struct {
	Key             string // System-generated, stable across reconciliations.
	RepositoryKey   string
	SourceID        string // Vendor-native id, unique within the repository.
	SourceDisplayID string // Human-facing number, e.g. "42" or "!7".

	Title       string
	Description string

	SourceState string  // Verbatim vendor state string.
	State       PRState // Normalized open/merged/closed.

	SourceCreatedAt   time.Time
	SourceLastUpdated time.Time
	SourceMergeStatus string
	SourceMergedAt    time.Time
	SourceClosedAt    time.Time
	EndDate           time.Time

	SourceBranch             string
	TargetBranch             string
	SourceRepositorySourceID string
	TargetRepositorySourceID string
	WebURL                   string
}
