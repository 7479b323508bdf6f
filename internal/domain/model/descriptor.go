package model

import "time"

// RepositoryDescriptor is the vendor-independent shape a connector yields for
// one vendor repository. Descriptors carry no local identity; reconciliation
// assigns or resolves the stable key.
type RepositoryDescriptor struct {
	SourceID    string `json:"source_id"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	Description string `json:"description"`
	Public      bool   `json:"public"`
}

// PullRequestDescriptor is the vendor-independent shape a connector yields
// for one vendor pull request.
type PullRequestDescriptor struct {
	SourceID        string `json:"source_id"`
	SourceDisplayID string `json:"source_display_id"`

	Title       string `json:"title"`
	Description string `json:"description"`

	SourceState string  `json:"source_state"`
	State       PRState `json:"state"`

	SourceCreatedAt   time.Time `json:"source_created_at"`
	SourceLastUpdated time.Time `json:"source_last_updated"`
	SourceMergeStatus string    `json:"source_merge_status"`
	SourceMergedAt    time.Time `json:"source_merged_at"`
	SourceClosedAt    time.Time `json:"source_closed_at"`

	SourceBranch             string `json:"source_branch"`
	TargetBranch             string `json:"target_branch"`
	SourceRepositorySourceID string `json:"source_repository_source_id"`
	TargetRepositorySourceID string `json:"target_repository_source_id"`
	WebURL                   string `json:"web_url"`
}

// Apply copies every mapped descriptor field onto pr. The latest vendor
// snapshot always wins; there is no field-level merge.
func (d PullRequestDescriptor) Apply(pr *PullRequest) {
	pr.SourceID = d.SourceID
	pr.SourceDisplayID = d.SourceDisplayID
	pr.Title = d.Title
	pr.Description = d.Description
	pr.SourceState = d.SourceState
	pr.State = d.State
	pr.SourceCreatedAt = d.SourceCreatedAt
	pr.SourceLastUpdated = d.SourceLastUpdated
	pr.SourceMergeStatus = d.SourceMergeStatus
	pr.SourceMergedAt = d.SourceMergedAt
	pr.SourceClosedAt = d.SourceClosedAt
	pr.EndDate = endDate(d)
	pr.SourceBranch = d.SourceBranch
	pr.TargetBranch = d.TargetBranch
	pr.SourceRepositorySourceID = d.SourceRepositorySourceID
	pr.TargetRepositorySourceID = d.TargetRepositorySourceID
	pr.WebURL = d.WebURL
}

// endDate derives the terminal timestamp for a pull request: merge time when
// merged, close time when closed, zero while open.
func endDate(d PullRequestDescriptor) time.Time {
	switch d.State {
	case PRStateMerged:
		if !d.SourceMergedAt.IsZero() {
			return d.SourceMergedAt
		}
		return d.SourceClosedAt
	case PRStateClosed:
		return d.SourceClosedAt
	}
	return time.Time{}
}
