package github

import (
	"strconv"

	gh "github.com/google/go-github/v82/github"

	"github.com/ericfisherdev/vcsync/internal/domain/model"
)

// mapRepositoryInfo converts a go-github Repository to a descriptor. The
// vendor-native id is GitHub's numeric repository id, which survives renames.
func mapRepositoryInfo(repo *gh.Repository) model.RepositoryDescriptor {
	return model.RepositoryDescriptor{
		SourceID:    strconv.FormatInt(repo.GetID(), 10),
		Name:        repo.GetFullName(),
		URL:         repo.GetHTMLURL(),
		Description: repo.GetDescription(),
		Public:      !repo.GetPrivate(),
	}
}

// mapPullRequestInfo converts a go-github PullRequest to a descriptor.
func mapPullRequestInfo(pr *gh.PullRequest) model.PullRequestDescriptor {
	state := model.PRStateOpen
	if !pr.GetMergedAt().IsZero() {
		state = model.PRStateMerged
	} else if pr.GetState() == "closed" {
		state = model.PRStateClosed
	}

	return model.PullRequestDescriptor{
		SourceID:                 strconv.Itoa(pr.GetNumber()),
		SourceDisplayID:          strconv.Itoa(pr.GetNumber()),
		Title:                    pr.GetTitle(),
		Description:              pr.GetBody(),
		SourceState:              pr.GetState(),
		State:                    state,
		SourceCreatedAt:          pr.GetCreatedAt().Time,
		SourceLastUpdated:        pr.GetUpdatedAt().Time,
		SourceMergeStatus:        pr.GetMergeableState(),
		SourceMergedAt:           pr.GetMergedAt().Time,
		SourceClosedAt:           pr.GetClosedAt().Time,
		SourceBranch:             pr.GetHead().GetRef(),
		TargetBranch:             pr.GetBase().GetRef(),
		SourceRepositorySourceID: strconv.FormatInt(pr.GetHead().GetRepo().GetID(), 10),
		TargetRepositorySourceID: strconv.FormatInt(pr.GetBase().GetRepo().GetID(), 10),
		WebURL:                   pr.GetHTMLURL(),
	}
}
