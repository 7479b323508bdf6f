package model

// IntegrationType identifies the version-control vendor a connector talks to.
type IntegrationType string

const (
	IntegrationGitHub    IntegrationType = "github"
	IntegrationGitLab    IntegrationType = "gitlab"
	IntegrationBitbucket IntegrationType = "bitbucket"
	IntegrationAzure     IntegrationType = "azure"
)

// PRState is the normalized state of a pull request. The vendor's verbatim
// state string is preserved separately in PullRequest.SourceState.
type PRState string

const (
	PRStateOpen   PRState = "open"
	PRStateMerged PRState = "merged"
	PRStateClosed PRState = "closed"
)
