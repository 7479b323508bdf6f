package github

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/vcsync/internal/domain/model"
	"github.com/ericfisherdev/vcsync/internal/domain/port/driven"
)

func newTestConnector(t *testing.T, handler http.Handler) *Connector {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	connector, err := NewConnectorWithHTTPClient(server.Client(), server.URL+"/", "conn-gh", "acme", "https://vcsync.example.test/webhooks/conn-gh")
	require.NoError(t, err)
	return connector
}

func TestConnector_Repositories_Paginates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/orgs/acme/repos", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Query().Get("page") {
		case "", "1":
			w.Header().Set("Link", fmt.Sprintf(`<%s?page=2>; rel="next"`, "https://api.example.test/orgs/acme/repos"))
			fmt.Fprint(w, `[{"id": 10001, "full_name": "acme/one", "html_url": "https://github.com/acme/one", "private": false, "owner": {"login": "acme"}, "name": "one"}]`)
		case "2":
			fmt.Fprint(w, `[{"id": 10002, "full_name": "acme/two", "html_url": "https://github.com/acme/two", "private": true, "owner": {"login": "acme"}, "name": "two"}]`)
		}
	})
	connector := newTestConnector(t, mux)
	ctx := context.Background()

	pager := connector.Repositories()

	first, ok, err := pager.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, first, 1)
	assert.Equal(t, "10001", first[0].SourceID)
	assert.Equal(t, "acme/one", first[0].Name)
	assert.True(t, first[0].Public)

	second, ok, err := pager.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, second, 1)
	assert.Equal(t, "10002", second[0].SourceID)
	assert.False(t, second[0].Public)

	_, ok, err = pager.Next(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConnector_PullRequests_SingleRecord(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repositories/10001", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id": 10001, "name": "one", "owner": {"login": "acme"}}`)
	})
	mux.HandleFunc("/repos/acme/one/pulls/7", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"number": 7,
			"title": "Add retry",
			"state": "closed",
			"merged_at": "2026-01-15T16:30:00Z",
			"created_at": "2026-01-10T09:00:00Z",
			"updated_at": "2026-01-15T16:30:00Z",
			"head": {"ref": "feature/retry", "repo": {"id": 10001}},
			"base": {"ref": "main", "repo": {"id": 10001}}
		}`)
	})
	connector := newTestConnector(t, mux)

	pager := connector.PullRequests("10001", "7")
	batch, ok, err := pager.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, batch, 1)

	pr := batch[0]
	assert.Equal(t, "7", pr.SourceID)
	assert.Equal(t, model.PRStateMerged, pr.State)
	assert.Equal(t, "feature/retry", pr.SourceBranch)
	assert.Equal(t, "main", pr.TargetBranch)

	_, ok, err = pager.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConnector_PullRequests_VendorFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repositories/10001", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message": "Server Error"}`, http.StatusInternalServerError)
	})
	connector := newTestConnector(t, mux)

	pager := connector.PullRequests("10001", "")
	_, _, err := pager.Next(context.Background())
	require.Error(t, err)

	var vendorError *driven.VendorError
	require.ErrorAs(t, err, &vendorError)
	assert.Equal(t, "github", vendorError.Vendor)
	assert.Equal(t, http.StatusInternalServerError, vendorError.StatusCode)
}

func TestMapRepositoryInfo(t *testing.T) {
	repo := &gh.Repository{
		ID:          gh.Ptr(int64(10001)),
		FullName:    gh.Ptr("acme/one"),
		HTMLURL:     gh.Ptr("https://github.com/acme/one"),
		Description: gh.Ptr("demo"),
		Private:     gh.Ptr(true),
	}

	descriptor := mapRepositoryInfo(repo)
	assert.Equal(t, "10001", descriptor.SourceID)
	assert.Equal(t, "acme/one", descriptor.Name)
	assert.Equal(t, "demo", descriptor.Description)
	assert.False(t, descriptor.Public)
}

func TestMapPullRequestInfo_States(t *testing.T) {
	mergedAt := time.Date(2026, 1, 15, 16, 30, 0, 0, time.UTC)

	open := &gh.PullRequest{Number: gh.Ptr(7), State: gh.Ptr("open")}
	assert.Equal(t, model.PRStateOpen, mapPullRequestInfo(open).State)

	closed := &gh.PullRequest{Number: gh.Ptr(7), State: gh.Ptr("closed")}
	assert.Equal(t, model.PRStateClosed, mapPullRequestInfo(closed).State)

	merged := &gh.PullRequest{
		Number:   gh.Ptr(7),
		State:    gh.Ptr("closed"),
		MergedAt: &gh.Timestamp{Time: mergedAt},
	}
	descriptor := mapPullRequestInfo(merged)
	assert.Equal(t, model.PRStateMerged, descriptor.State)
	assert.Equal(t, mergedAt, descriptor.SourceMergedAt)
}
