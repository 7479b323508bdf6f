package bitbucket

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/vcsync/internal/domain/model"
	"github.com/ericfisherdev/vcsync/internal/domain/port/driven"
)

func newTestConnector(t *testing.T, handler http.Handler) *Connector {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewConnector("conn-bb", "token-test", "acme", server.URL, "https://vcsync.example.test/webhooks/conn-bb")
}

func TestConnector_Repositories_FollowsNextLink(t *testing.T) {
	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/repositories/acme", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `{"values": [{"uuid": "{bb-2}", "full_name": "acme/two", "is_private": true}]}`)
			return
		}
		fmt.Fprintf(w, `{
			"values": [{"uuid": "{bb-1}", "full_name": "acme/one", "is_private": false, "links": {"html": {"href": "https://bitbucket.org/acme/one"}}}],
			"next": "%s/repositories/acme?page=2"
		}`, server.URL)
	})
	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	connector := NewConnector("conn-bb", "token-test", "acme", server.URL, "https://vcsync.example.test/webhooks/conn-bb")
	ctx := context.Background()

	pager := connector.Repositories()

	first, ok, err := pager.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, first, 1)
	assert.Equal(t, "{bb-1}", first[0].SourceID)
	assert.Equal(t, "https://bitbucket.org/acme/one", first[0].URL)
	assert.True(t, first[0].Public)

	second, ok, err := pager.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, second, 1)
	assert.Equal(t, "{bb-2}", second[0].SourceID)
	assert.False(t, second[0].Public)

	_, ok, err = pager.Next(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConnector_PullRequests_SingleRecord(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repositories/acme/%7Bbb-1%7D/pullrequests/7", r.URL.EscapedPath())
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"id": 7,
			"title": "Add retry",
			"state": "MERGED",
			"created_on": "2026-01-10T09:00:00Z",
			"updated_on": "2026-01-15T16:30:00Z",
			"source": {"branch": {"name": "feature/retry"}, "repository": {"uuid": "{bb-1}"}},
			"destination": {"branch": {"name": "main"}, "repository": {"uuid": "{bb-1}"}}
		}`)
	})
	connector := newTestConnector(t, handler)

	pager := connector.PullRequests("{bb-1}", "7")
	batch, ok, err := pager.Next(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, batch, 1)

	pr := batch[0]
	assert.Equal(t, "7", pr.SourceID)
	assert.Equal(t, model.PRStateMerged, pr.State)
	assert.Equal(t, "feature/retry", pr.SourceBranch)

	_, ok, err = pager.Next(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConnector_VendorError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repositories/acme", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error": {"message": "Access denied"}}`, http.StatusForbidden)
	})
	connector := newTestConnector(t, mux)

	_, _, err := connector.Repositories().Next(context.Background())
	require.Error(t, err)

	var vendorError *driven.VendorError
	require.ErrorAs(t, err, &vendorError)
	assert.Equal(t, "bitbucket", vendorError.Vendor)
	assert.Equal(t, http.StatusForbidden, vendorError.StatusCode)
}

func TestMapPullRequestInfo_SynthesizedTimestamps(t *testing.T) {
	updated := time.Date(2026, 1, 15, 16, 30, 0, 0, time.UTC)

	merged := mapPullRequestInfo(pullRequest{ID: 7, State: "MERGED", UpdatedOn: updated})
	assert.Equal(t, model.PRStateMerged, merged.State)
	assert.Equal(t, updated, merged.SourceMergedAt)
	assert.Equal(t, updated, merged.SourceClosedAt)

	declined := mapPullRequestInfo(pullRequest{ID: 8, State: "DECLINED", UpdatedOn: updated})
	assert.Equal(t, model.PRStateClosed, declined.State)
	assert.True(t, declined.SourceMergedAt.IsZero())
	assert.Equal(t, updated, declined.SourceClosedAt)

	open := mapPullRequestInfo(pullRequest{ID: 9, State: "OPEN", UpdatedOn: updated})
	assert.Equal(t, model.PRStateOpen, open.State)
	assert.True(t, open.SourceMergedAt.IsZero())
	assert.True(t, open.SourceClosedAt.IsZero())
}
