package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tgmirror/internal/mirror"
)

type fakeRunner struct {
	events  []mirror.Event
	started chan struct{}
	release chan struct{}
	full    []bool
}

func (f *fakeRunner) Run(_ context.Context, full bool) <-chan mirror.Event {
	f.full = append(f.full, full)
	ch := make(chan mirror.Event, len(f.events))
	go func() {
		defer close(ch)
		if f.started != nil {
			close(f.started)
		}
		if f.release != nil {
			<-f.release
		}
		for _, evt := range f.events {
			ch <- evt
		}
	}()
	return ch
}

type fakeSearcher struct {
	results []mirror.SearchResult
	err     error
	queries []string
}

func (f *fakeSearcher) Find(_ context.Context, text string) ([]mirror.SearchResult, error) {
	f.queries = append(f.queries, text)
	return f.results, f.err
}

func newTestServer(runner Runner, searcher Searcher) *httptest.Server {
	return httptest.NewServer(NewServer(runner, searcher, nil).Handler())
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&fakeRunner{}, &fakeSearcher{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSyncStreamsProgress(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{events: []mirror.Event{
		{CurrentIDs: []int64{101, 103}, SkippedIDs: []int64{102}, FirstID: 101, LastID: 113, TotalPersisted: 2},
		{TotalPersisted: 2},
	}}
	srv := newTestServer(runner, &fakeSearcher{})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/sync", "", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/x-ndjson", resp.Header.Get("Content-Type"))
	assert.Equal(t, []bool{false}, runner.full)

	scanner := bufio.NewScanner(resp.Body)
	var lines []mirror.Event
	for scanner.Scan() {
		var evt mirror.Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &evt))
		lines = append(lines, evt)
	}
	require.NoError(t, scanner.Err())
	require.Len(t, lines, 2)
	assert.Equal(t, []int64{101, 103}, lines[0].CurrentIDs)
	assert.Equal(t, []int64{102}, lines[0].SkippedIDs)
}

func TestSyncFullFlag(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{}
	srv := newTestServer(runner, &fakeSearcher{})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/sync/full", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, []bool{true}, runner.full)
}

func TestSyncRejectsConcurrentPass(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	srv := newTestServer(runner, &fakeSearcher{})
	defer srv.Close()

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		resp, err := http.Post(srv.URL+"/v1/sync", "", nil)
		if err == nil {
			resp.Body.Close()
		}
	}()

	select {
	case <-runner.started:
	case <-time.After(5 * time.Second):
		t.Fatal("first sync never started")
	}

	resp, err := http.Post(srv.URL+"/v1/sync", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	close(runner.release)
	<-firstDone
}

func TestSearchRequiresQuery(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&fakeRunner{}, &fakeSearcher{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/search")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSearchReturnsResults(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{results: []mirror.SearchResult{{
		SourceID: 101,
		Text:     "market update",
		PostURL:  "https://t.me/newschan/101",
	}}}
	srv := newTestServer(&fakeRunner{}, searcher)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/search?q=market")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json"))
	assert.Equal(t, []string{"market"}, searcher.queries)

	var results []mirror.SearchResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&results))
	require.Len(t, results, 1)
	assert.EqualValues(t, 101, results[0].SourceID)
}

func TestSearchFailure(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&fakeRunner{}, &fakeSearcher{err: errors.New("boom")})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/search?q=market")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	srv := newTestServer(&fakeRunner{}, &fakeSearcher{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
