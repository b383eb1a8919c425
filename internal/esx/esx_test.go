package esx

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	es8 "github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type seen struct {
	mu    sync.Mutex
	calls []string
	last  string
}

func fakeES(t *testing.T) (*Client, *seen) {
	t.Helper()
	s := &seen{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.calls = append(s.calls, r.Method+" "+r.URL.Path)
		s.last = string(body)
		s.mu.Unlock()
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		if strings.HasSuffix(r.URL.Path, "/_search") {
			_, _ = io.WriteString(w, `{"hits":{"total":{"value":1},"hits":[{"_id":"i1","_score":1.5,"_source":{"id":"i1","workspace_id":"w1","name":"Crash"}}]}}`)
			return
		}
		_, _ = io.WriteString(w, `{"result":"ok"}`)
	}))
	t.Cleanup(srv.Close)
	es, err := es8.NewClient(es8.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return es, s
}

func TestIndexDeleteSearch(t *testing.T) {
	es, s := fakeES(t)
	ctx := context.Background()

	require.NoError(t, IndexIssue(ctx, es, "issues", IssueDoc{ID: "i1", WorkspaceID: "w1", Name: "Crash"}))
	require.NoError(t, DeleteIssue(ctx, es, "issues", "i1"))

	res, err := SearchIssues(ctx, es, "issues", "w1", "crash", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "Crash", res.Hits[0].Doc.Name)

	var q map[string]any
	require.NoError(t, json.Unmarshal([]byte(s.last), &q))
	assert.Contains(t, s.last, `"workspace_id":"w1"`)

	assert.Equal(t, []string{"PUT /issues/_doc/i1", "DELETE /issues/_doc/i1", "POST /issues/_search"}, s.calls)
}

func TestNilClientIsNoop(t *testing.T) {
	ctx := context.Background()
	assert.NoError(t, IndexIssue(ctx, nil, "issues", IssueDoc{ID: "x"}))
	assert.NoError(t, DeleteIssue(ctx, nil, "issues", "x"))
	res, err := SearchIssues(ctx, nil, "issues", "w", "q", 0, 10)
	require.NoError(t, err)
	assert.Empty(t, res.Hits)
}
