// Package esx indexes and searches issue documents in Elasticsearch.
package esx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	es8 "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/m-mizutani/goerr/v2"
	"github.com/samber/lo"

	"tracker-api/internal/config"
)

type Client = es8.Client

func Open(cfg *config.Config) (*Client, func(), error) {
	if strings.TrimSpace(cfg.ES.Addrs) == "" {
		return nil, func() {}, nil
	}
	raw := strings.Split(cfg.ES.Addrs, ",")
	addrs := lo.FilterMap(raw, func(s string, _ int) (string, bool) {
		t := strings.TrimSpace(s)
		return t, t != ""
	})
	es, err := es8.NewClient(es8.Config{Addresses: addrs, Username: cfg.ES.Username, Password: cfg.ES.Password})
	if err != nil {
		return nil, func() {}, goerr.Wrap(err, "failed to create elasticsearch client")
	}
	return es, func() {}, nil
}

// IssueDoc is the searchable projection of an issue.
type IssueDoc struct {
	ID          string `json:"id"`
	WorkspaceID string `json:"workspace_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority,omitempty"`
	StateID     string `json:"state_id,omitempty"`
	ProjectID   string `json:"project_id,omitempty"`
	UpdatedAt   string `json:"updated_at"`
}

// Hit is one search result.
type Hit struct {
	ID    string   `json:"id"`
	Score float64  `json:"score"`
	Doc   IssueDoc `json:"doc"`
}

// Result is a page of hits with the total match count.
type Result struct {
	Hits  []Hit `json:"hits"`
	Total int   `json:"total"`
}

// IndexIssue upserts doc under its id.
func IndexIssue(ctx context.Context, es *Client, index string, doc IssueDoc) error {
	if es == nil {
		return nil
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return goerr.Wrap(err, "failed to encode issue doc")
	}
	res, err := es.Index(index, bytes.NewReader(b),
		es.Index.WithContext(ctx), es.Index.WithDocumentID(doc.ID))
	if err != nil {
		return goerr.Wrap(err, "failed to index issue", goerr.V("id", doc.ID))
	}
	defer res.Body.Close()
	if res.StatusCode >= http.StatusBadRequest {
		return fmtError(res)
	}
	return nil
}

// DeleteIssue removes a document. A missing document is not an error.
func DeleteIssue(ctx context.Context, es *Client, index, id string) error {
	if es == nil {
		return nil
	}
	res, err := es.Delete(index, id, es.Delete.WithContext(ctx))
	if err != nil {
		return goerr.Wrap(err, "failed to delete issue doc", goerr.V("id", id))
	}
	defer res.Body.Close()
	if res.StatusCode >= http.StatusBadRequest && res.StatusCode != http.StatusNotFound {
		return fmtError(res)
	}
	return nil
}

// SearchIssues runs a full-text query restricted to one workspace.
func SearchIssues(ctx context.Context, es *Client, index, workspaceID, query string, from, size int) (Result, error) {
	if es == nil {
		return Result{Hits: []Hit{}}, nil
	}
	q := map[string]any{
		"query": map[string]any{
			"bool": map[string]any{
				"must": map[string]any{
					"multi_match": map[string]any{"query": query, "fields": []string{"name^2", "description"}},
				},
				"filter": map[string]any{"term": map[string]any{"workspace_id": workspaceID}},
			},
		},
	}
	b, _ := json.Marshal(q)
	res, err := es.Search(
		es.Search.WithContext(ctx),
		es.Search.WithIndex(index),
		es.Search.WithBody(bytes.NewReader(b)),
		es.Search.WithFrom(from),
		es.Search.WithSize(size),
	)
	if err != nil {
		return Result{}, goerr.Wrap(err, "failed to search issues")
	}
	defer res.Body.Close()
	if res.StatusCode >= http.StatusBadRequest {
		return Result{}, fmtError(res)
	}
	var raw struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				ID     string   `json:"_id"`
				Score  float64  `json:"_score"`
				Source IssueDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&raw); err != nil {
		return Result{}, goerr.Wrap(err, "failed to decode search response")
	}
	out := Result{Total: raw.Hits.Total.Value, Hits: make([]Hit, 0, len(raw.Hits.Hits))}
	for _, h := range raw.Hits.Hits {
		out.Hits = append(out.Hits, Hit{ID: h.ID, Score: h.Score, Doc: h.Source})
	}
	return out, nil
}

func fmtError(res *esapi.Response) error {
	return goerr.New("elasticsearch error", goerr.V("status", res.StatusCode), goerr.V("response", res.String()))
}
