package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracker-api/internal/crud"
	"tracker-api/internal/resource"
	"tracker-api/internal/tracker"
)

type memPublisher struct {
	mu   sync.Mutex
	keys []string
	body [][]byte
	fail bool
}

func (m *memPublisher) Publish(_ context.Context, key string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("broker down")
	}
	m.keys = append(m.keys, key)
	m.body = append(m.body, body)
	return nil
}

func (m *memPublisher) Close() error { return nil }

func TestPublisher(t *testing.T) {
	mq := &memPublisher{}
	p := NewPublisher(mq)
	p.AfterCommit(context.Background(), crud.Event{
		Resource: tracker.Labels, Action: crud.Created, WorkspaceID: "w1", ID: "l1",
		Record: resource.Record{"name": "Bug"},
	})
	require.Equal(t, []string{"labels.created"}, mq.keys)

	var got crud.Event
	require.NoError(t, json.Unmarshal(mq.body[0], &got))
	assert.Equal(t, "w1", got.WorkspaceID)
	assert.Equal(t, "Bug", got.Record["name"])

	// broker failures never reach the caller
	mq.fail = true
	p.AfterCommit(context.Background(), crud.Event{Resource: tracker.Labels, Action: crud.Deleted})
}

func TestIssueDoc(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	doc := IssueDoc(resource.Record{
		"id": "i1", "workspace_id": "w1", "name": "Crash", "description": nil,
		"priority": "high", "updated_at": now,
	})
	assert.Equal(t, "i1", doc.ID)
	assert.Equal(t, "w1", doc.WorkspaceID)
	assert.Empty(t, doc.Description)
	assert.Equal(t, "high", doc.Priority)
	assert.Equal(t, "2024-05-01T10:00:00Z", doc.UpdatedAt)
}

func TestIssueIndexer_IgnoresOtherResources(t *testing.T) {
	// a nil client makes every esx call a no-op; this only checks dispatch does not panic
	x := NewIssueIndexer(nil, "issues")
	x.AfterCommit(context.Background(), crud.Event{Resource: tracker.Labels, Action: crud.Created})
	x.AfterCommit(context.Background(), crud.Event{Resource: tracker.Issues, Action: crud.Deleted, ID: "i1"})
}
