package mqx

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	key  string
	body []byte
}

func (r *recorder) Publish(_ context.Context, key string, body []byte) error {
	r.key, r.body = key, body
	return nil
}

func (r *recorder) Close() error { return nil }

func TestPublishJSON(t *testing.T) {
	rec := &recorder{}
	err := PublishJSON(context.Background(), rec, "issues.created", map[string]any{"id": "i1"})
	require.NoError(t, err)
	assert.Equal(t, "issues.created", rec.key)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.body, &got))
	assert.Equal(t, "i1", got["id"])
}

func TestPublishJSON_EncodeError(t *testing.T) {
	rec := &recorder{}
	err := PublishJSON(context.Background(), rec, "k", make(chan int))
	require.Error(t, err)
	assert.Empty(t, rec.key)
}

func TestRabbitPublisher_CloseNil(t *testing.T) {
	assert.NoError(t, (&RabbitPublisher{}).Close())
}
