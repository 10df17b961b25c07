package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	channel string
	payload []byte
	err     error
}

func (r *recordingPublisher) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	r.channel = channel
	r.payload, _ = message.([]byte)
	return redis.NewIntResult(1, r.err)
}

func TestPublish(t *testing.T) {
	p := &recordingPublisher{}
	err := Publish(context.Background(), p, Message{
		Type:      TypePageSaved,
		Status:    StatusCompleted,
		AccountID: 9,
	})
	require.NoError(t, err)

	assert.Equal(t, "user_notify:9", p.channel)
	var got map[string]any
	require.NoError(t, json.Unmarshal(p.payload, &got))
	assert.Equal(t, "page.saved", got["type"])
	assert.Equal(t, float64(9), got["account_id"])
	assert.NotContains(t, got, "devices")
}

func TestPublish_WrapsRedisError(t *testing.T) {
	boom := errors.New("redis down")
	err := Publish(context.Background(), &recordingPublisher{err: boom}, Message{AccountID: 1})
	assert.ErrorIs(t, err, boom)
}
