package publisher

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   0,
	})

	// Test if Redis is available
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		t.Skip("Redis is not available, skipping test")
	}
	return client
}

func TestRedisPublisher(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	publisher := NewRedisPublisher(ctx, client, "test_scout_events", 1, 10)
	defer publisher.Close()

	stream := publisher.StreamName(0)
	require.NoError(t, client.Del(ctx, stream).Err())

	err := publisher.Publish("b64_error_event", []byte("test_message"))
	assert.NoError(t, err)

	messages, err := client.XRange(ctx, stream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, messages, 1)
	// The message should be base64 encoded
	assert.Equal(t, "dGVzdF9tZXNzYWdl", messages[0].Values["b64_error_event"])
}

func TestRedisPublisherTrimStreams(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	publisher := NewRedisPublisher(ctx, client, "test_scout_trim", 1, 3)
	defer publisher.Close()

	stream := publisher.StreamName(0)
	require.NoError(t, client.Del(ctx, stream).Err())

	for i := 0; i < 10; i++ {
		require.NoError(t, publisher.Publish("b64_error_event", []byte("m")))
	}
	require.NoError(t, publisher.TrimStreams())

	length, err := client.XLen(ctx, stream).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(3), length)
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = NopPublisher{}
	assert.NoError(t, p.Publish("k", []byte("v")))
	assert.NoError(t, p.TrimStreams())
	assert.NoError(t, p.Close())
}

func TestNewRedisPublisherDefaultsStreamCount(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer client.Close()

	p := NewRedisPublisher(context.Background(), client, "scout:errors", 0, 100)
	assert.Equal(t, 1, p.streamCount)
	assert.Equal(t, "scout:errors:0", p.StreamName(0))
}
