package publisher

import (
	"context"
	"encoding/base64"
	"math/rand/v2"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher implements Publisher using Redis streams
type RedisPublisher struct {
	client          *redis.Client
	ctx             context.Context
	streamPrefix    string
	streamCount     int
	streamMaxLength int
}

// NewRedisPublisher creates a new Redis publisher over an existing client
func NewRedisPublisher(ctx context.Context, client *redis.Client, streamPrefix string, streamCount int, streamMaxLength int) *RedisPublisher {
	if streamCount <= 0 {
		streamCount = 1
	}
	return &RedisPublisher{
		client:          client,
		ctx:             ctx,
		streamPrefix:    streamPrefix,
		streamCount:     streamCount,
		streamMaxLength: streamMaxLength,
	}
}

// StreamName returns the name of stream n
func (p *RedisPublisher) StreamName(n int) string {
	return p.streamPrefix + ":" + strconv.Itoa(n)
}

// Publish publishes a message to a Redis stream.
// The message is base64 encoded before publishing.
func (p *RedisPublisher) Publish(key string, message []byte) error {
	encodedMessage := base64.StdEncoding.EncodeToString(message)

	// streams are named prefix:0 .. prefix:streamCount-1
	stream := p.StreamName(rand.IntN(p.streamCount))

	return p.client.XAdd(p.ctx, &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{
			key: encodedMessage,
		},
	}).Err()
}

// TrimStreams trims all streams to the configured maximum length
func (p *RedisPublisher) TrimStreams() error {
	for n := 0; n < p.streamCount; n++ {
		err := p.client.XTrimMaxLen(p.ctx, p.StreamName(n), int64(p.streamMaxLength)).Err()
		if err != nil {
			return err
		}
	}
	return nil
}

// Close closes the Redis connection
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
