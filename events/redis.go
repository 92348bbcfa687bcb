package events

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

// redisPublisher broadcasts events over Redis pub/sub so sibling processes
// sharing the MEMORY backend can react to invalidations. The caller owns
// the redis.Client lifecycle; Close is a no-op on the client.
type redisPublisher struct {
	client  *redis.Client
	prefix  string
	timeout time.Duration
}

var _ Publisher = (*redisPublisher)(nil)

// NewRedisPublisher returns a Publisher backed by Redis pub/sub. Subjects
// become channels named prefix + "." + subject.
func NewRedisPublisher(client *redis.Client, channelPrefix string) Publisher {
	return &redisPublisher{
		client:  client,
		prefix:  channelPrefix,
		timeout: 5 * time.Second,
	}
}

func (p *redisPublisher) channel(subject string) string {
	if p.prefix == "" {
		return subject
	}
	return p.prefix + "." + subject
}

func (p *redisPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	qctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	err := p.client.Publish(qctx, p.channel(subject), data).Err()
	return errors.Wrapf(err, "events: publish to %s", subject)
}

func (p *redisPublisher) Close() error {
	return nil
}

// SubscribeRedis consumes events published by NewRedisPublisher from a
// sibling process. The handler runs on a background goroutine until the
// returned Subscription is closed.
func SubscribeRedis(ctx context.Context, client *redis.Client, channelPrefix, subject string, h Handler) Subscription {
	prefix := channelPrefix
	if prefix != "" {
		prefix += "."
	}
	pubsub := client.Subscribe(ctx, prefix+subject)
	sub := &redisSub{pubsub: pubsub}
	go func() {
		for msg := range pubsub.Channel() {
			h(ctx, subject, []byte(msg.Payload))
		}
	}()
	return sub
}

type redisSub struct {
	pubsub *redis.PubSub
}

func (s *redisSub) Close() error {
	return s.pubsub.Close()
}
