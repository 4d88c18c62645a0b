package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisBackplane shares broadcasts between instances over a Redis pub/sub
// channel. Every instance, the sender included, delivers what it receives
// to its own sessions.
type RedisBackplane struct {
	client  redis.UniversalClient
	channel string
	router  *Router
}

func NewRedisBackplane(client redis.UniversalClient, channel string, router *Router) *RedisBackplane {
	return &RedisBackplane{client: client, channel: channel, router: router}
}

func (b *RedisBackplane) Publish(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, data).Err()
}

// Run subscribes and delivers until ctx is cancelled. Broadcasts go
// through the backplane only while the subscription is confirmed; before
// and after that the router delivers locally.
func (b *RedisBackplane) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	b.router.SetPublisher(b)
	defer b.router.SetPublisher(nil)
	b.router.log.Info().Str("channel", b.channel).Msg("realtime backplane subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			b.handle(m.Payload)
		}
	}
}

func (b *RedisBackplane) handle(payload string) int {
	var msg Message
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		b.router.log.Warn().Err(err).Msg("discarding malformed backplane message")
		return 0
	}
	return b.router.Deliver(msg)
}
