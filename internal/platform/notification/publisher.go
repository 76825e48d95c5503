package notification

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

// RedisStreamPublisher appends notifications to a Redis Stream for the
// messaging workers to fan out.
type RedisStreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

func NewRedisStreamPublisher(client *redis.Client, stream string) *RedisStreamPublisher {
	return &RedisStreamPublisher{client: client, stream: stream, maxLen: 100000}
}

func (p *RedisStreamPublisher) Publish(ctx context.Context, n *Notification) (string, error) {
	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{
			"id":         n.ID,
			"channel":    string(n.Channel),
			"recipient":  n.Recipient,
			"body":       n.Body,
			"created_at": n.CreatedAt.Unix(),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return id, nil
}

// LogPublisher writes notifications to the log. It is used when no Redis
// instance is configured.
type LogPublisher struct {
	logger zerolog.Logger
}

func NewLogPublisher(logger zerolog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger.With().Str("component", "notification").Logger()}
}

func (p *LogPublisher) Publish(_ context.Context, n *Notification) (string, error) {
	p.logger.Info().
		Str("notification_id", n.ID).
		Str("channel", string(n.Channel)).
		Str("recipient", n.Recipient).
		Msg(n.Body)
	return n.ID, nil
}

// TeePublisher delivers through a primary publisher and mirrors every
// successful delivery to best-effort observers such as the live feed. Only
// the primary outcome is reported.
type TeePublisher struct {
	primary Publisher
	mirrors []Publisher
}

func NewTeePublisher(primary Publisher, mirrors ...Publisher) *TeePublisher {
	return &TeePublisher{primary: primary, mirrors: mirrors}
}

func (p *TeePublisher) Publish(ctx context.Context, n *Notification) (string, error) {
	id, err := p.primary.Publish(ctx, n)
	if err != nil {
		return "", err
	}
	for _, m := range p.mirrors {
		_, _ = m.Publish(ctx, n)
	}
	return id, nil
}
