package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

type Producer interface {
	Enqueue(ctx context.Context, task InboundTask) error
	Close() error
}

type redisProducer struct {
	client *redis.Client
	stream string
	logger *slog.Logger
}

func NewRedisProducer(client *redis.Client, stream string, logger *slog.Logger) Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisProducer{
		client: client,
		stream: stream,
		logger: logger,
	}
}

func (p *redisProducer) Enqueue(ctx context.Context, task InboundTask) error {
	attempt := task.Attempt
	if attempt <= 0 {
		attempt = 1
	}

	fields := map[string]any{
		fieldEventID:        task.EventID,
		fieldChannelID:      task.ChannelID,
		fieldCounterpartyID: task.CounterpartyID,
		fieldText:           task.Text,
		fieldAttempt:        attempt,
	}

	if task.TraceID != nil && *task.TraceID != "" {
		fields[fieldTraceID] = *task.TraceID
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: fields,
	}).Err(); err != nil {
		return fmt.Errorf("enqueue inbound message: %w", err)
	}

	p.logger.InfoContext(ctx, "enqueued inbound message",
		"event_id", task.EventID,
		"channel_id", task.ChannelID,
		"attempt", attempt)
	return nil
}

func (p *redisProducer) Close() error {
	return p.client.Close()
}
