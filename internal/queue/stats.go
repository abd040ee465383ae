package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Stats is a point-in-time view of the inbound stream.
type Stats struct {
	Stream    string `json:"stream"`
	Length    int64  `json:"length"`
	Pending   int64  `json:"pending"`
	Consumers int    `json:"consumers"`
	DLQStream string `json:"dlq_stream"`
	DLQLength int64  `json:"dlq_length"`
}

type StatsReader struct {
	client    *redis.Client
	stream    string
	group     string
	dlqStream string
}

func NewStatsReader(client *redis.Client, stream, group, dlqStream string) *StatsReader {
	return &StatsReader{client: client, stream: stream, group: group, dlqStream: dlqStream}
}

func (r *StatsReader) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{Stream: r.stream, DLQStream: r.dlqStream}

	length, err := r.client.XLen(ctx, r.stream).Result()
	if err != nil {
		return Stats{}, fmt.Errorf("xlen (stream=%s): %w", r.stream, err)
	}
	stats.Length = length

	pending, err := r.client.XPending(ctx, r.stream, r.group).Result()
	switch {
	case err == nil:
		stats.Pending = pending.Count
		stats.Consumers = len(pending.Consumers)
	case isNoGroup(err):
		// No worker has created the group yet.
	default:
		return Stats{}, fmt.Errorf("xpending (stream=%s): %w", r.stream, err)
	}

	if r.dlqStream != "" {
		dlq, err := r.client.XLen(ctx, r.dlqStream).Result()
		if err != nil {
			return Stats{}, fmt.Errorf("xlen (stream=%s): %w", r.dlqStream, err)
		}
		stats.DLQLength = dlq
	}

	return stats, nil
}

func isNoGroup(err error) bool {
	return errors.Is(err, redis.Nil) || strings.HasPrefix(err.Error(), "NOGROUP")
}
