package service

import (
	"context"

	"autoreply.app/relay/internal/queue"
)

// StatsReader mirrors queue.StatsReader for testability.
type StatsReader interface {
	Stats(ctx context.Context) (queue.Stats, error)
}

type QueueService interface {
	Stats(ctx context.Context) (queue.Stats, error)
}

type queueService struct {
	reader StatsReader
}

func NewQueueService(reader StatsReader) QueueService {
	return &queueService{reader: reader}
}

func (s *queueService) Stats(ctx context.Context) (queue.Stats, error) {
	return s.reader.Stats(ctx)
}
