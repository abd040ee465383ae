package worker

import (
	"context"

	"autoreply.app/relay/internal/brain"
	"autoreply.app/relay/internal/queue"
)

// Consumer abstracts the message queue for testability.
type Consumer interface {
	Read(ctx context.Context) ([]queue.Message, error)
	Ack(ctx context.Context, msg queue.Message) error
	Requeue(ctx context.Context, msg queue.Message, errMsg string) error
	SendDLQ(ctx context.Context, msg queue.Message, errMsg string) error
}

// MessageHandler runs one inbound message through the reply pipeline.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg brain.InboundMessage) (*brain.Outcome, error)
}
