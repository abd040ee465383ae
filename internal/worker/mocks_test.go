package worker_test

import (
	"context"
	"sync"

	"autoreply.app/relay/internal/brain"
	"autoreply.app/relay/internal/queue"
)

type mockConsumer struct {
	mu       sync.Mutex
	readFn   func(ctx context.Context) ([]queue.Message, error)
	acked    []string
	requeued []string
	dlq      []string
}

func (m *mockConsumer) Read(ctx context.Context) ([]queue.Message, error) {
	if m.readFn != nil {
		return m.readFn(ctx)
	}
	return nil, nil
}

func (m *mockConsumer) Ack(_ context.Context, msg queue.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acked = append(m.acked, msg.ID)
	return nil
}

func (m *mockConsumer) Requeue(_ context.Context, msg queue.Message, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requeued = append(m.requeued, msg.ID)
	return nil
}

func (m *mockConsumer) SendDLQ(_ context.Context, msg queue.Message, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dlq = append(m.dlq, msg.ID)
	return nil
}

type mockHandler struct {
	mu       sync.Mutex
	handleFn func(ctx context.Context, msg brain.InboundMessage) (*brain.Outcome, error)
	received []brain.InboundMessage
}

func (m *mockHandler) HandleMessage(ctx context.Context, msg brain.InboundMessage) (*brain.Outcome, error) {
	m.mu.Lock()
	m.received = append(m.received, msg)
	m.mu.Unlock()
	if m.handleFn != nil {
		return m.handleFn(ctx, msg)
	}
	return &brain.Outcome{Status: brain.OutcomeDelivered, Key: msg.Key(), EventID: msg.EventID}, nil
}

func (m *mockHandler) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.received)
}
