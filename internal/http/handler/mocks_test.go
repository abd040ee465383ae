package handler_test

import (
	"context"

	"autoreply.app/relay/internal/model"
	"autoreply.app/relay/internal/queue"
	"autoreply.app/relay/internal/service"
)

type mockIngestService struct {
	ingestFn func(ctx context.Context, params service.MessageIngestParams) (*service.MessageIngestResult, error)
}

func (m *mockIngestService) Ingest(ctx context.Context, params service.MessageIngestParams) (*service.MessageIngestResult, error) {
	if m.ingestFn != nil {
		return m.ingestFn(ctx, params)
	}
	return nil, nil
}

type mockConversationService struct {
	latestRunFn func(ctx context.Context, key model.ConversationKey) (*model.Run, error)
	historyFn   func(ctx context.Context, key model.ConversationKey, limit int) ([]model.Turn, error)
}

func (m *mockConversationService) LatestRun(ctx context.Context, key model.ConversationKey) (*model.Run, error) {
	if m.latestRunFn != nil {
		return m.latestRunFn(ctx, key)
	}
	return nil, service.ErrRunNotFound
}

func (m *mockConversationService) History(ctx context.Context, key model.ConversationKey, limit int) ([]model.Turn, error) {
	if m.historyFn != nil {
		return m.historyFn(ctx, key, limit)
	}
	return nil, nil
}

type mockQueueService struct {
	statsFn func(ctx context.Context) (queue.Stats, error)
}

func (m *mockQueueService) Stats(ctx context.Context) (queue.Stats, error) {
	if m.statsFn != nil {
		return m.statsFn(ctx)
	}
	return queue.Stats{}, nil
}

type mockMerchantService struct {
	onboardFn func(ctx context.Context, params service.OnboardParams) (*model.Merchant, error)
	topUpFn   func(ctx context.Context, merchantID string, amount int64) (*service.BalanceView, error)
	balanceFn func(ctx context.Context, merchantID string) (*service.BalanceView, error)
}

func (m *mockMerchantService) Onboard(ctx context.Context, params service.OnboardParams) (*model.Merchant, error) {
	if m.onboardFn != nil {
		return m.onboardFn(ctx, params)
	}
	return nil, nil
}

func (m *mockMerchantService) TopUp(ctx context.Context, merchantID string, amount int64) (*service.BalanceView, error) {
	if m.topUpFn != nil {
		return m.topUpFn(ctx, merchantID, amount)
	}
	return nil, nil
}

func (m *mockMerchantService) Balance(ctx context.Context, merchantID string) (*service.BalanceView, error) {
	if m.balanceFn != nil {
		return m.balanceFn(ctx, merchantID)
	}
	return nil, nil
}
