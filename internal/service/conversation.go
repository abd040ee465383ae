package service

import (
	"context"
	"errors"
	"fmt"

	"autoreply.app/relay/internal/model"
	"autoreply.app/relay/internal/store"
)

var ErrRunNotFound = errors.New("no run recorded for conversation")

type ConversationService interface {
	LatestRun(ctx context.Context, key model.ConversationKey) (*model.Run, error)
	History(ctx context.Context, key model.ConversationKey, limit int) ([]model.Turn, error)
}

type conversationService struct {
	runs     store.RunStore
	messages store.MessageStore
}

func NewConversationService(runs store.RunStore, messages store.MessageStore) ConversationService {
	return &conversationService{runs: runs, messages: messages}
}

func (s *conversationService) LatestRun(ctx context.Context, key model.ConversationKey) (*model.Run, error) {
	run, err := s.runs.Latest(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("loading latest run: %w", err)
	}
	return run, nil
}

func (s *conversationService) History(ctx context.Context, key model.ConversationKey, limit int) ([]model.Turn, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	turns, err := s.messages.RecentHistory(ctx, key, limit)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	return turns, nil
}
