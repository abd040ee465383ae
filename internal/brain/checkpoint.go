package brain

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"autoreply.app/relay/internal/model"
	"autoreply.app/relay/internal/store"
)

// MemoryCheckpointStore keeps runs in process memory. Runs are stored as JSON snapshots
// so callers never share state with the store.
type MemoryCheckpointStore struct {
	mu     sync.RWMutex
	runs   map[string][]byte
	latest map[model.ConversationKey]string
}

func NewMemoryCheckpointStore() *MemoryCheckpointStore {
	return &MemoryCheckpointStore{
		runs:   make(map[string][]byte),
		latest: make(map[model.ConversationKey]string),
	}
}

func runKey(key model.ConversationKey, eventID string) string {
	return key.String() + "/" + eventID
}

func (s *MemoryCheckpointStore) Get(_ context.Context, key model.ConversationKey, eventID string) (*model.Run, error) {
	s.mu.RLock()
	data, ok := s.runs[runKey(key, eventID)]
	s.mu.RUnlock()
	if !ok {
		return nil, store.ErrNotFound
	}
	return decodeRun(data)
}

func (s *MemoryCheckpointStore) Latest(_ context.Context, key model.ConversationKey) (*model.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rk, ok := s.latest[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return decodeRun(s.runs[rk])
}

func (s *MemoryCheckpointStore) Save(_ context.Context, run *model.Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encoding run: %w", err)
	}
	rk := runKey(run.Key, run.EventID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[rk] = data
	s.latest[run.Key] = rk
	return nil
}

func decodeRun(data []byte) (*model.Run, error) {
	var run model.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("decoding run: %w", err)
	}
	return &run, nil
}
