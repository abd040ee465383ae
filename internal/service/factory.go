package service

import (
	"log/slog"

	"autoreply.app/relay/internal/queue"
	"autoreply.app/relay/internal/store"
)

type Services struct {
	stores   *store.Stores
	txRunner TxRunner
	producer queue.Producer
	stats    StatsReader
	logger   *slog.Logger
}

func NewServices(stores *store.Stores, txRunner TxRunner, producer queue.Producer, stats StatsReader, logger *slog.Logger) *Services {
	return &Services{
		stores:   stores,
		txRunner: txRunner,
		producer: producer,
		stats:    stats,
		logger:   logger,
	}
}

func (s *Services) Ingest() MessageIngestService {
	return NewMessageIngestService(s.stores.Messages(), s.producer, s.logger)
}

func (s *Services) Conversations() ConversationService {
	return NewConversationService(s.stores.Runs(), s.stores.Messages())
}

func (s *Services) Queue() QueueService {
	return NewQueueService(s.stats)
}

func (s *Services) Merchants() MerchantService {
	return NewMerchantService(s.txRunner, s.stores.Merchants(), s.stores.Ledger())
}
