package service_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"autoreply.app/relay/common"
	"autoreply.app/relay/internal/model"
	"autoreply.app/relay/internal/queue"
	"autoreply.app/relay/internal/service"
	"autoreply.app/relay/internal/store"
)

var _ = Describe("MessageIngestService", func() {
	var (
		ctx      context.Context
		messages *mockMessageStore
		producer *mockProducer
		svc      service.MessageIngestService
		params   service.MessageIngestParams
	)

	BeforeEach(func() {
		ctx = context.Background()
		messages = &mockMessageStore{}
		producer = &mockProducer{}
		svc = service.NewMessageIngestService(messages, producer, nil)
		params = service.MessageIngestParams{
			EventID:        ptr("wamid.1"),
			ChannelID:      "1098",
			CounterpartyID: "628111",
			Text:           "Do you deliver?",
			TraceID:        ptr("4bf92f3577b34da6a3ce929d0e0e4736"),
		}
	})

	It("stores the message before enqueueing it", func() {
		var order []string
		messages.recordIncomingFn = func(context.Context, *model.StoredMessage) error {
			order = append(order, "store")
			return nil
		}
		producer.enqueueFn = func(context.Context, queue.InboundTask) error {
			order = append(order, "enqueue")
			return nil
		}

		res, err := svc.Ingest(ctx, params)

		Expect(err).NotTo(HaveOccurred())
		Expect(order).To(Equal([]string{"store", "enqueue"}))
		Expect(res.Enqueued).To(BeTrue())
		Expect(res.Key.String()).To(Equal("1098_628111"))
		Expect(*messages.captured.ExternalMessageID).To(Equal("wamid.1"))
		Expect(producer.tasks).To(HaveLen(1))
		Expect(producer.tasks[0].EventID).To(Equal("wamid.1"))
		Expect(producer.tasks[0].Attempt).To(Equal(1))
		Expect(*producer.tasks[0].TraceID).To(Equal("4bf92f3577b34da6a3ce929d0e0e4736"))
	})

	It("mints an event id when the channel gave none", func() {
		params.EventID = nil

		res, err := svc.Ingest(ctx, params)

		Expect(err).NotTo(HaveOccurred())
		Expect(res.EventID).To(HaveLen(36))
		Expect(producer.tasks[0].EventID).To(Equal(res.EventID))
	})

	It("does not enqueue a redelivered event", func() {
		messages.recordIncomingFn = func(context.Context, *model.StoredMessage) error {
			return store.ErrDuplicate
		}

		res, err := svc.Ingest(ctx, params)

		Expect(err).NotTo(HaveOccurred())
		Expect(res.Duplicated).To(BeTrue())
		Expect(res.Enqueued).To(BeFalse())
		Expect(producer.tasks).To(BeEmpty())
	})

	It("rejects messages without text", func() {
		params.Text = "   "

		_, err := svc.Ingest(ctx, params)

		Expect(err).To(MatchError(service.ErrInvalidMessage))
		Expect(err).To(MatchError(common.ErrEmptyText))
		Expect(messages.captured).To(BeNil())
	})

	It("rejects messages without routing", func() {
		params.CounterpartyID = " "

		_, err := svc.Ingest(ctx, params)

		Expect(err).To(MatchError(service.ErrInvalidMessage))
		Expect(producer.tasks).To(BeEmpty())
	})

	It("stores and enqueues the trimmed text", func() {
		params.Text = "\n  Do you deliver?  \t"

		_, err := svc.Ingest(ctx, params)

		Expect(err).NotTo(HaveOccurred())
		Expect(messages.captured.Body).To(Equal("Do you deliver?"))
		Expect(producer.tasks[0].Text).To(Equal("Do you deliver?"))
	})

	It("surfaces enqueue failures", func() {
		producer.enqueueFn = func(context.Context, queue.InboundTask) error {
			return errors.New("redis down")
		}

		_, err := svc.Ingest(ctx, params)

		Expect(err).To(MatchError(ContainSubstring("redis down")))
	})
})

var _ = Describe("ConversationService", func() {
	It("maps a missing run to ErrRunNotFound", func() {
		svc := service.NewConversationService(&mockRunStore{}, &mockMessageStore{})

		_, err := svc.LatestRun(context.Background(), model.ConversationKey{ChannelID: "c", CounterpartyID: "p"})

		Expect(err).To(MatchError(service.ErrRunNotFound))
	})

	It("returns the latest run", func() {
		runs := &mockRunStore{latestFn: func(_ context.Context, key model.ConversationKey) (*model.Run, error) {
			return &model.Run{Key: key, EventID: "e2", Stage: model.StageDone, Settlement: model.SettlementDelivered}, nil
		}}
		svc := service.NewConversationService(runs, &mockMessageStore{})

		run, err := svc.LatestRun(context.Background(), model.ConversationKey{ChannelID: "c", CounterpartyID: "p"})

		Expect(err).NotTo(HaveOccurred())
		Expect(run.EventID).To(Equal("e2"))
	})

	It("caps the history window", func() {
		var gotLimit int
		messages := &mockMessageStore{historyFn: func(_ context.Context, _ model.ConversationKey, limit int) ([]model.Turn, error) {
			gotLimit = limit
			return nil, nil
		}}
		svc := service.NewConversationService(&mockRunStore{}, messages)

		_, err := svc.History(context.Background(), model.ConversationKey{ChannelID: "c", CounterpartyID: "p"}, 5000)

		Expect(err).NotTo(HaveOccurred())
		Expect(gotLimit).To(Equal(20))
	})
})

func ptr[T any](v T) *T {
	return &v
}
