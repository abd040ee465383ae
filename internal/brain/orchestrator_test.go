package brain_test

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"autoreply.app/relay/common/llm"
	"autoreply.app/relay/internal/brain"
	"autoreply.app/relay/internal/model"
	"autoreply.app/relay/internal/store"
)

var _ = Describe("Orchestrator", func() {
	var (
		ctx         context.Context
		gen         *mockGenerator
		merchants   *mockMerchants
		configs     *mockConfigs
		profiles    *mockProfiles
		messages    *mockMessages
		ledger      *mockLedger
		deliverer   *mockDeliverer
		notifier    *mockNotifier
		checkpoints *brain.MemoryCheckpointStore
		deps        brain.Dependencies
		orch        *brain.Orchestrator
		msg         brain.InboundMessage
	)

	build := func() *brain.Orchestrator {
		return brain.NewOrchestrator(brain.OrchestratorConfig{HistoryLimit: 10}, deps)
	}

	BeforeEach(func() {
		ctx = context.Background()
		gen = &mockGenerator{generateFn: func(context.Context, llm.GenerateRequest) (string, error) {
			return words(100), nil
		}}
		merchants = &mockMerchants{}
		configs = &mockConfigs{getFn: func(context.Context, string) (*model.AIConfig, error) {
			return &model.AIConfig{Model: "gpt-4o-mini", CreativityLevel: 2, FormalityLevel: 2, MaxReplyLengthLevel: 2}, nil
		}}
		profiles = &mockProfiles{getFn: func(context.Context, string) (*model.BusinessProfile, error) {
			return &model.BusinessProfile{Name: "Acme"}, nil
		}}
		messages = &mockMessages{}
		ledger = &mockLedger{}
		deliverer = &mockDeliverer{}
		notifier = &mockNotifier{}
		checkpoints = brain.NewMemoryCheckpointStore()

		deps = brain.Dependencies{
			Merchants:   merchants,
			Configs:     configs,
			Profiles:    profiles,
			Messages:    messages,
			Ledger:      ledger,
			Deliverer:   deliverer,
			Checkpoints: checkpoints,
			Locker:      brain.NewLocalKeyLocker(),
			Classifier:  brain.NewClassifier(nil),
			Responder:   brain.NewResponder(gen),
			Orders:      brain.NewOrderExtractor(gen, notifier),
			Escalation:  brain.NewEscalationHandler(),
			Billing:     brain.NewBillingCalculator(brain.BillingConfig{DefaultBaseCost: 50, FallbackCharge: 50}),
		}
		orch = build()

		msg = brain.InboundMessage{
			EventID:        "wamid.1",
			ChannelID:      "chan-1",
			CounterpartyID: "628111",
			Text:           "What time do you open on Saturday?",
		}
	})

	Describe("respond path", func() {
		It("charges before delivering and records the reply", func() {
			var order []string
			ledger.applyFn = func(_ context.Context, call chargeCall) (model.ChargeResult, error) {
				order = append(order, "charge")
				return model.ChargeResult{Success: true, NewBalance: 960}, nil
			}
			deliverer.deliverFn = func(context.Context, delivery) error {
				order = append(order, "deliver")
				return nil
			}

			out, err := orch.HandleMessage(ctx, msg)

			Expect(err).NotTo(HaveOccurred())
			Expect(out.Status).To(Equal(brain.OutcomeDelivered))
			Expect(out.Decision).To(Equal(model.DecisionRespond))
			Expect(out.ChargeAmount).To(Equal(int64(40)))
			Expect(*out.NewBalance).To(Equal(int64(960)))
			Expect(order).To(Equal([]string{"charge", "deliver"}))
			Expect(ledger.calls[0].AccountID).To(Equal("merchant-1"))
			Expect(ledger.calls[0].IdempotencyKey).To(Equal("charge:chan-1_628111:wamid.1"))
			Expect(deliverer.calls[0]).To(Equal(delivery{ChannelID: "chan-1", CounterpartyID: "628111", Text: words(100)}))
			Expect(messages.outgoing).To(Equal([]string{words(100)}))
		})

		It("adds the proportional surcharge for long replies", func() {
			gen.generateFn = func(context.Context, llm.GenerateRequest) (string, error) { return words(250), nil }

			out, err := orch.HandleMessage(ctx, msg)

			Expect(err).NotTo(HaveOccurred())
			Expect(out.ChargeAmount).To(Equal(int64(100)))
			Expect(ledger.calls[0].Amount).To(Equal(int64(100)))
		})

		It("still replies when the business profile is absent", func() {
			profiles.getFn = func(context.Context, string) (*model.BusinessProfile, error) {
				return &model.BusinessProfile{}, nil
			}

			out, err := orch.HandleMessage(ctx, msg)

			Expect(err).NotTo(HaveOccurred())
			Expect(out.Status).To(Equal(brain.OutcomeDelivered))
			Expect(out.ReplyText).NotTo(BeEmpty())
			Expect(gen.lastRequest().SystemPrompt).To(ContainSubstring("No business information available."))
		})

		It("degrades enrichment failures to an empty profile", func() {
			profiles.getFn = func(context.Context, string) (*model.BusinessProfile, error) {
				return nil, errors.New("connection reset")
			}

			out, err := orch.HandleMessage(ctx, msg)

			Expect(err).NotTo(HaveOccurred())
			Expect(out.Status).To(Equal(brain.OutcomeDelivered))
			run, _ := orch.Inspect(ctx, msg.Key())
			Expect(run.State.BusinessProfile).NotTo(BeNil())
			Expect(run.State.BusinessProfile.IsEmpty()).To(BeTrue())
		})

		It("uses default settings when the merchant has no AI config", func() {
			configs.getFn = nil

			out, err := orch.HandleMessage(ctx, msg)

			Expect(err).NotTo(HaveOccurred())
			Expect(out.ChargeAmount).To(Equal(int64(50)))
			Expect(gen.lastRequest().Model).To(Equal("gpt-4o-mini"))
		})

		It("substitutes the greeting fallback for empty generations", func() {
			gen.generateFn = func(context.Context, llm.GenerateRequest) (string, error) { return "", nil }
			msg.Text = "hello"

			out, err := orch.HandleMessage(ctx, msg)

			Expect(err).NotTo(HaveOccurred())
			Expect(out.ReplyText).To(ContainSubstring("How can we help you today?"))
		})

		It("passes history without the stored copy of the current message", func() {
			messages.historyFn = func(_ context.Context, _ model.ConversationKey, limit int) ([]model.Turn, error) {
				Expect(limit).To(Equal(11))
				return []model.Turn{
					{Text: "earlier question", Direction: model.DirectionIncoming},
					{Text: "earlier answer", Direction: model.DirectionOutgoing},
					{Text: msg.Text, Direction: model.DirectionIncoming},
				}, nil
			}

			_, err := orch.HandleMessage(ctx, msg)

			Expect(err).NotTo(HaveOccurred())
			run, _ := orch.Inspect(ctx, msg.Key())
			Expect(run.State.History).To(HaveLen(2))
			Expect(gen.lastRequest().SystemPrompt).To(ContainSubstring("Customer: earlier question\nBusiness: earlier answer"))
		})
	})

	Describe("escalate path", func() {
		It("replies with the canned text for free regardless of profile and history", func() {
			msg.Text = "Please let me speak to a human"
			messages.historyFn = func(context.Context, model.ConversationKey, int) ([]model.Turn, error) {
				return []model.Turn{{Text: "I want to buy", Direction: model.DirectionIncoming}}, nil
			}

			out, err := orch.HandleMessage(ctx, msg)

			Expect(err).NotTo(HaveOccurred())
			Expect(out.Decision).To(Equal(model.DecisionEscalate))
			Expect(out.ChargeAmount).To(BeZero())
			Expect(out.ReplyText).To(Equal(brain.EscalationReply))
			Expect(ledger.callCount()).To(BeZero())
			Expect(deliverer.callCount()).To(Equal(1))
			Expect(gen.callCount()).To(BeZero())
			Expect(profiles.calls).To(Equal(1))
		})
	})

	Describe("order path", func() {
		BeforeEach(func() {
			msg.Text = "I want to order the Premium Plan"
			gen.generateFn = func(context.Context, llm.GenerateRequest) (string, error) { return wellFormedOrder, nil }
			profiles.getFn = func(context.Context, string) (*model.BusinessProfile, error) {
				return &model.BusinessProfile{
					Name:       "Acme",
					Escalation: model.EscalationSettings{Enabled: true, Method: model.EscalationMethodEmail, Email: "o@acme.test"},
				}, nil
			}
		})

		It("captures the order and notifies the merchant once", func() {
			out, err := orch.HandleMessage(ctx, msg)

			Expect(err).NotTo(HaveOccurred())
			Expect(out.Decision).To(Equal(model.DecisionProcessOrder))
			Expect(out.Status).To(Equal(brain.OutcomeDelivered))
			Expect(notifier.callCount()).To(Equal(1))

			run, err := orch.Inspect(ctx, msg.Key())
			Expect(err).NotTo(HaveOccurred())
			Expect(run.State.OrderIntentFlag).To(BeTrue())
			Expect(run.State.OrderSummary).NotTo(BeNil())
			Expect(*run.State.OrderSummary).NotTo(BeEmpty())
		})

		It("does not notify again when the event is replayed", func() {
			_, err := orch.HandleMessage(ctx, msg)
			Expect(err).NotTo(HaveOccurred())
			_, err = orch.HandleMessage(ctx, msg)
			Expect(err).NotTo(HaveOccurred())

			Expect(notifier.callCount()).To(Equal(1))
		})

		It("notifies once when the checkpoint after extraction fails and the event is retried", func() {
			failing := &failingCheckpoints{
				MemoryCheckpointStore: checkpoints,
				failOn: func(run *model.Run) bool {
					return run.Stage == model.StageBill
				},
			}
			deps.Checkpoints = failing
			orch = build()

			_, err := orch.HandleMessage(ctx, msg)
			Expect(err).To(HaveOccurred())
			Expect(notifier.callCount()).To(BeZero())

			out, err := orch.HandleMessage(ctx, msg)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Status).To(Equal(brain.OutcomeDelivered))
			Expect(notifier.callCount()).To(Equal(1))
			Expect(deliverer.callCount()).To(Equal(1))
		})

		It("notifies once when the notification claim cannot be saved", func() {
			failing := &failingCheckpoints{
				MemoryCheckpointStore: checkpoints,
				failOn: func(run *model.Run) bool {
					return run.State.MerchantNotified
				},
			}
			deps.Checkpoints = failing
			orch = build()

			_, err := orch.HandleMessage(ctx, msg)
			Expect(err).To(HaveOccurred())
			Expect(notifier.callCount()).To(BeZero())

			_, err = orch.HandleMessage(ctx, msg)
			Expect(err).NotTo(HaveOccurred())
			Expect(notifier.callCount()).To(Equal(1))

			run, err := orch.Inspect(ctx, msg.Key())
			Expect(err).NotTo(HaveOccurred())
			Expect(run.State.MerchantNotified).To(BeTrue())
		})
	})

	Describe("idempotence", func() {
		It("does not charge or deliver twice for a replayed event", func() {
			first, err := orch.HandleMessage(ctx, msg)
			Expect(err).NotTo(HaveOccurred())

			second, err := orch.HandleMessage(ctx, msg)
			Expect(err).NotTo(HaveOccurred())

			Expect(second.Replayed).To(BeTrue())
			Expect(second.Status).To(Equal(first.Status))
			Expect(second.ReplyText).To(Equal(first.ReplyText))
			Expect(ledger.callCount()).To(Equal(1))
			Expect(deliverer.callCount()).To(Equal(1))
			Expect(gen.callCount()).To(Equal(1))
		})

		It("processes a new event for the same conversation", func() {
			_, err := orch.HandleMessage(ctx, msg)
			Expect(err).NotTo(HaveOccurred())

			msg.EventID = "wamid.2"
			out, err := orch.HandleMessage(ctx, msg)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Replayed).To(BeFalse())
			Expect(deliverer.callCount()).To(Equal(2))

			run, _ := orch.Inspect(ctx, msg.Key())
			Expect(run.EventID).To(Equal("wamid.2"))
		})

		It("resumes a checkpointed run from its stored stage", func() {
			reply := words(10)
			state := model.ConversationState{
				Key:             msg.Key(),
				EventID:         msg.EventID,
				MessageText:     msg.Text,
				MerchantID:      "merchant-1",
				AIConfig:        &model.AIConfig{Model: "gpt-4o"},
				BusinessProfile: &model.BusinessProfile{},
			}
			Expect(state.SetDecision(model.DecisionRespond, 0.8, "test")).To(Succeed())
			Expect(state.SetReply(reply)).To(Succeed())
			Expect(checkpoints.Save(ctx, &model.Run{
				ID: 1, Key: msg.Key(), EventID: msg.EventID,
				Stage: model.StageBill, Settlement: model.SettlementPending, State: state,
			})).To(Succeed())

			out, err := orch.HandleMessage(ctx, msg)

			Expect(err).NotTo(HaveOccurred())
			Expect(gen.callCount()).To(BeZero())
			Expect(out.ChargeAmount).To(Equal(int64(80)))
			Expect(deliverer.calls[0].Text).To(Equal(reply))
		})

		It("retries a failed charge with the same idempotency key and delivers once", func() {
			attempts := 0
			ledger.applyFn = func(_ context.Context, call chargeCall) (model.ChargeResult, error) {
				attempts++
				if attempts == 1 {
					return model.ChargeResult{}, errors.New("ledger unreachable")
				}
				return model.ChargeResult{Success: true, NewBalance: 5}, nil
			}

			_, err := orch.HandleMessage(ctx, msg)
			Expect(err).To(HaveOccurred())
			Expect(brain.IsRetryable(err)).To(BeTrue())
			Expect(deliverer.callCount()).To(BeZero())

			out, err := orch.HandleMessage(ctx, msg)
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Status).To(Equal(brain.OutcomeDelivered))
			Expect(ledger.calls[0].IdempotencyKey).To(Equal(ledger.calls[1].IdempotencyKey))
			Expect(gen.callCount()).To(Equal(1))
			Expect(deliverer.callCount()).To(Equal(1))
		})

		It("delivers without recharging when the crash happened after the charge", func() {
			failing := &failingCheckpoints{
				MemoryCheckpointStore: checkpoints,
				failOn: func(run *model.Run) bool {
					return run.Settlement == model.SettlementDelivered
				},
			}
			deps.Checkpoints = failing
			orch = build()

			_, err := orch.HandleMessage(ctx, msg)
			Expect(err).To(HaveOccurred())

			run, _ := checkpoints.Get(ctx, msg.Key(), msg.EventID)
			Expect(run.Settlement).To(Equal(model.SettlementCharged))

			_, err = orch.HandleMessage(ctx, msg)
			Expect(err).NotTo(HaveOccurred())
			Expect(ledger.callCount()).To(Equal(1))
		})
	})

	Describe("settlement failures", func() {
		It("discards the reply and disables auto-reply on insufficient balance", func() {
			ledger.applyFn = func(context.Context, chargeCall) (model.ChargeResult, error) {
				return model.ChargeResult{Success: false, NewBalance: 10, Message: "insufficient balance: have 10, need 40"}, nil
			}

			out, err := orch.HandleMessage(ctx, msg)

			Expect(err).NotTo(HaveOccurred())
			Expect(out.Status).To(Equal(brain.OutcomeInsufficientBalance))
			Expect(out.ReplyText).To(BeEmpty())
			Expect(deliverer.callCount()).To(BeZero())
			Expect(merchants.disableCalls).To(Equal([]string{"merchant-1"}))

			_, err = orch.HandleMessage(ctx, msg)
			Expect(err).NotTo(HaveOccurred())
			Expect(merchants.disableCalls).To(HaveLen(1))
			Expect(deliverer.callCount()).To(BeZero())
		})

		It("treats other charge rejections as fatal without delivering", func() {
			ledger.applyFn = func(context.Context, chargeCall) (model.ChargeResult, error) {
				return model.ChargeResult{Success: false, Message: "account frozen"}, nil
			}

			_, err := orch.HandleMessage(ctx, msg)

			Expect(err).To(MatchError(brain.ErrBilling))
			Expect(brain.IsRetryable(err)).To(BeFalse())
			Expect(deliverer.callCount()).To(BeZero())
			Expect(merchants.disableCalls).To(BeEmpty())
		})

		It("keeps the charge when delivery fails and does not retry", func() {
			deliverer.deliverFn = func(context.Context, delivery) error { return errors.New("graph api 500") }

			out, err := orch.HandleMessage(ctx, msg)

			Expect(err).NotTo(HaveOccurred())
			Expect(out.Status).To(Equal(brain.OutcomeDeliveryFailed))
			Expect(out.ReplyText).To(BeEmpty())
			Expect(ledger.callCount()).To(Equal(1))
			Expect(messages.outgoing).To(BeEmpty())

			_, err = orch.HandleMessage(ctx, msg)
			Expect(err).NotTo(HaveOccurred())
			Expect(deliverer.callCount()).To(Equal(1))
			Expect(ledger.callCount()).To(Equal(1))
		})
	})

	Describe("routing", func() {
		It("drops messages for unknown channels without replying", func() {
			merchants.resolveFn = func(context.Context, string) (*model.Merchant, error) {
				return nil, store.ErrNotFound
			}

			out, err := orch.HandleMessage(ctx, msg)

			Expect(err).NotTo(HaveOccurred())
			Expect(out.Status).To(Equal(brain.OutcomeSkipped))
			Expect(gen.callCount()).To(BeZero())
			Expect(deliverer.callCount()).To(BeZero())
			_, err = orch.Inspect(ctx, msg.Key())
			Expect(err).To(MatchError(store.ErrNotFound))
		})

		It("skips merchants with auto-reply disabled", func() {
			merchants.resolveFn = func(_ context.Context, channelID string) (*model.Merchant, error) {
				return &model.Merchant{ID: "merchant-1", ChannelID: channelID, AutoReplyEnabled: false}, nil
			}

			out, err := orch.HandleMessage(ctx, msg)

			Expect(err).NotTo(HaveOccurred())
			Expect(out.Status).To(Equal(brain.OutcomeSkipped))
			Expect(ledger.callCount()).To(BeZero())
		})

		It("retries when the merchant lookup fails", func() {
			merchants.resolveFn = func(context.Context, string) (*model.Merchant, error) {
				return nil, errors.New("db down")
			}

			_, err := orch.HandleMessage(ctx, msg)
			Expect(brain.IsRetryable(err)).To(BeTrue())
		})

		It("rejects messages missing routing identifiers", func() {
			msg.ChannelID = ""

			_, err := orch.HandleMessage(ctx, msg)

			Expect(err).To(MatchError(brain.ErrInvalidMessage))
			Expect(brain.IsRetryable(err)).To(BeFalse())
		})
	})

	Describe("per-conversation serialization", func() {
		It("never runs two events of the same conversation at once", func() {
			var (
				mu             sync.Mutex
				active, maxRun int
			)
			gen.generateFn = func(context.Context, llm.GenerateRequest) (string, error) {
				mu.Lock()
				active++
				if active > maxRun {
					maxRun = active
				}
				mu.Unlock()
				time.Sleep(20 * time.Millisecond)
				mu.Lock()
				active--
				mu.Unlock()
				return words(20), nil
			}

			var wg sync.WaitGroup
			for _, eventID := range []string{"e1", "e2", "e3", "e4"} {
				wg.Add(1)
				go func(eventID string) {
					defer GinkgoRecover()
					defer wg.Done()
					m := msg
					m.EventID = eventID
					_, err := orch.HandleMessage(ctx, m)
					Expect(err).NotTo(HaveOccurred())
				}(eventID)
			}
			wg.Wait()

			Expect(maxRun).To(Equal(1))
			Expect(deliverer.callCount()).To(Equal(4))
		})

		It("runs different conversations in parallel", func() {
			release := make(chan struct{})
			started := make(chan string, 2)
			gen.generateFn = func(_ context.Context, req llm.GenerateRequest) (string, error) {
				started <- req.UserPrompt
				<-release
				return words(5), nil
			}

			var wg sync.WaitGroup
			for _, cp := range []string{"628111", "628222"} {
				wg.Add(1)
				go func(cp string) {
					defer GinkgoRecover()
					defer wg.Done()
					m := msg
					m.CounterpartyID = cp
					_, err := orch.HandleMessage(ctx, m)
					Expect(err).NotTo(HaveOccurred())
				}(cp)
			}

			Eventually(started).Should(HaveLen(2))
			close(release)
			wg.Wait()
		})
	})
})
