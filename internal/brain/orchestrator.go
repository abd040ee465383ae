package brain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"autoreply.app/relay/common/id"
	"autoreply.app/relay/common/logger"
	"autoreply.app/relay/internal/model"
	"autoreply.app/relay/internal/store"
)

const defaultHistoryLimit = 10

type InboundMessage struct {
	EventID        string
	ChannelID      string
	CounterpartyID string
	Text           string
}

func (m InboundMessage) Key() model.ConversationKey {
	return model.ConversationKey{ChannelID: m.ChannelID, CounterpartyID: m.CounterpartyID}
}

type OutcomeStatus string

const (
	OutcomeDelivered           OutcomeStatus = "delivered"
	OutcomeSkipped             OutcomeStatus = "skipped"
	OutcomeInsufficientBalance OutcomeStatus = "insufficient_balance"
	OutcomeDeliveryFailed      OutcomeStatus = "delivery_failed"
)

// Outcome is what the caller learns about one inbound message. ReplyText is empty
// whenever nothing was delivered.
type Outcome struct {
	Status       OutcomeStatus
	Key          model.ConversationKey
	EventID      string
	Decision     model.Decision
	ReplyText    string
	ChargeAmount int64
	ChargeReason string
	NewBalance   *int64
	// Replayed is set when the event had already been settled and nothing was redone.
	Replayed bool
	Reason   string
}

type OrchestratorConfig struct {
	HistoryLimit int
}

// Dependencies wires the collaborators of a run. Every field is required.
type Dependencies struct {
	Merchants   MerchantDirectory
	Configs     ConfigSource
	Profiles    ProfileSource
	Messages    MessageLog
	Ledger      Ledger
	Deliverer   Deliverer
	Checkpoints CheckpointStore
	Locker      KeyLocker

	Classifier *Classifier
	Responder  *Responder
	Orders     *OrderExtractor
	Escalation *EscalationHandler
	Billing    *BillingCalculator
}

// Orchestrator runs ANALYZE -> CONTEXT -> {ESCALATE|ORDER|RESPOND} -> BILL -> DONE for one
// inbound message, checkpointing after each stage, then settles the charge before delivery.
type Orchestrator struct {
	cfg  OrchestratorConfig
	deps Dependencies
}

func NewOrchestrator(cfg OrchestratorConfig, deps Dependencies) *Orchestrator {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	return &Orchestrator{cfg: cfg, deps: deps}
}

// HandleMessage processes one inbound event. Runs for the same conversation key are
// serialized; replaying a settled event returns the stored outcome without charging or
// delivering again. Returned errors are *ProcessingError.
func (o *Orchestrator) HandleMessage(ctx context.Context, msg InboundMessage) (*Outcome, error) {
	key := msg.Key()
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		ConversationKey: logger.Ptr(key.String()),
		EventID:         logger.Ptr(msg.EventID),
		Component:       "relay.brain.orchestrator",
	})

	if !key.Valid() || msg.EventID == "" || strings.TrimSpace(msg.Text) == "" {
		return nil, NewFatalError(fmt.Errorf("%w: channel, counterparty, event id and text are required", ErrInvalidMessage))
	}

	merchant, err := o.deps.Merchants.ResolveMerchant(ctx, key.ChannelID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.WarnContext(ctx, "no merchant owns channel, dropping message")
			return skipped(key, msg.EventID, ErrMerchantNotFound.Error()), nil
		}
		return nil, NewRetryableError(fmt.Errorf("resolving merchant: %w", err))
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{MerchantID: &merchant.ID})

	unlock, err := o.deps.Locker.Lock(ctx, key.String())
	if err != nil {
		return nil, NewRetryableError(fmt.Errorf("locking conversation: %w", err))
	}
	defer unlock()

	run, err := o.deps.Checkpoints.Get(ctx, key, msg.EventID)
	switch {
	case err == nil:
		if run.Settlement.Settled() {
			slog.InfoContext(ctx, "event already settled, returning stored outcome",
				"settlement", run.Settlement)
			out := outcomeFromRun(run)
			out.Replayed = true
			return out, nil
		}
		slog.InfoContext(ctx, "resuming checkpointed run", "stage", run.Stage, "settlement", run.Settlement)
	case errors.Is(err, store.ErrNotFound):
		if !merchant.AutoReplyEnabled {
			slog.InfoContext(ctx, "auto-reply disabled for merchant, skipping")
			return skipped(key, msg.EventID, "auto-reply disabled"), nil
		}
		run = o.newRun(ctx, msg, merchant.ID)
		if err := o.checkpoint(ctx, run); err != nil {
			return nil, err
		}
	default:
		return nil, NewRetryableError(fmt.Errorf("loading checkpoint: %w", err))
	}

	if err := o.advance(ctx, run); err != nil {
		return nil, err
	}

	return o.settle(ctx, run, merchant.ID)
}

// Inspect returns the most recent run for a conversation.
func (o *Orchestrator) Inspect(ctx context.Context, key model.ConversationKey) (*model.Run, error) {
	return o.deps.Checkpoints.Latest(ctx, key)
}

// newRun builds the initial state. AI config and history load concurrently; either
// failing degrades to defaults.
func (o *Orchestrator) newRun(ctx context.Context, msg InboundMessage, merchantID string) *model.Run {
	state := model.ConversationState{
		Key:         msg.Key(),
		EventID:     msg.EventID,
		MessageText: msg.Text,
		MerchantID:  merchantID,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cfg, err := o.deps.Configs.GetAIConfig(gctx, merchantID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			slog.WarnContext(gctx, "loading ai config failed, using defaults", "error", err)
		}
		if cfg == nil {
			def := model.DefaultAIConfig()
			cfg = &def
		}
		state.AIConfig = cfg
		return nil
	})
	g.Go(func() error {
		history, err := o.deps.Messages.RecentHistory(gctx, state.Key, o.cfg.HistoryLimit+1)
		if err != nil {
			slog.WarnContext(gctx, "loading history failed, continuing without it", "error", err)
			return nil
		}
		state.History = trimCurrentMessage(history, msg.Text, o.cfg.HistoryLimit)
		return nil
	})
	_ = g.Wait()

	now := time.Now()
	return &model.Run{
		ID:         id.New(),
		Key:        state.Key,
		EventID:    msg.EventID,
		Stage:      model.StageAnalyze,
		Settlement: model.SettlementPending,
		State:      state,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// trimCurrentMessage drops the stored copy of the message being processed, then keeps
// the last limit turns.
func trimCurrentMessage(history []model.Turn, text string, limit int) []model.Turn {
	if n := len(history); n > 0 {
		last := history[n-1]
		if last.Direction == model.DirectionIncoming && strings.TrimSpace(last.Text) == strings.TrimSpace(text) {
			history = history[:n-1]
		}
	}
	return lastTurns(history, limit)
}

// advance executes stages from the run's current stage until DONE.
func (o *Orchestrator) advance(ctx context.Context, run *model.Run) error {
	for run.Stage != model.StageDone {
		stage := run.Stage
		sctx := logger.WithLogFields(ctx, logger.LogFields{Stage: logger.Ptr(string(stage))})
		sc := logger.StartSpan(sctx, "brain.stage."+string(stage))

		next, err := o.runStage(sc.Context(), stage, &run.State)
		if err != nil {
			sc.RecordError(err)
			sc.End()
			return NewFatalError(fmt.Errorf("stage %s: %w", stage, err))
		}
		sc.End()

		run.Stage = next
		if err := o.checkpoint(sctx, run); err != nil {
			return err
		}
		slog.DebugContext(sctx, "stage complete", "next", next)

		if err := o.notifyOrder(sctx, run); err != nil {
			return err
		}
	}
	// A run resumed at DONE may still hold an unclaimed notification.
	return o.notifyOrder(ctx, run)
}

// notifyOrder tells the merchant about a captured order at most once per run. The claim is
// checkpointed before the notifier is called, so a resumed run never notifies again.
func (o *Orchestrator) notifyOrder(ctx context.Context, run *model.Run) error {
	state := &run.State
	if state.OrderSummary == nil || state.MerchantNotified {
		return nil
	}

	state.MerchantNotified = true
	if err := o.checkpoint(ctx, run); err != nil {
		state.MerchantNotified = false
		return err
	}

	o.deps.Orders.Notify(ctx, state, *state.OrderSummary)
	return nil
}

// runStage dispatches on the stage. Component failures are absorbed inside each stage;
// an error here means a write-once field was written twice.
func (o *Orchestrator) runStage(ctx context.Context, stage model.Stage, state *model.ConversationState) (model.Stage, error) {
	switch stage {
	case model.StageAnalyze:
		return o.analyze(ctx, state)
	case model.StageContext:
		return o.enrich(ctx, state)
	case model.StageEscalate:
		return model.StageBill, state.SetReply(o.deps.Escalation.Reply(ctx, state))
	case model.StageOrder:
		return o.captureOrder(ctx, state)
	case model.StageRespond:
		return model.StageBill, state.SetReply(o.deps.Responder.Respond(ctx, state))
	case model.StageBill:
		return o.bill(ctx, state)
	default:
		return "", fmt.Errorf("unknown stage %q", stage)
	}
}

func (o *Orchestrator) analyze(ctx context.Context, state *model.ConversationState) (model.Stage, error) {
	c := o.deps.Classifier.Classify(ctx, state.MessageText, state.History)
	if err := state.SetDecision(c.Decision, c.Confidence, c.Reasoning); err != nil {
		return "", err
	}
	state.OrderIntentFlag = c.OrderIntent

	slog.InfoContext(ctx, "message classified",
		"decision", c.Decision,
		"confidence", c.Confidence,
		"reasoning", logger.Truncate(c.Reasoning, 200))
	return model.StageContext, nil
}

// enrich always runs, even on the escalate path. A missing or failing profile becomes
// an empty one.
func (o *Orchestrator) enrich(ctx context.Context, state *model.ConversationState) (model.Stage, error) {
	profile, err := o.deps.Profiles.GetBusinessProfile(ctx, state.MerchantID)
	switch {
	case err != nil && !errors.Is(err, store.ErrNotFound):
		slog.WarnContext(ctx, "business profile unavailable, continuing without it",
			"error", fmt.Errorf("%w: %w", ErrEnrichment, err))
		profile = nil
	case profile == nil:
		slog.InfoContext(ctx, "no business profile found")
	}
	if profile == nil {
		profile = &model.BusinessProfile{}
	}
	state.BusinessProfile = profile

	switch state.Decision {
	case model.DecisionEscalate:
		return model.StageEscalate, nil
	case model.DecisionProcessOrder:
		return model.StageOrder, nil
	default:
		return model.StageRespond, nil
	}
}

func (o *Orchestrator) captureOrder(ctx context.Context, state *model.ConversationState) (model.Stage, error) {
	reply, summary := o.deps.Orders.Extract(ctx, state)
	if err := state.SetReply(reply); err != nil {
		return "", err
	}
	state.OrderSummary = &summary
	state.OrderIntentFlag = true
	return model.StageBill, nil
}

func (o *Orchestrator) bill(ctx context.Context, state *model.ConversationState) (model.Stage, error) {
	amount, reason := o.deps.Billing.Calculate(ctx, state.Decision, state.Reply(), state.AIConfig)
	if err := state.SetCharge(amount, reason); err != nil {
		return "", err
	}
	slog.InfoContext(ctx, "charge calculated", "amount", amount, "reason", reason)
	return model.StageDone, nil
}

// settle applies the charge, then delivers. A reply is never delivered before its charge
// is applied. A delivery failure after charging is not rolled back.
func (o *Orchestrator) settle(ctx context.Context, run *model.Run, merchantID string) (*Outcome, error) {
	state := &run.State
	var newBalance *int64

	if run.Settlement == model.SettlementPending {
		if amount := state.Charge(); amount > 0 {
			res, err := o.deps.Ledger.ApplyCharge(ctx, merchantID, amount, state.ChargeReason, chargeKey(run))
			if err != nil {
				return nil, NewRetryableError(fmt.Errorf("applying charge: %w", err))
			}
			if !res.Success {
				if isBalanceMessage(res.Message) {
					return o.insufficientBalance(ctx, run, merchantID, res)
				}
				return nil, NewFatalError(fmt.Errorf("%w: charge rejected: %s", ErrBilling, res.Message))
			}
			newBalance = &res.NewBalance
		}

		run.Settlement = model.SettlementCharged
		if err := o.checkpoint(ctx, run); err != nil {
			return nil, err
		}
	}

	if err := o.deps.Deliverer.Deliver(ctx, run.Key.ChannelID, run.Key.CounterpartyID, state.Reply()); err != nil {
		slog.ErrorContext(ctx, "reply not delivered after charge was applied, charge left unreconciled",
			"error", fmt.Errorf("%w: %w", ErrDelivery, err),
			"charge_amount", state.Charge())
		run.Settlement = model.SettlementDeliveryFailed
		if cerr := o.checkpoint(ctx, run); cerr != nil {
			return nil, cerr
		}
		out := outcomeFromRun(run)
		out.NewBalance = newBalance
		return out, nil
	}

	run.Settlement = model.SettlementDelivered
	if err := o.checkpoint(ctx, run); err != nil {
		return nil, err
	}

	if err := o.deps.Messages.RecordOutgoing(ctx, run.Key, state.Reply()); err != nil {
		slog.WarnContext(ctx, "recording outgoing message failed", "error", err)
	}

	slog.InfoContext(ctx, "reply delivered",
		"decision", state.Decision,
		"charge_amount", state.Charge())

	out := outcomeFromRun(run)
	out.NewBalance = newBalance
	return out, nil
}

func (o *Orchestrator) insufficientBalance(ctx context.Context, run *model.Run, merchantID string, res model.ChargeResult) (*Outcome, error) {
	slog.WarnContext(ctx, "insufficient balance, discarding reply and disabling auto-reply",
		"error", ErrInsufficientBalance,
		"balance", res.NewBalance,
		"charge_amount", run.State.Charge())

	if err := o.deps.Merchants.DisableAutoReply(ctx, merchantID); err != nil {
		slog.ErrorContext(ctx, "disabling auto-reply failed", "error", err)
	}

	run.Settlement = model.SettlementInsufficientBalance
	if err := o.checkpoint(ctx, run); err != nil {
		return nil, err
	}

	out := outcomeFromRun(run)
	out.NewBalance = &res.NewBalance
	return out, nil
}

func (o *Orchestrator) checkpoint(ctx context.Context, run *model.Run) error {
	run.UpdatedAt = time.Now()
	if err := o.deps.Checkpoints.Save(ctx, run); err != nil {
		return NewRetryableError(fmt.Errorf("saving checkpoint (stage=%s): %w", run.Stage, err))
	}
	return nil
}

// chargeKey makes ledger debits idempotent per inbound event.
func chargeKey(run *model.Run) string {
	return "charge:" + run.Key.String() + ":" + run.EventID
}

func isBalanceMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "insufficient") || strings.Contains(lower, "balance")
}

func outcomeFromRun(run *model.Run) *Outcome {
	out := &Outcome{
		Key:          run.Key,
		EventID:      run.EventID,
		Decision:     run.State.Decision,
		ChargeAmount: run.State.Charge(),
		ChargeReason: run.State.ChargeReason,
	}
	switch run.Settlement {
	case model.SettlementDelivered:
		out.Status = OutcomeDelivered
		out.ReplyText = run.State.Reply()
	case model.SettlementInsufficientBalance:
		out.Status = OutcomeInsufficientBalance
		out.Reason = ErrInsufficientBalance.Error()
	case model.SettlementDeliveryFailed:
		out.Status = OutcomeDeliveryFailed
		out.Reason = ErrDelivery.Error()
	}
	return out
}

func skipped(key model.ConversationKey, eventID, reason string) *Outcome {
	return &Outcome{Status: OutcomeSkipped, Key: key, EventID: eventID, Reason: reason}
}
