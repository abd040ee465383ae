package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"autoreply.app/relay/internal/model"
	"autoreply.app/relay/internal/store"
)

var (
	ErrMerchantNotFound = errors.New("merchant not found")
	ErrInvalidAmount    = errors.New("amount must be positive")
)

type OnboardParams struct {
	MerchantID     string
	ChannelID      string
	AIConfig       *model.AIConfig
	Profile        *model.BusinessProfile
	InitialBalance int64
}

type BalanceView struct {
	MerchantID       string
	Balance          int64
	AutoReplyEnabled bool
	Entries          []model.LedgerEntry
}

type MerchantService interface {
	Onboard(ctx context.Context, params OnboardParams) (*model.Merchant, error)
	TopUp(ctx context.Context, merchantID string, amount int64) (*BalanceView, error)
	Balance(ctx context.Context, merchantID string) (*BalanceView, error)
}

type merchantService struct {
	txRunner  TxRunner
	merchants store.MerchantStore
	ledger    store.LedgerStore
}

func NewMerchantService(txRunner TxRunner, merchants store.MerchantStore, ledger store.LedgerStore) MerchantService {
	return &merchantService{txRunner: txRunner, merchants: merchants, ledger: ledger}
}

// Onboard creates or updates a merchant with its settings and opening credit in one transaction.
func (s *merchantService) Onboard(ctx context.Context, params OnboardParams) (*model.Merchant, error) {
	if strings.TrimSpace(params.MerchantID) == "" || strings.TrimSpace(params.ChannelID) == "" {
		return nil, fmt.Errorf("merchant_id and channel_id are required")
	}
	if params.InitialBalance < 0 {
		return nil, ErrInvalidAmount
	}

	merchant := &model.Merchant{
		ID:               params.MerchantID,
		ChannelID:        params.ChannelID,
		AutoReplyEnabled: true,
	}

	err := s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		if err := sp.Merchants().Upsert(ctx, merchant); err != nil {
			return fmt.Errorf("upserting merchant: %w", err)
		}
		if params.AIConfig != nil {
			cfg := *params.AIConfig
			cfg.CreativityLevel = model.ClampLevel(cfg.CreativityLevel)
			cfg.FormalityLevel = model.ClampLevel(cfg.FormalityLevel)
			cfg.MaxReplyLengthLevel = model.ClampLevel(cfg.MaxReplyLengthLevel)
			if err := sp.AIConfigs().Upsert(ctx, merchant.ID, cfg); err != nil {
				return fmt.Errorf("upserting ai config: %w", err)
			}
		}
		if params.Profile != nil {
			if err := sp.Profiles().Upsert(ctx, merchant.ID, *params.Profile); err != nil {
				return fmt.Errorf("upserting business profile: %w", err)
			}
		}
		if params.InitialBalance > 0 {
			if _, err := sp.Ledger().TopUp(ctx, merchant.ID, params.InitialBalance, "initial credit"); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "merchant onboarded",
		"merchant_id", merchant.ID,
		"channel_id", merchant.ChannelID,
		"initial_balance", params.InitialBalance)
	return merchant, nil
}

// TopUp credits the balance and switches auto-reply back on.
func (s *merchantService) TopUp(ctx context.Context, merchantID string, amount int64) (*BalanceView, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	err := s.txRunner.WithTx(ctx, func(sp StoreProvider) error {
		if _, err := sp.Merchants().GetByID(ctx, merchantID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrMerchantNotFound
			}
			return fmt.Errorf("fetching merchant: %w", err)
		}
		if _, err := sp.Ledger().TopUp(ctx, merchantID, amount, "top-up"); err != nil {
			return err
		}
		return sp.Merchants().SetAutoReply(ctx, merchantID, true)
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "merchant balance topped up", "merchant_id", merchantID, "amount", amount)
	return s.Balance(ctx, merchantID)
}

func (s *merchantService) Balance(ctx context.Context, merchantID string) (*BalanceView, error) {
	merchant, err := s.merchants.GetByID(ctx, merchantID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrMerchantNotFound
		}
		return nil, fmt.Errorf("fetching merchant: %w", err)
	}

	balance, err := s.ledger.Balance(ctx, merchantID)
	if err != nil {
		return nil, fmt.Errorf("reading balance: %w", err)
	}
	entries, err := s.ledger.ListEntries(ctx, merchantID, 20)
	if err != nil {
		return nil, fmt.Errorf("listing ledger entries: %w", err)
	}

	return &BalanceView{
		MerchantID:       merchant.ID,
		Balance:          balance,
		AutoReplyEnabled: merchant.AutoReplyEnabled,
		Entries:          entries,
	}, nil
}
