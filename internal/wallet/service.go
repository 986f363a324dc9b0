// Package wallet is the HTTP-facing layer over the ledger engine. Amounts
// cross this boundary as fixed two-decimal strings; parsing failures surface
// as invalid-amount errors before any engine call.
package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/Vitls1979/online-platform/internal/ledger"
	"github.com/Vitls1979/online-platform/internal/money"
)

// Service adapts string-typed API inputs to the ledger engine.
type Service struct {
	engine *ledger.Engine
}

// NewService builds a wallet service instance.
func NewService(engine *ledger.Engine) *Service {
	return &Service{engine: engine}
}

// BalanceSnapshot is the wallet balance with every bucket rendered as a
// fixed two-decimal string.
type BalanceSnapshot struct {
	UserID    string
	Currency  string
	Available string
	Bonus     string
	Locked    string
	UpdatedAt time.Time
}

func snapshot(bal ledger.Balance) BalanceSnapshot {
	return BalanceSnapshot{
		UserID:    bal.UserID,
		Currency:  bal.Currency,
		Available: bal.Available.String(),
		Bonus:     bal.Bonus.String(),
		Locked:    bal.Locked.String(),
		UpdatedAt: bal.UpdatedAt,
	}
}

func parseAmount(raw string) (money.Money, error) {
	amount, err := money.Parse(raw)
	if err != nil {
		return money.Zero, fmt.Errorf("%w: %v", ledger.ErrInvalidAmount, err)
	}
	return amount, nil
}

// Balance returns the wallet's current buckets.
func (s *Service) Balance(ctx context.Context, userID, currency string) (BalanceSnapshot, error) {
	bal, err := s.engine.GetBalance(ctx, userID, currency)
	if err != nil {
		return BalanceSnapshot{}, err
	}
	return snapshot(bal), nil
}

// Transactions returns the wallet's mutation history, most recent first.
func (s *Service) Transactions(ctx context.Context, userID, currency string, limit, offset int) ([]ledger.Transaction, error) {
	return s.engine.ListTransactions(ctx, userID, currency, limit, offset)
}

// CreditInput captures a synchronous credit request.
type CreditInput struct {
	UserID         string
	Currency       string
	Amount         string
	Type           string
	IdempotencyKey string
	Metadata       map[string]any
}

// Credit applies funds to the available bucket.
func (s *Service) Credit(ctx context.Context, in CreditInput) (ledger.Transaction, BalanceSnapshot, error) {
	amount, err := parseAmount(in.Amount)
	if err != nil {
		return ledger.Transaction{}, BalanceSnapshot{}, err
	}
	tx, bal, err := s.engine.Credit(ctx, ledger.CreditInput{
		UserID:         in.UserID,
		Currency:       in.Currency,
		Amount:         amount,
		Type:           ledger.TransactionType(in.Type),
		IdempotencyKey: in.IdempotencyKey,
		Metadata:       in.Metadata,
	})
	if err != nil {
		return ledger.Transaction{}, BalanceSnapshot{}, err
	}
	return tx, snapshot(bal), nil
}

// DebitInput captures a synchronous debit request.
type DebitInput struct {
	UserID         string
	Currency       string
	Amount         string
	Type           string
	IdempotencyKey string
	LockFunds      bool
	Metadata       map[string]any
}

// Debit removes funds from the available bucket, optionally locking them.
func (s *Service) Debit(ctx context.Context, in DebitInput) (ledger.Transaction, BalanceSnapshot, error) {
	amount, err := parseAmount(in.Amount)
	if err != nil {
		return ledger.Transaction{}, BalanceSnapshot{}, err
	}
	tx, bal, err := s.engine.Debit(ctx, ledger.DebitInput{
		UserID:         in.UserID,
		Currency:       in.Currency,
		Amount:         amount,
		Type:           ledger.TransactionType(in.Type),
		IdempotencyKey: in.IdempotencyKey,
		LockFunds:      in.LockFunds,
		Metadata:       in.Metadata,
	})
	if err != nil {
		return tx, snapshot(bal), err
	}
	return tx, snapshot(bal), nil
}

// DepositInput captures a gateway-backed deposit request.
type DepositInput struct {
	UserID              string
	Currency            string
	Amount              string
	IdempotencyKey      string
	SourceTransactionID string
	Metadata            map[string]any
}

// CreateDeposit opens a deposit intent with the payment provider.
func (s *Service) CreateDeposit(ctx context.Context, in DepositInput) (ledger.DepositIntentResult, error) {
	amount, err := parseAmount(in.Amount)
	if err != nil {
		return ledger.DepositIntentResult{}, err
	}
	return s.engine.CreateDepositIntent(ctx, ledger.DepositInput{
		UserID:              in.UserID,
		Currency:            in.Currency,
		Amount:              amount,
		IdempotencyKey:      in.IdempotencyKey,
		SourceTransactionID: in.SourceTransactionID,
		Metadata:            in.Metadata,
	})
}

// ReconcileWebhook forwards a provider callback to the engine.
func (s *Service) ReconcileWebhook(ctx context.Context, externalID, status, failureReason string) error {
	return s.engine.ReconcileWebhook(ctx, externalID, status, failureReason)
}

// ReserveStake locks stake funds ahead of settlement.
func (s *Service) ReserveStake(ctx context.Context, userID, currency, amount string) (BalanceSnapshot, error) {
	stake, err := parseAmount(amount)
	if err != nil {
		return BalanceSnapshot{}, err
	}
	bal, err := s.engine.ReserveStake(ctx, userID, currency, stake)
	if err != nil {
		return snapshot(bal), err
	}
	return snapshot(bal), nil
}

// SettleBet releases a reserved stake and credits the win amount.
func (s *Service) SettleBet(ctx context.Context, userID, currency, stakeAmount, winAmount string) (BalanceSnapshot, error) {
	stake, err := parseAmount(stakeAmount)
	if err != nil {
		return BalanceSnapshot{}, err
	}
	win, err := parseAmount(winAmount)
	if err != nil {
		return BalanceSnapshot{}, err
	}
	bal, err := s.engine.SettleBet(ctx, userID, currency, stake, win)
	if err != nil {
		return snapshot(bal), err
	}
	return snapshot(bal), nil
}
