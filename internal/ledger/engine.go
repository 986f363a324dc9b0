package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Vitls1979/online-platform/internal/events"
	"github.com/Vitls1979/online-platform/internal/gateway"
	"github.com/Vitls1979/online-platform/internal/money"
)

// Engine orchestrates every balance mutation: it validates preconditions,
// executes the read-validate-write cycle under the per-wallet lock, persists
// the transaction and audit rows atomically with the balance, and emits
// domain events after commit.
type Engine struct {
	store   Store
	gateway gateway.PaymentGateway
	sink    events.Sink
	logger  *slog.Logger
	now     func() time.Time
}

// NewEngine wires the engine. The gateway may be nil when deposit-intent
// flows are not used; a nil sink drops events.
func NewEngine(store Store, gw gateway.PaymentGateway, sink events.Sink, logger *slog.Logger) *Engine {
	if store == nil {
		panic("ledger: store is required")
	}
	if sink == nil {
		sink = events.NopSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:   store,
		gateway: gw,
		sink:    sink,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreditInput describes a synchronous credit.
type CreditInput struct {
	UserID         string
	Currency       string
	Amount         money.Money
	Type           TransactionType
	IdempotencyKey string
	Metadata       map[string]any
}

// DebitInput describes a synchronous debit. When LockFunds is set the amount
// moves from available to locked instead of leaving the wallet.
type DebitInput struct {
	UserID         string
	Currency       string
	Amount         money.Money
	Type           TransactionType
	IdempotencyKey string
	LockFunds      bool
	Metadata       map[string]any
}

// DepositInput describes a gateway-backed deposit intent.
type DepositInput struct {
	UserID              string
	Currency            string
	Amount              money.Money
	IdempotencyKey      string
	SourceTransactionID string
	Metadata            map[string]any
}

// DepositIntentResult pairs the provider intent with the pending transaction
// that tracks it.
type DepositIntentResult struct {
	IntentID    string
	RedirectURL string
	Transaction Transaction
}

const redirectURLMetadataKey = "redirect_url"

// GetBalance returns the wallet's balance without taking the mutation lock.
// The result may trail an in-flight mutation and must not feed back into
// mutation decisions.
func (e *Engine) GetBalance(ctx context.Context, userID, currency string) (Balance, error) {
	return e.store.FetchBalance(ctx, userID, currency)
}

// ListTransactions returns the wallet's mutation history, most recent first.
func (e *Engine) ListTransactions(ctx context.Context, userID, currency string, limit, offset int) ([]Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return e.store.ListTransactions(ctx, userID, currency, limit, offset)
}

// Credit applies amount to the wallet's available bucket and records a
// success transaction. A repeated idempotency key returns the original
// transaction without mutating the balance again.
func (e *Engine) Credit(ctx context.Context, in CreditInput) (Transaction, Balance, error) {
	if !in.Amount.IsPositive() {
		return Transaction{}, Balance{}, ErrInvalidAmount
	}
	txType := in.Type
	if txType == "" {
		txType = TypeAdjustment
	}
	if !txType.Valid() {
		return Transaction{}, Balance{}, fmt.Errorf("%w: unknown transaction type %q", ErrInvalidAmount, in.Type)
	}

	mut, err := e.store.Begin(ctx, in.UserID, in.Currency)
	if err != nil {
		return Transaction{}, Balance{}, fmt.Errorf("credit %s/%s: begin: %w", in.UserID, in.Currency, err)
	}
	defer rollback(ctx, mut, e.logger)

	if existing, ok, err := e.replay(ctx, mut, in.IdempotencyKey); err != nil {
		return Transaction{}, Balance{}, err
	} else if ok {
		return existing, mut.Balance(), nil
	}

	now := e.now()
	bal := mut.Balance()
	bal.Available = bal.Available.Add(in.Amount)
	bal.UpdatedAt = now

	tx := Transaction{
		ID:             uuid.NewString(),
		UserID:         in.UserID,
		Currency:       in.Currency,
		Amount:         in.Amount,
		Type:           txType,
		Status:         StatusSuccess,
		IdempotencyKey: in.IdempotencyKey,
		Metadata:       in.Metadata,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := e.persistMutation(ctx, mut, tx, bal); err != nil {
		return Transaction{}, Balance{}, fmt.Errorf("credit %s/%s: %w", in.UserID, in.Currency, err)
	}

	e.emitBalanceUpdated(ctx, bal)
	return tx, bal, nil
}

// Debit removes amount from the available bucket, optionally locking it for
// later settlement. When the available balance cannot cover the amount a
// failed transaction is recorded, the balance is left untouched, and
// ErrInsufficientFunds is returned. A repeated idempotency key returns the
// original transaction and, for a failed attempt, the original error.
func (e *Engine) Debit(ctx context.Context, in DebitInput) (Transaction, Balance, error) {
	if !in.Amount.IsPositive() {
		return Transaction{}, Balance{}, ErrInvalidAmount
	}
	txType := in.Type
	if txType == "" {
		txType = TypeWithdrawal
	}
	if !txType.Valid() {
		return Transaction{}, Balance{}, fmt.Errorf("%w: unknown transaction type %q", ErrInvalidAmount, in.Type)
	}

	mut, err := e.store.Begin(ctx, in.UserID, in.Currency)
	if err != nil {
		return Transaction{}, Balance{}, fmt.Errorf("debit %s/%s: begin: %w", in.UserID, in.Currency, err)
	}
	defer rollback(ctx, mut, e.logger)

	if existing, ok, err := e.replay(ctx, mut, in.IdempotencyKey); err != nil {
		return Transaction{}, Balance{}, err
	} else if ok {
		if existing.Status == StatusFailed {
			// A retried failed debit reports the same outcome as the first
			// attempt, not a fresh success.
			return existing, mut.Balance(), ErrInsufficientFunds
		}
		return existing, mut.Balance(), nil
	}

	now := e.now()
	bal := mut.Balance()

	tx := Transaction{
		ID:             uuid.NewString(),
		UserID:         in.UserID,
		Currency:       in.Currency,
		Amount:         in.Amount.Neg(),
		Type:           txType,
		IdempotencyKey: in.IdempotencyKey,
		Metadata:       in.Metadata,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if bal.Available.LessThan(in.Amount) {
		tx.Status = StatusFailed
		tx.FailureReason = "insufficient funds"
		if err := mut.SaveTransaction(ctx, tx); err != nil {
			return Transaction{}, Balance{}, fmt.Errorf("debit %s/%s: record failure: %w", in.UserID, in.Currency, err)
		}
		if err := mut.Commit(ctx); err != nil {
			return Transaction{}, Balance{}, fmt.Errorf("debit %s/%s: commit failure record: %w", in.UserID, in.Currency, err)
		}
		e.emit(ctx, events.TransactionFailed, events.TransactionFailedPayload{
			TransactionID: tx.ID,
			UserID:        tx.UserID,
			Reason:        tx.FailureReason,
		})
		return tx, bal, ErrInsufficientFunds
	}

	bal.Available = bal.Available.Sub(in.Amount)
	if in.LockFunds {
		bal.Locked = bal.Locked.Add(in.Amount)
	}
	bal.UpdatedAt = now
	tx.Status = StatusSuccess

	if err := e.persistMutation(ctx, mut, tx, bal); err != nil {
		return Transaction{}, Balance{}, fmt.Errorf("debit %s/%s: %w", in.UserID, in.Currency, err)
	}

	e.emitBalanceUpdated(ctx, bal)
	return tx, bal, nil
}

// CreateDepositIntent opens a deposit flow with the payment gateway and
// records a pending transaction carrying the provider reference. The gateway
// is called before any lock is taken or state persisted: on gateway failure
// nothing is written, so retrying with the same idempotency key is safe.
func (e *Engine) CreateDepositIntent(ctx context.Context, in DepositInput) (DepositIntentResult, error) {
	if !in.Amount.IsPositive() {
		return DepositIntentResult{}, ErrInvalidAmount
	}
	if e.gateway == nil {
		return DepositIntentResult{}, errors.New("payment gateway is not configured")
	}

	if in.IdempotencyKey != "" {
		existing, ok, err := e.store.FindTransactionByKey(ctx, in.IdempotencyKey)
		if err != nil {
			return DepositIntentResult{}, fmt.Errorf("deposit intent %s: idempotency lookup: %w", in.UserID, err)
		}
		if ok {
			e.logger.Info("replaying deposit intent",
				slog.String("user_id", in.UserID),
				slog.String("idempotency_key", in.IdempotencyKey),
				slog.String("transaction_id", existing.ID))
			return depositResult(existing), nil
		}
	}

	intent, err := e.gateway.CreateDepositIntent(ctx, gateway.IntentRequest{
		UserID:   in.UserID,
		Amount:   in.Amount.String(),
		Currency: in.Currency,
		Metadata: in.Metadata,
	})
	if err != nil {
		var gwErr *gateway.Error
		if errors.As(err, &gwErr) && gwErr.Rejected() {
			e.logger.Error("payment provider rejected deposit intent",
				slog.String("user_id", in.UserID),
				slog.Int("status", gwErr.Status),
				slog.String("message", gwErr.Message))
		} else {
			e.logger.Error("payment gateway call failed",
				slog.String("user_id", in.UserID),
				slog.Any("error", err))
		}
		return DepositIntentResult{}, fmt.Errorf("create deposit intent: %w", err)
	}

	now := e.now()
	metadata := make(map[string]any, len(in.Metadata)+1)
	for k, v := range in.Metadata {
		metadata[k] = v
	}
	metadata[redirectURLMetadataKey] = intent.RedirectURL

	tx := Transaction{
		ID:                  uuid.NewString(),
		UserID:              in.UserID,
		Currency:            in.Currency,
		Amount:              in.Amount,
		Type:                TypeDeposit,
		Status:              StatusPending,
		IdempotencyKey:      in.IdempotencyKey,
		SourceTransactionID: in.SourceTransactionID,
		ExternalID:          intent.ID,
		Metadata:            metadata,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	stored, created, err := e.store.CreatePending(ctx, tx)
	if err != nil {
		return DepositIntentResult{}, fmt.Errorf("deposit intent %s: persist pending: %w", in.UserID, err)
	}
	if !created {
		// A concurrent request with the same key won the insert race; its
		// transaction is the canonical one.
		e.logger.Info("duplicate deposit intent resolved to existing transaction",
			slog.String("idempotency_key", in.IdempotencyKey),
			slog.String("transaction_id", stored.ID))
	}
	return depositResult(stored), nil
}

func depositResult(tx Transaction) DepositIntentResult {
	res := DepositIntentResult{IntentID: tx.ExternalID, Transaction: tx}
	if u, ok := tx.Metadata[redirectURLMetadataKey].(string); ok {
		res.RedirectURL = u
	}
	return res
}

// ReconcileWebhook matches an asynchronous provider callback to its pending
// transaction. Unknown external references and already-terminal transactions
// are deliberate no-ops so duplicate webhook delivery is harmless.
func (e *Engine) ReconcileWebhook(ctx context.Context, externalID, status, failureReason string) error {
	tx, err := e.store.FindTransactionByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, ErrTransactionNotFound) {
			e.logger.Warn("webhook for unknown external id", slog.String("external_id", externalID))
			return nil
		}
		return fmt.Errorf("reconcile webhook %s: %w", externalID, err)
	}

	if tx.Terminal() {
		e.logger.Info("skipping already processed transaction",
			slog.String("transaction_id", tx.ID),
			slog.String("status", string(tx.Status)))
		return nil
	}

	switch status {
	case "succeeded":
		_, err = e.MarkTransactionSuccess(ctx, tx.ID)
	case "failed":
		_, err = e.MarkTransactionFailed(ctx, tx.ID, failureReason)
	default:
		e.logger.Warn("webhook with unknown status",
			slog.String("external_id", externalID),
			slog.String("status", status))
	}
	return err
}

// MarkTransactionSuccess finalizes a pending transaction and applies its
// amount to the wallet. The pending status is re-checked under the wallet
// lock so a concurrent reconciliation of the same transaction applies the
// balance mutation exactly once.
func (e *Engine) MarkTransactionSuccess(ctx context.Context, transactionID string) (Transaction, error) {
	head, err := e.store.FindTransaction(ctx, transactionID)
	if err != nil {
		return Transaction{}, fmt.Errorf("mark success %s: %w", transactionID, err)
	}

	mut, err := e.store.Begin(ctx, head.UserID, head.Currency)
	if err != nil {
		return Transaction{}, fmt.Errorf("mark success %s: begin: %w", transactionID, err)
	}
	defer rollback(ctx, mut, e.logger)

	tx, err := mut.LockTransaction(ctx, transactionID)
	if err != nil {
		return Transaction{}, fmt.Errorf("mark success %s: lock: %w", transactionID, err)
	}
	if tx.Terminal() {
		e.logger.Warn("transaction already terminal, skipping success mark",
			slog.String("transaction_id", tx.ID),
			slog.String("status", string(tx.Status)))
		return tx, nil
	}

	now := e.now()
	tx.Status = StatusSuccess
	tx.UpdatedAt = now

	bal := mut.Balance()
	bal.Available = bal.Available.Add(tx.Amount)
	bal.UpdatedAt = now

	if err := e.persistMutation(ctx, mut, tx, bal); err != nil {
		return Transaction{}, fmt.Errorf("mark success %s: %w", transactionID, err)
	}

	e.emitBalanceUpdated(ctx, bal)
	return tx, nil
}

// MarkTransactionFailed finalizes a pending transaction as failed with the
// given reason. The balance is never touched.
func (e *Engine) MarkTransactionFailed(ctx context.Context, transactionID, reason string) (Transaction, error) {
	head, err := e.store.FindTransaction(ctx, transactionID)
	if err != nil {
		return Transaction{}, fmt.Errorf("mark failed %s: %w", transactionID, err)
	}

	mut, err := e.store.Begin(ctx, head.UserID, head.Currency)
	if err != nil {
		return Transaction{}, fmt.Errorf("mark failed %s: begin: %w", transactionID, err)
	}
	defer rollback(ctx, mut, e.logger)

	tx, err := mut.LockTransaction(ctx, transactionID)
	if err != nil {
		return Transaction{}, fmt.Errorf("mark failed %s: lock: %w", transactionID, err)
	}
	if tx.Terminal() {
		e.logger.Warn("transaction already terminal, skipping failure mark",
			slog.String("transaction_id", tx.ID),
			slog.String("status", string(tx.Status)))
		return tx, nil
	}

	tx.Status = StatusFailed
	tx.FailureReason = reason
	tx.UpdatedAt = e.now()

	if err := mut.SaveTransaction(ctx, tx); err != nil {
		return Transaction{}, fmt.Errorf("mark failed %s: save: %w", transactionID, err)
	}
	if err := mut.Commit(ctx); err != nil {
		return Transaction{}, fmt.Errorf("mark failed %s: commit: %w", transactionID, err)
	}

	e.emit(ctx, events.TransactionFailed, events.TransactionFailedPayload{
		TransactionID: tx.ID,
		UserID:        tx.UserID,
		Reason:        reason,
	})
	return tx, nil
}

// ReserveStake moves amount from available to locked ahead of a bet
// settlement. The operation is not idempotency-keyed: callers are expected
// to deliver it at most once per bet.
func (e *Engine) ReserveStake(ctx context.Context, userID, currency string, amount money.Money) (Balance, error) {
	if !amount.IsPositive() {
		return Balance{}, ErrInvalidAmount
	}

	mut, err := e.store.Begin(ctx, userID, currency)
	if err != nil {
		return Balance{}, fmt.Errorf("reserve stake %s/%s: begin: %w", userID, currency, err)
	}
	defer rollback(ctx, mut, e.logger)

	now := e.now()
	bal := mut.Balance()
	if bal.Available.LessThan(amount) {
		return bal, ErrInsufficientFunds
	}

	bal.Available = bal.Available.Sub(amount)
	bal.Locked = bal.Locked.Add(amount)
	bal.UpdatedAt = now

	tx := Transaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		Currency:  currency,
		Amount:    amount.Neg(),
		Type:      TypeBet,
		Status:    StatusSuccess,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := e.persistMutation(ctx, mut, tx, bal); err != nil {
		return Balance{}, fmt.Errorf("reserve stake %s/%s: %w", userID, currency, err)
	}

	e.emitBalanceUpdated(ctx, bal)
	return bal, nil
}

// SettleBet releases a previously reserved stake and credits the win amount,
// which may be zero for a loss. A stake that exceeds the locked bucket is
// rejected rather than allowed to drive the bucket negative. Like
// ReserveStake, settlement is not idempotency-keyed; at-most-once delivery
// is the caller's contract.
func (e *Engine) SettleBet(ctx context.Context, userID, currency string, stake, win money.Money) (Balance, error) {
	if !stake.IsPositive() || win.IsNegative() {
		return Balance{}, ErrInvalidAmount
	}

	mut, err := e.store.Begin(ctx, userID, currency)
	if err != nil {
		return Balance{}, fmt.Errorf("settle bet %s/%s: begin: %w", userID, currency, err)
	}
	defer rollback(ctx, mut, e.logger)

	now := e.now()
	bal := mut.Balance()
	if bal.Locked.LessThan(stake) {
		return bal, fmt.Errorf("%w: stake %s exceeds locked balance %s", ErrInsufficientFunds, stake, bal.Locked)
	}

	bal.Locked = bal.Locked.Sub(stake)
	bal.Available = bal.Available.Add(win)
	bal.UpdatedAt = now

	tx := Transaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		Currency:  currency,
		Amount:    win,
		Type:      TypeWin,
		Status:    StatusSuccess,
		Metadata:  map[string]any{"stake_amount": stake.String()},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := e.persistMutation(ctx, mut, tx, bal); err != nil {
		return Balance{}, fmt.Errorf("settle bet %s/%s: %w", userID, currency, err)
	}

	e.emit(ctx, events.BetSettled, events.BetSettledPayload{
		UserID:    userID,
		Currency:  currency,
		WinAmount: win.String(),
	})
	return bal, nil
}

// replay short-circuits an operation whose idempotency key already has a
// transaction. The existing record is returned as-is, whatever its terminal
// state, and no balance mutation runs.
func (e *Engine) replay(ctx context.Context, mut Mutation, key string) (Transaction, bool, error) {
	if key == "" {
		return Transaction{}, false, nil
	}
	existing, ok, err := mut.FindByIdempotencyKey(ctx, key)
	if err != nil {
		return Transaction{}, false, fmt.Errorf("idempotency lookup %q: %w", key, err)
	}
	if ok {
		e.logger.Info("replaying idempotent request",
			slog.String("idempotency_key", key),
			slog.String("transaction_id", existing.ID))
	}
	return existing, ok, nil
}

// persistMutation stages the success transaction, the new balance, and the
// audit row, then commits the unit.
func (e *Engine) persistMutation(ctx context.Context, mut Mutation, tx Transaction, bal Balance) error {
	if err := mut.SaveTransaction(ctx, tx); err != nil {
		return fmt.Errorf("save transaction: %w", err)
	}
	if err := mut.SaveBalance(ctx, bal); err != nil {
		return fmt.Errorf("save balance: %w", err)
	}
	if err := mut.AppendAudit(ctx, AuditEntry{
		ID:            uuid.NewString(),
		UserID:        bal.UserID,
		Currency:      bal.Currency,
		TransactionID: tx.ID,
		BalanceAfter:  bal.Available,
		CreatedAt:     bal.UpdatedAt,
	}); err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return mut.Commit(ctx)
}

func (e *Engine) emitBalanceUpdated(ctx context.Context, bal Balance) {
	e.emit(ctx, events.BalanceUpdated, events.BalanceUpdatedPayload{
		UserID:    bal.UserID,
		Currency:  bal.Currency,
		Available: bal.Available.String(),
		Bonus:     bal.Bonus.String(),
		Locked:    bal.Locked.String(),
	})
}

// emit delivers a domain event without letting sink failures affect the
// already-committed mutation.
func (e *Engine) emit(ctx context.Context, event string, payload any) {
	if err := e.sink.Emit(ctx, event, payload); err != nil {
		e.logger.Warn("event emission failed", slog.String("event", event), slog.Any("error", err))
	}
}

func rollback(ctx context.Context, mut Mutation, logger *slog.Logger) {
	if err := mut.Rollback(ctx); err != nil {
		logger.Error("mutation rollback failed", slog.Any("error", err))
	}
}
