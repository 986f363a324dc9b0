// Package ledger implements the wallet ledger engine: per-user, per-currency
// balances with available/bonus/locked buckets, exactly-once application of
// financial mutations, and an append-only transaction and balance-audit
// history.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/Vitls1979/online-platform/internal/money"
)

var (
	// ErrInvalidAmount occurs when an operation receives a non-positive or
	// unparsable amount.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientFunds occurs when a mutation would drive a balance
	// bucket negative.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrWalletNotFound occurs on flows that require a pre-existing wallet.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrTransactionNotFound indicates the referenced transaction does not exist.
	ErrTransactionNotFound = errors.New("transaction not found")
)

// TransactionType classifies the business reason for a mutation.
type TransactionType string

const (
	TypeDeposit    TransactionType = "deposit"
	TypeWithdrawal TransactionType = "withdrawal"
	TypeBet        TransactionType = "bet"
	TypeWin        TransactionType = "win"
	TypeBonus      TransactionType = "bonus"
	TypeAdjustment TransactionType = "adjustment"
)

// Valid reports whether t is one of the known transaction types.
func (t TransactionType) Valid() bool {
	switch t {
	case TypeDeposit, TypeWithdrawal, TypeBet, TypeWin, TypeBonus, TypeAdjustment:
		return true
	}
	return false
}

// TransactionStatus tracks the lifecycle of a mutation attempt. A transaction
// is created pending (gateway-backed flows) or directly terminal, and moves
// pending -> success or pending -> failed exactly once.
type TransactionStatus string

const (
	StatusPending TransactionStatus = "pending"
	StatusSuccess TransactionStatus = "success"
	StatusFailed  TransactionStatus = "failed"
)

// Balance is the stored per-(user, currency) wallet row. Every bucket is
// non-negative at all times; rows are created lazily on first mutation and
// never deleted.
type Balance struct {
	UserID    string
	Currency  string
	Available money.Money
	Bonus     money.Money
	Locked    money.Money
	UpdatedAt time.Time
}

// Transaction is the append-only record of one attempted mutation. Amount is
// signed: positive for credits, negative for debits. IdempotencyKey, when
// set, is unique across all transactions.
type Transaction struct {
	ID                  string
	UserID              string
	Currency            string
	Amount              money.Money
	Type                TransactionType
	Status              TransactionStatus
	IdempotencyKey      string
	SourceTransactionID string
	ExternalID          string
	Metadata            map[string]any
	FailureReason       string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Terminal reports whether the transaction reached a final state.
func (t Transaction) Terminal() bool {
	return t.Status == StatusSuccess || t.Status == StatusFailed
}

// AuditEntry records the available balance immediately after a successful
// mutation, linked to the transaction that produced it. Entries are immutable
// and append-only; the most recent entry for a wallet must always equal the
// live available balance.
type AuditEntry struct {
	ID            string
	UserID        string
	Currency      string
	TransactionID string
	BalanceAfter  money.Money
	CreatedAt     time.Time
}

// Store is the persistence contract implemented by the Postgres and
// in-memory backends. Mutating access goes exclusively through Begin; the
// read methods never take the per-wallet mutation lock and may observe
// slightly stale data, which is acceptable for display but never for
// mutation decisions.
type Store interface {
	// FetchBalance returns the stored balance or a zeroed default. It does
	// not create a row as a side effect.
	FetchBalance(ctx context.Context, userID, currency string) (Balance, error)

	// FindTransaction looks a transaction up by its identifier.
	FindTransaction(ctx context.Context, id string) (Transaction, error)

	// FindTransactionByExternalID looks a transaction up by the payment
	// gateway reference attached at deposit-intent creation.
	FindTransactionByExternalID(ctx context.Context, externalID string) (Transaction, error)

	// FindTransactionByKey looks a transaction up by idempotency key.
	FindTransactionByKey(ctx context.Context, key string) (Transaction, bool, error)

	// ListTransactions returns the wallet's transaction history, most
	// recent first.
	ListTransactions(ctx context.Context, userID, currency string, limit, offset int) ([]Transaction, error)

	// CreatePending inserts a gateway-backed pending transaction. When a
	// concurrent request already persisted a row with the same idempotency
	// key, the existing row is returned with created=false instead of an
	// error.
	CreatePending(ctx context.Context, tx Transaction) (Transaction, bool, error)

	// Begin acquires the exclusive per-(userID, currency) mutation lock,
	// lazily creating the zero balance row, and returns the unit of work
	// for one atomic mutation. A second caller for the same key blocks
	// until the first commits or rolls back.
	Begin(ctx context.Context, userID, currency string) (Mutation, error)
}

// Mutation is one atomic read-validate-write unit executed under the
// per-wallet lock. Either every staged write becomes visible at Commit or
// none do. Callers must finish every Mutation with Commit or Rollback on all
// paths; Rollback after Commit is a no-op.
type Mutation interface {
	// Balance returns the balance row as read under the lock.
	Balance() Balance

	// FindByIdempotencyKey looks up an existing transaction by key inside
	// the locked scope, closing the race between two concurrent requests
	// carrying the same key.
	FindByIdempotencyKey(ctx context.Context, key string) (Transaction, bool, error)

	// LockTransaction re-fetches a transaction with a write lock so its
	// status can be re-checked before a pending -> terminal transition.
	LockTransaction(ctx context.Context, id string) (Transaction, error)

	SaveBalance(ctx context.Context, balance Balance) error
	SaveTransaction(ctx context.Context, tx Transaction) error
	AppendAudit(ctx context.Context, entry AuditEntry) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

func zeroBalance(userID, currency string, now time.Time) Balance {
	return Balance{
		UserID:    userID,
		Currency:  currency,
		Available: money.Zero,
		Bonus:     money.Zero,
		Locked:    money.Zero,
		UpdatedAt: now,
	}
}
