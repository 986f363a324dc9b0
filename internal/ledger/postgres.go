package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Vitls1979/online-platform/internal/money"
)

// PostgresStore persists balances, transactions, and audit entries in
// PostgreSQL. Per-wallet mutual exclusion relies on row-level locks
// (SELECT ... FOR UPDATE on the balance row), so the engine stays correct
// across multiple processes sharing one database.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a Postgres-backed store.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the ledger tables when they do not exist. Amount columns
// are NUMERIC(18,2); binary floats never touch the schema.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS wallet_balances (
			user_id    TEXT NOT NULL,
			currency   TEXT NOT NULL,
			available  NUMERIC(18,2) NOT NULL DEFAULT 0,
			bonus      NUMERIC(18,2) NOT NULL DEFAULT 0,
			locked     NUMERIC(18,2) NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, currency)
		)`,
		`CREATE TABLE IF NOT EXISTS wallet_transactions (
			id                    UUID PRIMARY KEY,
			user_id               TEXT NOT NULL,
			currency              TEXT NOT NULL,
			amount                NUMERIC(18,2) NOT NULL,
			type                  TEXT NOT NULL,
			status                TEXT NOT NULL,
			idempotency_key       TEXT NOT NULL DEFAULT '',
			source_transaction_id TEXT NOT NULL DEFAULT '',
			external_id           TEXT NOT NULL DEFAULT '',
			metadata              JSONB,
			failure_reason        TEXT NOT NULL DEFAULT '',
			created_at            TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at            TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS wallet_transactions_idempotency_key_idx
			ON wallet_transactions (idempotency_key) WHERE idempotency_key <> ''`,
		`CREATE INDEX IF NOT EXISTS wallet_transactions_external_id_idx
			ON wallet_transactions (external_id) WHERE external_id <> ''`,
		`CREATE INDEX IF NOT EXISTS wallet_transactions_wallet_idx
			ON wallet_transactions (user_id, currency, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS balance_audit_log (
			id             UUID PRIMARY KEY,
			user_id        TEXT NOT NULL,
			currency       TEXT NOT NULL,
			transaction_id UUID NOT NULL REFERENCES wallet_transactions (id),
			balance_after  NUMERIC(18,2) NOT NULL,
			created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate ledger schema: %w", err)
		}
	}
	return nil
}

const transactionColumns = `id, user_id, currency, amount::text, type, status,
	idempotency_key, source_transaction_id, external_id, metadata,
	failure_reason, created_at, updated_at`

func (s *PostgresStore) FetchBalance(ctx context.Context, userID, currency string) (Balance, error) {
	const q = `SELECT available::text, bonus::text, locked::text, updated_at
		FROM wallet_balances WHERE user_id = $1 AND currency = $2`
	bal, err := scanBalance(s.db.QueryRow(ctx, q, userID, currency), userID, currency)
	if errors.Is(err, pgx.ErrNoRows) {
		return zeroBalance(userID, currency, time.Time{}), nil
	}
	return bal, err
}

func (s *PostgresStore) FindTransaction(ctx context.Context, id string) (Transaction, error) {
	q := `SELECT ` + transactionColumns + ` FROM wallet_transactions WHERE id = $1`
	return scanTransaction(s.db.QueryRow(ctx, q, id))
}

func (s *PostgresStore) FindTransactionByExternalID(ctx context.Context, externalID string) (Transaction, error) {
	q := `SELECT ` + transactionColumns + ` FROM wallet_transactions WHERE external_id = $1 AND external_id <> ''`
	return scanTransaction(s.db.QueryRow(ctx, q, externalID))
}

func (s *PostgresStore) FindTransactionByKey(ctx context.Context, key string) (Transaction, bool, error) {
	if key == "" {
		return Transaction{}, false, nil
	}
	q := `SELECT ` + transactionColumns + ` FROM wallet_transactions WHERE idempotency_key = $1`
	tx, err := scanTransaction(s.db.QueryRow(ctx, q, key))
	if errors.Is(err, ErrTransactionNotFound) {
		return Transaction{}, false, nil
	}
	if err != nil {
		return Transaction{}, false, err
	}
	return tx, true, nil
}

func (s *PostgresStore) ListTransactions(ctx context.Context, userID, currency string, limit, offset int) ([]Transaction, error) {
	q := `SELECT ` + transactionColumns + ` FROM wallet_transactions
		WHERE user_id = $1 AND currency = $2
		ORDER BY created_at DESC LIMIT $3 OFFSET $4`
	rows, err := s.db.Query(ctx, q, userID, currency, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CreatePending(ctx context.Context, tx Transaction) (Transaction, bool, error) {
	metadata, err := marshalMetadata(tx.Metadata)
	if err != nil {
		return Transaction{}, false, err
	}

	const ins = `INSERT INTO wallet_transactions (
			id, user_id, currency, amount, type, status, idempotency_key,
			source_transaction_id, external_id, metadata, failure_reason,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (idempotency_key) WHERE idempotency_key <> '' DO NOTHING`

	tag, err := s.db.Exec(ctx, ins,
		tx.ID, tx.UserID, tx.Currency, tx.Amount.String(), string(tx.Type),
		string(tx.Status), tx.IdempotencyKey, tx.SourceTransactionID,
		tx.ExternalID, metadata, tx.FailureReason, tx.CreatedAt, tx.UpdatedAt)
	if err != nil {
		return Transaction{}, false, err
	}
	if tag.RowsAffected() == 0 {
		// A concurrent insert with the same idempotency key won; hand the
		// caller the winning row.
		existing, ok, err := s.FindTransactionByKey(ctx, tx.IdempotencyKey)
		if err != nil {
			return Transaction{}, false, err
		}
		if !ok {
			return Transaction{}, false, fmt.Errorf("pending transaction conflict vanished for key %q", tx.IdempotencyKey)
		}
		return existing, false, nil
	}
	return tx, true, nil
}

func (s *PostgresStore) Begin(ctx context.Context, userID, currency string) (Mutation, error) {
	dbtx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}

	// Create the row lazily, then lock it. A concurrent creator blocks on
	// the insert or the FOR UPDATE, so exactly one mutation proceeds.
	const ensure = `INSERT INTO wallet_balances (user_id, currency)
		VALUES ($1, $2) ON CONFLICT (user_id, currency) DO NOTHING`
	if _, err := dbtx.Exec(ctx, ensure, userID, currency); err != nil {
		_ = dbtx.Rollback(ctx)
		return nil, err
	}

	const lockQ = `SELECT available::text, bonus::text, locked::text, updated_at
		FROM wallet_balances WHERE user_id = $1 AND currency = $2 FOR UPDATE`
	bal, err := scanBalance(dbtx.QueryRow(ctx, lockQ, userID, currency), userID, currency)
	if err != nil {
		_ = dbtx.Rollback(ctx)
		return nil, err
	}

	return &pgMutation{tx: dbtx, balance: bal}, nil
}

type pgMutation struct {
	tx      pgx.Tx
	balance Balance
}

func (m *pgMutation) Balance() Balance {
	return m.balance
}

func (m *pgMutation) FindByIdempotencyKey(ctx context.Context, key string) (Transaction, bool, error) {
	if key == "" {
		return Transaction{}, false, nil
	}
	q := `SELECT ` + transactionColumns + ` FROM wallet_transactions WHERE idempotency_key = $1`
	tx, err := scanTransaction(m.tx.QueryRow(ctx, q, key))
	if errors.Is(err, ErrTransactionNotFound) {
		return Transaction{}, false, nil
	}
	if err != nil {
		return Transaction{}, false, err
	}
	return tx, true, nil
}

func (m *pgMutation) LockTransaction(ctx context.Context, id string) (Transaction, error) {
	q := `SELECT ` + transactionColumns + ` FROM wallet_transactions WHERE id = $1 FOR UPDATE`
	return scanTransaction(m.tx.QueryRow(ctx, q, id))
}

func (m *pgMutation) SaveBalance(ctx context.Context, balance Balance) error {
	const q = `UPDATE wallet_balances
		SET available = $3, bonus = $4, locked = $5, updated_at = $6
		WHERE user_id = $1 AND currency = $2`
	_, err := m.tx.Exec(ctx, q, balance.UserID, balance.Currency,
		balance.Available.String(), balance.Bonus.String(), balance.Locked.String(),
		balance.UpdatedAt)
	return err
}

func (m *pgMutation) SaveTransaction(ctx context.Context, tx Transaction) error {
	metadata, err := marshalMetadata(tx.Metadata)
	if err != nil {
		return err
	}
	const q = `INSERT INTO wallet_transactions (
			id, user_id, currency, amount, type, status, idempotency_key,
			source_transaction_id, external_id, metadata, failure_reason,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			failure_reason = EXCLUDED.failure_reason,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at`
	_, err = m.tx.Exec(ctx, q,
		tx.ID, tx.UserID, tx.Currency, tx.Amount.String(), string(tx.Type),
		string(tx.Status), tx.IdempotencyKey, tx.SourceTransactionID,
		tx.ExternalID, metadata, tx.FailureReason, tx.CreatedAt, tx.UpdatedAt)
	return err
}

func (m *pgMutation) AppendAudit(ctx context.Context, entry AuditEntry) error {
	const q = `INSERT INTO balance_audit_log (id, user_id, currency, transaction_id, balance_after, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`
	_, err := m.tx.Exec(ctx, q, entry.ID, entry.UserID, entry.Currency,
		entry.TransactionID, entry.BalanceAfter.String(), entry.CreatedAt)
	return err
}

func (m *pgMutation) Commit(ctx context.Context) error {
	return m.tx.Commit(ctx)
}

func (m *pgMutation) Rollback(ctx context.Context) error {
	err := m.tx.Rollback(ctx)
	if err == nil || errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBalance(row rowScanner, userID, currency string) (Balance, error) {
	var available, bonus, locked string
	var updatedAt time.Time
	if err := row.Scan(&available, &bonus, &locked, &updatedAt); err != nil {
		return Balance{}, err
	}
	bal := Balance{UserID: userID, Currency: currency, UpdatedAt: updatedAt.UTC()}
	var err error
	if bal.Available, err = money.Parse(available); err != nil {
		return Balance{}, fmt.Errorf("stored available balance: %w", err)
	}
	if bal.Bonus, err = money.Parse(bonus); err != nil {
		return Balance{}, fmt.Errorf("stored bonus balance: %w", err)
	}
	if bal.Locked, err = money.Parse(locked); err != nil {
		return Balance{}, fmt.Errorf("stored locked balance: %w", err)
	}
	return bal, nil
}

func scanTransaction(row rowScanner) (Transaction, error) {
	var tx Transaction
	var amount string
	var metadata []byte
	var createdAt, updatedAt time.Time
	err := row.Scan(&tx.ID, &tx.UserID, &tx.Currency, &amount, &tx.Type,
		&tx.Status, &tx.IdempotencyKey, &tx.SourceTransactionID,
		&tx.ExternalID, &metadata, &tx.FailureReason, &createdAt, &updatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, ErrTransactionNotFound
	}
	if err != nil {
		return Transaction{}, err
	}
	if tx.Amount, err = money.Parse(amount); err != nil {
		return Transaction{}, fmt.Errorf("stored transaction amount: %w", err)
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &tx.Metadata); err != nil {
			return Transaction{}, fmt.Errorf("stored transaction metadata: %w", err)
		}
	}
	tx.CreatedAt = createdAt.UTC()
	tx.UpdatedAt = updatedAt.UTC()
	return tx, nil
}

func marshalMetadata(metadata map[string]any) ([]byte, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("encode transaction metadata: %w", err)
	}
	return body, nil
}
