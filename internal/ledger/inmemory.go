package ledger

import (
	"context"
	"sync"
	"time"
)

// memoryStore is a concurrency-safe in-memory Store. It backs unit tests and
// development wiring without Postgres, and mirrors the Postgres backend's
// locking contract: one mutation in flight per (userID, currency) key,
// staged writes visible only after Commit.
type memoryStore struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex

	balances map[string]Balance
	txs      map[string]Transaction
	txOrder  []string
	byKey    map[string]string
	byExt    map[string]string
	audits   []AuditEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() Store {
	return &memoryStore{
		locks:    make(map[string]*sync.Mutex),
		balances: make(map[string]Balance),
		txs:      make(map[string]Transaction),
		byKey:    make(map[string]string),
		byExt:    make(map[string]string),
	}
}

func walletKey(userID, currency string) string {
	return userID + "/" + currency
}

func (s *memoryStore) FetchBalance(_ context.Context, userID, currency string) (Balance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if bal, ok := s.balances[walletKey(userID, currency)]; ok {
		return bal, nil
	}
	return zeroBalance(userID, currency, time.Time{}), nil
}

func (s *memoryStore) FindTransaction(_ context.Context, id string) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.txs[id]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	return tx, nil
}

func (s *memoryStore) FindTransactionByExternalID(_ context.Context, externalID string) (Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byExt[externalID]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	return s.txs[id], nil
}

func (s *memoryStore) FindTransactionByKey(_ context.Context, key string) (Transaction, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.lookupByKey(key)
	return tx, ok, nil
}

func (s *memoryStore) lookupByKey(key string) (Transaction, bool) {
	if key == "" {
		return Transaction{}, false
	}
	id, ok := s.byKey[key]
	if !ok {
		return Transaction{}, false
	}
	return s.txs[id], true
}

func (s *memoryStore) ListTransactions(_ context.Context, userID, currency string, limit, offset int) ([]Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := make([]Transaction, 0)
	for i := len(s.txOrder) - 1; i >= 0; i-- {
		tx := s.txs[s.txOrder[i]]
		if tx.UserID == userID && tx.Currency == currency {
			matched = append(matched, tx)
		}
	}
	if offset >= len(matched) {
		return []Transaction{}, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}

func (s *memoryStore) CreatePending(_ context.Context, tx Transaction) (Transaction, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.lookupByKey(tx.IdempotencyKey); ok {
		return existing, false, nil
	}
	s.insert(tx)
	return tx, true, nil
}

// insert records a transaction; caller holds s.mu.
func (s *memoryStore) insert(tx Transaction) {
	if _, seen := s.txs[tx.ID]; !seen {
		s.txOrder = append(s.txOrder, tx.ID)
	}
	s.txs[tx.ID] = tx
	if tx.IdempotencyKey != "" {
		s.byKey[tx.IdempotencyKey] = tx.ID
	}
	if tx.ExternalID != "" {
		s.byExt[tx.ExternalID] = tx.ID
	}
}

func (s *memoryStore) Begin(_ context.Context, userID, currency string) (Mutation, error) {
	key := walletKey(userID, currency)

	s.mu.Lock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	s.mu.Unlock()

	// Blocks until the previous mutation for this wallet finishes.
	lock.Lock()

	s.mu.Lock()
	bal, ok := s.balances[key]
	if !ok {
		// UpdatedAt stays zero until the first commit; the engine stamps it
		// on every mutation, so the store never invents a wall-clock time.
		bal = zeroBalance(userID, currency, time.Time{})
	}
	s.mu.Unlock()

	return &memoryMutation{store: s, lock: lock, key: key, balance: bal}, nil
}

type memoryMutation struct {
	store *memoryStore
	lock  *sync.Mutex
	key   string

	balance Balance

	stagedBalance *Balance
	stagedTxs     []Transaction
	stagedAudits  []AuditEntry
	done          bool
}

func (m *memoryMutation) Balance() Balance {
	return m.balance
}

func (m *memoryMutation) FindByIdempotencyKey(_ context.Context, key string) (Transaction, bool, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	tx, ok := m.store.lookupByKey(key)
	return tx, ok, nil
}

func (m *memoryMutation) LockTransaction(_ context.Context, id string) (Transaction, error) {
	// The per-wallet lock held by this mutation already serializes status
	// transitions for the wallet's transactions.
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	tx, ok := m.store.txs[id]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	return tx, nil
}

func (m *memoryMutation) SaveBalance(_ context.Context, balance Balance) error {
	m.stagedBalance = &balance
	return nil
}

func (m *memoryMutation) SaveTransaction(_ context.Context, tx Transaction) error {
	m.stagedTxs = append(m.stagedTxs, tx)
	return nil
}

func (m *memoryMutation) AppendAudit(_ context.Context, entry AuditEntry) error {
	m.stagedAudits = append(m.stagedAudits, entry)
	return nil
}

func (m *memoryMutation) Commit(_ context.Context) error {
	if m.done {
		return nil
	}

	m.store.mu.Lock()
	if m.stagedBalance != nil {
		m.store.balances[m.key] = *m.stagedBalance
	}
	for _, tx := range m.stagedTxs {
		m.store.insert(tx)
	}
	m.store.audits = append(m.store.audits, m.stagedAudits...)
	m.store.mu.Unlock()

	m.done = true
	m.lock.Unlock()
	return nil
}

func (m *memoryMutation) Rollback(_ context.Context) error {
	if m.done {
		return nil
	}
	m.done = true
	m.lock.Unlock()
	return nil
}
