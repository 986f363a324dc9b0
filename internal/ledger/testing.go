package ledger

import (
	"time"

	"github.com/Vitls1979/online-platform/internal/money"
)

// SeedBalance is a test helper that seeds a wallet's buckets when using the
// in-memory store.
func SeedBalance(s Store, userID, currency string, available, bonus, locked money.Money) {
	mem, ok := s.(*memoryStore)
	if !ok {
		return
	}
	mem.mu.Lock()
	defer mem.mu.Unlock()
	mem.balances[walletKey(userID, currency)] = Balance{
		UserID:    userID,
		Currency:  currency,
		Available: available,
		Bonus:     bonus,
		Locked:    locked,
		UpdatedAt: time.Now().UTC(),
	}
}

// LatestAudit is a test helper returning the most recent audit entry for a
// wallet on the in-memory store, if any.
func LatestAudit(s Store, userID, currency string) (AuditEntry, bool) {
	mem, ok := s.(*memoryStore)
	if !ok {
		return AuditEntry{}, false
	}
	mem.mu.Lock()
	defer mem.mu.Unlock()
	for i := len(mem.audits) - 1; i >= 0; i-- {
		e := mem.audits[i]
		if e.UserID == userID && e.Currency == currency {
			return e, true
		}
	}
	return AuditEntry{}, false
}

// AuditCount is a test helper counting audit entries for a wallet on the
// in-memory store.
func AuditCount(s Store, userID, currency string) int {
	mem, ok := s.(*memoryStore)
	if !ok {
		return 0
	}
	mem.mu.Lock()
	defer mem.mu.Unlock()
	n := 0
	for _, e := range mem.audits {
		if e.UserID == userID && e.Currency == currency {
			n++
		}
	}
	return n
}
