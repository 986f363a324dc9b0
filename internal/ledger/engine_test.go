package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/Vitls1979/online-platform/internal/events"
	"github.com/Vitls1979/online-platform/internal/gateway"
	"github.com/Vitls1979/online-platform/internal/money"
)

type recordingSink struct {
	mu     sync.Mutex
	events []string
}

func (s *recordingSink) Emit(_ context.Context, event string, _ any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) count(event string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e == event {
			n++
		}
	}
	return n
}

type countingGateway struct {
	mu    sync.Mutex
	calls int
	fail  error
}

func (g *countingGateway) CreateDepositIntent(_ context.Context, _ gateway.IntentRequest) (gateway.DepositIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.fail != nil {
		return gateway.DepositIntent{}, g.fail
	}
	id := fmt.Sprintf("intent_%d", g.calls)
	return gateway.DepositIntent{ID: id, RedirectURL: "https://pay.example/" + id}, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T) (*Engine, Store, *recordingSink, *countingGateway) {
	t.Helper()
	store := NewMemoryStore()
	sink := &recordingSink{}
	gw := &countingGateway{}
	return NewEngine(store, gw, sink, testLogger()), store, sink, gw
}

func TestCreditNewWallet(t *testing.T) {
	engine, store, sink, _ := newTestEngine(t)
	ctx := context.Background()

	tx, bal, err := engine.Credit(ctx, CreditInput{
		UserID:         "u1",
		Currency:       "USD",
		Amount:         money.MustParse("100.00"),
		Type:           TypeDeposit,
		IdempotencyKey: "dep-1",
	})
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if tx.Status != StatusSuccess {
		t.Fatalf("status = %s, want success", tx.Status)
	}
	if bal.Available.String() != "100.00" {
		t.Fatalf("available = %s, want 100.00", bal.Available)
	}

	stored, err := store.FetchBalance(ctx, "u1", "USD")
	if err != nil {
		t.Fatalf("fetch balance: %v", err)
	}
	if !stored.Available.Equal(bal.Available) {
		t.Fatalf("stored available = %s, returned %s", stored.Available, bal.Available)
	}

	audit, ok := LatestAudit(store, "u1", "USD")
	if !ok {
		t.Fatal("expected an audit entry")
	}
	if audit.TransactionID != tx.ID {
		t.Fatalf("audit transaction = %s, want %s", audit.TransactionID, tx.ID)
	}
	if audit.BalanceAfter.String() != "100.00" {
		t.Fatalf("audit balance_after = %s, want 100.00", audit.BalanceAfter)
	}
	if got := sink.count(events.BalanceUpdated); got != 1 {
		t.Fatalf("balance.updated events = %d, want 1", got)
	}
}

func TestCreditRejectsNonPositiveAmount(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	for _, amount := range []string{"0.00", "-5.00"} {
		_, _, err := engine.Credit(ctx, CreditInput{
			UserID:   "u1",
			Currency: "USD",
			Amount:   money.MustParse(amount),
		})
		if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("credit %s: err = %v, want ErrInvalidAmount", amount, err)
		}
	}
}

func TestCreditIdempotentReplay(t *testing.T) {
	engine, store, sink, _ := newTestEngine(t)
	ctx := context.Background()

	in := CreditInput{
		UserID:         "u1",
		Currency:       "USD",
		Amount:         money.MustParse("25.00"),
		Type:           TypeBonus,
		IdempotencyKey: "bonus-week-35",
	}

	first, _, err := engine.Credit(ctx, in)
	if err != nil {
		t.Fatalf("first credit: %v", err)
	}
	second, bal, err := engine.Credit(ctx, in)
	if err != nil {
		t.Fatalf("replayed credit: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("replay returned transaction %s, want original %s", second.ID, first.ID)
	}
	if bal.Available.String() != "25.00" {
		t.Fatalf("available after replay = %s, want 25.00", bal.Available)
	}
	if n := AuditCount(store, "u1", "USD"); n != 1 {
		t.Fatalf("audit entries = %d, want 1", n)
	}
	if got := sink.count(events.BalanceUpdated); got != 1 {
		t.Fatalf("balance.updated events = %d, want 1", got)
	}
}

func TestDebitLocksFunds(t *testing.T) {
	engine, store, _, _ := newTestEngine(t)
	ctx := context.Background()
	SeedBalance(store, "u1", "USD", money.MustParse("100.00"), money.MustParse("0.00"), money.MustParse("0.00"))

	tx, bal, err := engine.Debit(ctx, DebitInput{
		UserID:    "u1",
		Currency:  "USD",
		Amount:    money.MustParse("40.00"),
		Type:      TypeBet,
		LockFunds: true,
	})
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if bal.Available.String() != "60.00" || bal.Locked.String() != "40.00" {
		t.Fatalf("balance = %s available / %s locked, want 60.00/40.00", bal.Available, bal.Locked)
	}
	if tx.Amount.String() != "-40.00" {
		t.Fatalf("transaction amount = %s, want -40.00", tx.Amount)
	}
}

func TestDebitIdempotentReplay(t *testing.T) {
	engine, store, sink, _ := newTestEngine(t)
	ctx := context.Background()
	SeedBalance(store, "u1", "USD", money.MustParse("100.00"), money.MustParse("0.00"), money.MustParse("0.00"))

	in := DebitInput{
		UserID:         "u1",
		Currency:       "USD",
		Amount:         money.MustParse("30.00"),
		Type:           TypeWithdrawal,
		IdempotencyKey: "wd-1",
	}

	first, _, err := engine.Debit(ctx, in)
	if err != nil {
		t.Fatalf("first debit: %v", err)
	}
	second, bal, err := engine.Debit(ctx, in)
	if err != nil {
		t.Fatalf("replayed debit: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("replay returned transaction %s, want original %s", second.ID, first.ID)
	}
	if bal.Available.String() != "70.00" {
		t.Fatalf("available after replay = %s, want 70.00", bal.Available)
	}
	if n := AuditCount(store, "u1", "USD"); n != 1 {
		t.Fatalf("audit entries = %d, want 1", n)
	}
	if got := sink.count(events.BalanceUpdated); got != 1 {
		t.Fatalf("balance.updated events = %d, want 1", got)
	}
}

func TestDebitReplayOfFailedAttempt(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	in := DebitInput{
		UserID:         "u1",
		Currency:       "USD",
		Amount:         money.MustParse("50.00"),
		IdempotencyKey: "wd-declined",
	}

	first, _, err := engine.Debit(ctx, in)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("first debit err = %v, want ErrInsufficientFunds", err)
	}

	// The retry reports the same outcome as the first attempt.
	second, bal, err := engine.Debit(ctx, in)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("replayed debit err = %v, want ErrInsufficientFunds", err)
	}
	if second.ID != first.ID || second.Status != StatusFailed {
		t.Fatalf("replay = %s/%s, want original failed transaction %s", second.ID, second.Status, first.ID)
	}
	if !bal.Available.IsZero() {
		t.Fatalf("available = %s after replayed failure, want 0.00", bal.Available)
	}

	history, err := engine.ListTransactions(ctx, "u1", "USD", 10, 0)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("history length = %d, want 1 failed attempt", len(history))
	}
}

func TestDebitInsufficientFunds(t *testing.T) {
	engine, store, sink, _ := newTestEngine(t)
	ctx := context.Background()
	SeedBalance(store, "u1", "USD", money.MustParse("10.00"), money.MustParse("0.00"), money.MustParse("0.00"))

	tx, _, err := engine.Debit(ctx, DebitInput{
		UserID:   "u1",
		Currency: "USD",
		Amount:   money.MustParse("50.00"),
	})
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	if tx.Status != StatusFailed {
		t.Fatalf("status = %s, want failed", tx.Status)
	}
	if tx.FailureReason == "" {
		t.Fatal("expected a failure reason on the recorded transaction")
	}

	bal, err := engine.GetBalance(ctx, "u1", "USD")
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if bal.Available.String() != "10.00" {
		t.Fatalf("available = %s, want unchanged 10.00", bal.Available)
	}
	if n := AuditCount(store, "u1", "USD"); n != 0 {
		t.Fatalf("audit entries = %d, want 0 for a failed debit", n)
	}
	if got := sink.count(events.TransactionFailed); got != 1 {
		t.Fatalf("transaction.failed events = %d, want 1", got)
	}

	// The failed attempt remains visible in history.
	history, err := engine.ListTransactions(ctx, "u1", "USD", 10, 0)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(history) != 1 || history[0].Status != StatusFailed {
		t.Fatalf("history = %+v, want a single failed transaction", history)
	}
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	engine, store, _, _ := newTestEngine(t)
	ctx := context.Background()
	SeedBalance(store, "u1", "USD", money.MustParse("100.00"), money.MustParse("0.00"), money.MustParse("0.00"))

	const attempts = 25
	amount := money.MustParse("30.00")

	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := engine.Debit(ctx, DebitInput{
				UserID:   "u1",
				Currency: "USD",
				Amount:   amount,
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrInsufficientFunds):
		default:
			t.Fatalf("unexpected debit error: %v", err)
		}
	}
	// 100.00 funds exactly three 30.00 debits.
	if succeeded != 3 {
		t.Fatalf("successful debits = %d, want 3", succeeded)
	}

	bal, err := engine.GetBalance(ctx, "u1", "USD")
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if bal.Available.String() != "10.00" {
		t.Fatalf("available = %s, want 10.00", bal.Available)
	}
	if bal.Available.IsNegative() {
		t.Fatalf("available went negative: %s", bal.Available)
	}
}

func TestDepositIntentLifecycle(t *testing.T) {
	engine, store, sink, gw := newTestEngine(t)
	ctx := context.Background()

	res, err := engine.CreateDepositIntent(ctx, DepositInput{
		UserID:         "u1",
		Currency:       "EUR",
		Amount:         money.MustParse("75.50"),
		IdempotencyKey: "dep-abc",
	})
	if err != nil {
		t.Fatalf("create deposit intent: %v", err)
	}
	if res.IntentID == "" || res.RedirectURL == "" {
		t.Fatalf("intent = %+v, want id and redirect url", res)
	}
	if res.Transaction.Status != StatusPending {
		t.Fatalf("transaction status = %s, want pending", res.Transaction.Status)
	}

	// No funds move until the provider confirms.
	bal, err := engine.GetBalance(ctx, "u1", "EUR")
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if !bal.Available.IsZero() {
		t.Fatalf("available = %s before confirmation, want 0.00", bal.Available)
	}

	if err := engine.ReconcileWebhook(ctx, res.IntentID, "succeeded", ""); err != nil {
		t.Fatalf("reconcile webhook: %v", err)
	}

	bal, err = engine.GetBalance(ctx, "u1", "EUR")
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if bal.Available.String() != "75.50" {
		t.Fatalf("available = %s after confirmation, want 75.50", bal.Available)
	}
	if n := AuditCount(store, "u1", "EUR"); n != 1 {
		t.Fatalf("audit entries = %d, want 1", n)
	}

	// A duplicate delivery of the same webhook must not credit again.
	if err := engine.ReconcileWebhook(ctx, res.IntentID, "succeeded", ""); err != nil {
		t.Fatalf("duplicate webhook: %v", err)
	}
	bal, _ = engine.GetBalance(ctx, "u1", "EUR")
	if bal.Available.String() != "75.50" {
		t.Fatalf("available = %s after duplicate webhook, want 75.50", bal.Available)
	}
	if n := AuditCount(store, "u1", "EUR"); n != 1 {
		t.Fatalf("audit entries after duplicate webhook = %d, want 1", n)
	}
	if got := sink.count(events.BalanceUpdated); got != 1 {
		t.Fatalf("balance.updated events = %d, want 1", got)
	}
	if gw.calls != 1 {
		t.Fatalf("gateway calls = %d, want 1", gw.calls)
	}
}

func TestDepositIntentReplaySkipsGateway(t *testing.T) {
	engine, _, _, gw := newTestEngine(t)
	ctx := context.Background()

	in := DepositInput{
		UserID:         "u1",
		Currency:       "USD",
		Amount:         money.MustParse("20.00"),
		IdempotencyKey: "dep-replay",
	}
	first, err := engine.CreateDepositIntent(ctx, in)
	if err != nil {
		t.Fatalf("first intent: %v", err)
	}
	second, err := engine.CreateDepositIntent(ctx, in)
	if err != nil {
		t.Fatalf("replayed intent: %v", err)
	}
	if second.Transaction.ID != first.Transaction.ID {
		t.Fatalf("replay transaction = %s, want original %s", second.Transaction.ID, first.Transaction.ID)
	}
	if second.IntentID != first.IntentID || second.RedirectURL != first.RedirectURL {
		t.Fatalf("replay intent = %+v, want original %+v", second, first)
	}
	if gw.calls != 1 {
		t.Fatalf("gateway calls = %d, want 1", gw.calls)
	}
}

func TestDepositIntentGatewayFailurePersistsNothing(t *testing.T) {
	engine, store, _, gw := newTestEngine(t)
	ctx := context.Background()
	gw.fail = &gateway.Error{Message: "card declined", Status: 402}

	in := DepositInput{
		UserID:         "u1",
		Currency:       "USD",
		Amount:         money.MustParse("20.00"),
		IdempotencyKey: "dep-fail",
	}
	_, err := engine.CreateDepositIntent(ctx, in)
	var gwErr *gateway.Error
	if !errors.As(err, &gwErr) {
		t.Fatalf("err = %v, want gateway.Error", err)
	}

	if _, ok, _ := store.FindTransactionByKey(ctx, "dep-fail"); ok {
		t.Fatal("a transaction was persisted despite the gateway failure")
	}

	// Retrying with the same key after the provider recovers succeeds.
	gw.fail = nil
	if _, err := engine.CreateDepositIntent(ctx, in); err != nil {
		t.Fatalf("retry after gateway recovery: %v", err)
	}
}

func TestReconcileWebhookUnknownExternalID(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	if err := engine.ReconcileWebhook(context.Background(), "intent_unknown", "succeeded", ""); err != nil {
		t.Fatalf("unknown external id should be a no-op, got %v", err)
	}
}

func TestReconcileWebhookFailure(t *testing.T) {
	engine, _, sink, _ := newTestEngine(t)
	ctx := context.Background()

	res, err := engine.CreateDepositIntent(ctx, DepositInput{
		UserID:         "u1",
		Currency:       "USD",
		Amount:         money.MustParse("30.00"),
		IdempotencyKey: "dep-declined",
	})
	if err != nil {
		t.Fatalf("create deposit intent: %v", err)
	}

	if err := engine.ReconcileWebhook(ctx, res.IntentID, "failed", "3ds check failed"); err != nil {
		t.Fatalf("reconcile webhook: %v", err)
	}

	tx, err := engine.store.FindTransaction(ctx, res.Transaction.ID)
	if err != nil {
		t.Fatalf("find transaction: %v", err)
	}
	if tx.Status != StatusFailed || tx.FailureReason != "3ds check failed" {
		t.Fatalf("transaction = %s/%q, want failed/\"3ds check failed\"", tx.Status, tx.FailureReason)
	}

	bal, _ := engine.GetBalance(ctx, "u1", "USD")
	if !bal.Available.IsZero() {
		t.Fatalf("available = %s after failed deposit, want 0.00", bal.Available)
	}
	if got := sink.count(events.TransactionFailed); got != 1 {
		t.Fatalf("transaction.failed events = %d, want 1", got)
	}
}

func TestReserveStakeAndSettleWin(t *testing.T) {
	engine, store, sink, _ := newTestEngine(t)
	ctx := context.Background()
	SeedBalance(store, "u1", "USD", money.MustParse("100.00"), money.MustParse("0.00"), money.MustParse("0.00"))

	bal, err := engine.ReserveStake(ctx, "u1", "USD", money.MustParse("30.00"))
	if err != nil {
		t.Fatalf("reserve stake: %v", err)
	}
	if bal.Available.String() != "70.00" || bal.Locked.String() != "30.00" {
		t.Fatalf("balance = %s/%s locked, want 70.00/30.00", bal.Available, bal.Locked)
	}

	bal, err = engine.SettleBet(ctx, "u1", "USD", money.MustParse("30.00"), money.MustParse("90.00"))
	if err != nil {
		t.Fatalf("settle bet: %v", err)
	}
	if bal.Available.String() != "160.00" || !bal.Locked.IsZero() {
		t.Fatalf("balance = %s/%s locked, want 160.00/0.00", bal.Available, bal.Locked)
	}
	if got := sink.count(events.BetSettled); got != 1 {
		t.Fatalf("bet.settled events = %d, want 1", got)
	}
	// Reserve and settlement each leave an audit row.
	if n := AuditCount(store, "u1", "USD"); n != 2 {
		t.Fatalf("audit entries = %d, want 2", n)
	}
}

func TestSettleBetLoss(t *testing.T) {
	engine, store, _, _ := newTestEngine(t)
	ctx := context.Background()
	SeedBalance(store, "u1", "USD", money.MustParse("50.00"), money.MustParse("0.00"), money.MustParse("20.00"))

	bal, err := engine.SettleBet(ctx, "u1", "USD", money.MustParse("20.00"), money.MustParse("0.00"))
	if err != nil {
		t.Fatalf("settle losing bet: %v", err)
	}
	if bal.Available.String() != "50.00" || !bal.Locked.IsZero() {
		t.Fatalf("balance = %s/%s locked, want 50.00/0.00", bal.Available, bal.Locked)
	}
}

func TestSettleBetStakeExceedsLocked(t *testing.T) {
	engine, store, _, _ := newTestEngine(t)
	ctx := context.Background()
	SeedBalance(store, "u1", "USD", money.MustParse("50.00"), money.MustParse("0.00"), money.MustParse("10.00"))

	_, err := engine.SettleBet(ctx, "u1", "USD", money.MustParse("20.00"), money.MustParse("5.00"))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}

	bal, _ := engine.GetBalance(ctx, "u1", "USD")
	if bal.Available.String() != "50.00" || bal.Locked.String() != "10.00" {
		t.Fatalf("balance mutated on rejected settlement: %s/%s locked", bal.Available, bal.Locked)
	}
}

func TestReserveStakeInsufficientFunds(t *testing.T) {
	engine, store, _, _ := newTestEngine(t)
	ctx := context.Background()
	SeedBalance(store, "u1", "USD", money.MustParse("5.00"), money.MustParse("0.00"), money.MustParse("0.00"))

	_, err := engine.ReserveStake(ctx, "u1", "USD", money.MustParse("10.00"))
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	if n := AuditCount(store, "u1", "USD"); n != 0 {
		t.Fatalf("audit entries = %d, want 0", n)
	}
}

func TestAuditMatchesBalanceAfterMixedOperations(t *testing.T) {
	engine, store, _, _ := newTestEngine(t)
	ctx := context.Background()

	ops := []func() error{
		func() error {
			_, _, err := engine.Credit(ctx, CreditInput{UserID: "u1", Currency: "USD", Amount: money.MustParse("200.00"), Type: TypeDeposit})
			return err
		},
		func() error {
			_, _, err := engine.Debit(ctx, DebitInput{UserID: "u1", Currency: "USD", Amount: money.MustParse("45.50")})
			return err
		},
		func() error {
			_, err := engine.ReserveStake(ctx, "u1", "USD", money.MustParse("25.00"))
			return err
		},
		func() error {
			_, err := engine.SettleBet(ctx, "u1", "USD", money.MustParse("25.00"), money.MustParse("12.75"))
			return err
		},
	}
	for i, op := range ops {
		if err := op(); err != nil {
			t.Fatalf("operation %d: %v", i, err)
		}
	}

	bal, err := engine.GetBalance(ctx, "u1", "USD")
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if bal.Available.String() != "167.25" {
		t.Fatalf("available = %s, want 167.25", bal.Available)
	}

	audit, ok := LatestAudit(store, "u1", "USD")
	if !ok {
		t.Fatal("expected audit entries")
	}
	if !audit.BalanceAfter.Equal(bal.Available) {
		t.Fatalf("latest audit balance_after = %s, live available = %s", audit.BalanceAfter, bal.Available)
	}
	if n := AuditCount(store, "u1", "USD"); n != len(ops) {
		t.Fatalf("audit entries = %d, want %d", n, len(ops))
	}
}

func TestListTransactionsOrderAndLimit(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, _, err := engine.Credit(ctx, CreditInput{
			UserID:   "u1",
			Currency: "USD",
			Amount:   money.FromMinorUnits(int64((i + 1) * 100)),
			Type:     TypeDeposit,
		}); err != nil {
			t.Fatalf("credit %d: %v", i, err)
		}
	}

	history, err := engine.ListTransactions(ctx, "u1", "USD", 3, 0)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("len(history) = %d, want 3", len(history))
	}
	// Most recent first: the last credit was 5.00.
	if history[0].Amount.String() != "5.00" {
		t.Fatalf("history[0].Amount = %s, want 5.00", history[0].Amount)
	}

	rest, err := engine.ListTransactions(ctx, "u1", "USD", 3, 3)
	if err != nil {
		t.Fatalf("list transactions offset: %v", err)
	}
	if len(rest) != 2 {
		t.Fatalf("len(rest) = %d, want 2", len(rest))
	}
}

func TestBalancesAreIsolatedPerCurrency(t *testing.T) {
	engine, _, _, _ := newTestEngine(t)
	ctx := context.Background()

	if _, _, err := engine.Credit(ctx, CreditInput{UserID: "u1", Currency: "USD", Amount: money.MustParse("10.00"), Type: TypeDeposit}); err != nil {
		t.Fatalf("credit USD: %v", err)
	}
	if _, _, err := engine.Credit(ctx, CreditInput{UserID: "u1", Currency: "EUR", Amount: money.MustParse("20.00"), Type: TypeDeposit}); err != nil {
		t.Fatalf("credit EUR: %v", err)
	}

	usd, _ := engine.GetBalance(ctx, "u1", "USD")
	eur, _ := engine.GetBalance(ctx, "u1", "EUR")
	if usd.Available.String() != "10.00" || eur.Available.String() != "20.00" {
		t.Fatalf("balances = USD %s / EUR %s, want 10.00 / 20.00", usd.Available, eur.Available)
	}
}
