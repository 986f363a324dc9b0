// Package gateway defines the payment-provider boundary consumed by the
// ledger engine. The real provider integration lives outside this service;
// the engine only depends on the interface and the typed error.
package gateway

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// IntentRequest carries the data needed to open a deposit intent with the
// provider. Amount is a fixed two-decimal string.
type IntentRequest struct {
	UserID   string
	Amount   string
	Currency string
	Metadata map[string]any
}

// DepositIntent is the provider's handle for a started deposit flow.
type DepositIntent struct {
	ID          string
	RedirectURL string
}

// Error is the typed failure returned by gateway implementations. A non-zero
// Status carries the provider's HTTP response code and marks a provider
// rejection; Status zero means the provider was never reached (transport
// failure).
type Error struct {
	Message string
	Status  int
	Details map[string]any
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("payment gateway rejected request (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("payment gateway unreachable: %s", e.Message)
}

// Rejected reports whether the provider itself refused the request, as
// opposed to a transport failure.
func (e *Error) Rejected() bool {
	return e.Status != 0
}

// PaymentGateway issues deposit intents with an external payment provider.
// Implementations must not persist any ledger state; the engine calls
// CreateDepositIntent before taking any lock so a slow provider never holds
// one.
type PaymentGateway interface {
	CreateDepositIntent(ctx context.Context, req IntentRequest) (DepositIntent, error)
}

// StaticGateway simulates an always-approving provider. It stands in for the
// real integration in development wiring and tests.
type StaticGateway struct {
	// RedirectBase is the checkout URL prefix; intent IDs are appended.
	RedirectBase string
}

// CreateDepositIntent returns a synthetic intent with a unique reference.
func (g StaticGateway) CreateDepositIntent(_ context.Context, _ IntentRequest) (DepositIntent, error) {
	base := g.RedirectBase
	if base == "" {
		base = "https://payments.example/checkout"
	}
	id := "intent_" + uuid.NewString()
	return DepositIntent{ID: id, RedirectURL: base + "/" + id}, nil
}
