package wallet

import (
	"time"

	"github.com/Vitls1979/online-platform/internal/ledger"
)

// CreditRequest captures a synchronous credit to the available bucket.
type CreditRequest struct {
	Currency string         `json:"currency"`
	Amount   string         `json:"amount"`
	Type     string         `json:"type"`
	Metadata map[string]any `json:"metadata"`
}

// DebitRequest captures a synchronous debit from the available bucket.
type DebitRequest struct {
	Currency  string         `json:"currency"`
	Amount    string         `json:"amount"`
	Type      string         `json:"type"`
	LockFunds bool           `json:"lock_funds"`
	Metadata  map[string]any `json:"metadata"`
}

// DepositRequest captures a gateway-backed deposit intent.
type DepositRequest struct {
	Currency            string         `json:"currency"`
	Amount              string         `json:"amount"`
	SourceTransactionID string         `json:"source_transaction_id"`
	Metadata            map[string]any `json:"metadata"`
}

// ReserveRequest captures a bet stake reservation.
type ReserveRequest struct {
	Currency string `json:"currency"`
	Amount   string `json:"amount"`
}

// SettleRequest captures a bet settlement.
type SettleRequest struct {
	Currency    string `json:"currency"`
	StakeAmount string `json:"stake_amount"`
	WinAmount   string `json:"win_amount"`
}

// WebhookRequest is the payment provider's asynchronous callback body.
type WebhookRequest struct {
	ExternalID    string `json:"external_id"`
	Status        string `json:"status"`
	FailureReason string `json:"failure_reason"`
}

// BalanceResponse renders a wallet's buckets.
type BalanceResponse struct {
	UserID    string    `json:"user_id"`
	Currency  string    `json:"currency"`
	Available string    `json:"available"`
	Bonus     string    `json:"bonus"`
	Locked    string    `json:"locked"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TransactionResponse renders one ledger transaction.
type TransactionResponse struct {
	ID                  string         `json:"id"`
	UserID              string         `json:"user_id"`
	Currency            string         `json:"currency"`
	Amount              string         `json:"amount"`
	Type                string         `json:"type"`
	Status              string         `json:"status"`
	IdempotencyKey      string         `json:"idempotency_key,omitempty"`
	SourceTransactionID string         `json:"source_transaction_id,omitempty"`
	ExternalID          string         `json:"external_id,omitempty"`
	Metadata            map[string]any `json:"metadata,omitempty"`
	FailureReason       string         `json:"failure_reason,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
}

// MutationResponse pairs the recorded transaction with the resulting balance.
type MutationResponse struct {
	Transaction TransactionResponse `json:"transaction"`
	Balance     BalanceResponse     `json:"balance"`
}

// DepositResponse renders a freshly opened (or replayed) deposit intent.
type DepositResponse struct {
	IntentID    string              `json:"intent_id"`
	RedirectURL string              `json:"redirect_url"`
	Transaction TransactionResponse `json:"transaction"`
}

func toBalanceResponse(bal BalanceSnapshot) BalanceResponse {
	return BalanceResponse{
		UserID:    bal.UserID,
		Currency:  bal.Currency,
		Available: bal.Available,
		Bonus:     bal.Bonus,
		Locked:    bal.Locked,
		UpdatedAt: bal.UpdatedAt,
	}
}

func toTransactionResponse(tx ledger.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:                  tx.ID,
		UserID:              tx.UserID,
		Currency:            tx.Currency,
		Amount:              tx.Amount.String(),
		Type:                string(tx.Type),
		Status:              string(tx.Status),
		IdempotencyKey:      tx.IdempotencyKey,
		SourceTransactionID: tx.SourceTransactionID,
		ExternalID:          tx.ExternalID,
		Metadata:            tx.Metadata,
		FailureReason:       tx.FailureReason,
		CreatedAt:           tx.CreatedAt,
	}
}
