// Package events carries the ledger's domain events to downstream consumers.
// Emission is fire-and-forget: the engine never waits on, retries, or rolls
// back because of a sink failure.
package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Event names emitted by the ledger engine.
const (
	BalanceUpdated    = "balance.updated"
	TransactionFailed = "transaction.failed"
	BetSettled        = "bet.settled"
)

// BalanceUpdatedPayload accompanies a balance.updated event.
type BalanceUpdatedPayload struct {
	UserID    string `json:"user_id"`
	Currency  string `json:"currency"`
	Available string `json:"available"`
	Bonus     string `json:"bonus"`
	Locked    string `json:"locked"`
}

// TransactionFailedPayload accompanies a transaction.failed event.
type TransactionFailedPayload struct {
	TransactionID string `json:"transaction_id"`
	UserID        string `json:"user_id"`
	Reason        string `json:"reason,omitempty"`
}

// BetSettledPayload accompanies a bet.settled event.
type BetSettledPayload struct {
	UserID    string `json:"user_id"`
	Currency  string `json:"currency"`
	WinAmount string `json:"win_amount"`
}

// Sink consumes domain events for downstream notification and analytics.
type Sink interface {
	Emit(ctx context.Context, event string, payload any) error
}

// LogSink writes events to the structured logger. It backs development
// wiring and tests.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink constructs a logging sink.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

// Emit logs the event with its payload.
func (s *LogSink) Emit(_ context.Context, event string, payload any) error {
	if s == nil || s.logger == nil {
		return nil
	}
	s.logger.Info("domain event", slog.String("event", event), slog.Any("payload", payload))
	return nil
}

// RedisSink publishes events as JSON envelopes on a Redis pub/sub channel.
type RedisSink struct {
	client  *redis.Client
	channel string
}

// NewRedisSink constructs a sink publishing to the given channel.
func NewRedisSink(client *redis.Client, channel string) *RedisSink {
	return &RedisSink{client: client, channel: channel}
}

type envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// Emit publishes the event envelope. Subscriber absence is not an error.
func (s *RedisSink) Emit(ctx context.Context, event string, payload any) error {
	body, err := json.Marshal(envelope{Event: event, Payload: payload})
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, s.channel, body).Err()
}

// NopSink drops every event.
type NopSink struct{}

// Emit discards the event.
func (NopSink) Emit(context.Context, string, any) error { return nil }
