package wallet

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/Vitls1979/online-platform/internal/gateway"
	"github.com/Vitls1979/online-platform/internal/ledger"
)

const idempotencyKeyHeader = "Idempotency-Key"

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// httpError maps domain errors onto HTTP statuses. Insufficient funds is a
// semantic rejection, not a malformed request, hence 422.
func httpError(err error) error {
	var gwErr *gateway.Error
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return fiber.NewError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ledger.ErrWalletNotFound), errors.Is(err, ledger.ErrTransactionNotFound):
		return fiber.NewError(http.StatusNotFound, err.Error())
	case errors.As(err, &gwErr):
		return fiber.NewError(http.StatusBadGateway, "payment provider unavailable")
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}

// Balance returns the wallet's buckets for one currency.
func (h *Handler) Balance(c *fiber.Ctx) error {
	bal, err := h.service.Balance(c.UserContext(), c.Params("userId"), c.Params("currency"))
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusOK).JSON(toBalanceResponse(bal))
}

// Transactions returns the wallet's mutation history, most recent first.
func (h *Handler) Transactions(c *fiber.Ctx) error {
	currency := c.Query("currency")
	if currency == "" {
		return fiber.NewError(http.StatusBadRequest, "currency query parameter is required")
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	txs, err := h.service.Transactions(c.UserContext(), c.Params("userId"), currency, limit, offset)
	if err != nil {
		return httpError(err)
	}
	out := make([]TransactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, toTransactionResponse(tx))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"transactions": out})
}

// Credit applies funds to the available bucket.
func (h *Handler) Credit(c *fiber.Ctx) error {
	var req CreditRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	tx, bal, err := h.service.Credit(c.UserContext(), CreditInput{
		UserID:         c.Params("userId"),
		Currency:       req.Currency,
		Amount:         req.Amount,
		Type:           req.Type,
		IdempotencyKey: c.Get(idempotencyKeyHeader),
		Metadata:       req.Metadata,
	})
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusCreated).JSON(MutationResponse{
		Transaction: toTransactionResponse(tx),
		Balance:     toBalanceResponse(bal),
	})
}

// Debit removes funds from the available bucket. An insufficient balance
// still records the failed attempt, which is returned alongside the 422.
func (h *Handler) Debit(c *fiber.Ctx) error {
	var req DebitRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	tx, bal, err := h.service.Debit(c.UserContext(), DebitInput{
		UserID:         c.Params("userId"),
		Currency:       req.Currency,
		Amount:         req.Amount,
		Type:           req.Type,
		IdempotencyKey: c.Get(idempotencyKeyHeader),
		LockFunds:      req.LockFunds,
		Metadata:       req.Metadata,
	})
	if err != nil {
		if errors.Is(err, ledger.ErrInsufficientFunds) && tx.ID != "" {
			return c.Status(http.StatusUnprocessableEntity).JSON(MutationResponse{
				Transaction: toTransactionResponse(tx),
				Balance:     toBalanceResponse(bal),
			})
		}
		return httpError(err)
	}
	return c.Status(http.StatusCreated).JSON(MutationResponse{
		Transaction: toTransactionResponse(tx),
		Balance:     toBalanceResponse(bal),
	})
}

// CreateDeposit opens a deposit intent with the payment provider.
func (h *Handler) CreateDeposit(c *fiber.Ctx) error {
	var req DepositRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	res, err := h.service.CreateDeposit(c.UserContext(), DepositInput{
		UserID:              c.Params("userId"),
		Currency:            req.Currency,
		Amount:              req.Amount,
		IdempotencyKey:      c.Get(idempotencyKeyHeader),
		SourceTransactionID: req.SourceTransactionID,
		Metadata:            req.Metadata,
	})
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusCreated).JSON(DepositResponse{
		IntentID:    res.IntentID,
		RedirectURL: res.RedirectURL,
		Transaction: toTransactionResponse(res.Transaction),
	})
}

// ReserveStake locks stake funds ahead of a bet settlement.
func (h *Handler) ReserveStake(c *fiber.Ctx) error {
	var req ReserveRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	bal, err := h.service.ReserveStake(c.UserContext(), c.Params("userId"), req.Currency, req.Amount)
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusOK).JSON(toBalanceResponse(bal))
}

// SettleBet releases a reserved stake and credits the win amount.
func (h *Handler) SettleBet(c *fiber.Ctx) error {
	var req SettleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	bal, err := h.service.SettleBet(c.UserContext(), c.Params("userId"), req.Currency, req.StakeAmount, req.WinAmount)
	if err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusOK).JSON(toBalanceResponse(bal))
}

// Webhook reconciles a payment provider callback. It always answers 200 for
// recognizable payloads so the provider stops retrying; duplicate and
// unknown references are deliberate no-ops.
func (h *Handler) Webhook(c *fiber.Ctx) error {
	var req WebhookRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.ExternalID == "" {
		return fiber.NewError(http.StatusBadRequest, "external_id is required")
	}
	if err := h.service.ReconcileWebhook(c.UserContext(), req.ExternalID, req.Status, req.FailureReason); err != nil {
		return httpError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "accepted"})
}
