package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Vitls1979/online-platform/internal/middleware"
	"github.com/Vitls1979/online-platform/internal/wallet"
)

// RegisterWalletRoutes attaches wallet, deposit, and bet endpoints. The
// response-caching idempotency middleware guards only the payment operations
// that clients retry with an Idempotency-Key; bet reserve/settle come from
// the game engine, which delivers each instruction at most once.
func RegisterWalletRoutes(router fiber.Router, h *wallet.Handler, d Deps) {
	wallets := router.Group("/wallets/:userId")

	wallets.Get("/balances/:currency", h.Balance)
	wallets.Get("/transactions", h.Transactions)

	idem := passthrough()
	if d.Cache != nil {
		idem = middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
	}
	wallets.Post("/credit", idem, h.Credit)
	wallets.Post("/debit", idem, h.Debit)
	wallets.Post("/deposits", idem, h.CreateDeposit)

	wallets.Post("/bets/reserve", h.ReserveStake)
	wallets.Post("/bets/settle", h.SettleBet)
}

func passthrough() fiber.Handler {
	return func(c *fiber.Ctx) error { return c.Next() }
}
