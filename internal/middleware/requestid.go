package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-ID"

	// RequestIDKey is the fiber locals key under which the request id is
	// stored for downstream handlers and the audit log.
	RequestIDKey = "request_id"
)

// RequestID ensures each request carries a correlation identifier. An inbound
// X-Request-ID is kept as-is so gateway callbacks and client retries stay
// traceable across services; otherwise a fresh UUID is assigned. The id is
// always echoed on the response.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqID := c.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}

		c.Locals(RequestIDKey, reqID)
		c.Set(requestIDHeader, reqID)

		return c.Next()
	}
}
