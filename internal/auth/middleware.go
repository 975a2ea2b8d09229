package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-bot/internal/config"
	"github.com/spec-kit/support-bot/pkg/util"
)

const operatorKey = "auth_operator_id"

// Middleware validates bearer tokens and checks the subject against the
// operator allow-list. A valid token for a delisted operator is rejected.
type Middleware struct {
	tokens *TokenManager
	gwCfg  config.GatewayConfig
}

// NewMiddleware constructs middleware.
func NewMiddleware(tokens *TokenManager, gwCfg config.GatewayConfig) *Middleware {
	return &Middleware{tokens: tokens, gwCfg: gwCfg}
}

// Handle enforces authentication for protected routes.
func (m *Middleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return util.NewUnauthorized("missing authorization header")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return util.NewUnauthorized("invalid authorization header")
	}
	operatorID, err := m.tokens.ParseToken(parts[1])
	if err != nil {
		return util.NewUnauthorized("invalid token")
	}
	if !m.gwCfg.IsOperator(operatorID) {
		return util.NewUnauthorized("operator not on the allow-list")
	}
	c.Locals(operatorKey, operatorID)
	return c.Next()
}

// OperatorFromContext returns the authenticated operator ID.
func OperatorFromContext(c *fiber.Ctx) (int64, bool) {
	operatorID, ok := c.Locals(operatorKey).(int64)
	return operatorID, ok
}
