package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-bot/internal/api/dto"
	"github.com/spec-kit/support-bot/internal/auth"
	"github.com/spec-kit/support-bot/internal/repository"
	"github.com/spec-kit/support-bot/pkg/util"
)

// OpsTicketsHandler exposes read-only ticket views to operators: the
// unassigned queue and their own workload. All mutations stay in the bot.
type OpsTicketsHandler struct {
	tickets repository.TicketRepository
}

// NewOpsTicketsHandler constructs handler.
func NewOpsTicketsHandler(tickets repository.TicketRepository) *OpsTicketsHandler {
	return &OpsTicketsHandler{tickets: tickets}
}

// Unassigned GET /api/v1/ops/tickets/unassigned.
func (h *OpsTicketsHandler) Unassigned(c *fiber.Ctx) error {
	if _, ok := auth.OperatorFromContext(c); !ok {
		return util.NewUnauthorized("operator required")
	}
	limit := queryLimit(c)
	list, err := h.tickets.ListUnassigned(c.UserContext(), limit)
	if err != nil {
		return util.NewInternalError(err)
	}
	return c.JSON(fiber.Map{"data": dto.FromTickets(list)})
}

// Mine GET /api/v1/ops/tickets/mine.
func (h *OpsTicketsHandler) Mine(c *fiber.Ctx) error {
	operatorID, ok := auth.OperatorFromContext(c)
	if !ok {
		return util.NewUnauthorized("operator required")
	}
	onlyActive := c.Query("all") == ""
	limit := queryLimit(c)
	list, err := h.tickets.ListByOperator(c.UserContext(), operatorID, onlyActive, limit)
	if err != nil {
		return util.NewInternalError(err)
	}
	return c.JSON(fiber.Map{"data": dto.FromTickets(list)})
}

// ByNumber GET /api/v1/ops/tickets/:number.
func (h *OpsTicketsHandler) ByNumber(c *fiber.Ctx) error {
	if _, ok := auth.OperatorFromContext(c); !ok {
		return util.NewUnauthorized("operator required")
	}
	number, err := strconv.Atoi(c.Params("number"))
	if err != nil {
		return util.NewValidationError("number must be an integer", nil)
	}
	ticket, err := h.tickets.GetByNumber(c.UserContext(), number)
	if err != nil {
		if repository.IsNotFound(err) {
			return util.NewNotFound("ticket", map[string]any{"number": number})
		}
		return util.NewInternalError(err)
	}
	return c.JSON(fiber.Map{"data": dto.FromTicket(ticket)})
}

func queryLimit(c *fiber.Ctx) int {
	limit, err := strconv.Atoi(c.Query("limit", "20"))
	if err != nil || limit <= 0 || limit > 100 {
		return 20
	}
	return limit
}
