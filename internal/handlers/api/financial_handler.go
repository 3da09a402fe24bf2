package api

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/kbooks/internal/books"
	"github.com/spf13/cast"
)

type BooksConnector interface {
	Open(ctx context.Context, userIdentifier string) (*books.Client, error)
}

type FinancialHandler struct {
	connector BooksConnector
}

func (h *FinancialHandler) openClient(ctx *fiber.Ctx) (*books.Client, error) {
	return h.connector.Open(ctx.UserContext(), userIdentifier(ctx.Query("user")))
}

func queryPeriod(ctx *fiber.Ctx) string {
	return ctx.Query("period", books.PeriodThisMonth)
}

// respond writes the {success, data} envelope, or a 500 error envelope when err is set.
func respond(ctx *fiber.Ctx, action string, data any, err error) error {
	if err != nil {
		slog.Error("Failed to "+action, "path", ctx.Path(), "error", err)
		return ctx.Status(fiber.StatusInternalServerError).JSON(NewErrorResponse(err.Error()))
	}
	return ctx.JSON(NewDataResponse(data))
}

func (h *FinancialHandler) GetRevenue(ctx *fiber.Ctx) error {
	client, err := h.openClient(ctx)
	if err != nil {
		return respond(ctx, "get revenue", nil, err)
	}
	revenue, err := client.GetRevenue(ctx.UserContext(), queryPeriod(ctx), cast.ToBool(ctx.Query("compare")))
	return respond(ctx, "get revenue", revenue, err)
}

func (h *FinancialHandler) GetInvoices(ctx *fiber.Ctx) error {
	client, err := h.openClient(ctx)
	if err != nil {
		return respond(ctx, "get invoices", nil, err)
	}
	invoices, err := client.GetInvoices(ctx.UserContext(), books.InvoiceFilter{
		Status:     ctx.Query("status"),
		FromDate:   ctx.Query("from_date"),
		ToDate:     ctx.Query("to_date"),
		CustomerID: ctx.Query("customer_id"),
	})
	return respond(ctx, "get invoices", invoices, err)
}

func (h *FinancialHandler) GetOverdueInvoices(ctx *fiber.Ctx) error {
	client, err := h.openClient(ctx)
	if err != nil {
		return respond(ctx, "get overdue invoices", nil, err)
	}
	invoices, err := client.GetOverdueInvoices(ctx.UserContext())
	return respond(ctx, "get overdue invoices", invoices, err)
}

func (h *FinancialHandler) GetExpenses(ctx *fiber.Ctx) error {
	client, err := h.openClient(ctx)
	if err != nil {
		return respond(ctx, "get expenses", nil, err)
	}
	expenses, err := client.GetExpenses(ctx.UserContext(), queryPeriod(ctx), cast.ToBool(ctx.Query("compare")))
	return respond(ctx, "get expenses", expenses, err)
}

func (h *FinancialHandler) GetAccounts(ctx *fiber.Ctx) error {
	client, err := h.openClient(ctx)
	if err != nil {
		return respond(ctx, "get accounts", nil, err)
	}
	accounts, err := client.GetAccounts(ctx.UserContext(), ctx.Query("account_type"))
	return respond(ctx, "get accounts", accounts, err)
}

func (h *FinancialHandler) GetCashOnHand(ctx *fiber.Ctx) error {
	client, err := h.openClient(ctx)
	if err != nil {
		return respond(ctx, "get cash on hand", nil, err)
	}
	cash, err := client.GetCashOnHand(ctx.UserContext())
	return respond(ctx, "get cash on hand", cash, err)
}

func (h *FinancialHandler) GetCashFlow(ctx *fiber.Ctx) error {
	client, err := h.openClient(ctx)
	if err != nil {
		return respond(ctx, "get cash flow", nil, err)
	}
	cashFlow, err := client.GetCashFlow(ctx.UserContext(), queryPeriod(ctx))
	return respond(ctx, "get cash flow", cashFlow, err)
}

func (h *FinancialHandler) GetHealth(ctx *fiber.Ctx) error {
	return ctx.JSON(newHealthResponse("Financial service"))
}

func NewFinancialHandler(connector BooksConnector) *FinancialHandler {
	return &FinancialHandler{connector: connector}
}
