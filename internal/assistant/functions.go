package assistant

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/khanghh/kbooks/internal/books"
	"github.com/khanghh/kbooks/model"
	"github.com/sashabaranov/go-openai/jsonschema"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

const (
	FuncGetRevenueForPeriod  = "getRevenueForPeriod"
	FuncGetOverdueInvoices   = "getOverdueInvoices"
	FuncGetExpensesForPeriod = "getExpensesForPeriod"
	FuncGetCashOnHand        = "getCashOnHand"
	FuncGetCashFlow          = "getCashFlow"
	FuncGenerateResponse     = "generateResponse"
)

var periodEnum = []string{
	books.PeriodThisMonth,
	books.PeriodLastMonth,
	books.PeriodThisQuarter,
	books.PeriodLastQuarter,
	books.PeriodThisYear,
	books.PeriodLastYear,
}

var readablePeriods = map[string]string{
	books.PeriodThisMonth:      "this month",
	books.PeriodLastMonth:      "last month",
	books.PeriodTwoMonthsAgo:   "two months ago",
	books.PeriodThisQuarter:    "this quarter",
	books.PeriodLastQuarter:    "last quarter",
	books.PeriodTwoQuartersAgo: "two quarters ago",
	books.PeriodThisYear:       "this year",
	books.PeriodLastYear:       "last year",
}

var amountPrinter = message.NewPrinter(language.AmericanEnglish)

func formatPeriod(period string) string {
	if readable, ok := readablePeriods[period]; ok {
		return readable
	}
	return period
}

// formatAmount renders a dollar amount with grouping and at most two decimals.
func formatAmount(amount float64) string {
	return "$" + amountPrinter.Sprint(number.Decimal(amount, number.MaxFractionDigits(2)))
}

func periodDefinition(what string, withCompare bool) jsonschema.Definition {
	def := jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"period": {
				Type:        jsonschema.String,
				Enum:        periodEnum,
				Description: "The time period to get " + what + " for",
			},
		},
		Required: []string{"period"},
	}
	if withCompare {
		def.Properties["compareWithPrevious"] = jsonschema.Definition{
			Type:        jsonschema.Boolean,
			Description: "Whether to include comparison with the previous period",
		}
	}
	return def
}

func emptyDefinition() jsonschema.Definition {
	return jsonschema.Definition{
		Type:       jsonschema.Object,
		Properties: map[string]jsonschema.Definition{},
	}
}

// FunctionDefinitions is the fixed set of functions offered to the provider.
func FunctionDefinitions() []FunctionDefinition {
	return []FunctionDefinition{
		{
			Name:        FuncGetRevenueForPeriod,
			Description: "Get revenue information for a specific time period",
			Parameters:  periodDefinition("revenue", true),
		},
		{
			Name:        FuncGetOverdueInvoices,
			Description: "Get a list of overdue invoices",
			Parameters:  emptyDefinition(),
		},
		{
			Name:        FuncGetExpensesForPeriod,
			Description: "Get expense information for a specific time period",
			Parameters:  periodDefinition("expenses", true),
		},
		{
			Name:        FuncGetCashOnHand,
			Description: "Get the current cash on hand",
			Parameters:  emptyDefinition(),
		},
		{
			Name:        FuncGetCashFlow,
			Description: "Get cash flow information for a specific time period",
			Parameters:  periodDefinition("cash flow", false),
		},
		{
			Name:        FuncGenerateResponse,
			Description: "Generate a text response when no specific function is needed",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"text": {Type: jsonschema.String, Description: "The text response to give to the user"},
				},
				Required: []string{"text"},
			},
		},
	}
}

type FunctionHandler func(ctx context.Context, args model.FunctionArgs) (*model.FunctionResult, error)

type FinancialSource interface {
	Revenue(ctx context.Context, period string, compare bool) (*books.Revenue, error)
	Expenses(ctx context.Context, period string, compare bool) (*books.Expense, error)
	OverdueInvoices(ctx context.Context) ([]books.Invoice, error)
	CashOnHand(ctx context.Context) (*books.CashOnHand, error)
	CashFlow(ctx context.Context, period string) (*books.CashFlow, error)
}

func newResult(readable string, data any) (*model.FunctionResult, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &model.FunctionResult{ReadableResponse: readable, Data: raw}, nil
}

func changeSentence(previous, change *float64) string {
	if previous == nil || change == nil {
		return ""
	}
	direction := "increased"
	if *change < 0 {
		direction = "decreased"
	}
	return fmt.Sprintf(" This has %s by %.1f%% compared to the previous period.", direction, math.Abs(*change))
}

type overdueSummary struct {
	Count           int              `json:"count"`
	TotalAmount     float64          `json:"totalAmount"`
	FormattedAmount string           `json:"formattedAmount"`
	Invoices        []overdueInvoice `json:"invoices"`
}

type overdueInvoice struct {
	ID          string  `json:"id"`
	Customer    string  `json:"customer"`
	Amount      float64 `json:"amount"`
	DaysOverdue int     `json:"daysOverdue"`
}

type cashSummary struct {
	Amount          float64 `json:"amount"`
	FormattedAmount string  `json:"formattedAmount"`
	Currency        string  `json:"currency"`
}

// FunctionHandlers binds every function definition to the financial source.
func FunctionHandlers(source FinancialSource) map[string]FunctionHandler {
	return map[string]FunctionHandler{
		FuncGetRevenueForPeriod: func(ctx context.Context, args model.FunctionArgs) (*model.FunctionResult, error) {
			revenue, err := source.Revenue(ctx, args.Period, args.CompareWithPrevious)
			if err != nil {
				return nil, fmt.Errorf("failed to retrieve revenue data: %w", err)
			}
			readable := fmt.Sprintf("The revenue for %s is %s.", formatPeriod(args.Period), formatAmount(revenue.Amount)) +
				changeSentence(revenue.PreviousPeriodAmount, revenue.ChangePercentage)
			return newResult(readable, revenue)
		},
		FuncGetOverdueInvoices: func(ctx context.Context, args model.FunctionArgs) (*model.FunctionResult, error) {
			invoices, err := source.OverdueInvoices(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to retrieve overdue invoices: %w", err)
			}
			summary := overdueSummary{Count: len(invoices), Invoices: make([]overdueInvoice, 0, len(invoices))}
			for _, inv := range invoices {
				summary.TotalAmount += inv.Balance
				summary.Invoices = append(summary.Invoices, overdueInvoice{
					ID:          inv.InvoiceID,
					Customer:    inv.CustomerName,
					Amount:      inv.Balance,
					DaysOverdue: inv.DaysOverdue,
				})
			}
			summary.FormattedAmount = formatAmount(summary.TotalAmount)

			var readable strings.Builder
			fmt.Fprintf(&readable, "There are %d overdue invoices totaling %s.", summary.Count, summary.FormattedAmount)
			if len(invoices) > 0 {
				largest := slices.MaxFunc(invoices, func(a, b books.Invoice) int {
					return cmp.Compare(a.Balance, b.Balance)
				})
				fmt.Fprintf(&readable, " The largest is from %s for %s, which is %d days overdue.",
					largest.CustomerName, formatAmount(largest.Balance), largest.DaysOverdue)
			}
			return newResult(readable.String(), summary)
		},
		FuncGetExpensesForPeriod: func(ctx context.Context, args model.FunctionArgs) (*model.FunctionResult, error) {
			expense, err := source.Expenses(ctx, args.Period, args.CompareWithPrevious)
			if err != nil {
				return nil, fmt.Errorf("failed to retrieve expense data: %w", err)
			}
			readable := fmt.Sprintf("The expenses for %s are %s.", formatPeriod(args.Period), formatAmount(expense.Amount)) +
				changeSentence(expense.PreviousPeriodAmount, expense.ChangePercentage)
			return newResult(readable, expense)
		},
		FuncGetCashOnHand: func(ctx context.Context, args model.FunctionArgs) (*model.FunctionResult, error) {
			cash, err := source.CashOnHand(ctx)
			if err != nil {
				return nil, fmt.Errorf("failed to retrieve cash on hand data: %w", err)
			}
			summary := cashSummary{Amount: cash.Amount, FormattedAmount: formatAmount(cash.Amount), Currency: cash.Currency}
			if summary.Currency == "" {
				summary.Currency = "USD"
			}
			return newResult(fmt.Sprintf("The current cash on hand is %s.", summary.FormattedAmount), summary)
		},
		FuncGetCashFlow: func(ctx context.Context, args model.FunctionArgs) (*model.FunctionResult, error) {
			flow, err := source.CashFlow(ctx, args.Period)
			if err != nil {
				return nil, fmt.Errorf("failed to retrieve cash flow data: %w", err)
			}
			readable := fmt.Sprintf("For %s, the cash flow started at %s and ended at %s.",
				formatPeriod(args.Period), formatAmount(flow.StartingBalance), formatAmount(flow.EndingBalance))
			switch {
			case flow.NetChange > 0:
				readable += fmt.Sprintf(" This represents a net increase of %s.", formatAmount(flow.NetChange))
			case flow.NetChange < 0:
				readable += fmt.Sprintf(" This represents a net decrease of %s.", formatAmount(-flow.NetChange))
			default:
				readable += " There was no net change in cash."
			}
			return newResult(readable, flow)
		},
		FuncGenerateResponse: func(ctx context.Context, args model.FunctionArgs) (*model.FunctionResult, error) {
			return newResult(args.Text, map[string]string{"text": args.Text})
		},
	}
}
