package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/khanghh/kbooks/internal/books"
	"github.com/khanghh/kbooks/internal/common"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// FinancialClient reads figures from the financial service.
type FinancialClient struct {
	baseURL    string
	httpClient *http.Client
}

func (c *FinancialClient) get(ctx context.Context, path string, query url.Values, fallbackErr string, out any) error {
	var env envelope
	err := common.DoJSON(ctx, c.httpClient, common.JSONRequest{
		URL:   c.baseURL + path,
		Query: query,
	}, &env)
	if env.Error != "" {
		return errors.New(env.Error)
	}
	if err != nil {
		return err
	}
	if !env.Success {
		return errors.New(fallbackErr)
	}
	return json.Unmarshal(env.Data, out)
}

func (c *FinancialClient) Revenue(ctx context.Context, period string, compare bool) (*books.Revenue, error) {
	var revenue books.Revenue
	err := c.get(ctx, "/revenue", url.Values{
		"period":  {period},
		"compare": {strconv.FormatBool(compare)},
	}, "failed to get revenue data", &revenue)
	if err != nil {
		return nil, err
	}
	return &revenue, nil
}

func (c *FinancialClient) Expenses(ctx context.Context, period string, compare bool) (*books.Expense, error) {
	var expense books.Expense
	err := c.get(ctx, "/expenses", url.Values{
		"period":  {period},
		"compare": {strconv.FormatBool(compare)},
	}, "failed to get expense data", &expense)
	if err != nil {
		return nil, err
	}
	return &expense, nil
}

func (c *FinancialClient) OverdueInvoices(ctx context.Context) ([]books.Invoice, error) {
	var invoices []books.Invoice
	if err := c.get(ctx, "/invoices/overdue", nil, "failed to get overdue invoices", &invoices); err != nil {
		return nil, err
	}
	return invoices, nil
}

func (c *FinancialClient) CashOnHand(ctx context.Context) (*books.CashOnHand, error) {
	var cash books.CashOnHand
	if err := c.get(ctx, "/cash", nil, "failed to get cash data", &cash); err != nil {
		return nil, err
	}
	return &cash, nil
}

func (c *FinancialClient) CashFlow(ctx context.Context, period string) (*books.CashFlow, error) {
	var cashFlow books.CashFlow
	err := c.get(ctx, "/cashflow", url.Values{"period": {period}}, "failed to get cash flow data", &cashFlow)
	if err != nil {
		return nil, err
	}
	return &cashFlow, nil
}

func NewFinancialClient(baseURL string, httpClient *http.Client) *FinancialClient {
	return &FinancialClient{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}
