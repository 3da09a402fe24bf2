package books

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/khanghh/kbooks/internal/common"
	"github.com/khanghh/kbooks/params"
)

var ErrNoOrganization = errors.New("no organizations found")

// Connector opens Books clients bound to one user's tokens and organization.
type Connector struct {
	httpClient *http.Client
	tokens     TokenProvider
	baseURL    func(apiDomain string) string
	now        func() time.Time
}

// Open fetches the user's tokens and resolves the first organization of the account.
func (c *Connector) Open(ctx context.Context, userIdentifier string) (*Client, error) {
	client, err := c.open(ctx, userIdentifier)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Zoho Books service: %w", err)
	}
	return client, nil
}

func (c *Connector) open(ctx context.Context, userIdentifier string) (*Client, error) {
	bundle, err := c.tokens.GetTokens(ctx, userIdentifier)
	if err != nil {
		return nil, err
	}
	client := &Client{
		httpClient:  c.httpClient,
		baseURL:     c.baseURL(bundle.APIDomain),
		accessToken: bundle.AccessToken,
		now:         c.now,
	}
	var resp organizationsResponse
	if err := client.get(ctx, "/organizations", nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to get organization ID: %w", err)
	}
	if len(resp.Organizations) == 0 {
		return nil, fmt.Errorf("failed to get organization ID: %w", ErrNoOrganization)
	}
	client.organizationID = resp.Organizations[0].OrganizationID
	return client, nil
}

// NewConnector returns a connector that reaches Books on the api domain of each
// user's tokens, or on apiBaseURL for every user when it is set.
func NewConnector(tokens TokenProvider, httpClient *http.Client, apiBaseURL string) *Connector {
	baseURL := func(apiDomain string) string {
		return "https://" + apiDomain + "/books/v3"
	}
	if apiBaseURL != "" {
		baseURL = func(string) string { return strings.TrimSuffix(apiBaseURL, "/") }
	}
	return &Connector{
		httpClient: httpClient,
		tokens:     tokens,
		baseURL:    baseURL,
		now:        time.Now,
	}
}

// Client is a read-only Zoho Books client for a single organization.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	accessToken    string
	organizationID string
	now            func() time.Time
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	q := url.Values{}
	if c.organizationID != "" {
		q.Set("organization_id", c.organizationID)
	}
	for key, values := range query {
		for _, v := range values {
			if v != "" {
				q.Add(key, v)
			}
		}
	}
	err := common.DoJSON(ctx, c.httpClient, common.JSONRequest{
		URL:    c.baseURL + path,
		Query:  q,
		Header: http.Header{"Authorization": {"Bearer " + c.accessToken}},
	}, out)
	if status, ok := out.(interface{ apiMessage() string }); ok && err != nil {
		if msg := status.apiMessage(); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
	}
	return err
}

func (r *apiResponse) apiMessage() string {
	return r.Message
}

func (c *Client) GetRevenue(ctx context.Context, period string, compareWithPrevious bool) (*Revenue, error) {
	revenue, err := c.getRevenue(ctx, period, compareWithPrevious)
	if err != nil {
		return nil, fmt.Errorf("failed to get revenue: %w", err)
	}
	return revenue, nil
}

func (c *Client) getRevenue(ctx context.Context, period string, compareWithPrevious bool) (*Revenue, error) {
	timeRange := DateRangeForPeriod(period, c.now())
	var resp invoicesResponse
	err := c.get(ctx, "/invoices", url.Values{
		"from_date": {timeRange.FromDate},
		"to_date":   {timeRange.ToDate},
	}, &resp)
	if err != nil {
		return nil, err
	}

	revenue := &Revenue{
		Period:    period,
		Currency:  params.DefaultCurrency,
		Breakdown: make(map[string]float64),
	}
	for _, invoice := range resp.Invoices {
		revenue.Amount += invoice.Total
		revenue.Breakdown[invoice.CustomerName] += invoice.Total
	}

	if previous := PreviousPeriod(period); compareWithPrevious && previous != "" {
		prev, err := c.getRevenue(ctx, previous, false)
		if err != nil {
			return nil, err
		}
		change := PercentageChange(revenue.Amount, prev.Amount)
		revenue.PreviousPeriodAmount = &prev.Amount
		revenue.ChangePercentage = &change
	}
	return revenue, nil
}

func (c *Client) GetInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, error) {
	var resp invoicesResponse
	err := c.get(ctx, "/invoices", url.Values{
		"status":      {filter.Status},
		"from_date":   {filter.FromDate},
		"to_date":     {filter.ToDate},
		"customer_id": {filter.CustomerID},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to get invoices: %w", err)
	}

	now := c.now()
	invoices := make([]Invoice, 0, len(resp.Invoices))
	for _, inv := range resp.Invoices {
		currency := inv.CurrencyCode
		if currency == "" {
			currency = params.DefaultCurrency
		}
		invoices = append(invoices, Invoice{
			InvoiceID:     inv.InvoiceID,
			InvoiceNumber: inv.InvoiceNumber,
			CustomerName:  inv.CustomerName,
			Date:          inv.Date,
			DueDate:       inv.DueDate,
			Total:         inv.Total,
			Balance:       inv.Balance,
			Status:        inv.Status,
			DaysOverdue:   DaysOverdue(inv.DueDate, now),
			Currency:      currency,
		})
	}
	return invoices, nil
}

func (c *Client) GetOverdueInvoices(ctx context.Context) ([]Invoice, error) {
	return c.GetInvoices(ctx, InvoiceFilter{Status: "overdue"})
}

func (c *Client) GetExpenses(ctx context.Context, period string, compareWithPrevious bool) (*Expense, error) {
	expense, err := c.getExpenses(ctx, period, compareWithPrevious)
	if err != nil {
		return nil, fmt.Errorf("failed to get expenses: %w", err)
	}
	return expense, nil
}

func (c *Client) getExpenses(ctx context.Context, period string, compareWithPrevious bool) (*Expense, error) {
	timeRange := DateRangeForPeriod(period, c.now())
	var resp billsResponse
	err := c.get(ctx, "/bills", url.Values{
		"from_date": {timeRange.FromDate},
		"to_date":   {timeRange.ToDate},
	}, &resp)
	if err != nil {
		return nil, err
	}

	expense := &Expense{
		Period:    period,
		Currency:  params.DefaultCurrency,
		Breakdown: make(map[string]float64),
	}
	for _, bill := range resp.Bills {
		expense.Amount += bill.Total
		expense.Breakdown[bill.VendorName] += bill.Total
	}

	if previous := PreviousPeriod(period); compareWithPrevious && previous != "" {
		prev, err := c.getExpenses(ctx, previous, false)
		if err != nil {
			return nil, err
		}
		change := PercentageChange(expense.Amount, prev.Amount)
		expense.PreviousPeriodAmount = &prev.Amount
		expense.ChangePercentage = &change
	}
	return expense, nil
}

func (c *Client) GetAccounts(ctx context.Context, accountType string) ([]Account, error) {
	var resp accountsResponse
	err := c.get(ctx, "/chartofaccounts", url.Values{"account_type": {accountType}}, &resp)
	if err != nil {
		return nil, fmt.Errorf("failed to get accounts: %w", err)
	}
	accounts := make([]Account, 0, len(resp.ChartOfAccounts))
	for _, acc := range resp.ChartOfAccounts {
		currency := acc.CurrencyCode
		if currency == "" {
			currency = params.DefaultCurrency
		}
		accounts = append(accounts, Account{
			AccountID:   acc.AccountID,
			AccountName: acc.AccountName,
			AccountType: acc.AccountType,
			Balance:     acc.CurrentBalance,
			Currency:    currency,
		})
	}
	return accounts, nil
}

// GetCashOnHand sums the balances of all bank accounts.
func (c *Client) GetCashOnHand(ctx context.Context) (*CashOnHand, error) {
	accounts, err := c.GetAccounts(ctx, "bank")
	if err != nil {
		return nil, fmt.Errorf("failed to get cash on hand: %w", err)
	}
	cash := &CashOnHand{Currency: params.DefaultCurrency}
	for _, acc := range accounts {
		cash.Amount += acc.Balance
	}
	return cash, nil
}

// GetCashFlow aggregates the bank statements of every bank account over period.
func (c *Client) GetCashFlow(ctx context.Context, period string) (*CashFlow, error) {
	cashFlow, err := c.getCashFlow(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("failed to get cash flow: %w", err)
	}
	return cashFlow, nil
}

func (c *Client) getCashFlow(ctx context.Context, period string) (*CashFlow, error) {
	timeRange := DateRangeForPeriod(period, c.now())
	accounts, err := c.GetAccounts(ctx, "bank")
	if err != nil {
		return nil, err
	}

	cashFlow := &CashFlow{Period: period, Currency: params.DefaultCurrency}
	for _, acc := range accounts {
		var resp statementResponse
		err := c.get(ctx, "/bankaccounts/"+url.PathEscape(acc.AccountID)+"/statement", url.Values{
			"from_date": {timeRange.FromDate},
			"to_date":   {timeRange.ToDate},
		}, &resp)
		if err != nil {
			return nil, err
		}
		cashFlow.StartingBalance += resp.Statement.OpeningBalance
		cashFlow.EndingBalance += resp.Statement.ClosingBalance
		for _, txn := range resp.Statement.Transactions {
			if txn.DebitOrCredit == "credit" {
				cashFlow.Inflow += txn.Amount
			} else {
				cashFlow.Outflow += txn.Amount
			}
		}
	}
	cashFlow.NetChange = cashFlow.EndingBalance - cashFlow.StartingBalance
	return cashFlow, nil
}
