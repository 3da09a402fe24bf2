package books

type Revenue struct {
	Period               string             `json:"period"`
	Amount               float64            `json:"amount"`
	PreviousPeriodAmount *float64           `json:"previousPeriodAmount,omitempty"`
	ChangePercentage     *float64           `json:"changePercentage,omitempty"`
	Currency             string             `json:"currency"`
	Breakdown            map[string]float64 `json:"breakdown"`
}

// Expense has the same shape as Revenue, broken down by vendor.
type Expense Revenue

type Invoice struct {
	InvoiceID     string  `json:"invoice_id"`
	InvoiceNumber string  `json:"invoice_number"`
	CustomerName  string  `json:"customer_name"`
	Date          string  `json:"date"`
	DueDate       string  `json:"due_date"`
	Total         float64 `json:"total"`
	Balance       float64 `json:"balance"`
	Status        string  `json:"status"`
	DaysOverdue   int     `json:"days_overdue"`
	Currency      string  `json:"currency"`
}

type Account struct {
	AccountID   string  `json:"account_id"`
	AccountName string  `json:"account_name"`
	AccountType string  `json:"account_type"`
	Balance     float64 `json:"balance"`
	Currency    string  `json:"currency"`
}

type CashFlow struct {
	Period          string  `json:"period"`
	StartingBalance float64 `json:"starting_balance"`
	EndingBalance   float64 `json:"ending_balance"`
	NetChange       float64 `json:"net_change"`
	Inflow          float64 `json:"inflow"`
	Outflow         float64 `json:"outflow"`
	Currency        string  `json:"currency"`
}

type CashOnHand struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

type InvoiceFilter struct {
	Status     string
	FromDate   string
	ToDate     string
	CustomerID string
}

// raw Zoho Books payloads

type apiResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type organizationsResponse struct {
	apiResponse
	Organizations []struct {
		OrganizationID string `json:"organization_id"`
	} `json:"organizations"`
}

type apiInvoice struct {
	InvoiceID     string  `json:"invoice_id"`
	InvoiceNumber string  `json:"invoice_number"`
	CustomerName  string  `json:"customer_name"`
	Date          string  `json:"date"`
	DueDate       string  `json:"due_date"`
	Total         float64 `json:"total"`
	Balance       float64 `json:"balance"`
	Status        string  `json:"status"`
	CurrencyCode  string  `json:"currency_code"`
}

type invoicesResponse struct {
	apiResponse
	Invoices []apiInvoice `json:"invoices"`
}

type billsResponse struct {
	apiResponse
	Bills []struct {
		VendorName string  `json:"vendor_name"`
		Total      float64 `json:"total"`
	} `json:"bills"`
}

type accountsResponse struct {
	apiResponse
	ChartOfAccounts []struct {
		AccountID      string  `json:"account_id"`
		AccountName    string  `json:"account_name"`
		AccountType    string  `json:"account_type"`
		CurrentBalance float64 `json:"current_balance"`
		CurrencyCode   string  `json:"currency_code"`
	} `json:"chartofaccounts"`
}

type statementResponse struct {
	apiResponse
	Statement struct {
		OpeningBalance float64 `json:"opening_balance"`
		ClosingBalance float64 `json:"closing_balance"`
		Transactions   []struct {
			DebitOrCredit string  `json:"debit_or_credit"`
			Amount        float64 `json:"amount"`
		} `json:"transactions"`
	} `json:"statement"`
}
