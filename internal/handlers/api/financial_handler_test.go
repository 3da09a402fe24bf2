package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/khanghh/kbooks/internal/books"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// newUpstream fakes both the auth service token endpoint and the Books API.
func newUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/tokens", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("user") != "default" {
			writeJSON(w, map[string]any{"success": false, "error": "No tokens found for this user"})
			return
		}
		writeJSON(w, map[string]any{"success": true, "data": map[string]any{
			"access_token": "access-1",
			"api_domain":   "www.zohoapis.com",
		}})
	})
	mux.HandleFunc("/books/v3/organizations", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer access-1", r.Header.Get("Authorization"))
		writeJSON(w, map[string]any{"organizations": []map[string]any{{"organization_id": "org-1"}}})
	})
	mux.HandleFunc("/books/v3/chartofaccounts", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"chartofaccounts": []map[string]any{
			{"account_id": "b1", "account_name": "Checking", "account_type": "bank", "current_balance": 1500},
			{"account_id": "b2", "account_name": "Savings", "account_type": "bank", "current_balance": 500},
		}})
	})
	mux.HandleFunc("/books/v3/invoices", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "overdue", r.URL.Query().Get("status"))
		writeJSON(w, map[string]any{"invoices": []map[string]any{
			{"invoice_id": "inv-1", "customer_name": "Acme", "due_date": "2024-05-05", "total": 500, "balance": 400, "status": "overdue"},
		}})
	})
	mux.HandleFunc("/books/v3/bills", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		writeJSON(w, map[string]any{"code": 57, "message": "You are not authorized to perform this operation"})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newFinancialTestApp(t *testing.T) *fiber.App {
	t.Helper()
	srv := newUpstream(t)
	tokenProvider := books.NewAuthServiceTokens(srv.URL+"/auth", srv.Client())
	handler := NewFinancialHandler(books.NewConnector(tokenProvider, srv.Client(), srv.URL+"/books/v3/"))

	app := fiber.New()
	app.Get("/invoices/overdue", handler.GetOverdueInvoices)
	app.Get("/expenses", handler.GetExpenses)
	app.Get("/accounts", handler.GetAccounts)
	app.Get("/cash", handler.GetCashOnHand)
	app.Get("/health", handler.GetHealth)
	return app
}

func TestFinancialHandler_CashOnHand(t *testing.T) {
	app := newFinancialTestApp(t)

	resp, body := doRequest(t, app, fiber.MethodGet, "/cash", nil)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"success":true,"data":{"amount":2000,"currency":"USD"}}`, string(body))
}

func TestFinancialHandler_OverdueInvoices(t *testing.T) {
	app := newFinancialTestApp(t)

	resp, body := doRequest(t, app, fiber.MethodGet, "/invoices/overdue", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	out := decodeBody(t, body)
	invoices := out["data"].([]any)
	require.Len(t, invoices, 1)
	invoice := invoices[0].(map[string]any)
	assert.Equal(t, "inv-1", invoice["invoice_id"])
	assert.Equal(t, "Acme", invoice["customer_name"])
	assert.Equal(t, "USD", invoice["currency"])
}

func TestFinancialHandler_Accounts(t *testing.T) {
	app := newFinancialTestApp(t)

	_, body := doRequest(t, app, fiber.MethodGet, "/accounts?account_type=bank", nil)
	out := decodeBody(t, body)
	assert.Equal(t, true, out["success"])
	assert.Len(t, out["data"], 2)
}

func TestFinancialHandler_Errors(t *testing.T) {
	app := newFinancialTestApp(t)

	resp, body := doRequest(t, app, fiber.MethodGet, "/cash?user=mallory", nil)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.JSONEq(t, `{"success":false,"error":"failed to initialize Zoho Books service: No tokens found for this user"}`, string(body))

	resp, body = doRequest(t, app, fiber.MethodGet, "/expenses?period=last_month", nil)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	out := decodeBody(t, body)
	assert.Equal(t, false, out["success"])
	assert.Contains(t, out["error"], "failed to get expenses")
}

func TestFinancialHandler_Health(t *testing.T) {
	app := newFinancialTestApp(t)
	_, body := doRequest(t, app, fiber.MethodGet, "/health", nil)
	assert.JSONEq(t, `{"status":"OK","message":"Financial service is running"}`, string(body))
}
