package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/diniznaomi/desafio-dev-api-rest/internal/core/account"
	"github.com/diniznaomi/desafio-dev-api-rest/internal/core/account/store/accountdb"
	"github.com/diniznaomi/desafio-dev-api-rest/internal/core/holder"
	"github.com/diniznaomi/desafio-dev-api-rest/internal/core/holder/store/holderdb"
	"github.com/diniznaomi/desafio-dev-api-rest/internal/core/ledger"
	"github.com/diniznaomi/desafio-dev-api-rest/internal/core/ledger/store/ledgerdb"
	"github.com/diniznaomi/desafio-dev-api-rest/internal/data/dbtest"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	log, db, teardown := dbtest.NewUnit(t, dbtest.WithMigrations())
	t.Cleanup(teardown)

	holders := holder.NewCore(holderdb.NewStore(log, db))
	accounts := account.NewCore(accountdb.NewStore(log, db), holders, "0001")
	ledgerCore, err := ledger.NewCore(log, ledgerdb.NewStore(log, db))
	if err != nil {
		t.Fatalf("creating ledger core: %v", err)
	}

	server := NewServer(log, holders, accounts, ledgerCore)
	httpServer := httptest.NewServer(APIMux(server, otel.GetTracerProvider().Tracer("")))
	t.Cleanup(httpServer.Close)

	return httpServer
}

func do(t *testing.T, server *httptest.Server, method, path, body string) (int, []byte) {
	t.Helper()

	req, err := http.NewRequest(method, server.URL+path, bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	bs, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading response body: %v", err)
	}

	return resp.StatusCode, bs
}

func TestBankFlow(t *testing.T) {
	server := newTestServer(t)

	code, _ := do(t, server, "POST", "/holders", `{"fullName":"Maria Silva","cpf":"12345678901"}`)
	if code != http.StatusCreated {
		t.Fatalf("creating holder: got status %d, want 201", code)
	}

	code, body := do(t, server, "POST", "/accounts", `{"cpf":"12345678901"}`)
	if code != http.StatusCreated {
		t.Fatalf("creating account: got status %d, want 201", code)
	}

	var acc CreateAccountResp
	if err := json.Unmarshal(body, &acc); err != nil {
		t.Fatalf("failed to unmarshal account: %v", err)
	}
	if len(acc.AccountNumber) != 6 {
		t.Fatalf("got account number %q, want 6 digits", acc.AccountNumber)
	}

	code, body = do(t, server, "GET", "/accounts/12345678901", "")
	if code != http.StatusOK {
		t.Fatalf("finding account by cpf: got status %d, want 200", code)
	}
	var view AccountResp
	if err := json.Unmarshal(body, &view); err != nil {
		t.Fatalf("failed to unmarshal account view: %v", err)
	}
	if !view.Balance.IsZero() || view.Status != "ACTIVE" {
		t.Fatalf("new account should be ACTIVE with zero balance, got %+v", view)
	}

	code, body = do(t, server, "POST", "/accounts/transactions/deposit",
		`{"accountNumber":"`+acc.AccountNumber+`","amount":100.00}`)
	if code != http.StatusCreated {
		t.Fatalf("depositing: got status %d, want 201", code)
	}
	var dt TransactionResp
	if err := json.Unmarshal(body, &dt); err != nil {
		t.Fatalf("failed to unmarshal transaction: %v", err)
	}
	if !dt.NewBalance.Equal(decimal.RequireFromString("100")) {
		t.Fatalf("got newBalance %v, want 100", dt.NewBalance)
	}

	code, _ = do(t, server, "POST", "/accounts/transactions/withdraw",
		`{"accountNumber":"`+acc.AccountNumber+`","amount":30.00}`)
	if code != http.StatusCreated {
		t.Fatalf("withdrawing: got status %d, want 201", code)
	}

	code, _ = do(t, server, "POST", "/accounts/transactions/withdraw",
		`{"accountNumber":"`+acc.AccountNumber+`","amount":2000.00}`)
	if code != http.StatusUnprocessableEntity {
		t.Fatalf("withdrawing more than balance: got status %d, want 422", code)
	}

	code, body = do(t, server, "GET", "/accounts/transactions/"+acc.AccountNumber, "")
	if code != http.StatusOK {
		t.Fatalf("querying history: got status %d, want 200", code)
	}
	var history HistoryResp
	if err := json.Unmarshal(body, &history); err != nil {
		t.Fatalf("failed to unmarshal history: %v", err)
	}
	if history.Total != 2 {
		t.Fatalf("got %d transactions, want 2", history.Total)
	}
	if !history.History[0].NewBalance.Equal(decimal.RequireFromString("70")) {
		t.Fatalf("latest newBalance should be 70, got %v", history.History[0].NewBalance)
	}
}

func TestStatusConflicts(t *testing.T) {
	server := newTestServer(t)

	do(t, server, "POST", "/holders", `{"fullName":"Maria Silva","cpf":"12345678901"}`)
	_, body := do(t, server, "POST", "/accounts", `{"cpf":"12345678901"}`)
	var acc CreateAccountResp
	if err := json.Unmarshal(body, &acc); err != nil {
		t.Fatalf("failed to unmarshal account: %v", err)
	}

	code, _ := do(t, server, "PATCH", "/accounts/"+acc.AccountNumber+"/status", `{"status":"BLOCKED"}`)
	if code != http.StatusNoContent {
		t.Fatalf("blocking account: got status %d, want 204", code)
	}

	code, _ = do(t, server, "POST", "/accounts/transactions/deposit",
		`{"accountNumber":"`+acc.AccountNumber+`","amount":10.00}`)
	if code != http.StatusConflict {
		t.Fatalf("depositing to blocked account: got status %d, want 409", code)
	}

	code, _ = do(t, server, "PATCH", "/accounts/"+acc.AccountNumber+"/status", `{"status":"CLOSED"}`)
	if code != http.StatusNoContent {
		t.Fatalf("closing account: got status %d, want 204", code)
	}

	code, _ = do(t, server, "PATCH", "/accounts/"+acc.AccountNumber+"/status", `{"status":"BLOCKED"}`)
	if code != http.StatusConflict {
		t.Fatalf("blocking closed account: got status %d, want 409", code)
	}
}

func TestErrorMapping(t *testing.T) {
	server := newTestServer(t)

	do(t, server, "POST", "/holders", `{"fullName":"Maria Silva","cpf":"12345678901"}`)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantedCode int
	}{
		{"invalid cpf", "POST", "/holders", `{"fullName":"x","cpf":"123"}`, 400},
		{"duplicated cpf", "POST", "/holders", `{"fullName":"x","cpf":"12345678901"}`, 409},
		{"account for unknown holder", "POST", "/accounts", `{"cpf":"99999999999"}`, 404},
		{"unknown account", "GET", "/accounts/000000", "", 404},
		{"deposit to unknown account", "POST", "/accounts/transactions/deposit", `{"accountNumber":"000000","amount":10}`, 404},
		{"invalid status", "PATCH", "/accounts/000000/status", `{"status":"FROZEN"}`, 400},
		{"invalid holder id", "DELETE", "/holders/not-a-uuid", "", 400},
		{"bad json", "POST", "/holders", `{`, 400},
		{"history of unknown account", "GET", "/accounts/transactions/000000", "", 404},
		{"bad history date", "GET", "/accounts/transactions/000000?startDate=15-06-2024", "", 400},
		{"bad history type", "GET", "/accounts/transactions/000000?type=TRANSFER", "", 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := do(t, server, tt.method, tt.path, tt.body)
			if code != tt.wantedCode {
				t.Fatalf("got status %d, want %d", code, tt.wantedCode)
			}
		})
	}
}
