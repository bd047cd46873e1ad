package okx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const balanceBody = `{
	"code": "0",
	"msg": "",
	"data": [{
		"totalEq": "10250.5",
		"details": [
			{"ccy": "USDT", "availBal": "5000.25"},
			{"ccy": "BTC", "availBal": "0.5"},
			{"ccy": "DUST", "availBal": "0"}
		]
	}]
}`

func TestAccountBalance(t *testing.T) {
	var gotReq *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReq = r.Clone(r.Context())
		w.Write([]byte(balanceBody))
	}))
	defer server.Close()

	client := NewClient("key", "secret", "pass", server.URL, true)
	balance, err := client.AccountBalance(context.Background(), "")
	if err != nil {
		t.Fatalf("AccountBalance() error: %v", err)
	}

	if balance.TotalEq != 10250.5 {
		t.Errorf("TotalEq = %v, want 10250.5", balance.TotalEq)
	}
	if len(balance.Details) != 3 {
		t.Errorf("got %d details, want 3", len(balance.Details))
	}

	if gotReq.URL.Path != "/api/v5/account/balance" {
		t.Errorf("path = %q", gotReq.URL.Path)
	}
	for _, header := range []string{"OK-ACCESS-KEY", "OK-ACCESS-SIGN", "OK-ACCESS-TIMESTAMP", "OK-ACCESS-PASSPHRASE"} {
		if gotReq.Header.Get(header) == "" {
			t.Errorf("missing %s header", header)
		}
	}
	if gotReq.Header.Get("x-simulated-trading") != "1" {
		t.Error("simulated client must send the demo-trading header")
	}
}

func TestAccountBalanceWithCurrencyFilter(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(balanceBody))
	}))
	defer server.Close()

	client := NewClient("key", "secret", "pass", server.URL, false)
	if _, err := client.AccountBalance(context.Background(), "USDT"); err != nil {
		t.Fatalf("AccountBalance() error: %v", err)
	}
	if gotQuery != "ccy=USDT" {
		t.Errorf("query = %q, want ccy=USDT", gotQuery)
	}
}

func TestAccountBalanceAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"50111","msg":"Invalid OK-ACCESS-KEY","data":[]}`))
	}))
	defer server.Close()

	client := NewClient("key", "secret", "pass", server.URL, false)
	_, err := client.AccountBalance(context.Background(), "")
	if err == nil || !strings.Contains(err.Error(), "50111") {
		t.Errorf("error = %v, want API error code", err)
	}
}

func TestAccountBalanceHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient("key", "secret", "pass", server.URL, false)
	if _, err := client.AccountBalance(context.Background(), ""); err == nil {
		t.Error("non-200 status must surface as an error")
	}
}

func TestAccountBalanceEmptyData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"0","msg":"","data":[]}`))
	}))
	defer server.Close()

	client := NewClient("key", "secret", "pass", server.URL, false)
	if _, err := client.AccountBalance(context.Background(), ""); err == nil {
		t.Error("empty data must surface as an error")
	}
}

func TestAvailableAssets(t *testing.T) {
	balance := &Balance{
		TotalEq: 100,
		Details: []AssetDetail{
			{Ccy: "USDT", AvailBal: 5000.25},
			{Ccy: "BTC", AvailBal: 0.5},
			{Ccy: "DUST", AvailBal: 0},
		},
	}

	assets := balance.AvailableAssets()
	if len(assets) != 2 {
		t.Fatalf("got %d assets, want 2 (zero balances dropped)", len(assets))
	}
	if assets["USDT"] != 5000.25 || assets["BTC"] != 0.5 {
		t.Errorf("assets = %v", assets)
	}
}
