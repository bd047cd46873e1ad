package ledger

import (
	"testing"
	"time"
)

func TestParseCurrency(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"simple code", "BTC", false},
		{"with digits", "1INCH", false},
		{"stablecoin", "USDT", false},
		{"empty", "", true},
		{"lowercase", "btc", true},
		{"too long", "ABCDEFGHIJKLMNOP", true},
		{"punctuation", "BTC-USD", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCurrency(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCurrency(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
			if !tt.wantErr && string(got) != tt.raw {
				t.Errorf("ParseCurrency(%q) = %q", tt.raw, got)
			}
		})
	}
}

func TestBalanceAccessors(t *testing.T) {
	empty := &Ledger{}
	if got := empty.LatestBalance(); got != 0 {
		t.Errorf("empty LatestBalance() = %v, want 0", got)
	}
	if got := empty.InitialBalance(); got != 0 {
		t.Errorf("empty InitialBalance() = %v, want 0", got)
	}

	single := &Ledger{Balances: []BalancePoint{{Balance: 1000}}}
	if got := single.InitialBalance(); got != 1000 {
		t.Errorf("single-point InitialBalance() = %v, want latest balance", got)
	}

	led := &Ledger{Balances: []BalancePoint{
		{Balance: 1000}, {Balance: 1050}, {Balance: 1100},
	}}
	if got := led.LatestBalance(); got != 1100 {
		t.Errorf("LatestBalance() = %v, want 1100", got)
	}
	if got := led.InitialBalance(); got != 1000 {
		t.Errorf("InitialBalance() = %v, want 1000", got)
	}
}

func TestBalanceValues(t *testing.T) {
	led := &Ledger{Balances: []BalancePoint{
		{Balance: 1}, {Balance: 2}, {Balance: 3}, {Balance: 4},
	}}

	all := led.BalanceValues(0)
	if len(all) != 4 || all[0] != 1 || all[3] != 4 {
		t.Errorf("BalanceValues(0) = %v, want all points in order", all)
	}

	windowed := led.BalanceValues(2)
	if len(windowed) != 2 || windowed[0] != 3 || windowed[1] != 4 {
		t.Errorf("BalanceValues(2) = %v, want most recent two", windowed)
	}
}

func TestSortedCurrencies(t *testing.T) {
	assets := map[Currency]float64{"SOL": 1, "BTC": 2, "ETH": 3}
	got := SortedCurrencies(assets)
	want := []Currency{"BTC", "ETH", "SOL"}
	if len(got) != len(want) {
		t.Fatalf("SortedCurrencies() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("SortedCurrencies()[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestLedgerTolerantOfMissingFields(t *testing.T) {
	// Readers must treat absent assets and trades as empty collections.
	led := &Ledger{Balances: []BalancePoint{{Time: time.Now(), Balance: 100}}}
	if len(led.Assets) != 0 || len(led.Trades) != 0 {
		t.Error("zero-value ledger should have empty assets and trades")
	}
}
