package ledger

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "demo.json")
	store := NewStore(Config{Path: path}, zerolog.Nop())
	return store, path
}

func TestSaveRejectsZeroBalance(t *testing.T) {
	store, path := newTestStore(t)

	if _, err := store.Save(0, nil, nil); !errors.Is(err, ErrEmptyBalance) {
		t.Fatalf("Save(0) error = %v, want ErrEmptyBalance", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("rejected save must not create the ledger file")
	}
}

func TestSaveAppendsRoundedBalance(t *testing.T) {
	store, _ := newTestStore(t)

	if _, err := store.Save(1000.46, nil, nil); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if _, err := store.Save(1100.44, nil, nil); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	led := store.Snapshot()
	if len(led.Balances) != 2 {
		t.Fatalf("got %d balance points, want 2", len(led.Balances))
	}
	if led.Balances[0].Balance != 1000.5 {
		t.Errorf("first point = %v, want 1000.5", led.Balances[0].Balance)
	}
	if led.Balances[1].Balance != 1100.4 {
		t.Errorf("second point = %v, want 1100.4", led.Balances[1].Balance)
	}
}

func TestSaveBalanceWindow(t *testing.T) {
	store, _ := newTestStore(t)

	for i := 1; i <= MaxBalancePoints+1; i++ {
		if _, err := store.Save(float64(i), nil, nil); err != nil {
			t.Fatalf("Save(%d) error: %v", i, err)
		}
	}

	led := store.Snapshot()
	if len(led.Balances) != MaxBalancePoints {
		t.Fatalf("got %d balance points, want %d", len(led.Balances), MaxBalancePoints)
	}
	if led.Balances[0].Balance != 2 {
		t.Errorf("oldest surviving point = %v, want 2 (point 1 evicted)", led.Balances[0].Balance)
	}
	if led.Balances[len(led.Balances)-1].Balance != float64(MaxBalancePoints+1) {
		t.Errorf("newest point = %v, want %d", led.Balances[len(led.Balances)-1].Balance, MaxBalancePoints+1)
	}
}

func TestSaveAssetSnapshot(t *testing.T) {
	store, _ := newTestStore(t)

	if _, err := store.Save(1000, map[Currency]float64{"BTC": 0.52, "ETH": 2.0}, nil); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	// A non-empty snapshot replaces the previous one wholesale.
	if _, err := store.Save(1100, map[Currency]float64{"SOL": 10.04}, nil); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	led := store.Snapshot()
	if len(led.Assets) != 1 {
		t.Fatalf("assets = %v, want only SOL", led.Assets)
	}
	if led.Assets["SOL"] != 10.0 {
		t.Errorf("SOL = %v, want 10.0 (rounded to one decimal)", led.Assets["SOL"])
	}

	// An empty snapshot leaves the previous one in place.
	if _, err := store.Save(1200, nil, nil); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	led = store.Snapshot()
	if led.Assets["SOL"] != 10.0 {
		t.Errorf("empty update should keep previous assets, got %v", led.Assets)
	}
}

func TestSaveTradeLog(t *testing.T) {
	store, _ := newTestStore(t)

	if _, err := store.Save(1000, nil, []string{"BUY BTC-USDT"}); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if _, err := store.Save(1100, nil, []string{"SELL ETH-USDT"}); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	led := store.Snapshot()
	if len(led.Trades) != 2 {
		t.Fatalf("got %d trades, want 2", len(led.Trades))
	}
	if led.Trades[0].Text != "SELL ETH-USDT" {
		t.Errorf("newest trade first: got %q", led.Trades[0].Text)
	}
	if led.Trades[1].Text != "BUY BTC-USDT" {
		t.Errorf("oldest trade last: got %q", led.Trades[1].Text)
	}
}

func TestSaveTradeCap(t *testing.T) {
	store, _ := newTestStore(t)

	for i := 0; i < MaxTradeEntries+10; i++ {
		if _, err := store.Save(1000, nil, []string{"BUY BTC-USDT"}); err != nil {
			t.Fatalf("Save() error: %v", err)
		}
	}

	led := store.Snapshot()
	if len(led.Trades) != MaxTradeEntries {
		t.Errorf("got %d trades, want cap of %d", len(led.Trades), MaxTradeEntries)
	}
}

func TestSnapshotLenientOnCorruptFile(t *testing.T) {
	store, path := newTestStore(t)

	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	led := store.Snapshot()
	if len(led.Balances) != 0 {
		t.Error("corrupt ledger must read as empty")
	}

	// A save over the corrupt file starts a fresh ledger.
	if _, err := store.Save(500, nil, nil); err != nil {
		t.Fatalf("Save() over corrupt file error: %v", err)
	}
	led = store.Snapshot()
	if len(led.Balances) != 1 || led.Balances[0].Balance != 500 {
		t.Errorf("ledger after recovery = %+v", led)
	}
}

func TestSnapshotToleratesMissingKeys(t *testing.T) {
	store, path := newTestStore(t)

	if err := os.WriteFile(path, []byte(`{"balances":[{"time":"2025-01-01T00:00:00Z","balance":900}]}`), 0644); err != nil {
		t.Fatal(err)
	}

	led := store.Snapshot()
	if len(led.Balances) != 1 || led.Balances[0].Balance != 900 {
		t.Errorf("balances = %+v", led.Balances)
	}
	if len(led.Assets) != 0 || len(led.Trades) != 0 {
		t.Error("missing keys must read as empty collections")
	}
}

func TestSaveWriteFailure(t *testing.T) {
	dir := t.TempDir()
	// Pointing the ledger at a directory makes the write fail.
	store := NewStore(Config{Path: dir}, zerolog.Nop())

	_, err := store.Save(1000, nil, nil)
	var persistErr *PersistError
	if !errors.As(err, &persistErr) {
		t.Fatalf("Save() error = %v, want *PersistError", err)
	}
	if persistErr.Path != dir {
		t.Errorf("PersistError.Path = %q, want %q", persistErr.Path, dir)
	}
	if persistErr.Unwrap() == nil {
		t.Error("PersistError must wrap the underlying error")
	}
}

func TestSaveResultChartFields(t *testing.T) {
	store, _ := newTestStore(t)

	res, err := store.Save(1000.4, nil, nil)
	if err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	if !strings.Contains(res.Descriptor, "line [1000]") {
		t.Errorf("descriptor = %q, want rounded balance", res.Descriptor)
	}
	if !strings.HasPrefix(res.ChartURL, "https://mermaid.ink/img/") {
		t.Errorf("chart URL = %q", res.ChartURL)
	}
	if res.Chart == "" {
		t.Error("encoded chart must not be empty")
	}
}

func TestRenderTemplate(t *testing.T) {
	dir := t.TempDir()
	tplPath := filepath.Join(dir, "README.tpl.md")
	outPath := filepath.Join(dir, "README.md")
	tpl := "# Report\n\n{mermaid}\n\n## Assets\n{assets}\n\n## Trades\n{trades}\n"
	if err := os.WriteFile(tplPath, []byte(tpl), 0644); err != nil {
		t.Fatal(err)
	}

	store := NewStore(Config{
		Path:         filepath.Join(dir, "demo.json"),
		TemplatePath: tplPath,
		OutputPath:   outPath,
	}, zerolog.Nop())
	store.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

	if _, err := store.Save(1000, map[Currency]float64{"BTC": 0.5, "USDT": 500}, []string{"BUY BTC-USDT"}); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	rendered, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("rendered output missing: %v", err)
	}
	content := string(rendered)

	if strings.Contains(content, "{mermaid}") || strings.Contains(content, "{assets}") || strings.Contains(content, "{trades}") {
		t.Errorf("placeholders left in rendered output:\n%s", content)
	}
	if !strings.Contains(content, "xychart") {
		t.Error("rendered output missing chart descriptor")
	}
	if !strings.Contains(content, "- **BTC**: $0.5") {
		t.Errorf("rendered output missing asset line:\n%s", content)
	}
	// Whole-number values keep the stored one-decimal precision.
	if !strings.Contains(content, "- **USDT**: $500.0") {
		t.Errorf("rendered output missing one-decimal asset line:\n%s", content)
	}
	if !strings.Contains(content, "BUY BTC-USDT") {
		t.Error("rendered output missing trade line")
	}
}

func TestLedgerFileShape(t *testing.T) {
	store, path := newTestStore(t)

	if _, err := store.Save(1000, map[Currency]float64{"BTC": 1}, []string{"BUY BTC-USDT"}); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("ledger file is not valid JSON: %v", err)
	}
	for _, key := range []string{"balances", "assets", "trades"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("ledger file missing %q key", key)
		}
	}
}
