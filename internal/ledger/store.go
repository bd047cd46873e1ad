package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"crypto-trading-agent/internal/chart"

	"github.com/rs/zerolog"
)

// ErrEmptyBalance rejects a save with a missing or zero balance. Nothing is
// written in that case.
var ErrEmptyBalance = errors.New("balance is empty")

// PersistError wraps a write-phase failure. Read-phase failures never surface
// here; a missing or corrupt file degrades to an empty ledger.
type PersistError struct {
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist ledger to %s: %v", e.Path, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// Config holds store configuration.
type Config struct {
	Path         string // ledger file, e.g. ./demo.json
	TemplatePath string // optional README template with {mermaid}/{assets}/{trades}
	OutputPath   string // rendered template target
	ChartBaseURL string // rendering service, e.g. https://mermaid.ink
	ChartTheme   string
}

// SaveResult is returned from a successful save.
type SaveResult struct {
	Path       string `json:"path"`
	Descriptor string `json:"descriptor"`
	Chart      string `json:"chart"`     // URL-safe base64 of Descriptor
	ChartURL   string `json:"chart_url"` // rendering-service image URL
}

// Store owns the on-disk ledger. One Save is a read-modify-write of the
// whole file, so the store serializes saves with a mutex.
type Store struct {
	mu     sync.Mutex
	cfg    Config
	logger zerolog.Logger
	now    func() time.Time
}

// NewStore creates a ledger store against the given file path.
func NewStore(cfg Config, logger zerolog.Logger) *Store {
	if cfg.Path == "" {
		cfg.Path = "demo.json"
	}
	if cfg.ChartBaseURL == "" {
		cfg.ChartBaseURL = "https://mermaid.ink"
	}
	if cfg.OutputPath == "" {
		cfg.OutputPath = "README.md"
	}
	return &Store{
		cfg:    cfg,
		logger: logger.With().Str("component", "ledger").Logger(),
		now:    time.Now,
	}
}

// Save appends a balance point, optionally replaces the asset snapshot and
// prepends trade entries, then writes the whole ledger back.
//
// A zero balance is rejected with ErrEmptyBalance before anything is read or
// written. Read failures degrade to an empty ledger; write failures come back
// as *PersistError.
func (s *Store) Save(balance float64, assets map[Currency]float64, trades []string) (*SaveResult, error) {
	if balance == 0 {
		return nil, ErrEmptyBalance
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	led := s.load()
	now := s.now()

	led.Balances = append(led.Balances, BalancePoint{Time: now, Balance: round1(balance)})
	if len(led.Balances) > MaxBalancePoints {
		led.Balances = led.Balances[len(led.Balances)-MaxBalancePoints:]
	}

	if len(assets) > 0 {
		snapshot := make(map[Currency]float64, len(assets))
		for ccy, value := range assets {
			snapshot[ccy] = round1(value)
		}
		led.Assets = snapshot
	}

	if len(trades) > 0 {
		for _, text := range trades {
			led.Trades = append([]TradeEntry{{Time: now, Text: text}}, led.Trades...)
		}
		if len(led.Trades) > MaxTradeEntries {
			led.Trades = led.Trades[:MaxTradeEntries]
		}
	}

	if err := s.write(led); err != nil {
		return nil, &PersistError{Path: s.cfg.Path, Err: err}
	}

	descriptor := chart.Descriptor(chart.DefaultTitle, led.BalanceValues(0))
	s.renderTemplate(led, descriptor)

	return &SaveResult{
		Path:       s.cfg.Path,
		Descriptor: descriptor,
		Chart:      chart.Encode(descriptor),
		ChartURL:   chart.ImageURL(s.cfg.ChartBaseURL, descriptor, s.cfg.ChartTheme),
	}, nil
}

// Snapshot returns the current ledger. Like the read phase of Save, it never
// fails: a missing or corrupt file reads as an empty ledger.
func (s *Store) Snapshot() *Ledger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Path returns the ledger file location.
func (s *Store) Path() string { return s.cfg.Path }

func (s *Store) load() *Ledger {
	led := &Ledger{}
	data, err := os.ReadFile(s.cfg.Path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Str("path", s.cfg.Path).Msg("ledger unreadable, starting empty")
		}
		return led
	}
	if err := json.Unmarshal(data, led); err != nil {
		s.logger.Warn().Err(err).Str("path", s.cfg.Path).Msg("ledger corrupt, starting empty")
		return &Ledger{}
	}
	return led
}

func (s *Store) write(led *Ledger) error {
	data, err := json.MarshalIndent(led, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.cfg.Path, data, 0644)
}

// renderTemplate substitutes {mermaid}, {assets} and {trades} in the
// configured template and writes the result. Best effort: a missing template
// is not an error, and render failures only log.
func (s *Store) renderTemplate(led *Ledger, descriptor string) {
	if s.cfg.TemplatePath == "" {
		return
	}
	tpl, err := os.ReadFile(s.cfg.TemplatePath)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Msg("template unreadable, skipping render")
		}
		return
	}

	assetLines := make([]string, 0, len(led.Assets))
	for _, ccy := range SortedCurrencies(led.Assets) {
		assetLines = append(assetLines, fmt.Sprintf("- **%s**: $%.1f", ccy, led.Assets[ccy]))
	}

	recent := led.Trades
	if len(recent) > 10 {
		recent = recent[:10]
	}
	tradeLines := make([]string, 0, len(recent))
	for _, trade := range recent {
		tradeLines = append(tradeLines, fmt.Sprintf("- %s - %s", trade.Time.Format(time.RFC3339), trade.Text))
	}

	content := string(tpl)
	content = strings.ReplaceAll(content, "{mermaid}", descriptor)
	content = strings.ReplaceAll(content, "{assets}", strings.Join(assetLines, "\n"))
	content = strings.ReplaceAll(content, "{trades}", strings.Join(tradeLines, "\n"))

	if err := os.WriteFile(s.cfg.OutputPath, []byte(content), 0644); err != nil {
		s.logger.Warn().Err(err).Str("path", s.cfg.OutputPath).Msg("template render failed")
	}
}
