// Package notification delivers trading reports to external sinks. Delivery
// is best effort: failures are logged by callers and never retried.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// ParseModeMarkdownV2 is the parse mode every formatted report uses.
const ParseModeMarkdownV2 = "MarkdownV2"

// Notifier is one delivery provider.
type Notifier interface {
	SendMessage(ctx context.Context, text, parseMode string) error
	SendPhoto(ctx context.Context, photoURL, caption, parseMode string) error
	Name() string
	IsEnabled() bool
}

// Manager fans a send out to every enabled provider. The markdown rule must
// be installed once before the first formatted send; Manager handles that
// with a sync.Once.
type Manager struct {
	notifiers    []Notifier
	markdownOnce sync.Once
	escape       func(string) string
}

// NewManager creates an empty notification manager.
func NewManager() *Manager {
	return &Manager{escape: func(s string) string { return s }}
}

// AddNotifier adds a delivery provider.
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// Enabled reports whether at least one provider is active.
func (m *Manager) Enabled() bool {
	for _, n := range m.notifiers {
		if n.IsEnabled() {
			return true
		}
	}
	return false
}

// setupMarkdown installs the MarkdownV2 escaping rule. Runs once.
func (m *Manager) setupMarkdown() {
	m.markdownOnce.Do(func() {
		m.escape = EscapeMarkdownV2
	})
}

// SendText delivers a formatted text message to every enabled provider and
// returns the last error, if any.
func (m *Manager) SendText(ctx context.Context, text string) error {
	m.setupMarkdown()
	var lastErr error
	for _, n := range m.notifiers {
		if !n.IsEnabled() {
			continue
		}
		if err := n.SendMessage(ctx, m.escape(text), ParseModeMarkdownV2); err != nil {
			lastErr = fmt.Errorf("%s: %w", n.Name(), err)
		}
	}
	return lastErr
}

// SendPhoto delivers a photo with a formatted caption to every enabled
// provider.
func (m *Manager) SendPhoto(ctx context.Context, photoURL, caption string) error {
	m.setupMarkdown()
	var lastErr error
	for _, n := range m.notifiers {
		if !n.IsEnabled() {
			continue
		}
		if err := n.SendPhoto(ctx, photoURL, m.escape(caption), ParseModeMarkdownV2); err != nil {
			lastErr = fmt.Errorf("%s: %w", n.Name(), err)
		}
	}
	return lastErr
}

// markdownV2Reserved is the set of characters MarkdownV2 requires escaped.
// '*' and '_' are left alone so bold/italic formatting survives.
const markdownV2Reserved = "[]()~`>#+-=|{}.!"

// EscapeMarkdownV2 escapes reserved MarkdownV2 characters in a report body.
func EscapeMarkdownV2(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if strings.ContainsRune(markdownV2Reserved, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// =============================================================================
// TELEGRAM NOTIFIER
// =============================================================================

// TelegramNotifier sends messages and photos through the Telegram bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	enabled  bool
	client   *http.Client
}

// TelegramConfig holds Telegram configuration.
type TelegramConfig struct {
	BotToken string
	ChatID   string
	BaseURL  string // override for testing
	Enabled  bool
}

// NewTelegramNotifier creates a new Telegram notifier.
func NewTelegramNotifier(config TelegramConfig) *TelegramNotifier {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}
	return &TelegramNotifier{
		botToken: config.BotToken,
		chatID:   config.ChatID,
		baseURL:  baseURL,
		enabled:  config.Enabled && config.BotToken != "" && config.ChatID != "",
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramNotifier) Name() string { return "telegram" }

func (t *TelegramNotifier) IsEnabled() bool { return t.enabled }

// SendMessage posts a text message.
func (t *TelegramNotifier) SendMessage(ctx context.Context, text, parseMode string) error {
	payload := map[string]interface{}{
		"chat_id": t.chatID,
		"text":    text,
	}
	if parseMode != "" {
		payload["parse_mode"] = parseMode
	}
	return t.post(ctx, "sendMessage", payload)
}

// SendPhoto posts a photo by URL with a caption.
func (t *TelegramNotifier) SendPhoto(ctx context.Context, photoURL, caption, parseMode string) error {
	payload := map[string]interface{}{
		"chat_id": t.chatID,
		"photo":   photoURL,
		"caption": caption,
	}
	if parseMode != "" {
		payload["parse_mode"] = parseMode
	}
	return t.post(ctx, "sendPhoto", payload)
}

func (t *TelegramNotifier) post(ctx context.Context, method string, payload map[string]interface{}) error {
	if !t.enabled {
		return nil
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/%s", t.baseURL, t.botToken, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}

	return nil
}
