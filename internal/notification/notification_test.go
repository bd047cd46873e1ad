package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"reserved punctuation", "profit: +1.5% (net)", "profit: \\+1\\.5% \\(net\\)"},
		{"bold markers preserved", "*#AI模拟盘 自动交易报告*", "*\\#AI模拟盘 自动交易报告*"},
		{"italic markers preserved", "_emphasis_", "_emphasis_"},
		{"plain text untouched", "买入 BTC", "买入 BTC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EscapeMarkdownV2(tt.in); got != tt.want {
				t.Errorf("EscapeMarkdownV2(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestManagerEnabled(t *testing.T) {
	m := NewManager()
	if m.Enabled() {
		t.Error("empty manager must not report enabled")
	}

	m.AddNotifier(NewTelegramNotifier(TelegramConfig{Enabled: false}))
	if m.Enabled() {
		t.Error("disabled notifier must not flip the manager on")
	}

	m.AddNotifier(NewTelegramNotifier(TelegramConfig{BotToken: "tok", ChatID: "42", Enabled: true}))
	if !m.Enabled() {
		t.Error("one enabled notifier should enable the manager")
	}
}

func TestTelegramSendMessage(t *testing.T) {
	var gotPath string
	var gotPayload map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotPayload)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewTelegramNotifier(TelegramConfig{
		BotToken: "test-token",
		ChatID:   "12345",
		BaseURL:  server.URL,
		Enabled:  true,
	})

	if err := n.SendMessage(context.Background(), "hello", ParseModeMarkdownV2); err != nil {
		t.Fatalf("SendMessage() error: %v", err)
	}

	if gotPath != "/bottest-token/sendMessage" {
		t.Errorf("path = %q", gotPath)
	}
	if gotPayload["chat_id"] != "12345" || gotPayload["text"] != "hello" {
		t.Errorf("payload = %v", gotPayload)
	}
	if gotPayload["parse_mode"] != ParseModeMarkdownV2 {
		t.Errorf("parse_mode = %v", gotPayload["parse_mode"])
	}
}

func TestTelegramSendPhoto(t *testing.T) {
	var gotPath string
	var gotPayload map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotPayload)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewTelegramNotifier(TelegramConfig{
		BotToken: "tok",
		ChatID:   "42",
		BaseURL:  server.URL,
		Enabled:  true,
	})

	if err := n.SendPhoto(context.Background(), "https://mermaid.ink/img/x", "caption", ""); err != nil {
		t.Fatalf("SendPhoto() error: %v", err)
	}

	if gotPath != "/bottok/sendPhoto" {
		t.Errorf("path = %q", gotPath)
	}
	if gotPayload["photo"] != "https://mermaid.ink/img/x" || gotPayload["caption"] != "caption" {
		t.Errorf("payload = %v", gotPayload)
	}
	if _, ok := gotPayload["parse_mode"]; ok {
		t.Error("empty parse mode must be omitted from the payload")
	}
}

func TestTelegramAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	n := NewTelegramNotifier(TelegramConfig{
		BotToken: "tok",
		ChatID:   "42",
		BaseURL:  server.URL,
		Enabled:  true,
	})

	err := n.SendMessage(context.Background(), "hello", "")
	if err == nil || !strings.Contains(err.Error(), "400") {
		t.Errorf("SendMessage() error = %v, want status 400", err)
	}
}

func TestTelegramDisabledIsNoop(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	n := NewTelegramNotifier(TelegramConfig{BaseURL: server.URL, Enabled: false})
	if err := n.SendMessage(context.Background(), "hello", ""); err != nil {
		t.Errorf("disabled SendMessage() error: %v", err)
	}
	if called {
		t.Error("disabled notifier must not hit the network")
	}

	// Enabled flag alone is not enough without credentials.
	n = NewTelegramNotifier(TelegramConfig{BaseURL: server.URL, Enabled: true})
	if n.IsEnabled() {
		t.Error("notifier without credentials must stay disabled")
	}
}

func TestManagerEscapesOutgoingText(t *testing.T) {
	var gotPayload map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotPayload)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	m := NewManager()
	m.AddNotifier(NewTelegramNotifier(TelegramConfig{
		BotToken: "tok",
		ChatID:   "42",
		BaseURL:  server.URL,
		Enabled:  true,
	}))

	if err := m.SendText(context.Background(), "rate: 10.5%"); err != nil {
		t.Fatalf("SendText() error: %v", err)
	}
	if gotPayload["text"] != "rate: 10\\.5%" {
		t.Errorf("text = %v, want escaped dot", gotPayload["text"])
	}
}
