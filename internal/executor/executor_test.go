package executor

import (
	"context"
	"errors"
	"testing"

	"crypto-trading-agent/internal/analysis"

	"github.com/rs/zerolog"
)

type completerFunc func(ctx context.Context, systemPrompt, userPrompt string) (string, error)

func (f completerFunc) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return f(ctx, systemPrompt, userPrompt)
}

func TestEligible(t *testing.T) {
	tests := []struct {
		name string
		rec  analysis.Recommendation
		want bool
	}{
		{"buy above gate", analysis.Recommendation{Action: analysis.ActionBuy, Confidence: 0.71}, true},
		{"sell above gate", analysis.Recommendation{Action: analysis.ActionSell, Confidence: 0.9}, true},
		{"exactly at gate is excluded", analysis.Recommendation{Action: analysis.ActionBuy, Confidence: 0.7}, false},
		{"below gate", analysis.Recommendation{Action: analysis.ActionBuy, Confidence: 0.5}, false},
		{"hold never executes", analysis.Recommendation{Action: analysis.ActionHold, Confidence: 0.99}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Eligible(tt.rec); got != tt.want {
				t.Errorf("Eligible(%+v) = %v, want %v", tt.rec, got, tt.want)
			}
		})
	}
}

func TestDescription(t *testing.T) {
	res := Result{Pair: "BTC-USDT", Action: analysis.ActionBuy}
	if got := res.Description(); got != "BUY BTC-USDT" {
		t.Errorf("Description() = %q, want %q", got, "BUY BTC-USDT")
	}
}

func TestExecuteAll(t *testing.T) {
	tests := []struct {
		name       string
		reply      string
		replyErr   error
		wantFailed bool
		wantDetail string
		wantErr    string
	}{
		{
			name:       "filled order",
			reply:      `{"status":"filled","detail":"bought 0.01 BTC"}`,
			wantDetail: "bought 0.01 BTC",
		},
		{
			name:       "rejected order carries detail as error",
			reply:      `{"status":"rejected","detail":"insufficient balance"}`,
			wantFailed: true,
			wantErr:    "insufficient balance",
		},
		{
			name:       "free-form confirmation kept as detail",
			reply:      "已执行小额买入",
			wantDetail: "已执行小额买入",
		},
		{
			name:       "transport failure",
			replyErr:   errors.New("connection reset"),
			wantFailed: true,
			wantErr:    "connection reset",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completer := completerFunc(func(ctx context.Context, system, user string) (string, error) {
				return tt.reply, tt.replyErr
			})
			e := NewExecutor(completer, zerolog.Nop())

			results := e.ExecuteAll(context.Background(), []Request{
				{Pair: "BTC-USDT", Action: analysis.ActionBuy, Confidence: 0.85},
			})
			if len(results) != 1 {
				t.Fatalf("got %d results, want 1", len(results))
			}

			res := results[0]
			if res.Failed() != tt.wantFailed {
				t.Errorf("Failed() = %v, want %v", res.Failed(), tt.wantFailed)
			}
			if res.Detail != tt.wantDetail {
				t.Errorf("Detail = %q, want %q", res.Detail, tt.wantDetail)
			}
			if tt.wantErr != "" && res.Err != tt.wantErr {
				t.Errorf("Err = %q, want %q", res.Err, tt.wantErr)
			}
		})
	}
}

func TestExecuteAllContinuesAfterFailure(t *testing.T) {
	calls := 0
	completer := completerFunc(func(ctx context.Context, system, user string) (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("timeout")
		}
		return `{"status":"filled","detail":"ok"}`, nil
	})
	e := NewExecutor(completer, zerolog.Nop())

	results := e.ExecuteAll(context.Background(), []Request{
		{Pair: "BTC-USDT", Action: analysis.ActionBuy, Confidence: 0.8},
		{Pair: "ETH-USDT", Action: analysis.ActionSell, Confidence: 0.9},
	})

	if !results[0].Failed() {
		t.Error("first request should fail")
	}
	if results[1].Failed() {
		t.Error("second request should proceed despite the first failure")
	}
}
