package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crypto-trading-agent/config"
	"crypto-trading-agent/internal/agent"
	"crypto-trading-agent/internal/analysis"
	"crypto-trading-agent/internal/api"
	"crypto-trading-agent/internal/events"
	"crypto-trading-agent/internal/executor"
	"crypto-trading-agent/internal/ledger"
	"crypto-trading-agent/internal/llm"
	"crypto-trading-agent/internal/logging"
	"crypto-trading-agent/internal/notification"
	"crypto-trading-agent/internal/okx"
	"crypto-trading-agent/internal/report"
)

func main() {
	var (
		cycles        = flag.Int("cycles", 0, "number of trading cycles to run (overrides config)")
		multiAnalysis = flag.Bool("multi-analysis", false, "run the multi-cycle aggregation flow even for a single cycle")
		serve         = flag.Bool("serve", false, "run the HTTP API server")
		testMode      = flag.Bool("test", false, "run the component self-test and exit, no trades are executed")
		sampleConfig  = flag.Bool("sample-config", false, "write config.sample.json and exit")
	)
	flag.Parse()

	if *sampleConfig {
		if err := config.GenerateSampleConfig("config.sample.json"); err != nil {
			log.Fatalf("Failed to generate sample config: %v", err)
		}
		fmt.Println("Sample configuration written to config.sample.json")
		return
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize structured logging
	logger := logging.New(logging.Config{
		Level:  cfg.LoggingConfig.Level,
		Pretty: cfg.LoggingConfig.Pretty,
		Output: cfg.LoggingConfig.Output,
	})
	logger.Info().Msg("logger initialized")

	// Ledger store
	store := ledger.NewStore(ledger.Config{
		Path:         cfg.LedgerConfig.Path,
		TemplatePath: cfg.LedgerConfig.TemplatePath,
		OutputPath:   cfg.LedgerConfig.OutputPath,
		ChartBaseURL: cfg.LedgerConfig.ChartBaseURL,
		ChartTheme:   cfg.LedgerConfig.ChartTheme,
	}, logger)

	reporter := report.NewSynthesizer()

	// Event bus
	bus := events.NewBus()

	// Notification manager
	notifyManager := notification.NewManager()
	if cfg.NotificationConfig.Enabled && cfg.NotificationConfig.Telegram.Enabled {
		notifyManager.AddNotifier(notification.NewTelegramNotifier(notification.TelegramConfig{
			BotToken: cfg.NotificationConfig.Telegram.BotToken,
			ChatID:   cfg.NotificationConfig.Telegram.ChatID,
			Enabled:  true,
		}))
		logger.Info().Msg("Telegram notifications enabled")
	}

	// LLM client
	llmConfig := llm.DefaultClientConfig()
	llmConfig.Provider = llm.Provider(cfg.AIConfig.LLMProvider)
	llmConfig.Model = cfg.AIConfig.LLMModel
	switch llmConfig.Provider {
	case llm.ProviderOpenAI:
		llmConfig.APIKey = cfg.AIConfig.OpenAIAPIKey
	case llm.ProviderDeepSeek:
		llmConfig.APIKey = cfg.AIConfig.DeepSeekAPIKey
	default:
		llmConfig.APIKey = cfg.AIConfig.ClaudeAPIKey
	}
	llmClient := llm.NewClient(llmConfig)

	// Exchange account
	okxClient := okx.NewClient(
		cfg.OKXConfig.APIKey,
		cfg.OKXConfig.SecretKey,
		cfg.OKXConfig.Passphrase,
		cfg.OKXConfig.BaseURL,
		cfg.OKXConfig.Simulated,
	)

	// Trading pairs
	pairs := make([]analysis.Pair, 0, len(cfg.AgentConfig.Pairs))
	for _, raw := range cfg.AgentConfig.Pairs {
		pair := analysis.Pair(raw)
		if err := pair.Validate(); err != nil {
			logger.Warn().Str("pair", raw).Err(err).Msg("skipping invalid pair")
			continue
		}
		pairs = append(pairs, pair)
	}

	tradingAgent := agent.New(agent.Config{
		Pairs:    pairs,
		Analyzer: analysis.NewAnalyzer(llmClient, cfg.AgentConfig.Workers, logger),
		Executor: executor.NewExecutor(llmClient, logger),
		Account:  okxClient,
		Store:    store,
		Reporter: reporter,
		Notifier: notifyManager,
		Bus:      bus,
		Logger:   logger,

		CycleInterval: cfg.AgentConfig.CycleInterval,
		ChartBaseURL:  cfg.LedgerConfig.ChartBaseURL,
		ChartTheme:    cfg.LedgerConfig.ChartTheme,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *testMode {
		logger.Info().Msg("🧪 self-test mode")
		result := tradingAgent.RunSelfTest(ctx)
		printJSON(result)
		if !result.Success {
			os.Exit(1)
		}
		return
	}

	if *serve || cfg.ServerConfig.Enabled {
		server := api.NewServer(api.ServerConfig{
			Port:            cfg.ServerConfig.Port,
			Host:            cfg.ServerConfig.Host,
			AllowedOrigins:  cfg.ServerConfig.AllowedOrigins,
			ReadTimeout:     time.Duration(cfg.ServerConfig.ReadTimeout) * time.Second,
			WriteTimeout:    time.Duration(cfg.ServerConfig.WriteTimeout) * time.Second,
			ShutdownTimeout: time.Duration(cfg.ServerConfig.ShutdownTimeout) * time.Second,
			ChartBaseURL:    cfg.LedgerConfig.ChartBaseURL,
			ChartTheme:      cfg.LedgerConfig.ChartTheme,
			ProductionMode:  true,
		}, tradingAgent, store, reporter, bus, logger)

		if err := server.Start(ctx); err != nil {
			logger.Fatal().Err(err).Msg("API server failed")
		}
		return
	}

	n := *cycles
	if n <= 0 {
		n = cfg.AgentConfig.Cycles
	}
	if n <= 0 {
		n = 1
	}

	if n == 1 && !*multiAnalysis {
		result := tradingAgent.RunCycle(ctx)
		printJSON(result)
		if !result.Success {
			os.Exit(1)
		}
		return
	}

	summary := tradingAgent.RunMultiCycle(ctx, n)
	printJSON(summary)
	if summary.SuccessfulCycles == 0 {
		os.Exit(1)
	}
}

func printJSON(v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Printf("failed to encode result: %v", err)
		return
	}
	fmt.Println(string(data))
}
