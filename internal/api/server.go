// Package api exposes the agent's state over HTTP: ledger snapshots, rendered
// reports, chart URLs and a websocket stream of cycle events.
package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"crypto-trading-agent/internal/agent"
	"crypto-trading-agent/internal/chart"
	"crypto-trading-agent/internal/events"
	"crypto-trading-agent/internal/ledger"
	"crypto-trading-agent/internal/report"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// AgentAPI is what the server needs from the running agent.
type AgentAPI interface {
	Phase() agent.Phase
	LastCycle() *agent.CycleResult
	RunCycle(ctx context.Context) agent.CycleResult
}

// LedgerAPI is the read side of the ledger store.
type LedgerAPI interface {
	Snapshot() *ledger.Ledger
	Path() string
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Port            int
	Host            string
	AllowedOrigins  string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	ChartBaseURL    string
	ChartTheme      string
	ProductionMode  bool
}

// Server is the HTTP API server.
type Server struct {
	router     *gin.Engine
	httpServer *http.Server
	config     ServerConfig
	agent      AgentAPI
	store      LedgerAPI
	reporter   *report.Synthesizer
	hub        *WSHub
	logger     zerolog.Logger

	cycleRunning atomic.Bool
}

// NewServer creates the API server and wires the websocket hub to the bus.
func NewServer(config ServerConfig, agentAPI AgentAPI, store LedgerAPI, reporter *report.Synthesizer, bus *events.Bus, logger zerolog.Logger) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if config.AllowedOrigins == "" || config.AllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = strings.Split(config.AllowedOrigins, ",")
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type"}
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:   router,
		config:   config,
		agent:    agentAPI,
		store:    store,
		reporter: reporter,
		hub:      NewWSHub(logger),
		logger:   logger.With().Str("component", "api").Logger(),
	}

	go server.hub.Run()
	bus.SubscribeAll(func(event events.Event) {
		server.hub.BroadcastEvent(event)
	})

	server.registerRoutes()
	return server
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", s.handleHealth)

	apiGroup := s.router.Group("/api")
	{
		apiGroup.GET("/status", s.handleStatus)
		apiGroup.GET("/ledger", s.handleLedger)
		apiGroup.GET("/report", s.handleReport)
		apiGroup.GET("/chart", s.handleChart)
		apiGroup.POST("/cycle", s.handleRunCycle)
	}

	s.router.GET("/ws", s.handleWebSocket)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

func (s *Server) handleStatus(c *gin.Context) {
	status := gin.H{
		"phase":         string(s.agent.Phase()),
		"cycle_running": s.cycleRunning.Load(),
		"ws_clients":    s.hub.ClientCount(),
	}
	if last := s.agent.LastCycle(); last != nil {
		status["last_cycle"] = last
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) handleLedger(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"path":   s.store.Path(),
		"ledger": s.store.Snapshot(),
	})
}

func (s *Server) handleReport(c *gin.Context) {
	text := s.reporter.Synthesize(s.store.Snapshot(), nil)
	c.JSON(http.StatusOK, gin.H{"report": text})
}

func (s *Server) handleChart(c *gin.Context) {
	led := s.store.Snapshot()
	descriptor := chart.Descriptor(chart.DefaultTitle, led.BalanceValues(0))
	c.JSON(http.StatusOK, gin.H{
		"descriptor": descriptor,
		"url":        chart.ImageURL(s.config.ChartBaseURL, descriptor, s.config.ChartTheme),
		"points":     len(led.Balances),
	})
}

// handleRunCycle triggers one cycle in the background. Cycles never overlap,
// so a second trigger while one runs is rejected.
func (s *Server) handleRunCycle(c *gin.Context) {
	if !s.cycleRunning.CompareAndSwap(false, true) {
		c.JSON(http.StatusConflict, gin.H{"error": "cycle already running"})
		return
	}

	go func() {
		defer s.cycleRunning.Store(false)
		result := s.agent.RunCycle(context.Background())
		s.logger.Info().Bool("success", result.Success).Msg("triggered cycle finished")
	}()

	c.JSON(http.StatusAccepted, gin.H{"status": "cycle started"})
}

func (s *Server) handleWebSocket(c *gin.Context) {
	s.hub.ServeWS(c.Writer, c.Request)
}

// Start runs the HTTP server until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("API server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine { return s.router }
