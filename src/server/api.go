package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mcp/src/helpers"
	"mcp/src/logger"
	"mcp/src/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// APIServer
// -----------------------------------------------------------------------------

// SignalBus is what the server needs from the message bus.
type SignalBus interface {
	Publish(topic string, msg models.MMessage) error
	Status() models.MBusStatus
}

// BrokerAccounts is what the server needs from the broker registry.
type BrokerAccounts interface {
	GetAccountInfo(ctx context.Context, id string) (models.MAccountInfo, error)
}

// CandleSource is what the server needs from the market-data manager.
type CandleSource interface {
	GetHistoricalCandles(ctx context.Context, symbol, interval string, from, to time.Time, providerID string) ([]models.MCandle, error)
}

type APIServer struct {
	Config     *models.MConfig
	Logger     *logger.Logger
	Bus        SignalBus
	Brokers    BrokerAccounts
	MarketData CandleSource

	engine  *gin.Engine
	httpSrv *http.Server

	// WebSocket clients
	clients    map[*Client]struct{}
	broadcast  chan *models.MNotification
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewAPIServer(cfg *models.MConfig, log *logger.Logger, bus SignalBus, brokers BrokerAccounts, marketData CandleSource) *APIServer {
	// Set Gin mode
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &APIServer{
		Config:     cfg,
		Logger:     log,
		Bus:        bus,
		Brokers:    brokers,
		MarketData: marketData,
		engine:     gin.Default(),
		clients:    make(map[*Client]struct{}),
		// Buffered channel so a burst of notifications never blocks the
		// publisher side.
		broadcast:  make(chan *models.MNotification, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}

	// CORS for local dashboards
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *APIServer) setupRoutes() {
	// Webhook ingestion
	s.engine.POST("/api/webhooks/tradingview/:token", s.handleTradingViewWebhook)

	// Control plane
	s.engine.GET("/api/mcp/status", s.getStatus)
	s.engine.GET("/api/mcp/brokers/:brokerId/account", s.getBrokerAccount)
	s.engine.GET("/api/mcp/market-data/candles", s.getCandles)
	s.engine.GET("/api/health", s.getHealth)

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

func (s *APIServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting server on %s", addr)

	go s.runHub()

	s.httpSrv = &http.Server{Addr: addr, Handler: s.engine}
	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *APIServer) Stop() error {
	close(s.done)

	if s.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.httpSrv.Shutdown(ctx)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Webhook ingestion
// -----------------------------------------------------------------------------

// tradingViewAlert is the inbound alert body. Field names follow the alert
// template convention, with "action" accepted as an alias for "side".
type tradingViewAlert struct {
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`
	Action     string  `json:"action"`
	Price      float64 `json:"price"`
	StopLoss   float64 `json:"stop_loss"`
	TakeProfit float64 `json:"take_profit"`
	Quantity   float64 `json:"quantity"`
	Source     string  `json:"source"`
}

func (s *APIServer) handleTradingViewWebhook(c *gin.Context) {
	token := c.Param("token")
	if len(s.Config.Webhooks.Tokens) > 0 {
		if _, ok := s.Config.Webhooks.Tokens[token]; !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "message": "invalid webhook token"})
			return
		}
	}

	var alert tradingViewAlert
	if err := c.ShouldBindJSON(&alert); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "malformed webhook payload"})
		return
	}

	side := alert.Side
	if side == "" {
		side = alert.Action
	}
	if alert.Symbol == "" || (side != "buy" && side != "sell") {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "symbol and side are required"})
		return
	}

	source := alert.Source
	if source == "" {
		source = s.Config.Webhooks.Tokens[token]
	}
	if source == "" {
		source = "tradingview"
	}

	signalID := uuid.NewString()
	err := s.Bus.Publish(models.TopicTradingSignals, models.MMessage{
		Type:     models.MessageNewSignal,
		Priority: models.PriorityHigh,
		Payload: &models.MSignalPayload{
			SignalID:   signalID,
			Symbol:     alert.Symbol,
			Side:       side,
			EntryPrice: alert.Price,
			StopLoss:   alert.StopLoss,
			TakeProfit: alert.TakeProfit,
			Quantity:   alert.Quantity,
			Source:     source,
			Token:      token,
		},
	})
	if err != nil {
		// The upstream retries rejected webhooks aggressively, so answer 200
		// and keep the failure on our side of the fence.
		s.Logger.Error("Webhook publish failed for %s: %v", alert.Symbol, err)
		c.JSON(http.StatusOK, gin.H{"status": "accepted", "signal_id": signalID})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "signal_id": signalID})
}

// -----------------------------------------------------------------------------
// Control-plane handlers
// -----------------------------------------------------------------------------

func (s *APIServer) getStatus(c *gin.Context) {
	st := s.Bus.Status()
	status := "stopped"
	if st.Running {
		status = "running"
	}
	c.JSON(http.StatusOK, gin.H{
		"status": status,
		"stats":  st,
	})
}

// -----------------------------------------------------------------------------

func (s *APIServer) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"connections": len(s.clients),
	})
}

// -----------------------------------------------------------------------------

func (s *APIServer) getBrokerAccount(c *gin.Context) {
	brokerID := c.Param("brokerId")

	info, err := s.Brokers.GetAccountInfo(c.Request.Context(), brokerID)
	if err != nil {
		c.JSON(statusForError(err), gin.H{"status": "error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"account_id":   info.AccountID,
		"currency":     info.Currency,
		"balance":      info.Balance,
		"equity":       info.Equity,
		"buying_power": info.BuyingPower,
	})
}

// -----------------------------------------------------------------------------

func (s *APIServer) getCandles(c *gin.Context) {
	symbol := c.Query("symbol")
	interval := c.Query("interval")
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if symbol == "" || interval == "" || fromStr == "" || toStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "symbol, interval, from and to are required"})
		return
	}

	fromTS, err := strconv.ParseInt(fromStr, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid from timestamp"})
		return
	}
	toTS, err := strconv.ParseInt(toStr, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "invalid to timestamp"})
		return
	}
	from := time.Unix(fromTS, 0).UTC()
	to := time.Unix(toTS, 0).UTC()

	candles, err := s.MarketData.GetHistoricalCandles(c.Request.Context(), symbol, interval, from, to, c.Query("provider"))
	if err != nil {
		c.JSON(statusForError(err), gin.H{"status": "error", "message": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":   symbol,
		"interval": interval,
		"candles":  candles,
	})
}

// -----------------------------------------------------------------------------

// statusForError maps the error taxonomy to HTTP status codes.
func statusForError(err error) int {
	switch {
	case helpers.IsNotFound(err):
		return http.StatusNotFound
	case helpers.IsCapabilityError(err):
		return http.StatusBadRequest
	case helpers.IsConnectionError(err), helpers.IsUpstreamError(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
