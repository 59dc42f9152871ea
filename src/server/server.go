package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"signal-hub/src/interfaces"
	"signal-hub/src/logger"
	"signal-hub/src/metrics"
	"signal-hub/src/models"
	"signal-hub/src/validator"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

// -----------------------------------------------------------------------------
// HubServer
// -----------------------------------------------------------------------------

type HubServer struct {
	Config *models.MConfig
	Logger *logger.Logger

	hub     *Hub
	ingest  interfaces.IIngestor
	db      interfaces.IDatabase
	limiter *rate.Limiter
	engine  *gin.Engine
	http    *http.Server
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

// NewHubServer builds the HTTP surface around hub. ingest and db are optional;
// without ingest the /timed routes are not mounted.
func NewHubServer(cfg *models.MConfig, log *logger.Logger, hub *Hub, ingest interfaces.IIngestor, db interfaces.IDatabase) *HubServer {
	if !strings.EqualFold(cfg.LogLevel, "DEBUG") {
		gin.SetMode(gin.ReleaseMode)
	}

	limit := rate.Inf
	if cfg.Ingest.RateLimitRPS > 0 {
		limit = rate.Limit(cfg.Ingest.RateLimitRPS)
	}
	burst := cfg.Ingest.RateLimitBurst
	if burst <= 0 {
		burst = 1
	}

	s := &HubServer{
		Config:  cfg,
		Logger:  log,
		hub:     hub,
		ingest:  ingest,
		db:      db,
		limiter: rate.NewLimiter(limit, burst),
		engine:  gin.New(),
	}

	s.engine.Use(gin.Recovery(), s.requestLogger(), corsMiddleware())
	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") || strings.HasPrefix(origin, "http://localhost:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// -----------------------------------------------------------------------------

func (s *HubServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.Logger.Debug("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *HubServer) setupRoutes() {
	// Realtime hub
	s.engine.GET("/ws", s.handleWebSocket)
	s.engine.POST("/ws/notify", s.handleNotify)
	s.engine.GET("/ws/stats", s.handleStats)

	// REST API endpoints
	s.engine.GET("/api/health", s.getHealth)
	s.engine.GET("/api/latest", s.getLatest)
	s.engine.GET("/metrics", gin.WrapH(metrics.Handler()))

	if s.ingest != nil {
		timed := s.engine.Group("/timed", s.rateLimit())
		timed.POST("/ingest", s.handleIngest(models.IngestKindScore))
		timed.POST("/ingest-capture", s.handleIngest(models.IngestKindCapture))
		timed.POST("/ingest-candles", s.handleIngest(models.IngestKindCandles))
	}
}

// -----------------------------------------------------------------------------

// Handler exposes the router, mainly for httptest.
func (s *HubServer) Handler() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Start serves until Shutdown is called.
func (s *HubServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.Logger.Info("Starting server on %s", addr)

	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------

func (s *HubServer) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *HubServer) handleWebSocket(c *gin.Context) {
	if !websocket.IsWebSocketUpgrade(c.Request) {
		c.String(http.StatusUpgradeRequired, "Expected WebSocket upgrade")
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := newClient(s.hub, conn)
	if err := s.hub.Register(client); err != nil {
		s.Logger.Warning("Rejecting connection: %v", err)
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "hub unavailable"))
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// -----------------------------------------------------------------------------

func (s *HubServer) handleNotify(c *gin.Context) {
	payload, err := decodeObject(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	if err := s.hub.Broadcast(c.Request.Context(), payload); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// -----------------------------------------------------------------------------

func (s *HubServer) handleStats(c *gin.Context) {
	stats, err := s.hub.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"ok":          true,
		"connections": stats.Connections,
		"details":     stats.Details,
	})
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *HubServer) getHealth(c *gin.Context) {
	status := "ok"
	code := http.StatusOK

	connections := 0
	if stats, err := s.hub.Stats(c.Request.Context()); err == nil {
		connections = stats.Connections
	} else {
		status, code = "degraded", http.StatusServiceUnavailable
	}

	dbStatus := "disabled"
	if s.db != nil {
		dbStatus = "ok"
		if err := s.db.Ping(); err != nil {
			s.Logger.Warning("Health check: database ping failed: %v", err)
			dbStatus = "error"
			status, code = "degraded", http.StatusServiceUnavailable
		}
	}

	c.JSON(code, gin.H{
		"status":      status,
		"connections": connections,
		"hub_running": s.hub.Running(),
		"db":          dbStatus,
	})
}

// -----------------------------------------------------------------------------

func (s *HubServer) getLatest(c *gin.Context) {
	data, err := s.hub.Latest(c.Request.Context(), splitTickers(c.Query("tickers")))
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "count": len(data), "data": data})
}

// -----------------------------------------------------------------------------
// Ingest
// -----------------------------------------------------------------------------

func (s *HubServer) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"ok": false, "error": "rate_limited"})
			return
		}
		c.Next()
	}
}

// -----------------------------------------------------------------------------

type ingestResponse struct {
	OK bool `json:"ok"`
	*models.MIngestResult
}

// -----------------------------------------------------------------------------

func (s *HubServer) handleIngest(kind string) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := decodeObject(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "bad_json", "parseError": err.Error()})
			return
		}

		result, err := s.ingest.Ingest(c.Request.Context(), kind, body)
		if err != nil {
			var rejection *validator.Rejection
			if errors.As(err, &rejection) {
				resp := gin.H{"ok": false, "error": rejection.Error(), "reason": rejection.Reason}
				if details := rejection.Details(); details != nil {
					resp["details"] = details
				}
				c.JSON(http.StatusBadRequest, resp)
				return
			}
			s.Logger.Error("Ingest %s failed: %v", kind, err)
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
			return
		}

		c.JSON(http.StatusOK, ingestResponse{OK: true, MIngestResult: result})
	}
}
