package receiver

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// EventHandler receives one raw notification body pushed by the camera.
// The payload is passed through unparsed; interpretation belongs to the
// host application. Handlers run on the HTTP serving goroutine and may
// be called concurrently with subscription renewals.
type EventHandler func(body []byte)

// Server is the local webhook endpoint the camera pushes event
// notifications to while a subscription is active.
type Server struct {
	logger     *zap.Logger
	httpServer *http.Server
	router     *gin.Engine
	port       int
	handler    EventHandler
}

// ServerConfig holds the webhook server settings.
type ServerConfig struct {
	Port       int
	Production bool
	Logger     *zap.Logger
	Handler    EventHandler
}

// NewServer creates the webhook server.
func NewServer(config ServerConfig) *Server {
	if config.Production {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	server := &Server{
		logger:  config.Logger,
		router:  router,
		port:    config.Port,
		handler: config.Handler,
	}

	server.setupRoutes()

	return server
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.POST("/onvif_event", s.handleEvent)
}

// WebhookPath is the route the camera must be subscribed with.
const WebhookPath = "/onvif_event"

// Start launches the HTTP server in the background.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting webhook receiver",
		zap.String("addr", addr),
	)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Webhook receiver error", zap.Error(err))
		}
	}()

	return nil
}

// Stop shuts the HTTP server down.
func (s *Server) Stop() error {
	s.logger.Info("Stopping webhook receiver")

	if s.httpServer != nil {
		return s.httpServer.Close()
	}

	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleEvent accepts a pushed notification and hands the raw body to
// the registered handler. The camera expects a 2xx; anything else makes
// some firmware drop the subscription.
func (s *Server) handleEvent(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		s.logger.Warn("Failed to read event body", zap.Error(err))
		c.Status(http.StatusBadRequest)
		return
	}

	s.logger.Debug("Event notification received",
		zap.Int("bytes", len(body)),
	)

	if s.handler != nil {
		s.handler(body)
	}

	c.Status(http.StatusOK)
}
