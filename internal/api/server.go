// Package api implements the HTTP listener: per-protocol chat endpoints that
// resolve a route plan, flatten tool schemas, and dispatch against the
// account pool with plan-driven fallback, plus the management surface.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/antigravity-tools/agproxy/internal/config"
	"github.com/antigravity-tools/agproxy/internal/monitor"
	"github.com/antigravity-tools/agproxy/internal/token"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Deps carries everything the listener needs, cloned at start time. Later
// config edits do not affect a running server.
type Deps struct {
	BindAddress      string
	Port             int
	TokenManager     *token.Manager
	CustomMapping    map[string]string
	OpenAIMapping    map[string]string
	AnthropicMapping map[string]string
	Strategies       map[string]config.ModelStrategy
	RequestTimeout   time.Duration
	UpstreamProxy    config.UpstreamProxyConfig
	Security         config.SecurityConfig
	Zai              config.ZaiConfig
	Monitor          *monitor.Monitor
	Experimental     config.ExperimentalConfig

	// UpstreamBaseURL overrides the production backend endpoint; tests use
	// this to point at a local stub.
	UpstreamBaseURL string
}

// Server is one bound listener instance.
type Server struct {
	deps        Deps
	engine      *gin.Engine
	httpServer  *http.Server
	upstream    *upstreamClient
	zaiUpstream *upstreamClient
	rotation    atomic.Uint64
	port        int
}

// Start binds the listener and launches the serve loop in a background
// goroutine. The returned channel closes when the serve loop exits; callers
// await it after Stop.
func Start(deps Deps) (*Server, <-chan struct{}, error) {
	if deps.RequestTimeout <= 0 {
		deps.RequestTimeout = 120 * time.Second
	}

	zaiURL := zaiBase
	if deps.UpstreamBaseURL != "" {
		zaiURL = deps.UpstreamBaseURL
	}
	s := &Server{
		deps:        deps,
		upstream:    newUpstreamClient(deps.RequestTimeout, deps.UpstreamProxy, deps.UpstreamBaseURL),
		zaiUpstream: newUpstreamClient(deps.RequestTimeout, deps.UpstreamProxy, zaiURL),
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	s.engine = engine
	s.registerRoutes()

	addr := net.JoinHostPort(deps.BindAddress, strconv.Itoa(deps.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to bind %s: %w", addr, err)
	}
	s.port = listener.Addr().(*net.TCPAddr).Port

	s.httpServer = &http.Server{Handler: engine}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("listener exited: %v", err)
		}
	}()

	log.Infof("listener started on %s", addr)
	return s, done, nil
}

// Stop signals the serve loop to shut down. The background channel returned
// by Start closes once in-flight requests drain.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Warnf("listener shutdown: %v", err)
	}
}

// Port returns the bound port, useful when the config requested port 0.
func (s *Server) Port() int {
	return s.port
}

func (s *Server) registerRoutes() {
	// Protocol surfaces.
	protected := s.engine.Group("/", s.AuthMiddleware())
	protected.POST("/v1/messages", s.handleClaudeMessages)
	protected.POST("/v1/chat/completions", s.handleOpenAIChatCompletions)
	protected.POST("/v1beta/models/:modelAction", s.handleGeminiGenerate)
	protected.GET("/v1/models", s.handleListModels)

	// Management surface.
	s.engine.GET("/status", s.handleStatus)
	s.engine.GET("/stats", s.handleStats)
	s.engine.GET("/logs", s.handleGetLogs)
	s.engine.DELETE("/logs", s.handleClearLogs)
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"running":         true,
		"port":            s.port,
		"active_accounts": s.deps.TokenManager.Len(),
	})
}

func (s *Server) handleStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.Monitor.GetStats())
}

func (s *Server) handleGetLogs(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = n
		}
	}
	c.JSON(http.StatusOK, s.deps.Monitor.GetLogs(limit))
}

func (s *Server) handleClearLogs(c *gin.Context) {
	s.deps.Monitor.Clear()
	c.Status(http.StatusNoContent)
}
