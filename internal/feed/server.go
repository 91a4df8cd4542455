package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ccwatch/internal/state"
)

const shutdownTimeout = 5 * time.Second

// SessionSource supplies the tracked watermarks for /api/sessions.
type SessionSource interface {
	Sessions() []state.TrackedSession
}

type Server struct {
	hub      *Hub
	sessions SessionSource
	router   *gin.Engine
	logger   *slog.Logger
}

func NewServer(hub *Hub, sessions SessionSource, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{hub: hub, sessions: sessions, router: router, logger: logger}

	router.GET("/healthz", s.handleHealth)
	router.GET("/ws", gin.WrapF(hub.ServeWS))

	api := router.Group("/api")
	{
		api.GET("/events", s.handleEvents)
		api.GET("/sessions", s.handleSessions)
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully and
// disconnects the WebSocket clients.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("event feed listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve feed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	s.hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown feed: %w", err)
	}
	s.logger.Info("event feed stopped")
	return nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"clients": s.hub.Clients(),
	})
}

func (s *Server) handleEvents(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"events": s.hub.Recent()})
}

func (s *Server) handleSessions(c *gin.Context) {
	if s.sessions == nil {
		c.JSON(http.StatusOK, gin.H{"sessions": []state.TrackedSession{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": s.sessions.Sessions()})
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("feed request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.Request.URL.Path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("elapsed", time.Since(start)),
		)
	}
}
