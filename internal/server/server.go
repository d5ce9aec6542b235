package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ballast/internal/logger"
)

// Registrar mounts a set of routes onto a group.
type Registrar interface {
	Register(group *gin.RouterGroup)
}

// Server wraps the gin engine and its lifecycle.
type Server struct {
	addr   string
	router *gin.Engine
}

// New builds the HTTP server and mounts every registrar under /api/risk.
func New(addr string, registrars ...Registrar) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	group := router.Group("/api/risk")
	for _, r := range registrars {
		if r == nil {
			continue
		}
		r.Register(group)
	}
	return &Server{addr: addr, router: router}
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Handler exposes the underlying handler for tests.
func (s *Server) Handler() http.Handler {
	if s == nil {
		return nil
	}
	return s.router
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery
		client := c.ClientIP()
		c.Next()
		dur := time.Since(start)
		status := c.Writer.Status()
		fullPath := path
		if query != "" {
			fullPath = path + "?" + query
		}
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s", method, fullPath, status, client, dur)
	}
}
