package dashboardhttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"brood/internal/logger"

	"github.com/gin-gonic/gin"
)

// Server 提供只读的种群 dashboard API。
type Server struct {
	addr   string
	router *gin.Engine
}

// NewServer 构建 dashboard HTTP server。
func NewServer(cfg RouterConfig, addr string) (*Server, error) {
	if cfg.Population == nil {
		return nil, errors.New("dashboard server requires a population source")
	}
	if addr == "" {
		addr = ":9991"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	NewRouter(cfg).Register(router.Group("/api"))
	return &Server{addr: addr, router: router}, nil
}

// Handler exposes the router for httptest.
func (s *Server) Handler() http.Handler { return s.router }

// requestLogger 记录接口调用，便于追踪刷新与调用。
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery
		client := c.ClientIP()
		c.Next()
		fullPath := path
		if query != "" {
			fullPath = path + "?" + query
		}
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s", method, fullPath, c.Writer.Status(), client, time.Since(start))
	}
}

// Addr 返回监听地址。
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Start 启动 HTTP 服务，直到 ctx 取消或出现错误。
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
	logger.Infof("dashboard listening on %s", s.addr)

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
