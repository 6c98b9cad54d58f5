package apihttp

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"cryptomind/internal/logger"
	"cryptomind/internal/metrics"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Server 提供 /api 下的钱包、交易、行情与自动交易接口。
type Server struct {
	addr   string
	router *gin.Engine
}

// ServerConfig 描述 HTTP 服务依赖。Decisions、Failures、Metrics 可为空。
type ServerConfig struct {
	Addr          string
	Trader        Trader
	Quotes        Quotes
	AutoTrader    AutoTrader
	Alerts        Alerts
	Notifications Notifications
	Failures      FailureReporter
	Decisions     Decisions
	Metrics       *metrics.Metrics

	TradeRatePerSecond float64
	TradeBurst         int
}

// NewServer 构建 HTTP server。
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Trader == nil || cfg.Quotes == nil {
		return nil, errors.New("http server requires trader and quotes")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9992"
	}
	if cfg.TradeBurst <= 0 {
		cfg.TradeBurst = 1
	}
	limit := rate.Inf
	if cfg.TradeRatePerSecond > 0 {
		limit = rate.Limit(cfg.TradeRatePerSecond)
	}
	if err := registerValidators(); err != nil {
		return nil, err
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(), requestMetrics(cfg.Metrics))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	r := &Router{
		trader:        cfg.Trader,
		quotes:        cfg.Quotes,
		auto:          cfg.AutoTrader,
		alerts:        cfg.Alerts,
		notifications: cfg.Notifications,
		failures:      cfg.Failures,
		decisions:     cfg.Decisions,
		metrics:       cfg.Metrics,
		tradeLimiter:  rate.NewLimiter(limit, cfg.TradeBurst),
	}
	r.Register(router.Group("/api"))

	return &Server{addr: cfg.Addr, router: router}, nil
}

// Handler 暴露底层路由，测试中直接使用 httptest。
func (s *Server) Handler() http.Handler {
	return s.router
}

// requestLogger 记录每个请求的耗时与状态。
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

func requestMetrics(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
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
	srv := &http.Server{Addr: s.addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Infof("http: listening on %s", s.addr)

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
