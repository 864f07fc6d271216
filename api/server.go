// Package api is the HTTP gateway of the election ledger. Mutations are
// funneled through a single-worker queue; reads go straight to the ledger.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"election-ledger/ledger"
	"election-ledger/service"
)

const (
	headerCaller  = "X-Caller-Id"
	headerDeposit = "X-Attached-Deposit"
)

// Clock supplies the time every call is evaluated at. Mutations read it on
// the queue worker, so readings follow the order mutations are applied in.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

type Config struct {
	Ledger  *ledger.Ledger
	Queue   *service.Queue
	Metrics *service.MetricsCollector
	Clock   Clock
	Logger  *slog.Logger
}

type Server struct {
	ledger  *ledger.Ledger
	queue   *service.Queue
	metrics *service.MetricsCollector
	clock   Clock
	logger  *slog.Logger
	engine  *gin.Engine
}

func NewServer(cfg Config) *Server {
	clock := cfg.Clock
	if clock == nil {
		clock = ClockFunc(time.Now)
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = service.NewMetricsCollector()
	}
	s := &Server{
		ledger:  cfg.Ledger,
		queue:   cfg.Queue,
		metrics: metrics,
		clock:   clock,
		logger:  ledger.ResolveLogger(cfg.Logger).With("module", "api", "layer", "transport"),
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	s.registerRoutes(r)
	s.engine = r
	return s
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request handled",
			"event", "http_request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
		)
	}
}

// Serve listens on addr until ctx is done, then shuts down gracefully within
// shutdownTimeout.
func Serve(ctx context.Context, addr string, handler http.Handler, shutdownTimeout time.Duration, logger *slog.Logger) error {
	logger = ledger.ResolveLogger(logger)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "event", "http_listen", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen on %s: %w", addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logger.Info("http server shutting down", "event", "http_shutdown")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}
