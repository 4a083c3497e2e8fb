package observability

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const shutdownTimeout = 2 * time.Second

// StatusConfig configures the optional status endpoint.
type StatusConfig struct {
	Addr        string
	CorsOrigins []string
	RunID       string
	Device      string
	// Stats is polled on every /health request.
	Stats func() any
}

// NewStatusRouter serves /health and /metrics.
func NewStatusRouter(cfg StatusConfig, logger zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	RegisterMetrics()

	startedAt := time.Now()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observeRequests(logger))
	if len(cfg.CorsOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: cfg.CorsOrigins,
			AllowMethods: []string{"GET"},
			AllowHeaders: []string{"Origin", "Content-Type"},
			MaxAge:       12 * time.Hour,
		}))
	}

	r.GET("/health", func(c *gin.Context) {
		body := gin.H{
			"status":  "ok",
			"run_id":  cfg.RunID,
			"device":  cfg.Device,
			"uptime":  time.Since(startedAt).Round(time.Second).String(),
			"service": "macslog",
		}
		if cfg.Stats != nil {
			body["stats"] = cfg.Stats()
		}
		c.JSON(http.StatusOK, body)
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

// ServeStatus blocks until ctx is cancelled or the listener fails.
func ServeStatus(ctx context.Context, cfg StatusConfig, logger zerolog.Logger) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewStatusRouter(cfg, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("observability.ServeStatus listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("status server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("status server shutdown: %w", err)
		}
		return nil
	}
}

// observeRequests logs each request and feeds the http metrics.
func observeRequests(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)
		RecordHTTPRequest(c.Request.Method, path, status, elapsed)

		event := logger.Debug()
		if status >= 500 {
			event = logger.Error()
		} else if status >= 400 {
			event = logger.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("duration", elapsed).
			Msg("observability.status request")
	}
}
