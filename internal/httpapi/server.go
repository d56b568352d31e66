package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/kickslayer1/bigdatahacathon-2025/internal/config"
	"github.com/kickslayer1/bigdatahacathon-2025/internal/metrics"
	"github.com/kickslayer1/bigdatahacathon-2025/internal/service"
	"github.com/kickslayer1/bigdatahacathon-2025/internal/storage"
	"github.com/kickslayer1/bigdatahacathon-2025/internal/version"
)

// SeriesReader is the read side of the series store used by the API.
type SeriesReader interface {
	ListSeries(ctx context.Context) ([]storage.SeriesRecord, error)
	GetSeries(ctx context.Context, kind, name string) (storage.SeriesRecord, error)
	ListPoints(ctx context.Context, seriesID int64) ([]storage.SeriesPoint, error)
}

// Server exposes the forecasting engine over HTTP.
type Server struct {
	cfg        config.HTTPConfig
	forecaster *service.Forecaster
	series     SeriesReader
	metrics    *metrics.Metrics
	logger     zerolog.Logger
	router     *gin.Engine
}

// New builds the router. series and m may be nil; series endpoints then answer 503.
func New(cfg config.HTTPConfig, forecaster *service.Forecaster, series SeriesReader, m *metrics.Metrics, logger zerolog.Logger) *Server {
	s := &Server{
		cfg:        cfg,
		forecaster: forecaster,
		series:     series,
		metrics:    m,
		logger:     logger.With().Str("component", "httpapi").Logger(),
	}

	router := gin.New()
	router.Use(gin.Recovery(), s.observe())

	router.GET("/healthz", s.health)
	if m != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
	}

	v1 := router.Group("/v1")
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = int(cfg.RateLimit) * 2
		}
		v1.Use(s.rateLimit(rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)))
	}
	if cfg.RequestTimeout > 0 {
		v1.Use(requestTimeout(cfg.RequestTimeout))
	}
	v1.POST("/forecasts", s.createForecast)
	v1.GET("/series", s.listSeries)
	v1.GET("/series/:kind/:name/timeline", s.timeline)

	s.router = router
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Listen,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("listen", s.cfg.Listen).Msg("http api listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info().Msg("http api stopped")
	return nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": version.Version,
		"storage": s.series != nil,
	})
}
