package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kickslayer1/bigdatahacathon-2025/internal/forecast"
	"github.com/kickslayer1/bigdatahacathon-2025/internal/service"
	"github.com/kickslayer1/bigdatahacathon-2025/internal/storage"
)

type forecastRequest struct {
	Series  []forecast.Observation `json:"series"`
	Horizon *int                   `json:"horizon"`
}

// TimelinePoint is one entry of a series timeline, either an actual or a prediction.
type TimelinePoint struct {
	Quarter         string              `json:"quarter"`
	Value           int64               `json:"value"`
	IsActual        bool                `json:"is_actual"`
	LowerBound      *int64              `json:"lower_bound,omitempty"`
	UpperBound      *int64              `json:"upper_bound,omitempty"`
	ConfidenceLevel forecast.Confidence `json:"confidence_level,omitempty"`
}

// PredictionInfo describes how the predicted part of a timeline was produced.
type PredictionInfo struct {
	MLEnabled        bool                        `json:"ml_enabled"`
	TierUsed         forecast.Tier               `json:"tier_used"`
	ModelsUsed       forecast.ModelsUsedPayload  `json:"models_used"`
	ModelPerformance forecast.PerformancePayload `json:"model_performance"`
	DataSource       string                      `json:"data_source"`
	Cached           bool                        `json:"cached"`
}

// Timeline is the response of the timeline endpoint.
type Timeline struct {
	Kind           string            `json:"kind"`
	Name           string            `json:"name"`
	Unit           string            `json:"unit,omitempty"`
	Data           []TimelinePoint   `json:"data"`
	PredictionInfo *PredictionInfo   `json:"prediction_info"`
	Summary        *forecast.Summary `json:"summary"`
}

func (s *Server) createForecast(c *gin.Context) {
	var req forecastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorBody("invalid request body: "+err.Error()))
		return
	}
	horizon := 0
	if req.Horizon != nil {
		if *req.Horizon < 1 {
			c.JSON(http.StatusBadRequest, errorBody("horizon must be at least 1"))
			return
		}
		horizon = *req.Horizon
	}
	if err := s.checkHorizon(horizon); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err.Error()))
		return
	}
	if limit := s.cfg.MaxPoints; limit > 0 && len(req.Series) > limit {
		c.JSON(http.StatusBadRequest, errorBody(fmt.Sprintf("series exceeds %d points", limit)))
		return
	}

	series, err := forecast.Prepare(req.Series)
	if err != nil {
		s.writeForecastError(c, err)
		return
	}

	computed, err := s.compute(c.Request.Context(), series, horizon)
	if err != nil {
		s.writeForecastError(c, err)
		return
	}

	c.Header("X-Cache", cacheHeader(computed.Cached))
	c.JSON(http.StatusOK, forecast.NewPayload(computed.Result))
}

func (s *Server) listSeries(c *gin.Context) {
	if s.series == nil {
		c.JSON(http.StatusServiceUnavailable, errorBody("storage not configured"))
		return
	}
	records, err := s.series.ListSeries(c.Request.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("list series failed")
		c.JSON(http.StatusInternalServerError, errorBody("failed to list series"))
		return
	}
	if records == nil {
		records = []storage.SeriesRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"series": records})
}

func (s *Server) timeline(c *gin.Context) {
	if s.series == nil {
		c.JSON(http.StatusServiceUnavailable, errorBody("storage not configured"))
		return
	}
	horizon := 0
	if raw := c.Query("horizon"); raw != "" {
		h, err := strconv.Atoi(raw)
		if err != nil || h < 1 {
			c.JSON(http.StatusBadRequest, errorBody("horizon must be a positive integer"))
			return
		}
		horizon = h
	}
	if err := s.checkHorizon(horizon); err != nil {
		c.JSON(http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	ctx := c.Request.Context()
	rec, err := s.series.GetSeries(ctx, c.Param("kind"), c.Param("name"))
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, errorBody("series not found"))
		return
	}
	if err != nil {
		s.logger.Error().Err(err).Msg("get series failed")
		c.JSON(http.StatusInternalServerError, errorBody("failed to load series"))
		return
	}
	points, err := s.series.ListPoints(ctx, rec.ID)
	if err != nil {
		s.logger.Error().Err(err).Int64("series_id", rec.ID).Msg("list points failed")
		c.JSON(http.StatusInternalServerError, errorBody("failed to load series"))
		return
	}

	out := Timeline{Kind: rec.Kind, Name: rec.Name, Unit: rec.Unit, Data: make([]TimelinePoint, 0, len(points))}
	for _, p := range points {
		out.Data = append(out.Data, TimelinePoint{
			Quarter:  p.Period.String(),
			Value:    p.Value.Round(0).IntPart(),
			IsActual: true,
		})
	}

	series, err := forecast.Prepare(storage.Observations(points))
	if err == nil {
		var computed service.Computed
		computed, err = s.compute(ctx, series, horizon)
		if err == nil {
			appendPredictions(&out, computed)
			out.PredictionInfo.DataSource = dataSource(rec)
			if summary, ok := forecast.Summarize(series, computed.Result); ok {
				out.Summary = &summary
			}
		}
	}
	switch {
	case err == nil:
	case errors.Is(err, forecast.ErrEmptySeries), errors.Is(err, forecast.ErrInsufficientData):
		// 数据不足时仍返回历史数据
	default:
		s.writeForecastError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func appendPredictions(out *Timeline, computed service.Computed) {
	payload := forecast.NewPayload(computed.Result)
	for _, p := range payload.Predictions {
		lower, upper := p.LowerBound, p.UpperBound
		out.Data = append(out.Data, TimelinePoint{
			Quarter:         p.Quarter,
			Value:           p.PredictedValue,
			LowerBound:      &lower,
			UpperBound:      &upper,
			ConfidenceLevel: p.ConfidenceLevel,
		})
	}
	out.PredictionInfo = &PredictionInfo{
		MLEnabled:        computed.Result.Tier.MLEnabled(),
		TierUsed:         payload.TierUsed,
		ModelsUsed:       payload.ModelsUsed,
		ModelPerformance: payload.ModelPerformance,
		Cached:           computed.Cached,
	}
}

func dataSource(rec storage.SeriesRecord) string {
	if rec.Source != "" {
		return rec.Source
	}
	return "database"
}

// checkHorizon bounds an explicit horizon; zero means the configured default.
func (s *Server) checkHorizon(horizon int) error {
	if limit := s.cfg.MaxHorizon; limit > 0 && horizon > limit {
		return fmt.Errorf("horizon exceeds %d quarters", limit)
	}
	return nil
}

type computeResult struct {
	computed service.Computed
	err      error
}

// compute runs the forecaster but gives up when the request context ends first.
func (s *Server) compute(ctx context.Context, series forecast.Series, horizon int) (service.Computed, error) {
	if err := ctx.Err(); err != nil {
		return service.Computed{}, err
	}
	done := make(chan computeResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error().Interface("panic", r).Int("horizon", horizon).Msg("forecast panicked")
				done <- computeResult{err: fmt.Errorf("forecast panicked: %v", r)}
			}
		}()
		computed, err := s.forecaster.Forecast(ctx, series, horizon)
		done <- computeResult{computed: computed, err: err}
	}()

	select {
	case r := <-done:
		return r.computed, r.err
	case <-ctx.Done():
		return service.Computed{}, ctx.Err()
	}
}

func (s *Server) writeForecastError(c *gin.Context, err error) {
	var malformed *forecast.MalformedPeriodError
	switch {
	case errors.Is(err, forecast.ErrInsufficientData):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "prediction_available": false})
	case errors.Is(err, forecast.ErrEmptySeries), errors.As(err, &malformed):
		c.JSON(http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, context.DeadlineExceeded):
		if s.metrics != nil {
			s.metrics.HTTPRejected.WithLabelValues("timeout").Inc()
		}
		c.JSON(http.StatusServiceUnavailable, errorBody("forecast timed out"))
	case errors.Is(err, context.Canceled):
		c.Status(499)
	default:
		s.logger.Error().Err(err).Msg("forecast failed")
		c.JSON(http.StatusInternalServerError, errorBody("forecast failed"))
	}
}

func cacheHeader(hit bool) string {
	if hit {
		return "HIT"
	}
	return "MISS"
}
