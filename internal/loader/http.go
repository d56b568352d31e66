package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kickslayer1/bigdatahacathon-2025/internal/forecast"
)

// Source retrieves the observations of a named series.
type Source interface {
	Fetch(ctx context.Context, kind, name string) ([]forecast.Observation, error)
}

// HTTPOptions parameterise the remote series source.
type HTTPOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	Scale     float64
	// MaxBodyBytes caps the response size; zero means DefaultMaxBodyBytes.
	MaxBodyBytes int64
}

// DefaultMaxBodyBytes bounds a series response when no limit is configured.
const DefaultMaxBodyBytes int64 = 8 << 20

// HTTPSource reads series from a JSON endpoint at {base}/series/{kind}/{name}.
type HTTPSource struct {
	opts    HTTPOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewHTTPSource constructs a remote series source.
func NewHTTPSource(opts HTTPOptions, logger zerolog.Logger) (*HTTPSource, error) {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		return nil, errors.New("source base url is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if opts.Scale <= 0 {
		opts.Scale = 1
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	return &HTTPSource{
		opts:    opts,
		logger:  logger.With().Str("component", "http_source").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}, nil
}

// Fetch downloads and parses one series.
func (s *HTTPSource) Fetch(ctx context.Context, kind, name string) ([]forecast.Observation, error) {
	endpoint := fmt.Sprintf("%s/series/%s/%s", s.baseURL, url.PathEscape(kind), url.PathEscape(name))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(s.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "tradecast/1.0")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, s.opts.MaxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(payload)) > s.opts.MaxBodyBytes {
		return nil, fmt.Errorf("series response exceeds %d bytes", s.opts.MaxBodyBytes)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, parseHTTPError(resp.StatusCode, payload)
	}

	obs, err := ParseJSON(payload, s.opts.Scale)
	if err != nil {
		return nil, err
	}
	s.logger.Debug().Str("kind", kind).Str("name", name).Int("points", len(obs)).Msg("series fetched")
	return obs, nil
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func parseHTTPError(status int, payload []byte) error {
	var apiErr errorResponse
	if err := json.Unmarshal(payload, &apiErr); err == nil {
		if apiErr.Message != "" {
			return fmt.Errorf("series source error (%d): %s", status, apiErr.Message)
		}
		if apiErr.Error != "" {
			return fmt.Errorf("series source error (%d): %s", status, apiErr.Error)
		}
	}
	if len(payload) > 0 {
		return fmt.Errorf("series source error (%d): %s", status, strings.TrimSpace(string(payload)))
	}
	return fmt.Errorf("series source error (%d)", status)
}

var _ Source = (*HTTPSource)(nil)
