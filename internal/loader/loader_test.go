package loader

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kickslayer1/bigdatahacathon-2025/internal/forecast"
)

func TestParseCSV(t *testing.T) {
	input := "Quarter,Value\n2023Q1,\"1,200.5\"\n2023Q2,1300\n"
	obs, err := ParseCSV(strings.NewReader(input), 2)
	require.NoError(t, err)
	assert.Equal(t, []forecast.Observation{
		{Period: "2023Q1", Value: 2401},
		{Period: "2023Q2", Value: 2600},
	}, obs)
}

func TestParseCSVRejectsMissingColumns(t *testing.T) {
	_, err := ParseCSV(strings.NewReader("date,amount\n2023Q1,1\n"), 1)
	assert.Error(t, err)

	_, err = ParseCSV(strings.NewReader("period,value\n2023Q1,abc\n"), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestParseJSONShapes(t *testing.T) {
	bare := []byte(`[{"period":"2024Q1","value":5},{"period":"2024Q2","value":6}]`)
	obs, err := ParseJSON(bare, 1)
	require.NoError(t, err)
	assert.Len(t, obs, 2)

	wrapped := []byte(`{"series":[{"quarter":"2024Q3","value":7.5}]}`)
	obs, err = ParseJSON(wrapped, 1_000_000)
	require.NoError(t, err)
	assert.Equal(t, []forecast.Observation{{Period: "2024Q3", Value: 7_500_000}}, obs)

	_, err = ParseJSON([]byte(`{"series":`), 1)
	assert.Error(t, err)
}

func TestParseYAMLShapes(t *testing.T) {
	obs, err := ParseYAML([]byte("- period: 2024Q1\n  value: 10\n- quarter: 2024Q2\n  value: 11\n"), 1)
	require.NoError(t, err)
	assert.Equal(t, "2024Q2", obs[1].Period)

	obs, err = ParseYAML([]byte("series:\n  - period: 2024Q1\n    value: 3\n"), 1)
	require.NoError(t, err)
	assert.Equal(t, []forecast.Observation{{Period: "2024Q1", Value: 3}}, obs)
}

func TestReadFileDispatchesOnExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "exports.yml")
	require.NoError(t, os.WriteFile(path, []byte("- period: 2024Q1\n  value: 1\n"), 0o600))

	obs, err := ReadFile(path, 1)
	require.NoError(t, err)
	assert.Len(t, obs, 1)

	other := filepath.Join(dir, "exports.txt")
	require.NoError(t, os.WriteFile(other, []byte("x"), 0o600))
	_, err = ReadFile(other, 1)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestParseDailyRatesAggregatesQuarters(t *testing.T) {
	input := strings.Join([]string{
		"post_date,buying_rate,average_rate,selling_rate",
		"01/15/2024,1290,\"1,300.00\",1310",
		"03/20/2024,1300,1310,1320",
		"04/02/2024,1310,1320,1330",
		"05/02/2024,1310,,1330",
	}, "\n")

	obs, err := ParseDailyRates(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, obs, 2)
	assert.Equal(t, "2024Q1", obs[0].Period)
	assert.InDelta(t, 1305, obs[0].Value, 1e-9)
	assert.Equal(t, "2024Q2", obs[1].Period)
	assert.InDelta(t, 1320, obs[1].Value, 1e-9)
}

func TestParseDailyRatesBadDate(t *testing.T) {
	_, err := ParseDailyRates(strings.NewReader("post_date,average_rate\n2024/13/01,1\n"))
	assert.Error(t, err)
}

func TestHTTPSourceFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/series/export/coffee" {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "unknown series"})
			return
		}
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("user agent not forwarded: %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"series":[{"period":"2024Q1","value":2}]}`))
	}))
	defer srv.Close()

	src, err := NewHTTPSource(HTTPOptions{BaseURL: srv.URL + "/", Timeout: time.Second, UserAgent: "test-agent", Scale: 10}, zerolog.Nop())
	require.NoError(t, err)

	obs, err := src.Fetch(context.Background(), "export", "coffee")
	require.NoError(t, err)
	assert.Equal(t, []forecast.Observation{{Period: "2024Q1", Value: 20}}, obs)

	_, err = src.Fetch(context.Background(), "export", "tea")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "(404): unknown series")
}

func TestHTTPSourceRejectsOversizedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"series":[{"period":"2024Q1","value":2}],"padding":"` + strings.Repeat("x", 256) + `"}`))
	}))
	defer srv.Close()

	src, err := NewHTTPSource(HTTPOptions{BaseURL: srv.URL, MaxBodyBytes: 64}, zerolog.Nop())
	require.NoError(t, err)

	_, err = src.Fetch(context.Background(), "export", "coffee")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds 64 bytes")
}

func TestNewHTTPSourceRequiresBaseURL(t *testing.T) {
	if _, err := NewHTTPSource(HTTPOptions{}, zerolog.Nop()); err == nil {
		t.Fatal("missing base url should fail")
	}
}

func TestParseHTTPErrorFallbacks(t *testing.T) {
	assert.EqualError(t, parseHTTPError(500, []byte("boom\n")), "series source error (500): boom")
	assert.EqualError(t, parseHTTPError(502, nil), "series source error (502)")
	assert.EqualError(t, parseHTTPError(400, []byte(`{"message":"bad kind"}`)), "series source error (400): bad kind")
}
