package data

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macroquant/macrorun/internal/timeseries"
)

func fredServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func fredClientFor(server *httptest.Server) *FREDClient {
	cfg := DefaultFREDConfig()
	cfg.BaseURL = server.URL
	cfg.RequestsPerSecond = 1000
	return NewFREDClient("test-key", cfg, NewCache())
}

func TestFREDFetchSeries(t *testing.T) {
	var gotSeriesID string
	server := fredServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotSeriesID = r.URL.Query().Get("series_id")
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		fmt.Fprint(w, `{"observations":[
			{"date":"2024-01-02","value":"3.95"},
			{"date":"2024-01-03","value":"."},
			{"date":"2024-01-04","value":"3.90"}]}`)
	})

	client := fredClientFor(server)
	series, err := client.FetchSeries(context.Background(),
		"yield_10y",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	// Logical names map to FRED series IDs.
	assert.Equal(t, "DGS10", gotSeriesID)

	// The "." observation forward-fills from the prior value.
	require.Equal(t, 3, series.Len())
	assert.Equal(t, 3.95, series.At(0))
	assert.Equal(t, 3.95, series.At(1))
	assert.Equal(t, 3.90, series.At(2))
}

func TestFREDUnknownSeriesPassthrough(t *testing.T) {
	var gotSeriesID string
	server := fredServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotSeriesID = r.URL.Query().Get("series_id")
		fmt.Fprint(w, `{"observations":[{"date":"2024-01-02","value":"1"}]}`)
	})

	client := fredClientFor(server)
	_, err := client.FetchSeries(context.Background(),
		"T10Y2Y",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "T10Y2Y", gotSeriesID)
}

func TestFREDServerError(t *testing.T) {
	server := fredServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	client := fredClientFor(server)
	_, err := client.FetchSeries(context.Background(),
		"cpi",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	assert.Error(t, err)
}

func TestFREDNoObservations(t *testing.T) {
	server := fredServer(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"observations":[]}`)
	})

	client := fredClientFor(server)
	_, err := client.FetchSeries(context.Background(),
		"gdp",
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	assert.Error(t, err)
}

func TestFREDUsesCacheAcrossCalls(t *testing.T) {
	calls := 0
	server := fredServer(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		fmt.Fprint(w, `{"observations":[{"date":"2024-01-02","value":"2.5"}]}`)
	})

	client := fredClientFor(server)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	_, err := client.FetchSeries(context.Background(), "cpi", start, end)
	require.NoError(t, err)
	_, err = client.FetchSeries(context.Background(), "cpi", start, end)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestFREDCorruptCacheEntryRefetches(t *testing.T) {
	server := fredServer(t, func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"observations":[{"date":"2024-01-02","value":"2.5"}]}`)
	})

	cfg := DefaultFREDConfig()
	cfg.BaseURL = server.URL
	cfg.RequestsPerSecond = 1000
	cache := NewCache()
	client := NewFREDClient("test-key", cfg, cache)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	cache.Set(cacheKey("fred", "cpi", start, end), []byte("not json"), 0)

	series, err := client.FetchSeries(context.Background(), "cpi", start, end)
	require.NoError(t, err)
	assert.Equal(t, 2.5, series.At(0))
}

func TestFetchMultipleOuterJoins(t *testing.T) {
	server := fredServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("series_id") {
		case "DGS10":
			fmt.Fprint(w, `{"observations":[
				{"date":"2024-01-02","value":"4.0"},
				{"date":"2024-01-03","value":"4.1"}]}`)
		default:
			fmt.Fprint(w, `{"observations":[{"date":"2024-01-03","value":"3.9"}]}`)
		}
	})

	client := fredClientFor(server)
	frame, err := client.FetchMultiple(context.Background(),
		[]string{"yield_10y", "yield_2y"},
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	require.Equal(t, 2, frame.Len())
	short, ok := frame.Column("yield_2y")
	require.True(t, ok)
	assert.True(t, math.IsNaN(short.At(0)))
	assert.Equal(t, 3.9, short.At(1))
}

func TestSeriesEnvelopeRoundTripsMissing(t *testing.T) {
	dates := []time.Time{
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
	}
	original, err := timeseries.New(dates, []float64{1.5, math.NaN()})
	require.NoError(t, err)

	raw, err := encodeSeries(original)
	require.NoError(t, err)
	decoded, err := decodeSeries(raw)
	require.NoError(t, err)

	assert.Equal(t, 1.5, decoded.At(0))
	assert.True(t, math.IsNaN(decoded.At(1)))
}
