package data

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/macroquant/macrorun/internal/telemetry"
	"github.com/macroquant/macrorun/internal/timeseries"
)

// fredSeriesMap translates logical series names to FRED series IDs. Unknown
// names pass through unchanged so raw FRED IDs also work.
var fredSeriesMap = map[string]string{
	"yield_10y":    "DGS10",
	"yield_2y":     "DGS2",
	"cpi":          "CPIAUCSL",
	"gdp":          "GDP",
	"unemployment": "UNRATE",
	"vix":          "VIXCLS",
	"dollar_index": "DTWEXBGS",
}

// FREDConfig configures the FRED HTTP client.
type FREDConfig struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	CacheTTL          time.Duration
}

// DefaultFREDConfig returns conservative client settings. FRED allows well
// over two requests per second; staying under keeps long backfills polite.
func DefaultFREDConfig() *FREDConfig {
	return &FREDConfig{
		BaseURL:           "https://api.stlouisfed.org/fred",
		Timeout:           15 * time.Second,
		RequestsPerSecond: 2,
		CacheTTL:          24 * time.Hour,
	}
}

// FREDClient fetches macroeconomic series from the FRED observations API,
// with request rate limiting, a circuit breaker, and cached responses.
type FREDClient struct {
	apiKey  string
	cfg     *FREDConfig
	client  *http.Client
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	cache   Cache
}

// NewFREDClient creates a FRED loader. A nil config uses defaults; a nil
// cache gets a private in-memory one.
func NewFREDClient(apiKey string, cfg *FREDConfig, cache Cache) *FREDClient {
	if cfg == nil {
		cfg = DefaultFREDConfig()
	}
	if cache == nil {
		cache = NewCache()
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "fred",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).
				Str("from", from.String()).Str("to", to.String()).
				Msg("Circuit breaker state change")
		},
	})
	return &FREDClient{
		apiKey:  apiKey,
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		breaker: breaker,
		cache:   cache,
	}
}

// FetchSeries fetches one macro series, cleaned: interior gaps forward-filled
// and leading gaps dropped.
func (c *FREDClient) FetchSeries(ctx context.Context, id string, start, end time.Time) (*timeseries.Series, error) {
	if err := validateRange(start, end); err != nil {
		return nil, err
	}

	key := cacheKey("fred", id, start, end)
	if raw, ok := c.cache.Get(key); ok {
		if series, err := decodeSeries(raw); err == nil {
			return series, nil
		}
		// Corrupt entry: treat as a miss and refetch.
		log.Warn().Str("series", id).Msg("Ignoring undecodable cache entry")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetchObservations(ctx, id, start, end)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", id, err)
	}
	series := clean(result.(*timeseries.Series))

	if raw, err := encodeSeries(series); err == nil {
		c.cache.Set(key, raw, c.cfg.CacheTTL)
	}
	telemetry.SeriesFetches.WithLabelValues("fred").Inc()
	log.Info().Str("series", id).
		Time("start", start).Time("end", end).
		Int("observations", series.Len()).
		Msg("Fetched macro series")
	return series, nil
}

// FetchMultiple fetches several series and outer-joins them into a frame.
func (c *FREDClient) FetchMultiple(ctx context.Context, ids []string, start, end time.Time) (*timeseries.Frame, error) {
	return fetchFrame(ctx, ids, start, end, c.FetchSeries)
}

type fredResponse struct {
	Observations []struct {
		Date  string `json:"date"`
		Value string `json:"value"`
	} `json:"observations"`
}

func (c *FREDClient) fetchObservations(ctx context.Context, id string, start, end time.Time) (*timeseries.Series, error) {
	seriesID, ok := fredSeriesMap[id]
	if !ok {
		seriesID = id
	}

	params := url.Values{}
	params.Set("series_id", seriesID)
	params.Set("observation_start", start.Format("2006-01-02"))
	params.Set("observation_end", end.Format("2006-01-02"))
	params.Set("api_key", c.apiKey)
	params.Set("file_type", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.BaseURL+"/series/observations?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("FRED returned status %d for series %s", resp.StatusCode, seriesID)
	}

	var payload fredResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode FRED response: %w", err)
	}
	if len(payload.Observations) == 0 {
		return nil, fmt.Errorf("no observations for series %s between %s and %s",
			seriesID, start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	dates := make([]time.Time, 0, len(payload.Observations))
	values := make([]float64, 0, len(payload.Observations))
	for _, obs := range payload.Observations {
		date, err := time.Parse("2006-01-02", obs.Date)
		if err != nil {
			return nil, fmt.Errorf("bad observation date %q: %w", obs.Date, err)
		}
		// FRED encodes missing observations as ".".
		value := math.NaN()
		if obs.Value != "." && obs.Value != "" {
			value, err = strconv.ParseFloat(obs.Value, 64)
			if err != nil {
				return nil, fmt.Errorf("bad observation value %q: %w", obs.Value, err)
			}
		}
		dates = append(dates, date)
		values = append(values, value)
	}
	return timeseries.New(dates, values)
}
