package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"PaperPilot/internal/model"
)

// RESTProvider fetches quotes and candles from a REST market-data API with
// rate limiting and bounded retries for transient failures.
type RESTProvider struct {
	BaseURL    string
	APIKey     string
	Client     *http.Client
	limiter    *RateLimiter
	maxRetries int
}

// NewRESTProvider creates a provider with optional proxy support.
func NewRESTProvider(baseURL, apiKey, proxyURL string, timeout, rateLimitDelay time.Duration, maxRetries int) *RESTProvider {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &RESTProvider{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		limiter:    NewRateLimiter(rateLimitDelay),
		maxRetries: maxRetries,
	}
}

func (p *RESTProvider) Name() string { return "rest" }

// GetLTP returns the last traded price for a symbol.
func (p *RESTProvider) GetLTP(ctx context.Context, symbol string) (decimal.Decimal, error) {
	endpoint := fmt.Sprintf("%s/api/v1/quote?symbol=%s", p.BaseURL, url.QueryEscape(symbol))

	var result struct {
		Price float64 `json:"price"`
	}
	if err := p.getJSON(ctx, endpoint, &result); err != nil {
		return decimal.Zero, fmt.Errorf("ltp %s: %w", symbol, err)
	}
	if result.Price <= 0 {
		return decimal.Zero, fmt.Errorf("ltp %s: price %.4f: %w", symbol, result.Price, ErrNoData)
	}
	return decimal.NewFromFloat(result.Price), nil
}

// restBar is the expected JSON shape for one candle.
type restBar struct {
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

// GetOHLCV returns up to limit candles at the given interval, oldest first.
func (p *RESTProvider) GetOHLCV(ctx context.Context, symbol, interval string, limit int) ([]model.OHLCV, error) {
	endpoint := fmt.Sprintf("%s/api/v1/bars?symbol=%s&interval=%s&limit=%d",
		p.BaseURL, url.QueryEscape(symbol), url.QueryEscape(interval), limit)

	var restBars []restBar
	if err := p.getJSON(ctx, endpoint, &restBars); err != nil {
		return nil, fmt.Errorf("ohlcv %s: %w", symbol, err)
	}
	if len(restBars) == 0 {
		return nil, fmt.Errorf("ohlcv %s: empty response: %w", symbol, ErrNoData)
	}

	bars := make([]model.OHLCV, len(restBars))
	for i, rb := range restBars {
		bars[i] = model.OHLCV{
			Time:   time.Unix(rb.Timestamp, 0),
			Open:   rb.Open,
			High:   rb.High,
			Low:    rb.Low,
			Close:  rb.Close,
			Volume: rb.Volume,
		}
	}
	// Ensure chronological order
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}

// getJSON performs a rate-limited GET with retries for transient errors.
func (p *RESTProvider) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}

		err := p.fetchOnce(ctx, endpoint, out)
		if err == nil {
			p.limiter.OnSuccess()
			return nil
		}
		lastErr = err

		switch {
		case isRateLimit(err):
			p.limiter.OnRateLimit()
			log.Printf("[WARN] rate limited (attempt %d/%d), backoff x%.1f", attempt+1, p.maxRetries+1, p.limiter.Multiplier())
		case isConnection(err):
			log.Printf("[WARN] connection error (attempt %d/%d): %v", attempt+1, p.maxRetries+1, err)
		default:
			return err // not transient: surface immediately
		}
	}
	return fmt.Errorf("retries exhausted: %w", lastErr)
}

func (p *RESTProvider) fetchOnce(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if p.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status 429", ErrRateLimited)
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", ErrConnection, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d, body: %s: %w", resp.StatusCode, string(body), ErrNoData)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", ErrNoData)
	}
	return nil
}

func isRateLimit(err error) bool  { return errors.Is(err, ErrRateLimited) }
func isConnection(err error) bool { return errors.Is(err, ErrConnection) }
