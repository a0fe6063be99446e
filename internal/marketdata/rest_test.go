package marketdata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestProvider(url string, maxRetries int) *RESTProvider {
	return NewRESTProvider(url, "test-key", "", 5*time.Second, time.Millisecond, maxRetries)
}

func TestGetLTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header = %q", got)
		}
		if got := r.URL.Query().Get("symbol"); got != "RELIANCE" {
			t.Errorf("symbol = %q", got)
		}
		fmt.Fprint(w, `{"price": 2543.75}`)
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL, 0)
	price, err := p.GetLTP(context.Background(), "RELIANCE")
	if err != nil {
		t.Fatalf("ltp: %v", err)
	}
	if price.String() != "2543.75" {
		t.Errorf("price = %s, want 2543.75", price)
	}
}

func TestGetLTPZeroPriceIsNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"price": 0}`)
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL, 0)
	if _, err := p.GetLTP(context.Background(), "X"); !errors.Is(err, ErrNoData) {
		t.Errorf("err = %v, want ErrNoData", err)
	}
}

func TestGetOHLCVSortsChronologically(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"timestamp": 1700000600, "open": 101, "high": 102, "low": 100, "close": 101.5, "volume": 1000},
			{"timestamp": 1700000300, "open": 100, "high": 101, "low": 99, "close": 101, "volume": 900}
		]`)
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL, 0)
	bars, err := p.GetOHLCV(context.Background(), "TCS", "5m", 10)
	if err != nil {
		t.Fatalf("ohlcv: %v", err)
	}
	if len(bars) != 2 {
		t.Fatalf("bars = %d, want 2", len(bars))
	}
	if !bars[0].Time.Before(bars[1].Time) {
		t.Error("bars not sorted oldest first")
	}
}

func TestGetOHLCVEmptyIsNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL, 0)
	if _, err := p.GetOHLCV(context.Background(), "X", "5m", 10); !errors.Is(err, ErrNoData) {
		t.Errorf("err = %v, want ErrNoData", err)
	}
}

func TestRateLimitRetriesThenSucceeds(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls <= 2 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		fmt.Fprint(w, `{"price": 100}`)
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL, 3)
	if _, err := p.GetLTP(context.Background(), "X"); err != nil {
		t.Fatalf("ltp after retries: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if p.limiter.Multiplier() <= 1.0 {
		t.Error("backoff multiplier did not grow on rate limits")
	}
}

func TestRetriesExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL, 2)
	_, err := p.GetLTP(context.Background(), "X")
	if !errors.Is(err, ErrConnection) {
		t.Errorf("err = %v, want ErrConnection", err)
	}
}

func TestClientErrorDoesNotRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p := newTestProvider(srv.URL, 3)
	if _, err := p.GetLTP(context.Background(), "X"); err == nil {
		t.Fatal("expected error on 404")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (4xx is not transient)", calls)
	}
}
