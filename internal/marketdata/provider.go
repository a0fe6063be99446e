package marketdata

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"PaperPilot/internal/model"
)

// Error kinds returned by providers. Rate-limit and connection errors are
// transient: the provider retries them internally with backoff before they
// surface to the caller.
var (
	ErrNoData      = errors.New("no market data")
	ErrRateLimited = errors.New("rate limit exceeded")
	ErrConnection  = errors.New("connection failed")
)

// Provider supplies last traded prices and historical candles per symbol.
type Provider interface {
	GetLTP(ctx context.Context, symbol string) (decimal.Decimal, error)
	GetOHLCV(ctx context.Context, symbol, interval string, limit int) ([]model.OHLCV, error)
	Name() string
}
