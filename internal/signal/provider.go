package signal

import (
	"context"

	"PaperPilot/internal/model"
)

// Provider evaluates one strategy against one symbol's market data.
// A (nil, nil) return means the strategy found no actionable setup.
type Provider interface {
	Evaluate(ctx context.Context, strategyID string, data *model.SymbolData) (*model.Opportunity, error)
	Strategies() []model.StrategyInfo
}
