package recorder

import "PaperPilot/internal/model"

// Recorder persists scan and trading history for analysis.
type Recorder interface {
	RecordScan(result *model.ScanResult) error
	RecordOrder(order model.Order) error
	RecordStrategyTrade(trade model.StrategyTrade) error
	RecordPerformance(perf []model.StrategyPerformance, stats model.PaperStats) error
	Close() error
}
