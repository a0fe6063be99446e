package recorder

import "PaperPilot/internal/model"

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordScan(_ *model.ScanResult) error          { return nil }
func (n *NoopRecorder) RecordOrder(_ model.Order) error               { return nil }
func (n *NoopRecorder) RecordStrategyTrade(_ model.StrategyTrade) error { return nil }
func (n *NoopRecorder) RecordPerformance(_ []model.StrategyPerformance, _ model.PaperStats) error {
	return nil
}
func (n *NoopRecorder) Close() error { return nil }
