package scanner

import (
	"context"
	"log"
	"sync"
	"time"

	"PaperPilot/internal/marketdata"
	"PaperPilot/internal/model"
	"PaperPilot/internal/signal"
)

const (
	barInterval = "5m"
	barLimit    = 100

	bullishThreshold = 0.6
	bearishThreshold = 0.4
)

// Options configures a scan loop.
type Options struct {
	Interval      time.Duration
	MaxConcurrent int
	MinConfidence float64
	Universe      []string
}

// Metrics counts scan activity since startup.
type Metrics struct {
	ScansCompleted     int64
	SymbolsScanned     int64
	SymbolFailures     int64
	OpportunitiesFound int64
	LastScanDuration   time.Duration
}

// Scanner sweeps the symbol universe on a timer, evaluates every registered
// strategy per symbol, and keeps the single best opportunity per symbol.
// Failures on one symbol never abort the sweep.
type Scanner struct {
	provider marketdata.Provider
	engine   signal.Provider
	opts     Options

	mu       sync.Mutex
	universe []string
	latest   *model.ScanResult
	metrics  Metrics
	onResult func(*model.ScanResult)
	scanning bool
	running  bool

	stop chan struct{}
	done chan struct{}
}

func New(provider marketdata.Provider, engine signal.Provider, opts Options) *Scanner {
	return &Scanner{
		provider: provider,
		engine:   engine,
		opts:     opts,
		universe: append([]string(nil), opts.Universe...),
	}
}

// OnResult registers a callback invoked after each completed scan. Must be
// set before Start.
func (s *Scanner) OnResult(fn func(*model.ScanResult)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onResult = fn
}

// UpdateUniverse replaces the symbol list for subsequent scans.
func (s *Scanner) UpdateUniverse(symbols []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.universe = append([]string(nil), symbols...)
	log.Printf("[INFO] scan universe updated: %d symbols", len(symbols))
}

// Universe returns a copy of the current symbol list.
func (s *Scanner) Universe() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.universe...)
}

// LatestResult returns the most recent completed scan, or nil before the
// first one finishes.
func (s *Scanner) LatestResult() *model.ScanResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// Metrics returns a snapshot of the scan counters.
func (s *Scanner) Metrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.metrics
}

// Start launches the periodic scan loop. It returns immediately and refuses
// a second concurrent start; Stop shuts the loop down.
func (s *Scanner) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		log.Printf("[WARN] scanner already running, ignoring start")
		return
	}
	s.running = true
	stop := make(chan struct{})
	done := make(chan struct{})
	s.stop = stop
	s.done = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.opts.Interval)
		defer ticker.Stop()

		log.Printf("[INFO] scanner started, interval %s, %d symbols", s.opts.Interval, len(s.Universe()))
		for {
			select {
			case <-ticker.C:
				s.runScan(ctx)
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the scan loop, waiting briefly for an in-flight scan to settle.
// It is a no-op when the scanner is not running.
func (s *Scanner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stop := s.stop
	done := s.done
	s.mu.Unlock()

	close(stop)
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		log.Printf("[WARN] scanner stop timed out with a scan in flight")
	}
}

// ScanOnce runs a single sweep immediately. Returns nil without scanning if
// another sweep is already in flight.
func (s *Scanner) ScanOnce(ctx context.Context) *model.ScanResult {
	return s.runScan(ctx)
}

func (s *Scanner) runScan(ctx context.Context) *model.ScanResult {
	s.mu.Lock()
	if s.scanning {
		s.mu.Unlock()
		log.Printf("[WARN] scan already in flight, skipping")
		return nil
	}
	s.scanning = true
	universe := append([]string(nil), s.universe...)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.scanning = false
		s.mu.Unlock()
	}()

	start := time.Now()
	opportunities := make([]model.Opportunity, 0)
	failures := 0

	batchSize := s.opts.MaxConcurrent
	if batchSize <= 0 || batchSize > len(universe) {
		batchSize = len(universe)
	}

	for i := 0; i < len(universe); i += batchSize {
		end := i + batchSize
		if end > len(universe) {
			end = len(universe)
		}
		batch := universe[i:end]

		results := make(chan *model.Opportunity, len(batch))
		errs := make(chan error, len(batch))
		var wg sync.WaitGroup

		for _, symbol := range batch {
			wg.Add(1)
			go func(sym string) {
				defer wg.Done()
				opp, err := s.scanSymbol(ctx, sym)
				if err != nil {
					log.Printf("[WARN] scan %s: %v", sym, err)
					errs <- err
					return
				}
				if opp != nil {
					results <- opp
				}
			}(symbol)
		}
		wg.Wait()
		close(results)
		close(errs)

		for opp := range results {
			opportunities = append(opportunities, *opp)
		}
		for range errs {
			failures++
		}

		if ctx.Err() != nil {
			break
		}
	}

	result := &model.ScanResult{
		Timestamp:     start,
		TotalScanned:  len(universe),
		Opportunities: opportunities,
		ScanDuration:  time.Since(start),
		Sentiment:     ComputeSentiment(opportunities),
	}

	s.mu.Lock()
	s.latest = result
	s.metrics.ScansCompleted++
	s.metrics.SymbolsScanned += int64(len(universe))
	s.metrics.SymbolFailures += int64(failures)
	s.metrics.OpportunitiesFound += int64(len(opportunities))
	s.metrics.LastScanDuration = result.ScanDuration
	callback := s.onResult
	s.mu.Unlock()

	log.Printf("[INFO] scan complete: %d symbols, %d opportunities, %d failures, %s sentiment, took %s",
		len(universe), len(opportunities), failures, result.Sentiment, result.ScanDuration.Round(time.Millisecond))

	if callback != nil {
		callback(result)
	}
	return result
}

// scanSymbol fetches data for one symbol and returns its best opportunity
// across all strategies, or nil if none clears the confidence floor.
func (s *Scanner) scanSymbol(ctx context.Context, symbol string) (*model.Opportunity, error) {
	bars, err := s.provider.GetOHLCV(ctx, symbol, barInterval, barLimit)
	if err != nil {
		return nil, err
	}
	ltp, err := s.provider.GetLTP(ctx, symbol)
	if err != nil {
		return nil, err
	}

	data := &model.SymbolData{
		Symbol:    symbol,
		LastPrice: ltp,
		Bars:      bars,
		Volume:    int64(bars[len(bars)-1].Volume),
		FetchedAt: time.Now(),
	}

	var best *model.Opportunity
	for _, info := range s.engine.Strategies() {
		opp, err := s.engine.Evaluate(ctx, info.ID, data)
		if err != nil {
			log.Printf("[WARN] strategy %s on %s: %v", info.ID, symbol, err)
			continue
		}
		if opp == nil || opp.Confidence < s.opts.MinConfidence {
			continue
		}
		if best == nil || opp.Confidence > best.Confidence {
			best = opp
		}
	}
	return best, nil
}

// ComputeSentiment derives the aggregate market read from a scan's
// opportunities. Buy signals above 60% read bullish, below 40% bearish.
func ComputeSentiment(opportunities []model.Opportunity) model.Sentiment {
	if len(opportunities) == 0 {
		return model.SentimentNeutral
	}
	buys := 0
	for _, opp := range opportunities {
		if opp.Signal == model.SignalBuy {
			buys++
		}
	}
	ratio := float64(buys) / float64(len(opportunities))
	switch {
	case ratio > bullishThreshold:
		return model.SentimentBullish
	case ratio < bearishThreshold:
		return model.SentimentBearish
	default:
		return model.SentimentNeutral
	}
}
