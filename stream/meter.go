package stream

import (
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/rotblauer/catmode/common"
)

// TickMeter counts marks and logs their rate on an interval.
type TickMeter struct {
	name     string
	logger   *slog.Logger
	interval time.Duration
	started  time.Time
	ticker   *time.Ticker
	quit     chan struct{}
	once     sync.Once

	reg   metrics.Registry
	count metrics.Counter
	meter metrics.Meter

	mu    sync.Mutex
	attrs []any
}

// NewTickMeter starts a meter that logs every interval until Stop.
// A nil logger uses slog.Default.
func NewTickMeter(name string, interval time.Duration, logger *slog.Logger) *TickMeter {
	// Enable metrics package.
	// Won't work without this global setting.
	metrics.Enabled = true

	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	tm := &TickMeter{
		name:     name,
		logger:   logger,
		interval: interval,
		started:  time.Now(),
		quit:     make(chan struct{}),
		reg:      metrics.NewRegistry(),
		count:    metrics.NewCounter(),
		meter:    metrics.NewMeter(),
	}
	if err := tm.reg.Register(name+".count", tm.count); err != nil {
		panic(err)
	}
	if err := tm.reg.Register(name+".meter", tm.meter); err != nil {
		panic(err)
	}
	tm.ticker = time.NewTicker(interval)
	go tm.run()
	return tm
}

// Mark records n events.
func (tm *TickMeter) Mark(n int64) {
	tm.count.Inc(n)
	tm.meter.Mark(n)
}

// Annotate replaces the extra key/values logged with each tick.
func (tm *TickMeter) Annotate(attrs ...any) {
	tm.mu.Lock()
	tm.attrs = attrs
	tm.mu.Unlock()
}

func (tm *TickMeter) Count() int64 {
	return tm.count.Snapshot().Count()
}

// Rate1 is the one-minute moving average rate per second.
func (tm *TickMeter) Rate1() float64 {
	return tm.meter.Snapshot().Rate1()
}

func (tm *TickMeter) Registry() metrics.Registry {
	return tm.reg
}

func (tm *TickMeter) run() {
	for {
		select {
		case <-tm.quit:
			return
		case <-tm.ticker.C:
			tm.Log()
		}
	}
}

// Log writes the current count and rate.
func (tm *TickMeter) Log() {
	snap := tm.meter.Snapshot()
	tm.mu.Lock()
	args := append([]any{
		"n", humanize.Comma(snap.Count()),
		"rate", common.DecimalToFixed(snap.RateMean(), 1),
		"running", time.Since(tm.started).Round(time.Second),
	}, tm.attrs...)
	tm.mu.Unlock()
	tm.logger.Info(tm.name, args...)
}

// Stop halts logging. It is safe to call more than once.
func (tm *TickMeter) Stop() {
	if tm == nil {
		return
	}
	tm.once.Do(func() {
		tm.ticker.Stop()
		close(tm.quit)
		tm.meter.Stop()
	})
}
