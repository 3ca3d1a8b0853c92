package inbound

import (
	"github.com/rcrowley/go-metrics"
	"time"
)

// --------------------------------------------------------------------------
// Interval Statistics
// --------------------------------------------------------------------------

// IntervalStats is one report of the inbound interval statistics
type IntervalStats struct {
	Messages    int64
	Bundles     int64
	BundleDelay time.Duration // cumulative delay of all timestamped bundles
	Processing  time.Duration // cumulative time spent draining the inbound queue
}

// intervalCounters holds the counters of the running interval. All counters are cleared
// after every report.
type intervalCounters struct {
	registry    metrics.Registry
	messages    metrics.Counter
	bundles     metrics.Counter
	delayMicros metrics.Counter
	procMicros  metrics.Counter

	interval   time.Duration
	lastReport time.Time
}

func newIntervalCounters(interval time.Duration) *intervalCounters {
	r := metrics.NewRegistry()
	return &intervalCounters{
		registry:    r,
		messages:    metrics.NewRegisteredCounter("inbound.messages", r),
		bundles:     metrics.NewRegisteredCounter("inbound.bundles", r),
		delayMicros: metrics.NewRegisteredCounter("inbound.bundle_delay_us", r),
		procMicros:  metrics.NewRegisteredCounter("inbound.processing_us", r),
		interval:    interval,
	}
}

func (c *intervalCounters) snapshot() IntervalStats {
	return IntervalStats{
		Messages:    c.messages.Count(),
		Bundles:     c.bundles.Count(),
		BundleDelay: time.Duration(c.delayMicros.Count()) * time.Microsecond,
		Processing:  time.Duration(c.procMicros.Count()) * time.Microsecond,
	}
}

func (c *intervalCounters) clear() {
	c.messages.Clear()
	c.bundles.Clear()
	c.delayMicros.Clear()
	c.procMicros.Clear()
}
