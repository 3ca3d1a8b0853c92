package common

import (
	"fmt"
	"github.com/VictoriaMetrics/metrics"
	"io"
)

// --------------------------------------------------------------------------
// Cumulative Bridge Metrics
// --------------------------------------------------------------------------

// BridgeMetrics holds the cumulative counters of one session. The counters
// never reset, interval statistics live in the inbound dispatcher.
type BridgeMetrics struct {
	set *metrics.Set

	FramesIn        *metrics.Counter
	BundlesIn       *metrics.Counter
	BinaryFramesIn  *metrics.Counter
	MalformedFrames *metrics.Counter
	UnknownCommands *metrics.Counter
	FramesOut       *metrics.Counter
	BytesOut        *metrics.Counter
	GeometryFlushes *metrics.Counter
	ObjectsLive     *metrics.Counter
}

// NewBridgeMetrics creates a new metric set labelled with the given role
func NewBridgeMetrics(role Role) *BridgeMetrics {
	s := metrics.NewSet()
	name := func(metric string) string {
		return fmt.Sprintf(`dbridge_%s{role=%q}`, metric, role.String())
	}
	return &BridgeMetrics{
		set:             s,
		FramesIn:        s.NewCounter(name("frames_in_total")),
		BundlesIn:       s.NewCounter(name("bundles_in_total")),
		BinaryFramesIn:  s.NewCounter(name("binary_frames_in_total")),
		MalformedFrames: s.NewCounter(name("malformed_frames_total")),
		UnknownCommands: s.NewCounter(name("unknown_commands_total")),
		FramesOut:       s.NewCounter(name("frames_out_total")),
		BytesOut:        s.NewCounter(name("bytes_out_total")),
		GeometryFlushes: s.NewCounter(name("geometry_flushes_total")),
		ObjectsLive:     s.NewCounter(name("objects_live")),
	}
}

// WritePrometheus writes all counters in the Prometheus text format
func (m *BridgeMetrics) WritePrometheus(w io.Writer) {
	m.set.WritePrometheus(w)
}
