package inbound

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/dBridge/bridge/codec"
	"github.com/ValentinKolb/dBridge/bridge/common"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"time"
)

var Logger = logger.GetLogger("bridge/inbound")

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Inbound is one socket message as pushed by the reader goroutine. A message with
// Err set marks the end of the stream.
type Inbound struct {
	Data     []byte
	Binary   bool
	Err      error
	Received time.Time
}

// Source is the consumer side of the inbound FIFO
type Source interface {
	Pop() (*Inbound, bool)
}

// Message is one decoded command as passed to a handler
type Message struct {
	Command common.Command
	Args    []string

	// Binary frames only
	Binary  bool
	Payload []byte

	// SentAt is the sender timestamp (ms) of the enclosing bundle or binary frame, 0 if unknown
	SentAt int64
}

// Handler handles one command. A returned error is logged, it never stops the dispatch.
type Handler func(msg Message) error

// --------------------------------------------------------------------------
// Dispatcher
// --------------------------------------------------------------------------

// Dispatcher decodes inbound bundles and routes their commands by name. Registered handlers
// take precedence over the builtin session commands. Commands without either are logged
// as unrecognized.
type Dispatcher struct {
	handlers *xsync.MapOf[common.Command, Handler]
	builtins map[common.Command]Handler
	stats    *intervalCounters
	metrics  *common.BridgeMetrics
	now      func() time.Time
}

// NewDispatcher creates a dispatcher. builtins is the fallback table for session commands.
// metrics may be nil.
func NewDispatcher(builtins map[common.Command]Handler, statsInterval time.Duration, metrics *common.BridgeMetrics) *Dispatcher {
	if builtins == nil {
		builtins = map[common.Command]Handler{}
	}
	return &Dispatcher{
		handlers: xsync.NewMapOf[common.Command, Handler](),
		builtins: builtins,
		stats:    newIntervalCounters(statsInterval),
		metrics:  metrics,
		now:      time.Now,
	}
}

// RegisterHandler registers (or replaces) the handler for a command
func (d *Dispatcher) RegisterHandler(cmd common.Command, h Handler) {
	d.handlers.Store(cmd, h)
}

// UnregisterHandler removes the handler of a command, the builtin (if any) applies again
func (d *Dispatcher) UnregisterHandler(cmd common.Command) {
	d.handlers.Delete(cmd)
}

// Dispatch decodes one socket message and routes all contained commands in order.
// Malformed frames are dropped, the remaining frames of the bundle are still routed.
func (d *Dispatcher) Dispatch(raw []byte, isBinary bool) {
	if isBinary {
		d.dispatchBinary(raw)
		return
	}

	sentAt, hasTimestamp, frames, err := codec.DecodeBundle(raw)
	if err != nil {
		Logger.Warningf("bundle without valid timestamp, skipping delay accounting: %v", err)
		d.countMalformed()
	}
	if hasTimestamp {
		d.stats.bundles.Inc(1)
		if delay := d.now().UnixMilli() - sentAt; delay > 0 {
			d.stats.delayMicros.Inc(delay * 1000)
		}
		if d.metrics != nil {
			d.metrics.BundlesIn.Inc()
		}
	}

	for _, frame := range frames {
		cmd, args, err := codec.DecodeText(frame)
		if err != nil {
			Logger.Warningf("dropping frame %q: %v", truncate(frame), err)
			d.countMalformed()
			continue
		}
		d.route(Message{Command: cmd, Args: args, SentAt: sentAt})
	}
}

func (d *Dispatcher) dispatchBinary(raw []byte) {
	sentAt, cmd, payload, err := codec.DecodeBinaryFrame(raw)
	if err != nil {
		Logger.Warningf("dropping binary frame: %v", err)
		d.countMalformed()
		return
	}
	if d.metrics != nil {
		d.metrics.BinaryFramesIn.Inc()
	}
	d.route(Message{Command: cmd, Binary: true, Payload: payload, SentAt: sentAt})
}

func (d *Dispatcher) route(msg Message) {
	d.stats.messages.Inc(1)
	if d.metrics != nil {
		d.metrics.FramesIn.Inc()
	}

	h, ok := d.handlers.Load(msg.Command)
	if !ok {
		h, ok = d.builtins[msg.Command]
	}
	if !ok {
		Logger.Warningf("%v: %s (%d args)", common.ErrUnknownCommand, msg.Command, len(msg.Args))
		if d.metrics != nil {
			d.metrics.UnknownCommands.Inc()
		}
		return
	}

	if err := h(msg); err != nil {
		switch {
		case errors.Is(err, common.ErrStaleReference):
			Logger.Debugf("%s ignored: %v", msg.Command, err)
		case errors.Is(err, common.ErrMalformedFrame):
			Logger.Warningf("%s dropped: %v", msg.Command, err)
			d.countMalformed()
		default:
			Logger.Errorf("%s failed: %v", msg.Command, err)
		}
	}
}

func (d *Dispatcher) countMalformed() {
	if d.metrics != nil {
		d.metrics.MalformedFrames.Inc()
	}
}

// Drain pops and dispatches all queued inbound messages. The processing time of the
// whole loop is added to the interval statistics. If the end of stream marker is popped,
// Drain stops and returns an error wrapping ErrConnectionLost.
func (d *Dispatcher) Drain(src Source) (int, error) {
	start := time.Now()
	defer func() {
		d.stats.procMicros.Inc(time.Since(start).Microseconds())
	}()

	n := 0
	for {
		in, ok := src.Pop()
		if !ok {
			return n, nil
		}
		if in.Err != nil {
			return n, fmt.Errorf("%w: %v", common.ErrConnectionLost, in.Err)
		}
		d.Dispatch(in.Data, in.Binary)
		n++
	}
}

// ReportIfDue logs and returns the interval statistics if the stats interval elapsed,
// the counters are reset afterwards
func (d *Dispatcher) ReportIfDue(now time.Time) (IntervalStats, bool) {
	if d.stats.lastReport.IsZero() {
		d.stats.lastReport = now
		return IntervalStats{}, false
	}
	if now.Sub(d.stats.lastReport) < d.stats.interval {
		return IntervalStats{}, false
	}
	s := d.Report(now)
	return s, true
}

// Report returns the statistics of the running interval and resets them
func (d *Dispatcher) Report(now time.Time) IntervalStats {
	s := d.stats.snapshot()
	if s.Messages > 0 {
		avgDelay := time.Duration(0)
		if s.Bundles > 0 {
			avgDelay = s.BundleDelay / time.Duration(s.Bundles)
		}
		Logger.Debugf("inbound: %d messages, %d bundles, avg bundle delay %s, processing %s",
			s.Messages, s.Bundles, avgDelay, s.Processing)
	}
	d.stats.clear()
	d.stats.lastReport = now
	return s
}

func truncate(b []byte) string {
	const max = 64
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
