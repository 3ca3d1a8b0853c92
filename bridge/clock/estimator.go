package clock

import (
	"github.com/lni/dragonboat/v4/logger"
	"time"
)

var Logger = logger.GetLogger("bridge/clock")

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	// DriftAllowance is how much a stored estimate may grow per elapsed ms before
	// a larger sample is still accepted
	DriftAllowance = 0.0002

	// ResetThreshold is the implied minimum round trip (ms) below which both estimates
	// are considered inconsistent and discarded
	ResetThreshold = -2.0

	// SteadySamples is the number of accepted samples after which the estimator is steady
	SteadySamples = 30

	FastProbeInterval = 150 * time.Millisecond
	SlowProbeInterval = 300 * time.Millisecond
)

// --------------------------------------------------------------------------
// States
// --------------------------------------------------------------------------

// State is the convergence state of the estimator
type State uint8

const (
	Uninitialized State = iota
	Converging
	Steady
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Converging:
		return "converging"
	case Steady:
		return "steady"
	default:
		return "unknown"
	}
}

// --------------------------------------------------------------------------
// Estimator
// --------------------------------------------------------------------------

// Estimator keeps a drift corrected estimate of remote time minus local time. It is
// fed with ping/pong samples, all values are milliseconds as float64.
//
// For each sample the one way delays are outbound = remote - sent and inbound = now - remote.
// Both directions keep the smallest delay seen, but a stored estimate slowly ages so a
// drifting clock is eventually followed. The offset is half the difference of the two.
//
// The estimator is not safe for concurrent use, it is owned by the tick goroutine.
type Estimator struct {
	outbound, inbound         float64
	lastOutbound, lastInbound float64
	hasOutbound, hasInbound   bool

	offset       float64
	hasOffset    bool
	minRoundTrip float64

	samples int
	resets  int
	state   State
}

// NewEstimator creates an uninitialized estimator
func NewEstimator() *Estimator {
	return &Estimator{}
}

// AddSample feeds one ping/pong sample into the estimator. sent and now are local
// times, remote is the raw remote time of the pong. It returns false if the sample
// revealed an inconsistency and the estimator was reset.
func (e *Estimator) AddSample(sent, remote, now float64) bool {
	outbound := remote - sent
	inbound := now - remote

	replaced := false
	if !e.hasOutbound || outbound < e.outbound+DriftAllowance*(now-e.lastOutbound) {
		e.outbound, e.lastOutbound, e.hasOutbound = outbound, now, true
		replaced = true
	}
	if !e.hasInbound || inbound < e.inbound+DriftAllowance*(now-e.lastInbound) {
		e.inbound, e.lastInbound, e.hasInbound = inbound, now, true
		replaced = true
	}

	minRoundTrip := (now - sent) - (outbound - e.outbound) - (inbound - e.inbound)
	if minRoundTrip < ResetThreshold {
		Logger.Warningf("implied round trip %.3fms below %.1fms (estimates out %.3f in %.3f), resetting clock estimate",
			minRoundTrip, ResetThreshold, e.outbound, e.inbound)
		e.Reset()
		e.resets++
		return false
	}
	e.minRoundTrip = minRoundTrip

	if replaced {
		e.offset = (e.outbound - e.inbound) / 2
		e.hasOffset = true
	}

	e.samples++
	switch {
	case e.samples >= SteadySamples:
		if e.state != Steady {
			Logger.Infof("clock estimate steady after %d samples, offset %.3fms", e.samples, e.offset)
		}
		e.state = Steady
	default:
		e.state = Converging
	}
	return true
}

// Reset discards both estimates and returns to Uninitialized
func (e *Estimator) Reset() {
	resets := e.resets
	*e = Estimator{resets: resets}
}

// CurrentOffset returns remote time minus local time. ok is false until the first
// accepted sample.
func (e *Estimator) CurrentOffset() (offset time.Duration, ok bool) {
	if !e.hasOffset {
		return 0, false
	}
	return time.Duration(e.offset * float64(time.Millisecond)), true
}

// OffsetMs returns the current offset in ms (0 if there is none yet)
func (e *Estimator) OffsetMs() float64 {
	return e.offset
}

// MinRoundTrip returns the implied minimal round trip of the last accepted sample in ms
func (e *Estimator) MinRoundTrip() float64 {
	return e.minRoundTrip
}

// State returns the convergence state
func (e *Estimator) State() State {
	return e.state
}

// Samples returns the number of accepted samples since the last reset
func (e *Estimator) Samples() int {
	return e.samples
}

// Resets returns how often the estimator was reset
func (e *Estimator) Resets() int {
	return e.resets
}

// ProbeInterval returns the delay until the next probe should be sent
func (e *Estimator) ProbeInterval() time.Duration {
	if e.samples < SteadySamples {
		return FastProbeInterval
	}
	return SlowProbeInterval
}

// ToMs converts a time into ms since epoch as float64
func ToMs(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Millisecond)
}
