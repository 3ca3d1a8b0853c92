package clock

import (
	"math"
	"math/rand"
	"testing"
	"time"
)

// feed sends one sample with the given true offset and one way delays
func feed(e *Estimator, local, offset, out, in float64) bool {
	sent := local
	remote := local + out + offset
	now := local + out + in
	return e.AddSample(sent, remote, now)
}

// TestEstimatorInitial tests that no offset exists before the first sample
func TestEstimatorInitial(t *testing.T) {
	e := NewEstimator()
	if _, ok := e.CurrentOffset(); ok {
		t.Errorf("Expected no offset before the first sample")
	}
	if e.State() != Uninitialized {
		t.Errorf("Expected Uninitialized, got %s", e.State())
	}
	if e.ProbeInterval() != FastProbeInterval {
		t.Errorf("Expected fast probes, got %s", e.ProbeInterval())
	}
}

// TestEstimatorSymmetric tests the exact offset for symmetric constant delays
func TestEstimatorSymmetric(t *testing.T) {
	e := NewEstimator()
	if !feed(e, 1000, 250, 3, 3) {
		t.Fatalf("Sample rejected")
	}
	offset, ok := e.CurrentOffset()
	if !ok {
		t.Fatalf("Expected an offset after the first sample")
	}
	if offset != 250*time.Millisecond {
		t.Errorf("Expected 250ms, got %s", offset)
	}
	if e.State() != Converging {
		t.Errorf("Expected Converging, got %s", e.State())
	}
}

// TestEstimatorJitter tests that the error stays within the jitter for every sample
func TestEstimatorJitter(t *testing.T) {
	tests := []struct {
		name   string
		offset float64
		base   float64
		jitter float64
	}{
		{"Ahead", 500, 2, 3},
		{"Behind", -1234.5, 0.5, 10},
		{"Zero", 0, 5, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng := rand.New(rand.NewSource(42))
			e := NewEstimator()
			local := 1_700_000_000_000.0
			for i := 0; i < 200; i++ {
				out := tt.base + rng.Float64()*tt.jitter
				in := tt.base + rng.Float64()*tt.jitter
				if !feed(e, local, tt.offset, out, in) {
					t.Fatalf("Sample %d rejected", i)
				}
				local += 150

				// every reported offset, not only the converged one, is within the jitter
				offset, ok := e.CurrentOffset()
				if !ok {
					t.Fatalf("Expected an offset after sample %d", i)
				}
				got := float64(offset) / float64(time.Millisecond)
				if math.Abs(got-tt.offset) > tt.jitter {
					t.Fatalf("Offset error too large after sample %d: got %.3f, want %.3f +- %.3f", i, got, tt.offset, tt.jitter)
				}
			}
			if e.State() != Steady {
				t.Errorf("Expected Steady, got %s", e.State())
			}
			if e.ProbeInterval() != SlowProbeInterval {
				t.Errorf("Expected slow probes, got %s", e.ProbeInterval())
			}
		})
	}
}

// TestEstimatorReset tests the reset on an implied round trip below -2ms
func TestEstimatorReset(t *testing.T) {
	e := NewEstimator()
	for i := 0; i < 5; i++ {
		feed(e, float64(i*150), 0, 1, 1)
	}

	// the remote clock jumps back by 100ms
	if e.AddSample(1000, 901, 1002) {
		t.Fatalf("Expected the sample to be rejected")
	}
	if e.State() != Uninitialized {
		t.Errorf("Expected Uninitialized, got %s", e.State())
	}
	if _, ok := e.CurrentOffset(); ok {
		t.Errorf("Expected no offset after reset")
	}
	if e.Samples() != 0 || e.Resets() != 1 {
		t.Errorf("Unexpected counters: samples=%d resets=%d", e.Samples(), e.Resets())
	}

	// the next consistent sample seeds the estimator again
	if !feed(e, 2000, -100, 1, 1) {
		t.Fatalf("Sample rejected after reset")
	}
	if offset, ok := e.CurrentOffset(); !ok || offset != -100*time.Millisecond {
		t.Errorf("Expected -100ms, got %s %v", offset, ok)
	}
}

// TestEstimatorDrift tests that a larger sample is accepted once the allowance grew
func TestEstimatorDrift(t *testing.T) {
	e := NewEstimator()
	feed(e, 0, 0, 5, 5)

	// 1ms larger right away: kept
	feed(e, 10, 0, 6, 5)
	if e.outbound != 5 {
		t.Errorf("Expected outbound estimate to stay at 5, got %.3f", e.outbound)
	}

	// 10s later the allowance is 2ms, a 1.5ms larger sample replaces the estimate
	feed(e, 10_000, 0, 6.5, 5)
	if e.outbound != 6.5 {
		t.Errorf("Expected outbound estimate 6.5, got %.3f", e.outbound)
	}
	if got := e.OffsetMs(); got != 0.75 {
		t.Errorf("Expected offset 0.75, got %.3f", got)
	}
}
