package inbound

import (
	"errors"
	"github.com/ValentinKolb/dBridge/bridge/codec"
	"github.com/ValentinKolb/dBridge/bridge/common"
	"github.com/ValentinKolb/dBridge/lib/fifo"
	"reflect"
	"testing"
	"time"
)

// recorder collects the messages routed to it
type recorder struct {
	got []string
}

func (r *recorder) handler(prefix string) Handler {
	return func(msg Message) error {
		s := prefix + ":" + string(msg.Command)
		for _, a := range msg.Args {
			s += " " + a
		}
		r.got = append(r.got, s)
		return nil
	}
}

func newTestDispatcher(r *recorder) (*Dispatcher, *common.BridgeMetrics) {
	m := common.NewBridgeMetrics(common.RoleRenderer)
	d := NewDispatcher(map[common.Command]Handler{
		common.CmdLog:          r.handler("builtin"),
		common.CmdJoinProgress: r.handler("builtin"),
	}, time.Second, m)
	return d, m
}

// TestDispatchRouting tests handler lookup, builtin fallback and unknown commands
func TestDispatchRouting(t *testing.T) {
	r := &recorder{}
	d, m := newTestDispatcher(r)
	d.RegisterHandler(common.CmdDestroyObject, r.handler("user"))
	d.RegisterHandler(common.CmdJoinProgress, r.handler("user"))

	bundle := codec.EncodeBundle(time.Now(),
		codec.EncodeText(common.CmdDestroyObject, "4"),
		codec.EncodeText(common.CmdLog, "hello"),
		codec.EncodeText("noSuchCommand", "x"),
		codec.EncodeText(common.CmdJoinProgress, "0.5"),
	)
	d.Dispatch(bundle, false)

	want := []string{
		"user:destroyObject 4",
		"builtin:log hello",
		"user:joinProgress 0.5",
	}
	if !reflect.DeepEqual(r.got, want) {
		t.Errorf("got %q, want %q", r.got, want)
	}
	if m.UnknownCommands.Get() != 1 {
		t.Errorf("Expected 1 unknown command, got %d", m.UnknownCommands.Get())
	}

	// after unregistering, the builtin applies again
	d.UnregisterHandler(common.CmdJoinProgress)
	r.got = nil
	d.Dispatch(codec.EncodeText(common.CmdJoinProgress, "1"), false)
	if !reflect.DeepEqual(r.got, []string{"builtin:joinProgress 1"}) {
		t.Errorf("Unexpected routing after unregister: %q", r.got)
	}
}

// TestDispatchMalformed tests that a broken frame does not stop the bundle
func TestDispatchMalformed(t *testing.T) {
	r := &recorder{}
	d, m := newTestDispatcher(r)

	raw := []byte("123\x02log\x01a\x02\x01orphan\x02log\x01b")
	d.Dispatch(raw, false)

	if !reflect.DeepEqual(r.got, []string{"builtin:log a", "builtin:log b"}) {
		t.Errorf("Unexpected routing: %q", r.got)
	}
	if m.MalformedFrames.Get() != 1 {
		t.Errorf("Expected 1 malformed frame, got %d", m.MalformedFrames.Get())
	}

	// a bad bundle timestamp only skips delay accounting
	r.got = nil
	d.Dispatch([]byte("x\x02log\x01c\x02log\x01d"), false)
	if len(r.got) != 2 {
		t.Errorf("Frames must still be routed, got %q", r.got)
	}
	if s := d.Report(time.Now()); s.Bundles != 1 {
		t.Errorf("Expected 1 timestamped bundle, got %d", s.Bundles)
	}
}

// TestDispatchHandlerErrors tests that handler errors never propagate
func TestDispatchHandlerErrors(t *testing.T) {
	d, _ := newTestDispatcher(&recorder{})
	calls := 0
	d.RegisterHandler(common.CmdSetParent, func(msg Message) error {
		calls++
		if calls == 1 {
			return common.ErrStaleReference
		}
		return errors.New("boom")
	})

	d.Dispatch(codec.EncodeText(common.CmdSetParent, "1", "2"), false)
	d.Dispatch(codec.EncodeText(common.CmdSetParent, "1", "2"), false)
	if calls != 2 {
		t.Errorf("Expected 2 calls, got %d", calls)
	}
}

// TestDispatchBinary tests routing of binary frames
func TestDispatchBinary(t *testing.T) {
	d, m := newTestDispatcher(&recorder{})

	var got Message
	d.RegisterHandler(common.CmdUpdateSpatial, func(msg Message) error {
		got = msg
		return nil
	})

	var g codec.Geometry
	g.SetScale(codec.Vec3{1, 2, 3}, true)
	frame, err := codec.EncodeSpatial(time.UnixMilli(77), []codec.SpatialRecord{{Handle: 9, Geometry: g}})
	if err != nil {
		t.Fatalf("Failed to encode: %v", err)
	}
	d.Dispatch(frame, true)

	if !got.Binary || got.SentAt != 77 || got.Command != common.CmdUpdateSpatial {
		t.Fatalf("Unexpected message %+v", got)
	}
	records, err := codec.DecodeSpatial(got.Payload)
	if err != nil || len(records) != 1 || records[0].Handle != 9 {
		t.Errorf("Unexpected records %+v (%v)", records, err)
	}

	d.Dispatch([]byte("garbage"), true)
	if m.MalformedFrames.Get() != 1 || m.BinaryFramesIn.Get() != 1 {
		t.Errorf("Unexpected counters: malformed=%d binary=%d", m.MalformedFrames.Get(), m.BinaryFramesIn.Get())
	}
}

// TestDrain tests draining the inbound FIFO and the end of stream marker
func TestDrain(t *testing.T) {
	r := &recorder{}
	d, _ := newTestDispatcher(r)
	q := fifo.NewLockFreeMPSC[Inbound]()

	push := func(in Inbound) {
		if !q.Push(&in) {
			t.Fatalf("Failed to push")
		}
	}
	push(Inbound{Data: codec.EncodeText(common.CmdLog, "1")})
	push(Inbound{Data: codec.EncodeBundle(time.Now(), codec.EncodeText(common.CmdLog, "2"), codec.EncodeText(common.CmdLog, "3"))})

	n, err := d.Drain(q)
	if err != nil || n != 2 {
		t.Fatalf("Expected 2 drained messages, got %d (%v)", n, err)
	}
	if len(r.got) != 3 {
		t.Errorf("Expected 3 routed commands, got %q", r.got)
	}

	// nothing queued
	if n, err := d.Drain(q); n != 0 || err != nil {
		t.Errorf("Expected empty drain, got %d (%v)", n, err)
	}

	push(Inbound{Data: codec.EncodeText(common.CmdLog, "4")})
	push(Inbound{Err: errors.New("eof")})
	n, err = d.Drain(q)
	if n != 1 || !errors.Is(err, common.ErrConnectionLost) {
		t.Errorf("Expected ErrConnectionLost after 1 message, got %d (%v)", n, err)
	}
}

// TestIntervalStats tests counting and resetting of the interval statistics
func TestIntervalStats(t *testing.T) {
	d, _ := newTestDispatcher(&recorder{})
	now := time.UnixMilli(1_000_000)
	d.now = func() time.Time { return now }

	if _, due := d.ReportIfDue(now); due {
		t.Errorf("First call only starts the interval")
	}

	d.Dispatch(codec.EncodeBundle(now.Add(-20*time.Millisecond), codec.EncodeText(common.CmdLog, "a"), codec.EncodeText(common.CmdLog, "b")), false)
	d.Dispatch(codec.EncodeBundle(now.Add(-10*time.Millisecond), codec.EncodeText(common.CmdLog, "c"), codec.EncodeText(common.CmdLog, "d")), false)
	d.Dispatch(codec.EncodeText(common.CmdLog, "e"), false)

	if _, due := d.ReportIfDue(now.Add(500 * time.Millisecond)); due {
		t.Errorf("Report must not be due before the interval")
	}

	s, due := d.ReportIfDue(now.Add(time.Second))
	if !due {
		t.Fatalf("Report must be due after the interval")
	}
	if s.Messages != 5 || s.Bundles != 2 || s.BundleDelay != 30*time.Millisecond {
		t.Errorf("Unexpected stats %+v", s)
	}

	if s := d.Report(now.Add(2 * time.Second)); s.Messages != 0 || s.Bundles != 0 || s.BundleDelay != 0 {
		t.Errorf("Stats must be reset after a report, got %+v", s)
	}
}
