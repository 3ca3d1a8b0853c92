package session

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dBridge/bridge/clock"
	"github.com/ValentinKolb/dBridge/bridge/common"
	"github.com/ValentinKolb/dBridge/bridge/inbound"
	"github.com/ValentinKolb/dBridge/bridge/outbound"
	"github.com/ValentinKolb/dBridge/bridge/transport"
	"github.com/ValentinKolb/dBridge/lib/fifo"
	"github.com/ValentinKolb/dBridge/lib/scene"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/rcrowley/go-metrics"
	"github.com/segmentio/ksuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"sync"
	"sync/atomic"
	"time"
)

var Logger = logger.GetLogger("bridge/session")

// peerLogger writes log lines forwarded by the peer
var peerLogger = logger.GetLogger("bridge/peer")

// --------------------------------------------------------------------------
// States and Hooks
// --------------------------------------------------------------------------

// State is the connection state of a session
type State int32

const (
	Disconnected State = iota
	Connecting
	Open
	Closed
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Hooks are optional callbacks. All hooks except OnClosed run on the tick goroutine.
type Hooks struct {
	// OnHandshake is called on the simulation side when the renderer sent readyForSession
	OnHandshake func(h common.Handshake)
	// OnSessionRunning is called on the renderer side when the simulation session runs
	OnSessionRunning func(viewID string)
	// OnSessionDisconnected is called on the renderer side when the simulation session was lost
	OnSessionDisconnected func()
	// OnJoinProgress reports the loading progress of the simulation session (0..1)
	OnJoinProgress func(ratio float64)
	// OnPublish is called on the renderer side for every croquetPub
	OnPublish func(scope, event string, args []string)
	// OnTick is called once per tick after the inbound messages were handled
	OnTick func(now time.Time)
	// OnClosed tears down whatever depends on the session. It is called exactly once.
	OnClosed func(err error)
}

// --------------------------------------------------------------------------
// Session
// --------------------------------------------------------------------------

// Session owns one bridge connection and the components working on it: the inbound FIFO
// and dispatcher, the outbound queue and (simulation side) the clock estimator or
// (renderer side) the scene registry.
//
// Threads: one reader goroutine pushes into the inbound FIFO, everything else happens
// on the goroutine calling Tick (or Run). Writes to the connection are serialized by the transport.
type Session struct {
	id     string
	config *common.Config
	role   common.Role
	hooks  Hooks

	state atomic.Int32
	conn  transport.IBridgeConn

	inbox      *fifo.LockFreeMPSC[inbound.Inbound]
	dispatcher *inbound.Dispatcher
	queue      *outbound.Queue
	metrics    *common.BridgeMetrics
	timers     metrics.Registry
	tracer     trace.Tracer

	// simulation side
	clock     *clock.Estimator
	lastProbe time.Time
	objects   *Objects
	forward   logForwarding

	// renderer side
	catalog  *scene.Catalog
	registry *scene.Registry

	closeOnce sync.Once
	closeErr  error
}

// newSession creates the role independent part of a session
func newSession(config *common.Config, hooks Hooks) *Session {
	s := &Session{
		id:      ksuid.New().String(),
		config:  config,
		role:    config.Role,
		hooks:   hooks,
		inbox:   fifo.NewLockFreeMPSC[inbound.Inbound](),
		queue:   outbound.NewQueue(config.MessageInterval, config.GeometryInterval),
		metrics: common.NewBridgeMetrics(config.Role),
		timers:  metrics.NewRegistry(),
		tracer:  otel.Tracer("github.com/ValentinKolb/dBridge/bridge/session"),
	}
	s.forward.lines = fifo.NewLockFreeMPSC[forwardedLine]()
	s.dispatcher = inbound.NewDispatcher(s.builtins(), config.StatsInterval, s.metrics)
	return s
}

// New creates the session for the role of config. catalog and engine are only used by
// the renderer role.
func New(config *common.Config, hooks Hooks, catalog *scene.Catalog, engine scene.Engine) (*Session, error) {
	switch config.Role {
	case common.RoleSimulation:
		return NewSimulation(config, hooks), nil
	case common.RoleRenderer:
		if engine == nil {
			return nil, errors.New("renderer session needs an engine")
		}
		return NewRenderer(config, catalog, engine, hooks), nil
	default:
		return nil, fmt.Errorf("unknown role %s", config.Role)
	}
}

// ID returns the unique id of the session (used in logs)
func (s *Session) ID() string { return s.id }

// Role returns the role of the session
func (s *Session) Role() common.Role { return s.role }

// State returns the connection state
func (s *Session) State() State { return State(s.state.Load()) }

// Metrics returns the cumulative counters of the session
func (s *Session) Metrics() *common.BridgeMetrics { return s.metrics }

// Timers returns the registry with the round trip and measure timers
func (s *Session) Timers() metrics.Registry { return s.timers }

// RegisterHandler registers a handler for a command, it takes precedence over builtins
func (s *Session) RegisterHandler(cmd common.Command, h inbound.Handler) {
	s.dispatcher.RegisterHandler(cmd, h)
}

// --------------------------------------------------------------------------
// Connection Lifecycle
// --------------------------------------------------------------------------

// Connect dials the peer with the client transport and attaches the connection
func (s *Session) Connect(ctx context.Context, client transport.IBridgeClientTransport) error {
	if !s.state.CompareAndSwap(int32(Disconnected), int32(Connecting)) {
		return fmt.Errorf("cannot connect session in state %s", s.State())
	}
	conn, err := client.Connect(ctx, s.config)
	if err != nil {
		s.state.Store(int32(Disconnected))
		return err
	}
	return s.attach(conn)
}

// Serve listens with the server transport and runs the session on the first connection.
// It returns when that connection ended, later peers are not served (no reconnect).
// The returned error wraps ErrConnectionLost unless listening failed.
func (s *Session) Serve(ctx context.Context, server transport.IBridgeServerTransport) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// the transport does not wait for its handlers, done carries the result of the served peer
	done := make(chan error, 1)
	server.RegisterMetrics(s.metrics.WritePrometheus)
	server.RegisterHandler(func(conn transport.IBridgeConn) {
		if !s.state.CompareAndSwap(int32(Disconnected), int32(Connecting)) {
			Logger.Warningf("session %s already used, rejecting peer %s", s.id, conn.RemoteAddr())
			return
		}
		defer cancel()
		if err := s.attach(conn); err != nil {
			s.teardown(fmt.Errorf("%w: %v", common.ErrConnectionLost, err))
			done <- s.closeErr
			return
		}
		done <- s.Run(ctx)
	})

	listenErr := server.Listen(ctx, s.config)

	// no peer was served and none can be anymore
	if s.state.CompareAndSwap(int32(Disconnected), int32(Closed)) {
		if listenErr != nil {
			s.teardown(listenErr)
			return listenErr
		}
		s.teardown(fmt.Errorf("%w: stopped before a peer connected", common.ErrConnectionLost))
		return s.closeErr
	}
	cancel()
	return <-done
}

// Attach uses an already established connection
func (s *Session) Attach(conn transport.IBridgeConn) error {
	if !s.state.CompareAndSwap(int32(Disconnected), int32(Connecting)) {
		return fmt.Errorf("cannot attach session in state %s", s.State())
	}
	return s.attach(conn)
}

func (s *Session) attach(conn transport.IBridgeConn) error {
	s.conn = conn
	s.state.Store(int32(Open))
	go s.readLoop(conn)

	Logger.Infof("session %s (%s) open, peer %s", s.id, s.role, conn.RemoteAddr())

	if s.role == common.RoleRenderer {
		var manifests []string
		if s.catalog != nil {
			manifests = s.catalog.Names()
		}
		if err := s.sendDirect(common.CmdReadyForSession, s.config.Handshake(manifests).Args()...); err != nil {
			return fmt.Errorf("failed to send handshake: %w", err)
		}
	}
	return nil
}

// readLoop pushes every received message into the inbound FIFO. The final read error
// is pushed as end of stream marker.
func (s *Session) readLoop(conn transport.IBridgeConn) {
	for {
		binary, data, err := conn.ReadMessage()
		if err != nil {
			s.inbox.Push(&inbound.Inbound{Err: err, Received: time.Now()})
			return
		}
		if !s.inbox.Push(&inbound.Inbound{Data: data, Binary: binary, Received: time.Now()}) {
			return
		}
	}
}

// Close closes the connection. The teardown happens on the tick goroutine once the
// reader reported the end of the stream. A session that never connected is closed directly.
func (s *Session) Close() {
	if s.state.CompareAndSwap(int32(Disconnected), int32(Closed)) {
		s.teardown(fmt.Errorf("%w: closed before connecting", common.ErrConnectionLost))
		return
	}
	if s.conn != nil {
		_ = s.conn.Close()
	}
}

// teardown runs exactly once and invokes the OnClosed hook
func (s *Session) teardown(err error) {
	s.closeOnce.Do(func() {
		s.state.Store(int32(Closed))
		s.closeErr = err
		s.inbox.Close()
		s.forward.stop()
		if s.conn != nil {
			_ = s.conn.Close()
		}
		if s.registry != nil {
			s.registry.Clear()
		}
		Logger.Infof("session %s closed: %v", s.id, err)
		if s.hooks.OnClosed != nil {
			s.hooks.OnClosed(err)
		}
	})
}

// Err returns the error the session was closed with
func (s *Session) Err() error {
	return s.closeErr
}

// --------------------------------------------------------------------------
// Tick Loop
// --------------------------------------------------------------------------

// Run ticks the session until the connection is lost or ctx is done. It always returns an
// error wrapping ErrConnectionLost.
func (s *Session) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.teardown(fmt.Errorf("%w: %v", common.ErrConnectionLost, ctx.Err()))
			return s.closeErr
		case now := <-ticker.C:
			if err := s.Tick(now); err != nil {
				return err
			}
		}
	}
}

// Tick drains the inbound FIFO, runs the tick hook, queues forwarded log lines, sends
// clock probes and flushes the outbound queue when a cadence is due. It returns an error wrapping ErrConnectionLost
// once the session is closed.
func (s *Session) Tick(now time.Time) error {
	switch s.State() {
	case Closed:
		return s.closeErr
	case Disconnected, Connecting:
		return nil
	}

	if err := s.drain(); err != nil {
		s.teardown(err)
		return err
	}
	s.dispatcher.ReportIfDue(now)

	if s.hooks.OnTick != nil {
		s.hooks.OnTick(now)
	}
	s.forward.drain(s.queue)

	if err := s.probeClock(now); err != nil {
		return s.fail(err)
	}
	if err := s.flush(now); err != nil {
		return s.fail(err)
	}
	return nil
}

// fail tears the session down after a write error
func (s *Session) fail(err error) error {
	err = fmt.Errorf("%w: %v", common.ErrConnectionLost, err)
	s.teardown(err)
	return err
}

func (s *Session) drain() error {
	_, span := s.tracer.Start(context.Background(), "bridge.dispatch")
	defer span.End()

	n, err := s.dispatcher.Drain(s.inbox)
	span.SetAttributes(attribute.Int("bridge.messages", n))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

// flush sends the due cadences of the outbound queue. Within one tick the text bundle
// is written before the geometry frame, so a new object exists before its first update.
func (s *Session) flush(now time.Time) error {
	if s.State() != Open {
		return nil
	}
	messagesDue, geometryDue := s.queue.Due(now)
	if !messagesDue && !geometryDue {
		return nil
	}

	_, span := s.tracer.Start(context.Background(), "bridge.flush",
		trace.WithAttributes(attribute.Bool("bridge.messages_due", messagesDue), attribute.Bool("bridge.geometry_due", geometryDue)))
	defer span.End()

	if messagesDue {
		if bundle := s.queue.Flush(now); bundle != nil {
			if err := s.write(false, bundle); err != nil {
				span.RecordError(err)
				return err
			}
			span.SetAttributes(attribute.Int("bridge.bundle_bytes", len(bundle)))
		}
	}
	if geometryDue {
		frame, err := s.queue.FlushGeometry(now)
		if err != nil {
			// an unencodable record is dropped with the whole frame, the connection stays usable
			Logger.Errorf("dropping geometry frame: %v", err)
			span.RecordError(err)
			return nil
		}
		if frame != nil {
			if err := s.write(true, frame); err != nil {
				span.RecordError(err)
				return err
			}
			s.metrics.GeometryFlushes.Inc()
			span.SetAttributes(attribute.Int("bridge.geometry_bytes", len(frame)))
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Writing
// --------------------------------------------------------------------------

// write sends one message and updates the counters
func (s *Session) write(binary bool, data []byte) error {
	if s.conn == nil {
		return errors.New("session has no connection")
	}
	var err error
	if binary {
		err = s.conn.WriteBinary(data)
	} else {
		err = s.conn.WriteText(data)
	}
	if err != nil {
		return err
	}
	s.metrics.FramesOut.Inc()
	s.metrics.BytesOut.Add(len(data))
	return nil
}
