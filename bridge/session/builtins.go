package session

import (
	"fmt"
	"github.com/ValentinKolb/dBridge/bridge/clock"
	"github.com/ValentinKolb/dBridge/bridge/codec"
	"github.com/ValentinKolb/dBridge/bridge/common"
	"github.com/ValentinKolb/dBridge/bridge/inbound"
	"github.com/ValentinKolb/dBridge/bridge/outbound"
	"github.com/ValentinKolb/dBridge/lib/fifo"
	"github.com/rcrowley/go-metrics"
	"strings"
	"sync"
	"time"
)

// --------------------------------------------------------------------------
// Builtin Session Commands
// --------------------------------------------------------------------------

// builtins returns the fallback handlers for the session commands. Object commands are
// registered as regular handlers by the role constructors.
func (s *Session) builtins() map[common.Command]inbound.Handler {
	return map[common.Command]inbound.Handler{
		common.CmdReadyForSession:     s.handleReadyForSession,
		common.CmdSessionRunning:      s.handleSessionRunning,
		common.CmdSessionDisconnected: s.handleSessionDisconnected,
		common.CmdJoinProgress:        s.handleJoinProgress,
		common.CmdCroquetPing:         s.handleCroquetPing,
		common.CmdUnityPong:           s.handleUnityPong,
		common.CmdClockPing:           s.handleClockPing,
		common.CmdClockPong:           s.handleClockPong,
		common.CmdSetLogForwarding:    s.handleSetLogForwarding,
		common.CmdLog:                 s.handleLog,
		common.CmdLogFromJS:           s.handleLogFromJS,
		common.CmdMeasure:             s.handleMeasure,
	}
}

func expectArgs(msg inbound.Message, n int) error {
	if len(msg.Args) < n {
		return fmt.Errorf("%w: %s expects %d arguments, got %d", common.ErrMalformedFrame, msg.Command, n, len(msg.Args))
	}
	return nil
}

func (s *Session) handleReadyForSession(msg inbound.Message) error {
	h, err := common.ParseHandshake(msg.Args)
	if err != nil {
		return err
	}
	Logger.Infof("handshake: app %q session %q, manifests %v", h.AppID, h.SessionName, h.AssetManifests)
	if s.hooks.OnHandshake != nil {
		s.hooks.OnHandshake(h)
	}
	return nil
}

func (s *Session) handleSessionRunning(msg inbound.Message) error {
	viewID := ""
	if len(msg.Args) > 0 {
		viewID = msg.Args[0]
	}
	Logger.Infof("simulation session running (view %s)", viewID)
	if s.hooks.OnSessionRunning != nil {
		s.hooks.OnSessionRunning(viewID)
	}
	return nil
}

func (s *Session) handleSessionDisconnected(inbound.Message) error {
	Logger.Warningf("simulation session disconnected")
	if s.hooks.OnSessionDisconnected != nil {
		s.hooks.OnSessionDisconnected()
	}
	return nil
}

func (s *Session) handleJoinProgress(msg inbound.Message) error {
	if err := expectArgs(msg, 1); err != nil {
		return err
	}
	ratio, err := codec.ParseFloat(msg.Args[0])
	if err != nil {
		return err
	}
	if s.hooks.OnJoinProgress != nil {
		s.hooks.OnJoinProgress(ratio)
	}
	return nil
}

// --------------------------------------------------------------------------
// Ping and Clock Sync
// --------------------------------------------------------------------------

// The answers bypass the outbound queue so their latency is not inflated by the cadence.

func (s *Session) handleCroquetPing(msg inbound.Message) error {
	if err := expectArgs(msg, 1); err != nil {
		return err
	}
	return s.sendDirect(common.CmdUnityPong, msg.Args[0])
}

func (s *Session) handleUnityPong(msg inbound.Message) error {
	if err := expectArgs(msg, 1); err != nil {
		return err
	}
	sent, err := codec.ParseFloat(msg.Args[0])
	if err != nil {
		return err
	}
	rtt := time.Duration((clock.ToMs(time.Now()) - sent) * float64(time.Millisecond))
	metrics.GetOrRegisterTimer("rtt", s.timers).Update(rtt)
	Logger.Debugf("ping round trip %s", rtt)
	return nil
}

func (s *Session) handleClockPing(msg inbound.Message) error {
	if err := expectArgs(msg, 1); err != nil {
		return err
	}
	return s.sendDirect(common.CmdClockPong, msg.Args[0], codec.FormatFloat(clock.ToMs(time.Now())))
}

func (s *Session) handleClockPong(msg inbound.Message) error {
	if err := expectArgs(msg, 2); err != nil {
		return err
	}
	if s.clock == nil {
		return nil
	}
	sent, err := codec.ParseFloat(msg.Args[0])
	if err != nil {
		return err
	}
	remote, err := codec.ParseFloat(msg.Args[1])
	if err != nil {
		return err
	}
	s.clock.AddSample(sent, remote, clock.ToMs(time.Now()))
	return nil
}

// Ping sends a croquetPing carrying the local time, the peer echoes it with unityPong
func (s *Session) Ping() error {
	return s.sendDirect(common.CmdCroquetPing, codec.FormatFloat(clock.ToMs(time.Now())))
}

// probeClock sends a clockPing when the probe interval of the estimator elapsed
func (s *Session) probeClock(now time.Time) error {
	if s.clock == nil || !s.config.ClockSync || s.State() != Open {
		return nil
	}
	if !s.lastProbe.IsZero() && now.Sub(s.lastProbe) < s.clock.ProbeInterval() {
		return nil
	}
	s.lastProbe = now
	return s.sendDirect(common.CmdClockPing, codec.FormatFloat(clock.ToMs(time.Now())))
}

// sendDirect writes a single text frame, bypassing the outbound queue
func (s *Session) sendDirect(cmd common.Command, args ...string) error {
	if s.State() != Open {
		return fmt.Errorf("%w: session is %s", common.ErrConnectionLost, s.State())
	}
	return s.write(false, codec.EncodeText(cmd, args...))
}

// --------------------------------------------------------------------------
// Logging
// --------------------------------------------------------------------------

// forwardedLine is a local log line waiting to be sent as logFromJS
type forwardedLine struct {
	level   common.LogLevelName
	message string
}

// logForwarding forwards local warn and error lines to the peer as logFromJS. The log
// hook only pushes into lines, the tick moves them into the outbound queue.
type logForwarding struct {
	mu     sync.Mutex
	levels map[common.LogLevelName]bool
	remove func()
	lines  *fifo.LockFreeMPSC[forwardedLine]
}

func (f *logForwarding) enabled(level common.LogLevelName) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.levels[level]
}

// set replaces the forwarded levels and installs the log hook on first use
func (f *logForwarding) set(levels map[common.LogLevelName]bool) {
	f.mu.Lock()
	f.levels = levels
	install := f.remove == nil && len(levels) > 0
	f.mu.Unlock()
	if !install {
		return
	}

	// the hook takes f.mu itself, it is installed without holding it
	remove := common.AddLogHook(func(level common.LogLevelName, pkg, message string) {
		// lines written on behalf of the peer are never sent back
		if pkg == "bridge/peer" || !f.enabled(level) {
			return
		}
		f.lines.Push(&forwardedLine{level: level, message: pkg + ": " + message})
	})

	f.mu.Lock()
	duplicate := f.remove != nil
	if !duplicate {
		f.remove = remove
	}
	f.mu.Unlock()
	if duplicate {
		remove()
	}
}

// drain moves the collected lines into the outbound queue. Only the tick goroutine calls it.
func (f *logForwarding) drain(q *outbound.Queue) {
	n := 0
	for {
		line, ok := f.lines.Pop()
		if !ok {
			break
		}
		q.EnqueueGlobal(common.CmdLogFromJS, codec.String(string(line.level)), codec.String(line.message))
		n++
	}
	if n > 0 {
		q.ExpediteMessages()
	}
}

func (f *logForwarding) stop() {
	f.mu.Lock()
	remove := f.remove
	f.remove = nil
	f.levels = nil
	f.mu.Unlock()
	if remove != nil {
		remove()
	}
	f.lines.Close()
}

// parseLogLevels parses the comma separated list of setJSLogForwarding
func parseLogLevels(arg string) map[common.LogLevelName]bool {
	levels := map[common.LogLevelName]bool{}
	for _, l := range strings.Split(arg, ",") {
		switch strings.ToLower(strings.TrimSpace(l)) {
		case "warn", "warning":
			levels[common.LogLevelWarn] = true
		case "error":
			levels[common.LogLevelError] = true
		case "":
		default:
			Logger.Debugf("log level %q cannot be forwarded", l)
		}
	}
	return levels
}

func (s *Session) handleSetLogForwarding(msg inbound.Message) error {
	arg := ""
	if len(msg.Args) > 0 {
		arg = msg.Args[0]
	}
	s.forward.set(parseLogLevels(arg))
	Logger.Infof("forwarding log levels to peer: %q", arg)
	return nil
}

// SetLogForwarding asks the peer to forward its log lines of the given levels ("warn,error")
func (s *Session) SetLogForwarding(levels ...string) {
	s.queue.EnqueueGlobalWithOverride("logForwarding", common.CmdSetLogForwarding, codec.String(strings.Join(levels, ",")))
	s.queue.ExpediteMessages()
}

func (s *Session) handleLog(msg inbound.Message) error {
	peerLogger.Infof("%s", strings.Join(msg.Args, " "))
	return nil
}

func (s *Session) handleLogFromJS(msg inbound.Message) error {
	if err := expectArgs(msg, 2); err != nil {
		return err
	}
	text := strings.Join(msg.Args[1:], " ")
	switch strings.ToLower(msg.Args[0]) {
	case "error":
		peerLogger.Errorf("%s", text)
	case "warn", "warning":
		peerLogger.Warningf("%s", text)
	case "debug":
		peerLogger.Debugf("%s", text)
	default:
		peerLogger.Infof("%s", text)
	}
	return nil
}

// Log sends a line to the peer log
func (s *Session) Log(text string) {
	s.queue.EnqueueGlobal(common.CmdLog, codec.String(text))
}

// --------------------------------------------------------------------------
// Measurements
// --------------------------------------------------------------------------

// handleMeasure records a named duration: measure name startMs durationMs [annotation]
func (s *Session) handleMeasure(msg inbound.Message) error {
	if err := expectArgs(msg, 3); err != nil {
		return err
	}
	d, err := codec.ParseFloat(msg.Args[2])
	if err != nil {
		return err
	}
	metrics.GetOrRegisterTimer("measure."+msg.Args[0], s.timers).Update(time.Duration(d * float64(time.Millisecond)))
	return nil
}

// Measure sends a named duration to the peer
func (s *Session) Measure(name string, start time.Time, d time.Duration, annotation string) {
	args := []codec.Value{
		codec.String(name),
		codec.Float(clock.ToMs(start)),
		codec.Float(float64(d) / float64(time.Millisecond)),
	}
	if annotation != "" {
		args = append(args, codec.String(annotation))
	}
	s.queue.EnqueueGlobal(common.CmdMeasure, args...)
}
