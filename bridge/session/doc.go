// Package session runs one side of the bridge on top of a connection.
//
// A session reads from the socket on its own goroutine and pushes every message into a
// lock free FIFO. Everything else runs on the tick goroutine:
//
//	tick:
//	  drain the FIFO and dispatch the commands
//	  run Hooks.OnTick
//	  send a clock probe (simulation side, if enabled)
//	  flush the outbound queue if a cadence is due
//	    text bundle first, then the updateSpatial frame
//
// The simulation side is created with NewSimulation and owns the handles (see Objects).
// The renderer side is created with NewRenderer, sends the handshake and applies the
// object commands to a scene.Registry.
//
// A lost connection is final: the session tears down once, calls Hooks.OnClosed and
// every further Tick returns an error wrapping common.ErrConnectionLost.
package session
