package session

import (
	"fmt"
	"github.com/ValentinKolb/dBridge/bridge/clock"
	"github.com/ValentinKolb/dBridge/bridge/codec"
	"github.com/ValentinKolb/dBridge/bridge/common"
	"github.com/ValentinKolb/dBridge/bridge/inbound"
	"time"
)

// NewSimulation creates the session of the simulation peer. It dials the renderer,
// allocates the object handles and keeps the clock estimate.
func NewSimulation(config *common.Config, hooks Hooks) *Session {
	s := newSession(config, hooks)
	s.clock = clock.NewEstimator()
	s.objects = &Objects{
		s:    s,
		next: 1,
		live: map[common.Handle]*liveObject{},
	}
	s.dispatcher.RegisterHandler(common.CmdObjectCreated, s.objects.handleObjectCreated)
	return s
}

// Clock returns the clock estimator (nil on the renderer side)
func (s *Session) Clock() *clock.Estimator { return s.clock }

// Objects returns the object API (nil on the renderer side)
func (s *Session) Objects() *Objects { return s.objects }

// SessionRunning tells the renderer that the simulation session is running
func (s *Session) SessionRunning(viewID string) {
	s.queue.EnqueueGlobal(common.CmdSessionRunning, codec.String(viewID))
	s.queue.ExpediteMessages()
}

// SessionDisconnected tells the renderer that the simulation session was lost
func (s *Session) SessionDisconnected() {
	s.queue.EnqueueGlobal(common.CmdSessionDisconnected)
	s.queue.ExpediteMessages()
}

// JoinProgress reports the loading progress (0..1) of the simulation session
func (s *Session) JoinProgress(ratio float64) {
	s.queue.EnqueueGlobalWithOverride("joinProgress", common.CmdJoinProgress, codec.Float(ratio))
}

// --------------------------------------------------------------------------
// Object API
// --------------------------------------------------------------------------

// parentKey is the override key of setParent and unparent, it cannot clash with a property name
const parentKey = "\x00parent"

type liveObject struct {
	spec      common.ObjectSpec
	createdAt time.Time
	confirmed bool
}

// Objects is the simulation side of the object lifecycle. All updates are queued and
// reach the renderer with the next flush of their cadence. Not safe for concurrent use,
// call it from the tick goroutine (e.g. in Hooks.OnTick).
type Objects struct {
	s    *Session
	next common.Handle
	live map[common.Handle]*liveObject
}

func (o *Objects) lookup(h common.Handle) (*liveObject, error) {
	obj, ok := o.live[h]
	if !ok {
		return nil, fmt.Errorf("%w: handle %d", common.ErrStaleReference, h)
	}
	return obj, nil
}

// Len returns the number of live objects
func (o *Objects) Len() int { return len(o.live) }

// Confirmed reports whether the renderer acknowledged the creation of h
func (o *Objects) Confirmed(h common.Handle) bool {
	obj, ok := o.live[h]
	return ok && obj.confirmed
}

// MakeObject assigns a handle to spec and queues its creation. Both cadences are
// expedited so the object appears with the next tick.
func (o *Objects) MakeObject(spec common.ObjectSpec) (common.Handle, error) {
	if spec.Type == "" {
		return 0, fmt.Errorf("object spec without type")
	}
	if len(spec.Properties)%2 != 0 {
		return 0, fmt.Errorf("odd number of property fields (%d)", len(spec.Properties))
	}
	if o.next > codec.MaxHandle {
		return 0, fmt.Errorf("handle space exhausted")
	}

	h := o.next
	spec.Handle = h
	arg, err := spec.Encode()
	if err != nil {
		return 0, err
	}
	o.next++

	o.live[h] = &liveObject{spec: spec, createdAt: time.Now()}
	o.s.queue.Enqueue(h, common.CmdMakeObject, codec.String(arg))
	o.s.queue.ExpediteMessages()
	o.s.queue.ExpediteGeometry()
	return h, nil
}

// DestroyObject drops everything still queued for h and queues its destruction
func (o *Objects) DestroyObject(h common.Handle) error {
	if _, err := o.lookup(h); err != nil {
		return err
	}
	delete(o.live, h)
	o.s.queue.Purge(h)
	o.s.queue.EnqueueGlobal(common.CmdDestroyObject, codec.String(h.String()))
	return nil
}

// SetProperty queues a property update. The property name is the override key, so
// updates of the same property within one flush interval replace each other.
func (o *Objects) SetProperty(h common.Handle, name string, value codec.Value) error {
	if _, err := o.lookup(h); err != nil {
		return err
	}
	o.s.queue.EnqueueWithOverride(h, name, common.CmdSetProperty,
		codec.String(h.String()), codec.String(name), codec.String(value.Format.String()), value)
	return nil
}

// SetParent queues a parent change of child
func (o *Objects) SetParent(child, parent common.Handle) error {
	if _, err := o.lookup(child); err != nil {
		return err
	}
	if _, err := o.lookup(parent); err != nil {
		return err
	}
	if child == parent {
		return fmt.Errorf("handle %d cannot be its own parent", child)
	}
	o.s.queue.EnqueueWithOverride(child, parentKey, common.CmdSetParent,
		codec.String(child.String()), codec.String(parent.String()))
	return nil
}

// Unparent queues the removal of the parent of child
func (o *Objects) Unparent(child common.Handle) error {
	if _, err := o.lookup(child); err != nil {
		return err
	}
	o.s.queue.EnqueueWithOverride(child, parentKey, common.CmdUnparent, codec.String(child.String()))
	return nil
}

// UpdateSpatial merges a geometry update into the pending update of h
func (o *Objects) UpdateSpatial(h common.Handle, update codec.Geometry) error {
	if _, err := o.lookup(h); err != nil {
		return err
	}
	o.s.queue.UpdateGeometry(h, update)
	return nil
}

// Publish sends a pub/sub event to the renderer. arg is optional.
func (o *Objects) Publish(scope, event string, arg *codec.Value) {
	args := []codec.Value{codec.String(scope), codec.String(event)}
	if arg != nil {
		// keep the array separator, the queue would flatten a raw array value
		args = append(args, codec.String(arg.Encode()))
	}
	o.s.queue.EnqueueGlobal(common.CmdCroquetPub, args...)
}

// handleObjectCreated marks an object as confirmed: objectCreated handle creationTimeMs
func (o *Objects) handleObjectCreated(msg inbound.Message) error {
	if err := expectArgs(msg, 1); err != nil {
		return err
	}
	h, err := common.ParseHandle(msg.Args[0])
	if err != nil {
		return err
	}
	obj, err := o.lookup(h)
	if err != nil {
		return err
	}
	obj.confirmed = true
	Logger.Debugf("handle %d confirmed after %s", h, time.Since(obj.createdAt))
	return nil
}
