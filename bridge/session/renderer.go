package session

import (
	"errors"
	"fmt"
	"github.com/ValentinKolb/dBridge/bridge/codec"
	"github.com/ValentinKolb/dBridge/bridge/common"
	"github.com/ValentinKolb/dBridge/bridge/inbound"
	"github.com/ValentinKolb/dBridge/lib/scene"
	"strings"
	"time"
)

// NewRenderer creates the session of the renderer peer. It listens for the simulation,
// sends the handshake and applies the object commands to the scene registry.
func NewRenderer(config *common.Config, catalog *scene.Catalog, engine scene.Engine, hooks Hooks) *Session {
	s := newSession(config, hooks)
	if catalog == nil {
		catalog = scene.NewCatalog()
	}
	s.catalog = catalog
	s.registry = scene.NewRegistry(catalog, engine, sessionAcker{s}, s.metrics)

	s.dispatcher.RegisterHandler(common.CmdMakeObject, s.handleMakeObject)
	s.dispatcher.RegisterHandler(common.CmdDestroyObject, s.handleDestroyObject)
	s.dispatcher.RegisterHandler(common.CmdSetProperty, s.handleSetProperty)
	s.dispatcher.RegisterHandler(common.CmdSetParent, s.handleSetParent)
	s.dispatcher.RegisterHandler(common.CmdUnparent, s.handleUnparent)
	s.dispatcher.RegisterHandler(common.CmdUpdateSpatial, s.handleUpdateSpatial)
	s.dispatcher.RegisterHandler(common.CmdCroquetPub, s.handleCroquetPub)
	return s
}

// Registry returns the scene registry (nil on the simulation side)
func (s *Session) Registry() *scene.Registry { return s.registry }

// sessionAcker queues objectCreated for objects created with confirmCreation
type sessionAcker struct {
	s *Session
}

func (a sessionAcker) AckCreated(obj *scene.Object, creationTimeMs int64) {
	a.s.queue.EnqueueGlobal(common.CmdObjectCreated,
		codec.String(obj.Handle.String()), codec.String(codec.FormatInt(creationTimeMs)))
	a.s.queue.ExpediteMessages()
}

// --------------------------------------------------------------------------
// Object Commands
// --------------------------------------------------------------------------

func (s *Session) handleMakeObject(msg inbound.Message) error {
	if err := expectArgs(msg, 1); err != nil {
		return err
	}
	spec, err := common.DecodeObjectSpec(msg.Args[0])
	if err != nil {
		return err
	}
	_, err = s.registry.MakeObject(spec, time.Now())
	if errors.Is(err, common.ErrMissingManifestOrAsset) {
		// the placeholder is live, the simulation keeps using the handle
		Logger.Warningf("%v", err)
		return nil
	}
	return err
}

func (s *Session) handleDestroyObject(msg inbound.Message) error {
	if err := expectArgs(msg, 1); err != nil {
		return err
	}
	h, err := common.ParseHandle(msg.Args[0])
	if err != nil {
		return err
	}
	return s.registry.DestroyObject(h)
}

// handleSetProperty: setProperty handle name formatTag value
func (s *Session) handleSetProperty(msg inbound.Message) error {
	if err := expectArgs(msg, 4); err != nil {
		return err
	}
	h, err := common.ParseHandle(msg.Args[0])
	if err != nil {
		return err
	}
	format, err := codec.ParseArgFormat(msg.Args[2])
	if err != nil {
		return err
	}
	value, err := codec.DecodeFlatValue(format, msg.Args[3])
	if err != nil {
		return err
	}
	return s.registry.SetProperty(h, msg.Args[1], value)
}

func (s *Session) handleSetParent(msg inbound.Message) error {
	if err := expectArgs(msg, 2); err != nil {
		return err
	}
	child, err := common.ParseHandle(msg.Args[0])
	if err != nil {
		return err
	}
	parent, err := common.ParseHandle(msg.Args[1])
	if err != nil {
		return err
	}
	return s.registry.SetParent(child, parent)
}

func (s *Session) handleUnparent(msg inbound.Message) error {
	if err := expectArgs(msg, 1); err != nil {
		return err
	}
	child, err := common.ParseHandle(msg.Args[0])
	if err != nil {
		return err
	}
	return s.registry.Unparent(child)
}

func (s *Session) handleUpdateSpatial(msg inbound.Message) error {
	if !msg.Binary {
		return fmt.Errorf("%w: updateSpatial must be a binary frame", common.ErrMalformedFrame)
	}
	records, err := codec.DecodeSpatial(msg.Payload)
	if err != nil {
		return err
	}
	applied, stale := s.registry.ApplySpatial(records)
	if stale > 0 {
		Logger.Debugf("updateSpatial: %d applied, %d stale", applied, stale)
	}
	return nil
}

// handleCroquetPub: croquetPub scope event [encodedArg]
func (s *Session) handleCroquetPub(msg inbound.Message) error {
	if err := expectArgs(msg, 2); err != nil {
		return err
	}
	if s.hooks.OnPublish != nil {
		s.hooks.OnPublish(msg.Args[0], msg.Args[1], msg.Args[2:])
	}
	return nil
}

// --------------------------------------------------------------------------
// Renderer to Simulation
// --------------------------------------------------------------------------

// Publish sends a pub/sub event to the simulation: publish scope event [formatTag encodedArg]
func (s *Session) Publish(scope, event string, arg *codec.Value) {
	args := []codec.Value{codec.String(scope), codec.String(event)}
	if arg != nil {
		args = append(args, codec.String(arg.Format.String()), codec.String(arg.Encode()))
	}
	s.queue.EnqueueGlobal(common.CmdPublish, args...)
}

// Input event types sent with the event command
const (
	EventKeyDown     = "keyDown"
	EventKeyUp       = "keyUp"
	EventPointerDown = "pointerDown"
	EventPointerUp   = "pointerUp"
	EventPointerHit  = "pointerHit"
)

// KeyDown sends a key press
func (s *Session) KeyDown(key string) {
	s.queue.EnqueueGlobal(common.CmdEvent, codec.String(EventKeyDown), codec.String(key))
}

// KeyUp sends a key release
func (s *Session) KeyUp(key string) {
	s.queue.EnqueueGlobal(common.CmdEvent, codec.String(EventKeyUp), codec.String(key))
}

// PointerDown sends a pointer press at screen position (x, y)
func (s *Session) PointerDown(x, y float64) {
	s.queue.EnqueueGlobal(common.CmdEvent, codec.String(EventPointerDown), codec.Float(x), codec.Float(y))
}

// PointerUp sends a pointer release at screen position (x, y)
func (s *Session) PointerUp(x, y float64) {
	s.queue.EnqueueGlobal(common.CmdEvent, codec.String(EventPointerUp), codec.Float(x), codec.Float(y))
}

// Hit is one object hit by a pointer ray
type Hit struct {
	Handle common.Handle
	Point  codec.Vec3
	Layers []string
}

func (h Hit) encode() string {
	fields := []string{
		h.Handle.String(),
		codec.FormatFloat(float64(h.Point[0])),
		codec.FormatFloat(float64(h.Point[1])),
		codec.FormatFloat(float64(h.Point[2])),
	}
	return strings.Join(append(fields, h.Layers...), ",")
}

// PointerHit sends the objects hit by a pointer ray, one argument per hit
func (s *Session) PointerHit(hits ...Hit) {
	args := []codec.Value{codec.String(EventPointerHit)}
	for _, h := range hits {
		args = append(args, codec.String(h.encode()))
	}
	s.queue.EnqueueGlobal(common.CmdEvent, args...)
}

// ParseHit parses one argument of a pointerHit event
func ParseHit(arg string) (Hit, error) {
	fields := strings.Split(arg, ",")
	if len(fields) < 4 {
		return Hit{}, fmt.Errorf("%w: pointer hit %q", common.ErrMalformedFrame, arg)
	}
	h, err := common.ParseHandle(fields[0])
	if err != nil {
		return Hit{}, err
	}
	hit := Hit{Handle: h, Layers: fields[4:]}
	for i := 0; i < 3; i++ {
		f, err := codec.ParseFloat(fields[i+1])
		if err != nil {
			return Hit{}, err
		}
		hit.Point[i] = float32(f)
	}
	return hit, nil
}
