package scene

import (
	"fmt"
	"github.com/ValentinKolb/dBridge/bridge/codec"
	"github.com/ValentinKolb/dBridge/bridge/common"
	"github.com/lni/dragonboat/v4/logger"
	"sort"
	"time"
)

var Logger = logger.GetLogger("scene")

// --------------------------------------------------------------------------
// Objects
// --------------------------------------------------------------------------

// Object is one bridged object on the rendering side
type Object struct {
	Handle     common.Handle
	Name       string
	Type       string
	Behaviors  BehaviorSet
	Components []string

	Parent    common.Handle
	HasParent bool

	Properties map[string]codec.Value
	Geometry   codec.Geometry // merged state of all applied spatial updates

	// Placeholder is set when the type was not found in any manifest
	Placeholder bool
	// WaitToPresent objects stay hidden until their first spatial update
	WaitToPresent bool
	Presented     bool

	CreatedAt time.Time
}

// --------------------------------------------------------------------------
// Registry
// --------------------------------------------------------------------------

// Registry is the handle table of the rendering side. It applies object commands and
// forwards them to the engine. It is not safe for concurrent use, it is owned by the
// tick goroutine.
type Registry struct {
	objects map[common.Handle]*Object
	catalog *Catalog
	engine  Engine
	acker   Acker
	metrics *common.BridgeMetrics
}

// NewRegistry creates an empty registry. acker and metrics may be nil.
func NewRegistry(catalog *Catalog, engine Engine, acker Acker, metrics *common.BridgeMetrics) *Registry {
	if catalog == nil {
		catalog = NewCatalog()
	}
	return &Registry{
		objects: make(map[common.Handle]*Object),
		catalog: catalog,
		engine:  engine,
		acker:   acker,
		metrics: metrics,
	}
}

// Get returns a registered object
func (r *Registry) Get(h common.Handle) (*Object, bool) {
	obj, ok := r.objects[h]
	return obj, ok
}

// Len returns the number of registered objects
func (r *Registry) Len() int {
	return len(r.objects)
}

// Handles returns all registered handles in ascending order
func (r *Registry) Handles() []common.Handle {
	handles := make([]common.Handle, 0, len(r.objects))
	for h := range r.objects {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	return handles
}

// lookup returns the object or an error wrapping ErrStaleReference
func (r *Registry) lookup(h common.Handle) (*Object, error) {
	obj, ok := r.objects[h]
	if !ok {
		return nil, fmt.Errorf("%w: handle %d", common.ErrStaleReference, h)
	}
	return obj, nil
}

// MakeObject creates an object from its spec. If the type is unknown, a placeholder
// with the fallback behaviors is created and an error wrapping ErrMissingManifestOrAsset
// is returned together with the object.
func (r *Registry) MakeObject(spec common.ObjectSpec, now time.Time) (*Object, error) {
	if _, exists := r.objects[spec.Handle]; exists {
		return nil, fmt.Errorf("%w: handle %d already registered", common.ErrMalformedFrame, spec.Handle)
	}

	obj := &Object{
		Handle:        spec.Handle,
		Name:          spec.Name,
		Type:          spec.Type,
		Components:    spec.Components,
		Properties:    make(map[string]codec.Value, len(spec.Properties)/2),
		WaitToPresent: spec.WaitToPresent,
		CreatedAt:     now,
	}
	for name, value := range spec.PropertyMap() {
		obj.Properties[name] = codec.String(value)
	}

	var missing error
	behaviors, ok := r.catalog.Resolve(spec.Type)
	if !ok {
		behaviors = r.catalog.Fallback()
		obj.Placeholder = true
		missing = fmt.Errorf("%w: type %q of handle %d, using placeholder", common.ErrMissingManifestOrAsset, spec.Type, spec.Handle)
	}
	// components that name a behavior extend the set
	for _, c := range spec.Components {
		if b, err := ParseBehavior(c); err == nil {
			behaviors |= BehaviorSet(b)
		}
	}
	obj.Behaviors = behaviors

	if err := r.engine.Create(obj); err != nil {
		return nil, fmt.Errorf("engine failed to create handle %d: %w", spec.Handle, err)
	}
	r.objects[obj.Handle] = obj
	if r.metrics != nil {
		r.metrics.ObjectsLive.Inc()
	}

	if a, ok := r.engine.(Avatar); ok && obj.Behaviors.Has(BehaviorAvatar) {
		a.Possess(obj)
	}
	if !obj.WaitToPresent {
		r.present(obj)
	}
	if spec.ConfirmCreation && r.acker != nil {
		r.acker.AckCreated(obj, now.UnixMilli())
	}

	Logger.Debugf("created %s %q (handle %d, %s)", obj.Type, obj.Name, obj.Handle, obj.Behaviors)
	return obj, missing
}

// DestroyObject removes an object. Children of the object are unparented.
func (r *Registry) DestroyObject(h common.Handle) error {
	obj, err := r.lookup(h)
	if err != nil {
		return err
	}

	for _, child := range r.objects {
		if child.HasParent && child.Parent == h {
			r.unparent(child)
		}
	}

	if a, ok := r.engine.(Avatar); ok && obj.Behaviors.Has(BehaviorAvatar) {
		a.Release(obj)
	}
	r.engine.Destroy(obj)
	delete(r.objects, h)
	if r.metrics != nil {
		r.metrics.ObjectsLive.Dec()
	}
	return nil
}

// SetParent attaches child to parent
func (r *Registry) SetParent(child, parent common.Handle) error {
	c, err := r.lookup(child)
	if err != nil {
		return err
	}
	p, err := r.lookup(parent)
	if err != nil {
		return err
	}
	if child == parent || r.isAncestor(child, parent) {
		return fmt.Errorf("%w: parenting %d to %d creates a cycle", common.ErrMalformedFrame, child, parent)
	}

	c.Parent, c.HasParent = parent, true
	if s, ok := r.engine.(Spatial); ok && c.Behaviors.Has(BehaviorSpatial) {
		s.SetParent(c, p)
	}
	return nil
}

// isAncestor reports whether a is an ancestor of h
func (r *Registry) isAncestor(a, h common.Handle) bool {
	for obj, ok := r.objects[h]; ok && obj.HasParent; obj, ok = r.objects[obj.Parent] {
		if obj.Parent == a {
			return true
		}
	}
	return false
}

// Unparent detaches an object from its parent
func (r *Registry) Unparent(child common.Handle) error {
	c, err := r.lookup(child)
	if err != nil {
		return err
	}
	if c.HasParent {
		r.unparent(c)
	}
	return nil
}

func (r *Registry) unparent(c *Object) {
	c.Parent, c.HasParent = 0, false
	if s, ok := r.engine.(Spatial); ok && c.Behaviors.Has(BehaviorSpatial) {
		s.Unparent(c)
	}
}

// SetProperty stores a property and forwards it to the engine
func (r *Registry) SetProperty(h common.Handle, name string, value codec.Value) error {
	obj, err := r.lookup(h)
	if err != nil {
		return err
	}
	obj.Properties[name] = value

	if m, ok := r.engine.(Material); ok && obj.Behaviors.Has(BehaviorMaterial) {
		m.SetMaterialProperty(obj, name, value)
		return nil
	}
	r.engine.SetProperty(obj, name, value)
	return nil
}

// ApplySpatial applies the records of one updateSpatial frame. Records of unknown
// handles are skipped and counted in stale.
func (r *Registry) ApplySpatial(records []codec.SpatialRecord) (applied, stale int) {
	s, spatial := r.engine.(Spatial)
	for _, rec := range records {
		obj, ok := r.objects[rec.Handle]
		if !ok {
			stale++
			continue
		}
		obj.Geometry.Merge(rec.Geometry)
		if spatial && obj.Behaviors.Has(BehaviorSpatial) {
			s.ApplyGeometry(obj, rec.Geometry)
		}
		if !obj.Presented {
			r.present(obj)
		}
		applied++
	}
	if stale > 0 {
		Logger.Debugf("%v: %d spatial records for unknown handles", common.ErrStaleReference, stale)
	}
	return applied, stale
}

func (r *Registry) present(obj *Object) {
	obj.Presented = true
	if rd, ok := r.engine.(Renderable); ok && obj.Behaviors.Has(BehaviorRenderable) {
		rd.Present(obj)
	}
}

// Clear destroys all objects (used on session teardown)
func (r *Registry) Clear() {
	for _, h := range r.Handles() {
		_ = r.DestroyObject(h)
	}
}
