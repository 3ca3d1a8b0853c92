package renderer

import (
	"github.com/ValentinKolb/dBridge/bridge/codec"
	"github.com/ValentinKolb/dBridge/lib/scene"
)

// logEngine stands in for a real rendering engine, it logs every call of the registry
type logEngine struct {
	geometryUpdates int
}

// --------------------------------------------------------------------------
// Interface Methods (docu see scene.Engine and the capability interfaces)
// --------------------------------------------------------------------------

func (e *logEngine) Create(obj *scene.Object) error {
	placeholder := ""
	if obj.Placeholder {
		placeholder = " (placeholder)"
	}
	Logger.Infof("create %d %s %q [%s]%s", obj.Handle, obj.Type, obj.Name, obj.Behaviors, placeholder)
	return nil
}

func (e *logEngine) Destroy(obj *scene.Object) {
	Logger.Infof("destroy %d", obj.Handle)
}

func (e *logEngine) SetProperty(obj *scene.Object, name string, value codec.Value) {
	Logger.Infof("property %d %s=%s", obj.Handle, name, value.Flatten())
}

func (e *logEngine) Present(obj *scene.Object) {
	Logger.Infof("present %d", obj.Handle)
}

func (e *logEngine) ApplyGeometry(obj *scene.Object, g codec.Geometry) {
	e.geometryUpdates++
	Logger.Debugf("geometry %d mask=%06b t=%v r=%v s=%v", obj.Handle, g.Mask, g.Translation, g.Rotation, g.Scale)
}

func (e *logEngine) SetParent(child, parent *scene.Object) {
	Logger.Infof("parent %d -> %d", child.Handle, parent.Handle)
}

func (e *logEngine) Unparent(child *scene.Object) {
	Logger.Infof("unparent %d", child.Handle)
}

func (e *logEngine) SetMaterialProperty(obj *scene.Object, name string, value codec.Value) {
	Logger.Infof("material %d %s=%s", obj.Handle, name, value.Flatten())
}

func (e *logEngine) Possess(obj *scene.Object) {
	Logger.Infof("possess %d", obj.Handle)
}

func (e *logEngine) Release(obj *scene.Object) {
	Logger.Infof("release %d", obj.Handle)
}
