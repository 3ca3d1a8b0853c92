package scene

import (
	"github.com/ValentinKolb/dBridge/bridge/codec"
)

// --------------------------------------------------------------------------
// Engine Interfaces
// --------------------------------------------------------------------------

// Engine is the rendering side glue the registry drives. Optional capabilities are
// separate interfaces, the registry only calls them for objects whose behavior set
// contains the matching behavior and only if the engine implements them.
type Engine interface {
	// Create instantiates the object in the engine
	Create(obj *Object) error
	// Destroy removes the object from the engine
	Destroy(obj *Object)
	// SetProperty applies a property that no capability claims
	SetProperty(obj *Object, name string, value codec.Value)
}

// Renderable is implemented by engines that can show and hide objects
type Renderable interface {
	// Present makes the object visible for the first time
	Present(obj *Object)
}

// Spatial is implemented by engines that place objects in the scene graph
type Spatial interface {
	ApplyGeometry(obj *Object, g codec.Geometry)
	SetParent(child, parent *Object)
	Unparent(child *Object)
}

// Material is implemented by engines that handle material properties
type Material interface {
	SetMaterialProperty(obj *Object, name string, value codec.Value)
}

// Avatar is implemented by engines that bind avatar objects to local input
type Avatar interface {
	Possess(obj *Object)
	Release(obj *Object)
}

// Acker sends the objectCreated acknowledgement to the simulation peer
type Acker interface {
	AckCreated(obj *Object, creationTimeMs int64)
}
