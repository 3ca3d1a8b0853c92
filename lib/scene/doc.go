// Package scene provides the object registry of the rendering side of the bridge.
//
// The package focuses on:
//   - A handle table that applies object lifecycle, hierarchy, property and spatial commands
//   - Asset manifests (TOML) that map object types to behavior sets
//   - Decoupling from the actual engine through small capability interfaces
//
// Key Components:
//
//   - Registry: owns all live objects. Commands for unknown handles return an error
//     wrapping ErrStaleReference and change nothing. Unknown types are created as
//     placeholders with the fallback behaviors (ErrMissingManifestOrAsset).
//
//   - Catalog / Manifest: merged manifests, the manifest names are announced to the
//     simulation peer in the handshake.
//
//   - Engine, Renderable, Spatial, Material, Avatar: the engine glue. The registry calls
//     a capability only for objects whose behavior set contains it.
package scene
