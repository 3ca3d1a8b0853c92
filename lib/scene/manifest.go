package scene

import (
	"errors"
	"fmt"
	"github.com/pelletier/go-toml/v2"
	"os"
)

// --------------------------------------------------------------------------
// Manifest Files
// --------------------------------------------------------------------------

// Manifest lists the object types an asset bundle provides. Example:
//
//	name = "demo"
//	fallback = ["renderable", "spatial"]
//
//	[[prefab]]
//	type = "cube"
//	behaviors = ["renderable", "spatial", "material"]
type Manifest struct {
	Name     string   `toml:"name"`
	Fallback []string `toml:"fallback"`
	Prefabs  []Prefab `toml:"prefab"`
}

// Prefab maps an object type to its behaviors
type Prefab struct {
	Type      string   `toml:"type"`
	Behaviors []string `toml:"behaviors"`
}

// ParseManifest parses and validates a TOML manifest
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if m.Name == "" {
		return nil, errors.New("manifest has no name")
	}
	if _, err := ParseBehaviorSet(m.Fallback); err != nil {
		return nil, fmt.Errorf("manifest %s: fallback: %w", m.Name, err)
	}
	seen := make(map[string]bool, len(m.Prefabs))
	for _, p := range m.Prefabs {
		if p.Type == "" {
			return nil, fmt.Errorf("manifest %s: prefab without type", m.Name)
		}
		if seen[p.Type] {
			return nil, fmt.Errorf("manifest %s: duplicate prefab type %s", m.Name, p.Type)
		}
		seen[p.Type] = true
		if _, err := ParseBehaviorSet(p.Behaviors); err != nil {
			return nil, fmt.Errorf("manifest %s: prefab %s: %w", m.Name, p.Type, err)
		}
	}
	return &m, nil
}

// LoadManifest reads and parses a manifest file
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseManifest(data)
}

// --------------------------------------------------------------------------
// Catalog
// --------------------------------------------------------------------------

// Catalog merges several manifests. If two manifests define the same type, the first wins.
type Catalog struct {
	names    []string
	types    map[string]BehaviorSet
	fallback BehaviorSet
}

// NewCatalog creates a catalog from already validated manifests
func NewCatalog(manifests ...*Manifest) *Catalog {
	c := &Catalog{
		names:    make([]string, 0, len(manifests)),
		types:    make(map[string]BehaviorSet),
		fallback: DefaultFallback,
	}
	fallbackSet := false
	for _, m := range manifests {
		c.names = append(c.names, m.Name)
		if !fallbackSet && len(m.Fallback) > 0 {
			c.fallback, _ = ParseBehaviorSet(m.Fallback)
			fallbackSet = true
		}
		for _, p := range m.Prefabs {
			if _, exists := c.types[p.Type]; exists {
				Logger.Warningf("type %s of manifest %s already defined, ignoring", p.Type, m.Name)
				continue
			}
			c.types[p.Type], _ = ParseBehaviorSet(p.Behaviors)
		}
	}
	return c
}

// LoadCatalog loads all manifest files into one catalog
func LoadCatalog(paths ...string) (*Catalog, error) {
	manifests := make([]*Manifest, 0, len(paths))
	for _, path := range paths {
		m, err := LoadManifest(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load manifest %s: %w", path, err)
		}
		manifests = append(manifests, m)
	}
	return NewCatalog(manifests...), nil
}

// Resolve returns the behaviors of a type. ok is false for unknown types.
func (c *Catalog) Resolve(typ string) (BehaviorSet, bool) {
	s, ok := c.types[typ]
	return s, ok
}

// Fallback returns the behaviors of placeholder objects
func (c *Catalog) Fallback() BehaviorSet {
	return c.fallback
}

// Names returns the names of all manifests in load order (sent in the handshake)
func (c *Catalog) Names() []string {
	return c.names
}
