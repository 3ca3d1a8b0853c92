package scene

import (
	"fmt"
	"strings"
)

// --------------------------------------------------------------------------
// Behaviors
// --------------------------------------------------------------------------

// Behavior is one capability an object type can have
type Behavior uint8

const (
	BehaviorRenderable Behavior = 1 << iota
	BehaviorSpatial
	BehaviorMaterial
	BehaviorAvatar
)

var behaviorNames = []struct {
	b    Behavior
	name string
}{
	{BehaviorRenderable, "renderable"},
	{BehaviorSpatial, "spatial"},
	{BehaviorMaterial, "material"},
	{BehaviorAvatar, "avatar"},
}

func (b Behavior) String() string {
	for _, n := range behaviorNames {
		if n.b == b {
			return n.name
		}
	}
	return "unknown"
}

// ParseBehavior converts a behavior name into a Behavior
func ParseBehavior(name string) (Behavior, error) {
	for _, n := range behaviorNames {
		if n.name == strings.ToLower(name) {
			return n.b, nil
		}
	}
	return 0, fmt.Errorf("unknown behavior: %s", name)
}

// BehaviorSet is a set of behaviors, resolved from the manifest when an object is created
type BehaviorSet uint8

// DefaultFallback is used for unknown types when no manifest defines a fallback
const DefaultFallback = BehaviorSet(BehaviorRenderable | BehaviorSpatial)

// NewBehaviorSet creates a set from the given behaviors
func NewBehaviorSet(behaviors ...Behavior) BehaviorSet {
	var s BehaviorSet
	for _, b := range behaviors {
		s |= BehaviorSet(b)
	}
	return s
}

// ParseBehaviorSet parses a list of behavior names
func ParseBehaviorSet(names []string) (BehaviorSet, error) {
	var s BehaviorSet
	for _, name := range names {
		b, err := ParseBehavior(name)
		if err != nil {
			return 0, err
		}
		s |= BehaviorSet(b)
	}
	return s, nil
}

// Has reports whether the set contains b
func (s BehaviorSet) Has(b Behavior) bool {
	return s&BehaviorSet(b) != 0
}

// String returns the behavior names joined with "|"
func (s BehaviorSet) String() string {
	names := make([]string, 0, len(behaviorNames))
	for _, n := range behaviorNames {
		if s.Has(n.b) {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}
