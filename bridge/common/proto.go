package common

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// --------------------------------------------------------------------------
// Separator Bytes
// --------------------------------------------------------------------------

// The separator bytes must match the peer exactly, they are part of the wire format.
const (
	FieldSep     byte = 0x01 // between command name and arguments
	FrameSep     byte = 0x02 // between frames of a bundle (and timestamp/command of a binary frame)
	ArraySep     byte = 0x03 // between elements of an array argument
	BinaryMarker byte = 0x05 // start of the raw payload of a binary frame
)

// --------------------------------------------------------------------------
// Handles
// --------------------------------------------------------------------------

// Handle identifies one live bridged object. Handles are assigned by the simulation peer
// and are never reused while the referenced object is registered.
type Handle uint32

// String returns the decimal representation used on the wire
func (h Handle) String() string {
	return strconv.FormatUint(uint64(h), 10)
}

// ParseHandle parses a decimal handle argument
func ParseHandle(s string) (Handle, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid handle %q", ErrMalformedFrame, s)
	}
	return Handle(v), nil
}

// --------------------------------------------------------------------------
// Command Definitions
// --------------------------------------------------------------------------

// Command is the name of a protocol command, the first field of every frame.
type Command string

// The closed set of commands known to the bridge.
const (
	// session management

	CmdReadyForSession     Command = "readyForSession"
	CmdSessionRunning      Command = "croquetSessionRunning"
	CmdSessionDisconnected Command = "croquetSessionDisconnected"
	CmdJoinProgress        Command = "joinProgress"
	CmdCroquetPing         Command = "croquetPing"
	CmdUnityPong           Command = "unityPong"
	CmdClockPing           Command = "clockPing"
	CmdClockPong           Command = "clockPong"
	CmdSetLogForwarding    Command = "setJSLogForwarding"
	CmdLog                 Command = "log"
	CmdLogFromJS           Command = "logFromJS"
	CmdMeasure             Command = "measure"

	// object lifecycle and state

	CmdMakeObject    Command = "makeObject"
	CmdObjectCreated Command = "objectCreated"
	CmdDestroyObject Command = "destroyObject"
	CmdSetProperty   Command = "setProperty"
	CmdSetParent     Command = "setParent"
	CmdUnparent      Command = "unparent"
	CmdUpdateSpatial Command = "updateSpatial"

	// pub/sub and input

	CmdPublish    Command = "publish"
	CmdCroquetPub Command = "croquetPub"
	CmdEvent      Command = "event"
)

// AllCommands lists every known command
var AllCommands = []Command{
	CmdReadyForSession, CmdSessionRunning, CmdSessionDisconnected, CmdJoinProgress,
	CmdCroquetPing, CmdUnityPong, CmdClockPing, CmdClockPong, CmdSetLogForwarding,
	CmdLog, CmdLogFromJS, CmdMeasure, CmdMakeObject, CmdObjectCreated, CmdDestroyObject,
	CmdSetProperty, CmdSetParent, CmdUnparent, CmdUpdateSpatial, CmdPublish, CmdCroquetPub,
	CmdEvent,
}

// Known reports whether c belongs to the closed command set
func (c Command) Known() bool {
	for _, k := range AllCommands {
		if k == c {
			return true
		}
	}
	return false
}

// --------------------------------------------------------------------------
// Roles
// --------------------------------------------------------------------------

// Role selects which side of the bridge a session plays.
type Role uint8

const (
	RoleSimulation Role = iota // dials the socket, owns the handles
	RoleRenderer               // listens on the socket, sends the handshake
)

// String returns the string representation of a Role.
func (r Role) String() string {
	switch r {
	case RoleSimulation:
		return "simulation"
	case RoleRenderer:
		return "renderer"
	default:
		return "unknown"
	}
}

// ParseRole converts a role name into a Role
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(s) {
	case "simulation", "sim":
		return RoleSimulation, nil
	case "renderer", "render":
		return RoleRenderer, nil
	default:
		return 0, fmt.Errorf("unknown role: %s", s)
	}
}

// --------------------------------------------------------------------------
// Handshake
// --------------------------------------------------------------------------

// Handshake is the payload of the readyForSession frame sent by the renderer on connect.
type Handshake struct {
	APIKey                  string
	AppID                   string
	SessionName             string
	AssetManifests          []string
	EarlySubscriptionTopics []string
}

// Args returns the handshake fields in wire order. Array fields are joined with JoinArray.
func (h Handshake) Args() []string {
	return []string{
		h.APIKey,
		h.AppID,
		h.SessionName,
		JoinArray(h.AssetManifests),
		JoinArray(h.EarlySubscriptionTopics),
	}
}

// ParseHandshake parses the arguments of a readyForSession frame
func ParseHandshake(args []string) (Handshake, error) {
	if len(args) != 5 {
		return Handshake{}, fmt.Errorf("%w: readyForSession expects 5 arguments, got %d", ErrMalformedFrame, len(args))
	}
	return Handshake{
		APIKey:                  args[0],
		AppID:                   args[1],
		SessionName:             args[2],
		AssetManifests:          SplitArray(args[3]),
		EarlySubscriptionTopics: SplitArray(args[4]),
	}, nil
}

// JoinArray joins array elements with ArraySep. An empty array encodes as the empty string.
func JoinArray(items []string) string {
	return strings.Join(items, string(ArraySep))
}

// SplitArray is the inverse of JoinArray. The empty string decodes as an empty array.
func SplitArray(s string) []string {
	if s == "" {
		return []string{}
	}
	return strings.Split(s, string(ArraySep))
}

// --------------------------------------------------------------------------
// Object Spec (payload of makeObject)
// --------------------------------------------------------------------------

// ObjectSpec describes an object to be created by the renderer.
// Properties is a flattened list of alternating property names and values.
type ObjectSpec struct {
	Handle          Handle   `json:"handle"`
	Name            string   `json:"name,omitempty"`
	Type            string   `json:"type"`
	ConfirmCreation bool     `json:"confirmCreation,omitempty"`
	WaitToPresent   bool     `json:"waitToPresent,omitempty"`
	Components      []string `json:"components,omitempty"`
	Properties      []string `json:"properties,omitempty"`
}

// Encode marshals the spec into the JSON argument of a makeObject frame
func (s ObjectSpec) Encode() (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// DecodeObjectSpec parses the JSON argument of a makeObject frame
func DecodeObjectSpec(arg string) (ObjectSpec, error) {
	var s ObjectSpec
	if err := json.Unmarshal([]byte(arg), &s); err != nil {
		return ObjectSpec{}, fmt.Errorf("%w: invalid object spec: %v", ErrMalformedFrame, err)
	}
	if len(s.Properties)%2 != 0 {
		return ObjectSpec{}, fmt.Errorf("%w: odd number of property fields (%d)", ErrMalformedFrame, len(s.Properties))
	}
	return s, nil
}

// PropertyMap expands the flattened property list
func (s ObjectSpec) PropertyMap() map[string]string {
	props := make(map[string]string, len(s.Properties)/2)
	for i := 0; i+1 < len(s.Properties); i += 2 {
		props[s.Properties[i]] = s.Properties[i+1]
	}
	return props
}
