package common

import "errors"

// --------------------------------------------------------------------------
// Error Kinds
// --------------------------------------------------------------------------

// Only ErrConnectionLost propagates out of a component. All other kinds are
// logged where they occur and the offending frame, command or reference is skipped.
var (
	// ErrMalformedFrame is returned when a separator is missing or a numeric field fails to parse
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrUnknownCommand is returned when no handler and no builtin exists for a command
	ErrUnknownCommand = errors.New("unknown command")
	// ErrMissingManifestOrAsset is returned when an object type is not listed in any loaded manifest
	ErrMissingManifestOrAsset = errors.New("missing manifest or asset")
	// ErrStaleReference is returned when a command targets a handle that is not (or no longer) registered
	ErrStaleReference = errors.New("stale reference")
	// ErrConnectionLost is returned when the socket closed, it terminates the session
	ErrConnectionLost = errors.New("connection lost")
)
