// Package outbound implements the batching queue for commands sent to the bridge peer.
//
// Commands are deferred per handle (or in a global bucket) and flushed as one bundle on
// the message cadence. Geometry updates are merged per handle and flushed as one binary
// updateSpatial frame on the geometry cadence. A command with an override key replaces
// the already queued command with the same key, so only the latest property value is sent.
package outbound
