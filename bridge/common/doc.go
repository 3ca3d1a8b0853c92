// Package common provides the protocol vocabulary and utilities shared by all
// bridge packages.
//
// The package focuses on:
//   - Separator bytes, handles and the closed set of command names
//   - The handshake and object spec payloads
//   - Configuration of one bridge peer
//   - Custom logging implementation integrated with Dragonboat's logger
//   - Error kinds and cumulative metrics
//
// Key Components:
//
//   - Command: typed constants for every command name on the wire. Unknown
//     names are still routed by the dispatcher but never match a builtin.
//
//   - Config: configuration for one peer (role, transport, cadences and
//     handshake fields) with a String() printer for the CLI.
//
//   - Logger: custom logging implementation that integrates with Dragonboat's
//     logging system. Warn and error lines can additionally be observed with
//     AddLogHook, which the session uses for log forwarding.
package common
