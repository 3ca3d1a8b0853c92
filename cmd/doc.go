// Package cmd implements the command-line interface of dBridge. It runs either side
// of the bridge as a standalone process.
//
// The package is organized into several subpackages:
//
//   - renderer: listens on the socket, sends the handshake and keeps the scene registry
//     with an engine that logs every call
//   - sim: dials the renderer and animates a number of demo objects
//   - util: shared flags, environment configuration and transport selection (internal use)
//
// Every flag can also be set as environment variable DBRIDGE_<FLAG> (e.g. DBRIDGE_LOG_LEVEL=debug),
// .env and .env.local files in the working directory are loaded first.
//
// See dbridge -help for a list of all commands.
package cmd
