// Package unix implements the bridge transport over Unix domain sockets, the default
// for two processes on the same machine.
//
// This package extends the base transport layer with Unix socket-specific connectors
// while inheriting the websocket handling from the base package.
//
// Key Components:
//
//   - clientConnector: Establishes connections using Unix domain sockets
//
//   - serverConnector: Creates the Unix socket listener, replacing a stale socket file
//
// Performance Characteristics:
//
//   - Default buffer size: 64 KB, optimized for local communication patterns
//   - Reduced overhead: Eliminates TCP/IP stack processing
package unix
