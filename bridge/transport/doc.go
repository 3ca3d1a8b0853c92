// Package transport defines the interfaces for the connection between the two bridge
// peers. It provides a common contract that all transport implementations must fulfill,
// so the session does not depend on the socket type.
//
// The package focuses on:
//   - Defining clear interfaces for client and server transport layers
//   - Keeping text and binary messages apart on the connection
//   - Enabling multiple local socket types (unix domain sockets, loopback TCP)
//
// Key Components:
//
//   - IBridgeConn: one established connection with message oriented reads and
//     concurrency safe writes.
//
//   - IBridgeClientTransport: dials the peer (used by the simulation side).
//
//   - IBridgeServerTransport: listens for the peer (used by the renderer side) and
//     serves the metrics endpoint on the same listener.
package transport
