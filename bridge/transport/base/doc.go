// Package base provides the foundation for the bridge transports, implementing the
// websocket connection handling independent of the socket type (unix domain socket or
// loopback TCP). It serves as a base layer that is extended with socket specific connectors.
//
// The package focuses on:
//   - Socket agnostic client and server transport implementations
//   - Message oriented connections, text and binary messages are kept apart
//   - Exactly one peer per listener, a second peer is rejected with 409 Conflict
//   - Serving the metrics endpoint on the bridge listener
//
// Key Components:
//
//   - IClientConnector/IServerConnector: Interfaces for socket specific operations
//     that allow extending the base transport with different socket types.
//
//   - clientTransport: dials the endpoint through the connector and performs the
//     websocket handshake on /bridge.
//
//   - serverTransport: an http server with a chi router on the connector's listener,
//     serving /bridge (websocket upgrade) and the metrics path.
//
// Thread Safety:
//
//	Writes on a connection are serialized with a mutex, so any goroutine may write.
//	Reads must come from a single goroutine (the session's reader).
package base
