package transport

import (
	"context"
	"github.com/ValentinKolb/dBridge/bridge/common"
	"io"
)

// --------------------------------------------------------------------------
// Connection
// --------------------------------------------------------------------------

// IBridgeConn is one established message connection between the two bridge peers.
// Text messages carry text bundles, binary messages carry binary frames.
type IBridgeConn interface {
	// ReadMessage blocks until the next message arrives. Must only be called by one goroutine.
	ReadMessage() (binary bool, data []byte, err error)
	// WriteText sends a text message. Safe for concurrent use.
	WriteText(data []byte) error
	// WriteBinary sends a binary message. Safe for concurrent use.
	WriteBinary(data []byte) error
	// Close closes the connection, a blocked ReadMessage returns an error
	Close() error
	// RemoteAddr returns a description of the peer address
	RemoteAddr() string
}

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ConnHandleFunc is called for every accepted connection. The connection is closed
// when the function returns. Only one connection is served at a time.
type ConnHandleFunc func(conn IBridgeConn)

// IBridgeServerTransport is the interface for the listening (renderer) side
type IBridgeServerTransport interface {
	// RegisterHandler registers the handler for accepted connections
	RegisterHandler(handler ConnHandleFunc)
	// RegisterMetrics registers a writer for the metrics endpoint (config.MetricsPath)
	RegisterMetrics(write func(w io.Writer))
	// Listen starts the transport and blocks until ctx is done or the listener fails
	Listen(ctx context.Context, config *common.Config) error
	// Ready is closed once the listener accepts connections
	Ready() <-chan struct{}
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IBridgeClientTransport is the interface for the dialing (simulation) side
type IBridgeClientTransport interface {
	// Connect dials the peer and performs the websocket handshake
	Connect(ctx context.Context, config *common.Config) (IBridgeConn, error)
}
