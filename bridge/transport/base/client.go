package base

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/dBridge/bridge/common"
	"github.com/ValentinKolb/dBridge/bridge/transport"
	"github.com/gorilla/websocket"
	"net"
	"net/http"
	"time"
)

const handshakeTimeout = 5 * time.Second

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Dial establishes the raw connection to the endpoint
	Dial(ctx context.Context, endpoint string) (net.Conn, error)

	// Host returns the host used in the websocket url for the endpoint
	Host(endpoint string) string

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// clientTransport implements the core client transport functionality
// independent of the specific transport medium (unix, tcp)
type clientTransport struct {
	connector  IClientConnector
	bufferSize int
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix)
// -----------------------------------------------------------

// NewBaseClientTransport creates a new base client transport with the specified connector
func NewBaseClientTransport(connector IClientConnector, bufferSize int) transport.IBridgeClientTransport {
	return &clientTransport{
		connector:  connector,
		bufferSize: bufferSize,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IBridgeClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) Connect(ctx context.Context, config *common.Config) (transport.IBridgeConn, error) {
	endpoint := config.Endpoint

	dialer := websocket.Dialer{
		NetDialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			return t.connector.Dial(ctx, endpoint)
		},
		HandshakeTimeout: handshakeTimeout,
		ReadBufferSize:   t.bufferSize,
		WriteBufferSize:  t.bufferSize,
	}

	url := "ws://" + t.connector.Host(endpoint) + BridgePath
	ws, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusConflict {
			return nil, fmt.Errorf("%s endpoint %s already has a peer: %w", t.connector.GetName(), endpoint, err)
		}
		return nil, fmt.Errorf("failed to connect to %s endpoint %s: %w", t.connector.GetName(), endpoint, err)
	}

	Logger.Infof("connected to %s endpoint %s", t.connector.GetName(), endpoint)
	return newConn(ws), nil
}
