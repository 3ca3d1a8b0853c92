package unix

import (
	"context"
	"github.com/ValentinKolb/dBridge/bridge/transport"
	"github.com/ValentinKolb/dBridge/bridge/transport/base"
	"net"
)

// clientConnector implements the IClientConnector interface for Unix sockets
type clientConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IClientConnector)
// --------------------------------------------------------------------------

func (c *clientConnector) GetName() string {
	return "unix"
}

func (c *clientConnector) Dial(ctx context.Context, endpoint string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "unix", endpoint)
}

// Host is a placeholder, the socket path is not part of the url
func (c *clientConnector) Host(string) string {
	return "unix"
}

// --------------------------------------------------------------------------
// Client Transport Factory Method
// --------------------------------------------------------------------------

// NewUnixClientTransport creates a new Unix client transport
func NewUnixClientTransport() transport.IBridgeClientTransport {
	return base.NewBaseClientTransport(&clientConnector{}, defaultBufferSize)
}
