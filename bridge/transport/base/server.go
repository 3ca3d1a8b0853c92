package base

import (
	"context"
	"errors"
	"fmt"
	"github.com/ValentinKolb/dBridge/bridge/common"
	"github.com/ValentinKolb/dBridge/bridge/transport"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/lni/dragonboat/v4/logger"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
)

var Logger = logger.GetLogger("transport/base")

// BridgePath is the http path of the websocket endpoint
const BridgePath = "/bridge"

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(config *common.Config) (net.Listener, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// serverTransport implements the core server transport functionality
type serverTransport struct {
	connector IServerConnector
	handler   transport.ConnHandleFunc
	metrics   func(w io.Writer)
	upgrader  websocket.Upgrader
	active    atomic.Bool // true while a peer is connected
	ready     chan struct{}
	readyOnce sync.Once
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix)
// -----------------------------------------------------------

// NewBaseServerTransport creates a new base server transport with the given connector
func NewBaseServerTransport(connector IServerConnector, bufferSize int) transport.IBridgeServerTransport {
	return &serverTransport{
		connector: connector,
		ready:     make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  bufferSize,
			WriteBufferSize: bufferSize,
			// the listener is a local socket, there is no browser origin to check
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IBridgeServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterHandler(handler transport.ConnHandleFunc) {
	t.handler = handler
}

func (t *serverTransport) RegisterMetrics(write func(w io.Writer)) {
	t.metrics = write
}

func (t *serverTransport) Ready() <-chan struct{} {
	return t.ready
}

func (t *serverTransport) Listen(ctx context.Context, config *common.Config) error {
	if t.handler == nil {
		return errors.New("no connection handler registered")
	}

	// Create listener using the connector
	listener, err := t.connector.Listen(config)
	if err != nil {
		return fmt.Errorf("failed to create listener: %v", err)
	}

	r := chi.NewRouter()
	r.Get(BridgePath, t.handleUpgrade)
	if config.MetricsPath != "" && t.metrics != nil {
		r.Get(config.MetricsPath, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/plain; version=0.0.4")
			t.metrics(w)
		})
	}

	srv := &http.Server{Handler: r}

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = srv.Close()
		case <-stop:
		}
	}()

	Logger.Infof("Starting %s listener on %s", t.connector.GetName(), config.Endpoint)
	t.readyOnce.Do(func() { close(t.ready) })

	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handleUpgrade upgrades the request to a websocket and runs the handler until it returns.
// A second peer is rejected while one is connected.
func (t *serverTransport) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	if !t.active.CompareAndSwap(false, true) {
		Logger.Warningf("rejecting second peer from %s", r.RemoteAddr)
		http.Error(w, "bridge peer already connected", http.StatusConflict)
		return
	}
	defer t.active.Store(false)

	ws, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the http error
		Logger.Errorf("websocket upgrade failed: %v", err)
		return
	}

	conn := newConn(ws)
	defer conn.Close()

	Logger.Infof("peer connected from %s", conn.RemoteAddr())
	t.handler(conn)
	Logger.Infof("peer %s disconnected", conn.RemoteAddr())
}
