package unix

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/dBridge/bridge/common"
	"github.com/ValentinKolb/dBridge/bridge/transport"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// startEchoServer starts a listener that echoes every message back with the same type
func startEchoServer(t *testing.T) (*common.Config, transport.IBridgeServerTransport, chan struct{}) {
	t.Helper()

	config := common.DefaultConfig(common.RoleRenderer)
	config.Endpoint = filepath.Join(t.TempDir(), "bridge.sock")

	release := make(chan struct{})
	server := NewUnixDefaultServerTransport()
	server.RegisterHandler(func(conn transport.IBridgeConn) {
		for {
			binary, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if string(data) == "hold" {
				<-release
				continue
			}
			if binary {
				_ = conn.WriteBinary(data)
			} else {
				_ = conn.WriteText(data)
			}
		}
	})
	server.RegisterMetrics(func(w io.Writer) {
		fmt.Fprintln(w, "dbridge_test_total 1")
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Listen(ctx, config) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Listen returned error: %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Errorf("Timeout waiting for listener shutdown")
		}
	})

	select {
	case <-server.Ready():
	case <-time.After(2 * time.Second):
		t.Fatalf("Timeout waiting for listener")
	}
	return config, server, release
}

// TestRoundTrip tests that text and binary messages keep their type
func TestRoundTrip(t *testing.T) {
	config, _, _ := startEchoServer(t)

	conn, err := NewUnixClientTransport().Connect(context.Background(), config)
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	tests := []struct {
		binary bool
		data   []byte
	}{
		{false, []byte("readyForSession\x01k\x01a\x01s\x01\x01")},
		{true, []byte("12\x02updateSpatial\x05\x00\x01\x02\x03")},
		{false, []byte("1700000000000\x02log\x01a\x02log\x01b")},
	}

	for i, tt := range tests {
		if tt.binary {
			err = conn.WriteBinary(tt.data)
		} else {
			err = conn.WriteText(tt.data)
		}
		if err != nil {
			t.Fatalf("Failed to write message %d: %v", i, err)
		}

		binary, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("Failed to read message %d: %v", i, err)
		}
		if binary != tt.binary || string(data) != string(tt.data) {
			t.Errorf("Message %d mismatch: got %v %q, want %v %q", i, binary, data, tt.binary, tt.data)
		}
	}
}

// TestSecondPeerRejected tests that only one peer can be connected at a time
func TestSecondPeerRejected(t *testing.T) {
	config, _, release := startEchoServer(t)
	defer close(release)

	first, err := NewUnixClientTransport().Connect(context.Background(), config)
	if err != nil {
		t.Fatalf("Failed to connect first peer: %v", err)
	}
	defer first.Close()

	// make sure the first handler is running
	if err := first.WriteText([]byte("hold")); err != nil {
		t.Fatalf("Failed to write: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	if _, err := NewUnixClientTransport().Connect(context.Background(), config); err == nil {
		t.Errorf("Second peer must be rejected")
	} else if !strings.Contains(err.Error(), "already has a peer") {
		t.Errorf("Unexpected error: %v", err)
	}
}

// TestMetricsEndpoint tests that the metrics path is served on the bridge socket
func TestMetricsEndpoint(t *testing.T) {
	config, _, _ := startEchoServer(t)

	client := &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", config.Endpoint)
			},
		},
		Timeout: 2 * time.Second,
	}

	resp, err := client.Get("http://unix" + config.MetricsPath)
	if err != nil {
		t.Fatalf("Failed to get metrics: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "dbridge_test_total 1") {
		t.Errorf("Unexpected response %d: %q", resp.StatusCode, body)
	}
}
