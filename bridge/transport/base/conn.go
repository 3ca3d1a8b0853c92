package base

import (
	"github.com/gorilla/websocket"
	"sync"
	"time"
)

const closeGracePeriod = time.Second

// wsConn implements transport.IBridgeConn on top of a gorilla websocket connection
type wsConn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex // gorilla allows only one concurrent writer
	once    sync.Once
}

func newConn(ws *websocket.Conn) *wsConn {
	return &wsConn{ws: ws}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IBridgeConn)
// --------------------------------------------------------------------------

func (c *wsConn) ReadMessage() (bool, []byte, error) {
	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			return false, nil, err
		}
		switch mt {
		case websocket.TextMessage:
			return false, data, nil
		case websocket.BinaryMessage:
			return true, data, nil
		}
	}
}

func (c *wsConn) WriteText(data []byte) error {
	return c.write(websocket.TextMessage, data)
}

func (c *wsConn) WriteBinary(data []byte) error {
	return c.write(websocket.BinaryMessage, data)
}

func (c *wsConn) Close() error {
	var err error
	c.once.Do(func() {
		// try to tell the peer, the connection is closed either way
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(closeGracePeriod))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}

func (c *wsConn) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (c *wsConn) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(messageType, data)
}

// IsNormalClose reports whether err is a regular close of the peer
func IsNormalClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
