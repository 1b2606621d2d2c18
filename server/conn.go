package server

import (
	"golang.org/x/net/websocket"

	"github.com/pongarena/server/protocol"
)

// wsConn adapts a golang.org/x/net/websocket connection to the
// broadcaster.Conn interface, framing every send as JSON the way the
// teacher's connection handling does with websocket.JSON.Send/Receive.
type wsConn struct {
	ws *websocket.Conn
}

func (c *wsConn) Send(env protocol.Envelope) error {
	return websocket.JSON.Send(c.ws, env)
}

func (c *wsConn) Close() error {
	return c.ws.Close()
}
