package doctorws

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/gorilla/websocket"
)

// errSendBufferFull is returned when a client stops draining its socket.
// The registry treats it like any other failed delivery.
var errSendBufferFull = errors.New("doctorws: send buffer full")

const sendBufferSize = 32

// conn wraps one doctor's WebSocket connection. Outbound frames go through
// a buffered channel drained by a single write pump, so Send is safe from
// any goroutine and never blocks the broadcaster.
type conn struct {
	ws   *websocket.Conn
	send chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func newConn(ws *websocket.Conn) *conn {
	return &conn{
		ws:   ws,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
}

// Send marshals v and queues it for delivery. It satisfies the registry's
// channel contract.
func (c *conn) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return errors.New("doctorws: connection closed")
	case c.send <- data:
		return nil
	default:
		return errSendBufferFull
	}
}

// writePump drains the send queue onto the socket. It owns all writes and
// exits when the queue backs up into a closed connection.
func (c *conn) writePump() {
	defer c.ws.Close()
	for {
		select {
		case <-c.done:
			c.ws.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case data := <-c.send:
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.close()
				return
			}
		}
	}
}

func (c *conn) close() {
	c.closeOnce.Do(func() { close(c.done) })
}
