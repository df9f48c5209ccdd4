package rooms

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type wsWriter interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// ErrQueueFull is reported by Enqueue when the client's outbound buffer is
// at capacity. The frame is dropped for this client only.
var ErrQueueFull = errors.New("rooms: outbound queue full")

// Client is one WebSocket connection's outbound half: a bounded queue
// drained by a single writer goroutine. Enqueue never blocks.
type Client struct {
	id   string
	send chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

// NewClient allocates a client with the given queue capacity.
func NewClient(id string, queueSize int) *Client {
	if queueSize <= 0 {
		queueSize = 32
	}
	return &Client{
		id:     id,
		send:   make(chan []byte, queueSize),
		closed: make(chan struct{}),
	}
}

// ID is the connection identifier used in logs.
func (c *Client) ID() string { return c.id }

// Enqueue queues a frame for delivery. It returns ErrQueueFull when the
// buffer is at capacity and nil after Close (the frame is silently dropped;
// the writer is gone).
func (c *Client) Enqueue(data []byte) error {
	select {
	case <-c.closed:
		return nil
	default:
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops the writer pump. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.closed) })
}

// WritePump drains the queue onto ws until Close is called or a write
// fails. It owns all writes to the connection, including pings.
func (c *Client) WritePump(ws wsWriter, pingInterval, writeTimeout time.Duration) error {
	if pingInterval <= 0 {
		pingInterval = 20 * time.Second
	}
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}

	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-c.closed:
			deadline := time.Now().Add(writeTimeout)
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			_ = ws.Close()
			return nil
		case <-pingTicker.C:
			deadline := time.Now().Add(writeTimeout)
			if err := ws.WriteControl(websocket.PingMessage, []byte("ping"), deadline); err != nil {
				return err
			}
		case data := <-c.send:
			if err := ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return err
			}
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return err
			}
		}
	}
}
