package realtime

import (
	"sync"

	"github.com/google/uuid"

	auth "github.com/goliatone/go-arena-auth"
)

// Conn is an admitted connection in a namespace
type Conn struct {
	id        string
	seq       uint64
	identity  Identity
	transport Transport
	send      chan Message
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
	logger    auth.Logger
}

func newConn(t Transport, identity Identity, seq uint64, buffer int, logger auth.Logger) *Conn {
	return &Conn{
		id:        uuid.NewString(),
		seq:       seq,
		identity:  identity,
		transport: t,
		send:      make(chan Message, buffer),
		done:      make(chan struct{}),
		logger:    logger,
	}
}

// ID is the per connection socket id
func (c *Conn) ID() string {
	return c.id
}

func (c *Conn) Identity() Identity {
	return c.identity
}

// Emit queues a message for this connection. It never blocks: a full queue
// or a closed connection drops the message.
func (c *Conn) Emit(event string, data any) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- Message{Event: event, Data: data}:
		return true
	case <-c.done:
		return false
	default:
		c.logger.Warn("realtime send buffer full, dropping message",
			"conn_id", c.id,
			"event", event,
		)
		return false
	}
}

func (c *Conn) start() {
	c.wg.Add(1)
	go c.writeLoop()
}

func (c *Conn) writeLoop() {
	defer c.wg.Done()
	for {
		select {
		case msg := <-c.send:
			if err := c.transport.WriteJSON(msg); err != nil {
				c.logger.Debug("realtime write failed", "conn_id", c.id, "error", err)
				c.closeTransport()
				return
			}
		case <-c.done:
			return
		}
	}
}

// Close stops the writer and closes the transport, safe to call twice
func (c *Conn) Close() {
	c.closeTransport()
	c.wg.Wait()
}

func (c *Conn) closeTransport() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.transport.Close()
	})
}

// Closed reports whether the connection was closed
func (c *Conn) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
