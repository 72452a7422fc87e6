package realtime

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/goliatone/go-errors"

	auth "github.com/goliatone/go-arena-auth"
)

const defaultSendBuffer = 64

// Admitter decides whether a handshake is admitted and with which identity
type Admitter interface {
	Admit(ctx context.Context, hs Handshake) (Identity, error)
}

// HandlerFunc handles a client event. A returned error is reported to the
// caller as an exception event, the connection stays open.
type HandlerFunc func(ctx context.Context, c *Conn, data json.RawMessage) error

// Hook runs on connect and disconnect
type Hook func(ctx context.Context, c *Conn)

// Hub owns the namespaces of a server
type Hub struct {
	mu         sync.Mutex
	namespaces map[string]*Namespace
	logger     auth.Logger
	metrics    *auth.Metrics
	sendBuffer int
	seq        atomic.Uint64
}

type HubOption func(*Hub)

func WithLogger(logger auth.Logger) HubOption {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func WithMetrics(m *auth.Metrics) HubOption {
	return func(h *Hub) {
		h.metrics = m
	}
}

// WithSendBuffer sets the per connection outbound queue size
func WithSendBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		namespaces: make(map[string]*Namespace),
		logger:     auth.NopLogger(),
		sendBuffer: defaultSendBuffer,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Namespace returns the namespace called name, creating it on first use
func (h *Hub) Namespace(name string) *Namespace {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ns, ok := h.namespaces[name]; ok {
		return ns
	}

	ns := &Namespace{
		name:     name,
		hub:      h,
		conns:    make(map[string]*Conn),
		rooms:    make(map[string]map[string]*Conn),
		handlers: make(map[string]HandlerFunc),
	}
	h.namespaces[name] = ns
	return ns
}

// Close closes every connection of every namespace
func (h *Hub) Close() {
	h.mu.Lock()
	namespaces := make([]*Namespace, 0, len(h.namespaces))
	for _, ns := range h.namespaces {
		namespaces = append(namespaces, ns)
	}
	h.mu.Unlock()

	for _, ns := range namespaces {
		for _, c := range ns.Snapshot() {
			c.Close()
		}
	}
}

// Namespace is a set of admitted connections sharing handlers and rooms
type Namespace struct {
	name string
	hub  *Hub

	mu           sync.RWMutex
	admission    Admitter
	handlers     map[string]HandlerFunc
	onConnect    []Hook
	onDisconnect []Hook
	conns        map[string]*Conn
	rooms        map[string]map[string]*Conn
}

func (n *Namespace) Name() string {
	return n.name
}

// Use sets the admission handshake of the namespace. Without one every
// connection is rejected.
func (n *Namespace) Use(a Admitter) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.admission = a
}

func (n *Namespace) Handle(event string, h HandlerFunc) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.handlers[event] = h
}

// OnConnect hooks run after the connection joined the namespace
func (n *Namespace) OnConnect(h Hook) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onConnect = append(n.onConnect, h)
}

// OnDisconnect hooks run after the connection left the namespace
func (n *Namespace) OnDisconnect(h Hook) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.onDisconnect = append(n.onDisconnect, h)
}

// ConnectionErrorBody is sent on a rejected handshake, it never says why
type ConnectionErrorBody struct {
	Message string `json:"message"`
}

// ExceptionBody is sent when an event handler fails
type ExceptionBody struct {
	Status string         `json:"status"`
	Error  ExceptionError `json:"error"`
}

type ExceptionError struct {
	Message  string `json:"message"`
	TextCode string `json:"text_code,omitempty"`
}

// Serve runs the admission handshake for t and, once admitted, serves the
// connection until the transport fails. A rejected handshake gets a
// connection_error frame, is closed and its error returned.
func (n *Namespace) Serve(ctx context.Context, t Transport, hs Handshake) error {
	identity, err := n.admit(ctx, hs)
	if err != nil {
		n.hub.metrics.Admission(n.name, "rejected")
		n.hub.logger.Debug("realtime admission rejected", "namespace", n.name, "error", err)
		_ = t.WriteJSON(Message{
			Event: EventConnectionError,
			Data:  ConnectionErrorBody{Message: "connection refused"},
		})
		_ = t.Close()
		return err
	}
	n.hub.metrics.Admission(n.name, "admitted")

	c := newConn(t, identity, n.hub.seq.Add(1), n.hub.sendBuffer, n.hub.logger)
	c.start()

	n.register(c)
	n.runHooks(ctx, n.hooks(true), c)

	defer func() {
		n.unregister(c)
		c.Close()
		n.runHooks(ctx, n.hooks(false), c)
	}()

	n.readLoop(ctx, c)
	return nil
}

func (n *Namespace) admit(ctx context.Context, hs Handshake) (Identity, error) {
	n.mu.RLock()
	a := n.admission
	n.mu.RUnlock()

	if a == nil {
		return Identity{}, errors.New("namespace has no admission handshake", errors.CategoryInternal).
			WithMetadata(map[string]any{"namespace": n.name})
	}
	return a.Admit(ctx, hs)
}

func (n *Namespace) readLoop(ctx context.Context, c *Conn) {
	for {
		if ctx.Err() != nil {
			return
		}

		var frame Frame
		if err := c.transport.ReadJSON(&frame); err != nil {
			if !c.Closed() {
				n.hub.logger.Debug("realtime read ended", "conn_id", c.id, "error", err)
			}
			return
		}

		n.mu.RLock()
		h, ok := n.handlers[frame.Event]
		n.mu.RUnlock()

		if !ok {
			c.Emit(EventException, exceptionBody(errors.New("unknown event", errors.CategoryBadInput).
				WithTextCode("UNKNOWN_EVENT")))
			continue
		}

		if err := h(ctx, c, frame.Data); err != nil {
			n.hub.logger.Debug("realtime handler failed",
				"namespace", n.name,
				"event", frame.Event,
				"conn_id", c.id,
				"error", err,
			)
			c.Emit(EventException, exceptionBody(err))
		}
	}
}

func exceptionBody(err error) ExceptionBody {
	body := ExceptionBody{Status: "error"}

	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.Category != errors.CategoryInternal {
		body.Error = ExceptionError{Message: richErr.Message, TextCode: richErr.TextCode}
		return body
	}

	body.Error = ExceptionError{Message: "internal server error"}
	return body
}

func (n *Namespace) hooks(connect bool) []Hook {
	n.mu.RLock()
	defer n.mu.RUnlock()

	src := n.onDisconnect
	if connect {
		src = n.onConnect
	}
	out := make([]Hook, len(src))
	copy(out, src)
	return out
}

func (n *Namespace) runHooks(ctx context.Context, hooks []Hook, c *Conn) {
	for _, h := range hooks {
		h(ctx, c)
	}
}

func (n *Namespace) register(c *Conn) {
	n.mu.Lock()
	n.conns[c.id] = c
	n.mu.Unlock()

	n.hub.metrics.ConnectionOpened(n.name)
	n.hub.logger.Debug("realtime connection admitted",
		"namespace", n.name,
		"conn_id", c.id,
		"player_id", c.identity.PlayerID,
	)
}

func (n *Namespace) unregister(c *Conn) {
	n.mu.Lock()
	delete(n.conns, c.id)
	for room, members := range n.rooms {
		delete(members, c.id)
		if len(members) == 0 {
			delete(n.rooms, room)
		}
	}
	n.mu.Unlock()

	n.hub.metrics.ConnectionClosed(n.name)
}

// Snapshot returns the open connections in admission order
func (n *Namespace) Snapshot() []*Conn {
	n.mu.RLock()
	out := make([]*Conn, 0, len(n.conns))
	for _, c := range n.conns {
		out = append(out, c)
	}
	n.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// Conn looks up an open connection by id
func (n *Namespace) Conn(id string) (*Conn, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	c, ok := n.conns[id]
	return c, ok
}

// Emit sends to a single connection
func (n *Namespace) Emit(connID, event string, data any) bool {
	c, ok := n.Conn(connID)
	if !ok {
		return false
	}
	return c.Emit(event, data)
}

// Broadcast sends to every connection of the namespace
func (n *Namespace) Broadcast(event string, data any) {
	for _, c := range n.Snapshot() {
		c.Emit(event, data)
	}
}

// BroadcastExcept sends to every connection but exceptID
func (n *Namespace) BroadcastExcept(exceptID, event string, data any) {
	for _, c := range n.Snapshot() {
		if c.id != exceptID {
			c.Emit(event, data)
		}
	}
}

// Join adds c to room, c must be open in this namespace
func (n *Namespace) Join(room string, c *Conn) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.conns[c.id]; !ok {
		return
	}
	members, ok := n.rooms[room]
	if !ok {
		members = make(map[string]*Conn)
		n.rooms[room] = members
	}
	members[c.id] = c
}

func (n *Namespace) Leave(room string, c *Conn) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if members, ok := n.rooms[room]; ok {
		delete(members, c.id)
		if len(members) == 0 {
			delete(n.rooms, room)
		}
	}
}

// ClearRoom makes every member leave room
func (n *Namespace) ClearRoom(room string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.rooms, room)
}

// RoomMembers returns the connection ids in room
func (n *Namespace) RoomMembers(room string) []string {
	n.mu.RLock()
	defer n.mu.RUnlock()

	members := n.rooms[room]
	out := make([]string, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ToRoom sends to every member of room
func (n *Namespace) ToRoom(room, event string, data any) {
	n.mu.RLock()
	members := make([]*Conn, 0, len(n.rooms[room]))
	for _, c := range n.rooms[room] {
		members = append(members, c)
	}
	n.mu.RUnlock()

	for _, c := range members {
		c.Emit(event, data)
	}
}
