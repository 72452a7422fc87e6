package realtime_test

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/goliatone/go-arena-auth"
	"github.com/goliatone/go-arena-auth/realtime"
)

func newLobby(opts ...realtime.HubOption) (*realtime.Hub, *realtime.Namespace) {
	hub := realtime.NewHub(opts...)
	ns := hub.Namespace("lobby")
	ns.Use(testAdmitter())
	return hub, ns
}

func TestHub_NamespaceIsReused(t *testing.T) {
	hub := realtime.NewHub()
	assert.Same(t, hub.Namespace("lobby"), hub.Namespace("lobby"))
	assert.NotSame(t, hub.Namespace("lobby"), hub.Namespace("chat"))
	assert.Equal(t, "chat", hub.Namespace("chat").Name())
}

func TestNamespace_ServeLifecycle(t *testing.T) {
	defer verifyNoLeaks(t)

	_, ns := newLobby()

	var connected, disconnected atomic.Int32
	ns.OnConnect(func(context.Context, *realtime.Conn) { connected.Add(1) })
	ns.OnDisconnect(func(context.Context, *realtime.Conn) { disconnected.Add(1) })

	a := connect(t, ns, "ada")
	b := connect(t, ns, "grace")

	require.Eventually(t, func() bool { return connected.Load() == 2 }, waitFor, tick)
	assert.Equal(t, ada, a.conn.Identity())
	assert.NotEqual(t, a.conn.ID(), b.conn.ID())

	snapshot := ns.Snapshot()
	require.Len(t, snapshot, 2)
	assert.Equal(t, a.conn.ID(), snapshot[0].ID())
	assert.Equal(t, b.conn.ID(), snapshot[1].ID())

	a.disconnect(t)
	assert.NoError(t, a.err)
	assert.Equal(t, int32(1), disconnected.Load())
	assert.True(t, a.conn.Closed())

	_, ok := ns.Conn(a.conn.ID())
	assert.False(t, ok)
	assert.Len(t, ns.Snapshot(), 1)

	b.disconnect(t)
}

func TestNamespace_RejectedHandshake(t *testing.T) {
	defer verifyNoLeaks(t)

	reg := newRegistry()
	_, ns := newLobby(realtime.WithMetrics(auth.NewMetrics(reg)))

	var connected atomic.Int32
	ns.OnConnect(func(context.Context, *realtime.Conn) { connected.Add(1) })

	tr := newFakeTransport()
	err := ns.Serve(context.Background(), tr, realtime.Handshake{AccessToken: "mallory", SessionToken: "x"})

	require.Error(t, err)
	assert.True(t, tr.isClosed())
	assert.Empty(t, ns.Snapshot())
	assert.Equal(t, int32(0), connected.Load())

	frames := tr.frames(realtime.EventConnectionError)
	require.Len(t, frames, 1)

	var body realtime.ConnectionErrorBody
	require.NoError(t, json.Unmarshal(frames[0].Data, &body))
	assert.Equal(t, "connection refused", body.Message)
	assert.Equal(t, float64(1), counterValue(t, reg, "arena_realtime_admissions_total", map[string]string{
		"namespace": "lobby",
		"result":    "rejected",
	}))
}

func TestNamespace_WithoutAdmissionRejectsEverything(t *testing.T) {
	hub := realtime.NewHub()
	ns := hub.Namespace("open")

	tr := newFakeTransport()
	err := ns.Serve(context.Background(), tr, realtime.Handshake{AccessToken: "ada", SessionToken: "s"})

	require.Error(t, err)
	assert.True(t, tr.isClosed())
	assert.Len(t, tr.frames(realtime.EventConnectionError), 1)
}

func TestNamespace_Events(t *testing.T) {
	defer verifyNoLeaks(t)

	_, ns := newLobby()
	ns.Handle("echo", func(_ context.Context, c *realtime.Conn, data json.RawMessage) error {
		c.Emit("echo", data)
		return nil
	})
	ns.Handle("fail", func(context.Context, *realtime.Conn, json.RawMessage) error {
		return auth.ErrInvalidOpponent
	})
	ns.Handle("crash", func(context.Context, *realtime.Conn, json.RawMessage) error {
		return goerrors.New("db connection string leaked", goerrors.CategoryInternal)
	})

	a := connect(t, ns, "ada")

	t.Run("handler output", func(t *testing.T) {
		a.tr.send(t, "echo", map[string]string{"hello": "world"})

		var got map[string]string
		a.tr.waitEvent(t, "echo", 1, &got)
		assert.Equal(t, "world", got["hello"])
	})

	t.Run("unknown event", func(t *testing.T) {
		a.tr.send(t, "nope", nil)

		var body realtime.ExceptionBody
		a.tr.waitEvent(t, realtime.EventException, 1, &body)
		assert.Equal(t, "error", body.Status)
		assert.Equal(t, "UNKNOWN_EVENT", body.Error.TextCode)
	})

	t.Run("handler error keeps the connection open", func(t *testing.T) {
		a.tr.send(t, "fail", nil)

		var body realtime.ExceptionBody
		a.tr.waitEvent(t, realtime.EventException, 2, &body)
		assert.Equal(t, auth.TextCodeInvalidOpponent, body.Error.TextCode)
		assert.False(t, a.conn.Closed())
	})

	t.Run("internal errors are not leaked", func(t *testing.T) {
		a.tr.send(t, "crash", nil)

		var body realtime.ExceptionBody
		a.tr.waitEvent(t, realtime.EventException, 3, &body)
		assert.Equal(t, "internal server error", body.Error.Message)
	})

	a.disconnect(t)
}

func TestNamespace_Rooms(t *testing.T) {
	defer verifyNoLeaks(t)

	_, ns := newLobby()
	a := connect(t, ns, "ada")
	b := connect(t, ns, "grace")
	c := connect(t, ns, "alan")

	ns.Join("room-1", a.conn)
	ns.Join("room-1", b.conn)
	assert.ElementsMatch(t, []string{a.conn.ID(), b.conn.ID()}, ns.RoomMembers("room-1"))

	ns.ToRoom("room-1", "ping", map[string]int{"n": 1})
	a.tr.waitEvent(t, "ping", 1, nil)
	b.tr.waitEvent(t, "ping", 1, nil)

	ns.Leave("room-1", b.conn)
	assert.Equal(t, []string{a.conn.ID()}, ns.RoomMembers("room-1"))

	a.disconnect(t)
	assert.Empty(t, ns.RoomMembers("room-1"))

	ns.Join("room-2", a.conn)
	assert.Empty(t, ns.RoomMembers("room-2"))

	ns.Join("room-3", b.conn)
	ns.Join("room-3", c.conn)
	ns.ClearRoom("room-3")
	assert.Empty(t, ns.RoomMembers("room-3"))

	assert.Empty(t, c.tr.frames("ping"))

	b.disconnect(t)
	c.disconnect(t)
}

func TestNamespace_BroadcastExcept(t *testing.T) {
	defer verifyNoLeaks(t)

	_, ns := newLobby()
	a := connect(t, ns, "ada")
	b := connect(t, ns, "grace")

	ns.BroadcastExcept(a.conn.ID(), "note", nil)
	ns.Broadcast("all", nil)

	b.tr.waitEvent(t, "note", 1, nil)
	a.tr.waitEvent(t, "all", 1, nil)
	b.tr.waitEvent(t, "all", 1, nil)
	assert.Empty(t, a.tr.frames("note"))

	assert.True(t, ns.Emit(b.conn.ID(), "direct", nil))
	assert.False(t, ns.Emit("missing", "direct", nil))

	a.disconnect(t)
	b.disconnect(t)
}

func TestConn_EmitNeverBlocks(t *testing.T) {
	defer verifyNoLeaks(t)

	hub, ns := newLobby(realtime.WithSendBuffer(1))
	a := connect(t, ns, "ada")

	a.disconnect(t)
	assert.False(t, a.conn.Emit("late", nil))

	b := connect(t, ns, "grace")
	for i := 0; i < 100; i++ {
		b.conn.Emit("flood", i)
	}

	hub.Close()
	<-b.done
	assert.True(t, b.conn.Closed())
}
