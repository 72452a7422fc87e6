package realtime_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/goliatone/go-arena-auth/realtime"
)

const waitFor = 2 * time.Second
const tick = 5 * time.Millisecond

// fasthttp starts a process wide date ticker the first time a fiber app
// serves a request, it never exits
var ignoreServerDate = goleak.IgnoreAnyFunction("github.com/valyala/fasthttp.updateServerDate.func1")

func verifyNoLeaks(t *testing.T) {
	t.Helper()
	goleak.VerifyNone(t, ignoreServerDate)
}

type recordedFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// fakeTransport is an in memory Transport. Frames pushed with send are read
// by the server, frames written by the server are recorded.
type fakeTransport struct {
	in     chan []byte
	closed chan struct{}
	once   sync.Once

	mu      sync.Mutex
	written []recordedFrame
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		in:     make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (f *fakeTransport) ReadJSON(v any) error {
	select {
	case raw := <-f.in:
		return json.Unmarshal(raw, v)
	case <-f.closed:
		return io.EOF
	}
}

func (f *fakeTransport) WriteJSON(v any) error {
	select {
	case <-f.closed:
		return errors.New("transport closed")
	default:
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var frame recordedFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return err
	}

	f.mu.Lock()
	f.written = append(f.written, frame)
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func (f *fakeTransport) send(t *testing.T, event string, data any) {
	t.Helper()
	frame := map[string]any{"event": event}
	if data != nil {
		frame["data"] = data
	}
	raw, err := json.Marshal(frame)
	require.NoError(t, err)
	f.in <- raw
}

func (f *fakeTransport) frames(event string) []recordedFrame {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []recordedFrame
	for _, fr := range f.written {
		if fr.Event == event {
			out = append(out, fr)
		}
	}
	return out
}

// waitEvent waits for the n-th frame of event and decodes its data into v
func (f *fakeTransport) waitEvent(t *testing.T, event string, n int, v any) {
	t.Helper()
	require.Eventually(t, func() bool { return len(f.frames(event)) >= n }, waitFor, tick, "waiting for %s #%d", event, n)
	if v != nil {
		require.NoError(t, json.Unmarshal(f.frames(event)[n-1].Data, v))
	}
}

// staticAdmitter admits by access token
type staticAdmitter map[string]realtime.Identity

func (s staticAdmitter) Admit(_ context.Context, hs realtime.Handshake) (realtime.Identity, error) {
	id, ok := s[hs.AccessToken]
	if !ok {
		return realtime.Identity{}, errors.New("unknown token")
	}
	return id, nil
}

type client struct {
	tr   *fakeTransport
	conn *realtime.Conn
	err  error
	done chan struct{}
}

func (c *client) disconnect(t *testing.T) {
	t.Helper()
	_ = c.tr.Close()
	select {
	case <-c.done:
	case <-time.After(waitFor):
		t.Fatal("serve did not return after disconnect")
	}
}

// connect serves a fake transport in ns and waits until it is admitted
func connect(t *testing.T, ns *realtime.Namespace, accessToken string) *client {
	t.Helper()

	known := map[string]bool{}
	for _, c := range ns.Snapshot() {
		known[c.ID()] = true
	}

	cl := &client{tr: newFakeTransport(), done: make(chan struct{})}
	go func() {
		defer close(cl.done)
		cl.err = ns.Serve(context.Background(), cl.tr, realtime.Handshake{
			AccessToken:  accessToken,
			SessionToken: "session",
		})
	}()

	require.Eventually(t, func() bool {
		for _, c := range ns.Snapshot() {
			if !known[c.ID()] {
				cl.conn = c
				return true
			}
		}
		return false
	}, waitFor, tick)

	t.Cleanup(func() {
		_ = cl.tr.Close()
		<-cl.done
	})
	return cl
}

var (
	ada   = realtime.Identity{PlayerID: "6f1c7d2e-8a51-4c0e-9b1d-2f3a4b5c6d7e", Nickname: "ada"}
	grace = realtime.Identity{PlayerID: "0b9a8c7d-6e5f-4a3b-8c2d-1e0f9a8b7c6d", Nickname: "grace"}
	alan  = realtime.Identity{PlayerID: "a1b2c3d4-e5f6-4a7b-8c9d-0e1f2a3b4c5d", Nickname: "alan"}
)

func testAdmitter() staticAdmitter {
	return staticAdmitter{"ada": ada, "grace": grace, "alan": alan}
}

func newRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// counterValue reads a single labelled counter from reg
func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if hasLabels(m.GetLabel(), labels) {
				if m.GetCounter() != nil {
					return m.GetCounter().GetValue()
				}
				return m.GetGauge().GetValue()
			}
		}
	}
	return 0
}

func hasLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, p := range pairs {
		if v, ok := want[p.GetName()]; ok && v == p.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
