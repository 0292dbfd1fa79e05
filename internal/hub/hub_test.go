package hub

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/bus"
	"main/internal/chat"
	"main/pkg/websocket"
)

type recorderStub struct {
	mu  sync.Mutex
	got []chat.Payload
}

func (r *recorderStub) Record(p chat.Payload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, p)
}

func (r *recorderStub) recorded() []chat.Payload {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]chat.Payload, len(r.got))
	copy(out, r.got)
	return out
}

func startHub(t *testing.T, mutate func(*Config)) (*Hub, string) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	cfg := Config{Listener: ln, Policy: PolicyEcho}
	if mutate != nil {
		mutate(&cfg)
	}

	h, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = h.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-h.Done():
		case <-time.After(2 * time.Second):
			t.Error("hub did not stop")
		}
	})

	return h, ln.Addr().String()
}

func dialPeer(t *testing.T, addr string) net.Conn {
	t.Helper()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, websocket.Handshake(conn, "127.0.0.1", "/"))
	return conn
}

func sendText(t *testing.T, conn net.Conn, payload []byte) {
	t.Helper()

	frame, err := websocket.BuildFrame(payload, websocket.OpText)
	require.NoError(t, err)
	_, err = conn.Write(frame)
	require.NoError(t, err)
}

func readFrame(t *testing.T, conn net.Conn) websocket.Frame {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, websocket.MaxPayload+8)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	f, err := websocket.ParseFrame(buf[:n])
	require.NoError(t, err)
	return f
}

func expectSilence(t *testing.T, conn net.Conn) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	buf := make([]byte, 512)
	_, err := conn.Read(buf)
	nerr, ok := err.(net.Error)
	require.True(t, ok, "expected a read timeout, got %v", err)
	assert.True(t, nerr.Timeout())
}

func TestEchoPolicy(t *testing.T) {
	_, addr := startHub(t, nil)
	peer := dialPeer(t, addr)

	sendText(t, peer, []byte("marco"))
	f := readFrame(t, peer)
	assert.Equal(t, websocket.OpText, f.Opcode)
	assert.Equal(t, "marco", string(f.Payload))
}

func TestFanOutRelaysToOtherPeers(t *testing.T) {
	rec := &recorderStub{}
	h, addr := startHub(t, func(cfg *Config) {
		cfg.Policy = PolicyFanOut
		cfg.Recorder = rec
	})

	alice := dialPeer(t, addr)
	bob := dialPeer(t, addr)

	sendText(t, alice, chat.Payload{Username: "alice", Message: "hi"}.Encode())

	f := readFrame(t, bob)
	assert.Equal(t, websocket.OpText, f.Opcode)
	assert.Equal(t, "[alice] hi", string(f.Payload))

	// the sender never hears its own message back
	expectSilence(t, alice)

	require.Eventually(t, func() bool {
		return len(rec.recorded()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "alice", rec.recorded()[0].Username)
	assert.EqualValues(t, 1, h.Metrics().Snapshot().MessagesRelayed)
}

func TestFanOutDropsMalformedPayload(t *testing.T) {
	h, addr := startHub(t, func(cfg *Config) { cfg.Policy = PolicyFanOut })

	alice := dialPeer(t, addr)
	bob := dialPeer(t, addr)

	// too short to carry the username length prefix
	sendText(t, alice, []byte{0x00, 0x01})

	expectSilence(t, bob)
	require.Eventually(t, func() bool {
		return h.Metrics().Snapshot().FramesDropped >= 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, h.Metrics().Snapshot().MessagesRelayed)
}

func TestPeerDisconnectKeepsFanOutAlive(t *testing.T) {
	h, addr := startHub(t, func(cfg *Config) { cfg.Policy = PolicyFanOut })

	alice := dialPeer(t, addr)
	bob := dialPeer(t, addr)
	carol := dialPeer(t, addr)

	_ = bob.Close()
	require.Eventually(t, func() bool {
		return h.Metrics().Snapshot().Disconnects >= 1
	}, 2*time.Second, 10*time.Millisecond)

	sendText(t, alice, chat.Payload{Username: "alice", Message: "still here"}.Encode())

	f := readFrame(t, carol)
	assert.Equal(t, "[alice] still here", string(f.Payload))
}

func TestBroadcastSurvivesWriteFailureMidSweep(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	h, err := New(Config{Listener: ln})
	require.NoError(t, err)

	mk := func() (*websocket.Conn, net.Conn) {
		server, client := net.Pipe()
		c := websocket.NewConn(server, nil)
		c.MarkOpen()
		return c, client
	}
	c1, p1 := mk()
	c2, p2 := mk()
	c3, p3 := mk()
	h.registry.Add(c1)
	h.registry.Add(c2)
	h.registry.Add(c3)

	// peer 2's transport is gone but its state still reads open
	_ = p2.Close()

	drain := func(peer net.Conn, out chan<- []byte) {
		buf := make([]byte, websocket.MaxPayload+8)
		n, err := peer.Read(buf)
		if err != nil {
			out <- nil
			return
		}
		out <- append([]byte(nil), buf[:n]...)
	}
	got1 := make(chan []byte, 1)
	got3 := make(chan []byte, 1)
	go drain(p1, got1)
	go drain(p3, got3)

	h.broadcast([]byte("still delivered"), nil)

	for _, ch := range []chan []byte{got1, got3} {
		select {
		case raw := <-ch:
			require.NotNil(t, raw)
			f, err := websocket.ParseFrame(raw)
			require.NoError(t, err)
			assert.Equal(t, "still delivered", string(f.Payload))
		case <-time.After(2 * time.Second):
			t.Fatal("surviving peer missed the broadcast")
		}
	}

	assert.Equal(t, 2, h.registry.Len())
	assert.False(t, h.registry.Remove(c2))
	snap := h.Metrics().Snapshot()
	assert.EqualValues(t, 1, snap.WriteFailures)
	assert.EqualValues(t, 1, snap.Disconnects)
}

func TestTriggerBroadcastsToAll(t *testing.T) {
	h, addr := startHub(t, func(cfg *Config) { cfg.Policy = PolicyIgnore })

	a := dialPeer(t, addr)
	b := dialPeer(t, addr)

	require.NoError(t, h.Trigger([]byte("contents v2")))

	for _, peer := range []net.Conn{a, b} {
		f := readFrame(t, peer)
		assert.Equal(t, websocket.OpText, f.Opcode)
		assert.Equal(t, "contents v2", string(f.Payload))
	}
	assert.EqualValues(t, 1, h.Metrics().Snapshot().TriggerReloads)
}

func TestPingAnsweredWithPong(t *testing.T) {
	_, addr := startHub(t, nil)
	peer := dialPeer(t, addr)

	frame, err := websocket.BuildFrame([]byte("are you there"), websocket.OpPing)
	require.NoError(t, err)
	_, err = peer.Write(frame)
	require.NoError(t, err)

	f := readFrame(t, peer)
	assert.Equal(t, websocket.OpPong, f.Opcode)
	assert.Equal(t, "are you there", string(f.Payload))
}

func TestRejectedHandshakeNeverRegisters(t *testing.T) {
	h, addr := startHub(t, nil)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	// an upgrade request with no key cannot be answered
	req := "GET /chat HTTP/1.1\r\nHost: 127.0.0.1\r\nUpgrade: websocket\r\nConnection: Upgrade\r\n\r\n"
	_, err = conn.Write([]byte(req))
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 512)
	_, err = conn.Read(buf)
	require.Error(t, err)

	snap := h.Metrics().Snapshot()
	assert.EqualValues(t, 1, snap.HandshakeFailures)
	assert.Zero(t, snap.Registered)
}

func TestFallbackServesPlainRequests(t *testing.T) {
	const page = "HTTP/1.1 200 OK\r\nContent-Length: 5\r\n\r\nhello"
	h, addr := startHub(t, func(cfg *Config) {
		cfg.Fallback = func(raw net.Conn, req []byte) {
			_, _ = raw.Write([]byte(page))
		}
	})

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("GET / HTTP/1.1\r\nHost: 127.0.0.1\r\n\r\n"))
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 512)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, page, string(buf[:n]))
	assert.Zero(t, h.Metrics().Snapshot().Registered)
}

func TestQuitNotifiesPeers(t *testing.T) {
	h, addr := startHub(t, nil)
	peer := dialPeer(t, addr)

	// make sure registration happened before asking for shutdown
	sendText(t, peer, []byte("ping me in"))
	_ = readFrame(t, peer)

	h.Quit()

	f := readFrame(t, peer)
	assert.Equal(t, websocket.OpClose, f.Opcode)

	select {
	case <-h.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop after quit")
	}
}

func TestNewRejectsNilListener(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)
}

func TestShutdownUnblocksBackloggedReader(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	h, err := New(Config{Listener: ln, QueueSize: 1})
	require.NoError(t, err)

	// fill the queue so the reader's next publish has no room
	require.NoError(t, h.queue.TryPublish(bus.Event{Kind: bus.KindTrigger}))

	server, client := net.Pipe()
	defer client.Close()
	c := websocket.NewConn(server, nil)
	c.MarkOpen()

	ctx, cancel := context.WithCancel(context.Background())
	h.readers.Add(1)
	go h.readLoop(ctx, c)

	frame, err := websocket.BuildFrame([]byte("backlog"), websocket.OpText)
	require.NoError(t, err)
	_, err = client.Write(frame)
	require.NoError(t, err)

	// transport teardown alone must not be required to free the reader
	_ = c.Close()

	waited := make(chan struct{})
	go func() {
		h.readers.Wait()
		close(waited)
	}()

	cancel()
	select {
	case <-waited:
	case <-time.After(2 * time.Second):
		t.Fatal("reader still parked in publish after shutdown")
	}
}

func TestTeardownClosesQueuedAccepts(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	h, err := New(Config{Listener: ln})
	require.NoError(t, err)

	server, client := net.Pipe()
	defer client.Close()
	require.NoError(t, h.queue.TryPublish(bus.Event{Kind: bus.KindAccept, Raw: server}))

	h.teardown()

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 8)
	_, err = client.Read(buf)
	require.Error(t, err)
	nerr, ok := err.(net.Error)
	assert.False(t, ok && nerr.Timeout(), "queued accept was never closed")
}
