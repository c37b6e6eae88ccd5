package realtime

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn blocks ReadMessage until closed and records written frames.
// When release is set, WriteJSON waits on it first.
type fakeConn struct {
	mu       sync.Mutex
	written  []interface{}
	writeErr error
	release  chan struct{}
	closed   chan struct{}
	once     sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{closed: make(chan struct{})}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	<-f.closed
	return 0, nil, io.EOF
}

func (f *fakeConn) WriteJSON(v interface{}) error {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return f.writeErr
	}
	f.written = append(f.written, v)
	return nil
}

func (f *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) frames() []interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]interface{}(nil), f.written...)
}

func TestHub_PushDeliversToEveryConnection(t *testing.T) {
	hub := NewHub()
	phone, laptop, other := newFakeConn(), newFakeConn(), newFakeConn()
	hub.Register(1, phone)
	hub.Register(1, laptop)
	hub.Register(2, other)

	hub.Push(context.Background(), 1, "alice started following you")

	want := Event{Event: EventNotification, Message: "alice started following you"}
	require.Eventually(t, func() bool {
		return len(phone.frames()) == 1 && len(laptop.frames()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []interface{}{want}, phone.frames())
	assert.Equal(t, []interface{}{want}, laptop.frames())
	assert.Empty(t, other.frames())
}

func TestHub_PushWithoutConnectionsIsNoop(t *testing.T) {
	hub := NewHub()
	assert.NotPanics(t, func() {
		hub.Push(context.Background(), 42, "nobody home")
	})
	assert.Equal(t, 0, hub.Connections(42))
}

func TestHub_FailedWriteDropsConnection(t *testing.T) {
	hub := NewHub()
	broken, healthy := newFakeConn(), newFakeConn()
	broken.writeErr = errors.New("broken pipe")
	hub.Register(1, broken)
	hub.Register(1, healthy)

	hub.Push(context.Background(), 1, "hello")

	require.Eventually(t, func() bool { return hub.Connections(1) == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return len(healthy.frames()) == 1 }, time.Second, 5*time.Millisecond)
	select {
	case <-broken.closed:
	case <-time.After(time.Second):
		t.Fatal("broken connection was not closed")
	}
}

func TestHub_StalledConnectionDoesNotBlockPush(t *testing.T) {
	hub := NewHub()
	slow, fast := newFakeConn(), newFakeConn()
	slow.release = make(chan struct{})
	defer close(slow.release)
	hub.Register(1, slow)
	hub.Register(1, fast)

	for i := 1; i <= sendBuffer+2; i++ {
		returned := make(chan struct{})
		go func() {
			hub.Push(context.Background(), 1, "hello")
			close(returned)
		}()
		select {
		case <-returned:
		case <-time.After(time.Second):
			t.Fatalf("push %d blocked on a stalled connection", i)
		}
		require.Eventually(t, func() bool { return len(fast.frames()) == i }, time.Second, 5*time.Millisecond)
	}

	// the stalled connection overflowed its queue and was dropped
	assert.Equal(t, 1, hub.Connections(1))
	select {
	case <-slow.closed:
	default:
		t.Fatal("stalled connection was not closed")
	}
}

func TestHub_ServeUnregistersOnDisconnect(t *testing.T) {
	hub := NewHub()
	conn := newFakeConn()

	done := make(chan struct{})
	go func() {
		hub.Serve(5, conn)
		close(done)
	}()

	require.Eventually(t, func() bool { return hub.Connections(5) == 1 }, time.Second, 5*time.Millisecond)
	conn.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after the connection closed")
	}
	assert.Equal(t, 0, hub.Connections(5))
}

func TestHub_UnregisterTwice(t *testing.T) {
	hub := NewHub()
	id := hub.Register(3, newFakeConn())
	hub.Unregister(3, id)
	hub.Unregister(3, id)
	assert.Equal(t, 0, hub.Connections(3))
}

func TestNewUpgraderCheckOrigin(t *testing.T) {
	up := NewUpgrader([]string{"http://localhost:3000"})

	req, _ := http.NewRequest("GET", "/api/ws", nil)
	assert.True(t, up.CheckOrigin(req))

	req.Header.Set("Origin", "http://localhost:3000")
	assert.True(t, up.CheckOrigin(req))

	req.Header.Set("Origin", "http://evil.example.com")
	assert.False(t, up.CheckOrigin(req))
}
