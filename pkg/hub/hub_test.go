package hub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T, opts ...Option) *Hub {
	t.Helper()
	h := New("test", opts...)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Run(ctx)
	require.Eventually(t, h.IsRunning, time.Second, 5*time.Millisecond)
	return h
}

func join(t *testing.T, h *Hub) *Client {
	t.Helper()
	c := newClient(h)
	require.True(t, h.attach(c))
	return c
}

func recv(t *testing.T, c *Client) Message {
	t.Helper()
	select {
	case msg, ok := <-c.send:
		require.True(t, ok, "send channel closed")
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func TestHub_FanOut(t *testing.T) {
	h := startHub(t)
	a, b := join(t, h), join(t, h)
	assert.Eventually(t, func() bool { return h.ClientCount() == 2 }, time.Second, 5*time.Millisecond)
	assert.NotEqual(t, a.ID(), b.ID())

	h.BroadcastBinary([]byte{0xFF, 0xD8})

	for _, c := range []*Client{a, b} {
		msg := recv(t, c)
		assert.Equal(t, BinaryMessage, msg.Type)
		assert.Equal(t, []byte{0xFF, 0xD8}, msg.Data)
	}
}

func TestHub_Unregister(t *testing.T) {
	h := startHub(t)
	c := join(t, h)
	h.unregister <- c

	_, ok := <-c.send
	assert.False(t, ok)
	assert.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_Replay(t *testing.T) {
	h := startHub(t, WithReplay())

	require.NoError(t, h.BroadcastJSON(map[string]int{"frame": 7}))
	// Wait until the hub has consumed the broadcast
	first := join(t, h)
	msg := recv(t, first)
	assert.JSONEq(t, `{"frame":7}`, string(msg.Data))

	late := join(t, h)
	msg = recv(t, late)
	assert.Equal(t, JSONMessage, msg.Type)
	assert.JSONEq(t, `{"frame":7}`, string(msg.Data))
}

func TestHub_NoReplayByDefault(t *testing.T) {
	h := startHub(t)
	h.BroadcastBinary([]byte("old"))
	time.Sleep(20 * time.Millisecond)

	c := join(t, h)
	select {
	case msg := <-c.send:
		t.Fatalf("unexpected replay: %q", msg.Data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_DropsSlowClient(t *testing.T) {
	h := startHub(t)
	slow := join(t, h)

	for i := 0; i < sendBuffer+1; i++ {
		h.BroadcastBinary([]byte{byte(i)})
		time.Sleep(time.Millisecond)
	}

	assert.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, 5*time.Millisecond)

	// Buffered messages drain, then the channel is closed
	n := 0
	for range slow.send {
		n++
	}
	assert.Equal(t, sendBuffer, n)
}

func TestHub_StopClosesClients(t *testing.T) {
	h := New("stop")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	c := join(t, h)
	cancel()
	<-done

	_, ok := <-c.send
	assert.False(t, ok)
	assert.False(t, h.IsRunning())
}

func TestHub_StoppedHubDoesNotBlockClients(t *testing.T) {
	h := New("stopped")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h.Run(ctx)

	returned := make(chan bool, 1)
	go func() {
		c := newClient(h)
		ok := h.attach(c)
		h.detach(c)
		returned <- ok
	}()

	select {
	case ok := <-returned:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("register or unregister blocked on a stopped hub")
	}
}

func TestHub_ClientLeavingAfterStop(t *testing.T) {
	h := New("leaving")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(done)
	}()

	c := join(t, h)
	cancel()
	<-done

	left := make(chan struct{})
	go func() {
		h.detach(c)
		close(left)
	}()
	select {
	case <-left:
	case <-time.After(time.Second):
		t.Fatal("unregister blocked after the hub stopped")
	}
}
