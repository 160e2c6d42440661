package webchat

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayhub/relay-gateway/internal/channel"
	"github.com/relayhub/relay-gateway/internal/dispatch"
)

func TestName(t *testing.T) {
	adapter := NewAdapter(8097, nil)
	if adapter.Name() != "webchat" {
		t.Errorf("expected name webchat, got %s", adapter.Name())
	}
}

func TestIsEnabled(t *testing.T) {
	if !NewAdapter(8097, nil).IsEnabled() {
		t.Error("expected adapter with port to be enabled")
	}
	if NewAdapter(0, nil).IsEnabled() {
		t.Error("expected adapter without port to be disabled")
	}
}

// dialTest connects a websocket client straight to the adapter's handler.
func dialTest(t *testing.T, a *Adapter, userID string) (*websocket.Conn, func()) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(a.wsHandler))
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?user_id=" + userID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn, func() {
		conn.Close()
		srv.Close()
	}
}

func TestInboundFrameReachesIncoming(t *testing.T) {
	a := NewAdapter(8097, nil)
	conn, done := dialTest(t, a, "u1")
	defer done()

	err := conn.WriteJSON(WSMessage{Type: "message", Content: "hello there"})
	require.NoError(t, err)

	select {
	case msg := <-a.Incoming():
		assert.Equal(t, "webchat", msg.Channel)
		assert.Equal(t, "u1", msg.UserID)
		assert.Equal(t, "hello there", msg.Content)
		assert.NotEmpty(t, msg.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("inbound frame never reached Incoming()")
	}
}

func TestNonMessageFramesIgnored(t *testing.T) {
	a := NewAdapter(8097, nil)
	conn, done := dialTest(t, a, "u1")
	defer done()

	require.NoError(t, conn.WriteJSON(WSMessage{Type: "ping"}))
	require.NoError(t, conn.WriteJSON(WSMessage{Type: "message", Content: "real"}))

	select {
	case msg := <-a.Incoming():
		assert.Equal(t, "real", msg.Content)
	case <-time.After(2 * time.Second):
		t.Fatal("message frame never arrived")
	}
}

func TestSendMessageDeliversReply(t *testing.T) {
	a := NewAdapter(8097, nil)
	conn, done := dialTest(t, a, "u1")
	defer done()

	// The handler registers the connection after the upgrade; wait for it.
	require.Eventually(t, func() bool {
		a.connMux.RLock()
		defer a.connMux.RUnlock()
		_, ok := a.conns["u1"]
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	err := a.SendMessage("u1", &channel.Response{
		Reply:     "Paris is the capital of France.",
		Model:     "openai/gpt-5-mini",
		Reasoning: "Default fallback model for simple queries",
		Performance: &dispatch.Performance{
			Throughput:             "150 tps",
			ActualTimeToFirstToken: "420ms",
		},
	})
	require.NoError(t, err)

	var frame WSMessage
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "message", frame.Type)
	assert.Equal(t, "Paris is the capital of France.", frame.Content)
	assert.Equal(t, "openai/gpt-5-mini", frame.Model)
	assert.Equal(t, "Default fallback model for simple queries", frame.Reasoning)
	require.NotNil(t, frame.Performance)
	assert.Equal(t, "420ms", frame.Performance.ActualTimeToFirstToken)
}

func TestSendMessageUnknownUserIsNoop(t *testing.T) {
	a := NewAdapter(8097, nil)
	assert.NoError(t, a.SendMessage("nobody", &channel.Response{Reply: "hi"}))
}

func TestConcurrentSendsOneConnection(t *testing.T) {
	a := NewAdapter(8097, nil)
	conn, done := dialTest(t, a, "u1")
	defer done()

	require.Eventually(t, func() bool {
		a.connMux.RLock()
		defer a.connMux.RUnlock()
		_, ok := a.conns["u1"]
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	// Drain replies so the server side never blocks on a full buffer.
	const sends = 32
	received := make(chan struct{}, sends)
	go func() {
		for {
			var frame WSMessage
			if err := conn.ReadJSON(&frame); err != nil {
				return
			}
			received <- struct{}{}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < sends; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, a.SendMessage("u1", &channel.Response{Reply: "reply"}))
		}()
	}
	wg.Wait()

	for i := 0; i < sends; i++ {
		select {
		case <-received:
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d of %d replies arrived", i, sends)
		}
	}
}

func TestCloseConnsUnblocksReader(t *testing.T) {
	a := NewAdapter(8097, nil)
	conn, done := dialTest(t, a, "u1")
	defer done()

	require.Eventually(t, func() bool {
		a.connMux.RLock()
		defer a.connMux.RUnlock()
		return len(a.conns) == 1
	}, 2*time.Second, 10*time.Millisecond)

	close(a.stopCh)
	a.closeConns()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame WSMessage
	assert.Error(t, conn.ReadJSON(&frame))

	a.connMux.RLock()
	defer a.connMux.RUnlock()
	assert.Empty(t, a.conns)
}
