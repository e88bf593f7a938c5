package ws

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sycamoie/Bear-Hole-server/internal/core/domain"
)

type fakeHub struct {
	mu      sync.Mutex
	joins   []domain.JoinRequest
	leaves  []domain.LeaveNotice
	routed  []domain.InboundText
	joinErr error
}

func (f *fakeHub) Join(req domain.JoinRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.joinErr != nil {
		return f.joinErr
	}
	f.joins = append(f.joins, req)
	return nil
}

func (f *fakeHub) Leave(n domain.LeaveNotice) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leaves = append(f.leaves, n)
}

func (f *fakeHub) Route(m domain.InboundText) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.routed = append(f.routed, m)
}

func (f *fakeHub) joinCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.joins)
}

func (f *fakeHub) leaveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.leaves)
}

func (f *fakeHub) routedTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.routed))
	for _, m := range f.routed {
		out = append(out, m.Text)
	}
	return out
}

// startSession serves one upgrade and runs a session against hub.
// Returned channel yields the server-side session once it is live.
func startSession(t *testing.T, hub *fakeHub, probe, timeout time.Duration) (*websocket.Conn, <-chan *Session) {
	t.Helper()

	sessCh := make(chan *Session, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		sess, err := NewSession(context.Background(), conn, 1, hub, probe, timeout, slog.Default())
		if err != nil {
			_ = conn.Close()
			return
		}
		sessCh <- sess
		sess.ReadLoop()
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, sessCh
}

func TestSessionJoinsOnStart(t *testing.T) {
	hub := &fakeHub{}
	_, sessCh := startSession(t, hub, time.Second, 5*time.Second)

	sess := <-sessCh
	require.Equal(t, 1, hub.joinCount())
	assert.Equal(t, sess.ID(), hub.joins[0].ID)
	assert.Equal(t, domain.RoomID(1), hub.joins[0].RoomID)
	assert.NotNil(t, hub.joins[0].Handle)
}

func TestSessionForwardsText(t *testing.T) {
	hub := &fakeHub{}
	client, sessCh := startSession(t, hub, time.Second, 5*time.Second)
	<-sessCh

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("hello room")))

	assert.Eventually(t, func() bool {
		texts := hub.routedTexts()
		return len(texts) == 1 && texts[0] == "hello room"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSessionDeliversOutbound(t *testing.T) {
	hub := &fakeHub{}
	client, sessCh := startSession(t, hub, time.Second, 5*time.Second)
	sess := <-sessCh

	require.NoError(t, sess.Deliver(domain.OutboundText{Text: "first"}))
	require.NoError(t, sess.Deliver(domain.OutboundText{Text: "second"}))

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, data, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, kind)
	assert.Equal(t, "first", string(data))

	// Per-handle order is preserved.
	_, data, err = client.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestSessionEchoesBinary(t *testing.T) {
	hub := &fakeHub{}
	client, sessCh := startSession(t, hub, time.Second, 5*time.Second)
	<-sessCh

	payload := []byte{0x01, 0x02, 0xff}
	require.NoError(t, client.WriteMessage(websocket.BinaryMessage, payload))

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, data, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.BinaryMessage, kind)
	assert.Equal(t, payload, data)
	assert.Empty(t, hub.routedTexts())
}

func TestSessionLeavesOnceOnClose(t *testing.T) {
	hub := &fakeHub{}
	client, sessCh := startSession(t, hub, time.Second, 5*time.Second)
	<-sessCh

	require.NoError(t, client.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	))

	require.Eventually(t, func() bool {
		return hub.leaveCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Both loops raced to stop; Leave still went out exactly once.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, hub.leaveCount())
}

func TestSessionEvictsSilentClient(t *testing.T) {
	hub := &fakeHub{}
	client, sessCh := startSession(t, hub, 20*time.Millisecond, 60*time.Millisecond)
	<-sessCh

	// Swallow pings instead of ponging so the client goes silent from
	// the broker's point of view while the TCP connection stays up.
	client.SetPingHandler(func(string) error { return nil })
	go func() {
		for {
			if _, _, err := client.ReadMessage(); err != nil {
				return
			}
		}
	}()

	require.Eventually(t, func() bool {
		return hub.leaveCount() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSessionSurvivesWhilePonging(t *testing.T) {
	hub := &fakeHub{}
	client, sessCh := startSession(t, hub, 20*time.Millisecond, 100*time.Millisecond)
	<-sessCh

	// The default client ping handler answers pongs as long as the
	// client keeps reading.
	go func() {
		for {
			if _, _, err := client.ReadMessage(); err != nil {
				return
			}
		}
	}()

	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, 0, hub.leaveCount())
}

func TestSessionRejectedJoinNeverLeaves(t *testing.T) {
	hub := &fakeHub{joinErr: domain.ErrRegistryClosed}
	client, _ := startSession(t, hub, time.Second, 5*time.Second)

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := client.ReadMessage()
	require.Error(t, err)

	assert.Equal(t, 0, hub.joinCount())
	assert.Equal(t, 0, hub.leaveCount())
}

func TestDeliverAfterStop(t *testing.T) {
	hub := &fakeHub{}
	client, sessCh := startSession(t, hub, time.Second, 5*time.Second)
	sess := <-sessCh

	require.NoError(t, client.Close())
	require.Eventually(t, func() bool {
		return hub.leaveCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.ErrorIs(t, sess.Deliver(domain.OutboundText{Text: "too late"}), domain.ErrSessionClosed)
}
