package agent

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/satriahrh/voicecoach/domain"
)

type received struct {
	Type    int
	Payload []byte
}

// fakeAgent is a minimal agent server. The handler runs once per connection
// with the upgraded socket.
type fakeAgent struct {
	server    *httptest.Server
	protocols chan []string
	messages  chan received
}

func newFakeAgent(t *testing.T, handle func(ws *websocket.Conn)) *fakeAgent {
	t.Helper()

	fa := &fakeAgent{
		protocols: make(chan []string, 1),
		messages:  make(chan received, 64),
	}
	upgrader := websocket.Upgrader{Subprotocols: []string{"token"}}

	fa.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fa.protocols <- websocket.Subprotocols(r)
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		handle(ws)
	}))
	t.Cleanup(fa.server.Close)
	return fa
}

func (fa *fakeAgent) url() string {
	return "ws" + strings.TrimPrefix(fa.server.URL, "http")
}

// collect reads client messages until the client closes
func (fa *fakeAgent) collect(ws *websocket.Conn) {
	for {
		mt, payload, err := ws.ReadMessage()
		if err != nil {
			return
		}
		fa.messages <- received{Type: mt, Payload: payload}
	}
}

func dial(t *testing.T, fa *fakeAgent) *Conn {
	t.Helper()
	d := NewDialer(Config{URL: fa.url(), HandshakeTimeout: 2 * time.Second}, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := d.Dial(ctx, "secret-key")
	require.NoError(t, err)
	return conn.(*Conn)
}

func nextMessage(t *testing.T, fa *fakeAgent) received {
	t.Helper()
	select {
	case m := <-fa.messages:
		return m
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for client message")
		return received{}
	}
}

func nextEvent(t *testing.T, conn *Conn) domain.AgentEvent {
	t.Helper()
	select {
	case ev, ok := <-conn.Events():
		require.True(t, ok, "events channel closed")
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for agent event")
		return nil
	}
}

func TestDialAuthenticatesWithTokenSubprotocol(t *testing.T) {
	fa := newFakeAgent(t, fakeAgentCollect)
	conn := dial(t, fa)
	defer conn.Close()

	assert.Equal(t, []string{"token", "secret-key"}, <-fa.protocols)
}

func fakeAgentCollect(ws *websocket.Conn) {
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

func TestSettingsPrecedeAudio(t *testing.T) {
	var fa *fakeAgent
	fa = newFakeAgent(t, func(ws *websocket.Conn) { fa.collect(ws) })
	conn := dial(t, fa)
	defer conn.Close()

	assert.False(t, conn.IsOpen())
	assert.ErrorIs(t, conn.SendAudio([]byte{1, 2}), domain.ErrNotOpen)

	settings := domain.Settings{
		Audio: domain.AudioSettings{
			Input: domain.AudioInput{Encoding: "linear16", SampleRate: 16000},
		},
	}
	require.NoError(t, conn.SendSettings(settings))
	assert.True(t, conn.IsOpen())
	require.NoError(t, conn.SendAudio([]byte{1, 2}))
	require.NoError(t, conn.SendAudio([]byte{3, 4}))

	first := nextMessage(t, fa)
	require.Equal(t, websocket.TextMessage, first.Type)
	var decoded domain.Settings
	require.NoError(t, json.Unmarshal(first.Payload, &decoded))
	assert.Equal(t, domain.MessageTypeSettings, decoded.Type)
	assert.Equal(t, 16000, decoded.Audio.Input.SampleRate)

	second := nextMessage(t, fa)
	assert.Equal(t, received{Type: websocket.BinaryMessage, Payload: []byte{1, 2}}, second)
	third := nextMessage(t, fa)
	assert.Equal(t, received{Type: websocket.BinaryMessage, Payload: []byte{3, 4}}, third)
}

func TestReadLoopDecodesEvents(t *testing.T) {
	fa := newFakeAgent(t, func(ws *websocket.Conn) {
		ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"Welcome","request_id":"abc"}`))
		ws.WriteMessage(websocket.TextMessage, []byte(`not json`))
		ws.WriteMessage(websocket.BinaryMessage, []byte{0x00, 0x40})
		ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"Mystery"}`))
		ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"ConversationText","role":"user","content":"hi"}`))
		fakeAgentCollect(ws)
	})
	conn := dial(t, fa)
	defer conn.Close()

	assert.Equal(t, domain.WelcomeEvent{RequestID: "abc"}, nextEvent(t, conn))
	// the malformed message is logged and skipped
	assert.Equal(t, domain.AudioEvent{Data: []byte{0x00, 0x40}}, nextEvent(t, conn))
	unknown, ok := nextEvent(t, conn).(domain.UnknownEvent)
	require.True(t, ok)
	assert.Equal(t, "Mystery", unknown.Type)
	assert.Equal(t, domain.ConversationTextEvent{Role: "user", Content: "hi"}, nextEvent(t, conn))
}

func TestNormalRemoteCloseIsNotAnError(t *testing.T) {
	fa := newFakeAgent(t, func(ws *websocket.Conn) {
		ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		fakeAgentCollect(ws)
	})
	conn := dial(t, fa)
	defer conn.Close()

	for range conn.Events() {
	}
	assert.NoError(t, conn.Err())
	assert.False(t, conn.IsOpen())
}

func TestAbnormalRemoteCloseIsReported(t *testing.T) {
	fa := newFakeAgent(t, func(ws *websocket.Conn) {
		ws.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "boom"))
		fakeAgentCollect(ws)
	})
	conn := dial(t, fa)
	defer conn.Close()

	for range conn.Events() {
	}
	err := conn.Err()
	assert.ErrorIs(t, err, domain.ErrSocketClosedUnexpectedly)
	var closeErr *websocket.CloseError
	require.True(t, errors.As(err, &closeErr), "got %v", err)
	assert.Equal(t, websocket.CloseInternalServerErr, closeErr.Code)
}

func TestDroppedTransportIsReported(t *testing.T) {
	fa := newFakeAgent(t, func(ws *websocket.Conn) {
		// return without a close frame
	})
	conn := dial(t, fa)
	defer conn.Close()

	for range conn.Events() {
	}
	// a missing close frame surfaces as close code 1006
	assert.ErrorIs(t, conn.Err(), domain.ErrSocketClosedUnexpectedly)
}

func TestLocalCloseIsIdempotent(t *testing.T) {
	var fa *fakeAgent
	fa = newFakeAgent(t, func(ws *websocket.Conn) { fa.collect(ws) })
	conn := dial(t, fa)
	require.NoError(t, conn.SendSettings(domain.Settings{}))

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())

	assert.NoError(t, conn.Err())
	assert.False(t, conn.IsOpen())
	assert.ErrorIs(t, conn.SendAudio([]byte{1, 2}), domain.ErrNotOpen)
	assert.ErrorIs(t, conn.SendSettings(domain.Settings{}), domain.ErrNotOpen)
}

func TestDialFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	d := NewDialer(Config{URL: "ws" + strings.TrimPrefix(server.URL, "http")}, zap.NewNop())
	_, err := d.Dial(context.Background(), "bad-key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}
