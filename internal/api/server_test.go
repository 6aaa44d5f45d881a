package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vtouch/internal/config"
	"vtouch/internal/executor"
	"vtouch/internal/input"
	"vtouch/internal/protocol"
	"vtouch/internal/reactor"
)

type fakeStatus struct{ st reactor.Status }

func (f fakeStatus) Status() reactor.Status { return f.st }

type fakeStats struct{ st executor.Stats }

func (f fakeStats) Stats() executor.Stats { return f.st }

func newTestServer(t *testing.T, token string) (*Server, *httptest.Server, chan protocol.Message) {
	t.Helper()
	out := make(chan protocol.Message, 16)
	s := NewServer(config.API{Enabled: true, Token: token}, "phone",
		fakeStatus{reactor.Status{Calibrated: true, Messages: 3}},
		fakeStats{executor.Stats{Executed: 7, Coalesced: 2}},
		out)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Close()
		ts.Close()
	})
	return s, ts, out
}

func dial(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) protocol.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env protocol.Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func send(t *testing.T, conn *websocket.Conn, typ protocol.MessageType, payload interface{}) {
	t.Helper()
	env, err := protocol.NewEnvelope(typ, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(env))
}

func receive(t *testing.T, out <-chan protocol.Message) protocol.Message {
	t.Helper()
	select {
	case m := <-out:
		return m
	case <-time.After(2 * time.Second):
		t.Fatal("no message forwarded")
	}
	return protocol.Message{}
}

func TestHealthAndStatus(t *testing.T) {
	_, ts, _ := newTestServer(t, "")

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/api/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body statusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "phone", body.Environment)
	assert.True(t, body.Reactor.Calibrated)
	assert.Equal(t, uint64(3), body.Reactor.Messages)
	assert.Equal(t, uint64(7), body.Executor.Executed)
	assert.NotEmpty(t, body.Session)

	resp, err = http.Post(ts.URL+"/api/status", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestTokenAuth(t *testing.T) {
	_, ts, _ := newTestServer(t, "secret")

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode, "health is open")

	resp, err = http.Get(ts.URL + "/api/status")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/status", nil)
	req.Header.Set("Authorization", "Bearer secret")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	_, resp, err = websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn := dial(t, ts, "?token=secret")
	assert.Equal(t, protocol.TypeAck, readEnvelope(t, conn).Type)
}

func TestWebSocketAck(t *testing.T) {
	s, ts, _ := newTestServer(t, "")
	conn := dial(t, ts, "")

	env := readEnvelope(t, conn)
	require.Equal(t, protocol.TypeAck, env.Type)
	var ack protocol.AckPayload
	require.NoError(t, json.Unmarshal(env.Payload, &ack))
	assert.Equal(t, s.Session(), ack.Session)
	assert.NotEmpty(t, ack.ClientID)

	assert.Eventually(t, func() bool { return s.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	send(t, conn, protocol.TypePing, nil)
	assert.Equal(t, protocol.TypePing, readEnvelope(t, conn).Type)
}

func TestWebSocketLines(t *testing.T) {
	s, ts, out := newTestServer(t, "")
	conn := dial(t, ts, "")
	readEnvelope(t, conn)

	send(t, conn, protocol.TypeLine, "M 10 20")
	send(t, conn, protocol.TypeLine, "garbage line")
	send(t, conn, protocol.TypeLine, "Ca")
	send(t, conn, protocol.TypeLine, "exit")

	assert.Equal(t, protocol.Move(10, 20), receive(t, out))
	assert.Equal(t, protocol.Key("Ca"), receive(t, out))
	assert.Equal(t, protocol.Exit(), receive(t, out))

	// The exit sentinel ends the client session.
	assert.Eventually(t, func() bool { return s.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocketRawEvents(t *testing.T) {
	_, ts, out := newTestServer(t, "")
	conn := dial(t, ts, "")
	readEnvelope(t, conn)

	send(t, conn, protocol.TypeRaw, protocol.RawEvent{Type: protocol.RawPointerMove, X: 5, Y: 6})
	send(t, conn, protocol.TypeRaw, protocol.RawEvent{Type: protocol.RawPointerMove, X: 5, Y: 6})
	send(t, conn, protocol.TypeRaw, protocol.RawEvent{Type: protocol.RawPointerBtn, Button: input.ButtonRight, Pressed: true, X: 5, Y: 6})
	send(t, conn, protocol.TypeRaw, protocol.RawEvent{Type: protocol.RawPointerBtn, Button: input.ButtonRight, X: 5, Y: 6})

	assert.Equal(t, protocol.Move(5, 6), receive(t, out))
	assert.Equal(t, protocol.Click(true, 5, 6), receive(t, out))

	select {
	case m := <-out:
		t.Fatalf("unexpected message %v", m)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestCloseDisconnectsClients(t *testing.T) {
	s, ts, _ := newTestServer(t, "")
	conn := dial(t, ts, "")
	readEnvelope(t, conn)
	require.Eventually(t, func() bool { return s.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	s.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Eventually(t, func() bool { return s.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}
