package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ggeejehd-eng/mj36/model"
)

func dialWebsocket(t *testing.T, server *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?token=" + token
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	return conn
}

func TestWebsocketRequiresAuth(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/ws", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebsocketReceivesBroadcastSignals(t *testing.T) {
	s := newTestServer(t)
	httpServer := httptest.NewServer(s.router)
	defer httpServer.Close()

	token := s.registerUser(t, "jehad")
	conn := dialWebsocket(t, httpServer, token)
	defer conn.Close()

	assert.Eventually(t, func() bool {
		return s.signals.GetActiveConnectionsCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	s.signals.PushSignalToAll(&model.Signal{
		SignalType: model.SignalTypeNotice, Notice: "hello",
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var signal model.Signal
	require.NoError(t, conn.ReadJSON(&signal))
	assert.Equal(t, model.SignalTypeNotice, signal.SignalType)
	assert.Equal(t, "hello", signal.Notice)
}

// A client that drops without a close handshake must still be reaped from
// the signal registry, even while no signals are flowing.
func TestWebsocketDisconnectReapsRegistryEntry(t *testing.T) {
	s := newTestServer(t)
	httpServer := httptest.NewServer(s.router)
	defer httpServer.Close()

	token := s.registerUser(t, "jehad")
	conn := dialWebsocket(t, httpServer, token)

	assert.Eventually(t, func() bool {
		return s.signals.GetActiveConnectionsCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())

	assert.Eventually(t, func() bool {
		return s.signals.GetActiveConnectionsCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
