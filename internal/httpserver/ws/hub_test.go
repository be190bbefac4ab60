package ws

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

	"github.com/MrSnakeDoc/marky/internal/domain"
	"github.com/MrSnakeDoc/marky/internal/logger"
)

func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(logger.Nop(), nil)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := domain.Session{
			UserID: r.URL.Query().Get("user"),
			Token:  r.URL.Query().Get("token"),
		}
		_ = hub.Serve(w, r, sess)
	}))
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, user, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?user=" + user + "&token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func waitClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Count() == n }, 2*time.Second, 5*time.Millisecond)
}

func readEnvelope(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var env map[string]any
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func TestBookmarksReloadedReachesOwnerOnly(t *testing.T) {
	hub, srv := newTestHub(t)

	ada := dial(t, srv, "ada", "t1")
	bob := dial(t, srv, "bob", "t2")
	waitClients(t, hub, 2)

	hub.BookmarksReloaded("ada", []domain.Bookmark{{ID: "1", Title: "Go", URL: "https://go.dev"}})
	hub.BookmarksReloaded("bob", nil)

	env := readEnvelope(t, ada)
	assert.Equal(t, EventBookmarksReloaded, env["type"])
	data := env["data"].(map[string]any)
	assert.EqualValues(t, 1, data["total"])
	assert.Len(t, data["bookmarks"], 1)

	env = readEnvelope(t, bob)
	assert.Equal(t, EventBookmarksReloaded, env["type"])
	data = env["data"].(map[string]any)
	assert.EqualValues(t, 0, data["total"])
	assert.NotNil(t, data["bookmarks"], "an empty list is sent as [] not null")
}

func TestEndSessionDisconnectsToken(t *testing.T) {
	hub, srv := newTestHub(t)

	first := dial(t, srv, "ada", "t1")
	second := dial(t, srv, "ada", "t2")
	waitClients(t, hub, 2)

	hub.EndSession("t1", "signed_out")

	env := readEnvelope(t, first)
	assert.Equal(t, EventSessionEnded, env["type"])
	assert.Equal(t, "/login", env["data"].(map[string]any)["redirect"])

	_, _, err := first.ReadMessage()
	assert.Error(t, err, "the connection is closed after the notice")

	waitClients(t, hub, 1)
	hub.BookmarksReloaded("ada", nil)
	assert.Equal(t, EventBookmarksReloaded, readEnvelope(t, second)["type"])
}

func TestCloseRefusesNewClients(t *testing.T) {
	hub, srv := newTestHub(t)

	conn := dial(t, srv, "ada", "t1")
	waitClients(t, hub, 1)

	hub.Close()
	assert.Equal(t, 0, hub.Count())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)

	late := dial(t, srv, "ada", "t2")
	require.NoError(t, late.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = late.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
	assert.Equal(t, 0, hub.Count())
}
