// internal/handlers/room_ws_test.go
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/THoguet/random-lol/internal/champion"
	"github.com/THoguet/random-lol/internal/gateway"
	"github.com/THoguet/random-lol/internal/random"
	"github.com/THoguet/random-lol/internal/room"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv, _ := newStoppableServer(t)
	return srv
}

// newStoppableServer also returns the func that stops the hub.
func newStoppableServer(t *testing.T) (*httptest.Server, context.CancelFunc) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	roster := champion.NewRoster([]champion.Champion{
		{ID: "1", Name: "Aatrox", Roles: []champion.Lane{champion.Top}},
		{ID: "2", Name: "Lee Sin", Roles: []champion.Lane{champion.Jungle}},
		{ID: "3", Name: "Ahri", Roles: []champion.Lane{champion.Mid}},
		{ID: "4", Name: "Jinx", Roles: []champion.Lane{champion.ADC}},
		{ID: "5", Name: "Thresh", Roles: []champion.Lane{champion.Support}},
	})
	hub := gateway.NewHub(room.New(roster, random.NewSecure(), room.WithLogger(logger)), logger)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(NewRouter(logger, hub, []string{"*"}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return srv, cancel
}

type testClient struct {
	t    *testing.T
	conn *websocket.Conn
	id   string
}

func dial(t *testing.T, srv *httptest.Server) *testClient {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: []string{gateway.Subprotocol}})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close(websocket.StatusNormalClosure, "") })

	tc := &testClient{t: t, conn: c}
	welcome := tc.read()
	require.Equal(t, gateway.EventWelcome, welcome.Type)
	tc.id = welcome.ConnectionID
	return tc
}

func (tc *testClient) send(cmd gateway.Command) {
	tc.t.Helper()
	data, err := json.Marshal(cmd)
	require.NoError(tc.t, err)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(tc.t, tc.conn.Write(ctx, websocket.MessageText, data))
}

func (tc *testClient) read() gateway.Message {
	tc.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := tc.conn.Read(ctx)
	require.NoError(tc.t, err)
	var m gateway.Message
	require.NoError(tc.t, json.Unmarshal(data, &m))
	return m
}

func TestRoomSocket_FullFlow(t *testing.T) {
	srv := newTestServer(t)
	alice := dial(t, srv)
	bob := dial(t, srv)
	assert.NotEqual(t, alice.id, bob.id)

	alice.send(gateway.Command{Type: gateway.CmdCreateRoom, RequestID: "1", PlayerName: "Alice"})
	ack := alice.read()
	require.Equal(t, gateway.TypeAck, ack.Type)
	require.True(t, ack.Success)
	roomID := ack.RoomID
	require.Equal(t, gateway.EventRoomState, alice.read().Type)

	bob.send(gateway.Command{Type: gateway.CmdJoinRoom, RequestID: "2", RoomID: strings.ToLower(roomID), PlayerName: "Bob"})
	assert.True(t, bob.read().Success)
	assert.Equal(t, gateway.EventRoomState, bob.read().Type)
	assert.Equal(t, gateway.EventPlayerJoined, alice.read().Type)
	assert.Equal(t, gateway.EventRoomState, alice.read().Type)

	bob.send(gateway.Command{Type: gateway.CmdRollAll, RequestID: "3"})
	assert.Equal(t, "3", bob.read().RequestID)
	state := bob.read().State
	require.NotNil(t, state)
	assert.Equal(t, "Thresh", state.Assignments.Get(champion.Support).Name)
	assert.Equal(t, state, alice.read().State)

	// The owner's socket going away closes the room for Bob.
	alice.conn.Close(websocket.StatusNormalClosure, "bye")
	left := bob.read()
	assert.Equal(t, gateway.EventPlayerLeft, left.Type)
	assert.Equal(t, alice.id, left.PlayerID)
	closed := bob.read()
	assert.Equal(t, gateway.EventRoomClosed, closed.Type)
	assert.Equal(t, roomID, closed.RoomID)

	resp, err := http.Get(srv.URL + "/rooms")
	require.NoError(t, err)
	defer resp.Body.Close()
	var rooms []room.Info
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rooms))
	assert.Empty(t, rooms)
}

func TestRoomSocket_InvalidJSONKeepsConnection(t *testing.T) {
	srv := newTestServer(t)
	c := dial(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, c.conn.Write(ctx, websocket.MessageText, []byte("{nope")))
	msg := c.read()
	assert.Equal(t, gateway.EventError, msg.Type)
	assert.Equal(t, "Invalid JSON format", msg.Message)

	c.send(gateway.Command{Type: gateway.CmdToggleLane, RequestID: "t", Lane: "top"})
	ack := c.read()
	assert.False(t, ack.Success)
	assert.Equal(t, "Not in a room", ack.Error)
}

func TestRoomSocket_HubShutdownCloseCode(t *testing.T) {
	srv, stopHub := newStoppableServer(t)
	c := dial(t, srv)

	stopHub()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _, err := c.conn.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, HubUnavailableError, websocket.CloseStatus(err))
}

func TestHTTPEndpoints(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/champions")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var champs []champion.Champion
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&champs))
	require.Len(t, champs, 5)
	assert.Equal(t, "Aatrox", champs[0].Name)
}

func TestCORS(t *testing.T) {
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/rooms", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://draft.example.com")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestCORSOrigins(t *testing.T) {
	assert.Equal(t, []string{"*"}, corsOrigins([]string{"*"}))
	assert.Equal(t,
		[]string{"https://example.com", "http://example.com", "https://*.example.org", "http://*.example.org"},
		corsOrigins([]string{"example.com", "*.example.org"}))
}
