package collabclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dashcollab/backend/internal/collabclient"
	"dashcollab/backend/internal/models"
)

var testUpgrader = websocket.Upgrader{}

// newTestServer runs a minimal scripted room server: it accepts one
// websocket, answers the join with a state snapshot and a one-user roster,
// then hands the server-side connection to the test for pushing frames.
func newTestServer(t *testing.T) (string, chan *websocket.Conn) {
	t.Helper()
	conns := make(chan *websocket.Conn, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws" {
			http.NotFound(w, r)
			return
		}
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		var env models.Envelope
		if conn.ReadJSON(&env) != nil || env.Type != models.MsgJoinDashboard {
			conn.Close()
			return
		}
		var join models.JoinDashboardData
		if json.Unmarshal(env.Data, &join) != nil {
			conn.Close()
			return
		}

		writeFrame(t, conn, models.MsgStateUpdated, models.StateUpdatedData{State: models.DefaultDashboardState()})
		writeFrame(t, conn, models.MsgUsersUpdated, models.UsersUpdatedData{Users: []models.User{join.User}})
		conns <- conn
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http"), conns
}

func writeFrame(t *testing.T, conn *websocket.Conn, msgType string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(models.Envelope{Type: msgType, Data: raw}))
}

func connect(t *testing.T, mgr *collabclient.Manager) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := mgr.Connect(ctx, models.User{ID: "user_1", Name: "Alice"}, "demo")
	require.NoError(t, err)
}

func TestConnect_ReceivesAuthoritativeSnapshot(t *testing.T) {
	url, _ := newTestServer(t)
	mgr := collabclient.New(url, "test-token")
	defer mgr.Disconnect()

	connect(t, mgr)

	assert.Equal(t, collabclient.StateJoined, mgr.State())
	state := mgr.CurrentState()
	assert.Equal(t, "30d", state.SelectedDateRange)
	users := mgr.Users()
	require.Len(t, users, 1)
	assert.Equal(t, "Alice", users[0].Name)
}

func TestConnect_AssignsColorFromPalette(t *testing.T) {
	url, _ := newTestServer(t)
	mgr := collabclient.New(url, "test-token")
	defer mgr.Disconnect()

	connect(t, mgr)

	color := mgr.Self().Color
	assert.True(t, strings.HasPrefix(color, "#"), "expected palette color, got %q", color)
}

func TestPublish_NoOpWhenDisconnected(t *testing.T) {
	mgr := collabclient.New("ws://localhost:0", "test-token")

	// UI call sites are not required to check connection state first.
	seven := "7d"
	mgr.PublishStateChange(models.StatePatch{SelectedDateRange: &seven}, nil)
	mgr.PublishEvent(models.CollaborationEvent{Type: models.EventCardAdd})
	mgr.UpdateCursor(10, 20)

	assert.Equal(t, collabclient.StateDisconnected, mgr.State())
}

func TestPublishStateChange_SendsPatchAndEvent(t *testing.T) {
	url, conns := newTestServer(t)
	mgr := collabclient.New(url, "test-token")
	defer mgr.Disconnect()

	connect(t, mgr)
	serverConn := <-conns

	seven := "7d"
	payload, err := models.EncodePayload(models.FilterChangePayload{Filter: "selectedDateRange", Value: "7d"})
	require.NoError(t, err)
	mgr.PublishStateChange(models.StatePatch{SelectedDateRange: &seven}, &models.CollaborationEvent{
		Type:    models.EventFilterChange,
		Payload: payload,
	})

	var env models.Envelope
	require.NoError(t, serverConn.ReadJSON(&env))
	require.Equal(t, models.MsgDashboardStateChange, env.Type)
	var data models.StateChangeData
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.NotNil(t, data.State.SelectedDateRange)
	assert.Equal(t, "7d", *data.State.SelectedDateRange)
	assert.Nil(t, data.State.EnabledKpiCards, "absent fields must stay absent in the patch")
	require.NotNil(t, data.Event)
	assert.Equal(t, models.EventFilterChange, data.Event.Type)
}

func TestOnStateUpdated_AppliesBroadcastDeltas(t *testing.T) {
	url, conns := newTestServer(t)
	mgr := collabclient.New(url, "test-token")
	defer mgr.Disconnect()

	got := make(chan models.DashboardState, 4)
	mgr.OnStateUpdated(func(s models.DashboardState) { got <- s })

	connect(t, mgr)
	serverConn := <-conns

	merged := models.DefaultDashboardState()
	merged.SelectedDateRange = "7d"
	writeFrame(t, serverConn, models.MsgStateUpdated, models.StateUpdatedData{State: merged})

	// First notification is the join snapshot, second the broadcast.
	first := <-got
	assert.Equal(t, "30d", first.SelectedDateRange)
	select {
	case second := <-got:
		assert.Equal(t, "7d", second.SelectedDateRange)
		assert.Equal(t, models.DefaultKpiCards(), second.EnabledKpiCards)
	case <-time.After(time.Second):
		t.Fatal("state subscriber never fired for the broadcast")
	}
	assert.Equal(t, "7d", mgr.CurrentState().SelectedDateRange)
}

func TestEventFeed_CappedAndNewestFirst(t *testing.T) {
	url, conns := newTestServer(t)
	mgr := collabclient.New(url, "test-token")
	defer mgr.Disconnect()

	var seen atomic.Int32
	mgr.OnEvent(func(models.CollaborationEvent) { seen.Add(1) })

	connect(t, mgr)
	serverConn := <-conns

	for i := 0; i < 25; i++ {
		payload, err := models.EncodePayload(models.CardPayload{CardID: string(rune('a' + i))})
		require.NoError(t, err)
		writeFrame(t, serverConn, models.MsgCollaborationEvent, models.CollaborationEvent{
			Type:      models.EventCardAdd,
			User:      models.User{ID: "user_2", Name: "Bob"},
			Timestamp: time.Now(),
			Payload:   payload,
		})
	}

	require.Eventually(t, func() bool { return seen.Load() == 25 }, 2*time.Second, 10*time.Millisecond)

	feed := mgr.RecentEvents()
	require.Len(t, feed, 20)
	var newest models.CardPayload
	require.NoError(t, json.Unmarshal(feed[0].Payload, &newest))
	assert.Equal(t, string(rune('a'+24)), newest.CardID)

	toasts := mgr.Toasts()
	assert.NotEmpty(t, toasts)
	assert.True(t, toasts[0].ExpiresAt.After(time.Now()))
}

func TestOnEvent_UnsubscribeStopsDelivery(t *testing.T) {
	url, conns := newTestServer(t)
	mgr := collabclient.New(url, "test-token")
	defer mgr.Disconnect()

	var kept, removed atomic.Int32
	mgr.OnEvent(func(models.CollaborationEvent) { kept.Add(1) })
	unsubscribe := mgr.OnEvent(func(models.CollaborationEvent) { removed.Add(1) })
	unsubscribe()

	connect(t, mgr)
	serverConn := <-conns

	payload, err := models.EncodePayload(models.CardPayload{CardID: "visitors"})
	require.NoError(t, err)
	writeFrame(t, serverConn, models.MsgCollaborationEvent, models.CollaborationEvent{
		Type:    models.EventCardAdd,
		Payload: payload,
	})

	require.Eventually(t, func() bool { return kept.Load() == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(0), removed.Load())
}

func TestCursorMoved_UpdatesLocalRoster(t *testing.T) {
	url, conns := newTestServer(t)
	mgr := collabclient.New(url, "test-token")
	defer mgr.Disconnect()

	connect(t, mgr)
	serverConn := <-conns

	writeFrame(t, serverConn, models.MsgCursorMoved, models.CursorMovedData{
		UserID: "user_1",
		Cursor: models.Cursor{X: 33, Y: 66},
	})

	require.Eventually(t, func() bool {
		users := mgr.Users()
		return len(users) == 1 && users[0].Cursor != nil && users[0].Cursor.X == 33
	}, time.Second, 10*time.Millisecond)
}

func TestDisconnect_IsIdempotentAndClearsState(t *testing.T) {
	url, _ := newTestServer(t)
	mgr := collabclient.New(url, "test-token")

	connect(t, mgr)
	mgr.Disconnect()
	mgr.Disconnect()

	assert.Equal(t, collabclient.StateDisconnected, mgr.State())
	assert.Empty(t, mgr.Users())
	assert.Empty(t, mgr.RecentEvents())
	assert.Equal(t, models.DashboardState{}, mgr.CurrentState())
	assert.Empty(t, mgr.Self().Color)
}
