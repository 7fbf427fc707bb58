// Package collabclient is the client half of the dashboard collaboration
// subsystem: it owns a single websocket session, keeps a local replica of
// the room's roster and shared state, and exposes a small publish/subscribe
// facade to the caller.
package collabclient

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"dashcollab/backend/internal/logging"
	"dashcollab/backend/internal/models"
)

// ConnState is the session state machine: Disconnected -> Connecting ->
// Joined -> Disconnected. Joined is entered freshly on every Connect; a
// reconnect behaves exactly like a brand-new join and receives the room's
// current authoritative state.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateJoined
)

const (
	// feedCapacity bounds the recent-event buffer kept for the activity feed.
	feedCapacity = 20
	// toastTTL is how long a received event stays staged for the live toast.
	toastTTL = 10 * time.Second
)

// palette is the fixed set of cursor/avatar colors. The pick is an index
// pseudo-random choice; it needs no cryptographic properties.
var palette = []string{
	"#3b82f6", "#ef4444", "#10b981", "#f59e0b",
	"#8b5cf6", "#ec4899", "#06b6d4", "#f97316",
}

// Toast is an event staged for transient display.
type Toast struct {
	Event     models.CollaborationEvent
	ExpiresAt time.Time
}

// Manager owns at most one active collaboration session. Calling Connect
// while connected tears the old session down first; that explicit-replace
// contract is part of the API, not an accident.
type Manager struct {
	serverURL string
	token     string

	mu     sync.Mutex
	conn   *websocket.Conn
	state  ConnState
	self   models.User
	roomID string

	users     []models.User
	dashState models.DashboardState
	feed      []models.CollaborationEvent
	toasts    []Toast

	nextSubID int
	userSubs  map[int]func([]models.User)
	stateSubs map[int]func(models.DashboardState)
	eventSubs map[int]func(models.CollaborationEvent)

	// joined is signalled by the read loop when the join snapshot arrives.
	joined chan struct{}
	done   chan struct{}
}

// New creates a manager for the given server. serverURL is the ws(s) base,
// e.g. "ws://localhost:8080"; token is a session token from GET /session.
func New(serverURL, token string) *Manager {
	return &Manager{
		serverURL: serverURL,
		token:     token,
		userSubs:  make(map[int]func([]models.User)),
		stateSubs: make(map[int]func(models.DashboardState)),
		eventSubs: make(map[int]func(models.CollaborationEvent)),
	}
}

// Connect establishes the session and joins the dashboard's room. Any
// previous session is torn down first. It blocks until the room's state
// snapshot arrives or ctx expires, so on return CurrentState reflects the
// room's authoritative state.
func (m *Manager) Connect(ctx context.Context, user models.User, dashboardID string) error {
	m.Disconnect()

	user.Color = palette[rand.Intn(len(palette))]

	header := http.Header{}
	header.Set("Authorization", "Bearer "+m.token)
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, m.serverURL+"/ws", header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial %s: %w (status %d)", m.serverURL, err, resp.StatusCode)
		}
		return fmt.Errorf("dial %s: %w", m.serverURL, err)
	}

	joined := make(chan struct{})
	done := make(chan struct{})

	m.mu.Lock()
	m.conn = conn
	m.state = StateConnecting
	m.self = user
	m.roomID = dashboardID
	m.joined = joined
	m.done = done
	m.mu.Unlock()

	if err := m.send(models.MsgJoinDashboard, models.JoinDashboardData{
		DashboardID: dashboardID,
		User:        user,
	}); err != nil {
		m.Disconnect()
		return fmt.Errorf("join room %s: %w", dashboardID, err)
	}

	go m.readLoop(conn, joined, done)

	select {
	case <-joined:
		return nil
	case <-done:
		m.Disconnect()
		return fmt.Errorf("connection closed before join completed")
	case <-ctx.Done():
		m.Disconnect()
		return ctx.Err()
	}
}

// Disconnect closes the session and clears all local session state. It is
// idempotent and safe to call while disconnected.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != nil {
		m.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		m.conn.Close()
		m.conn = nil
	}
	m.state = StateDisconnected
	m.self = models.User{}
	m.roomID = ""
	m.users = nil
	m.dashState = models.DashboardState{}
	m.feed = nil
	m.toasts = nil
}

// PublishStateChange sends a partial state delta, optionally with the
// originating event for the activity feed. A no-op when not connected; call
// sites are not required to check first.
func (m *Manager) PublishStateChange(patch models.StatePatch, event *models.CollaborationEvent) {
	if !m.connected() {
		return
	}
	if err := m.send(models.MsgDashboardStateChange, models.StateChangeData{
		State: patch,
		Event: event,
	}); err != nil {
		logging.Debug().Err(err).Msg("publish state change failed")
	}
}

// PublishEvent relays a discrete action to the rest of the room. A no-op
// when not connected.
func (m *Manager) PublishEvent(event models.CollaborationEvent) {
	if !m.connected() {
		return
	}
	if err := m.send(models.MsgCollaborationEvent, event); err != nil {
		logging.Debug().Err(err).Msg("publish event failed")
	}
}

// UpdateCursor forwards the local pointer position in viewport percentages.
// A no-op when not connected.
func (m *Manager) UpdateCursor(x, y float64) {
	if !m.connected() {
		return
	}
	if err := m.send(models.MsgCursorMove, models.CursorMoveData{X: x, Y: y}); err != nil {
		logging.Debug().Err(err).Msg("cursor update failed")
	}
}

// OnUsersUpdated registers a roster subscriber and returns its unsubscribe
// function. Multiple independent subscribers are supported.
func (m *Manager) OnUsersUpdated(fn func([]models.User)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSubID
	m.nextSubID++
	m.userSubs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.userSubs, id)
	}
}

// OnStateUpdated registers a shared-state subscriber.
func (m *Manager) OnStateUpdated(fn func(models.DashboardState)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSubID
	m.nextSubID++
	m.stateSubs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.stateSubs, id)
	}
}

// OnEvent registers a collaboration-event subscriber.
func (m *Manager) OnEvent(fn func(models.CollaborationEvent)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSubID
	m.nextSubID++
	m.eventSubs[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.eventSubs, id)
	}
}

// State returns the session state.
func (m *Manager) State() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Self returns the local user including its assigned color.
func (m *Manager) Self() models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.self
}

// Users returns the locally known roster.
func (m *Manager) Users() []models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.User(nil), m.users...)
}

// CurrentState returns the local replica of the shared dashboard state. It
// may lag the room's authoritative copy by in-flight broadcasts.
func (m *Manager) CurrentState() models.DashboardState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dashState.Clone()
}

// RecentEvents returns the activity feed, newest first, at most 20 entries.
func (m *Manager) RecentEvents() []models.CollaborationEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.CollaborationEvent(nil), m.feed...)
}

// Toasts returns the events still inside their display window.
func (m *Manager) Toasts() []Toast {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	live := m.toasts[:0]
	for _, t := range m.toasts {
		if t.ExpiresAt.After(now) {
			live = append(live, t)
		}
	}
	m.toasts = live
	return append([]Toast(nil), live...)
}

func (m *Manager) connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil && m.state != StateDisconnected
}

// send marshals and writes one envelope. The write lock also serializes
// writes against Disconnect.
func (m *Manager) send(msgType string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msgType, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		return fmt.Errorf("not connected")
	}
	return m.conn.WriteJSON(models.Envelope{Type: msgType, Data: raw})
}

// readLoop applies server frames to the local replica and fans them out to
// subscribers. It exits when the connection drops; there is no automatic
// reconnect, the caller decides whether to Connect again.
func (m *Manager) readLoop(conn *websocket.Conn, joined chan struct{}, done chan struct{}) {
	defer close(done)

	joinedSignalled := false
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			m.handleConnectionLost(conn)
			return
		}

		var env models.Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			logging.Debug().Err(err).Msg("ignoring undecodable server frame")
			continue
		}

		switch env.Type {
		case models.MsgStateUpdated:
			var data models.StateUpdatedData
			if json.Unmarshal(env.Data, &data) != nil {
				continue
			}
			m.mu.Lock()
			m.dashState = data.State
			if m.state == StateConnecting {
				m.state = StateJoined
			}
			subs := m.stateSnapshotSubs()
			m.mu.Unlock()
			if !joinedSignalled {
				joinedSignalled = true
				close(joined)
			}
			for _, fn := range subs {
				fn(data.State.Clone())
			}

		case models.MsgUsersUpdated:
			var data models.UsersUpdatedData
			if json.Unmarshal(env.Data, &data) != nil {
				continue
			}
			m.mu.Lock()
			m.users = data.Users
			subs := m.userSnapshotSubs()
			m.mu.Unlock()
			for _, fn := range subs {
				fn(append([]models.User(nil), data.Users...))
			}

		case models.MsgCursorMoved:
			var data models.CursorMovedData
			if json.Unmarshal(env.Data, &data) != nil {
				continue
			}
			m.applyCursor(data)

		case models.MsgCollaborationEvent:
			var event models.CollaborationEvent
			if json.Unmarshal(env.Data, &event) != nil {
				continue
			}
			m.recordEvent(event)

		default:
			logging.Debug().Str("type", env.Type).Msg("ignoring unknown server frame")
		}
	}
}

func (m *Manager) handleConnectionLost(conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	// A newer Connect may already own a different connection.
	if m.conn != conn {
		return
	}
	m.conn.Close()
	m.conn = nil
	m.state = StateDisconnected
}

func (m *Manager) applyCursor(data models.CursorMovedData) {
	m.mu.Lock()
	for i := range m.users {
		if m.users[i].ID == data.UserID {
			cursor := data.Cursor
			m.users[i].Cursor = &cursor
		}
	}
	users := append([]models.User(nil), m.users...)
	subs := m.userSnapshotSubs()
	m.mu.Unlock()
	for _, fn := range subs {
		fn(users)
	}
}

// recordEvent prepends to the capped feed and stages the toast.
func (m *Manager) recordEvent(event models.CollaborationEvent) {
	m.mu.Lock()
	m.feed = append([]models.CollaborationEvent{event}, m.feed...)
	if len(m.feed) > feedCapacity {
		m.feed = m.feed[:feedCapacity]
	}
	m.toasts = append(m.toasts, Toast{Event: event, ExpiresAt: time.Now().Add(toastTTL)})
	subs := m.eventSnapshotSubs()
	m.mu.Unlock()
	for _, fn := range subs {
		fn(event)
	}
}

// Snapshot helpers copy subscriber lists so callbacks run without the lock.

func (m *Manager) userSnapshotSubs() []func([]models.User) {
	out := make([]func([]models.User), 0, len(m.userSubs))
	for _, fn := range m.userSubs {
		out = append(out, fn)
	}
	return out
}

func (m *Manager) stateSnapshotSubs() []func(models.DashboardState) {
	out := make([]func(models.DashboardState), 0, len(m.stateSubs))
	for _, fn := range m.stateSubs {
		out = append(out, fn)
	}
	return out
}

func (m *Manager) eventSnapshotSubs() []func(models.CollaborationEvent) {
	out := make([]func(models.CollaborationEvent), 0, len(m.eventSubs))
	for _, fn := range m.eventSubs {
		out = append(out, fn)
	}
	return out
}
