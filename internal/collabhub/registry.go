package collabhub

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"dashcollab/backend/internal/logging"
	"dashcollab/backend/internal/metrics"
	"dashcollab/backend/internal/models"
)

// Inbound is one decoded websocket frame together with the client it came
// from, queued for the registry's dispatch loop.
type Inbound struct {
	Client   Client
	Envelope models.Envelope
}

// RoomStats is a read-only snapshot of one room for the ops endpoint.
type RoomStats struct {
	ID           string    `json:"id"`
	Members      int       `json:"members"`
	LastActivity time.Time `json:"lastActivity"`
}

// Registry maps dashboard ids to rooms and mediates every join, leave, state
// merge and event relay. It is explicitly constructed and injected, never a
// package-level singleton, so tests can run independent instances.
//
// All room mutation happens on the single goroutine running Run, which
// drains the channels below. That serialization is the concurrency model:
// no read ever observes a half-updated room, and per-room event ordering
// follows dispatch order. This is a single-instance, best-effort subsystem;
// cross-process sharing is out of scope.
type Registry struct {
	// RegisterCh accepts freshly upgraded connections before they join.
	RegisterCh chan Client
	// UnregisterCh accepts disconnecting connections.
	UnregisterCh chan Client
	// IncomingCh accepts decoded frames from client read pumps.
	IncomingCh chan Inbound

	rooms   map[string]*Room
	members map[string]*Room  // conn id -> joined room
	clients map[string]Client // all registered conns, joined or not

	idleTTL       time.Duration
	sweepInterval time.Duration

	validate *validator.Validate
	statsCh  chan chan []RoomStats

	// now is swappable so eviction tests can move the clock.
	now func() time.Time
}

// NewRegistry creates a registry with the given eviction policy.
func NewRegistry(idleTTL, sweepInterval time.Duration) *Registry {
	return &Registry{
		RegisterCh:    make(chan Client),
		UnregisterCh:  make(chan Client),
		IncomingCh:    make(chan Inbound, 256),
		rooms:         make(map[string]*Room),
		members:       make(map[string]*Room),
		clients:       make(map[string]Client),
		idleTTL:       idleTTL,
		sweepInterval: sweepInterval,
		validate:      validator.New(),
		statsCh:       make(chan chan []RoomStats),
		now:           time.Now,
	}
}

// Run is the dispatch loop. It blocks until ctx is canceled, then closes all
// clients and returns ctx.Err() so a supervisor can tell shutdown from crash.
func (r *Registry) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.shutdown()
			return ctx.Err()

		case c := <-r.RegisterCh:
			r.clients[c.GetConnID()] = c
			metrics.ConnectedClients.Set(float64(len(r.clients)))
			logging.Debug().Str("conn_id", c.GetConnID()).Msg("client registered")

		case c := <-r.UnregisterCh:
			r.handleLeave(c)

		case in := <-r.IncomingCh:
			r.dispatch(in)

		case <-ticker.C:
			r.sweep()

		case reply := <-r.statsCh:
			reply <- r.collectStats()
		}
	}
}

// Stats returns a snapshot of the active rooms. It round-trips through the
// dispatch loop so callers never touch registry state concurrently.
func (r *Registry) Stats(ctx context.Context) ([]RoomStats, error) {
	reply := make(chan []RoomStats, 1)
	select {
	case r.statsCh <- reply:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case stats := <-reply:
		return stats, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *Registry) collectStats() []RoomStats {
	out := make([]RoomStats, 0, len(r.rooms))
	for _, room := range r.rooms {
		out = append(out, RoomStats{
			ID:           room.ID,
			Members:      len(room.users),
			LastActivity: room.lastActivity,
		})
	}
	return out
}

// dispatch routes one inbound frame. A malformed frame is dropped and
// logged; it must never break the loop for other members.
func (r *Registry) dispatch(in Inbound) {
	switch in.Envelope.Type {
	case models.MsgJoinDashboard:
		r.handleJoin(in)
	case models.MsgDashboardStateChange:
		r.handleStateChange(in)
	case models.MsgCollaborationEvent:
		r.handleEvent(in)
	case models.MsgCursorMove:
		r.handleCursorMove(in)
	default:
		metrics.RejectedMessages.WithLabelValues("unknown_type").Inc()
		logging.Debug().
			Str("conn_id", in.Client.GetConnID()).
			Str("type", in.Envelope.Type).
			Msg("dropping message with unknown type")
	}
}

func (r *Registry) handleJoin(in Inbound) {
	var data models.JoinDashboardData
	if !r.decode(in, &data, "join_dashboard") {
		return
	}

	// Calling join again from the same connection replaces the previous
	// membership, mirroring the client's explicit-replace contract.
	if prev, ok := r.members[in.Client.GetConnID()]; ok {
		r.removeFromRoom(prev, in.Client)
	}

	now := r.now()
	room, ok := r.rooms[data.DashboardID]
	if !ok {
		room = newRoom(data.DashboardID, now)
		r.rooms[data.DashboardID] = room
		metrics.ActiveRooms.Set(float64(len(r.rooms)))
		logging.Info().Str("room_id", room.ID).Msg("room created")
	}

	user := data.User
	user.ID = in.Client.GetUserID()
	user.JoinedAt = now
	user.LastSeen = now

	connID := in.Client.GetConnID()
	room.addMember(connID, in.Client, &user)
	room.touch(now)
	r.members[connID] = room

	// Snapshot first: the joiner must receive the room's current state
	// before any live broadcast reaches it. Both frames go through the same
	// send channel, so ordering holds.
	room.sendTo(connID, models.Message{
		Type: models.MsgStateUpdated,
		Data: models.StateUpdatedData{State: room.state.Clone()},
	})
	room.broadcast(models.Message{
		Type: models.MsgUsersUpdated,
		Data: models.UsersUpdatedData{Users: room.roster()},
	}, "")
	room.broadcast(models.Message{
		Type: models.MsgCollaborationEvent,
		Data: models.CollaborationEvent{
			Type:      models.EventUserJoin,
			User:      user,
			Timestamp: now,
		},
	}, connID)

	metrics.EventsRelayed.WithLabelValues(string(models.EventUserJoin)).Inc()
	logging.Info().
		Str("room_id", room.ID).
		Str("user_id", user.ID).
		Int("members", len(room.users)).
		Msg("user joined room")
}

// handleLeave removes the connection from its room, if any. The room is left
// resident even when empty so a quick rejoin resumes its state; the sweeper
// deletes it later.
func (r *Registry) handleLeave(c Client) {
	connID := c.GetConnID()
	if _, ok := r.clients[connID]; !ok {
		return
	}
	delete(r.clients, connID)
	metrics.ConnectedClients.Set(float64(len(r.clients)))

	if room, ok := r.members[connID]; ok {
		r.removeFromRoom(room, c)
	}
	c.Close()
}

func (r *Registry) removeFromRoom(room *Room, c Client) {
	connID := c.GetConnID()
	user, ok := room.users[connID]
	if !ok {
		return
	}

	now := r.now()
	room.removeMember(connID)
	room.touch(now)
	delete(r.members, connID)

	room.broadcast(models.Message{
		Type: models.MsgUsersUpdated,
		Data: models.UsersUpdatedData{Users: room.roster()},
	}, "")
	room.broadcast(models.Message{
		Type: models.MsgCollaborationEvent,
		Data: models.CollaborationEvent{
			Type:      models.EventUserLeave,
			User:      *user,
			Timestamp: now,
		},
	}, "")

	metrics.EventsRelayed.WithLabelValues(string(models.EventUserLeave)).Inc()
	logging.Info().
		Str("room_id", room.ID).
		Str("user_id", user.ID).
		Int("members", len(room.users)).
		Msg("user left room")
}

// handleStateChange merges the patch into the room's state and rebroadcasts
// the merged state plus the originating event to everyone but the sender.
// This is the only writer of room state.
func (r *Registry) handleStateChange(in Inbound) {
	room, user := r.memberOf(in.Client)
	if room == nil {
		return
	}

	var data models.StateChangeData
	if !r.decode(in, &data, "dashboard_state_change") {
		return
	}

	room.state.Merge(data.State)
	room.touch(r.now())
	metrics.StateMerges.Inc()

	connID := in.Client.GetConnID()
	room.broadcast(models.Message{
		Type: models.MsgStateUpdated,
		Data: models.StateUpdatedData{State: room.state.Clone()},
	}, connID)

	if data.Event != nil {
		r.relay(room, connID, user, *data.Event)
	}
}

// handleEvent is a pure fan-out; nothing is persisted.
func (r *Registry) handleEvent(in Inbound) {
	room, user := r.memberOf(in.Client)
	if room == nil {
		return
	}

	var event models.CollaborationEvent
	if !r.decode(in, &event, "collaboration_event") {
		return
	}
	room.touch(r.now())
	r.relay(room, in.Client.GetConnID(), user, event)
}

func (r *Registry) relay(room *Room, connID string, sender *models.User, event models.CollaborationEvent) {
	if !models.ValidEventType(event.Type) {
		metrics.RejectedMessages.WithLabelValues("unknown_event").Inc()
		logging.Debug().
			Str("room_id", room.ID).
			Str("event_type", string(event.Type)).
			Msg("dropping event with unknown type")
		return
	}
	if _, err := event.DecodePayload(r.validate); err != nil {
		metrics.RejectedMessages.WithLabelValues("invalid_payload").Inc()
		logging.Debug().
			Str("room_id", room.ID).
			Str("event_type", string(event.Type)).
			Err(err).
			Msg("dropping event with invalid payload")
		return
	}

	// The acting user always comes from presence, never from the wire.
	event.User = *sender
	if event.Timestamp.IsZero() {
		event.Timestamp = r.now()
	}

	room.broadcast(models.Message{
		Type: models.MsgCollaborationEvent,
		Data: event,
	}, connID)
	metrics.EventsRelayed.WithLabelValues(string(event.Type)).Inc()
}

// handleCursorMove updates the member's cursor in place and tells the rest
// of the room. Cursor traffic does not count as room activity.
func (r *Registry) handleCursorMove(in Inbound) {
	room, user := r.memberOf(in.Client)
	if room == nil {
		return
	}

	var data models.CursorMoveData
	if !r.decode(in, &data, "cursor_move") {
		return
	}

	user.Cursor = &models.Cursor{X: data.X, Y: data.Y}
	user.LastSeen = r.now()

	room.broadcast(models.Message{
		Type: models.MsgCursorMoved,
		Data: models.CursorMovedData{UserID: user.ID, Cursor: *user.Cursor},
	}, in.Client.GetConnID())
}

// memberOf resolves the sender's room and presence entry. A connection that
// never joined, or whose room is gone, has nothing to relay to: the frame is
// silently dropped.
func (r *Registry) memberOf(c Client) (*Room, *models.User) {
	room, ok := r.members[c.GetConnID()]
	if !ok {
		return nil, nil
	}
	user, ok := room.users[c.GetConnID()]
	if !ok {
		return nil, nil
	}
	return room, user
}

func (r *Registry) decode(in Inbound, v any, kind string) bool {
	if err := json.Unmarshal(in.Envelope.Data, v); err != nil {
		metrics.RejectedMessages.WithLabelValues("malformed").Inc()
		logging.Debug().
			Str("conn_id", in.Client.GetConnID()).
			Str("type", kind).
			Err(err).
			Msg("dropping malformed message")
		return false
	}
	if err := r.validate.Struct(v); err != nil {
		metrics.RejectedMessages.WithLabelValues("invalid").Inc()
		logging.Debug().
			Str("conn_id", in.Client.GetConnID()).
			Str("type", kind).
			Err(err).
			Msg("dropping invalid message")
		return false
	}
	return true
}

// sweep deletes rooms that are empty and idle past the TTL. A join before
// the threshold bumps lastActivity and cancels eviction.
func (r *Registry) sweep() {
	cutoff := r.now().Add(-r.idleTTL)
	for id, room := range r.rooms {
		if room.empty() && room.lastActivity.Before(cutoff) {
			delete(r.rooms, id)
			metrics.SweptRooms.Inc()
			logging.Info().Str("room_id", id).Msg("evicted idle room")
		}
	}
	metrics.ActiveRooms.Set(float64(len(r.rooms)))
}

func (r *Registry) shutdown() {
	for _, c := range r.clients {
		c.Close()
	}
	clients := len(r.clients)
	r.clients = make(map[string]Client)
	r.members = make(map[string]*Room)
	r.rooms = make(map[string]*Room)
	metrics.ConnectedClients.Set(0)
	metrics.ActiveRooms.Set(0)
	logging.Info().
		Str("component", "collab-registry").
		Int("clients_closed", clients).
		Msg("registry stopped")
}
