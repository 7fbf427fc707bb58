package collabhub

import (
	"sort"
	"time"

	"dashcollab/backend/internal/metrics"
	"dashcollab/backend/internal/models"
)

// Room is the server-side unit of collaboration scope, one per dashboard
// being viewed. It is exclusively owned by the Registry and only ever touched
// from the registry's dispatch goroutine, so it carries no lock.
type Room struct {
	ID string

	// clients and users are keyed by connection id.
	clients map[string]Client
	users   map[string]*models.User

	// state is the single authoritative copy of the shared dashboard state.
	// Only patch merges mutate it; the registry never rewrites it on its own.
	state models.DashboardState

	// lastActivity gates idle eviction. Updated on join, leave, state merges
	// and event relays, deliberately not on cursor traffic.
	lastActivity time.Time
}

func newRoom(id string, now time.Time) *Room {
	return &Room{
		ID:           id,
		clients:      make(map[string]Client),
		users:        make(map[string]*models.User),
		state:        models.DefaultDashboardState(),
		lastActivity: now,
	}
}

func (r *Room) addMember(connID string, c Client, u *models.User) {
	r.clients[connID] = c
	r.users[connID] = u
}

func (r *Room) removeMember(connID string) {
	delete(r.clients, connID)
	delete(r.users, connID)
}

func (r *Room) empty() bool { return len(r.users) == 0 }

func (r *Room) touch(now time.Time) { r.lastActivity = now }

// roster returns the current members ordered by join time, with connection
// id as a tie-break so the order is stable.
func (r *Room) roster() []models.User {
	connIDs := make([]string, 0, len(r.users))
	for id := range r.users {
		connIDs = append(connIDs, id)
	}
	sort.Slice(connIDs, func(i, j int) bool {
		a, b := r.users[connIDs[i]], r.users[connIDs[j]]
		if !a.JoinedAt.Equal(b.JoinedAt) {
			return a.JoinedAt.Before(b.JoinedAt)
		}
		return connIDs[i] < connIDs[j]
	})

	out := make([]models.User, 0, len(connIDs))
	for _, id := range connIDs {
		out = append(out, *r.users[id])
	}
	return out
}

// broadcast sends msg to every member except exceptConnID (empty string
// means everyone). Sends never block: a member whose buffer is full simply
// misses the frame, which is acceptable for advisory collaboration traffic.
func (r *Room) broadcast(msg models.Message, exceptConnID string) {
	for connID, c := range r.clients {
		if connID == exceptConnID {
			continue
		}
		select {
		case c.GetSendChannel() <- msg:
		default:
			metrics.DroppedMessages.Inc()
		}
	}
}

// sendTo targets a single member, used for the state snapshot on join.
func (r *Room) sendTo(connID string, msg models.Message) {
	c, ok := r.clients[connID]
	if !ok {
		return
	}
	select {
	case c.GetSendChannel() <- msg:
	default:
		metrics.DroppedMessages.Inc()
	}
}
