package models

import "github.com/goccy/go-json"

// Client-to-server message types.
const (
	MsgJoinDashboard        = "join_dashboard"
	MsgDashboardStateChange = "dashboard_state_change"
	MsgCollaborationEvent   = "collaboration_event"
	MsgCursorMove           = "cursor_move"
)

// Server-to-client message types. collaboration_event is symmetric and
// reuses MsgCollaborationEvent.
const (
	MsgStateUpdated = "state_updated"
	MsgUsersUpdated = "users_updated"
	MsgCursorMoved  = "cursor_moved"
)

// Envelope is the wire frame for every websocket message in both directions:
// a type tag plus a type-specific data object decoded lazily by the handler.
type Envelope struct {
	Type string          `json:"type" validate:"required"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Message is an outbound frame before encoding. Data is marshaled by the
// write pump together with the envelope.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// JoinDashboardData is the payload of a join_dashboard message.
type JoinDashboardData struct {
	DashboardID string `json:"dashboardId" validate:"required"`
	User        User   `json:"user"`
}

// StateChangeData is the payload of a dashboard_state_change message: the
// partial state to merge plus the originating event to relay alongside it.
type StateChangeData struct {
	State StatePatch          `json:"state"`
	Event *CollaborationEvent `json:"event,omitempty"`
}

// CursorMoveData is the payload of a client cursor_move message.
type CursorMoveData struct {
	X float64 `json:"x" validate:"gte=0,lte=100"`
	Y float64 `json:"y" validate:"gte=0,lte=100"`
}

// CursorMovedData is the payload of a server cursor_moved broadcast.
type CursorMovedData struct {
	UserID string `json:"userId"`
	Cursor Cursor `json:"cursor"`
}

// UsersUpdatedData is the payload of a users_updated broadcast.
type UsersUpdatedData struct {
	Users []User `json:"users"`
}

// StateUpdatedData is the payload of a state_updated message.
type StateUpdatedData struct {
	State DashboardState `json:"state"`
}
