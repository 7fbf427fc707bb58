package models

import "time"

// Cursor is a pointer position normalized to viewport percentages (0-100),
// so a position stays meaningful across clients with different window sizes.
type Cursor struct {
	X float64 `json:"x" validate:"gte=0,lte=100"`
	Y float64 `json:"y" validate:"gte=0,lte=100"`
}

// User is the presence descriptor for one connected collaborator.
// It is created when a connection joins a room, mutated in place on cursor
// updates, and removed when the connection disconnects.
type User struct {
	// ID is the collaborator's anonymous UUID, issued by the session endpoint.
	ID string `json:"id" validate:"required"`
	// Name is the display name shown next to the cursor and in the roster.
	Name string `json:"name" validate:"required"`
	// Email is optional and only used for avatar fallbacks.
	Email string `json:"email,omitempty" validate:"omitempty,email"`
	// Avatar is an optional image URL.
	Avatar string `json:"avatar,omitempty"`
	// Color is picked client-side from a fixed palette and used for cursor
	// and avatar rendering.
	Color string `json:"color,omitempty"`
	// Cursor is the last reported pointer position, nil until the first move.
	Cursor *Cursor `json:"cursor,omitempty"`

	JoinedAt time.Time `json:"joinedAt"`
	LastSeen time.Time `json:"lastSeen"`
}
