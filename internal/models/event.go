package models

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
)

// EventType discriminates collaboration events. The set is closed; anything
// else is rejected at the transport boundary.
type EventType string

const (
	EventFilterChange EventType = "filter_change"
	EventCardAdd      EventType = "card_add"
	EventCardRemove   EventType = "card_remove"
	EventChartDrill   EventType = "chart_drill"
	EventCursorMove   EventType = "cursor_move"
	EventUserJoin     EventType = "user_join"
	EventUserLeave    EventType = "user_leave"
)

// ValidEventType reports whether t is one of the known event kinds.
func ValidEventType(t EventType) bool {
	switch t {
	case EventFilterChange, EventCardAdd, EventCardRemove, EventChartDrill,
		EventCursorMove, EventUserJoin, EventUserLeave:
		return true
	}
	return false
}

// CollaborationEvent is a discrete, ephemeral action relayed to other room
// members. It is never persisted server-side beyond the act of relaying;
// clients keep a small recency buffer for the activity feed.
type CollaborationEvent struct {
	Type EventType `json:"type" validate:"required"`
	// User is stamped server-side from presence; inbound values are
	// ignored, so it is excluded from boundary validation.
	User      User            `json:"user" validate:"-"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// FilterChangePayload accompanies filter_change events.
type FilterChangePayload struct {
	Filter string `json:"filter" validate:"required"`
	Value  string `json:"value"`
}

// CardPayload accompanies card_add and card_remove events.
type CardPayload struct {
	CardID string `json:"cardId" validate:"required"`
}

// ChartDrillPayload accompanies chart_drill events.
type ChartDrillPayload struct {
	Chart   string `json:"chart" validate:"required"`
	Segment string `json:"segment" validate:"required"`
}

// CursorPayload accompanies cursor_move events.
type CursorPayload struct {
	Cursor Cursor `json:"cursor"`
}

// DecodePayload unmarshals and validates the payload for the event's kind,
// returning the typed payload struct. user_join and user_leave carry no
// payload beyond the acting user and decode to nil.
func (e *CollaborationEvent) DecodePayload(v *validator.Validate) (any, error) {
	switch e.Type {
	case EventFilterChange:
		return decodeAs[FilterChangePayload](e.Payload, v)
	case EventCardAdd, EventCardRemove:
		return decodeAs[CardPayload](e.Payload, v)
	case EventChartDrill:
		return decodeAs[ChartDrillPayload](e.Payload, v)
	case EventCursorMove:
		return decodeAs[CursorPayload](e.Payload, v)
	case EventUserJoin, EventUserLeave:
		return nil, nil
	}
	return nil, fmt.Errorf("unknown event type %q", e.Type)
}

// EncodePayload marshals a typed payload for embedding in an event.
func EncodePayload(v any) (json.RawMessage, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return raw, nil
}

func decodeAs[T any](raw json.RawMessage, v *validator.Validate) (*T, error) {
	var out T
	if len(raw) == 0 {
		return nil, fmt.Errorf("missing payload")
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	if err := v.Struct(&out); err != nil {
		return nil, fmt.Errorf("validate payload: %w", err)
	}
	return &out, nil
}
