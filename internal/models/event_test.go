package models_test

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dashcollab/backend/internal/models"
)

func TestValidEventType(t *testing.T) {
	for _, typ := range []models.EventType{
		models.EventFilterChange, models.EventCardAdd, models.EventCardRemove,
		models.EventChartDrill, models.EventCursorMove, models.EventUserJoin,
		models.EventUserLeave,
	} {
		assert.True(t, models.ValidEventType(typ), string(typ))
	}
	assert.False(t, models.ValidEventType("explode"))
	assert.False(t, models.ValidEventType(""))
}

func TestDecodePayload_TypedByEventKind(t *testing.T) {
	v := validator.New()

	raw, err := models.EncodePayload(models.ChartDrillPayload{Chart: "journey", Segment: "organic"})
	require.NoError(t, err)
	evt := models.CollaborationEvent{Type: models.EventChartDrill, Payload: raw}

	decoded, err := evt.DecodePayload(v)
	require.NoError(t, err)
	drill, ok := decoded.(*models.ChartDrillPayload)
	require.True(t, ok)
	assert.Equal(t, "journey", drill.Chart)
	assert.Equal(t, "organic", drill.Segment)
}

func TestDecodePayload_RejectsMissingRequiredFields(t *testing.T) {
	v := validator.New()

	raw, err := models.EncodePayload(models.CardPayload{})
	require.NoError(t, err)
	evt := models.CollaborationEvent{Type: models.EventCardAdd, Payload: raw}

	_, err = evt.DecodePayload(v)
	assert.Error(t, err)
}

func TestDecodePayload_RejectsMissingPayload(t *testing.T) {
	v := validator.New()
	evt := models.CollaborationEvent{Type: models.EventFilterChange}

	_, err := evt.DecodePayload(v)
	assert.Error(t, err)
}

func TestDecodePayload_JoinAndLeaveCarryNoPayload(t *testing.T) {
	v := validator.New()

	for _, typ := range []models.EventType{models.EventUserJoin, models.EventUserLeave} {
		evt := models.CollaborationEvent{Type: typ}
		decoded, err := evt.DecodePayload(v)
		require.NoError(t, err)
		assert.Nil(t, decoded)
	}
}

func TestDecodePayload_RejectsUnknownType(t *testing.T) {
	v := validator.New()
	evt := models.CollaborationEvent{Type: "explode"}

	_, err := evt.DecodePayload(v)
	assert.Error(t, err)
}

func TestDecodePayload_CursorBoundsValidated(t *testing.T) {
	v := validator.New()

	raw, err := models.EncodePayload(models.CursorPayload{Cursor: models.Cursor{X: 120, Y: 50}})
	require.NoError(t, err)
	evt := models.CollaborationEvent{Type: models.EventCursorMove, Payload: raw}

	_, err = evt.DecodePayload(v)
	assert.Error(t, err)
}
