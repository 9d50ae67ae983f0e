package notify

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannel(t *testing.T) {
	id := uuid.MustParse("2b1c3c1e-6f0e-4a53-9d55-0d5d8f0b9a11")
	assert.Equal(t, "user:2b1c3c1e-6f0e-4a53-9d55-0d5d8f0b9a11", Channel(id))
}

func TestMessageEnvelope(t *testing.T) {
	raw, err := json.Marshal(Message{Event: "project.created", Data: map[string]string{"project_id": "p1"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"project.created","data":{"project_id":"p1"}}`, string(raw))
}
