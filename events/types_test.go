package events

import (
	"errors"
	"testing"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/casualjim/switchboard/pkg/uuidx"
)

func TestPromptJSON(t *testing.T) {
	prompt := Prompt{
		ID:       uuidx.New(),
		Question: "what size pizza?",
		Metadata: map[string]any{
			"agent": "pizzeria",
			"turn":  float64(3),
		},
		CreatedAt: strfmt.DateTime(time.Now().UTC()),
	}

	data, err := ToJSON(prompt)
	require.NoError(t, err)
	assert.Equal(t, "prompt", gjson.GetBytes(data, "type").String())
	assert.Equal(t, prompt.ID.String(), gjson.GetBytes(data, "id").String())
	assert.Equal(t, "pizzeria", gjson.GetBytes(data, "metadata.agent").String())

	event, err := FromJSON(data)
	require.NoError(t, err)
	decoded, ok := event.(Prompt)
	require.True(t, ok, "expected a Prompt, got %T", event)
	assert.Equal(t, prompt.ID, decoded.ID)
	assert.Equal(t, prompt.Question, decoded.Question)
	assert.Equal(t, prompt.Metadata, decoded.Metadata)
	assert.WithinDuration(t, time.Time(prompt.CreatedAt), time.Time(decoded.CreatedAt), time.Millisecond)
}

func TestPromptJSONWithoutMetadata(t *testing.T) {
	data, err := ToJSON(Prompt{ID: uuidx.New(), Question: "toppings?"})
	require.NoError(t, err)
	assert.False(t, gjson.GetBytes(data, "metadata").Exists())

	event, err := FromJSON(data)
	require.NoError(t, err)
	assert.Empty(t, event.(Prompt).Metadata)
}

func TestClosedJSON(t *testing.T) {
	closed := Closed{ID: uuidx.New(), Reason: ReasonResolved}

	data, err := ToJSON(closed)
	require.NoError(t, err)
	assert.Equal(t, "closed", gjson.GetBytes(data, "type").String())

	event, err := FromJSON(data)
	require.NoError(t, err)
	assert.Equal(t, closed, event)
}

func TestErrorJSON(t *testing.T) {
	data, err := ToJSON(Error{Err: errors.New("boom")})
	require.NoError(t, err)

	event, err := FromJSON(data)
	require.NoError(t, err)
	decoded, ok := event.(Error)
	require.True(t, ok)
	assert.Equal(t, "boom", decoded.Error())
}

func TestFromJSONRejectsGarbage(t *testing.T) {
	_, err := FromJSON([]byte("not json"))
	assert.Error(t, err)

	_, err = FromJSON([]byte(`{"type":"telegram"}`))
	assert.Error(t, err)

	var p Prompt
	assert.Error(t, p.UnmarshalJSON([]byte(`{"type":"prompt"}`)), "missing id should be rejected")
}
