package events

import (
	"fmt"
	"time"

	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var (
	promptJSON = []byte(`{"type":"prompt"}`)
	closedJSON = []byte(`{"type":"closed"}`)
	errorJSON  = []byte(`{"type":"error"}`)
)

// Event is the union of everything the notification channel can carry.
// Observers receive prompts and closures, never answers.
type Event interface {
	event()
}

// Prompt is the read-only projection of an open request that is handed to
// observers. The metadata map is carried through untouched, the broker never
// looks inside it.
type Prompt struct {
	ID        uuid.UUID       `json:"id"`
	Question  string          `json:"question"`
	Metadata  map[string]any  `json:"metadata,omitempty"`
	CreatedAt strfmt.DateTime `json:"created_at"`
}

func (Prompt) event() {}

// MarshalJSON implements custom JSON marshaling for Prompt
func (p Prompt) MarshalJSON() ([]byte, error) {
	result := promptJSON

	var err error
	result, err = sjson.SetBytes(result, "id", p.ID.String())
	if err != nil {
		return nil, err
	}

	result, err = sjson.SetBytes(result, "question", p.Question)
	if err != nil {
		return nil, err
	}

	if len(p.Metadata) > 0 {
		result, err = sjson.SetBytes(result, "metadata", p.Metadata)
		if err != nil {
			return nil, err
		}
	}

	result, err = sjson.SetBytes(result, "created_at", time.Time(p.CreatedAt).Format(time.RFC3339Nano))
	return result, err
}

// UnmarshalJSON implements custom JSON unmarshaling for Prompt
func (p *Prompt) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}

	msgType := gjson.GetBytes(data, "type")
	if !msgType.Exists() || msgType.String() != "prompt" {
		return fmt.Errorf("missing or invalid type, expected 'prompt'")
	}

	id := gjson.GetBytes(data, "id")
	if !id.Exists() {
		return fmt.Errorf("missing required field 'id'")
	}
	if err := p.ID.UnmarshalText([]byte(id.String())); err != nil {
		return fmt.Errorf("invalid id: %w", err)
	}

	question := gjson.GetBytes(data, "question")
	if !question.Exists() {
		return fmt.Errorf("missing required field 'question'")
	}
	p.Question = question.String()

	if metadata := gjson.GetBytes(data, "metadata"); metadata.Exists() {
		md, ok := metadata.Value().(map[string]any)
		if !ok {
			return fmt.Errorf("metadata must be an object")
		}
		p.Metadata = md
	}

	if createdAt := gjson.GetBytes(data, "created_at"); createdAt.Exists() {
		ts, err := time.Parse(time.RFC3339Nano, createdAt.String())
		if err != nil {
			return fmt.Errorf("invalid created_at: %w", err)
		}
		p.CreatedAt = strfmt.DateTime(ts)
	}

	return nil
}

// Closed announces that a request left the open table, either because it was
// resolved or because it was cancelled. The answer text itself never travels
// through the notification channel; only the terminal reason does.
type Closed struct {
	ID     uuid.UUID `json:"id"`
	Reason string    `json:"reason"`
}

func (Closed) event() {}

// ReasonResolved is the Closed reason for requests that received an answer.
// Cancelled requests carry whatever reason the canceller supplied.
const ReasonResolved = "resolved"

// MarshalJSON implements custom JSON marshaling for Closed
func (c Closed) MarshalJSON() ([]byte, error) {
	result := closedJSON

	var err error
	result, err = sjson.SetBytes(result, "id", c.ID.String())
	if err != nil {
		return nil, err
	}

	result, err = sjson.SetBytes(result, "reason", c.Reason)
	return result, err
}

// UnmarshalJSON implements custom JSON unmarshaling for Closed
func (c *Closed) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}

	msgType := gjson.GetBytes(data, "type")
	if !msgType.Exists() || msgType.String() != "closed" {
		return fmt.Errorf("missing or invalid type, expected 'closed'")
	}

	id := gjson.GetBytes(data, "id")
	if !id.Exists() {
		return fmt.Errorf("missing required field 'id'")
	}
	if err := c.ID.UnmarshalText([]byte(id.String())); err != nil {
		return fmt.Errorf("invalid id: %w", err)
	}

	c.Reason = gjson.GetBytes(data, "reason").String()
	return nil
}

// Error carries a fault that occurred while producing notifications. It stays
// on the observer side of the boundary; the asker learns about its own
// request exclusively through resolve or cancel.
type Error struct {
	Err error `json:"error"`
}

func (Error) event() {}

func (e Error) Error() string {
	if e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

// MarshalJSON implements custom JSON marshaling for Error
func (e Error) MarshalJSON() ([]byte, error) {
	result := errorJSON

	var err error
	result, err = sjson.SetBytes(result, "error", e.Error())
	return result, err
}

// UnmarshalJSON implements custom JSON unmarshaling for Error
func (e *Error) UnmarshalJSON(data []byte) error {
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("invalid json: %s", data)
	}

	msgType := gjson.GetBytes(data, "type")
	if !msgType.Exists() || msgType.String() != "error" {
		return fmt.Errorf("missing or invalid type, expected 'error'")
	}

	if msg := gjson.GetBytes(data, "error"); msg.Exists() && msg.String() != "" {
		e.Err = fmt.Errorf("%s", msg.String())
	}
	return nil
}

// ToJSON serializes an event for transports that need a wire form (NATS,
// server-sent events, websockets). The type marker written by the custom
// marshalers is what FromJSON dispatches on.
func ToJSON(event Event) ([]byte, error) {
	if event == nil {
		return nil, fmt.Errorf("event is required")
	}
	return json.Marshal(event)
}

// FromJSON deserializes an event produced by ToJSON.
func FromJSON(data []byte) (Event, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid json: %s", data)
	}

	switch tpe := gjson.GetBytes(data, "type").String(); tpe {
	case "prompt":
		var p Prompt
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case "closed":
		var c Closed
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, err
		}
		return c, nil
	case "error":
		var e Error
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown event type: %q", tpe)
	}
}
