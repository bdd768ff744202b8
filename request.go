package switchboard

import (
	"maps"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"

	"github.com/casualjim/switchboard/events"
)

type requestState int8

const (
	stateOpen requestState = iota
	stateResolved
	stateCancelled
)

// pendingRequest is one entry in the broker's table. It is only ever touched
// while holding the broker mutex; the asker sees it exclusively through its
// Handle, observers exclusively through the Prompt projection.
type pendingRequest struct {
	id        uuid.UUID
	question  string
	metadata  map[string]any
	createdAt strfmt.DateTime
	state     requestState
	answer    string
	fut       *future
	timer     *time.Timer
	// observer names that already received this request through Poll
	notified map[string]struct{}
}

func (r *pendingRequest) prompt() events.Prompt {
	return events.Prompt{
		ID:        r.id,
		Question:  r.question,
		Metadata:  maps.Clone(r.metadata),
		CreatedAt: r.createdAt,
	}
}
