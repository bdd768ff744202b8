package uuidx

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	id := New()
	assert.Equal(t, uuid.Version(7), id.Version())
	assert.Equal(t, uuid.RFC4122, id.Variant())

	assert.NotEqual(t, id, New(), "consecutive ids must differ")
}

func TestNewOrdering(t *testing.T) {
	// v7 ids embed a timestamp, so ids generated in sequence sort in
	// generation order.
	a := New()
	b := New()
	assert.LessOrEqual(t, a.String(), b.String())
}

func TestNewString(t *testing.T) {
	idStr := NewString()
	id, err := uuid.Parse(idStr)
	assert.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())

	assert.Regexp(t, "^[0-9a-f]{8}-[0-9a-f]{4}-7[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$", idStr)
}
