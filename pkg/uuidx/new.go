package uuidx

import "github.com/google/uuid"

// New generates a new version 7 UUID. Request identifiers are time ordered so
// listing requests in identifier order matches creation order.
// It panics if the UUID generation fails.
func New() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// NewString generates a new version 7 UUID and returns its string form.
func NewString() string {
	return New().String()
}
