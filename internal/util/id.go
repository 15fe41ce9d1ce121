package util

import "github.com/google/uuid"

// NewID returns a random UUID string for entity primary keys.
func NewID() string {
	return uuid.NewString()
}
