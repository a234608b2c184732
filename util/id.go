package util

import (
	"github.com/google/uuid"
)

// NewInstanceID returns a random id used to tell sampler instances apart in logs and metrics.
func NewInstanceID() string {
	return uuid.NewString()
}

// ShortID returns the first block of a uuid string, or the input unchanged if it has none.
func ShortID(id string) string {
	for i, r := range id {
		if r == '-' {
			return id[:i]
		}
	}
	return id
}
