package record

import (
	"time"

	"github.com/google/uuid"
)

// NewID returns a random (v4) UUID for a new record.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether s parses as a UUID. Imported records keep their
// ids, so anything else is rejected before it reaches the store.
func ValidID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// Now returns the current time in epoch milliseconds.
func Now() int64 {
	return time.Now().UnixMilli()
}
