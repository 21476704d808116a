// Package utils holds small helpers shared across the server.
package utils

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyLock sync.Mutex
	entropy     = ulid.Monotonic(rand.Reader, 0)
)

// NewRequestID returns a ULID. IDs minted by one process sort in creation
// order, also within the same millisecond.
func NewRequestID() string {
	return newID(time.Now()).String()
}

func newID(t time.Time) ulid.ULID {
	entropyLock.Lock()
	defer entropyLock.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy)
}

// RequestIDTime extracts the creation time of an id from NewRequestID.
func RequestIDTime(id string) (time.Time, error) {
	parsed, err := ulid.Parse(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
