package xid

import (
	"fmt"

	"github.com/google/uuid"
)

// New returns a random identifier such as "sess-3f0c...". Falls back to a
// time-ordered v1 UUID if the random source fails.
func New(prefix string) string {
	id, err := uuid.NewRandom()
	if err != nil {
		id = uuid.Must(uuid.NewUUID())
	}
	return fmt.Sprintf("%s-%s", prefix, id.String())
}

// Valid reports whether s was produced by New with the given prefix.
func Valid(prefix string, s string) bool {
	if len(s) <= len(prefix)+1 || s[:len(prefix)+1] != prefix+"-" {
		return false
	}
	_, err := uuid.Parse(s[len(prefix)+1:])
	return err == nil
}
