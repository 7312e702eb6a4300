package store

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// NewID generates a ULID for sessions and instances. ULIDs sort by
// creation time, which keeps session listings and log file names in
// chronological order for free.
func NewID() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}

// shortIDLen is the suffix length exported to children as
// KLAUDE_SESSION_ID_SHORT.
const shortIDLen = 6

// ShortID returns the trailing characters of a ULID used in prompts and
// CLI output. The ULID tail carries the entropy, so suffixes collide far
// less often than prefixes.
func ShortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[len(id)-shortIDLen:]
}
