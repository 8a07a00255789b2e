package ids

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// New returns a lexicographically sortable identifier used for request ids
// and audit entries.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
