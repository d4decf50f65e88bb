// Package ids generates prefixed identifiers for stored records.
package ids

import (
	"fmt"

	"github.com/google/uuid"
)

// New returns a prefixed identifier, e.g. "job_5f3c...".
func New(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.NewString())
}
