package store

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// newEventID generates an EVT-YYYYMMDD-HHMMSS-<6 hex> identifier. The
// random suffix uses github.com/google/uuid the same way the rest of the
// example corpus generates opaque identifiers (e.g. a bus event's ID),
// rather than hand-rolling a random-hex helper.
func newEventID(at time.Time) string {
	u := uuid.New()
	suffix := fmt.Sprintf("%x", u[:3])
	return fmt.Sprintf("EVT-%s-%s", at.UTC().Format("20060102-150405"), suffix)
}
