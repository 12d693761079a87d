package mocks

import (
	"time"

	"github.com/opik/osem/internal/ports"
)

// Clock is a fixed-time ports.Clock for deterministic tests.
type Clock struct {
	Fixed time.Time
}

func (c Clock) Now() time.Time { return c.Fixed }

var _ ports.Clock = Clock{}
