// Package clock provides the real-time implementation of ports.Clock.
package clock

import (
	"time"

	"github.com/opik/osem/internal/ports"
)

// Real is the production ports.Clock, backed by time.Now.
type Real struct{}

// Now returns the current UTC time.
func (Real) Now() time.Time { return time.Now().UTC() }

var _ ports.Clock = Real{}
