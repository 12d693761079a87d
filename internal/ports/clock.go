package ports

import "time"

// Clock is injected everywhere the engine would otherwise call time.Now,
// so now_utc is controllable in tests and there is no process-wide time
// static.
type Clock interface {
	Now() time.Time
}
