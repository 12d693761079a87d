package mocks

import "github.com/opik/osem/internal/ports"

// Logger is a no-op ports.Logger for tests that don't assert on log output.
type Logger struct{}

func (Logger) Debugf(format string, args ...any) {}
func (Logger) Infof(format string, args ...any)  {}
func (Logger) Errorf(format string, args ...any) {}

var _ ports.Logger = Logger{}
