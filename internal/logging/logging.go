// Package logging provides the standard-library-backed implementation of
// ports.Logger. The teacher never reaches for a structured-logging
// library anywhere in its service layer — every background worker logs
// through the stdlib "log" package with a bracketed component tag, e.g.
// log.Printf("[ScheduledSendService] ..."). This package keeps that same
// idiom, just behind the injectable ports.Logger interface instead of a
// bare package-level call, since nothing else in the example corpus
// offers a logging library the teacher itself doesn't already forgo.
package logging

import "log"

// Tagged is a ports.Logger that prefixes every line with "[tag]", matching
// the convention used throughout the teacher's internal/services package.
type Tagged struct {
	tag string
}

// New returns a Tagged logger for the given component tag.
func New(tag string) *Tagged {
	return &Tagged{tag: tag}
}

func (t *Tagged) Debugf(format string, args ...any) {
	log.Printf("[%s] "+format, append([]any{t.tag}, args...)...)
}

func (t *Tagged) Infof(format string, args ...any) {
	log.Printf("[%s] "+format, append([]any{t.tag}, args...)...)
}

func (t *Tagged) Errorf(format string, args ...any) {
	log.Printf("[%s] ERROR: "+format, append([]any{t.tag}, args...)...)
}
