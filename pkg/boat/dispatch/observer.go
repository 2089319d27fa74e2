package dispatch

import (
	"time"

	"github.com/jholhewres/boat/pkg/boat/channels"
)

// Outcome is how a matched command run ended.
type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeDenied  Outcome = "denied"
	OutcomeFailed  Outcome = "failed"
	OutcomeTimeout Outcome = "timeout"
)

// Record describes one dispatch run that matched a registered command.
// Messages that are not command attempts produce no record.
type Record struct {
	RunID    string
	Channel  string
	ChatID   string
	Kind     channels.Kind
	Author   channels.Identity
	Command  string
	Outcome  Outcome
	Started  time.Time
	Duration time.Duration
	Err      error
}

// Observer receives a Record after every matched run. Observe is called on
// the dispatching goroutine and must not block for long.
type Observer interface {
	Observe(Record)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Record)

// Observe calls f(r).
func (f ObserverFunc) Observe(r Record) { f(r) }
