// Package signal provides ordered, freeze-once listener chains.
//
// A Signal is created open. During the setup phase, listeners are appended in
// the order they should later run. Freezing the signal ends the setup phase:
// the listener list becomes immutable and the signal becomes eligible for
// dispatch. The one-way transition is what makes dispatch safe across
// concurrent emitters without any locking.
package signal

import (
	"context"
	"fmt"
)

// A Listener is a callback registered on a Signal. It receives the owner of
// the emitting configuration, the per-emission correlation context, and the
// event payload. A non-nil error aborts the chain.
type Listener[O, C, P any] func(ctx context.Context, owner O, tcc C, p P) error

// ConfigurationError reports a freeze-barrier violation: appending to a
// frozen signal, or emitting on an open one. It indicates incorrect wiring,
// so the signal panics with it instead of returning it.
type ConfigurationError struct {
	Signal string
	Op     string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("signal %s: %s", e.Signal, e.Op)
}

// A Signal is an ordered, appendable list of listeners bound to one event
// name. It has two states: open, where listeners may be added and removed,
// and frozen, where the list is immutable and Emit may be called.
//
// State transitions are not internally synchronized. The intended lifecycle
// is single-writer registration during setup, Freeze, then many-reader
// dispatch; the caller provides the happens-before edge between the two
// phases (e.g., by freezing before starting any request).
type Signal[O, C, P any] struct {
	name      string
	listeners []Listener[O, C, P]
	frozen    bool
}

// New creates an open Signal with the given event name. The name only
// appears in error messages and diagnostics.
func New[O, C, P any](name string) *Signal[O, C, P] {
	return &Signal[O, C, P]{name: name}
}

// Name returns the event name the signal is bound to.
func (s *Signal[O, C, P]) Name() string {
	return s.name
}

// Frozen reports whether the signal has been frozen.
func (s *Signal[O, C, P]) Frozen() bool {
	return s.frozen
}

// Len returns the number of registered listeners.
func (s *Signal[O, C, P]) Len() int {
	return len(s.listeners)
}

// Append adds a listener to the end of the chain. It panics with a
// *ConfigurationError if the signal is already frozen.
func (s *Signal[O, C, P]) Append(l Listener[O, C, P]) {
	s.mustBeOpen("append listener after freeze")
	s.listeners = append(s.listeners, l)
}

// RemoveAt removes the listener at position i, keeping the order of the
// remaining listeners. It panics with a *ConfigurationError if the signal is
// frozen.
func (s *Signal[O, C, P]) RemoveAt(i int) {
	s.mustBeOpen("remove listener after freeze")
	s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
}

// Freeze transitions the signal to the frozen state. Freezing twice is a
// no-op; a frozen signal never reopens.
func (s *Signal[O, C, P]) Freeze() {
	s.frozen = true
}

// Emit invokes every listener strictly in registration order, each run to
// completion before the next. The first listener error aborts the chain and
// is returned unchanged; listeners after it do not run. If ctx is cancelled
// between listeners, the chain is abandoned and ctx.Err() is returned.
// Listeners already invoked are never rolled back.
//
// Emit panics with a *ConfigurationError if the signal is not frozen:
// dispatching while the listener list may still change is a wiring error.
func (s *Signal[O, C, P]) Emit(ctx context.Context, owner O, tcc C, p P) error {
	if !s.frozen {
		panic(&ConfigurationError{Signal: s.name, Op: "emit before freeze"})
	}

	for _, l := range s.listeners {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := l(ctx, owner, tcc, p); err != nil {
			return err
		}
	}

	return nil
}

func (s *Signal[O, C, P]) mustBeOpen(op string) {
	if s.frozen {
		panic(&ConfigurationError{Signal: s.name, Op: op})
	}
}
