package world

import (
	"sync"

	"github.com/warp/upgrade-engine/generic"
)

// World serializes every access to a State. The tick driver calls Step and
// API handlers call Do, so a manual transfer can never interleave with a
// tick on the same container.
type World struct {
	mu    sync.Mutex
	state *State
}

func New() *World {
	return &World{state: NewState()}
}

// Wrap takes ownership of an existing state, e.g. one built by a scenario
// or restored from a snapshot.
func Wrap(s *State) *World {
	return &World{state: s}
}

// Step advances one tick and returns the stamped transfers it produced.
func (w *World) Step() []generic.Transfer {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.Advance()
}

// Do runs fn with exclusive access to the state.
func (w *World) Do(fn func(s *State) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return fn(w.state)
}

// Replace swaps in a new state and opens every gate, as a world load does.
func (w *World) Replace(s *State) {
	w.mu.Lock()
	defer w.mu.Unlock()
	s.ResetCooldowns()
	w.state = s
}

// Unload opens every gate so no cooldown debt survives into the next load.
func (w *World) Unload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state.ResetCooldowns()
}

func (w *World) CurrentTick() generic.Tick {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state.CurrentTick()
}
