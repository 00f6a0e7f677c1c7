package dbinit

import (
	"sort"
	"sync"
)

// Recorder receives initialization outcomes.
type Recorder interface {
	Record(Outcome)
}

// Tracker keeps the latest outcome per context. It is safe for concurrent use.
type Tracker struct {
	mu       sync.RWMutex
	outcomes map[string]Outcome
}

var _ Recorder = (*Tracker)(nil)

// NewTracker returns an empty Tracker. The zero value is also ready to use.
func NewTracker() *Tracker {
	return &Tracker{outcomes: make(map[string]Outcome)}
}

// Record stores o as the latest outcome for o.Context.
func (t *Tracker) Record(o Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.outcomes == nil {
		t.outcomes = make(map[string]Outcome)
	}
	t.outcomes[o.Context] = o
}

// Snapshot returns the latest outcomes ordered by context name.
func (t *Tracker) Snapshot() Outcomes {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(Outcomes, 0, len(t.outcomes))
	for _, o := range t.outcomes {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Context < out[j].Context })
	return out
}

// Healthy reports whether every recorded context initialized successfully.
func (t *Tracker) Healthy() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, o := range t.outcomes {
		if !o.Succeeded {
			return false
		}
	}
	return true
}
