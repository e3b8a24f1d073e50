package symmetry

import (
	"sync"
	"time"
)

// Outcome is the record of one handled request
type Outcome struct {
	RequestID string
	Snapshot  *Snapshot // input, before the result was applied
	Result    *Result   // nil on failure
	Err       error
	At        time.Time
	Elapsed   time.Duration
}

// Stats counts handled requests
type Stats struct {
	Requests  int       `json:"requests"`
	Failures  int       `json:"failures"`
	Moved     int       `json:"moved"`
	LastAt    time.Time `json:"lastAt"`
	LastError string    `json:"lastError,omitempty"`
}

// StateTracker keeps the last successful outcome and running counters for the
// HTTP endpoints. It is safe for concurrent use.
type StateTracker struct {
	mu    sync.RWMutex
	last  *Outcome
	stats Stats
}

// NewStateTracker creates an empty state tracker
func NewStateTracker() *StateTracker {
	return &StateTracker{}
}

// Record stores an outcome. Failures update the counters but keep the previous
// successful outcome available.
func (st *StateTracker) Record(o Outcome) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.stats.Requests++
	st.stats.LastAt = o.At
	if o.Err != nil {
		st.stats.Failures++
		st.stats.LastError = o.Err.Error()
		return
	}
	st.stats.LastError = ""
	if o.Result != nil {
		st.stats.Moved += o.Result.MovedCount
	}
	oc := o
	st.last = &oc
}

// Last returns the last successful outcome
func (st *StateTracker) Last() (Outcome, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if st.last == nil {
		return Outcome{}, false
	}
	return *st.last, true
}

// HasResult reports whether any request has succeeded
func (st *StateTracker) HasResult() bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.last != nil
}

// Stats returns a copy of the counters
func (st *StateTracker) Stats() Stats {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.stats
}

// Scene rebuilds the scene of the last successful outcome
func (st *StateTracker) Scene() (*Scene, bool) {
	o, ok := st.Last()
	if !ok || o.Result == nil || o.Snapshot == nil {
		return nil, false
	}
	return NewScene(o.Snapshot.CorePoints(), o.Result), true
}
