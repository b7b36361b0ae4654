// Package state provides the mutable key/value container threaded through a
// single workflow run: declared input/output fields, the last-action success
// flag, and the append-only step log.
package state

import "time"

// StepRecord captures one node execution. Records are append-only and never
// mutated once written.
type StepRecord struct {
	Node       string    `json:"node" yaml:"node"`
	Timestamp  time.Time `json:"timestamp" yaml:"timestamp"`
	DurationMs int64     `json:"duration_ms" yaml:"duration_ms"`
	Success    bool      `json:"success" yaml:"success"`
}

// State is the execution state of one in-flight workflow run. It is
// exclusively owned by that run and must not be shared across concurrent
// runs; fan-out branches operate on independent Clones.
type State struct {
	values map[string]any
	// written tracks keys set since the last Clone, so a fan-out branch can
	// merge exactly the fields it produced back into the resuming state.
	written map[string]struct{}

	// LastActionSuccess reflects the success flag reported by the most
	// recently executed node. Defaults to true.
	LastActionSuccess bool

	steps []StepRecord
}

// New creates a State seeded from the caller-supplied initial values.
func New(initial map[string]any) *State {
	s := &State{
		values:            make(map[string]any, len(initial)),
		written:           make(map[string]struct{}),
		LastActionSuccess: true,
	}
	for k, v := range initial {
		s.values[k] = v
	}
	return s
}

// Get retrieves a field value by name.
func (s *State) Get(key string) (any, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Set writes a field value and records the key in the write journal.
func (s *State) Set(key string, value any) {
	s.values[key] = value
	s.written[key] = struct{}{}
}

// Has reports whether a field is present.
func (s *State) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Fields extracts the named fields into a map. Absent fields are skipped,
// not an error; presence is the consuming agent's concern.
func (s *State) Fields(keys []string) map[string]any {
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		if v, ok := s.values[k]; ok {
			out[k] = v
		}
	}
	return out
}

// Keys returns the names of all present fields.
func (s *State) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	return keys
}

// Clone returns an independent snapshot of the state with an empty write
// journal. Field values are copied shallowly; branch agents own any deep
// structure they mutate.
func (s *State) Clone() *State {
	c := &State{
		values:            make(map[string]any, len(s.values)),
		written:           make(map[string]struct{}),
		LastActionSuccess: s.LastActionSuccess,
		steps:             make([]StepRecord, len(s.steps)),
	}
	for k, v := range s.values {
		c.values[k] = v
	}
	copy(c.steps, s.steps)
	return c
}

// WrittenKeys returns the keys set on this state since its Clone, sorted
// insertion-independent (map order).
func (s *State) WrittenKeys() []string {
	keys := make([]string, 0, len(s.written))
	for k := range s.written {
		keys = append(keys, k)
	}
	return keys
}

// MergeWrites folds the fields written on a branch state back into s.
// Only journaled keys move; the branch's step records are appended after
// s's existing log.
func (s *State) MergeWrites(branch *State, branchLogStart int) {
	for k := range branch.written {
		s.values[k] = branch.values[k]
		s.written[k] = struct{}{}
	}
	if branchLogStart < len(branch.steps) {
		s.steps = append(s.steps, branch.steps[branchLogStart:]...)
	}
}

// AppendStep appends a step record to the log.
func (s *State) AppendStep(rec StepRecord) {
	s.steps = append(s.steps, rec)
}

// StepLog returns a copy of the step log.
func (s *State) StepLog() []StepRecord {
	out := make([]StepRecord, len(s.steps))
	copy(out, s.steps)
	return out
}

// StepCount returns the current length of the step log.
func (s *State) StepCount() int {
	return len(s.steps)
}

// Snapshot returns a copy of all field values, for result reporting.
func (s *State) Snapshot() map[string]any {
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}
