package workflow

import "github.com/gridflow/gridflow/state"

// SuccessPolicy derives the overall outcome of a run from its step log.
// Evaluation happens once, after the engine reaches a terminal state, and
// never mutates the log.
type SuccessPolicy interface {
	Evaluate(log []state.StepRecord) bool
}

// PolicyFunc adapts a predicate over the full log to a SuccessPolicy.
type PolicyFunc func(log []state.StepRecord) bool

// Evaluate implements SuccessPolicy.
func (f PolicyFunc) Evaluate(log []state.StepRecord) bool {
	return f(log)
}

// AllNodes succeeds only when every step record reports success.
func AllNodes() SuccessPolicy {
	return PolicyFunc(func(log []state.StepRecord) bool {
		for _, rec := range log {
			if !rec.Success {
				return false
			}
		}
		return true
	})
}

// FinalNode succeeds when the last step record reports success. An empty
// log evaluates to true.
func FinalNode() SuccessPolicy {
	return PolicyFunc(func(log []state.StepRecord) bool {
		if len(log) == 0 {
			return true
		}
		return log[len(log)-1].Success
	})
}

// CriticalNodes succeeds when every step record for a node in the set
// reports success; other nodes are ignored.
func CriticalNodes(nodes ...string) SuccessPolicy {
	critical := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		critical[n] = true
	}
	return PolicyFunc(func(log []state.StepRecord) bool {
		for _, rec := range log {
			if critical[rec.Node] && !rec.Success {
				return false
			}
		}
		return true
	})
}
