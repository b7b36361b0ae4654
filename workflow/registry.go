package workflow

import (
	"context"
	"sync"

	"github.com/gridflow/gridflow/llm"
	"github.com/gridflow/gridflow/state"
)

// Invocation carries everything a capability needs for one node execution.
type Invocation struct {
	// AgentType is the tag the node was declared with.
	AgentType string
	// Inputs holds the extracted input fields; declared-but-absent fields
	// are simply missing from the map.
	Inputs map[string]any
	// Config is the node's opaque config payload.
	Config any
	// Prompt is the node's prompt/config body.
	Prompt string
	// Routing is the model routing decision for LLM-class agents, nil
	// otherwise.
	Routing *llm.RoutingDecision
}

// Result is what a capability reports back for one invocation.
type Result struct {
	// Output is written to the node's output field(s).
	Output any
	// Success drives conditional routing and the step record.
	Success bool
}

// Agent is the single pluggable capability interface. One implementation per
// agent type is registered by the host before any graph referencing that
// type is executed.
type Agent interface {
	Invoke(ctx context.Context, inv *Invocation) (*Result, error)
}

// AgentFunc adapts a function to the Agent interface.
type AgentFunc func(ctx context.Context, inv *Invocation) (*Result, error)

// Invoke implements Agent.
func (f AgentFunc) Invoke(ctx context.Context, inv *Invocation) (*Result, error) {
	return f(ctx, inv)
}

type registeredAgent struct {
	agent    Agent
	llmClass bool
	taskType string
}

// AgentRegistry maps agent-type tags to capability implementations. It is
// safe for concurrent registration and lookup.
type AgentRegistry struct {
	mu     sync.RWMutex
	agents map[string]registeredAgent
}

// NewAgentRegistry creates an empty registry.
func NewAgentRegistry() *AgentRegistry {
	return &AgentRegistry{agents: make(map[string]registeredAgent)}
}

// Register binds a capability to an agent type.
func (r *AgentRegistry) Register(agentType string, agent Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[agentType] = registeredAgent{agent: agent}
}

// RegisterLLM binds an LLM-class capability to an agent type. The engine
// consults the model router before every invocation of an LLM-class agent,
// scoring against the given task type ("general" when empty).
func (r *AgentRegistry) RegisterLLM(agentType string, agent Agent, taskType string) {
	if taskType == "" {
		taskType = "general"
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[agentType] = registeredAgent{agent: agent, llmClass: true, taskType: taskType}
}

// Has reports whether an agent type is registered.
func (r *AgentRegistry) Has(agentType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.agents[agentType]
	return ok
}

// Types returns the registered agent types.
func (r *AgentRegistry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.agents))
	for t := range r.agents {
		out = append(out, t)
	}
	return out
}

func (r *AgentRegistry) lookup(agentType string) (registeredAgent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.agents[agentType]
	return reg, ok
}

// DynamicFunc computes the next node name from the current state at run
// time. It is registered by name by the host.
type DynamicFunc func(ctx context.Context, st *state.State) (string, error)

// FuncRegistry maps function references to dynamic routing functions. It is
// safe for concurrent registration and lookup.
type FuncRegistry struct {
	mu    sync.RWMutex
	funcs map[string]DynamicFunc
}

// NewFuncRegistry creates an empty registry.
func NewFuncRegistry() *FuncRegistry {
	return &FuncRegistry{funcs: make(map[string]DynamicFunc)}
}

// Register binds a dynamic routing function to a name.
func (r *FuncRegistry) Register(name string, fn DynamicFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = fn
}

// Has reports whether a function reference is bound.
func (r *FuncRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.funcs[name]
	return ok
}

func (r *FuncRegistry) lookup(name string) (DynamicFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	return fn, ok
}
