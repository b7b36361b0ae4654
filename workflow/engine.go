package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gridflow/gridflow/internal/metrics"
	"github.com/gridflow/gridflow/llm"
	"github.com/gridflow/gridflow/state"
	"github.com/gridflow/gridflow/types"
)

// RunStatus is the terminal status of one run. Run is synchronous, so only
// terminal statuses are observable.
type RunStatus string

const (
	StatusSucceeded RunStatus = "succeeded"
	StatusFailed    RunStatus = "failed"
	StatusAborted   RunStatus = "aborted"
)

// OutputMismatchPolicy selects what happens when a structured agent result
// lacks a declared output key.
type OutputMismatchPolicy string

const (
	// OutputMismatchWarn logs and continues with the field absent.
	OutputMismatchWarn OutputMismatchPolicy = "warn"
	// OutputMismatchError converts the mismatch into a node failure.
	OutputMismatchError OutputMismatchPolicy = "error"
	// OutputMismatchIgnore silently proceeds.
	OutputMismatchIgnore OutputMismatchPolicy = "ignore"
)

// ModelRouter picks a provider/model for an LLM-class node invocation.
type ModelRouter interface {
	Route(ctx context.Context, profile llm.TaskProfile) (*llm.RoutingDecision, error)
}

// EngineOptions configures the Engine.
type EngineOptions struct {
	Logger *zap.Logger
	// Router serves LLM-class agents. Optional; without it LLM-class nodes
	// are invoked with no routing decision.
	Router ModelRouter
	// Funcs binds dynamic routing function references.
	Funcs *FuncRegistry
	// Graphs resolves sub-workflow nodes by graph name.
	Graphs GraphSet
	// Policy derives the overall outcome; AllNodes when nil.
	Policy SuccessPolicy
	// OutputMismatch defaults to OutputMismatchWarn.
	OutputMismatch OutputMismatchPolicy
	Metrics        *metrics.Collector
}

func normalizeEngineOptions(opts EngineOptions) EngineOptions {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Funcs == nil {
		opts.Funcs = NewFuncRegistry()
	}
	if opts.Policy == nil {
		opts.Policy = AllNodes()
	}
	if opts.OutputMismatch == "" {
		opts.OutputMismatch = OutputMismatchWarn
	}
	return opts
}

// RunResult is what a run hands back: the final state, the full step log,
// and the policy-derived overall outcome.
type RunResult struct {
	RunID          string
	Status         RunStatus
	FinalState     *state.State
	StepLog        []state.StepRecord
	OverallSuccess bool
}

// Engine walks a validated graph against a state container, invoking
// registered agent capabilities and the model router per node. A single
// Engine is safe to share across concurrent runs; each run owns its state.
type Engine struct {
	agents         *AgentRegistry
	router         ModelRouter
	funcs          *FuncRegistry
	graphs         GraphSet
	policy         SuccessPolicy
	outputMismatch OutputMismatchPolicy
	logger         *zap.Logger
	metrics        *metrics.Collector
}

// NewEngine creates an Engine over the given capability registry.
func NewEngine(agents *AgentRegistry, opts EngineOptions) *Engine {
	if agents == nil {
		agents = NewAgentRegistry()
	}
	opts = normalizeEngineOptions(opts)
	return &Engine{
		agents:         agents,
		router:         opts.Router,
		funcs:          opts.Funcs,
		graphs:         opts.Graphs,
		policy:         opts.Policy,
		outputMismatch: opts.OutputMismatch,
		logger:         opts.Logger.With(zap.String("component", "engine")),
		metrics:        opts.Metrics,
	}
}

// Run executes the graph from its entry node against a fresh state seeded
// with the initial values. Capability failures route through the graph's
// own failure edges; engine-level failures abort the run, returning the
// accumulated step log alongside the error.
func (e *Engine) Run(ctx context.Context, graph *GraphDefinition, initial map[string]any) (*RunResult, error) {
	if graph == nil {
		return nil, fmt.Errorf("graph cannot be nil")
	}

	runID := uuid.NewString()
	st := state.New(initial)
	logger := e.logger.With(
		zap.String("run_id", runID),
		zap.String("graph", graph.Name()),
	)
	logger.Info("run starting", zap.String("entry", graph.Entry()))

	abortErr := e.walk(ctx, graph, st, graph.Entry(), "", logger)

	result := &RunResult{
		RunID:      runID,
		FinalState: st,
		StepLog:    st.StepLog(),
	}

	if abortErr != nil {
		result.Status = StatusAborted
		e.observeRun(graph.Name(), result.Status)
		logger.Error("run aborted",
			zap.Int("steps", len(result.StepLog)),
			zap.Error(abortErr),
		)
		return result, abortErr
	}

	result.OverallSuccess = e.policy.Evaluate(result.StepLog)
	if result.OverallSuccess {
		result.Status = StatusSucceeded
	} else {
		result.Status = StatusFailed
	}
	e.observeRun(graph.Name(), result.Status)

	logger.Info("run finished",
		zap.String("status", string(result.Status)),
		zap.Int("steps", len(result.StepLog)),
	)
	return result, nil
}

// walk runs nodes from current until a terminal, the stopAt node (join of a
// fan-out), or an abort. Only engine-level failures return an error.
func (e *Engine) walk(ctx context.Context, graph *GraphDefinition, st *state.State, current, stopAt string, logger *zap.Logger) error {
	for current != "" && current != Terminal {
		if stopAt != "" && current == stopAt {
			return nil
		}
		select {
		case <-ctx.Done():
			return types.NewError(types.ErrRunAborted, "run cancelled").WithCause(ctx.Err())
		default:
		}

		node, ok := graph.Node(current)
		if !ok {
			return types.NewError(types.ErrUnresolvedTarget,
				fmt.Sprintf("routing resolved to unknown node %q", current)).
				WithGraph(graph.Name())
		}

		if err := e.executeNode(ctx, graph, node, st, logger); err != nil {
			return err
		}

		next, err := e.resolveNext(ctx, graph, node, st, stopAt, logger)
		if err != nil {
			return err
		}
		current = next
	}
	return nil
}

// executeNode runs one node: extract inputs, route the model when the agent
// is LLM-class, invoke the capability, write outputs, record the step.
func (e *Engine) executeNode(ctx context.Context, graph *GraphDefinition, node *NodeSpec, st *state.State, logger *zap.Logger) error {
	inputs := st.Fields(node.InputFields)
	start := time.Now()

	res, err := e.invoke(ctx, graph, node, st, inputs, logger)
	if err != nil && types.GetErrorCode(err) == types.ErrRunAborted {
		// A sub-workflow abort leaves the parent no safe continuation.
		return err
	}

	success := err == nil && res != nil && res.Success
	if res != nil && res.Output != nil {
		// Outputs are written even when the capability reports failure, so a
		// failure-edge handler can read what the node produced.
		if !e.writeOutputs(node, res.Output, st, logger) {
			success = false
		}
	}
	if err != nil {
		// Capability errors are node failures, never engine failures; the
		// graph's own failure routing decides what happens next.
		logger.Warn("node capability failed",
			zap.String("node", node.Name),
			zap.String("agent_type", node.AgentType),
			zap.Error(err),
		)
	}

	duration := time.Since(start)
	st.LastActionSuccess = success
	st.AppendStep(state.StepRecord{
		Node:       node.Name,
		Timestamp:  start,
		DurationMs: duration.Milliseconds(),
		Success:    success,
	})

	if e.metrics != nil {
		e.metrics.ObserveNodeExecution(graph.Name(), node.AgentType, success, duration)
	}
	logger.Debug("node executed",
		zap.String("node", node.Name),
		zap.Bool("success", success),
		zap.Duration("duration", duration),
	)
	return nil
}

// invoke dispatches to a sub-workflow when the agent type names a graph in
// the GraphSet, otherwise to the registered capability. A registered
// capability name shadows a graph name.
func (e *Engine) invoke(ctx context.Context, graph *GraphDefinition, node *NodeSpec, st *state.State, inputs map[string]any, logger *zap.Logger) (*Result, error) {
	reg, registered := e.agents.lookup(node.AgentType)
	if !registered {
		if sub, ok := e.graphs[node.AgentType]; ok {
			return e.runSubWorkflow(ctx, sub, inputs, logger)
		}
		return nil, types.NewError(types.ErrAgentNotRegistered,
			fmt.Sprintf("agent type %q has no registered capability", node.AgentType)).
			WithGraph(graph.Name()).WithNode(node.Name)
	}

	inv := &Invocation{
		AgentType: node.AgentType,
		Inputs:    inputs,
		Config:    node.Config,
		Prompt:    node.Prompt,
	}

	if reg.llmClass && e.router != nil {
		profile := llm.TaskProfile{
			TaskType:    taskTypeFor(node, reg.taskType),
			Prompt:      assemblePrompt(node, inputs),
			ContextSize: len(inputs),
		}
		decision, err := e.router.Route(ctx, profile)
		if err != nil {
			// A routing failure is this node's failure, not an abort.
			return nil, err
		}
		inv.Routing = decision
	}

	return reg.agent.Invoke(ctx, inv)
}

// runSubWorkflow executes a nested graph synchronously against a fresh
// state seeded from the parent node's input fields. The sub-run's final
// state folds back into the parent at the node's output field(s).
func (e *Engine) runSubWorkflow(ctx context.Context, sub *GraphDefinition, inputs map[string]any, logger *zap.Logger) (*Result, error) {
	logger.Debug("entering sub-workflow", zap.String("sub_graph", sub.Name()))
	res, err := e.Run(ctx, sub, inputs)
	if err != nil {
		// Sub-run aborts propagate; no safe continuation exists. The wrapping
		// code tells the caller apart from a capability-style failure.
		return nil, types.NewError(types.ErrRunAborted, "sub-workflow aborted").
			WithGraph(sub.Name()).WithCause(err)
	}
	return &Result{Output: res.FinalState.Snapshot(), Success: res.OverallSuccess}, nil
}

// writeOutputs distributes a node result into the declared output fields
// and reports whether the output contract held.
func (e *Engine) writeOutputs(node *NodeSpec, output any, st *state.State, logger *zap.Logger) bool {
	switch len(node.OutputFields) {
	case 0:
		return true
	case 1:
		st.Set(node.OutputFields[0], output)
		return true
	}

	structured, ok := output.(map[string]any)
	if !ok {
		return e.reportMismatch(node, node.OutputFields, logger)
	}

	var missing []string
	for _, field := range node.OutputFields {
		value, present := structured[field]
		if !present {
			// Missing keys are left absent, not defaulted.
			missing = append(missing, field)
			continue
		}
		st.Set(field, value)
	}
	if len(missing) == 0 {
		return true
	}
	return e.reportMismatch(node, missing, logger)
}

// reportMismatch applies the configured output-contract policy and reports
// whether the node still counts as successful.
func (e *Engine) reportMismatch(node *NodeSpec, missing []string, logger *zap.Logger) bool {
	switch e.outputMismatch {
	case OutputMismatchIgnore:
		return true
	case OutputMismatchError:
		logger.Warn("output contract violated",
			zap.String("node", node.Name),
			zap.Strings("missing_fields", missing),
		)
		return false
	default:
		logger.Warn("output fields absent from structured result",
			zap.String("node", node.Name),
			zap.Strings("missing_fields", missing),
		)
		return true
	}
}

// resolveNext applies the node's routing rule. Fan-out lists are executed
// here; the returned node is where single-threaded continuation resumes.
func (e *Engine) resolveNext(ctx context.Context, graph *GraphDefinition, node *NodeSpec, st *state.State, stopAt string, logger *zap.Logger) (string, error) {
	switch node.Routing.Kind {
	case RoutingDirect:
		return node.Routing.Target, nil

	case RoutingConditional:
		targets := node.Routing.OnSuccess
		if !st.LastActionSuccess {
			targets = node.Routing.OnFailure
		}
		targets = dropTerminal(targets)
		switch len(targets) {
		case 0:
			return "", nil
		case 1:
			return targets[0], nil
		default:
			return e.runFanOut(ctx, graph, st, targets, stopAt, logger)
		}

	case RoutingDynamic:
		fn, bound := e.funcs.lookup(node.Routing.FuncRef)
		if !bound {
			return "", types.NewError(types.ErrUnboundFunction,
				fmt.Sprintf("dynamic routing function %q has no binding", node.Routing.FuncRef)).
				WithGraph(graph.Name()).WithNode(node.Name)
		}
		next, err := fn(ctx, st)
		if err != nil {
			return "", types.NewError(types.ErrRoutingUnresolved,
				"dynamic routing function failed").
				WithGraph(graph.Name()).WithNode(node.Name).WithCause(err)
		}
		if next == "" || next == Terminal {
			return "", nil
		}
		if _, ok := graph.Node(next); !ok {
			return "", types.NewError(types.ErrUnresolvedTarget,
				fmt.Sprintf("dynamic routing returned unknown node %q", next)).
				WithGraph(graph.Name()).WithNode(node.Name)
		}
		return next, nil

	default:
		// Terminal node: no routing declared.
		return "", nil
	}
}

// runFanOut schedules each target as an independent continuation on a
// snapshot of the current state, waits for every branch to reach the
// declared join node (or its own terminal), then merges the branch-written
// fields and step logs back in declared target order.
func (e *Engine) runFanOut(ctx context.Context, graph *GraphDefinition, st *state.State, targets []string, stopAt string, logger *zap.Logger) (string, error) {
	join, hasJoin := graph.JoinNode(targets)
	joinName := ""
	if hasJoin {
		joinName = join.Name
	} else if stopAt != "" {
		// A nested fan-out may reconverge at the enclosing join.
		joinName = stopAt
	}

	logger.Debug("fan-out",
		zap.Strings("targets", targets),
		zap.String("join", joinName),
	)

	forkLog := st.StepCount()
	branches := make([]*state.State, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	for i, target := range targets {
		branch := st.Clone()
		branches[i] = branch
		g.Go(func() error {
			return e.walk(gctx, graph, branch, target, joinName, logger)
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	allSucceeded := true
	for _, branch := range branches {
		st.MergeWrites(branch, forkLog)
		allSucceeded = allSucceeded && branch.LastActionSuccess
	}
	st.LastActionSuccess = allSucceeded

	return joinName, nil
}

func (e *Engine) observeRun(graph string, status RunStatus) {
	if e.metrics != nil {
		e.metrics.ObserveRun(graph, string(status))
	}
}

// taskTypeFor prefers a task_type declared in the node's config payload
// over the one the capability was registered with.
func taskTypeFor(node *NodeSpec, registered string) string {
	if cfg, ok := node.Config.(map[string]any); ok {
		if tt, ok := cfg["task_type"].(string); ok && tt != "" {
			return tt
		}
	}
	return registered
}

// assemblePrompt renders the prompt body plus the extracted input fields,
// in declared order, for complexity scoring.
func assemblePrompt(node *NodeSpec, inputs map[string]any) string {
	var b strings.Builder
	b.WriteString(node.Prompt)
	for _, field := range node.InputFields {
		if value, ok := inputs[field]; ok {
			fmt.Fprintf(&b, "\n%s: %v", field, value)
		}
	}
	return b.String()
}

func dropTerminal(targets []string) []string {
	out := targets[:0:0]
	for _, t := range targets {
		if t != Terminal {
			out = append(out, t)
		}
	}
	return out
}
