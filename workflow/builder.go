package workflow

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/gridflow/gridflow/types"
)

// BuilderOptions configures the Builder. Registries are optional; when
// provided, the builder cross-checks declarations against them and reports
// non-fatal warnings (unbound dynamic functions, unregistered agent types).
type BuilderOptions struct {
	Logger *zap.Logger
	Agents *AgentRegistry
	Funcs  *FuncRegistry
}

func normalizeBuilderOptions(opts BuilderOptions) BuilderOptions {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return opts
}

// Builder turns parsed row sets into validated, immutable graph definitions.
// Building is pure: identical input always yields a structurally identical
// graph.
type Builder struct {
	logger *zap.Logger
	agents *AgentRegistry
	funcs  *FuncRegistry
}

// NewBuilder creates a Builder.
func NewBuilder(opts BuilderOptions) *Builder {
	opts = normalizeBuilderOptions(opts)
	return &Builder{
		logger: opts.Logger.With(zap.String("component", "graph_builder")),
		agents: opts.Agents,
		funcs:  opts.Funcs,
	}
}

// Build validates every graph on the sheet. Declaration errors are fatal and
// aggregated per graph into a ValidationError listing all offending rows;
// no graph set is returned partially built. Warnings never block the build.
func (b *Builder) Build(sheet *Sheet) (GraphSet, []*types.Error, error) {
	set := make(GraphSet, len(sheet.graphs))
	var warnings []*types.Error

	for _, name := range sheet.graphs {
		graph, graphWarnings, err := b.buildGraph(name, sheet.rows[name], sheet)
		if err != nil {
			return nil, nil, err
		}
		set[name] = graph
		warnings = append(warnings, graphWarnings...)
	}

	b.logger.Info("workflow sheet built",
		zap.Int("graphs", len(set)),
		zap.Int("warnings", len(warnings)),
	)
	return set, warnings, nil
}

// BuildGraph validates a single graph's rows outside of a sheet context.
func (b *Builder) BuildGraph(name string, rows []Row) (*GraphDefinition, []*types.Error, error) {
	sheet, err := ParseRows(rows)
	if err != nil {
		return nil, nil, err
	}
	graph, warnings, err := b.buildGraph(name, sheet.rows[name], sheet)
	if err != nil {
		return nil, nil, err
	}
	return graph, warnings, nil
}

func (b *Builder) buildGraph(name string, rows []parsedRow, sheet *Sheet) (*GraphDefinition, []*types.Error, error) {
	var issues []*types.Error

	if len(rows) == 0 {
		issues = append(issues, types.NewError(types.ErrEmptyGraph,
			"graph declares no nodes").WithGraph(name))
		return nil, nil, &types.ValidationError{Graph: name, Issues: issues}
	}

	graph := &GraphDefinition{
		name:  name,
		nodes: make(map[string]*NodeSpec, len(rows)),
		order: make([]string, 0, len(rows)),
	}

	for _, pr := range rows {
		spec := pr.spec
		if _, dup := graph.nodes[spec.Name]; dup {
			issues = append(issues, types.NewError(types.ErrDuplicateNode,
				"node name already declared").
				WithGraph(name).WithNode(spec.Name).WithRow(pr.row))
			continue
		}
		graph.nodes[spec.Name] = spec
		graph.order = append(graph.order, spec.Name)
	}
	// First row declared defines the entry point.
	graph.entry = graph.order[0]

	for _, nodeName := range graph.order {
		spec := graph.nodes[nodeName]
		for _, target := range spec.targets() {
			if target == Terminal {
				continue
			}
			if _, ok := graph.nodes[target]; !ok {
				issues = append(issues, types.NewError(types.ErrUnresolvedTarget,
					fmt.Sprintf("routing target %q is neither a node nor %s", target, Terminal)).
					WithGraph(name).WithNode(spec.Name).WithRow(spec.Row))
			}
		}
	}

	if len(issues) > 0 {
		return nil, nil, &types.ValidationError{Graph: name, Issues: issues}
	}

	return graph, b.collectWarnings(graph, sheet), nil
}

// collectWarnings surfaces non-fatal findings: bindings that may be supplied
// later by the host, and fan-out branches whose output fields overlap.
func (b *Builder) collectWarnings(graph *GraphDefinition, sheet *Sheet) []*types.Error {
	var warnings []*types.Error

	for _, spec := range graph.Nodes() {
		if spec.Routing.Kind == RoutingDynamic && b.funcs != nil && !b.funcs.Has(spec.Routing.FuncRef) {
			warnings = append(warnings, types.NewError(types.ErrUnboundFunction,
				fmt.Sprintf("dynamic routing function %q has no binding", spec.Routing.FuncRef)).
				WithGraph(graph.name).WithNode(spec.Name).WithRow(spec.Row))
		}

		if spec.AgentType != "" && b.agents != nil && !b.agents.Has(spec.AgentType) && !sheetHasGraph(sheet, spec.AgentType) {
			warnings = append(warnings, types.NewError(types.ErrAgentNotRegistered,
				fmt.Sprintf("agent type %q has no registered capability", spec.AgentType)).
				WithGraph(graph.name).WithNode(spec.Name).WithRow(spec.Row))
		}

		warnings = append(warnings, b.checkFanOutDisjointness(graph, spec)...)
	}

	for _, w := range warnings {
		b.logger.Warn("build warning",
			zap.String("graph", w.Graph),
			zap.String("node", w.Node),
			zap.String("code", string(w.Code)),
			zap.String("detail", w.Message),
		)
	}
	return warnings
}

// checkFanOutDisjointness warns when two parallel branches of the same
// fan-out write the same output field. Branches merge their written fields
// at the join, so overlapping writes would race by construction.
func (b *Builder) checkFanOutDisjointness(graph *GraphDefinition, spec *NodeSpec) []*types.Error {
	var warnings []*types.Error
	for _, targets := range [][]string{spec.Routing.OnSuccess, spec.Routing.OnFailure} {
		if len(targets) < 2 {
			continue
		}
		join, _ := graph.JoinNode(targets)
		seen := make(map[string]string)
		for _, head := range targets {
			for field := range branchOutputFields(graph, head, join) {
				if other, dup := seen[field]; dup && other != head {
					warnings = append(warnings, types.NewError(types.ErrOutputContract,
						fmt.Sprintf("fan-out branches %q and %q both write field %q", other, head, field)).
						WithGraph(graph.name).WithNode(spec.Name).WithRow(spec.Row))
					continue
				}
				seen[field] = head
			}
		}
	}
	return warnings
}

// branchOutputFields collects the output fields written along a branch,
// following static routing from head until the join node or a terminal.
func branchOutputFields(graph *GraphDefinition, head string, join *NodeSpec) map[string]struct{} {
	fields := make(map[string]struct{})
	visited := make(map[string]bool)
	frontier := []string{head}
	for len(frontier) > 0 {
		name := frontier[0]
		frontier = frontier[1:]
		if visited[name] || (join != nil && name == join.Name) {
			continue
		}
		visited[name] = true
		node, ok := graph.nodes[name]
		if !ok {
			continue
		}
		for _, f := range node.OutputFields {
			fields[f] = struct{}{}
		}
		frontier = append(frontier, graph.Targets(name)...)
	}
	return fields
}

func sheetHasGraph(sheet *Sheet, name string) bool {
	if sheet == nil {
		return false
	}
	_, ok := sheet.rows[name]
	return ok
}
