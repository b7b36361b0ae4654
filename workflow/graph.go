package workflow

// Terminal is the designated routing target marking the end of a path.
// An empty routing declaration is equivalent.
const Terminal = "END"

// RoutingKind discriminates the closed set of routing styles a node may
// declare. Exactly one kind is decided per node at parse time.
type RoutingKind string

const (
	// RoutingNone marks a terminal node with no successor.
	RoutingNone RoutingKind = "none"
	// RoutingDirect is an unconditional single successor.
	RoutingDirect RoutingKind = "direct"
	// RoutingConditional selects successors by the prior node's success flag.
	RoutingConditional RoutingKind = "conditional"
	// RoutingDynamic computes the successor via a host-bound function.
	RoutingDynamic RoutingKind = "dynamic"
)

// Routing is the tagged routing variant of a node.
type Routing struct {
	Kind RoutingKind
	// Target is the successor for direct routing.
	Target string
	// OnSuccess and OnFailure are the conditional target lists; more than
	// one entry denotes fan-out to parallel continuations.
	OnSuccess []string
	OnFailure []string
	// FuncRef names the host-registered function for dynamic routing.
	FuncRef string
}

// NodeSpec describes one workflow step as declared by a single row.
type NodeSpec struct {
	// Name uniquely identifies the node within its graph.
	Name string
	// AgentType tags the capability (or sub-workflow graph) executing the node.
	AgentType string
	// InputFields lists the state keys extracted into the agent's input map.
	InputFields []string
	// OutputFields lists the state keys the result is written to. A single
	// entry receives the whole result; multiple entries distribute a
	// structured map result key by key.
	OutputFields []string
	// Config is the opaque payload from the context column: a map when the
	// column holds JSON, otherwise the raw string.
	Config any
	// Prompt is the prompt/config body handed to the capability.
	Prompt string
	// Routing is the node's successor rule.
	Routing Routing
	// Row is the 1-based declaration row, for error reporting.
	Row int
}

// IsTerminal reports whether the node declares no successor.
func (n *NodeSpec) IsTerminal() bool {
	return n.Routing.Kind == RoutingNone
}

// targets returns every routing target the node references.
func (n *NodeSpec) targets() []string {
	switch n.Routing.Kind {
	case RoutingDirect:
		return []string{n.Routing.Target}
	case RoutingConditional:
		out := make([]string, 0, len(n.Routing.OnSuccess)+len(n.Routing.OnFailure))
		out = append(out, n.Routing.OnSuccess...)
		out = append(out, n.Routing.OnFailure...)
		return out
	default:
		return nil
	}
}

// GraphDefinition is a validated, immutable workflow graph. It is built once
// by the Builder, owned by the caller, and shared read-only across runs.
type GraphDefinition struct {
	name  string
	nodes map[string]*NodeSpec
	order []string
	entry string
}

// Name returns the graph name.
func (g *GraphDefinition) Name() string {
	return g.name
}

// Entry returns the entry node name (the first node declared).
func (g *GraphDefinition) Entry() string {
	return g.entry
}

// Node retrieves a node by name.
func (g *GraphDefinition) Node(name string) (*NodeSpec, bool) {
	n, ok := g.nodes[name]
	return n, ok
}

// Nodes returns the nodes in declaration order.
func (g *GraphDefinition) Nodes() []*NodeSpec {
	out := make([]*NodeSpec, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.nodes[name])
	}
	return out
}

// Len returns the number of nodes.
func (g *GraphDefinition) Len() int {
	return len(g.order)
}

// Targets returns the adjacency of a node: every target it may route to,
// excluding the terminal marker. Dynamic nodes have no static adjacency.
func (g *GraphDefinition) Targets(name string) []string {
	n, ok := g.nodes[name]
	if !ok {
		return nil
	}
	var out []string
	for _, t := range n.targets() {
		if t != Terminal {
			out = append(out, t)
		}
	}
	return out
}

// JoinNode returns the node declaring every fan-out target among its own
// input fields, scanning in declaration order. That node is where parallel
// branches started at targets reconverge.
func (g *GraphDefinition) JoinNode(targets []string) (*NodeSpec, bool) {
	if len(targets) < 2 {
		return nil, false
	}
	for _, name := range g.order {
		node := g.nodes[name]
		declared := make(map[string]bool, len(node.InputFields))
		for _, f := range node.InputFields {
			declared[f] = true
		}
		all := true
		for _, t := range targets {
			if !declared[t] {
				all = false
				break
			}
		}
		if all {
			return node, true
		}
	}
	return nil, false
}

// GraphSet holds every graph built from one declaration sheet, keyed by
// graph name. The engine consults it to resolve sub-workflow nodes.
type GraphSet map[string]*GraphDefinition

// Graph retrieves a graph by name.
func (s GraphSet) Graph(name string) (*GraphDefinition, bool) {
	g, ok := s[name]
	return g, ok
}
