package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gridflow/gridflow/types"
)

// Definition is the serializable snapshot of a validated graph, so built
// workflows can be exported and re-imported without the original sheet.
type Definition struct {
	Name  string    `json:"name" yaml:"name"`
	Entry string    `json:"entry" yaml:"entry"`
	Nodes []NodeDef `json:"nodes" yaml:"nodes"`
}

// NodeDef is the serializable form of one node.
type NodeDef struct {
	Name         string     `json:"name" yaml:"name"`
	AgentType    string     `json:"agent_type,omitempty" yaml:"agent_type,omitempty"`
	InputFields  []string   `json:"input_fields,omitempty" yaml:"input_fields,omitempty"`
	OutputFields []string   `json:"output_fields,omitempty" yaml:"output_fields,omitempty"`
	Config       any        `json:"config,omitempty" yaml:"config,omitempty"`
	Prompt       string     `json:"prompt,omitempty" yaml:"prompt,omitempty"`
	Routing      RoutingDef `json:"routing" yaml:"routing"`
}

// RoutingDef is the serializable form of a routing variant.
type RoutingDef struct {
	Kind      RoutingKind `json:"kind" yaml:"kind"`
	Target    string      `json:"target,omitempty" yaml:"target,omitempty"`
	OnSuccess []string    `json:"on_success,omitempty" yaml:"on_success,omitempty"`
	OnFailure []string    `json:"on_failure,omitempty" yaml:"on_failure,omitempty"`
	FuncRef   string      `json:"func_ref,omitempty" yaml:"func_ref,omitempty"`
}

// Definition exports the graph as a serializable snapshot.
func (g *GraphDefinition) Definition() *Definition {
	def := &Definition{
		Name:  g.name,
		Entry: g.entry,
		Nodes: make([]NodeDef, 0, len(g.order)),
	}
	for _, spec := range g.Nodes() {
		def.Nodes = append(def.Nodes, NodeDef{
			Name:         spec.Name,
			AgentType:    spec.AgentType,
			InputFields:  append([]string(nil), spec.InputFields...),
			OutputFields: append([]string(nil), spec.OutputFields...),
			Config:       spec.Config,
			Prompt:       spec.Prompt,
			Routing: RoutingDef{
				Kind:      spec.Routing.Kind,
				Target:    spec.Routing.Target,
				OnSuccess: append([]string(nil), spec.Routing.OnSuccess...),
				OnFailure: append([]string(nil), spec.Routing.OnFailure...),
				FuncRef:   spec.Routing.FuncRef,
			},
		})
	}
	return def
}

// ToJSON renders the definition as indented JSON.
func (d *Definition) ToJSON() (string, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal definition to JSON: %w", err)
	}
	return string(data), nil
}

// ToYAML renders the definition as YAML.
func (d *Definition) ToYAML() (string, error) {
	data, err := yaml.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("marshal definition to YAML: %w", err)
	}
	return string(data), nil
}

// FromDefinition revalidates a snapshot into a GraphDefinition, running the
// same declaration checks as a parsed sheet.
func (b *Builder) FromDefinition(def *Definition) (*GraphDefinition, []*types.Error, error) {
	rows := make([]parsedRow, 0, len(def.Nodes))
	for i, nd := range def.Nodes {
		rows = append(rows, parsedRow{
			row: i + 1,
			spec: &NodeSpec{
				Name:         nd.Name,
				AgentType:    nd.AgentType,
				InputFields:  append([]string(nil), nd.InputFields...),
				OutputFields: append([]string(nil), nd.OutputFields...),
				Config:       nd.Config,
				Prompt:       nd.Prompt,
				Routing: Routing{
					Kind:      nd.Routing.Kind,
					Target:    nd.Routing.Target,
					OnSuccess: append([]string(nil), nd.Routing.OnSuccess...),
					OnFailure: append([]string(nil), nd.Routing.OnFailure...),
					FuncRef:   nd.Routing.FuncRef,
				},
				Row: i + 1,
			},
		})
	}

	graph, warnings, err := b.buildGraph(def.Name, rows, nil)
	if err != nil {
		return nil, nil, err
	}
	if def.Entry != "" {
		if _, ok := graph.nodes[def.Entry]; !ok {
			return nil, nil, types.NewError(types.ErrUnresolvedTarget,
				fmt.Sprintf("entry %q is not a declared node", def.Entry)).WithGraph(def.Name)
		}
		graph.entry = def.Entry
	}
	return graph, warnings, nil
}

// LoadDefinitionFile reads a definition snapshot; format is auto-detected
// from the file extension (.yaml, .yml, .json).
func LoadDefinitionFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read definition file: %w", err)
	}

	var def Definition
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("parse definition YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &def); err != nil {
			return nil, fmt.Errorf("parse definition JSON: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported definition extension: %s", filepath.Ext(path))
	}
	return &def, nil
}
