package workflow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func definitionFixture(t *testing.T) *GraphDefinition {
	t.Helper()
	sheet := buildSheet(t, []Row{
		{Graph: "g", Node: "Validate", AgentType: "check", SuccessNext: "Process", FailureNext: "Recover", InputFields: "doc", Prompt: "Check the document"},
		{Graph: "g", Node: "Process", Edge: "fn:pick", AgentType: "worker", OutputField: "result"},
		{Graph: "g", Node: "Recover", AgentType: "worker"},
	})
	set, _, err := NewBuilder(BuilderOptions{}).Build(sheet)
	require.NoError(t, err)
	return set["g"]
}

func TestDefinition_RoundTripThroughYAMLFile(t *testing.T) {
	t.Parallel()
	graph := definitionFixture(t)

	text, err := graph.Definition().ToYAML()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "g.yaml")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))

	loaded, err := LoadDefinitionFile(path)
	require.NoError(t, err)

	rebuilt, warnings, err := NewBuilder(BuilderOptions{}).FromDefinition(loaded)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	want, err := graph.Definition().ToJSON()
	require.NoError(t, err)
	got, err := rebuilt.Definition().ToJSON()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestDefinition_RoundTripThroughJSONFile(t *testing.T) {
	t.Parallel()
	graph := definitionFixture(t)

	text, err := graph.Definition().ToJSON()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "g.json")
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))

	loaded, err := LoadDefinitionFile(path)
	require.NoError(t, err)
	assert.Equal(t, "g", loaded.Name)
	assert.Equal(t, "Validate", loaded.Entry)
	require.Len(t, loaded.Nodes, 3)
	assert.Equal(t, RoutingDynamic, loaded.Nodes[1].Routing.Kind)
	assert.Equal(t, "pick", loaded.Nodes[1].Routing.FuncRef)
}

func TestLoadDefinitionFile_UnsupportedExtension(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "g.toml")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := LoadDefinitionFile(path)
	require.Error(t, err)
}

func TestFromDefinition_RevalidatesDeclarations(t *testing.T) {
	t.Parallel()
	def := &Definition{
		Name: "g",
		Nodes: []NodeDef{
			{Name: "a", Routing: RoutingDef{Kind: RoutingDirect, Target: "ghost"}},
		},
	}

	_, _, err := NewBuilder(BuilderOptions{}).FromDefinition(def)
	require.Error(t, err, "snapshots go through the same declaration checks as sheets")
}

func TestFromDefinition_EntryOverride(t *testing.T) {
	t.Parallel()
	def := &Definition{
		Name:  "g",
		Entry: "b",
		Nodes: []NodeDef{
			{Name: "a", Routing: RoutingDef{Kind: RoutingDirect, Target: "b"}},
			{Name: "b"},
		},
	}

	graph, _, err := NewBuilder(BuilderOptions{}).FromDefinition(def)
	require.NoError(t, err)
	assert.Equal(t, "b", graph.Entry())

	def.Entry = "nowhere"
	_, _, err = NewBuilder(BuilderOptions{}).FromDefinition(def)
	require.Error(t, err)
}
