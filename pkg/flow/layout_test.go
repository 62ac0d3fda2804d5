package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowvector/flowvector/pkg/breaker"
	"github.com/flowvector/flowvector/pkg/models"
)

func TestLayoutLongestPathLayering(t *testing.T) {
	service := newTestService(t, &mockFlowClient{}, breaker.Config{})

	graph, err := service.Assemble(&BuildRequest{
		NodeTypes: []string{"chatModel", "conversationMemory", "conversationChain"},
	})
	require.NoError(t, err)
	require.NoError(t, service.Validate(graph))

	Layout(graph)

	// Both producers sit at depth 0, the consumer one level right.
	assert.Equal(t, models.Position{X: 80, Y: 80}, graph.Nodes["chatModel_0"].Position)
	assert.Equal(t, models.Position{X: 80, Y: 240}, graph.Nodes["conversationMemory_0"].Position)
	assert.Equal(t, models.Position{X: 360, Y: 80}, graph.Nodes["conversationChain_0"].Position)
}

func TestLayoutPlacesNodeAfterAllProducers(t *testing.T) {
	graph := models.NewFlowGraph("diamond")

	for _, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, graph.AddNode(&models.FlowNode{ID: id, Type: "chatModel"}))
	}

	// a -> b -> c and a -> c: c's depth follows the longest path, d floats free.
	graph.AddEdge(&models.Edge{ID: "e1", SourceNode: "a", SourcePort: "model", TargetNode: "b", TargetPort: "prompt"})
	graph.AddEdge(&models.Edge{ID: "e2", SourceNode: "b", SourcePort: "model", TargetNode: "c", TargetPort: "prompt"})
	graph.AddEdge(&models.Edge{ID: "e3", SourceNode: "a", SourcePort: "model", TargetNode: "c", TargetPort: "prompt"})

	Layout(graph)

	assert.Equal(t, 80, graph.Nodes["a"].Position.X)
	assert.Equal(t, 80+layoutDepthSpacing, graph.Nodes["b"].Position.X)
	assert.Equal(t, 80+2*layoutDepthSpacing, graph.Nodes["c"].Position.X)

	// d has no edges: depth 0, second row of the first column.
	assert.Equal(t, models.Position{X: 80, Y: 240}, graph.Nodes["d"].Position)
}

func TestLayoutPositionsAreUniquePerDepth(t *testing.T) {
	graph := models.NewFlowGraph("columns")

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, graph.AddNode(&models.FlowNode{ID: id, Type: "chatModel"}))
	}

	Layout(graph)

	seen := make(map[models.Position]bool)
	for _, node := range graph.NodesInOrder() {
		assert.False(t, seen[node.Position], "position reused: %+v", node.Position)
		seen[node.Position] = true
	}

	// Siblings advance monotonically along the column.
	assert.Less(t, graph.Nodes["a"].Position.Y, graph.Nodes["b"].Position.Y)
	assert.Less(t, graph.Nodes["b"].Position.Y, graph.Nodes["c"].Position.Y)
}
