package flow

import (
	"github.com/flowvector/flowvector/pkg/models"
)

// Editor-pixel layout constants: depth levels advance left to right, siblings
// within a level stack top to bottom.
const (
	layoutOriginX      = 80
	layoutOriginY      = 80
	layoutDepthSpacing = 280
	layoutRowSpacing   = 160
)

// Layout assigns 2-D positions to a validated (acyclic) graph. Depth is the
// longest path from any zero-indegree node, so an instance with producers at
// different depths lands after all of them. Instances sharing a depth form a
// column in instantiation order, which keeps positions unique and reading
// order aligned with execution order.
func Layout(graph *models.FlowGraph) {
	depths := nodeDepths(graph)
	rows := make(map[int]int)

	for _, node := range graph.NodesInOrder() {
		depth := depths[node.ID]

		node.Position = models.Position{
			X: layoutOriginX + depth*layoutDepthSpacing,
			Y: layoutOriginY + rows[depth]*layoutRowSpacing,
		}
		rows[depth]++
	}
}

// nodeDepths computes longest-path layering over the edge relation via
// memoized traversal of inbound edges.
func nodeDepths(graph *models.FlowGraph) map[string]int {
	inbound := make(map[string][]string, len(graph.Nodes))
	for _, edge := range graph.Edges {
		inbound[edge.TargetNode] = append(inbound[edge.TargetNode], edge.SourceNode)
	}

	depths := make(map[string]int, len(graph.Nodes))
	resolved := make(map[string]bool, len(graph.Nodes))

	var depth func(id string) int

	depth = func(id string) int {
		if resolved[id] {
			return depths[id]
		}

		// Mark before recursing; validation guarantees acyclicity, so this
		// only short-circuits repeated visits.
		resolved[id] = true

		max := 0
		for _, producer := range inbound[id] {
			if d := depth(producer) + 1; d > max {
				max = d
			}
		}

		depths[id] = max

		return max
	}

	for _, id := range graph.Order {
		depth(id)
	}

	return depths
}
