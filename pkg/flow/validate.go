package flow

import (
	"fmt"

	"github.com/flowvector/flowvector/pkg/models"
)

// Validate runs the whole-graph integrity pass: unique instance ids, edges
// referencing existing type-compatible ports, an acyclic edge relation, and
// every required input satisfied. It runs once before submission so the
// remote API is never handed an invalid document.
func (s *Service) Validate(graph *models.FlowGraph) error {
	if err := s.checkNodes(graph); err != nil {
		return err
	}

	if err := s.checkEdges(graph); err != nil {
		return err
	}

	if err := checkAcyclic(graph); err != nil {
		return err
	}

	return s.checkRequiredInputs(graph)
}

// checkNodes re-checks id uniqueness defensively. Generated ids cannot
// collide, but template bodies arrive as untrusted input.
func (s *Service) checkNodes(graph *models.FlowGraph) error {
	seen := make(map[string]bool, len(graph.Order))

	for _, id := range graph.Order {
		if seen[id] {
			return &DuplicateNodeError{NodeID: id}
		}

		seen[id] = true

		node, ok := graph.Nodes[id]
		if !ok || node.ID != id {
			return &DuplicateNodeError{NodeID: id}
		}

		if _, err := s.registry.NodeDescriptor(node.Type); err != nil {
			return fmt.Errorf("node '%s': %w", id, err)
		}
	}

	return nil
}

func (s *Service) checkEdges(graph *models.FlowGraph) error {
	for _, edge := range graph.Edges {
		source, ok := graph.Nodes[edge.SourceNode]
		if !ok {
			return &DanglingEdgeError{EdgeID: edge.ID, NodeID: edge.SourceNode}
		}

		target, ok := graph.Nodes[edge.TargetNode]
		if !ok {
			return &DanglingEdgeError{EdgeID: edge.ID, NodeID: edge.TargetNode}
		}

		sourceDescriptor, err := s.registry.NodeDescriptor(source.Type)
		if err != nil {
			return fmt.Errorf("edge '%s': %w", edge.ID, err)
		}

		targetDescriptor, err := s.registry.NodeDescriptor(target.Type)
		if err != nil {
			return fmt.Errorf("edge '%s': %w", edge.ID, err)
		}

		output, ok := sourceDescriptor.Output(edge.SourcePort)
		if !ok {
			return &DanglingEdgeError{EdgeID: edge.ID, NodeID: edge.SourceNode, Port: edge.SourcePort}
		}

		input, ok := targetDescriptor.Input(edge.TargetPort)
		if !ok {
			return &DanglingEdgeError{EdgeID: edge.ID, NodeID: edge.TargetNode, Port: edge.TargetPort}
		}

		if !input.Accepts(output.Type) {
			return &PortMismatchError{
				EdgeID:     edge.ID,
				SourceNode: edge.SourceNode,
				SourcePort: edge.SourcePort,
				SourceType: output.Type,
				TargetNode: edge.TargetNode,
				TargetPort: edge.TargetPort,
			}
		}
	}

	return nil
}

// Traversal colors for cycle detection.
const (
	white = iota // unvisited
	gray         // in progress
	black        // done
)

// checkAcyclic runs a three-color depth-first traversal over the edge
// relation. The remote execution engine walks graphs breadth-first with no
// cycle protection beyond a revisit budget, so cycles must be rejected here.
func checkAcyclic(graph *models.FlowGraph) error {
	adjacency := make(map[string][]string, len(graph.Nodes))
	for _, edge := range graph.Edges {
		adjacency[edge.SourceNode] = append(adjacency[edge.SourceNode], edge.TargetNode)
	}

	colors := make(map[string]int, len(graph.Nodes))
	path := make([]string, 0, len(graph.Nodes))

	var visit func(id string) *CyclicGraphError

	visit = func(id string) *CyclicGraphError {
		colors[id] = gray
		path = append(path, id)

		for _, next := range adjacency[id] {
			switch colors[next] {
			case gray:
				return &CyclicGraphError{Cycle: cycleFrom(path, next)}
			case white:
				if err := visit(next); err != nil {
					return err
				}
			}
		}

		colors[id] = black
		path = path[:len(path)-1]

		return nil
	}

	for _, id := range graph.Order {
		if colors[id] == white {
			if err := visit(id); err != nil {
				return err
			}
		}
	}

	return nil
}

// cycleFrom trims the traversal path to the ids participating in the cycle,
// closing the loop on the re-encountered node.
func cycleFrom(path []string, start string) []string {
	for i, id := range path {
		if id == start {
			cycle := make([]string, 0, len(path)-i+1)
			cycle = append(cycle, path[i:]...)

			return append(cycle, start)
		}
	}

	return append(append([]string{}, path...), start)
}

// checkRequiredInputs verifies every required port is covered by exactly one
// inbound edge, a literal input value, or the port's declared default.
func (s *Service) checkRequiredInputs(graph *models.FlowGraph) error {
	inbound := make(map[string]map[string]int, len(graph.Nodes))
	for _, edge := range graph.Edges {
		if inbound[edge.TargetNode] == nil {
			inbound[edge.TargetNode] = make(map[string]int)
		}

		inbound[edge.TargetNode][edge.TargetPort]++
	}

	for _, node := range graph.NodesInOrder() {
		descriptor, err := s.registry.NodeDescriptor(node.Type)
		if err != nil {
			return fmt.Errorf("node '%s': %w", node.ID, err)
		}

		for _, input := range descriptor.Inputs {
			if !input.Required {
				continue
			}

			count := inbound[node.ID][input.Name]
			if count == 1 {
				continue
			}

			if count > 1 {
				return &UnsatisfiedInputError{NodeID: node.ID, Port: input.Name, Inbound: count}
			}

			if hasLiteral(node, input.Name) || input.Default != nil {
				continue
			}

			return &UnsatisfiedInputError{NodeID: node.ID, Port: input.Name}
		}
	}

	return nil
}

// hasLiteral reports whether the node carries a literal (non-reference) value
// for the port.
func hasLiteral(node *models.FlowNode, port string) bool {
	value, ok := node.Inputs[port]
	if !ok || value == nil {
		return false
	}

	_, _, isRef := models.ParseNodeRef(value)

	return !isRef
}
