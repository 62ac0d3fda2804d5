// Package models defines graph document models for flow assembly.
package models

import (
	"fmt"
	"strings"
)

// Position is a 2-D layout coordinate in editor pixels.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// FlowNode is one placed instance of a node type within a flow graph.
// Input values are either literals or references produced by NodeRef.
type FlowNode struct {
	ID       string         `json:"id"       validate:"required"`
	Type     string         `json:"type"     validate:"required"`
	Position Position       `json:"position"`
	Inputs   map[string]any `json:"inputs"`
}

// Edge connects an output port of one node instance to an input port of another.
type Edge struct {
	ID         string `json:"id"`
	SourceNode string `json:"source_node" validate:"required"`
	SourcePort string `json:"source_port" validate:"required"`
	TargetNode string `json:"target_node" validate:"required"`
	TargetPort string `json:"target_port" validate:"required"`
}

// FlowGraph is the mutable document assembled by the flow builder. Nodes is
// keyed by instance id; Order preserves instantiation order, which drives
// deterministic inference and layout.
type FlowGraph struct {
	Name  string               `json:"name"`
	Nodes map[string]*FlowNode `json:"nodes"`
	Order []string             `json:"order"`
	Edges []*Edge              `json:"edges"`
}

// NewFlowGraph creates an empty graph document.
func NewFlowGraph(name string) *FlowGraph {
	return &FlowGraph{
		Name:  name,
		Nodes: make(map[string]*FlowNode),
		Order: make([]string, 0),
		Edges: make([]*Edge, 0),
	}
}

// AddNode places a node instance, preserving instantiation order.
// Adding a duplicate id is a caller bug and is reported as an error.
func (g *FlowGraph) AddNode(node *FlowNode) error {
	if _, exists := g.Nodes[node.ID]; exists {
		return fmt.Errorf("duplicate node instance id: %s", node.ID)
	}

	if node.Inputs == nil {
		node.Inputs = make(map[string]any)
	}

	g.Nodes[node.ID] = node
	g.Order = append(g.Order, node.ID)

	return nil
}

// AddEdge appends an edge without validating it; validation is a whole-graph
// pass before submission.
func (g *FlowGraph) AddEdge(edge *Edge) {
	g.Edges = append(g.Edges, edge)
}

// NodesInOrder returns node instances in instantiation order.
func (g *FlowGraph) NodesInOrder() []*FlowNode {
	nodes := make([]*FlowNode, 0, len(g.Order))
	for _, id := range g.Order {
		nodes = append(nodes, g.Nodes[id])
	}

	return nodes
}

// Copy returns a deep copy of the graph. Template bodies are copied before
// assembly so the stored template is never mutated.
func (g *FlowGraph) Copy() *FlowGraph {
	out := NewFlowGraph(g.Name)

	for _, id := range g.Order {
		node := g.Nodes[id]

		inputs := make(map[string]any, len(node.Inputs))
		for k, v := range node.Inputs {
			inputs[k] = v
		}

		out.Nodes[id] = &FlowNode{
			ID:       node.ID,
			Type:     node.Type,
			Position: node.Position,
			Inputs:   inputs,
		}
		out.Order = append(out.Order, id)
	}

	for _, edge := range g.Edges {
		copied := *edge
		out.Edges = append(out.Edges, &copied)
	}

	return out
}

// NodeRef renders the input-value reference pattern for another node's output,
// in the shape the remote flow API resolves at run time.
func NodeRef(instanceID, outputPort string) string {
	return "{{" + instanceID + "." + outputPort + "}}"
}

// ParseNodeRef splits a reference produced by NodeRef into instance id and
// output port. Returns false for literal values.
func ParseNodeRef(value any) (string, string, bool) {
	str, ok := value.(string)
	if !ok {
		return "", "", false
	}

	if !strings.HasPrefix(str, "{{") || !strings.HasSuffix(str, "}}") {
		return "", "", false
	}

	inner := str[2 : len(str)-2]

	idx := strings.LastIndex(inner, ".")
	if idx <= 0 || idx == len(inner)-1 {
		return "", "", false
	}

	return inner[:idx], inner[idx+1:], true
}
