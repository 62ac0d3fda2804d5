// Package flowapi is the client boundary to the remote flow execution API,
// which becomes the system of record once a build is accepted.
package flowapi

import (
	"context"
	"fmt"

	"github.com/flowvector/flowvector/pkg/models"
)

// Node is one node instance in the remote document shape. Input values are
// literals or "{{instance.output}}" references.
type Node struct {
	ID       string          `json:"id"`
	Type     string          `json:"type"`
	Position models.Position `json:"position"`
	Inputs   map[string]any  `json:"inputs"`
}

// Edge is one connection in the remote document shape, using the
// source/target handle naming its renderer expects.
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	SourceHandle string `json:"sourceHandle"`
	Target       string `json:"target"`
	TargetHandle string `json:"targetHandle"`
}

// Document is the submission payload for one flow.
type Document struct {
	Name  string `json:"name"`
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Flow is a created flow as reported by the remote API.
type Flow struct {
	ID       string `json:"id"`
	Document Document
}

// Client talks to the remote flow API.
type Client interface {
	CreateFlow(ctx context.Context, doc *Document) (*Flow, error)
	GetFlow(ctx context.Context, id string) (*Flow, error)
	UpdateFlow(ctx context.Context, id string, doc *Document) (*Flow, error)
}

// NewDocument serializes a validated, positioned graph into the remote
// document shape.
func NewDocument(graph *models.FlowGraph) *Document {
	doc := &Document{Name: graph.Name}

	for _, node := range graph.NodesInOrder() {
		doc.Nodes = append(doc.Nodes, Node{
			ID:       node.ID,
			Type:     node.Type,
			Position: node.Position,
			Inputs:   node.Inputs,
		})
	}

	for _, edge := range graph.Edges {
		doc.Edges = append(doc.Edges, Edge{
			ID:           edge.ID,
			Source:       edge.SourceNode,
			SourceHandle: edge.SourcePort,
			Target:       edge.TargetNode,
			TargetHandle: edge.TargetPort,
		})
	}

	return doc
}

// APIError is a non-2xx response from the remote API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("flow API returned HTTP %d: %s", e.StatusCode, e.Message)
}
