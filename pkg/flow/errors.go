package flow

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRequest indicates bad caller input. Rejected before any external
// dependency is touched.
var ErrInvalidRequest = errors.New("invalid build request")

// DuplicateNodeError reports a node instance id appearing more than once in a
// graph body. Generated ids cannot collide; template bodies are untrusted.
type DuplicateNodeError struct {
	NodeID string
}

func (e *DuplicateNodeError) Error() string {
	return fmt.Sprintf("duplicate node instance id '%s'", e.NodeID)
}

// DanglingEdgeError reports an edge referencing a node instance or port that
// does not exist in the graph.
type DanglingEdgeError struct {
	EdgeID string
	NodeID string
	Port   string
}

func (e *DanglingEdgeError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("edge '%s' references unknown port '%s' on node '%s'", e.EdgeID, e.Port, e.NodeID)
	}

	return fmt.Sprintf("edge '%s' references unknown node instance '%s'", e.EdgeID, e.NodeID)
}

// PortMismatchError reports an edge connecting ports whose type tags do not
// intersect.
type PortMismatchError struct {
	EdgeID     string
	SourceNode string
	SourcePort string
	SourceType string
	TargetNode string
	TargetPort string
}

func (e *PortMismatchError) Error() string {
	return fmt.Sprintf("edge '%s' connects incompatible ports: %s.%s produces '%s', not accepted by %s.%s",
		e.EdgeID, e.SourceNode, e.SourcePort, e.SourceType, e.TargetNode, e.TargetPort)
}

// CyclicGraphError reports a cycle in the edge relation, naming the
// participating instance ids in traversal order.
type CyclicGraphError struct {
	Cycle []string
}

func (e *CyclicGraphError) Error() string {
	return fmt.Sprintf("graph contains a cycle: %s", strings.Join(e.Cycle, " -> "))
}

// UnsatisfiedInputError reports a required input port with no literal default
// that is not satisfied by exactly one inbound edge.
type UnsatisfiedInputError struct {
	NodeID  string
	Port    string
	Inbound int
}

func (e *UnsatisfiedInputError) Error() string {
	if e.Inbound > 1 {
		return fmt.Sprintf("required input %s.%s has %d inbound edges, want exactly one", e.NodeID, e.Port, e.Inbound)
	}

	return fmt.Sprintf("required input %s.%s has no satisfying connection", e.NodeID, e.Port)
}

// IsGraphIntegrityError reports whether err is one of the whole-graph
// validation failures. These are always caught before submission; the remote
// API is never asked to accept an invalid document.
func IsGraphIntegrityError(err error) bool {
	var (
		duplicate   *DuplicateNodeError
		dangling    *DanglingEdgeError
		mismatch    *PortMismatchError
		cyclic      *CyclicGraphError
		unsatisfied *UnsatisfiedInputError
	)

	return errors.As(err, &duplicate) ||
		errors.As(err, &dangling) ||
		errors.As(err, &mismatch) ||
		errors.As(err, &cyclic) ||
		errors.As(err, &unsatisfied)
}
