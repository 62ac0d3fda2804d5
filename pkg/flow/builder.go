// Package flow assembles validated, positioned node graphs and submits them
// to the remote flow API.
package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowvector/flowvector/pkg/breaker"
	"github.com/flowvector/flowvector/pkg/catalog"
	"github.com/flowvector/flowvector/pkg/flowapi"
	"github.com/flowvector/flowvector/pkg/models"
	"github.com/flowvector/flowvector/pkg/otelhelper"
)

// EdgeSpec is one caller-supplied connection between node instances. Port
// names may be omitted when the pair has a single compatible port match.
type EdgeSpec struct {
	SourceNode string `json:"source_node" validate:"required"`
	SourcePort string `json:"source_port"`
	TargetNode string `json:"target_node" validate:"required"`
	TargetPort string `json:"target_port"`
}

// Override sets an input value on one node instance of a template body.
type Override struct {
	NodeID string `json:"node_id" validate:"required"`
	Port   string `json:"port"    validate:"required"`
	Value  any    `json:"value"`
}

// BuildRequest describes one flow to construct. Exactly one of TemplateID or
// NodeTypes must be set.
type BuildRequest struct {
	Name       string     `json:"name"`
	TemplateID string     `json:"template_id"`
	NodeTypes  []string   `json:"node_types"`
	Edges      []EdgeSpec `json:"edges"`
	Overrides  []Override `json:"overrides"`
}

// Service builds flow documents from templates or node lists and submits them
// through the circuit-breaker-wrapped flow API client.
type Service struct {
	logger     *slog.Logger
	tracer     trace.Tracer
	registry   *catalog.Registry
	client     flowapi.Client
	apiBreaker *breaker.Breaker
}

// NewService creates a flow construction service.
func NewService(logger *slog.Logger, registry *catalog.Registry, client flowapi.Client, apiBreaker *breaker.Breaker) *Service {
	return &Service{
		logger:     logger.With("module", "flow"),
		tracer:     otel.Tracer("flowvector/flow"),
		registry:   registry,
		client:     client,
		apiBreaker: apiBreaker,
	}
}

// BuildFlow assembles, validates, positions and submits one flow, returning
// the remote-assigned flow id.
func (s *Service) BuildFlow(ctx context.Context, req *BuildRequest) (string, error) {
	ctx, span := s.tracer.Start(ctx, "flow.build",
		trace.WithAttributes(attribute.String(otelhelper.TemplateIDKey, req.TemplateID)))
	defer span.End()

	graph, err := s.Assemble(req)
	if err != nil {
		return "", err
	}

	if err := s.Validate(graph); err != nil {
		otelhelper.SetError(span, err)

		return "", err
	}

	Layout(graph)

	flowID, err := s.submit(ctx, graph)
	if err != nil {
		otelhelper.SetError(span, err)

		return "", err
	}

	span.SetAttributes(
		attribute.String(otelhelper.FlowIDKey, flowID),
		attribute.String(otelhelper.FlowNameKey, graph.Name),
	)

	return flowID, nil
}

// Assemble produces the unvalidated graph document for a request, via the
// template path or the node-list path.
func (s *Service) Assemble(req *BuildRequest) (*models.FlowGraph, error) {
	hasTemplate := req.TemplateID != ""
	hasNodes := len(req.NodeTypes) > 0

	if hasTemplate == hasNodes {
		return nil, fmt.Errorf("%w: exactly one of template_id or node_types must be set", ErrInvalidRequest)
	}

	if hasTemplate {
		return s.assembleFromTemplate(req)
	}

	return s.assembleFromNodes(req)
}

// assembleFromTemplate deep-copies the stored template body and applies
// overrides. The stored template is never mutated.
func (s *Service) assembleFromTemplate(req *BuildRequest) (*models.FlowGraph, error) {
	template, err := s.registry.Template(req.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err)
	}

	graph := template.GraphCopy()
	if req.Name != "" {
		graph.Name = req.Name
	}

	for _, override := range req.Overrides {
		node, ok := graph.Nodes[override.NodeID]
		if !ok {
			return nil, fmt.Errorf("%w: override targets unknown node instance '%s'", ErrInvalidRequest, override.NodeID)
		}

		descriptor, err := s.registry.NodeDescriptor(node.Type)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err)
		}

		if _, ok := descriptor.Input(override.Port); !ok {
			return nil, fmt.Errorf("%w: override targets unknown input port '%s' on node '%s'",
				ErrInvalidRequest, override.Port, override.NodeID)
		}

		node.Inputs[override.Port] = override.Value
	}

	return graph, nil
}

// assembleFromNodes instantiates each requested type in list order, then
// wires the explicit edges or infers connections by port type compatibility.
func (s *Service) assembleFromNodes(req *BuildRequest) (*models.FlowGraph, error) {
	name := req.Name
	if name == "" {
		name = "untitled flow"
	}

	graph := models.NewFlowGraph(name)
	typeCounts := make(map[string]int)

	for _, nodeType := range req.NodeTypes {
		if _, err := s.registry.NodeDescriptor(nodeType); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, err)
		}

		id := fmt.Sprintf("%s_%d", nodeType, typeCounts[nodeType])
		typeCounts[nodeType]++

		if err := graph.AddNode(&models.FlowNode{ID: id, Type: nodeType}); err != nil {
			return nil, err
		}
	}

	if len(req.Edges) > 0 {
		if err := s.applyExplicitEdges(graph, req.Edges); err != nil {
			return nil, err
		}

		return graph, nil
	}

	if err := s.inferConnections(graph); err != nil {
		return nil, err
	}

	return graph, nil
}

// applyExplicitEdges wires caller-supplied connections, resolving omitted
// port names to the single compatible pair when possible.
func (s *Service) applyExplicitEdges(graph *models.FlowGraph, specs []EdgeSpec) error {
	for _, spec := range specs {
		source, ok := graph.Nodes[spec.SourceNode]
		if !ok {
			return fmt.Errorf("%w: edge references unknown node instance '%s'", ErrInvalidRequest, spec.SourceNode)
		}

		target, ok := graph.Nodes[spec.TargetNode]
		if !ok {
			return fmt.Errorf("%w: edge references unknown node instance '%s'", ErrInvalidRequest, spec.TargetNode)
		}

		sourcePort, targetPort := spec.SourcePort, spec.TargetPort

		if sourcePort == "" || targetPort == "" {
			resolvedSource, resolvedTarget, err := s.resolvePorts(source, target, sourcePort, targetPort)
			if err != nil {
				return err
			}

			sourcePort, targetPort = resolvedSource, resolvedTarget
		}

		s.connect(graph, source, sourcePort, target, targetPort)
	}

	return nil
}

// resolvePorts finds the first compatible (output, input) port pair between
// two instances, honoring whichever side the caller pinned.
func (s *Service) resolvePorts(source, target *models.FlowNode, sourcePort, targetPort string) (string, string, error) {
	sourceDescriptor, err := s.registry.NodeDescriptor(source.Type)
	if err != nil {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidRequest, err)
	}

	targetDescriptor, err := s.registry.NodeDescriptor(target.Type)
	if err != nil {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidRequest, err)
	}

	for _, output := range sourceDescriptor.Outputs {
		if sourcePort != "" && output.Name != sourcePort {
			continue
		}

		for _, input := range targetDescriptor.Inputs {
			if targetPort != "" && input.Name != targetPort {
				continue
			}

			if input.Accepts(output.Type) {
				return output.Name, input.Name, nil
			}
		}
	}

	return "", "", fmt.Errorf("%w: no compatible ports between '%s' and '%s'",
		ErrInvalidRequest, source.ID, target.ID)
}

// connect appends an edge and records the matching input reference on the
// consumer, so the submitted document carries both representations.
func (s *Service) connect(graph *models.FlowGraph, source *models.FlowNode, sourcePort string, target *models.FlowNode, targetPort string) {
	graph.AddEdge(&models.Edge{
		ID:         uuid.NewString(),
		SourceNode: source.ID,
		SourcePort: sourcePort,
		TargetNode: target.ID,
		TargetPort: targetPort,
	})

	target.Inputs[targetPort] = models.NodeRef(source.ID, sourcePort)
}

// submit serializes the graph and creates the flow through the API breaker.
// A renamed instance id in the remote's canonical document triggers one
// correction pass: re-fetch, rewrite references, resubmit.
func (s *Service) submit(ctx context.Context, graph *models.FlowGraph) (string, error) {
	doc := flowapi.NewDocument(graph)

	created, err := breaker.Execute(ctx, s.apiBreaker, func(ctx context.Context) (*flowapi.Flow, error) {
		return s.client.CreateFlow(ctx, doc)
	})
	if err != nil {
		return "", fmt.Errorf("submit flow '%s': %w", graph.Name, err)
	}

	renames := instanceRenames(doc, &created.Document)
	if len(renames) == 0 {
		s.logger.Info("Flow created", "flow_id", created.ID, "nodes", len(doc.Nodes), "edges", len(doc.Edges))

		return created.ID, nil
	}

	s.logger.Info("Remote renamed node instances, running correction pass",
		"flow_id", created.ID, "renamed", len(renames))

	if err := s.correct(ctx, created.ID, renames); err != nil {
		return "", fmt.Errorf("correct flow '%s': %w", created.ID, err)
	}

	return created.ID, nil
}

// correct re-fetches the canonical document, rewrites stale instance
// references, and resubmits it.
func (s *Service) correct(ctx context.Context, flowID string, renames map[string]string) error {
	fetched, err := breaker.Execute(ctx, s.apiBreaker, func(ctx context.Context) (*flowapi.Flow, error) {
		return s.client.GetFlow(ctx, flowID)
	})
	if err != nil {
		return err
	}

	doc := fetched.Document
	rewriteReferences(&doc, renames)

	_, err = breaker.Execute(ctx, s.apiBreaker, func(ctx context.Context) (*flowapi.Flow, error) {
		return s.client.UpdateFlow(ctx, flowID, &doc)
	})

	return err
}

// instanceRenames maps submitted instance ids to the remote's canonical ids,
// matched by document position. Usually empty.
func instanceRenames(submitted, canonical *flowapi.Document) map[string]string {
	if len(submitted.Nodes) != len(canonical.Nodes) {
		return nil
	}

	renames := make(map[string]string)

	for i, node := range submitted.Nodes {
		if canonical.Nodes[i].ID != node.ID {
			renames[node.ID] = canonical.Nodes[i].ID
		}
	}

	return renames
}

// rewriteReferences updates input references and edge endpoints that still
// point at pre-rename instance ids.
func rewriteReferences(doc *flowapi.Document, renames map[string]string) {
	for i := range doc.Nodes {
		for port, value := range doc.Nodes[i].Inputs {
			id, outputPort, ok := models.ParseNodeRef(value)
			if !ok {
				continue
			}

			if renamed, found := renames[id]; found {
				doc.Nodes[i].Inputs[port] = models.NodeRef(renamed, outputPort)
			}
		}
	}

	for i := range doc.Edges {
		if renamed, found := renames[doc.Edges[i].Source]; found {
			doc.Edges[i].Source = renamed
		}

		if renamed, found := renames[doc.Edges[i].Target]; found {
			doc.Edges[i].Target = renamed
		}
	}
}
