// Package web provides HTTP request and response types for the flow engine API.
package web

import (
	"time"

	"github.com/flowvector/flowvector/pkg/flow"
	"github.com/flowvector/flowvector/pkg/models"
)

// SearchNodesRequest represents the request body for semantic node search.
type SearchNodesRequest struct {
	Query    string `json:"query"    validate:"required"`
	Limit    int    `json:"limit"    validate:"omitempty,min=1,max=50"`
	Category string `json:"category" validate:"omitempty,oneof=model memory chain tool transform trigger"`
}

// SearchTemplatesRequest represents the request body for semantic template search.
type SearchTemplatesRequest struct {
	Query    string `json:"query"     validate:"required"`
	Limit    int    `json:"limit"     validate:"omitempty,min=1,max=50"`
	TagBoost bool   `json:"tag_boost"`
}

// BuildFlowRequest represents the request body for constructing a flow.
// Exactly one of template_id or node_types must be set.
type BuildFlowRequest struct {
	Name       string          `json:"name"        validate:"omitempty,min=3"`
	TemplateID string          `json:"template_id"`
	NodeTypes  []string        `json:"node_types"  validate:"omitempty,min=1,dive,required"`
	Edges      []flow.EdgeSpec `json:"edges"`
	Overrides  []flow.Override `json:"overrides"`
}

// ToBuildRequest converts the DTO into the construction service's request.
func (r *BuildFlowRequest) ToBuildRequest() *flow.BuildRequest {
	return &flow.BuildRequest{
		Name:       r.Name,
		TemplateID: r.TemplateID,
		NodeTypes:  r.NodeTypes,
		Edges:      r.Edges,
		Overrides:  r.Overrides,
	}
}

// BuildFlowResponse carries the remote-assigned flow id.
type BuildFlowResponse struct {
	FlowID string `json:"flow_id"`
}

// CircuitResponse is one breaker's state for the inspection endpoint.
type CircuitResponse struct {
	Name             string     `json:"name"`
	Status           string     `json:"status"`
	FailureCount     int        `json:"failure_count"`
	FailureThreshold int        `json:"failure_threshold"`
	ResetTimeout     string     `json:"reset_timeout"`
	OpenedAt         *time.Time `json:"opened_at,omitempty"`
}

// TransformCircuitResponse projects a circuit state snapshot for the API.
func TransformCircuitResponse(name string, state models.CircuitState) CircuitResponse {
	response := CircuitResponse{
		Name:             name,
		Status:           string(state.Status),
		FailureCount:     state.FailureCount,
		FailureThreshold: state.FailureThreshold,
		ResetTimeout:     state.ResetTimeout.String(),
	}

	if !state.OpenedAt.IsZero() {
		openedAt := state.OpenedAt
		response.OpenedAt = &openedAt
	}

	return response
}
