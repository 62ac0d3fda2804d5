// Package web provides the REST surface over the search and flow
// construction services.
package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/flowvector/flowvector/pkg/breaker"
	"github.com/flowvector/flowvector/pkg/catalog"
	"github.com/flowvector/flowvector/pkg/flow"
	"github.com/flowvector/flowvector/pkg/persistence"
	"github.com/flowvector/flowvector/pkg/search"
)

type APIHandlers struct {
	searchService *search.Service
	flowService   *flow.Service
	registry      *catalog.Registry
	stateStore    persistence.StateStore
	breakers      []*breaker.Breaker
	validator     *validator.Validate
}

func NewAPIHandlers(
	searchService *search.Service,
	flowService *flow.Service,
	registry *catalog.Registry,
	stateStore persistence.StateStore,
	breakers []*breaker.Breaker,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		searchService: searchService,
		flowService:   flowService,
		registry:      registry,
		stateStore:    stateStore,
		breakers:      breakers,
		validator:     validator,
	}
}

func (h *APIHandlers) SearchNodes(c fiber.Ctx) error {
	var req SearchNodesRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	results, err := h.searchService.SearchNodes(c.Context(), req.Query, req.Limit, req.Category)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"results": results,
		"count":   len(results),
	})
}

func (h *APIHandlers) SearchTemplates(c fiber.Ctx) error {
	var req SearchTemplatesRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	results, err := h.searchService.SearchTemplates(c.Context(), req.Query, req.Limit, req.TagBoost)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"results": results,
		"count":   len(results),
	})
}

func (h *APIHandlers) BuildFlow(c fiber.Ctx) error {
	var req BuildFlowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	flowID, err := h.flowService.BuildFlow(c.Context(), req.ToBuildRequest())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(BuildFlowResponse{FlowID: flowID})
}

func (h *APIHandlers) GetCircuits(c fiber.Ctx) error {
	circuits := make([]CircuitResponse, 0, len(h.breakers))
	for _, b := range h.breakers {
		circuits = append(circuits, TransformCircuitResponse(b.Name(), b.Snapshot()))
	}

	return c.JSON(fiber.Map{"circuits": circuits})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	storeErr := h.stateStore.HealthCheck(c.Context())

	status := "healthy"
	message := "Flowvector API is healthy"
	httpStatus := http.StatusOK
	storeStatus := "ok"

	if storeErr != nil {
		status = "unhealthy"
		message = "Flowvector API is unhealthy"
		httpStatus = http.StatusInternalServerError
		storeStatus = storeErr.Error()
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"state_store": storeStatus,
			"catalog": fiber.Map{
				"nodes":     h.registry.NodeCount(),
				"templates": h.registry.TemplateCount(),
			},
		},
		"timestamp": time.Now().UTC(),
	})
}
