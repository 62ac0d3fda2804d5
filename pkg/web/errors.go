package web

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/flowvector/flowvector/pkg/breaker"
	"github.com/flowvector/flowvector/pkg/embedding"
	"github.com/flowvector/flowvector/pkg/flow"
	"github.com/flowvector/flowvector/pkg/search"
	"github.com/flowvector/flowvector/pkg/vectorindex"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError maps the typed error taxonomy onto problem responses.
func handleServiceError(c fiber.Ctx, err error) error {
	var circuitOpen *breaker.CircuitOpenError

	switch {
	case errors.Is(err, search.ErrEmptyQuery), errors.Is(err, flow.ErrInvalidRequest):
		return badRequest(c, err.Error())

	case errors.As(err, &circuitOpen):
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(circuitOpen.RetryAfter.Seconds())))

		problem := problems.NewStatusProblem(503).
			WithInstance(c.Path()).
			WithType("circuit_open").
			WithDetail(circuitOpen.Error())

		return c.Status(fiber.StatusServiceUnavailable).JSON(problem)

	case flow.IsGraphIntegrityError(err):
		problem := problems.NewStatusProblem(422).
			WithInstance(c.Path()).
			WithType("invalid_graph").
			WithDetail(err.Error())

		return c.Status(fiber.StatusUnprocessableEntity).JSON(problem)

	case errors.Is(err, embedding.ErrEmbeddingUnavailable),
		errors.Is(err, vectorindex.ErrCollectionNotFound),
		errors.Is(err, vectorindex.ErrDimensionMismatch):
		problem := problems.NewStatusProblem(502).
			WithInstance(c.Path()).
			WithType("dependency_error").
			WithDetail(err.Error())

		return c.Status(fiber.StatusBadGateway).JSON(problem)

	default:
		return internalError(c, err)
	}
}
