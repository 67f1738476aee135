package web

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/m-mizutani/cistat/pkg/domain"
	"github.com/moogar0880/problems"
)

const rateLimitGuidance = "Unauthenticated requests are limited to 60 per hour and refreshing one " +
	"workflow uses about 10-12 requests. Configure a GitHub token or wait for the limit to reset."

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusBadRequest).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusNotFound).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

// rateLimitDetail explains a rate limit failure in user facing words.
func rateLimitDetail(err error) string {
	detail := "GitHub API rate limit exceeded. " + rateLimitGuidance

	var rle *domain.RateLimitError
	if errors.As(err, &rle) && !rle.ResetAt.IsZero() {
		detail += fmt.Sprintf(" The limit resets at %s.", rle.ResetAt.UTC().Format(time.RFC3339))
	}
	return detail
}

// errorStatus maps service errors to the status code reported to clients.
func errorStatus(err error) (int, string) {
	switch {
	case domain.IsRateLimit(err):
		return fiber.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, domain.ErrReportNotFound):
		return fiber.StatusNotFound, "report_not_found"
	case domain.IsMalformedResponse(err), errors.Is(err, domain.ErrAPIRequest):
		return fiber.StatusBadGateway, "upstream_error"
	default:
		return fiber.StatusInternalServerError, "internal_error"
	}
}

// handleServiceError writes err as a problem document.
func handleServiceError(c fiber.Ctx, err error) error {
	status, typ := errorStatus(err)

	problem := problems.NewStatusProblem(status).
		WithInstance(c.Path()).
		WithType(typ)

	switch typ {
	case "rate_limited":
		problem = problem.WithDetail(rateLimitDetail(err))
	case "report_not_found":
		problem = problem.WithDetail("no report has been collected yet")
	case "internal_error":
		problem = problem.WithError(err)
	default:
		problem = problem.WithDetail(err.Error())
	}

	return c.Status(status).JSON(problem)
}
