// Package exceptions exposes the exception request workflow over REST.
package exceptions

import (
	"time"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/vulnops/vulnmgt-backend/internal/errors"
	workflow "github.com/vulnops/vulnmgt-backend/internal/exceptions"
	"github.com/vulnops/vulnmgt-backend/model"
	"github.com/vulnops/vulnmgt-backend/restapi/modules/auth"
)

// CreateRequestBody is the JSON body for creating an exception request.
type CreateRequestBody struct {
	Target        string `json:"target"`
	Scope         string `json:"scope"`
	Justification string `json:"justification"`
	ExpiresAt     string `json:"expires_at"` // RFC 3339
}

// ReviewBody is the JSON body for approve and reject calls.
type ReviewBody struct {
	Version int64  `json:"version"`
	Comment string `json:"comment,omitempty"`
}

// Create handles POST /api/v1/exceptions/requests
func Create(wf *workflow.Workflow) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, ok := auth.CallerFromCtx(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Authentication required"})
		}

		var body CreateRequestBody
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		scope, ok := model.ParseExceptionScope(body.Scope)
		if !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unknown scope, expected finding, pattern, or asset"})
		}
		expiresAt, err := time.Parse(time.RFC3339, body.ExpiresAt)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "expires_at must be RFC 3339"})
		}

		req, err := wf.Create(c.Context(), caller, workflow.CreateInput{
			Target:        body.Target,
			Scope:         scope,
			Justification: body.Justification,
			ExpiresAt:     expiresAt,
		})
		if err != nil {
			return respondError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(req)
	}
}

// ListMine handles GET /api/v1/exceptions/requests
func ListMine(wf *workflow.Workflow) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, ok := auth.CallerFromCtx(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Authentication required"})
		}

		var status model.RequestStatus
		if raw := c.Query("status"); raw != "" {
			parsed, ok := model.ParseRequestStatus(raw)
			if !ok {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unknown status filter"})
			}
			status = parsed
		}

		requests, err := wf.ListMine(c.Context(), caller, status)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"requests": requests, "count": len(requests)})
	}
}

// ListPending handles GET /api/v1/exceptions/requests/pending
func ListPending(wf *workflow.Workflow) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, ok := auth.CallerFromCtx(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Authentication required"})
		}

		requests, err := wf.ListPending(c.Context(), caller)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(fiber.Map{"requests": requests, "count": len(requests)})
	}
}

// Approve handles POST /api/v1/exceptions/requests/:key/approve
func Approve(wf *workflow.Workflow) fiber.Handler {
	return review(wf, true)
}

// Reject handles POST /api/v1/exceptions/requests/:key/reject
func Reject(wf *workflow.Workflow) fiber.Handler {
	return review(wf, false)
}

func review(wf *workflow.Workflow, approve bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, ok := auth.CallerFromCtx(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Authentication required"})
		}

		var body ReviewBody
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}
		if body.Version <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "version is required"})
		}

		key := c.Params("key")
		var req *model.ExceptionRequest
		var err error
		if approve {
			req, err = wf.Approve(c.Context(), caller, key, body.Version, body.Comment)
		} else {
			req, err = wf.Reject(c.Context(), caller, key, body.Version, body.Comment)
		}
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(req)
	}
}

// Cancel handles POST /api/v1/exceptions/requests/:key/cancel
func Cancel(wf *workflow.Workflow) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, ok := auth.CallerFromCtx(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Authentication required"})
		}

		req, err := wf.Cancel(c.Context(), caller, c.Params("key"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(req)
	}
}

// respondError maps the engine's error taxonomy onto HTTP statuses.
func respondError(c *fiber.Ctx, err error) error {
	switch {
	case apperrors.IsValidation(err):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case apperrors.IsNotFound(err):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case apperrors.IsForbidden(err):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	case apperrors.IsInvalidTransition(err), apperrors.IsConflict(err), apperrors.IsDuplicateRequest(err):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
}
