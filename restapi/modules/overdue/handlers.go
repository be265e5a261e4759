// Package overdue exposes the overdue aggregate read path over REST.
package overdue

import (
	"github.com/gofiber/fiber/v2"

	"github.com/vulnops/vulnmgt-backend/internal/aggregate"
	apperrors "github.com/vulnops/vulnmgt-backend/internal/errors"
	"github.com/vulnops/vulnmgt-backend/internal/query"
	"github.com/vulnops/vulnmgt-backend/model"
	"github.com/vulnops/vulnmgt-backend/restapi/modules/auth"
)

// List handles GET /api/v1/overdue
func List(facade *query.Facade) fiber.Handler {
	return func(c *fiber.Ctx) error {
		caller, ok := auth.CallerFromCtx(c)
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Authentication required"})
		}

		filters := query.Filters{
			Search: c.Query("search"),
			Page:   c.QueryInt("page", 1),
			Size:   c.QueryInt("size", 0),
		}
		if raw := c.Query("min_severity"); raw != "" {
			sev, ok := model.ParseSeverity(raw)
			if !ok {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Unknown min_severity"})
			}
			filters.MinSeverity = sev
		}

		page, err := facade.ListOverdue(c.Context(), caller, filters)
		if err != nil {
			if apperrors.IsValidation(err) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
			}
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
		}
		return c.JSON(page)
	}
}

// TriggerRebuild handles POST /api/v1/overdue/rebuild. Admin only, enforced
// by route middleware.
func TriggerRebuild(store *aggregate.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		result, err := store.Rebuild(c.Context())
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Rebuild failed"})
		}
		return c.JSON(fiber.Map{
			"rows":        result.RowCount,
			"duration_ms": result.Duration.Milliseconds(),
		})
	}
}
