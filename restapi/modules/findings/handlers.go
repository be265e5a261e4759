// Package findings exposes scanner ingestion endpoints for vulnerability findings.
package findings

import (
	"strings"
	"time"

	"github.com/arangodb/go-driver/v2/arangodb"
	"github.com/gofiber/fiber/v2"

	"github.com/vulnops/vulnmgt-backend/database"
	events "github.com/vulnops/vulnmgt-backend/events/modules/findings"
	"github.com/vulnops/vulnmgt-backend/model"
	"github.com/vulnops/vulnmgt-backend/util"
)

// IngestBody is the JSON body scanners post for one detected vulnerability.
// Severity may be a rating label ("HIGH"), a scanner export label ("9.8
// Critical"), or absent when a CVSS vector or numeric score is supplied.
type IngestBody struct {
	AssetID       string  `json:"asset_id"`
	Pattern       string  `json:"pattern"`
	Summary       string  `json:"summary,omitempty"`
	Severity      string  `json:"severity,omitempty"`
	SeverityScore float64 `json:"severity_score,omitempty"`
	CVSSVector    string  `json:"cvss_vector,omitempty"`
	DetectedAt    string  `json:"detected_at,omitempty"` // RFC 3339, defaults to now
}

// Ingest handles POST /api/v1/findings
//
// Re-submitting an existing asset/pattern pair refreshes the severity fields
// but keeps the original detected_at, so rescans never reset the overdue clock.
func Ingest(db database.DBConnection, producer *events.Producer, store events.Invalidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body IngestBody
		if err := c.BodyParser(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
		}

		body.AssetID = strings.TrimSpace(body.AssetID)
		body.Pattern = strings.TrimSpace(body.Pattern)
		if body.AssetID == "" || body.Pattern == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "asset_id and pattern are required"})
		}

		detectedAt := time.Now().UTC()
		if body.DetectedAt != "" {
			parsed, err := time.Parse(time.RFC3339, body.DetectedAt)
			if err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "detected_at must be RFC 3339"})
			}
			detectedAt = parsed.UTC()
		}

		finding := model.NewFinding(body.AssetID, body.Pattern, model.SeverityNone, detectedAt)
		finding.Summary = body.Summary
		finding.CVSSVector = body.CVSSVector
		finding.SeverityScore = body.SeverityScore
		if body.Severity != "" {
			score, sev := util.ParseSeverityLabel(body.Severity)
			finding.Severity = sev
			if finding.SeverityScore == 0 {
				finding.SeverityScore = score
			}
		}
		util.NormalizeFindingSeverity(finding)

		query := `
			UPSERT { asset_id: @assetID, pattern: @pattern }
			INSERT @doc
			UPDATE {
				summary: @doc.summary,
				severity: @doc.severity,
				severity_score: @doc.severity_score,
				cvss_vector: @doc.cvss_vector,
				updated_at: @doc.updated_at
			} IN finding
			RETURN NEW
		`
		bindVars := map[string]interface{}{
			"assetID": body.AssetID,
			"pattern": body.Pattern,
			"doc":     finding,
		}

		cursor, err := db.Database.Query(c.Context(), query, &arangodb.QueryOptions{
			BindVars: bindVars,
		})
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to store finding"})
		}
		defer cursor.Close()

		var stored model.Finding
		if cursor.HasMore() {
			if _, err := cursor.ReadDocument(c.Context(), &stored); err != nil {
				return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to read stored finding"})
			}
		}

		if producer != nil {
			// Delivery failures are tolerated, the local invalidation below
			// still refreshes this instance.
			_ = producer.PublishFindingEvent(c.Context(), events.EventFindingRecorded, stored)
		}
		store.MarkDirty()

		return c.Status(fiber.StatusCreated).JSON(stored)
	}
}

// Resolve handles POST /api/v1/findings/:key/resolve
func Resolve(db database.DBConnection, producer *events.Producer, store events.Invalidator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		query := `
			FOR f IN finding
				FILTER f._key == @key
				REMOVE f IN finding
				RETURN OLD
		`
		bindVars := map[string]interface{}{
			"key": c.Params("key"),
		}

		cursor, err := db.Database.Query(c.Context(), query, &arangodb.QueryOptions{
			BindVars: bindVars,
		})
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to resolve finding"})
		}
		defer cursor.Close()

		if !cursor.HasMore() {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Finding not found"})
		}
		var removed model.Finding
		if _, err := cursor.ReadDocument(c.Context(), &removed); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to read finding"})
		}

		if producer != nil {
			_ = producer.PublishFindingEvent(c.Context(), events.EventFindingResolved, removed)
		}
		store.MarkDirty()

		return c.JSON(fiber.Map{"resolved": removed.Key})
	}
}
