// Package findings defines types for Kafka event processing of finding
// ingestion events.
package findings

import (
	"time"

	"github.com/vulnops/vulnmgt-backend/model"
)

// Topic is the Kafka topic finding events travel on.
const Topic = "finding-events"

// Event types published by the scan ingestion pipeline.
const (
	EventFindingRecorded = "finding.recorded"
	EventFindingResolved = "finding.resolved"
)

// FindingEvent represents a finding lifecycle event published to Kafka.
type FindingEvent struct {
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EventTime     time.Time `json:"event_time"`
	SchemaVersion string    `json:"schema_version"`

	AssetID string        `json:"asset_id"`
	Finding model.Finding `json:"finding"`
}
