// Package findings handles Kafka event production for finding ingestion events.
package findings

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/vulnops/vulnmgt-backend/model"
)

// Producer handles sending finding lifecycle events to Kafka
type Producer struct {
	Writer *kafka.Writer
}

// NewProducer initializes a new Kafka writer for finding events
func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		Writer: &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    topic,
			Balancer: &kafka.LeastBytes{},
		},
	}
}

// PublishFindingEvent sends a finding lifecycle event to the Kafka topic.
// Events for the same asset share a key so they stay ordered per partition.
func (p *Producer) PublishFindingEvent(ctx context.Context, eventType string, finding model.Finding) error {
	event := FindingEvent{
		EventType:     eventType,
		EventID:       uuid.New().String(),
		EventTime:     time.Now().UTC(),
		SchemaVersion: "v1",
		AssetID:       finding.AssetID,
		Finding:       finding,
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	return p.Writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(finding.AssetID),
		Value: payload,
	})
}

// Close cleans up the Kafka writer
func (p *Producer) Close() error {
	return p.Writer.Close()
}
