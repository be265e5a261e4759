// Package kafka consumes finding ingestion events and keeps the overdue
// aggregate snapshot fresh.
package kafka

import (
	"context"
	"crypto/tls"
	"os"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
	"go.uber.org/zap"

	"github.com/vulnops/vulnmgt-backend/events/modules/findings"
	"github.com/vulnops/vulnmgt-backend/internal/aggregate"
)

// rebuildDebounce is how long the consumer lets marks accumulate before it
// triggers one coalesced rebuild.
const rebuildDebounce = 5 * time.Second

// RunEventProcessor connects to Kafka and consumes finding events until the
// context is cancelled. Each event marks the aggregate dirty; a side ticker
// turns accumulated marks into rebuilds.
func RunEventProcessor(ctx context.Context, store *aggregate.Store, log *zap.SugaredLogger) error {
	brokersEnv := os.Getenv("KAFKA_BROKERS")
	var brokers []string
	if brokersEnv != "" {
		brokers = strings.Split(brokersEnv, ",")
	} else {
		brokers = []string{"localhost:9092"}
	}

	username := os.Getenv("KAFKA_API_KEY")
	password := os.Getenv("KAFKA_API_SECRET")

	var dialer *kafka.Dialer

	// Only configure SASL/TLS if credentials are provided
	if username != "" && password != "" {
		mechanism := plain.Mechanism{
			Username: username,
			Password: password,
		}

		dialer = &kafka.Dialer{
			Timeout:       10 * time.Second,
			DualStack:     true,
			SASLMechanism: mechanism,
			TLS:           &tls.Config{},
		}
	} else {
		dialer = &kafka.Dialer{
			Timeout:   10 * time.Second,
			DualStack: true,
		}
	}

	var conn *kafka.Conn
	var err error

	// Retry logic: 3 tries
	for i := 1; i <= 3; i++ {
		log.Infof("Kafka connection attempt %d/3...", i)
		conn, err = dialer.DialContext(ctx, "tcp", brokers[0])
		if err == nil {
			conn.Close()
			break
		}
		if i < 3 {
			time.Sleep(2 * time.Second)
		}
	}

	if err != nil {
		return err
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		GroupID:  "vulnmgt-backend-worker",
		Topic:    findings.Topic,
		MaxBytes: 10e6,
		Dialer:   dialer,
	})

	go func() {
		ticker := time.NewTicker(rebuildDebounce)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, rebuilt, err := store.RebuildIfDirty(ctx); err != nil {
					log.Errorw("event-driven aggregate rebuild failed", "error", err)
				} else if rebuilt {
					log.Debugw("aggregate rebuilt after finding events")
				}
			}
		}
	}()

	go func() {
		defer reader.Close()

		log.Infow("Kafka event processor started, listening for finding events", "topic", findings.Topic)

		for {
			select {
			case <-ctx.Done():
				return
			default:
				msg, err := reader.ReadMessage(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					continue
				}
				if err := findings.HandleFindingEvent(msg.Value, store); err != nil {
					log.Warnw("skipping malformed finding event", "error", err)
				}
			}
		}
	}()

	return nil
}
