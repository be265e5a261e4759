// vulnmgt-backend serves the overdue vulnerability detection and exception
// approval engine: a precomputed per-asset overdue aggregate behind REST and
// GraphQL, plus the exception request workflow that feeds suppressions into it.
package main

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/vulnops/vulnmgt-backend/database"
	events "github.com/vulnops/vulnmgt-backend/events/modules/findings"
	"github.com/vulnops/vulnmgt-backend/internal/access"
	"github.com/vulnops/vulnmgt-backend/internal/aggregate"
	"github.com/vulnops/vulnmgt-backend/internal/api"
	"github.com/vulnops/vulnmgt-backend/internal/exceptions"
	"github.com/vulnops/vulnmgt-backend/internal/kafka"
	"github.com/vulnops/vulnmgt-backend/internal/observability"
	"github.com/vulnops/vulnmgt-backend/internal/policy"
	"github.com/vulnops/vulnmgt-backend/internal/query"
	"github.com/vulnops/vulnmgt-backend/restapi/modules/auth"
)

func main() {
	// Optional .env for local development
	_ = godotenv.Load()

	logger := database.InitLogger().Sugar()
	defer logger.Sync() //nolint:errcheck

	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		auth.SetJWTSecret(secret)
	}

	// Database connection, collections, indexes
	db := database.InitializeDatabase()

	// Remediation windows
	thresholds, err := policy.Load(database.GetEnvDefault("THRESHOLDS_FILE", "config/thresholds.yaml"))
	if err != nil {
		log.Fatalf("Failed to load remediation thresholds: %v", err)
	}

	// Engine wiring
	excStore := exceptions.NewArangoStore(db)
	wf := exceptions.NewWorkflow(excStore, logger)

	directory := access.NewArangoDirectory(db)
	filter := access.NewFilter(directory, logger)

	source := aggregate.NewArangoSource(db)
	store := aggregate.NewStore(source, excStore, thresholds, logger)

	facade := query.NewFacade(store, filter, thresholds, logger)

	// Prometheus endpoint on its own listener
	go observability.ServeMetrics(database.GetEnvDefault("METRICS_ADDR", ":9090"), logger)

	// Finding event pipeline keeps the aggregate fresh between scheduled
	// rebuilds. Without brokers, ingestion still invalidates locally.
	var producer *events.Producer
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		producer = events.NewProducer(strings.Split(brokers, ","), events.Topic)
		defer producer.Close() //nolint:errcheck
		if err := kafka.RunEventProcessor(context.Background(), store, logger); err != nil {
			logger.Warnw("Kafka event processor unavailable, relying on scheduled rebuilds", "error", err)
		}
	}

	app := api.NewFiberApp(db, wf, facade, store, producer)

	port := database.GetEnvDefault("MS_PORT", "3000")
	log.Printf("Starting server on port %s", port)
	log.Printf("GraphQL endpoint available at /api/v1/graphql")
	if err := app.Listen(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
