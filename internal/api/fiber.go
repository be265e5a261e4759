package api

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	fiberrecover "github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/vulnops/vulnmgt-backend/database"
	events "github.com/vulnops/vulnmgt-backend/events/modules/findings"
	gqlschema "github.com/vulnops/vulnmgt-backend/graphql"
	"github.com/vulnops/vulnmgt-backend/internal/aggregate"
	workflow "github.com/vulnops/vulnmgt-backend/internal/exceptions"
	"github.com/vulnops/vulnmgt-backend/internal/query"
	"github.com/vulnops/vulnmgt-backend/restapi"
)

// NewFiberApp creates and configures a Fiber app with REST and GraphQL routes
func NewFiberApp(db database.DBConnection, wf *workflow.Workflow, facade *query.Facade, store *aggregate.Store, producer *events.Producer) *fiber.App {
	// Initialize GraphQL schema
	schema, err := gqlschema.CreateSchema(facade)
	if err != nil {
		log.Fatalf("Failed to create GraphQL schema: %v", err)
	}

	app := fiber.New(fiber.Config{
		AppName:     "vulnmgt-backend API v1.0",
		BodyLimit:   1 * 1024 * 1024,
		ReadTimeout: 60 * time.Second,
	})

	// Middleware
	app.Use(fiberrecover.New())
	app.Use(compress.New(compress.Config{Level: compress.LevelBestSpeed}))

	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000,http://localhost:4000,http://127.0.0.1:3000,http://127.0.0.1:4000",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With",
		AllowCredentials: true,
		AllowMethods:     "GET, POST, HEAD, PUT, DELETE, PATCH, OPTIONS",
	}))

	app.Use(logger.New())

	// Health check endpoint
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "healthy"})
	})

	// Setup REST and GraphQL routes
	restapi.SetupRoutes(app, db, schema, wf, facade, store, producer)

	return app
}
