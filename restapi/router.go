// Package restapi provides the main router and initialization for REST API endpoints.
package restapi

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"

	"github.com/vulnops/vulnmgt-backend/database"
	events "github.com/vulnops/vulnmgt-backend/events/modules/findings"
	"github.com/vulnops/vulnmgt-backend/internal/aggregate"
	workflow "github.com/vulnops/vulnmgt-backend/internal/exceptions"
	"github.com/vulnops/vulnmgt-backend/internal/query"
	"github.com/vulnops/vulnmgt-backend/model"
	"github.com/vulnops/vulnmgt-backend/restapi/modules/auth"
	exceptionsapi "github.com/vulnops/vulnmgt-backend/restapi/modules/exceptions"
	findingsapi "github.com/vulnops/vulnmgt-backend/restapi/modules/findings"
	overdueapi "github.com/vulnops/vulnmgt-backend/restapi/modules/overdue"
)

// SetupRoutes configures all REST API routes and the GraphQL endpoint.
func SetupRoutes(app *fiber.App, db database.DBConnection, schema graphql.Schema,
	wf *workflow.Workflow, facade *query.Facade, store *aggregate.Store, producer *events.Producer) {

	// Background initialization tasks
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := auth.BootstrapAdmin(ctx, db, os.Getenv("ADMIN_USERNAME"), os.Getenv("ADMIN_PASSWORD")); err != nil {
			log.Printf("WARNING: Failed to bootstrap admin: %v", err)
		}
	}()

	go startRebuildLoop(store)
	go startExpireSweep(wf)

	// API Group /api/v1
	api := app.Group("/api/v1")

	// GraphQL Route - Mounted within the api group to inherit path prefixes
	api.Post("/graphql", auth.RequireAuth, GraphQLHandler(schema))

	// Auth Routes
	authGroup := api.Group("/auth")
	authGroup.Post("/login", auth.Login(db))
	authGroup.Post("/logout", auth.Logout())
	authGroup.Get("/me", auth.RequireAuth, auth.Me(db))

	// Overdue aggregate
	overdueGroup := api.Group("/overdue", auth.RequireAuth)
	overdueGroup.Get("/", overdueapi.List(facade))
	overdueGroup.Post("/rebuild", auth.RequireRole(model.RoleAdmin), overdueapi.TriggerRebuild(store))

	// Exception workflow
	requestGroup := api.Group("/exceptions/requests", auth.RequireAuth)
	requestGroup.Post("/", exceptionsapi.Create(wf))
	requestGroup.Get("/", exceptionsapi.ListMine(wf))
	requestGroup.Get("/pending", auth.RequireRole(model.RoleAdmin, model.RoleSecurityOfficer), exceptionsapi.ListPending(wf))
	requestGroup.Post("/:key/approve", auth.RequireRole(model.RoleAdmin, model.RoleSecurityOfficer), exceptionsapi.Approve(wf))
	requestGroup.Post("/:key/reject", auth.RequireRole(model.RoleAdmin, model.RoleSecurityOfficer), exceptionsapi.Reject(wf))
	requestGroup.Post("/:key/cancel", exceptionsapi.Cancel(wf))

	// Finding ingestion, scanner integrations only
	findingGroup := api.Group("/findings", auth.RequireAuth, auth.RequireRole(model.RoleAdmin, model.RoleSecurityOfficer))
	findingGroup.Post("/", findingsapi.Ingest(db, producer, store))
	findingGroup.Post("/:key/resolve", findingsapi.Resolve(db, producer, store))

	log.Println("API routes initialized successfully")
}

// startRebuildLoop recomputes the aggregate on a fixed cadence. The interval
// comes from REBUILD_INTERVAL_MINUTES and defaults to 15.
func startRebuildLoop(store *aggregate.Store) {
	minutes := 15
	if raw := os.Getenv("REBUILD_INTERVAL_MINUTES"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			minutes = parsed
		}
	}

	runRebuild(store)
	ticker := time.NewTicker(time.Duration(minutes) * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		runRebuild(store)
	}
}

func runRebuild(store *aggregate.Store) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if _, err := store.Rebuild(ctx); err != nil {
		log.Printf("WARNING: Background aggregate rebuild failed: %v", err)
	}
}

// startExpireSweep flips lapsed APPROVED requests to EXPIRED once an hour.
// Expiry is enforced at read time regardless; the sweep keeps the stored
// workflow state in step with what callers see.
func startExpireSweep(wf *workflow.Workflow) {
	runExpireSweep(wf)
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		runExpireSweep(wf)
	}
}

func runExpireSweep(wf *workflow.Workflow) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	count, err := wf.ExpireSweep(ctx)
	if err != nil {
		log.Printf("WARNING: Background task: expire sweep failed: %v", err)
		return
	}
	if count > 0 {
		log.Printf("Background task: marked %d exception requests expired", count)
	}
}
