package main

import (
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"

	"github.com/ManuelReschke/Agape/app/repository"
	apiv1 "github.com/ManuelReschke/Agape/internal/api/v1"
	"github.com/ManuelReschke/Agape/internal/pkg/cache"
	"github.com/ManuelReschke/Agape/internal/pkg/config"
	"github.com/ManuelReschke/Agape/internal/pkg/database"
	"github.com/ManuelReschke/Agape/internal/pkg/env"
	"github.com/ManuelReschke/Agape/internal/pkg/ledger"
	"github.com/ManuelReschke/Agape/internal/pkg/middleware"
	"github.com/ManuelReschke/Agape/internal/pkg/plans"
	"github.com/ManuelReschke/Agape/internal/pkg/queries"
	"github.com/ManuelReschke/Agape/internal/pkg/referral"
	"github.com/ManuelReschke/Agape/internal/pkg/router"
	"github.com/ManuelReschke/Agape/internal/pkg/settlement"
	"github.com/ManuelReschke/Agape/internal/pkg/users"
	"github.com/ManuelReschke/Agape/internal/pkg/withdrawal"
)

func main() {
	app, err := NewApplication()
	if err != nil {
		log.Fatal(err)
	}
	err = app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() (*fiber.App, error) {
	env.SetupEnvFile()

	settings, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	db, err := database.SetupDatabase(settings.LockWaitTimeout)
	if err != nil {
		return nil, err
	}

	var store *cache.Store
	if env.GetEnv("CACHE_HOST", "") != "" {
		store = cache.New(cache.SetupCache())
	}

	// init fiber app
	app := fiber.New(fiber.Config{
		AppName:   "Agape",
		BodyLimit: 1 << 20,
	})

	// recovery and logging
	app.Use(recover.New(), logger.New())

	// ROUTER
	router.InstallRouter(app, NewAPIServer(db, store, settings), middleware.RequireAdmin())

	return app, nil
}

// NewAPIServer wires the settlement core for the HTTP layer
func NewAPIServer(db *gorm.DB, store *cache.Store, settings config.Settings) *apiv1.APIServer {
	catalog := plans.NewCatalog(db, store)
	repos := repository.NewRepositories(db)
	return apiv1.NewAPIServer(apiv1.Services{
		Users:      users.NewService(db, repos.User),
		Catalog:    catalog,
		Settlement: settlement.NewEngine(db, store, settings),
		Ledger:     ledger.New(db, store, settings),
		Referral:   referral.NewEngine(db, store, settings),
		Withdrawal: withdrawal.NewWorkflow(db, store, settings),
		Queries:    queries.NewService(repos, store, catalog),
		Settings:   settings,
	})
}
