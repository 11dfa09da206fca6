package main

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/smartinvoice/smartinvoice/internal/api"
	v1 "github.com/smartinvoice/smartinvoice/internal/api/v1"
	"github.com/smartinvoice/smartinvoice/internal/config"
	"github.com/smartinvoice/smartinvoice/internal/domain/invoice"
	"github.com/smartinvoice/smartinvoice/internal/logger"
	"github.com/smartinvoice/smartinvoice/internal/postgres"
	"github.com/smartinvoice/smartinvoice/internal/repository"
	"github.com/smartinvoice/smartinvoice/internal/repository/sqlstore"
	"github.com/smartinvoice/smartinvoice/internal/service"
	"github.com/smartinvoice/smartinvoice/internal/types"
	"github.com/smartinvoice/smartinvoice/internal/validator"
)

// @title SmartInvoice API
// @version 1.0
// @description Invoice lifecycle and payment reconciliation service
// @BasePath /v1
// @schemes http https

func init() {
	// Set UTC timezone for the entire application
	time.Local = time.UTC
}

func main() {
	app := fx.New(
		fx.Provide(
			// Validator
			validator.NewValidator,

			// Config
			config.NewConfig,

			// Logger
			logger.NewLogger,

			// Postgres
			postgres.NewDB,
			postgres.NewClient,

			// Repositories
			repository.NewInvoiceRepository,

			// Services
			provideServiceParams,
			service.NewInvoiceService,
			service.NewPaymentService,

			// API
			provideHandlers,
			provideRouter,
		),
		fx.Invoke(
			migrateSchema,
			startAPIServer,
		),
	)

	app.Run()
}

func provideServiceParams(
	cfg *config.Configuration,
	log *logger.Logger,
	db postgres.IClient,
	invoiceRepo invoice.Repository,
) service.ServiceParams {
	return service.ServiceParams{
		Logger:      log,
		Config:      cfg,
		DB:          db,
		InvoiceRepo: invoiceRepo,
	}
}

func provideHandlers(
	invoiceService service.InvoiceService,
	paymentService service.PaymentService,
	log *logger.Logger,
) api.Handlers {
	return api.Handlers{
		Health:  v1.NewHealthHandler(log),
		Invoice: v1.NewInvoiceHandler(invoiceService, paymentService, log),
	}
}

func provideRouter(handlers api.Handlers, cfg *config.Configuration) *gin.Engine {
	if cfg.Deployment.Mode == types.ModeProd {
		gin.SetMode(gin.ReleaseMode)
	}
	return api.NewRouter(handlers)
}

func migrateSchema(cfg *config.Configuration, db postgres.IClient, log *logger.Logger) error {
	if !cfg.Postgres.AutoMigrate {
		return nil
	}
	log.Info("Applying database schema")
	return sqlstore.Migrate(context.Background(), db)
}

func startAPIServer(
	lc fx.Lifecycle,
	r *gin.Engine,
	cfg *config.Configuration,
	log *logger.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infof("Starting API server on %s", cfg.Server.Address)
			go func() {
				if err := r.Run(cfg.Server.Address); err != nil {
					log.Fatalf("Failed to start server: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("Shutting down server...")
			return nil
		},
	})
}
