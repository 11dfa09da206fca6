package service

import (
	"github.com/smartinvoice/smartinvoice/internal/config"
	"github.com/smartinvoice/smartinvoice/internal/domain/invoice"
	"github.com/smartinvoice/smartinvoice/internal/logger"
	"github.com/smartinvoice/smartinvoice/internal/postgres"
)

// ServiceParams carries the shared dependencies injected into services
type ServiceParams struct {
	Logger *logger.Logger
	Config *config.Configuration
	DB     postgres.IClient

	InvoiceRepo invoice.Repository
}
