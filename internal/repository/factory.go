package repository

import (
	"github.com/smartinvoice/smartinvoice/internal/domain/invoice"
	"github.com/smartinvoice/smartinvoice/internal/logger"
	"github.com/smartinvoice/smartinvoice/internal/postgres"
	"github.com/smartinvoice/smartinvoice/internal/repository/sqlstore"
)

func NewInvoiceRepository(client postgres.IClient, logger *logger.Logger) invoice.Repository {
	return sqlstore.NewInvoiceRepository(client, logger)
}
