package api

import (
	"github.com/gin-gonic/gin"
	v1 "github.com/smartinvoice/smartinvoice/internal/api/v1"
	"github.com/smartinvoice/smartinvoice/internal/rest/middleware"
)

type Handlers struct {
	Health  *v1.HealthHandler
	Invoice *v1.InvoiceHandler
}

func NewRouter(handlers Handlers) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware,
		middleware.CORSMiddleware,
		middleware.ErrorHandler(),
	)

	router.GET("/health", handlers.Health.Health)

	// v1 routes
	v1Group := router.Group("/v1")
	registerV1Routes(v1Group, handlers)

	return router
}

func registerV1Routes(router *gin.RouterGroup, handlers Handlers) {
	invoices := router.Group("/invoices")
	{
		invoices.POST("", handlers.Invoice.CreateInvoice)
		invoices.GET("", handlers.Invoice.ListInvoices)
		invoices.GET("/summary", handlers.Invoice.GetSummary)
		invoices.GET("/:id", handlers.Invoice.GetInvoice)
		invoices.PUT("/:id", handlers.Invoice.UpdateInvoice)
		invoices.DELETE("/:id", handlers.Invoice.DeleteInvoice)
		invoices.POST("/:id/send", handlers.Invoice.SendInvoice)
		invoices.POST("/:id/cancel", handlers.Invoice.CancelInvoice)
		invoices.POST("/:id/payments", handlers.Invoice.AddPayment)
		invoices.GET("/:id/payments", handlers.Invoice.ListPayments)
	}

	customers := router.Group("/customers")
	{
		customers.GET("/:customer_id/invoices", handlers.Invoice.GetCustomerInvoices)
	}
}
