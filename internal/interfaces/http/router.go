package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/afip-facturacion/pkg/jwt"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Invoices  InvoiceService
	Status    StatusChecker
	AFIPInfo  AFIPInfo
	JWTSecret string
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")
	invoiceHandler := NewInvoiceHandler(deps.Invoices)
	afipHandler := NewAFIPHandler(deps.Status, deps.AFIPInfo)

	// Validación de CUIT/DNI (público, lo usa el checkout)
	api.Post("/tax-ids/validate", invoiceHandler.ValidateTaxID)

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))

	// Pedidos: integración del e-commerce y operador
	orders := protected.Group("/orders", RequireRole(jwt.RoleOrders, jwt.RoleOperator))
	orders.Post("/paid", invoiceHandler.OrderPaid)
	orders.Post("/:ref/invoice", invoiceHandler.InvoiceOrder)
	orders.Get("/:ref/invoice", invoiceHandler.GetOrderInvoice)

	// Facturas (operador)
	invoices := protected.Group("/invoices", RequireRole(jwt.RoleOperator))
	invoices.Post("/:id/pdf", invoiceHandler.RegeneratePDF)
	invoices.Get("/:id/pdf", invoiceHandler.DownloadPDF)

	// Estado de AFIP (operador)
	protected.Get("/afip/status", RequireRole(jwt.RoleOperator), afipHandler.Status)
}
