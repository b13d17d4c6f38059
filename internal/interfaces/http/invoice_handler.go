package http

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/afip-facturacion/internal/application/dto"
	"github.com/jhoicas/afip-facturacion/internal/domain/entity"
	"github.com/jhoicas/afip-facturacion/pkg/afip"
)

// InvoiceService lo que el handler necesita del facturador.
type InvoiceService interface {
	InvoiceOrder(ctx context.Context, order *entity.Order) (inv *entity.Invoice, created bool, err error)
	OnOrderPaid(ctx context.Context, order *entity.Order) (inv *entity.Invoice, created bool, err error)
	GetOrderInvoice(ctx context.Context, orderRef string) (*entity.Invoice, error)
	RegeneratePDF(ctx context.Context, invoiceID string, lines []entity.OrderLine) (*entity.Invoice, error)
	DownloadPDF(ctx context.Context, invoiceID string) ([]byte, string, error)
	LookupTaxpayer(ctx context.Context, raw string) (*entity.Taxpayer, error)
}

// InvoiceHandler maneja la facturación de pedidos y los PDF.
type InvoiceHandler struct {
	svc InvoiceService
}

// NewInvoiceHandler construye el handler.
func NewInvoiceHandler(svc InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{svc: svc}
}

// InvoiceOrder godoc
// @Summary      Facturar pedido
// @Description  Emite la factura del pedido. Si ya estaba facturado devuelve la emitida con 200.
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        ref   path  string            true  "Referencia del pedido"
// @Param        body  body  dto.OrderRequest  true  "Pedido"
// @Success      201   {object}  dto.InvoiceResponse
// @Success      200   {object}  dto.InvoiceResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Failure      503   {object}  dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/orders/{ref}/invoice [post]
func (h *InvoiceHandler) InvoiceOrder(c *fiber.Ctx) error {
	var in dto.OrderRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	in.Reference = c.Params("ref")
	inv, created, err := h.svc.InvoiceOrder(c.UserContext(), in.ToEntity())
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(invoiceStatus(created)).JSON(dto.NewInvoiceResponse(inv))
}

// invoiceStatus 201 si se emitió ahora, 200 si ya estaba facturado.
func invoiceStatus(created bool) int {
	if created {
		return fiber.StatusCreated
	}
	return fiber.StatusOK
}

// OrderPaid godoc
// @Summary      Pedido pagado
// @Description  Factura el pedido si la facturación automática está activa; si no, responde 202.
// @Tags         orders
// @Accept       json
// @Produce      json
// @Param        body  body  dto.OrderRequest  true  "Pedido pagado"
// @Success      201   {object}  dto.InvoiceResponse
// @Success      200   {object}  dto.InvoiceResponse
// @Success      202
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Failure      503   {object}  dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/orders/paid [post]
func (h *InvoiceHandler) OrderPaid(c *fiber.Ctx) error {
	var in dto.OrderRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	if in.Reference == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "reference requerido"})
	}
	inv, created, err := h.svc.OnOrderPaid(c.UserContext(), in.ToEntity())
	if err != nil {
		return respondError(c, err)
	}
	if inv == nil {
		return c.SendStatus(fiber.StatusAccepted)
	}
	return c.Status(invoiceStatus(created)).JSON(dto.NewInvoiceResponse(inv))
}

// GetOrderInvoice godoc
// @Summary      Factura del pedido
// @Tags         orders
// @Produce      json
// @Param        ref  path  string  true  "Referencia del pedido"
// @Success      200  {object}  dto.InvoiceResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/orders/{ref}/invoice [get]
func (h *InvoiceHandler) GetOrderInvoice(c *fiber.Ctx) error {
	inv, err := h.svc.GetOrderInvoice(c.UserContext(), c.Params("ref"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.NewInvoiceResponse(inv))
}

// RegeneratePDF godoc
// @Summary      Regenerar PDF
// @Description  Sin líneas en el cuerpo se usan las registradas con la factura.
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        id    path  string                    true   "ID de la factura"
// @Param        body  body  dto.RegeneratePDFRequest  false  "Líneas a imprimir"
// @Success      200   {object}  dto.InvoiceResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/invoices/{id}/pdf [post]
func (h *InvoiceHandler) RegeneratePDF(c *fiber.Ctx) error {
	var in dto.RegeneratePDFRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
		}
	}
	inv, err := h.svc.RegeneratePDF(c.UserContext(), c.Params("id"), dto.OrderLines(in.Lines))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.NewInvoiceResponse(inv))
}

// DownloadPDF godoc
// @Summary      Descargar PDF
// @Tags         invoices
// @Produce      application/pdf
// @Param        id   path  string  true  "ID de la factura"
// @Success      200  {file}    binary
// @Failure      404  {object}  dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/invoices/{id}/pdf [get]
func (h *InvoiceHandler) DownloadPDF(c *fiber.Ctx) error {
	pdf, filename, err := h.svc.DownloadPDF(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err)
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.Send(pdf)
}

// ValidateTaxID godoc
// @Summary      Validar CUIT o DNI
// @Description  Para CUIT consulta además el padrón.
// @Tags         tax-ids
// @Accept       json
// @Produce      json
// @Param        body  body  dto.ValidateTaxIDRequest  true  "Documento"
// @Success      200   {object}  dto.TaxpayerResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      503   {object}  dto.ErrorResponse
// @Router       /api/tax-ids/validate [post]
func (h *InvoiceHandler) ValidateTaxID(c *fiber.Ctx) error {
	var in dto.ValidateTaxIDRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	raw := strings.TrimSpace(in.TaxID)
	switch afip.DetectDocumentType(raw) {
	case afip.DocumentDNI:
		dni, err := afip.ValidateNationalID(raw)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(dto.TaxpayerResponse{Valid: true, TaxID: dni, DocumentType: afip.DocumentDNI})
	case afip.DocumentCUIT:
		tp, err := h.svc.LookupTaxpayer(c.UserContext(), raw)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(dto.NewTaxpayerResponse(tp, afip.DocumentCUIT))
	}
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "ingrese un CUIT de 11 dígitos o un DNI de 7 u 8"})
}
