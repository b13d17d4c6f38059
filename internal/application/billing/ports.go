package billing

import (
	"context"

	"github.com/jhoicas/afip-facturacion/internal/domain/entity"
)

// Invoicer solicita el CAE (implementado por afipws.InvoicingClient).
type Invoicer interface {
	Issue(ctx context.Context, req *entity.InvoiceRequest) (*entity.InvoiceResult, error)
}

// TaxRegistry consulta el padrón de contribuyentes.
type TaxRegistry interface {
	Lookup(ctx context.Context, cuit string) (*entity.Taxpayer, error)
}

// InvoicePDFGenerator genera la representación impresa del comprobante.
type InvoicePDFGenerator interface {
	GenerateInvoicePDF(ctx context.Context, inv *entity.Invoice, lines []entity.OrderLine) ([]byte, error)
}

// PDFStore archiva los PDF generados.
type PDFStore interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
	Load(ctx context.Context, path string) ([]byte, error)
}

// InvoiceMailer envía la factura al comprador.
type InvoiceMailer interface {
	SendInvoice(ctx context.Context, order *entity.Order, inv *entity.Invoice, pdf []byte) error
}
