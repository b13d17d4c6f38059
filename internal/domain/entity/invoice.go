package entity

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/afip-facturacion/pkg/afip"
)

// InvoiceStatusIssued estado de la factura con CAE en el libro local.
const InvoiceStatusIssued = "emitida"

// InvoiceRequest datos de un comprobante a autorizar en WSFE.
// Invariante: TotalAmount == NetAmount + VATAmount (tolerancia 0.01).
type InvoiceRequest struct {
	InvoiceType     afip.InvoiceType // si es 0 se resuelve por régimen del emisor y condición del receptor
	Concept         afip.Concept
	BuyerTaxID      string // CUIT, solo dígitos
	BuyerNationalID string // DNI, solo dígitos
	BuyerTaxStatus  afip.IVACondition
	NetAmount       decimal.Decimal
	VATAmount       decimal.Decimal
	TotalAmount     decimal.Decimal
}

// InvoiceResult comprobante autorizado por AFIP. Se crea una sola vez por CAE otorgado.
type InvoiceResult struct {
	PointOfSale   int64
	InvoiceNumber int64
	InvoiceType   afip.InvoiceType
	CAE           string
	CAEDueDate    time.Time
	IssuedAt      time.Time
	TotalAmount   decimal.Decimal
}

// Number devuelve el número visible PPPPP-NNNNNNNN.
func (r *InvoiceResult) Number() string {
	return afip.FormatNumber(r.PointOfSale, r.InvoiceNumber)
}

// Invoice fila del libro de facturas (append-only). Solo PDFPath puede anotarse después.
type Invoice struct {
	ID              string
	OrderRef        string
	InvoiceType     afip.InvoiceType
	PointOfSale     int64
	InvoiceNumber   int64
	CAE             string
	CAEDueDate      time.Time
	BuyerTaxID      string
	BuyerNationalID string
	BuyerName       string
	BuyerTaxStatus  afip.IVACondition
	NetAmount       decimal.Decimal
	VATAmount       decimal.Decimal
	TotalAmount     decimal.Decimal
	Lines           []OrderLine // líneas del pedido, para reimprimir el PDF
	Status          string
	PDFPath         string
	IssuedAt        time.Time
	CreatedAt       time.Time
}

// Number devuelve el número visible PPPPP-NNNNNNNN.
func (i *Invoice) Number() string {
	return afip.FormatNumber(i.PointOfSale, i.InvoiceNumber)
}
