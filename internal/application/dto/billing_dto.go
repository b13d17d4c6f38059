package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/afip-facturacion/internal/domain/entity"
)

// OrderRequest pedido pagado enviado por el e-commerce.
// POST /api/orders/:ref/invoice y POST /api/orders/paid.
type OrderRequest struct {
	Reference       string             `json:"reference,omitempty"`
	Total           decimal.Decimal    `json:"total"`
	BuyerTaxID      string             `json:"buyer_tax_id,omitempty"`
	BuyerNationalID string             `json:"buyer_national_id,omitempty"`
	BuyerTaxStatus  int                `json:"buyer_tax_status,omitempty"`
	BuyerFirstName  string             `json:"buyer_first_name,omitempty"`
	BuyerLastName   string             `json:"buyer_last_name,omitempty"`
	BuyerEmail      string             `json:"buyer_email,omitempty"`
	Lines           []OrderLineRequest `json:"lines"`
}

// OrderLineRequest línea del pedido.
type OrderLineRequest struct {
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Virtual   bool            `json:"virtual,omitempty"` // servicio o descargable
}

// ToEntity convierte el body al pedido del dominio.
func (r *OrderRequest) ToEntity() *entity.Order {
	o := &entity.Order{
		Reference:       r.Reference,
		Total:           r.Total,
		BuyerTaxID:      r.BuyerTaxID,
		BuyerNationalID: r.BuyerNationalID,
		BuyerTaxStatus:  r.BuyerTaxStatus,
		BuyerFirstName:  r.BuyerFirstName,
		BuyerLastName:   r.BuyerLastName,
		BuyerEmail:      r.BuyerEmail,
	}
	o.Lines = OrderLines(r.Lines)
	return o
}

// OrderLines convierte las líneas del body.
func OrderLines(in []OrderLineRequest) []entity.OrderLine {
	if len(in) == 0 {
		return nil
	}
	lines := make([]entity.OrderLine, 0, len(in))
	for _, l := range in {
		lines = append(lines, entity.OrderLine{Name: l.Name, Quantity: l.Quantity, UnitPrice: l.UnitPrice, Virtual: l.Virtual})
	}
	return lines
}

// RegeneratePDFRequest body opcional de POST /api/invoices/:id/pdf.
type RegeneratePDFRequest struct {
	Lines []OrderLineRequest `json:"lines,omitempty"`
}

// InvoiceResponse fila del libro de facturas.
type InvoiceResponse struct {
	ID              string          `json:"id"`
	OrderRef        string          `json:"order_ref"`
	InvoiceType     int             `json:"invoice_type"`
	InvoiceTypeName string          `json:"invoice_type_name"`
	Number          string          `json:"number"` // PPPPP-NNNNNNNN
	PointOfSale     int64           `json:"point_of_sale"`
	InvoiceNumber   int64           `json:"invoice_number"`
	CAE             string          `json:"cae"`
	CAEDueDate      string          `json:"cae_due_date"` // YYYY-MM-DD
	BuyerTaxID      string          `json:"buyer_tax_id,omitempty"`
	BuyerNationalID string          `json:"buyer_national_id,omitempty"`
	BuyerName       string          `json:"buyer_name,omitempty"`
	BuyerTaxStatus  string          `json:"buyer_tax_status"`
	NetAmount       decimal.Decimal `json:"net_amount"`
	VATAmount       decimal.Decimal `json:"vat_amount"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Status          string          `json:"status"`
	HasPDF          bool            `json:"has_pdf"`
	IssuedAt        time.Time       `json:"issued_at"`
}

// NewInvoiceResponse arma la respuesta a partir de la fila del libro.
func NewInvoiceResponse(inv *entity.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:              inv.ID,
		OrderRef:        inv.OrderRef,
		InvoiceType:     int(inv.InvoiceType),
		InvoiceTypeName: inv.InvoiceType.String(),
		Number:          inv.Number(),
		PointOfSale:     inv.PointOfSale,
		InvoiceNumber:   inv.InvoiceNumber,
		CAE:             inv.CAE,
		CAEDueDate:      inv.CAEDueDate.Format("2006-01-02"),
		BuyerTaxID:      inv.BuyerTaxID,
		BuyerNationalID: inv.BuyerNationalID,
		BuyerName:       inv.BuyerName,
		BuyerTaxStatus:  inv.BuyerTaxStatus.String(),
		NetAmount:       inv.NetAmount,
		VATAmount:       inv.VATAmount,
		TotalAmount:     inv.TotalAmount,
		Status:          inv.Status,
		HasPDF:          inv.PDFPath != "",
		IssuedAt:        inv.IssuedAt,
	}
}

// ValidateTaxIDRequest body de POST /api/tax-ids/validate.
type ValidateTaxIDRequest struct {
	TaxID string `json:"tax_id"`
}

// TaxpayerResponse CUIT validado y datos del padrón.
type TaxpayerResponse struct {
	Valid            bool   `json:"valid"`
	TaxID            string `json:"tax_id"`        // XX-XXXXXXXX-X
	DocumentType     string `json:"document_type"` // CUIT | DNI | UNKNOWN
	Found            bool   `json:"found"`
	Name             string `json:"name,omitempty"`
	PersonType       string `json:"person_type,omitempty"`
	IVACondition     string `json:"iva_condition,omitempty"`
	IVAConditionCode int    `json:"iva_condition_code,omitempty"`
	Address          string `json:"address,omitempty"`
	Status           string `json:"status,omitempty"`
}

// NewTaxpayerResponse arma la respuesta a partir del contribuyente.
func NewTaxpayerResponse(tp *entity.Taxpayer, docType string) TaxpayerResponse {
	return TaxpayerResponse{
		Valid:            true,
		TaxID:            tp.TaxID,
		DocumentType:     docType,
		Found:            tp.Found,
		Name:             tp.Name,
		PersonType:       tp.PersonType,
		IVACondition:     tp.IVACondition,
		IVAConditionCode: int(tp.IVAConditionCode),
		Address:          tp.Address,
		Status:           tp.Status,
	}
}

// AFIPStatusResponse estado de WSFE (FEDummy) y del certificado.
type AFIPStatusResponse struct {
	OK          bool      `json:"ok"`
	AppServer   string    `json:"app_server"`
	DbServer    string    `json:"db_server"`
	AuthServer  string    `json:"auth_server"`
	Environment string    `json:"environment"`
	IssuerTaxID string    `json:"issuer_tax_id"`
	PointOfSale int64     `json:"point_of_sale"`
	CertExpires time.Time `json:"cert_expires,omitempty"`
}
