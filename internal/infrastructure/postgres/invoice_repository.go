package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/afip-facturacion/internal/domain"
	"github.com/jhoicas/afip-facturacion/internal/domain/entity"
	"github.com/jhoicas/afip-facturacion/internal/domain/repository"
	"github.com/jhoicas/afip-facturacion/pkg/afip"
)

var _ repository.InvoiceRepository = (*InvoiceRepo)(nil)

// InvoiceRepo libro de facturas en afip_invoices. Append-only salvo pdf_path.
type InvoiceRepo struct {
	db *DB
	tx *TxRunner
}

// NewInvoiceRepository construye el repositorio.
func NewInvoiceRepository(db *DB) *InvoiceRepo {
	return &InvoiceRepo{db: db, tx: NewTxRunner(db)}
}

const invoiceColumns = `id::text, order_ref, invoice_type, point_of_sale, invoice_number, cae, cae_due_date,
COALESCE(buyer_tax_id, ''), COALESCE(buyer_national_id, ''), COALESCE(buyer_name, ''), buyer_tax_status,
net_amount, vat_amount, total_amount, status, COALESCE(pdf_path, ''), issued_at, created_at, lines`

const (
	qInvoiceInsert = `INSERT INTO afip_invoices
(id, order_ref, invoice_type, point_of_sale, invoice_number, cae, cae_due_date, buyer_tax_id, buyer_national_id,
buyer_name, buyer_tax_status, net_amount, vat_amount, total_amount, status, issued_at, lines, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, now())`

	qInvoiceByID = `SELECT ` + invoiceColumns + ` FROM afip_invoices WHERE id = $1`

	qInvoiceIssuedByOrder = `SELECT ` + invoiceColumns + ` FROM afip_invoices WHERE order_ref = $1 AND status = 'emitida' ORDER BY issued_at DESC LIMIT 1`

	qInvoiceSetPDF = `UPDATE afip_invoices SET pdf_path = $2 WHERE id = $1`

	// Lock por pedido; se libera al terminar la transacción.
	qInvoiceOrderLock = `SELECT pg_advisory_xact_lock(hashtext($1))`

	constraintOrderIssued = "afip_invoices_order_issued_uidx"
)

// lineRecord forma JSON de una línea en la columna lines.
type lineRecord struct {
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Virtual   bool            `json:"virtual"`
}

func encodeLines(lines []entity.OrderLine) ([]byte, error) {
	recs := make([]lineRecord, 0, len(lines))
	for _, l := range lines {
		recs = append(recs, lineRecord{Name: l.Name, Quantity: l.Quantity, UnitPrice: l.UnitPrice, Virtual: l.Virtual})
	}
	return json.Marshal(recs)
}

func decodeLines(raw []byte) ([]entity.OrderLine, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var recs []lineRecord
	if err := json.Unmarshal(raw, &recs); err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, nil
	}
	lines := make([]entity.OrderLine, 0, len(recs))
	for _, r := range recs {
		lines = append(lines, entity.OrderLine{Name: r.Name, Quantity: r.Quantity, UnitPrice: r.UnitPrice, Virtual: r.Virtual})
	}
	return lines, nil
}

// Create inserta la fila. Un pedido con factura emitida viola el índice único parcial.
func (r *InvoiceRepo) Create(ctx context.Context, inv *entity.Invoice) error {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	if inv.Status == "" {
		inv.Status = entity.InvoiceStatusIssued
	}
	lines, err := encodeLines(inv.Lines)
	if err != nil {
		return fmt.Errorf("codificar líneas: %w", err)
	}
	_, err = r.db.Pool.Exec(ctx, qInvoiceInsert,
		inv.ID, inv.OrderRef, int(inv.InvoiceType), inv.PointOfSale, inv.InvoiceNumber, inv.CAE, inv.CAEDueDate,
		nullIfEmpty(inv.BuyerTaxID), nullIfEmpty(inv.BuyerNationalID), nullIfEmpty(inv.BuyerName), int(inv.BuyerTaxStatus),
		inv.NetAmount, inv.VATAmount, inv.TotalAmount, inv.Status, inv.IssuedAt, lines,
	)
	if err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			if constraint == constraintOrderIssued {
				return domain.ErrAlreadyInvoiced
			}
			return fmt.Errorf("%w: afip_invoice %s (%s)", domain.ErrDuplicate, inv.Number(), constraint)
		}
		return fmt.Errorf("insert afip_invoice: %w", err)
	}
	return nil
}

func (r *InvoiceRepo) GetByID(ctx context.Context, id string) (*entity.Invoice, error) {
	inv, err := scanInvoice(r.db.Pool.QueryRow(ctx, qInvoiceByID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get afip_invoice by id: %w", err)
	}
	return inv, nil
}

// GetIssuedByOrderRef devuelve la factura emitida del pedido, o nil, nil.
func (r *InvoiceRepo) GetIssuedByOrderRef(ctx context.Context, orderRef string) (*entity.Invoice, error) {
	inv, err := scanInvoice(r.db.Pool.QueryRow(ctx, qInvoiceIssuedByOrder, orderRef))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get afip_invoice by order: %w", err)
	}
	return inv, nil
}

// WithOrderLock toma un advisory lock transaccional por pedido y ejecuta fn.
// Las consultas de fn usan el pool; el lock vive en la conexión de la transacción.
func (r *InvoiceRepo) WithOrderLock(ctx context.Context, orderRef string, fn func(ctx context.Context) error) error {
	return r.tx.Run(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, qInvoiceOrderLock, "afip_order:"+orderRef); err != nil {
			return fmt.Errorf("advisory lock afip_order: %w", err)
		}
		return fn(ctx)
	})
}

// SetPDFPath anota la ruta del PDF.
func (r *InvoiceRepo) SetPDFPath(ctx context.Context, id, path string) error {
	tag, err := r.db.Pool.Exec(ctx, qInvoiceSetPDF, id, path)
	if err != nil {
		return fmt.Errorf("update afip_invoice pdf_path: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanInvoice(row pgx.Row) (*entity.Invoice, error) {
	var (
		inv         entity.Invoice
		invoiceType int
		taxStatus   int
		lines       []byte
	)
	err := row.Scan(
		&inv.ID, &inv.OrderRef, &invoiceType, &inv.PointOfSale, &inv.InvoiceNumber, &inv.CAE, &inv.CAEDueDate,
		&inv.BuyerTaxID, &inv.BuyerNationalID, &inv.BuyerName, &taxStatus,
		&inv.NetAmount, &inv.VATAmount, &inv.TotalAmount, &inv.Status, &inv.PDFPath, &inv.IssuedAt, &inv.CreatedAt,
		&lines,
	)
	if err != nil {
		return nil, err
	}
	if inv.Lines, err = decodeLines(lines); err != nil {
		return nil, fmt.Errorf("decodificar líneas de %s: %w", inv.ID, err)
	}
	inv.InvoiceType = afip.InvoiceType(invoiceType)
	inv.BuyerTaxStatus = afip.IVACondition(taxStatus)
	return &inv, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
