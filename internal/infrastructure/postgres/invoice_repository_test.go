package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/afip-facturacion/internal/domain"
	"github.com/jhoicas/afip-facturacion/internal/domain/entity"
	"github.com/jhoicas/afip-facturacion/internal/infrastructure/postgres"
	"github.com/jhoicas/afip-facturacion/pkg/afip"
)

var invoiceCols = []string{
	"id", "order_ref", "invoice_type", "point_of_sale", "invoice_number", "cae", "cae_due_date",
	"buyer_tax_id", "buyer_national_id", "buyer_name", "buyer_tax_status",
	"net_amount", "vat_amount", "total_amount", "status", "pdf_path", "issued_at", "created_at", "lines",
}

func sampleInvoice() *entity.Invoice {
	issued := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	return &entity.Invoice{
		OrderRef:        "1001",
		InvoiceType:     afip.InvoiceTypeB,
		PointOfSale:     1,
		InvoiceNumber:   42,
		CAE:             "71234567890123",
		CAEDueDate:      issued.AddDate(0, 0, 10),
		BuyerNationalID: "30123456",
		BuyerName:       "Juan Pérez",
		BuyerTaxStatus:  afip.IVAConsumidorFinal,
		NetAmount:       decimal.RequireFromString("100.00"),
		VATAmount:       decimal.RequireFromString("21.00"),
		TotalAmount:     decimal.RequireFromString("121.00"),
		IssuedAt:        issued,
	}
}

func TestInvoiceRepo_Create_AsignaIDYEstado(t *testing.T) {
	db, mock := newDB(t)
	repo := postgres.NewInvoiceRepository(db)
	inv := sampleInvoice()

	mock.ExpectExec(`INSERT INTO afip_invoices`).
		WithArgs(pgxmock.AnyArg(), "1001", 6, int64(1), int64(42), "71234567890123", inv.CAEDueDate,
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), 5,
			inv.NetAmount, inv.VATAmount, inv.TotalAmount, entity.InvoiceStatusIssued, inv.IssuedAt, []byte("[]")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), inv))
	assert.NotEmpty(t, inv.ID)
	assert.Equal(t, entity.InvoiceStatusIssued, inv.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceRepo_Create_DuplicadoDevuelveErrAlreadyInvoiced(t *testing.T) {
	db, mock := newDB(t)
	repo := postgres.NewInvoiceRepository(db)

	anyArgs := make([]any, 17)
	for i := range anyArgs {
		anyArgs[i] = pgxmock.AnyArg()
	}
	mock.ExpectExec(`INSERT INTO afip_invoices`).
		WithArgs(anyArgs...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "afip_invoices_order_issued_uidx"})

	err := repo.Create(context.Background(), sampleInvoice())
	assert.ErrorIs(t, err, domain.ErrAlreadyInvoiced)
}

func TestInvoiceRepo_Create_NumeroDuplicadoNoEsPedidoFacturado(t *testing.T) {
	db, mock := newDB(t)
	repo := postgres.NewInvoiceRepository(db)

	anyArgs := make([]any, 17)
	for i := range anyArgs {
		anyArgs[i] = pgxmock.AnyArg()
	}
	mock.ExpectExec(`INSERT INTO afip_invoices`).
		WithArgs(anyArgs...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "afip_invoices_number_uidx"})

	err := repo.Create(context.Background(), sampleInvoice())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDuplicate)
	assert.NotErrorIs(t, err, domain.ErrAlreadyInvoiced)
	assert.Contains(t, err.Error(), "afip_invoices_number_uidx")
}

func TestInvoiceRepo_GetIssuedByOrderRef(t *testing.T) {
	db, mock := newDB(t)
	repo := postgres.NewInvoiceRepository(db)
	inv := sampleInvoice()

	mock.ExpectQuery(`FROM afip_invoices WHERE order_ref = \$1 AND status = 'emitida'`).
		WithArgs("1001").
		WillReturnRows(pgxmock.NewRows(invoiceCols).AddRow(
			"c0ffee", "1001", 6, int64(1), int64(42), "71234567890123", inv.CAEDueDate,
			"", "30123456", "Juan Pérez", 5,
			inv.NetAmount, inv.VATAmount, inv.TotalAmount, "emitida", "/tmp/f.pdf", inv.IssuedAt, inv.IssuedAt,
			[]byte(`[{"name":"Remera","quantity":"2","unit_price":"60.5","virtual":false}]`),
		))

	got, err := repo.GetIssuedByOrderRef(context.Background(), "1001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "c0ffee", got.ID)
	assert.Equal(t, afip.InvoiceTypeB, got.InvoiceType)
	assert.Equal(t, afip.IVAConsumidorFinal, got.BuyerTaxStatus)
	assert.Equal(t, "00001-00000042", got.Number())
	assert.True(t, got.TotalAmount.Equal(decimal.RequireFromString("121")))
	assert.Equal(t, "/tmp/f.pdf", got.PDFPath)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, "Remera", got.Lines[0].Name)
	assert.True(t, got.Lines[0].Quantity.Equal(decimal.NewFromInt(2)))
	assert.True(t, got.Lines[0].UnitPrice.Equal(decimal.RequireFromString("60.50")))
}

func TestInvoiceRepo_Create_GuardaLineas(t *testing.T) {
	db, mock := newDB(t)
	repo := postgres.NewInvoiceRepository(db)
	inv := sampleInvoice()
	inv.Lines = []entity.OrderLine{
		{Name: "Curso", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.RequireFromString("121"), Virtual: true},
	}

	args := make([]any, 17)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	args[16] = []byte(`[{"name":"Curso","quantity":"1","unit_price":"121","virtual":true}]`)
	mock.ExpectExec(`INSERT INTO afip_invoices`).
		WithArgs(args...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), inv))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceRepo_WithOrderLock(t *testing.T) {
	db, mock := newDB(t)
	repo := postgres.NewInvoiceRepository(db)

	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectExec(`SELECT pg_advisory_xact_lock\(hashtext\(\$1\)\)`).
		WithArgs("afip_order:1001").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectCommit()

	calls := 0
	err := repo.WithOrderLock(context.Background(), "1001", func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceRepo_WithOrderLock_ErrorDeFnHaceRollback(t *testing.T) {
	db, mock := newDB(t)
	repo := postgres.NewInvoiceRepository(db)
	boom := errors.New("afip caído")

	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectExec(`pg_advisory_xact_lock`).
		WithArgs("afip_order:1001").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectRollback()

	err := repo.WithOrderLock(context.Background(), "1001", func(ctx context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceRepo_GetByID_NoExiste(t *testing.T) {
	db, mock := newDB(t)
	repo := postgres.NewInvoiceRepository(db)

	mock.ExpectQuery(`FROM afip_invoices WHERE id = \$1`).WithArgs("nope").WillReturnError(pgx.ErrNoRows)

	got, err := repo.GetByID(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestInvoiceRepo_SetPDFPath(t *testing.T) {
	db, mock := newDB(t)
	repo := postgres.NewInvoiceRepository(db)

	mock.ExpectExec(`UPDATE afip_invoices SET pdf_path = \$2 WHERE id = \$1`).
		WithArgs("c0ffee", "/pdf/a.pdf").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE afip_invoices SET pdf_path`).
		WithArgs("nope", "/pdf/b.pdf").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, repo.SetPDFPath(context.Background(), "c0ffee", "/pdf/a.pdf"))
	assert.ErrorIs(t, repo.SetPDFPath(context.Background(), "nope", "/pdf/b.pdf"), domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogRepo_Insert(t *testing.T) {
	db, mock := newDB(t)
	repo := postgres.NewLogRepository(db)
	now := time.Now()

	mock.ExpectExec(`INSERT INTO afip_log`).
		WithArgs("error", "CAE rechazado", pgxmock.AnyArg(), []byte(`{"code":"10016"}`), now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.Insert(context.Background(), &entity.LogEntry{
		Level: "error", Message: "CAE rechazado", OrderRef: "1001", Data: []byte(`{"code":"10016"}`), CreatedAt: now,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
