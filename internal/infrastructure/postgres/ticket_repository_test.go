package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/afip-facturacion/internal/domain/entity"
	"github.com/jhoicas/afip-facturacion/internal/infrastructure/postgres"
)

func newDB(t *testing.T) (*postgres.DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &postgres.DB{Pool: mock}, mock
}

func TestTicketRepo_Get_Vigente(t *testing.T) {
	db, mock := newDB(t)
	repo := postgres.NewTicketRepository(db)
	exp := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	created := exp.Add(-12 * time.Hour)

	mock.ExpectQuery(`SELECT cuit, service, token, sign, expires_at, created_at FROM afip_tickets WHERE cuit = \$1 AND expires_at > now\(\)`).
		WithArgs("20111111112").
		WillReturnRows(pgxmock.NewRows([]string{"cuit", "service", "token", "sign", "expires_at", "created_at"}).
			AddRow("20111111112", "wsfe", "TOKEN", "SIGN", exp, created))

	tk, err := repo.Get(context.Background(), "20111111112")
	require.NoError(t, err)
	require.NotNil(t, tk)
	assert.Equal(t, "TOKEN", tk.Token)
	assert.Equal(t, "SIGN", tk.Sign)
	assert.Equal(t, exp, tk.ExpiresAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketRepo_Get_SinFilaDevuelveNil(t *testing.T) {
	db, mock := newDB(t)
	repo := postgres.NewTicketRepository(db)

	mock.ExpectQuery(`FROM afip_tickets`).WithArgs("20111111112").WillReturnError(pgx.ErrNoRows)

	tk, err := repo.Get(context.Background(), "20111111112")
	require.NoError(t, err)
	assert.Nil(t, tk)
}

func TestTicketRepo_Put_Upsert(t *testing.T) {
	db, mock := newDB(t)
	repo := postgres.NewTicketRepository(db)
	tk := &entity.AuthTicket{
		IssuerTaxID: "20111111112", Service: "wsfe", Token: "T", Sign: "S",
		ExpiresAt: time.Now().Add(time.Hour), CreatedAt: time.Now(),
	}

	mock.ExpectExec(`INSERT INTO afip_tickets .* ON CONFLICT \(cuit\) DO UPDATE`).
		WithArgs(tk.IssuerTaxID, tk.Service, tk.Token, tk.Sign, tk.ExpiresAt, tk.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Put(context.Background(), tk))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketRepo_Invalidate(t *testing.T) {
	db, mock := newDB(t)
	repo := postgres.NewTicketRepository(db)

	mock.ExpectExec(`DELETE FROM afip_tickets WHERE cuit = \$1`).
		WithArgs("20111111112").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, repo.Invalidate(context.Background(), "20111111112"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketRepo_WithMintLock_Commit(t *testing.T) {
	db, mock := newDB(t)
	repo := postgres.NewTicketRepository(db)

	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectExec(`SELECT pg_advisory_xact_lock\(hashtext\(\$1\)\)`).
		WithArgs("afip_ticket:20111111112").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectCommit()

	called := false
	err := repo.WithMintLock(context.Background(), "20111111112", func(ctx context.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTicketRepo_WithMintLock_ErrorHaceRollback(t *testing.T) {
	db, mock := newDB(t)
	repo := postgres.NewTicketRepository(db)
	boom := errors.New("boom")

	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectExec(`pg_advisory_xact_lock`).
		WithArgs("afip_ticket:20111111112").
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectRollback()

	err := repo.WithMintLock(context.Background(), "20111111112", func(ctx context.Context) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}
