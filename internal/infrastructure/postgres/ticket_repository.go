package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/afip-facturacion/internal/domain/entity"
	"github.com/jhoicas/afip-facturacion/internal/domain/repository"
)

var _ repository.TicketRepository = (*TicketRepo)(nil)

// TicketRepo tickets WSAA en afip_tickets (una fila por CUIT).
type TicketRepo struct {
	db *DB
	tx *TxRunner
}

// NewTicketRepository construye el repositorio.
func NewTicketRepository(db *DB) *TicketRepo {
	return &TicketRepo{db: db, tx: NewTxRunner(db)}
}

const (
	qTicketGet = `SELECT cuit, service, token, sign, expires_at, created_at FROM afip_tickets WHERE cuit = $1 AND expires_at > now()`

	qTicketUpsert = `INSERT INTO afip_tickets (cuit, service, token, sign, expires_at, created_at) VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (cuit) DO UPDATE SET service = EXCLUDED.service, token = EXCLUDED.token, sign = EXCLUDED.sign,
expires_at = EXCLUDED.expires_at, created_at = EXCLUDED.created_at`

	qTicketDelete = `DELETE FROM afip_tickets WHERE cuit = $1`

	// El lock se libera solo al terminar la transacción.
	qTicketMintLock = `SELECT pg_advisory_xact_lock(hashtext($1))`
)

// Get devuelve el ticket vigente o nil, nil.
func (r *TicketRepo) Get(ctx context.Context, cuit string) (*entity.AuthTicket, error) {
	var t entity.AuthTicket
	err := r.db.Pool.QueryRow(ctx, qTicketGet, cuit).
		Scan(&t.IssuerTaxID, &t.Service, &t.Token, &t.Sign, &t.ExpiresAt, &t.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get afip_ticket: %w", err)
	}
	return &t, nil
}

// Put hace upsert por CUIT: reemplaza, nunca agrega.
func (r *TicketRepo) Put(ctx context.Context, t *entity.AuthTicket) error {
	_, err := r.db.Pool.Exec(ctx, qTicketUpsert, t.IssuerTaxID, t.Service, t.Token, t.Sign, t.ExpiresAt, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert afip_ticket: %w", err)
	}
	return nil
}

// Invalidate borra el ticket del CUIT.
func (r *TicketRepo) Invalidate(ctx context.Context, cuit string) error {
	if _, err := r.db.Pool.Exec(ctx, qTicketDelete, cuit); err != nil {
		return fmt.Errorf("delete afip_ticket: %w", err)
	}
	return nil
}

// WithMintLock toma un advisory lock transaccional por CUIT y ejecuta fn.
// Otro proceso que pida el mismo lock espera hasta el commit.
func (r *TicketRepo) WithMintLock(ctx context.Context, cuit string, fn func(ctx context.Context) error) error {
	return r.tx.Run(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, qTicketMintLock, "afip_ticket:"+cuit); err != nil {
			return fmt.Errorf("advisory lock afip_ticket: %w", err)
		}
		return fn(ctx)
	})
}
