package repository

import (
	"context"

	"github.com/jhoicas/afip-facturacion/internal/domain/entity"
)

// TicketRepository define el puerto de persistencia de tickets WSAA (uno por CUIT).
type TicketRepository interface {
	// Get devuelve el ticket vigente del CUIT o nil si no hay uno sin vencer.
	Get(ctx context.Context, issuerTaxID string) (*entity.AuthTicket, error)
	// Put reemplaza el ticket del CUIT (upsert, nunca agrega filas).
	Put(ctx context.Context, ticket *entity.AuthTicket) error
	Invalidate(ctx context.Context, issuerTaxID string) error

	// WithMintLock ejecuta fn con el lock de emisión del CUIT tomado, de modo que
	// un solo proceso firma y persiste un ticket nuevo a la vez.
	WithMintLock(ctx context.Context, issuerTaxID string, fn func(ctx context.Context) error) error
}
