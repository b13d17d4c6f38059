package afipws

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/afip-facturacion/internal/domain/entity"
	"github.com/jhoicas/afip-facturacion/internal/domain/repository"
)

// TicketCache caché persistente de tickets WSAA por CUIT. Nunca entrega un ticket
// vencido: además del filtro del almacén, compara contra su propio reloj.
type TicketCache struct {
	repo repository.TicketRepository
	now  func() time.Time
	log  zerolog.Logger
}

// NewTicketCache construye la caché sobre el almacén dado (Postgres o Redis).
func NewTicketCache(repo repository.TicketRepository, log zerolog.Logger) *TicketCache {
	return &TicketCache{repo: repo, now: time.Now, log: log}
}

// WithClock reemplaza el reloj (tests).
func (c *TicketCache) WithClock(now func() time.Time) *TicketCache {
	c.now = now
	return c
}

// Get devuelve el ticket del CUIT solo si su vencimiento es estrictamente posterior a ahora.
func (c *TicketCache) Get(ctx context.Context, issuerTaxID string) (*entity.AuthTicket, error) {
	t, err := c.repo.Get(ctx, issuerTaxID)
	if err != nil {
		return nil, fmt.Errorf("ticket cache: get %s: %w", issuerTaxID, err)
	}
	if t == nil {
		return nil, nil
	}
	if !t.ValidAt(c.now()) {
		c.log.Debug().Str("cuit", issuerTaxID).Time("expires_at", t.ExpiresAt).Msg("ticket WSAA vencido en caché")
		return nil, nil
	}
	return t, nil
}

// Put reemplaza el ticket del CUIT.
func (c *TicketCache) Put(ctx context.Context, t *entity.AuthTicket) error {
	if err := c.repo.Put(ctx, t); err != nil {
		return fmt.Errorf("ticket cache: put %s: %w", t.IssuerTaxID, err)
	}
	return nil
}

// Invalidate elimina el ticket del CUIT.
func (c *TicketCache) Invalidate(ctx context.Context, issuerTaxID string) error {
	if err := c.repo.Invalidate(ctx, issuerTaxID); err != nil {
		return fmt.Errorf("ticket cache: invalidate %s: %w", issuerTaxID, err)
	}
	c.log.Info().Str("cuit", issuerTaxID).Msg("ticket WSAA invalidado")
	return nil
}

// WithMintLock serializa la emisión de tickets del CUIT entre procesos.
func (c *TicketCache) WithMintLock(ctx context.Context, issuerTaxID string, fn func(ctx context.Context) error) error {
	return c.repo.WithMintLock(ctx, issuerTaxID, fn)
}
