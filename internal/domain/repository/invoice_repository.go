package repository

import (
	"context"

	"github.com/jhoicas/afip-facturacion/internal/domain/entity"
)

// InvoiceRepository define el puerto del libro de facturas (append-only).
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *entity.Invoice) error
	GetByID(ctx context.Context, id string) (*entity.Invoice, error)

	// GetIssuedByOrderRef devuelve la factura emitida del pedido, o nil si no tiene.
	// Es la consulta previa obligatoria a cada emisión para no duplicar comprobantes.
	GetIssuedByOrderRef(ctx context.Context, orderRef string) (*entity.Invoice, error)

	// WithOrderLock ejecuta fn con el lock del pedido tomado: la consulta previa y
	// la emisión de un mismo pedido no corren en paralelo entre procesos.
	WithOrderLock(ctx context.Context, orderRef string, fn func(ctx context.Context) error) error

	// SetPDFPath anota la ruta del PDF; los campos fiscales no se modifican nunca.
	SetPDFPath(ctx context.Context, id, path string) error
}
