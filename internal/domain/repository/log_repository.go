package repository

import (
	"context"

	"github.com/jhoicas/afip-facturacion/internal/domain/entity"
)

// LogRepository persiste el registro operativo de la integración.
type LogRepository interface {
	Insert(ctx context.Context, entry *entity.LogEntry) error
}
