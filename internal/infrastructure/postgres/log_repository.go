package postgres

import (
	"context"
	"fmt"

	"github.com/jhoicas/afip-facturacion/internal/domain/entity"
	"github.com/jhoicas/afip-facturacion/internal/domain/repository"
)

var _ repository.LogRepository = (*LogRepo)(nil)

// LogRepo registro operativo en afip_log.
type LogRepo struct {
	db *DB
}

// NewLogRepository construye el repositorio.
func NewLogRepository(db *DB) *LogRepo {
	return &LogRepo{db: db}
}

const qLogInsert = `INSERT INTO afip_log (level, message, order_ref, data, created_at) VALUES ($1, $2, $3, $4, $5)`

func (r *LogRepo) Insert(ctx context.Context, e *entity.LogEntry) error {
	_, err := r.db.Pool.Exec(ctx, qLogInsert, e.Level, e.Message, nullIfEmpty(e.OrderRef), e.Data, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert afip_log: %w", err)
	}
	return nil
}
