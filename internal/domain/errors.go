package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	// ErrDuplicate el número de comprobante ya figura en el libro.
	ErrDuplicate = errors.New("comprobante duplicado")
	// ErrAlreadyInvoiced el pedido ya tiene un comprobante emitido con CAE.
	ErrAlreadyInvoiced = errors.New("el pedido ya tiene una factura emitida")
)
