package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/afip-facturacion/internal/application/dto"
	"github.com/jhoicas/afip-facturacion/internal/domain"
	"github.com/jhoicas/afip-facturacion/pkg/afip"
)

// respondError traduce errores de dominio y de AFIP a status HTTP.
// Errores AFIP: input 400, rejected 422, credentials 500, unavailable 503.
func respondError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "recurso no encontrado"})
	case errors.Is(err, domain.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	case errors.Is(err, domain.ErrAlreadyInvoiced):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "ALREADY_INVOICED", Message: err.Error()})
	case errors.Is(err, domain.ErrDuplicate):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "DUPLICATE", Message: err.Error()})
	}

	switch afip.Category(err) {
	case afip.CategoryInput:
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "AFIP_INPUT", Message: afip.UserMessage(err)})
	case afip.CategoryRejected:
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "AFIP_REJECTED", Message: afip.UserMessage(err)})
	case afip.CategoryCredentials:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "AFIP_CREDENTIALS", Message: afip.UserMessage(err)})
	case afip.CategoryUnavailable:
		return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{Code: "AFIP_UNAVAILABLE", Message: afip.UserMessage(err)})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "error interno"})
}
