package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/afip-facturacion/internal/application/afipws"
	"github.com/jhoicas/afip-facturacion/internal/application/dto"
)

// StatusChecker consulta el estado de WSFE.
type StatusChecker interface {
	ServerStatus(ctx context.Context) (*afipws.ServerStatus, error)
}

// AFIPInfo datos estáticos del emisor que acompañan al estado.
type AFIPInfo struct {
	Environment string
	IssuerTaxID string
	PointOfSale int64
	CertExpires time.Time
}

// AFIPHandler expone el estado de los servidores de AFIP.
type AFIPHandler struct {
	checker StatusChecker
	info    AFIPInfo
}

// NewAFIPHandler construye el handler.
func NewAFIPHandler(checker StatusChecker, info AFIPInfo) *AFIPHandler {
	return &AFIPHandler{checker: checker, info: info}
}

// Status godoc
// @Summary      Estado de AFIP
// @Description  Consulta FEDummy y agrega los datos del emisor configurado.
// @Tags         afip
// @Produce      json
// @Success      200  {object}  dto.AFIPStatusResponse
// @Failure      503  {object}  dto.ErrorResponse
// @Security     BearerAuth
// @Router       /api/afip/status [get]
func (h *AFIPHandler) Status(c *fiber.Ctx) error {
	st, err := h.checker.ServerStatus(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.AFIPStatusResponse{
		OK:          st.OK(),
		AppServer:   st.AppServer,
		DbServer:    st.DbServer,
		AuthServer:  st.AuthServer,
		Environment: h.info.Environment,
		IssuerTaxID: h.info.IssuerTaxID,
		PointOfSale: h.info.PointOfSale,
		CertExpires: h.info.CertExpires,
	})
}
