package afipws

import (
	"context"
	"encoding/xml"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/jhoicas/afip-facturacion/internal/domain/entity"
	"github.com/jhoicas/afip-facturacion/pkg/afip"
)

// NumberTracker consulta en WSFE el último comprobante autorizado.
// No guarda nada localmente: AFIP es la única fuente de la numeración.
type NumberTracker struct {
	transport Transport
	log       zerolog.Logger
}

// NewNumberTracker construye el consultor de numeración.
func NewNumberTracker(transport Transport, log zerolog.Logger) *NumberTracker {
	return &NumberTracker{transport: transport, log: log.With().Str("component", "wsfe").Logger()}
}

// LastAuthorized devuelve el último número con CAE para (punto de venta, tipo).
// El próximo número es siempre LastAuthorized + 1.
func (n *NumberTracker) LastAuthorized(ctx context.Context, ticket *entity.AuthTicket, pointOfSale int64, invoiceType afip.InvoiceType) (int64, error) {
	auth, err := authHeader(ticket)
	if err != nil {
		return 0, err
	}
	raw, err := n.transport.Call(ctx, OpLastAuthorized, &lastAuthorizedRequest{
		Auth:     auth,
		PtoVta:   pointOfSale,
		CbteTipo: int(invoiceType),
	})
	if err != nil {
		n.log.Error().Err(err).Str("cuit", ticket.IssuerTaxID).Int64("pto_vta", pointOfSale).
			Int("cbte_tipo", int(invoiceType)).Msg("FECompUltimoAutorizado falló")
		return 0, err
	}

	var resp lastAuthorizedResponse
	if err := xml.Unmarshal(raw, &resp); err != nil {
		return 0, afip.NewInvalidResponse("FECompUltimoAutorizado ilegible: "+err.Error(), raw)
	}
	if resp.Result == nil {
		return 0, afip.NewInvalidResponse("FECompUltimoAutorizado sin resultado", raw)
	}
	if rej := firstError(resp.Result.Errors); rej != nil {
		n.log.Warn().Str("cuit", ticket.IssuerTaxID).Str("code", rej.Code).Msg(rej.Message)
		return 0, rej
	}
	if resp.Result.CbteNro == nil {
		return 0, afip.NewInvalidResponse("FECompUltimoAutorizado sin CbteNro", raw)
	}
	return *resp.Result.CbteNro, nil
}

// authHeader arma el bloque Auth de WSFE a partir del ticket.
func authHeader(t *entity.AuthTicket) (feAuth, error) {
	cuit, err := strconv.ParseInt(t.IssuerTaxID, 10, 64)
	if err != nil {
		return feAuth{}, afip.NewInvalidInput("cuit", "CUIT del emisor no numérico")
	}
	return feAuth{Token: t.Token, Sign: t.Sign, Cuit: cuit}, nil
}

// firstError convierte el primer Err de la lista en un rechazo.
func firstError(errs *feErrors) *afip.Error {
	if errs == nil || len(errs.Err) == 0 {
		return nil
	}
	e := errs.Err[0]
	return afip.NewRejected(e.Code, e.Msg)
}
