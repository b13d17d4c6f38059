package afipws

import (
	"context"
	"encoding/xml"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/afip-facturacion/internal/domain/entity"
	"github.com/jhoicas/afip-facturacion/internal/domain/fiscal"
	"github.com/jhoicas/afip-facturacion/pkg/afip"
)

// Códigos WSFE que indican un ticket inválido para el CUIT (token/sign rechazados).
var ticketErrorCodes = map[string]bool{"600": true, "601": true, "602": true}

// InvoicingClient cliente WSFE: numeración + solicitud de CAE de un comprobante.
//
//	tipo → ticket → último autorizado + 1 → FECAESolicitar → validación
//
// La solicitud de CAE no se reintenta: el caller decide si reinvocar,
// previa verificación de que el pedido no tenga ya un comprobante.
type InvoicingClient struct {
	cfg       Config
	auth      TicketProvider
	numbers   *NumberTracker
	transport Transport
	now       func() time.Time
	log       zerolog.Logger
}

// NewInvoicingClient construye el cliente WSFE.
func NewInvoicingClient(cfg Config, auth TicketProvider, numbers *NumberTracker, transport Transport, log zerolog.Logger) *InvoicingClient {
	return &InvoicingClient{
		cfg:       cfg,
		auth:      auth,
		numbers:   numbers,
		transport: transport,
		now:       time.Now,
		log:       log.With().Str("component", "wsfe").Logger(),
	}
}

// WithClock reemplaza el reloj (tests).
func (c *InvoicingClient) WithClock(now func() time.Time) *InvoicingClient {
	c.now = now
	return c
}

// ResolveType tipo de comprobante para la condición IVA del comprador según el régimen configurado.
func (c *InvoicingClient) ResolveType(buyer afip.IVACondition) afip.InvoiceType {
	return fiscal.ResolveInvoiceType(c.cfg.Regime, buyer)
}

// Issue solicita el CAE de un comprobante. Si req.InvoiceType es 0 se resuelve
// por régimen del emisor y condición IVA del comprador.
func (c *InvoicingClient) Issue(ctx context.Context, in *entity.InvoiceRequest) (*entity.InvoiceResult, error) {
	if in == nil {
		return nil, afip.NewInvalidInput("request", "solicitud nula")
	}
	issuedAt := c.now()
	req := *in
	if req.InvoiceType == 0 {
		req.InvoiceType = c.ResolveType(req.BuyerTaxStatus)
	}
	if err := fiscal.ValidateRequest(&req); err != nil {
		return nil, err
	}

	ticket, err := c.auth.GetTicket(ctx)
	if err != nil {
		return nil, afip.WrapAuth(err)
	}

	last, err := c.numbers.LastAuthorized(ctx, ticket, c.cfg.PointOfSale, req.InvoiceType)
	if err != nil {
		c.checkTicketRejection(ctx, err)
		return nil, err
	}
	next := last + 1

	auth, err := authHeader(ticket)
	if err != nil {
		return nil, err
	}
	body := &caeRequest{
		Auth: auth,
		FeCAEReq: feCAERequest{
			FeCabReq: feCabRequest{CantReg: 1, PtoVta: c.cfg.PointOfSale, CbteTipo: int(req.InvoiceType)},
			FeDetReq: feDetRequest{Detail: []caeDetailRequest{buildDetail(&req, next, issuedAt)}},
		},
	}

	logCtx := c.log.With().Str("cuit", ticket.IssuerTaxID).Int64("pto_vta", c.cfg.PointOfSale).
		Int("cbte_tipo", int(req.InvoiceType)).Int64("cbte_nro", next).Logger()

	raw, err := c.transport.Call(ctx, OpRequestCAE, body)
	if err != nil {
		logCtx.Error().Err(err).Msg("FECAESolicitar falló")
		c.checkTicketRejection(ctx, err)
		return nil, err
	}

	det, err := parseCAEResponse(raw)
	if err != nil {
		var e *afip.Error
		if errors.As(err, &e) && e.Kind == afip.KindRejected {
			logCtx.Warn().Str("code", e.Code).Str("obs", e.Message).Msg("CAE rechazado")
			c.checkTicketRejection(ctx, err)
		} else {
			logCtx.Error().Err(err).Str("raw", truncateLog(raw)).Msg("respuesta FECAESolicitar inválida")
		}
		return nil, err
	}

	dueDate, err := time.ParseInLocation("20060102", det.CAEFchVto, afip.ArgentinaTZ)
	if err != nil {
		return nil, afip.NewInvalidResponse("CAEFchVto inválido: "+det.CAEFchVto, raw)
	}
	number := next
	if det.CbteDesde > 0 {
		if det.CbteDesde != next {
			logCtx.Warn().Int64("cbte_desde", det.CbteDesde).Msg("AFIP devolvió un número distinto al solicitado")
		}
		number = det.CbteDesde
	}

	res := &entity.InvoiceResult{
		PointOfSale:   c.cfg.PointOfSale,
		InvoiceNumber: number,
		InvoiceType:   req.InvoiceType,
		CAE:           det.CAE,
		CAEDueDate:    dueDate,
		IssuedAt:      issuedAt,
		TotalAmount:   req.TotalAmount,
	}
	logCtx.Info().Str("cae", res.CAE).Str("numero", res.Number()).Msg("CAE otorgado")
	return res, nil
}

// buildDetail arma el FECAEDetRequest. Importes con dos decimales y punto, sin depender del locale.
func buildDetail(req *entity.InvoiceRequest, number int64, now time.Time) caeDetailRequest {
	docType, docNro := fiscal.BuyerDocument(req)
	today := now.In(afip.ArgentinaTZ).Format("20060102")

	det := caeDetailRequest{
		Concepto:   int(req.Concept),
		DocTipo:    int(docType),
		DocNro:     docNro,
		CbteDesde:  number,
		CbteHasta:  number,
		CbteFch:    today,
		ImpTotal:   req.TotalAmount.StringFixed(2),
		ImpTotConc: "0.00",
		ImpNeto:    req.NetAmount.StringFixed(2),
		ImpOpEx:    "0.00",
		ImpTrib:    "0.00",
		ImpIVA:     req.VATAmount.StringFixed(2),
		MonId:      afip.CurrencyPesos,
		MonCotiz:   "1",
	}
	// Sin período de servicio informado aguas arriba: se usa la fecha del comprobante.
	if req.Concept.IncludesServices() {
		det.FchServDesde = today
		det.FchServHasta = today
		det.FchVtoPago = today
	}
	if req.NetAmount.GreaterThan(decimal.Zero) {
		det.Iva = &ivaBlock{AlicIva: []alicIva{{
			Id:      afip.IVARate21ID,
			BaseImp: req.NetAmount.StringFixed(2),
			Importe: req.VATAmount.StringFixed(2),
		}}}
	}
	return det
}

// parseCAEResponse valida la respuesta de FECAESolicitar y devuelve el detalle aprobado.
func parseCAEResponse(raw []byte) (*caeDetailResponse, error) {
	var resp caeResponse
	if err := xml.Unmarshal(raw, &resp); err != nil {
		return nil, afip.NewInvalidResponse("FECAESolicitar ilegible: "+err.Error(), raw)
	}
	if resp.Result == nil {
		return nil, afip.NewInvalidResponse("FECAESolicitar sin resultado", raw)
	}
	if rej := firstError(resp.Result.Errors); rej != nil {
		return nil, rej
	}
	if len(resp.Result.FeDetResp.Detail) == 0 {
		return nil, afip.NewInvalidResponse("FECAESolicitar sin FECAEDetResponse", raw)
	}
	det := &resp.Result.FeDetResp.Detail[0]
	if det.Resultado != afip.ResultApproved {
		code := det.Resultado
		var msgs []string
		if det.Observaciones != nil {
			for _, o := range det.Observaciones.Obs {
				msgs = append(msgs, strings.TrimSpace(o.Msg))
			}
			if len(det.Observaciones.Obs) > 0 {
				code = det.Observaciones.Obs[0].Code
			}
		}
		msg := strings.Join(msgs, " | ")
		if msg == "" {
			msg = "comprobante rechazado sin observaciones"
		}
		return nil, afip.NewRejected(code, msg)
	}
	if det.CAE == "" {
		return nil, afip.NewInvalidResponse("comprobante aprobado sin CAE", raw)
	}
	return det, nil
}

// checkTicketRejection invalida el ticket si WSFE lo rechazó (600-602).
func (c *InvoicingClient) checkTicketRejection(ctx context.Context, err error) {
	var e *afip.Error
	if !errors.As(err, &e) || e.Kind != afip.KindRejected || !ticketErrorCodes[e.Code] {
		return
	}
	if ierr := c.auth.InvalidateTicket(ctx); ierr != nil {
		c.log.Error().Err(ierr).Msg("no se pudo invalidar el ticket rechazado por WSFE")
	}
}

// ServerStatus estado de los servidores de WSFE (FEDummy, no requiere ticket).
type ServerStatus struct {
	AppServer  string `json:"app_server"`
	DbServer   string `json:"db_server"`
	AuthServer string `json:"auth_server"`
}

// OK indica si los tres servidores responden "OK".
func (s *ServerStatus) OK() bool {
	return s.AppServer == "OK" && s.DbServer == "OK" && s.AuthServer == "OK"
}

// ServerStatus consulta FEDummy.
func (c *InvoicingClient) ServerStatus(ctx context.Context) (*ServerStatus, error) {
	raw, err := c.transport.Call(ctx, OpDummy, &dummyRequest{})
	if err != nil {
		c.log.Error().Err(err).Msg("FEDummy falló")
		return nil, err
	}
	var resp dummyResponse
	if err := xml.Unmarshal(raw, &resp); err != nil {
		return nil, afip.NewInvalidResponse("FEDummy ilegible: "+err.Error(), raw)
	}
	if resp.Result == nil {
		return nil, afip.NewInvalidResponse("FEDummy sin resultado", raw)
	}
	return &ServerStatus{
		AppServer:  resp.Result.AppServer,
		DbServer:   resp.Result.DbServer,
		AuthServer: resp.Result.AuthServer,
	}, nil
}
