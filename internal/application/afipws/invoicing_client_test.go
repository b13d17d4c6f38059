package afipws_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/afip-facturacion/internal/application/afipws"
	"github.com/jhoicas/afip-facturacion/internal/domain/entity"
	"github.com/jhoicas/afip-facturacion/pkg/afip"
)

type invoicingFixture struct {
	*authFixture
	client *afipws.InvoicingClient
}

func newInvoicingFixture(t *testing.T, regime afip.Regime) *invoicingFixture {
	t.Helper()
	now := time.Date(2026, 10, 19, 13, 30, 0, 0, time.UTC) // 10:30 en Argentina
	af := newAuthFixture(now)

	// Caché caliente: las pruebas de WSFE no deben escribir tickets.
	require.NoError(t, af.repo.Put(context.Background(), &entity.AuthTicket{
		IssuerTaxID: issuerCUIT, Service: afipws.ServiceWSFE,
		Token: "tok", Sign: "sig", ExpiresAt: now.Add(6 * time.Hour),
	}))
	af.repo.puts.Store(0)

	cfg := afipws.Config{Regime: regime, PointOfSale: 1}
	numbers := afipws.NewNumberTracker(af.transport, zerolog.Nop())
	client := afipws.NewInvoicingClient(cfg, af.client, numbers, af.transport, zerolog.Nop()).
		WithClock(func() time.Time { return now })
	return &invoicingFixture{authFixture: af, client: client}
}

func consumerRequest() *entity.InvoiceRequest {
	return &entity.InvoiceRequest{
		Concept:        afip.ConceptProducts,
		BuyerTaxStatus: afip.IVAConsumidorFinal,
		NetAmount:      decimal.RequireFromString("100"),
		VATAmount:      decimal.RequireFromString("21"),
		TotalAmount:    decimal.RequireFromString("121"),
	}
}

func TestIssue_SiguienteNumero(t *testing.T) {
	f := newInvoicingFixture(t, afip.RegimeResponsableInscripto)
	f.transport.responses[afipws.OpLastAuthorized] = lastAuthorizedXML(41)
	f.transport.responses[afipws.OpRequestCAE] = approvedCAEXML(42)

	res, err := f.client.Issue(context.Background(), consumerRequest())
	require.NoError(t, err)

	assert.Equal(t, int64(42), res.InvoiceNumber)
	assert.Equal(t, "00001-00000042", res.Number())
	assert.Equal(t, afip.InvoiceTypeB, res.InvoiceType)
	assert.Equal(t, "76423456789012", res.CAE)
	assert.Equal(t, "2026-10-29", res.CAEDueDate.Format("2006-01-02"))
	assert.True(t, res.IssuedAt.Equal(time.Date(2026, 10, 19, 13, 30, 0, 0, time.UTC)))

	body := f.transport.body(afipws.OpRequestCAE)
	assert.Contains(t, body, "<CbteDesde>42</CbteDesde><CbteHasta>42</CbteHasta>")
	assert.Contains(t, body, "<FeCabReq><CantReg>1</CantReg><PtoVta>1</PtoVta><CbteTipo>6</CbteTipo></FeCabReq>")
	assert.Equal(t, []string{afipws.OpLastAuthorized, afipws.OpRequestCAE}, f.transport.callList())
}

func TestIssue_ImportesConDosDecimales(t *testing.T) {
	f := newInvoicingFixture(t, afip.RegimeResponsableInscripto)
	f.transport.responses[afipws.OpLastAuthorized] = lastAuthorizedXML(0)
	f.transport.responses[afipws.OpRequestCAE] = approvedCAEXML(1)

	_, err := f.client.Issue(context.Background(), consumerRequest())
	require.NoError(t, err)

	body := f.transport.body(afipws.OpRequestCAE)
	assert.Contains(t, body, "<ImpTotal>121.00</ImpTotal>")
	assert.Contains(t, body, "<ImpNeto>100.00</ImpNeto>")
	assert.Contains(t, body, "<ImpIVA>21.00</ImpIVA>")
	assert.Contains(t, body, "<ImpTotConc>0.00</ImpTotConc>")
	assert.Contains(t, body, "<Iva><AlicIva><Id>5</Id><BaseImp>100.00</BaseImp><Importe>21.00</Importe></AlicIva></Iva>")
	assert.Contains(t, body, "<MonId>PES</MonId><MonCotiz>1</MonCotiz>")
	assert.Contains(t, body, "<DocTipo>99</DocTipo><DocNro>0</DocNro>")
	assert.Contains(t, body, "<CbteFch>20261019</CbteFch>")
	assert.NotContains(t, body, "FchServDesde", "productos no llevan período de servicio")
	assert.Contains(t, body, `xmlns="http://ar.gov.afip.dif.FEV1/"`)
	assert.Contains(t, body, "<Token>tok</Token><Sign>sig</Sign><Cuit>20123456786</Cuit>")
}

func TestIssue_ServiciosLlevanFechas(t *testing.T) {
	f := newInvoicingFixture(t, afip.RegimeMonotributo)
	f.transport.responses[afipws.OpLastAuthorized] = lastAuthorizedXML(9)
	f.transport.responses[afipws.OpRequestCAE] = approvedCAEXML(10)

	req := consumerRequest()
	req.Concept = afip.ConceptServices
	req.BuyerNationalID = "30.123.456"
	res, err := f.client.Issue(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, afip.InvoiceTypeC, res.InvoiceType)

	body := f.transport.body(afipws.OpRequestCAE)
	assert.Contains(t, body, "<FchServDesde>20261019</FchServDesde><FchServHasta>20261019</FchServHasta><FchVtoPago>20261019</FchVtoPago>")
	assert.Contains(t, body, "<DocTipo>96</DocTipo><DocNro>30123456</DocNro>")
	assert.Equal(t, "30.123.456", req.BuyerNationalID, "no modifica la solicitud del caller")
}

func TestIssue_SinNetoNoEnviaIva(t *testing.T) {
	f := newInvoicingFixture(t, afip.RegimeMonotributo)
	f.transport.responses[afipws.OpLastAuthorized] = lastAuthorizedXML(0)
	f.transport.responses[afipws.OpRequestCAE] = approvedCAEXML(1)

	req := consumerRequest()
	req.NetAmount = decimal.Zero
	req.VATAmount = decimal.Zero
	_, err := f.client.Issue(context.Background(), req)
	require.NoError(t, err)
	assert.NotContains(t, f.transport.body(afipws.OpRequestCAE), "<Iva>")
}

func TestIssue_FacturaAConCUIT(t *testing.T) {
	f := newInvoicingFixture(t, afip.RegimeResponsableInscripto)
	f.transport.responses[afipws.OpLastAuthorized] = lastAuthorizedXML(3)
	f.transport.responses[afipws.OpRequestCAE] = approvedCAEXML(4)

	req := consumerRequest()
	req.BuyerTaxStatus = afip.IVAResponsableInscripto
	req.BuyerTaxID = "30-50001091-2"
	res, err := f.client.Issue(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, afip.InvoiceTypeA, res.InvoiceType)
	assert.Contains(t, f.transport.body(afipws.OpRequestCAE), "<DocTipo>80</DocTipo><DocNro>30500010912</DocNro>")
}

func TestIssue_ErroresGlobalesSonRechazoSinEscribirCache(t *testing.T) {
	f := newInvoicingFixture(t, afip.RegimeResponsableInscripto)
	f.transport.responses[afipws.OpLastAuthorized] = lastAuthorizedXML(41)
	f.transport.responses[afipws.OpRequestCAE] = `<FECAESolicitarResponse xmlns="http://ar.gov.afip.dif.FEV1/">
  <FECAESolicitarResult>
    <Errors>
      <Err><Code>10016</Code><Msg>El numero o fecha del comprobante no se corresponde con el proximo a autorizar.</Msg></Err>
      <Err><Code>10015</Code><Msg>otro</Msg></Err>
    </Errors>
  </FECAESolicitarResult>
</FECAESolicitarResponse>`

	_, err := f.client.Issue(context.Background(), consumerRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, afip.ErrRejected)

	var e *afip.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, "10016", e.Code)
	assert.Contains(t, e.Message, "proximo a autorizar")
	assert.Equal(t, afip.CategoryRejected, afip.Category(err))

	assert.Zero(t, f.repo.puts.Load())
	assert.Zero(t, f.repo.deletes.Load())
	assert.Zero(t, f.transport.logins.Load())
}

func TestIssue_ResultadoRechazadoUneObservaciones(t *testing.T) {
	f := newInvoicingFixture(t, afip.RegimeResponsableInscripto)
	f.transport.responses[afipws.OpLastAuthorized] = lastAuthorizedXML(41)
	f.transport.responses[afipws.OpRequestCAE] = `<FECAESolicitarResponse xmlns="http://ar.gov.afip.dif.FEV1/">
  <FECAESolicitarResult>
    <FeCabResp><Resultado>R</Resultado></FeCabResp>
    <FeDetResp><FECAEDetResponse>
      <CbteDesde>42</CbteDesde><CbteHasta>42</CbteHasta><Resultado>R</Resultado><CAE></CAE><CAEFchVto></CAEFchVto>
      <Observaciones>
        <Obs><Code>10048</Code><Msg>El campo ImpTotal no coincide</Msg></Obs>
        <Obs><Code>10051</Code><Msg>Alicuota invalida</Msg></Obs>
      </Observaciones>
    </FECAEDetResponse></FeDetResp>
  </FECAESolicitarResult>
</FECAESolicitarResponse>`

	_, err := f.client.Issue(context.Background(), consumerRequest())
	var e *afip.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, afip.KindRejected, e.Kind)
	assert.Equal(t, "10048", e.Code)
	assert.Equal(t, "El campo ImpTotal no coincide | Alicuota invalida", e.Message)
}

func TestIssue_TicketRechazadoSeInvalida(t *testing.T) {
	f := newInvoicingFixture(t, afip.RegimeResponsableInscripto)
	f.transport.responses[afipws.OpLastAuthorized] = `<FECompUltimoAutorizadoResponse xmlns="http://ar.gov.afip.dif.FEV1/">
  <FECompUltimoAutorizadoResult><PtoVta>1</PtoVta><CbteTipo>6</CbteTipo><CbteNro>0</CbteNro>
    <Errors><Err><Code>600</Code><Msg>ValidacionDeToken: No validaron las firmas digitales</Msg></Err></Errors>
  </FECompUltimoAutorizadoResult>
</FECompUltimoAutorizadoResponse>`

	_, err := f.client.Issue(context.Background(), consumerRequest())
	assert.ErrorIs(t, err, afip.ErrRejected)
	assert.Equal(t, int32(1), f.repo.deletes.Load())
	assert.Equal(t, []string{afipws.OpLastAuthorized}, f.transport.callList(), "no se solicita CAE sin número")
}

func TestIssue_ErrorDeTicketEsAuth(t *testing.T) {
	f := newInvoicingFixture(t, afip.RegimeResponsableInscripto)
	require.NoError(t, f.repo.Invalidate(context.Background(), issuerCUIT))
	f.transport.loginErr = afip.NewTransport("wsaa", errors.New("connection reset"))

	_, err := f.client.Issue(context.Background(), consumerRequest())
	assert.Equal(t, afip.KindAuth, afip.KindOf(err))
	assert.ErrorIs(t, err, afip.ErrTransport, "conserva la causa")
	assert.Equal(t, afip.CategoryUnavailable, afip.Category(err))
	assert.Empty(t, f.transport.callList())
}

func TestIssue_EntradaInvalidaSinRed(t *testing.T) {
	f := newInvoicingFixture(t, afip.RegimeResponsableInscripto)

	req := consumerRequest()
	req.BuyerTaxID = "20123456780"
	_, err := f.client.Issue(context.Background(), req)
	assert.ErrorIs(t, err, afip.ErrInvalidInput)
	assert.Empty(t, f.transport.callList())
	assert.Zero(t, f.transport.logins.Load())
}

func TestIssue_TransporteFallaEnCAE(t *testing.T) {
	f := newInvoicingFixture(t, afip.RegimeResponsableInscripto)
	f.transport.responses[afipws.OpLastAuthorized] = lastAuthorizedXML(41)
	f.transport.errs[afipws.OpRequestCAE] = afip.NewTransport("wsfe", context.DeadlineExceeded)

	_, err := f.client.Issue(context.Background(), consumerRequest())
	assert.ErrorIs(t, err, afip.ErrTransport)
	assert.Equal(t, []string{afipws.OpLastAuthorized, afipws.OpRequestCAE}, f.transport.callList(), "sin reintentos")
}

func TestIssue_AprobadoSinCAEEsRespuestaInvalida(t *testing.T) {
	f := newInvoicingFixture(t, afip.RegimeResponsableInscripto)
	f.transport.responses[afipws.OpLastAuthorized] = lastAuthorizedXML(41)
	f.transport.responses[afipws.OpRequestCAE] = `<FECAESolicitarResponse><FECAESolicitarResult>
  <FeDetResp><FECAEDetResponse><Resultado>A</Resultado></FECAEDetResponse></FeDetResp>
</FECAESolicitarResult></FECAESolicitarResponse>`

	_, err := f.client.Issue(context.Background(), consumerRequest())
	assert.ErrorIs(t, err, afip.ErrInvalidResponse)
}

func TestServerStatus(t *testing.T) {
	f := newInvoicingFixture(t, afip.RegimeMonotributo)
	f.transport.responses[afipws.OpDummy] = `<FEDummyResponse xmlns="http://ar.gov.afip.dif.FEV1/">
  <FEDummyResult><AppServer>OK</AppServer><DbServer>OK</DbServer><AuthServer>OK</AuthServer></FEDummyResult>
</FEDummyResponse>`

	st, err := f.client.ServerStatus(context.Background())
	require.NoError(t, err)
	assert.True(t, st.OK())
	assert.Equal(t, "OK", st.DbServer)
}
