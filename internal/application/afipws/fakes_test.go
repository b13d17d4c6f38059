package afipws_test

import (
	"context"
	"encoding/xml"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jhoicas/afip-facturacion/internal/domain/entity"
)

// memTicketRepo almacén en memoria. No filtra por vencimiento para que la caché
// tenga que aplicar su propio reloj.
type memTicketRepo struct {
	mu          sync.Mutex
	mintMu      sync.Mutex
	lockEnabled bool
	tickets     map[string]*entity.AuthTicket
	puts        atomic.Int32
	deletes     atomic.Int32
}

func newMemTicketRepo() *memTicketRepo {
	return &memTicketRepo{tickets: map[string]*entity.AuthTicket{}, lockEnabled: true}
}

func (r *memTicketRepo) Get(_ context.Context, cuit string) (*entity.AuthTicket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tickets[cuit]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (r *memTicketRepo) Put(_ context.Context, t *entity.AuthTicket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *t
	r.tickets[t.IssuerTaxID] = &cp
	r.puts.Add(1)
	return nil
}

func (r *memTicketRepo) Invalidate(_ context.Context, cuit string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tickets, cuit)
	r.deletes.Add(1)
	return nil
}

func (r *memTicketRepo) WithMintLock(ctx context.Context, _ string, fn func(ctx context.Context) error) error {
	if r.lockEnabled {
		r.mintMu.Lock()
		defer r.mintMu.Unlock()
	}
	return fn(ctx)
}

type fakeSigner struct {
	err   error
	calls atomic.Int32
}

func (s *fakeSigner) BuildRequest(service string, now time.Time) ([]byte, error) {
	return []byte("<loginTicketRequest><service>" + service + "</service></loginTicketRequest>"), nil
}

func (s *fakeSigner) Sign(payload []byte, _ entity.FiscalCredential) (string, error) {
	s.calls.Add(1)
	if s.err != nil {
		return "", s.err
	}
	return "Q01TLXNpZ25lZA==", nil
}

// fakeTransport responde por operación y registra los cuerpos enviados.
type fakeTransport struct {
	mu         sync.Mutex
	logins     atomic.Int32
	loginErr   error
	loginDelay time.Duration
	expiresAt  time.Time
	responses  map[string]string
	errs       map[string]error
	calls      []string
	bodies     map[string][]byte
}

func newFakeTransport(expiresAt time.Time) *fakeTransport {
	return &fakeTransport{
		expiresAt: expiresAt,
		responses: map[string]string{},
		errs:      map[string]error{},
		bodies:    map[string][]byte{},
	}
}

func (f *fakeTransport) Login(_ context.Context, signedCMS string) ([]byte, error) {
	n := f.logins.Add(1)
	if f.loginDelay > 0 {
		time.Sleep(f.loginDelay)
	}
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return []byte(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<loginTicketResponse version="1.0">
  <header>
    <source>CN=wsaahomo, O=AFIP, C=AR, SERIALNUMBER=CUIT 33693450239</source>
    <destination>SERIALNUMBER=CUIT 20123456786, CN=test</destination>
    <uniqueId>%d</uniqueId>
    <generationTime>2026-10-19T10:00:00.000-03:00</generationTime>
    <expirationTime>%s</expirationTime>
  </header>
  <credentials>
    <token>token-%d</token>
    <sign>sign-%d</sign>
  </credentials>
</loginTicketResponse>`, n, f.expiresAt.Format(time.RFC3339), n, n)), nil
}

func (f *fakeTransport) Call(_ context.Context, op string, body any) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
	b, err := xml.Marshal(body)
	if err != nil {
		return nil, err
	}
	f.bodies[op] = b
	if err := f.errs[op]; err != nil {
		return nil, err
	}
	return []byte(f.responses[op]), nil
}

func (f *fakeTransport) body(op string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return string(f.bodies[op])
}

func (f *fakeTransport) callList() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func lastAuthorizedXML(n int64) string {
	return fmt.Sprintf(`<FECompUltimoAutorizadoResponse xmlns="http://ar.gov.afip.dif.FEV1/">
  <FECompUltimoAutorizadoResult><PtoVta>1</PtoVta><CbteTipo>6</CbteTipo><CbteNro>%d</CbteNro></FECompUltimoAutorizadoResult>
</FECompUltimoAutorizadoResponse>`, n)
}

func approvedCAEXML(number int64) string {
	return fmt.Sprintf(`<FECAESolicitarResponse xmlns="http://ar.gov.afip.dif.FEV1/">
  <FECAESolicitarResult>
    <FeCabResp><Cuit>20123456786</Cuit><PtoVta>1</PtoVta><CbteTipo>6</CbteTipo><FchProceso>20261019103000</FchProceso><CantReg>1</CantReg><Resultado>A</Resultado><Reproceso>N</Reproceso></FeCabResp>
    <FeDetResp>
      <FECAEDetResponse>
        <Concepto>1</Concepto><DocTipo>99</DocTipo><DocNro>0</DocNro>
        <CbteDesde>%d</CbteDesde><CbteHasta>%d</CbteHasta><CbteFch>20261019</CbteFch>
        <Resultado>A</Resultado><CAE>76423456789012</CAE><CAEFchVto>20261029</CAEFchVto>
      </FECAEDetResponse>
    </FeDetResp>
  </FECAESolicitarResult>
</FECAESolicitarResponse>`, number, number)
}
