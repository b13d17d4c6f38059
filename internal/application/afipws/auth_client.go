package afipws

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/afip-facturacion/internal/domain/entity"
	"github.com/jhoicas/afip-facturacion/pkg/afip"
)

// AuthClient cliente WSAA. Estados por solicitud:
//
//	sin ticket → firma del TRA → loginCms → parseo → caché
//
// Con la caché caliente no hay llamadas remotas. La credencial se inyecta en
// el constructor y solo cambia vía RotateCredential.
type AuthClient struct {
	mu         sync.RWMutex
	credential entity.FiscalCredential
	generation uint64 // se incrementa en cada rotación

	service   string
	signer    RequestSigner
	transport Transport
	cache     *TicketCache
	now       func() time.Time
	log       zerolog.Logger
}

// NewAuthClient construye el cliente WSAA para el servicio indicado (ej. "wsfe").
func NewAuthClient(
	credential entity.FiscalCredential,
	service string,
	signer RequestSigner,
	transport Transport,
	cache *TicketCache,
	log zerolog.Logger,
) *AuthClient {
	return &AuthClient{
		credential: credential,
		service:    service,
		signer:     signer,
		transport:  transport,
		cache:      cache,
		now:        time.Now,
		log:        log.With().Str("component", "wsaa").Logger(),
	}
}

// WithClock reemplaza el reloj (tests).
func (a *AuthClient) WithClock(now func() time.Time) *AuthClient {
	a.now = now
	return a
}

// errCredentialRotated la credencial cambió mientras se emitía el ticket.
var errCredentialRotated = errors.New("afipws: la credencial AFIP cambió durante la emisión del ticket")

// IssuerTaxID CUIT de la credencial vigente.
func (a *AuthClient) IssuerTaxID() string {
	cred, _ := a.currentCredential()
	return cred.IssuerTaxID
}

func (a *AuthClient) currentCredential() (entity.FiscalCredential, uint64) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.credential, a.generation
}

func (a *AuthClient) currentGeneration() uint64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.generation
}

// GetTicket devuelve el ticket vigente del emisor; si no hay uno en caché firma
// un TRA nuevo y lo canjea en WSAA. La firma fallida no se reintenta.
// Si la credencial se rota durante la emisión, el ticket obtenido se descarta
// y se vuelve a emitir con la credencial nueva.
func (a *AuthClient) GetTicket(ctx context.Context) (*entity.AuthTicket, error) {
	const attempts = 2
	var err error
	for i := 0; i < attempts; i++ {
		var t *entity.AuthTicket
		t, err = a.getTicket(ctx)
		if !errors.Is(err, errCredentialRotated) {
			return t, err
		}
		a.log.Warn().Msg("credencial rotada durante la emisión del ticket, se reintenta")
	}
	return nil, err
}

func (a *AuthClient) getTicket(ctx context.Context) (*entity.AuthTicket, error) {
	cred, gen := a.currentCredential()
	if cred.Empty() {
		return nil, afip.NewSigningFailed(afip.StageCertificate, "no hay certificado/clave configurados", nil)
	}
	cuit := cred.IssuerTaxID

	t, err := a.cache.Get(ctx, cuit)
	if err != nil {
		return nil, err
	}
	if t != nil {
		a.log.Debug().Str("cuit", cuit).Str("service", a.service).Msg("ticket WSAA desde caché")
		return t, nil
	}

	var minted *entity.AuthTicket
	err = a.cache.WithMintLock(ctx, cuit, func(ctx context.Context) error {
		// RotateCredential toma este mismo lock: si rotó mientras esperábamos,
		// la credencial leída ya no sirve.
		if a.currentGeneration() != gen {
			return errCredentialRotated
		}
		// Otro proceso pudo haber emitido el ticket mientras esperábamos el lock.
		existing, err := a.cache.Get(ctx, cuit)
		if err != nil {
			return err
		}
		if existing != nil {
			minted = existing
			return nil
		}
		minted, err = a.mint(ctx, cred, gen)
		return err
	})
	if err != nil {
		return nil, err
	}
	return minted, nil
}

func (a *AuthClient) mint(ctx context.Context, cred entity.FiscalCredential, gen uint64) (*entity.AuthTicket, error) {
	cuit := cred.IssuerTaxID
	now := a.now()

	payload, err := a.signer.BuildRequest(a.service, now)
	if err != nil {
		err = asSigningError(err)
		a.log.Error().Err(err).Str("cuit", cuit).Msg("no se pudo armar el TRA")
		return nil, err
	}
	cms, err := a.signer.Sign(payload, cred)
	if err != nil {
		err = asSigningError(err)
		a.log.Error().Err(err).Str("cuit", cuit).Msg("firma del TRA falló")
		return nil, err
	}

	raw, err := a.transport.Login(ctx, cms)
	if err != nil {
		if afip.IsAlreadyAuthenticated(err) {
			a.log.Warn().Str("cuit", cuit).Msg("WSAA ya emitió un TA vigente para este certificado; se perdió la caché local")
		}
		a.log.Error().Err(err).Str("cuit", cuit).Str("service", a.service).Msg("loginCms falló")
		return nil, err
	}

	t, err := parseLoginResponse(raw)
	if err != nil {
		a.log.Error().Err(err).Str("cuit", cuit).Str("raw", truncateLog(raw)).Msg("respuesta WSAA inválida")
		return nil, err
	}
	t.IssuerTaxID = cuit
	t.Service = a.service
	t.CreatedAt = now

	// Un ticket firmado con una credencial ya rotada no se guarda nunca.
	if a.currentGeneration() != gen {
		a.log.Warn().Str("cuit", cuit).Msg("ticket WSAA descartado: la credencial se rotó durante el login")
		return nil, errCredentialRotated
	}
	if err := a.cache.Put(ctx, t); err != nil {
		return nil, err
	}
	a.log.Info().Str("cuit", cuit).Str("service", a.service).Time("expires_at", t.ExpiresAt).Msg("ticket WSAA emitido")
	return t, nil
}

// RotateCredential reemplaza la credencial e invalida los tickets emitidos con la anterior.
func (a *AuthClient) RotateCredential(ctx context.Context, cred entity.FiscalCredential) error {
	if _, err := afip.ValidateTaxID(cred.IssuerTaxID); err != nil {
		return err
	}
	if cred.Empty() {
		return afip.NewInvalidInput("credential", "certificado o clave vacíos")
	}

	lockCUIT := a.IssuerTaxID()
	if lockCUIT == "" {
		lockCUIT = cred.IssuerTaxID
	}
	// Con el lock de emisión tomado ningún login en curso puede guardar su ticket
	// entre el cambio de credencial y la invalidación.
	err := a.cache.WithMintLock(ctx, lockCUIT, func(ctx context.Context) error {
		a.mu.Lock()
		old := a.credential
		a.credential = cred
		a.generation++
		a.mu.Unlock()

		if old.IssuerTaxID != "" {
			if err := a.cache.Invalidate(ctx, old.IssuerTaxID); err != nil {
				return err
			}
		}
		if cred.IssuerTaxID != old.IssuerTaxID {
			if err := a.cache.Invalidate(ctx, cred.IssuerTaxID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	a.log.Info().Str("cuit", cred.IssuerTaxID).Msg("credencial AFIP rotada")
	return nil
}

// InvalidateTicket descarta el ticket del emisor (ej. WSFE informó token inválido).
func (a *AuthClient) InvalidateTicket(ctx context.Context) error {
	return a.cache.Invalidate(ctx, a.IssuerTaxID())
}

// parseLoginResponse extrae token, sign y expirationTime del loginTicketResponse.
func parseLoginResponse(raw []byte) (*entity.AuthTicket, error) {
	var resp loginTicketResponse
	if err := xml.Unmarshal(raw, &resp); err != nil {
		return nil, afip.NewInvalidResponse("loginTicketResponse ilegible: "+err.Error(), raw)
	}
	token := strings.TrimSpace(resp.Credentials.Token)
	sign := strings.TrimSpace(resp.Credentials.Sign)
	exp := strings.TrimSpace(resp.Header.ExpirationTime)
	if token == "" || sign == "" || exp == "" {
		return nil, afip.NewInvalidResponse("loginTicketResponse sin token, sign o expirationTime", raw)
	}
	expiresAt, err := time.Parse(time.RFC3339, exp)
	if err != nil {
		return nil, afip.NewInvalidResponse(fmt.Sprintf("expirationTime inválido %q", exp), raw)
	}
	return &entity.AuthTicket{Token: token, Sign: sign, ExpiresAt: expiresAt}, nil
}

func asSigningError(err error) error {
	var e *afip.Error
	if errors.As(err, &e) {
		return err
	}
	return afip.NewSigningFailed(afip.StageSigningEngine, "error inesperado al firmar", err)
}

func truncateLog(raw []byte) string {
	const max = 2048
	if len(raw) > max {
		return string(raw[:max])
	}
	return string(raw)
}
