// Package afipws orquesta los web services de AFIP: autenticación WSAA con caché
// de tickets, numeración de comprobantes y solicitud de CAE en WSFE.
package afipws

import (
	"context"
	"time"

	"github.com/jhoicas/afip-facturacion/internal/domain/entity"
	"github.com/jhoicas/afip-facturacion/pkg/afip"
)

// ServiceWSFE nombre del servicio de negocio autorizado en el TRA.
const ServiceWSFE = "wsfe"

// RequestSigner arma y firma el TRA (loginTicketRequest) de WSAA.
type RequestSigner interface {
	BuildRequest(service string, now time.Time) ([]byte, error)
	// Sign devuelve el CMS en base64, sin encabezados PEM.
	Sign(payload []byte, cred entity.FiscalCredential) (string, error)
}

// Transport transporte remoto hacia WSAA y WSFE. Concentra la descarga del WSDL
// y sus alternativas; las llamadas de negocio no se reintentan.
type Transport interface {
	// Login invoca loginCms y devuelve el loginTicketResponse (XML).
	Login(ctx context.Context, signedCMS string) ([]byte, error)
	// Call invoca una operación WSFE y devuelve el elemento de respuesta del Body.
	Call(ctx context.Context, operation string, body any) ([]byte, error)
}

// TicketProvider entrega el ticket vigente del emisor.
type TicketProvider interface {
	GetTicket(ctx context.Context) (*entity.AuthTicket, error)
	InvalidateTicket(ctx context.Context) error
}

// Config datos fiscales del emisor. El CUIT sale de la credencial vigente.
type Config struct {
	Regime      afip.Regime
	PointOfSale int64
}
