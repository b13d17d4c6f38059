package afip

import (
	"errors"
	"fmt"
)

// Kind clasifica los errores del cliente AFIP.
type Kind string

const (
	KindInvalidInput     Kind = "invalid_input"     // CUIT/DNI o importes mal formados; nunca se reintenta
	KindSigningFailed    Kind = "signing_failed"    // certificado, clave o motor de firma; requiere operador
	KindTransportFailure Kind = "transport_failure" // red, timeout o TLS; el caller puede reintentar
	KindInvalidResponse  Kind = "invalid_response"  // respuesta incompleta o mal formada
	KindRejected         Kind = "rejected"          // AFIP rechazó la solicitud por regla de negocio
	KindAuth             Kind = "auth"              // falló la obtención del ticket WSAA
)

// SigningStage distingue en qué paso falló la firma del TRA.
type SigningStage string

const (
	StageCertificate   SigningStage = "certificate"
	StagePrivateKey    SigningStage = "private_key"
	StageSigningEngine SigningStage = "signing_engine"
)

// Error error tipado de la integración con AFIP.
type Error struct {
	Kind    Kind
	Code    string // código AFIP, faultcode SOAP o campo inválido
	Message string
	Stage   SigningStage // solo para KindSigningFailed
	Raw     string       // respuesta cruda (truncada) para diagnóstico
	Err     error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Stage != "" {
		msg += "[" + string(e.Stage) + "]"
	}
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is permite errors.Is(err, afip.ErrRejected) comparando por Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Code == "" && t.Message == ""
}

// Sentinels por tipo (comparables con errors.Is).
var (
	ErrInvalidInput    = &Error{Kind: KindInvalidInput}
	ErrSigningFailed   = &Error{Kind: KindSigningFailed}
	ErrTransport       = &Error{Kind: KindTransportFailure}
	ErrInvalidResponse = &Error{Kind: KindInvalidResponse}
	ErrRejected        = &Error{Kind: KindRejected}
	ErrAuth            = &Error{Kind: KindAuth}
)

// NewInvalidInput construye un error de entrada inválida.
func NewInvalidInput(field, msg string) *Error {
	return &Error{Kind: KindInvalidInput, Code: field, Message: msg}
}

// NewSigningFailed construye un error de firma indicando la etapa.
func NewSigningFailed(stage SigningStage, msg string, err error) *Error {
	return &Error{Kind: KindSigningFailed, Stage: stage, Message: msg, Err: err}
}

// NewTransport construye un error de transporte (reintentable por el caller).
func NewTransport(endpoint string, err error) *Error {
	return &Error{Kind: KindTransportFailure, Message: endpoint, Err: err}
}

// NewInvalidResponse construye un error de respuesta inválida conservando el payload.
func NewInvalidResponse(msg string, raw []byte) *Error {
	return &Error{Kind: KindInvalidResponse, Message: msg, Raw: truncate(string(raw), 2048)}
}

// NewRejected construye un rechazo de AFIP con su código y mensaje.
func NewRejected(code, msg string) *Error {
	return &Error{Kind: KindRejected, Code: code, Message: msg}
}

// WrapAuth clasifica como Auth un error del paso de obtención de ticket,
// conservando el error original en la cadena (errors.As sigue encontrando el tipo interno).
func WrapAuth(err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: KindAuth, Message: "no se pudo obtener el ticket de acceso", Err: err}
}

// KindOf devuelve el Kind más externo de la cadena, o "" si no es un *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Categorías visibles para el usuario. Las tres primeras nunca se confunden entre sí.
const (
	CategoryCredentials = "credentials" // revisar certificado/clave
	CategoryUnavailable = "unavailable" // AFIP no responde, reintentar más tarde
	CategoryRejected    = "rejected"    // AFIP rechazó el comprobante, revisar datos
	CategoryInput       = "input"
	CategoryInternal    = "internal"
)

// Category mapea un error a la categoría que ve el usuario.
// Para errores Auth se mira la causa: una firma fallida es de credenciales,
// un transporte caído es indisponibilidad.
func Category(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrSigningFailed):
		return CategoryCredentials
	case errors.Is(err, ErrTransport):
		return CategoryUnavailable
	case errors.Is(err, ErrInvalidInput):
		return CategoryInput
	}
	switch KindOf(err) {
	case KindRejected:
		return CategoryRejected
	case KindAuth:
		if errors.Is(err, ErrInvalidResponse) {
			return CategoryUnavailable
		}
		// rechazo de WSAA: certificado no asociado al CUIT, servicio no autorizado, etc.
		return CategoryCredentials
	case KindInvalidResponse:
		return CategoryUnavailable
	}
	return CategoryInternal
}

// UserMessage devuelve un mensaje legible para el operador o el cliente.
func UserMessage(err error) string {
	switch Category(err) {
	case CategoryCredentials:
		return "Revise el certificado y la clave privada configurados para AFIP."
	case CategoryUnavailable:
		return "AFIP no está disponible en este momento. Intente nuevamente más tarde."
	case CategoryRejected:
		var e *Error
		errors.As(err, &e)
		return fmt.Sprintf("AFIP rechazó el comprobante, revise los datos: %s", e.Message)
	case CategoryInput:
		var e *Error
		errors.As(err, &e)
		return "Datos inválidos: " + e.Message
	case "":
		return ""
	}
	return "Error interno al emitir el comprobante."
}

// IsAlreadyAuthenticated indica si WSAA rechazó el login porque ya emitió un TA
// vigente para el certificado (la caché local se perdió antes del vencimiento).
func IsAlreadyAuthenticated(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindRejected && e.Code == "coe.alreadyAuthenticated"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
