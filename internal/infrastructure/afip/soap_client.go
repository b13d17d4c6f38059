package afip

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	pkgafip "github.com/jhoicas/afip-facturacion/pkg/afip"
)

const (
	serviceWSAA = "wsaa"
	serviceWSFE = "wsfe"
)

// Config parámetros del transporte SOAP.
type Config struct {
	Environment        pkgafip.Environment
	ConnectTimeout     time.Duration // default 60 s
	Timeout            time.Duration // default 120 s
	InsecureSkipVerify bool          // solo para homologación con certificados rotos
	// Endpoints reemplaza las URLs del ambiente (tests o proxies).
	Endpoints *Endpoints
}

// SOAPTransport implementa el transporte hacia WSAA y WSFE sobre net/http.
// Los WSDL se resuelven una vez por servicio con la cadena de alternativas;
// las operaciones de negocio se envían una sola vez, sin reintentos.
type SOAPTransport struct {
	endpoints  Endpoints
	httpClient *http.Client
	wsdl       *wsdlResolver
	log        zerolog.Logger
}

// NewSOAPTransport construye el transporte con timeouts de conexión y total.
func NewSOAPTransport(cfg Config, log zerolog.Logger) (*SOAPTransport, error) {
	var endpoints Endpoints
	if cfg.Endpoints != nil {
		endpoints = *cfg.Endpoints
	} else {
		var err error
		if endpoints, err = EndpointsFor(cfg.Environment); err != nil {
			return nil, err
		}
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 60 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}

	log = log.With().Str("component", "afip_soap").Logger()
	legacy := newHTTPClient(legacyTLSConfig(cfg.InsecureSkipVerify), cfg.ConnectTimeout, cfg.Timeout)
	fallback := newHTTPClient(nil, cfg.ConnectTimeout, cfg.Timeout)
	return &SOAPTransport{
		endpoints:  endpoints,
		httpClient: legacy,
		wsdl:       newWSDLResolver(legacy, fallback, log),
		log:        log,
	}, nil
}

// ── Estructuras SOAP ──────────────────────────────────────────────────────────

type soapEnvelope struct {
	XMLName xml.Name `xml:"soapenv:Envelope"`
	XmlnsS  string   `xml:"xmlns:soapenv,attr"`
	Header  struct{} `xml:"soapenv:Header"`
	Body    soapBody `xml:"soapenv:Body"`
}

type soapBody struct {
	Content interface{}
}

func (b soapBody) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	start.Name.Local = "soapenv:Body"
	if err := e.EncodeToken(start); err != nil {
		return err
	}
	if err := e.Encode(b.Content); err != nil {
		return err
	}
	return e.EncodeToken(start.End())
}

type loginCmsBody struct {
	XMLName xml.Name `xml:"http://wsaa.view.sua.dvadac.desein.afip.gov loginCms"`
	In0     string   `xml:"in0"`
}

type soapResponseEnvelope struct {
	Body struct {
		Fault *soapFault `xml:"Fault"`
		Inner []byte     `xml:",innerxml"`
	} `xml:"Body"`
}

type soapFault struct {
	FaultCode   string `xml:"faultcode"`
	FaultString string `xml:"faultstring"`
}

type loginCmsResponse struct {
	Return string `xml:"loginCmsReturn"`
}

// ── Operaciones ──────────────────────────────────────────────────────────────

// Login invoca loginCms con el CMS en base64 y devuelve el loginTicketResponse.
func (t *SOAPTransport) Login(ctx context.Context, signedCMS string) ([]byte, error) {
	desc, err := t.wsdl.resolve(ctx, serviceWSAA, t.endpoints.WSAA)
	if err != nil {
		return nil, pkgafip.NewTransport(t.endpoints.WSAA, err)
	}
	inner, err := t.post(ctx, desc.Location, desc.Actions["loginCms"], &loginCmsBody{In0: signedCMS})
	if err != nil {
		return nil, err
	}
	var resp loginCmsResponse
	if err := xml.Unmarshal(inner, &resp); err != nil {
		return nil, pkgafip.NewInvalidResponse("loginCmsResponse ilegible: "+err.Error(), inner)
	}
	if strings.TrimSpace(resp.Return) == "" {
		return nil, pkgafip.NewInvalidResponse("loginCmsResponse sin loginCmsReturn", inner)
	}
	return []byte(resp.Return), nil
}

// Call invoca una operación WSFE. body debe serializar el elemento de la operación.
func (t *SOAPTransport) Call(ctx context.Context, operation string, body any) ([]byte, error) {
	desc, err := t.wsdl.resolve(ctx, serviceWSFE, t.endpoints.WSFE)
	if err != nil {
		return nil, pkgafip.NewTransport(t.endpoints.WSFE, err)
	}
	action, ok := desc.Actions[operation]
	if !ok || action == "" {
		action = wsfeNS + operation
	}
	return t.post(ctx, desc.Location, action, body)
}

// post envía el envelope y devuelve el contenido del Body. Un SOAP Fault se
// traduce en rechazo; errores de red y HTTP sin Fault, en error de transporte.
func (t *SOAPTransport) post(ctx context.Context, url, action string, body any) ([]byte, error) {
	payload, err := xml.Marshal(soapEnvelope{XmlnsS: soapEnvNS, Body: soapBody{Content: body}})
	if err != nil {
		return nil, fmt.Errorf("soap: serializar envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, pkgafip.NewTransport(url, fmt.Errorf("soap: crear request: %w", err))
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", `"`+action+`"`)

	start := time.Now()
	resp, err := t.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("soap: timeout o cancelación: %w", ctx.Err())
		}
		return nil, pkgafip.NewTransport(url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // max 1 MB
	if err != nil {
		return nil, pkgafip.NewTransport(url, fmt.Errorf("soap: leer respuesta: %w", err))
	}
	t.log.Debug().Str("endpoint", url).Str("action", action).Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).Msg("llamada SOAP")

	var env soapResponseEnvelope
	if perr := xml.Unmarshal(raw, &env); perr != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, pkgafip.NewTransport(url, fmt.Errorf("soap: HTTP %d", resp.StatusCode))
		}
		return nil, pkgafip.NewInvalidResponse("envelope SOAP ilegible: "+perr.Error(), raw)
	}
	if f := env.Body.Fault; f != nil {
		return nil, pkgafip.NewRejected(faultCode(f.FaultCode), strings.TrimSpace(f.FaultString))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, pkgafip.NewTransport(url, fmt.Errorf("soap: HTTP %d", resp.StatusCode))
	}
	if len(bytes.TrimSpace(env.Body.Inner)) == 0 {
		return nil, pkgafip.NewInvalidResponse("Body SOAP vacío", raw)
	}
	return env.Body.Inner, nil
}

// faultCode quita el prefijo de namespace (ns1:coe.alreadyAuthenticated → coe.alreadyAuthenticated).
func faultCode(code string) string {
	code = strings.TrimSpace(code)
	if i := strings.LastIndex(code, ":"); i >= 0 {
		return code[i+1:]
	}
	return code
}
