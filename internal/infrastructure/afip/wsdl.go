package afip

import (
	"context"
	"embed"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/beevik/etree"
	"github.com/rs/zerolog"
)

//go:embed wsdl/*.wsdl
var embeddedWSDL embed.FS

const locationPlaceholder = "{{LOCATION}}"

// serviceDescription lo que se usa del WSDL: URL del servicio y SOAPAction por operación.
type serviceDescription struct {
	Location string
	Actions  map[string]string
	Source   string // legacy_tls | default_client | embedded
}

// wsdlSource origen del WSDL según el paso de la cadena.
const (
	sourceLegacyTLS     = "legacy_tls"
	sourceDefaultClient = "default_client"
	sourceEmbedded      = "embedded"
)

// wsdlResolver obtiene y cachea la descripción de cada servicio. Orden:
//
//	(a) cliente TLS de seguridad reducida → (b) cliente HTTP por defecto → (c) WSDL embebido
type wsdlResolver struct {
	legacy   *http.Client
	fallback *http.Client
	log      zerolog.Logger

	mu    sync.Mutex
	cache map[string]*serviceDescription
}

func newWSDLResolver(legacy, fallback *http.Client, log zerolog.Logger) *wsdlResolver {
	return &wsdlResolver{legacy: legacy, fallback: fallback, log: log, cache: map[string]*serviceDescription{}}
}

// resolve devuelve la descripción del servicio. name es "wsaa" o "wsfe".
func (r *wsdlResolver) resolve(ctx context.Context, name, endpoint string) (*serviceDescription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d, ok := r.cache[name]; ok {
		return d, nil
	}

	wsdlURL := endpoint + "?WSDL"
	steps := []struct {
		source string
		client *http.Client
	}{
		{sourceLegacyTLS, r.legacy},
		{sourceDefaultClient, r.fallback},
	}
	for _, step := range steps {
		raw, err := fetchWSDL(ctx, step.client, wsdlURL)
		if err == nil {
			var d *serviceDescription
			d, err = parseWSDL(raw)
			if err == nil {
				d.Source = step.source
				r.cache[name] = d
				r.log.Debug().Str("service", name).Str("source", step.source).Str("endpoint", d.Location).Msg("WSDL obtenido")
				return d, nil
			}
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.log.Warn().Err(err).Str("service", name).Str("source", step.source).Str("endpoint", wsdlURL).
			Msg("no se pudo obtener el WSDL, probando alternativa")
	}

	raw, err := embeddedWSDL.ReadFile("wsdl/" + name + ".wsdl")
	if err != nil {
		return nil, fmt.Errorf("wsdl: no hay WSDL embebido para %s: %w", name, err)
	}
	d, err := parseWSDL([]byte(strings.ReplaceAll(string(raw), locationPlaceholder, endpoint)))
	if err != nil {
		return nil, fmt.Errorf("wsdl: WSDL embebido de %s inválido: %w", name, err)
	}
	d.Source = sourceEmbedded
	r.log.Warn().Str("service", name).Str("endpoint", endpoint).Msg("usando WSDL embebido")
	r.cache[name] = d
	return d, nil
}

func fetchWSDL(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("wsdl: crear request: %w", err)
	}
	req.Header.Set("User-Agent", "afip-facturacion/1.0")
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("wsdl: GET %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("wsdl: GET %s: HTTP %d", url, resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20)) // max 2 MB
	if err != nil {
		return nil, fmt.Errorf("wsdl: leer respuesta: %w", err)
	}
	return raw, nil
}

// parseWSDL extrae soap:address y los soapAction del binding SOAP 1.1
// (si hay binding SOAP 1.2 se toma el primero que aparezca).
func parseWSDL(raw []byte) (*serviceDescription, error) {
	if !strings.Contains(string(raw), "definitions") {
		return nil, fmt.Errorf("wsdl: el documento no es un WSDL")
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, fmt.Errorf("wsdl: parsear: %w", err)
	}

	d := &serviceDescription{Actions: map[string]string{}}
	for _, addr := range doc.FindElements("//service/port/address") {
		if loc := addr.SelectAttrValue("location", ""); loc != "" {
			d.Location = loc
			break
		}
	}
	if d.Location == "" {
		return nil, fmt.Errorf("wsdl: sin soap:address")
	}

	for _, op := range doc.FindElements("//binding/operation") {
		name := op.SelectAttrValue("name", "")
		if name == "" {
			continue
		}
		if _, seen := d.Actions[name]; seen {
			continue
		}
		if soapOp := op.SelectElement("operation"); soapOp != nil {
			d.Actions[name] = soapOp.SelectAttrValue("soapAction", "")
		}
	}
	return d, nil
}
