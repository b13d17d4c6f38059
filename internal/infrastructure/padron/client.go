// Package padron consulta el padrón de contribuyentes (servicio REST de terceros).
package padron

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jhoicas/afip-facturacion/internal/domain/entity"
	"github.com/jhoicas/afip-facturacion/pkg/afip"
)

const (
	DefaultBaseURL = "https://afip.tangofactura.com/Rest/GetContribuyenteFull"
	defaultTimeout = 10 * time.Second

	// idImpuesto del padrón.
	taxMonotributo = 20
	taxIVA         = 30
	taxExento      = 32
)

// Client adaptador HTTP del padrón.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewClient construye el cliente. baseURL vacío usa el servicio por defecto.
func NewClient(baseURL string, timeout time.Duration, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		log:        log,
	}
}

// flexString acepta string o número en el JSON (codPostal viene de las dos formas).
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	if string(b) == "null" {
		return nil
	}
	*f = flexString(strings.TrimSpace(string(b)))
	return nil
}

type contribuyenteResponse struct {
	Contribuyente *struct {
		Nombre      string `json:"nombre"`
		TipoPersona string `json:"tipoPersona"`
		EstadoClave string `json:"estadoClave"`
		Impuestos   []struct {
			IDImpuesto int `json:"idImpuesto"`
		} `json:"impuestos"`
		DomicilioFiscal *struct {
			Direccion string     `json:"direccion"`
			Localidad string     `json:"localidad"`
			Provincia string     `json:"provincia"`
			CodPostal flexString `json:"codPostal"`
		} `json:"domicilioFiscal"`
	} `json:"Contribuyente"`
}

// Lookup valida el CUIT y consulta el padrón. Un CUIT inválido no sale a la red.
func (c *Client) Lookup(ctx context.Context, rawTaxID string) (*entity.Taxpayer, error) {
	cuit, err := afip.ValidateTaxID(rawTaxID)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?cuit="+cuit, nil)
	if err != nil {
		return nil, fmt.Errorf("padron: crear request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("cuit", cuit).Msg("padrón no disponible")
		return nil, afip.NewTransport(c.baseURL, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, afip.NewTransport(c.baseURL, err)
	}
	notFound := &entity.Taxpayer{Found: false, TaxID: afip.FormatTaxID(cuit)}
	// Solo 404 o una respuesta sin Contribuyente significan "no inscripto";
	// cualquier otro status (429, 401, 5xx) es falla del servicio.
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return notFound, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		c.log.Warn().Int("status", resp.StatusCode).Str("cuit", cuit).Msg("padrón respondió con error")
		return nil, afip.NewTransport(c.baseURL, fmt.Errorf("HTTP %d", resp.StatusCode))
	}

	var body contribuyenteResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, afip.NewTransport(c.baseURL, fmt.Errorf("respuesta ilegible: %w", err))
	}
	if body.Contribuyente == nil {
		return notFound, nil
	}

	ct := body.Contribuyente
	var taxes []int
	for _, imp := range ct.Impuestos {
		taxes = append(taxes, imp.IDImpuesto)
	}
	cond := conditionFor(taxes)

	res := &entity.Taxpayer{
		Found:            true,
		TaxID:            afip.FormatTaxID(cuit),
		Name:             ct.Nombre,
		PersonType:       ct.TipoPersona,
		IVACondition:     cond.String(),
		IVAConditionCode: cond,
		Status:           ct.EstadoClave,
	}
	if d := ct.DomicilioFiscal; d != nil {
		var parts []string
		for _, p := range []string{d.Direccion, d.Localidad, d.Provincia} {
			if p != "" {
				parts = append(parts, p)
			}
		}
		if d.CodPostal != "" {
			parts = append(parts, "CP "+string(d.CodPostal))
		}
		res.Address = strings.Join(parts, ", ")
	}
	return res, nil
}

// conditionFor: monotributo tiene prioridad sobre IVA, e IVA sobre exento.
func conditionFor(taxes []int) afip.IVACondition {
	has := map[int]bool{}
	for _, t := range taxes {
		has[t] = true
	}
	switch {
	case has[taxMonotributo]:
		return afip.IVAMonotributo
	case has[taxIVA]:
		return afip.IVAResponsableInscripto
	case has[taxExento]:
		return afip.IVAExento
	}
	return afip.IVAConsumidorFinal
}
