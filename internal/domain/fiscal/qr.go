package fiscal

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jhoicas/afip-facturacion/internal/domain/entity"
	"github.com/jhoicas/afip-facturacion/pkg/afip"
)

// QRBaseURL URL de verificación de comprobantes de AFIP (RG 4892).
const QRBaseURL = "https://www.afip.gob.ar/fe/qr/?p="

type qrPayload struct {
	Ver        int         `json:"ver"`
	Fecha      string      `json:"fecha"`
	Cuit       int64       `json:"cuit"`
	PtoVta     int64       `json:"ptoVta"`
	TipoCmp    int         `json:"tipoCmp"`
	NroCmp     int64       `json:"nroCmp"`
	Importe    json.Number `json:"importe"`
	Moneda     string      `json:"moneda"`
	Ctz        int         `json:"ctz"`
	TipoDocRec int         `json:"tipoDocRec"`
	NroDocRec  int64       `json:"nroDocRec"`
	TipoCodAut string      `json:"tipoCodAut"`
	CodAut     int64       `json:"codAut"`
}

// QRURL arma la URL del código QR que AFIP exige impreso en el comprobante.
func QRURL(issuerTaxID string, inv *entity.Invoice) (string, error) {
	cuit, err := strconv.ParseInt(issuerTaxID, 10, 64)
	if err != nil {
		return "", fmt.Errorf("qr: CUIT emisor %q: %w", issuerTaxID, err)
	}
	cae, err := strconv.ParseInt(inv.CAE, 10, 64)
	if err != nil {
		return "", fmt.Errorf("qr: CAE %q: %w", inv.CAE, err)
	}
	docType, docNumber := BuyerDocument(&entity.InvoiceRequest{
		BuyerTaxID:      inv.BuyerTaxID,
		BuyerNationalID: inv.BuyerNationalID,
	})

	p := qrPayload{
		Ver:        1,
		Fecha:      inv.IssuedAt.In(afip.ArgentinaTZ).Format("2006-01-02"),
		Cuit:       cuit,
		PtoVta:     inv.PointOfSale,
		TipoCmp:    int(inv.InvoiceType),
		NroCmp:     inv.InvoiceNumber,
		Importe:    json.Number(inv.TotalAmount.StringFixed(2)),
		Moneda:     afip.CurrencyPesos,
		Ctz:        1,
		TipoDocRec: int(docType),
		NroDocRec:  docNumber,
		TipoCodAut: "E",
		CodAut:     cae,
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("qr: serializar: %w", err)
	}
	return QRBaseURL + base64.StdEncoding.EncodeToString(raw), nil
}
