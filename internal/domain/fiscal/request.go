package fiscal

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/afip-facturacion/internal/domain/entity"
	"github.com/jhoicas/afip-facturacion/pkg/afip"
)

// roundingTolerance diferencia máxima aceptada entre total y neto + IVA.
var roundingTolerance = decimal.New(1, -2)

// ValidateRequest valida la solicitud antes de cualquier llamada remota.
// Normaliza CUIT/DNI a solo dígitos.
func ValidateRequest(req *entity.InvoiceRequest) error {
	if req == nil {
		return afip.NewInvalidInput("request", "solicitud nula")
	}
	switch req.Concept {
	case afip.ConceptProducts, afip.ConceptServices, afip.ConceptMixed:
	default:
		return afip.NewInvalidInput("concepto", fmt.Sprintf("concepto desconocido %d", req.Concept))
	}
	if req.BuyerTaxID != "" {
		digits, err := afip.ValidateTaxID(req.BuyerTaxID)
		if err != nil {
			return err
		}
		req.BuyerTaxID = digits
	}
	if req.BuyerNationalID != "" {
		digits, err := afip.ValidateNationalID(req.BuyerNationalID)
		if err != nil {
			return err
		}
		req.BuyerNationalID = digits
	}
	if req.InvoiceType.RequiresBuyerTaxID() && req.BuyerTaxID == "" {
		return afip.NewInvalidInput("cuit", "la factura A requiere CUIT del receptor")
	}
	if req.NetAmount.IsNegative() || req.VATAmount.IsNegative() || !req.TotalAmount.IsPositive() {
		return afip.NewInvalidInput("importes", "los importes deben ser positivos")
	}
	diff := req.TotalAmount.Sub(req.NetAmount.Add(req.VATAmount)).Abs()
	if diff.GreaterThan(roundingTolerance) {
		return afip.NewInvalidInput("importes", fmt.Sprintf("total %s no coincide con neto %s + IVA %s",
			req.TotalAmount.StringFixed(2), req.NetAmount.StringFixed(2), req.VATAmount.StringFixed(2)))
	}
	return nil
}

// BuyerDocument devuelve DocTipo y DocNro: CUIT, si no DNI, si no sin identificar (99, 0).
func BuyerDocument(req *entity.InvoiceRequest) (afip.DocType, int64) {
	if req.BuyerTaxID != "" {
		if n, err := strconv.ParseInt(afip.ExtractDigits(req.BuyerTaxID), 10, 64); err == nil {
			return afip.DocTypeCUIT, n
		}
	}
	if req.BuyerNationalID != "" {
		if n, err := strconv.ParseInt(afip.ExtractDigits(req.BuyerNationalID), 10, 64); err == nil {
			return afip.DocTypeDNI, n
		}
	}
	return afip.DocTypeUnidentified, 0
}
