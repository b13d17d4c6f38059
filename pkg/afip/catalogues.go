// Package afip contiene catálogos, validaciones de CUIT/DNI y la taxonomía de
// errores para los web services de factura electrónica de AFIP (Argentina).
package afip

import (
	"fmt"
	"time"
)

// =============================================================================
// Tipos de comprobante (tabla FEParamGetTiposCbte)
// =============================================================================

// InvoiceType código AFIP del tipo de comprobante (CbteTipo).
type InvoiceType int

const (
	InvoiceTypeA    InvoiceType = 1  // Factura A
	CreditNoteTypeA InvoiceType = 3  // Nota de Crédito A
	InvoiceTypeB    InvoiceType = 6  // Factura B
	CreditNoteTypeB InvoiceType = 8  // Nota de Crédito B
	InvoiceTypeC    InvoiceType = 11 // Factura C
	CreditNoteTypeC InvoiceType = 13 // Nota de Crédito C
)

var invoiceLetters = map[InvoiceType]string{
	InvoiceTypeA:    "A",
	InvoiceTypeB:    "B",
	InvoiceTypeC:    "C",
	CreditNoteTypeA: "A",
	CreditNoteTypeB: "B",
	CreditNoteTypeC: "C",
}

// Letter devuelve la letra del comprobante; "B" si el tipo no está catalogado.
func (t InvoiceType) Letter() string {
	if l, ok := invoiceLetters[t]; ok {
		return l
	}
	return "B"
}

// IsCreditNote indica si el tipo es una nota de crédito.
func (t InvoiceType) IsCreditNote() bool {
	return t == CreditNoteTypeA || t == CreditNoteTypeB || t == CreditNoteTypeC
}

// String devuelve el nombre legible (ej. "Factura B").
func (t InvoiceType) String() string {
	if _, ok := invoiceLetters[t]; !ok {
		return fmt.Sprintf("Comprobante %d", int(t))
	}
	if t.IsCreditNote() {
		return "Nota de Crédito " + t.Letter()
	}
	return "Factura " + t.Letter()
}

// RequiresBuyerTaxID indica si el comprobante exige CUIT del receptor (clase A).
func (t InvoiceType) RequiresBuyerTaxID() bool {
	return t == InvoiceTypeA || t == CreditNoteTypeA
}

// =============================================================================
// Tipos de documento del receptor (DocTipo)
// =============================================================================

// DocType código AFIP del tipo de documento.
type DocType int

const (
	DocTypeCUIT         DocType = 80
	DocTypeDNI          DocType = 96
	DocTypeUnidentified DocType = 99 // Consumidor final sin identificar
)

// =============================================================================
// Condición frente al IVA del receptor
// =============================================================================

// IVACondition condición frente al IVA del comprador.
type IVACondition int

const (
	IVAResponsableInscripto   IVACondition = 1
	IVAResponsableNoInscripto IVACondition = 2
	IVAExento                 IVACondition = 4
	IVAConsumidorFinal        IVACondition = 5
	IVAMonotributo            IVACondition = 6
)

var ivaConditionNames = map[IVACondition]string{
	IVAResponsableInscripto:   "IVA Responsable Inscripto",
	IVAResponsableNoInscripto: "IVA Responsable No Inscripto",
	IVAExento:                 "IVA Exento",
	IVAConsumidorFinal:        "Consumidor Final",
	IVAMonotributo:            "Responsable Monotributo",
}

// String devuelve la descripción usada en comprobantes y correos.
func (c IVACondition) String() string {
	if n, ok := ivaConditionNames[c]; ok {
		return n
	}
	return fmt.Sprintf("Condición %d", int(c))
}

// =============================================================================
// Régimen del emisor
// =============================================================================

// Regime régimen tributario del emisor.
type Regime string

const (
	RegimeMonotributo          Regime = "monotributo"
	RegimeResponsableInscripto Regime = "responsable_inscripto"
)

// =============================================================================
// Concepto del comprobante
// =============================================================================

// Concept concepto incluido en el comprobante.
type Concept int

const (
	ConceptProducts Concept = 1
	ConceptServices Concept = 2
	ConceptMixed    Concept = 3
)

// IncludesServices indica si el concepto exige fechas de servicio (FchServDesde/Hasta/FchVtoPago).
func (c Concept) IncludesServices() bool {
	return c == ConceptServices || c == ConceptMixed
}

// =============================================================================
// Moneda, alícuotas y ambiente
// =============================================================================

const (
	CurrencyPesos  = "PES" // MonId
	IVARate21ID    = 5     // AlicIva Id para 21%
	ResultApproved = "A"   // Resultado aprobado en FECAEDetResponse
)

// Environment ambiente de AFIP.
type Environment string

const (
	EnvTesting    Environment = "testing"    // homologación
	EnvProduction Environment = "production" // producción
)

// Valid indica si el ambiente es conocido.
func (e Environment) Valid() bool {
	return e == EnvTesting || e == EnvProduction
}

// ArgentinaTZ huso de AFIP (UTC-3, sin horario de verano).
var ArgentinaTZ = time.FixedZone("ART", -3*60*60)

// FormatNumber arma el número visible del comprobante: PPPPP-NNNNNNNN.
func FormatNumber(pointOfSale, number int64) string {
	return fmt.Sprintf("%05d-%08d", pointOfSale, number)
}
