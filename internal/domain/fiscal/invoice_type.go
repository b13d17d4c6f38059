// Package fiscal contiene las reglas de dominio de facturación electrónica AFIP:
// tipo de comprobante según régimen, validación de solicitudes y cálculo de importes.
package fiscal

import "github.com/jhoicas/afip-facturacion/pkg/afip"

// ResolveInvoiceType determina el tipo de comprobante:
//   - Monotributo emite siempre Factura C.
//   - Responsable Inscripto emite A a otro RI y B al resto.
//   - Cualquier otro régimen emite B.
func ResolveInvoiceType(issuer afip.Regime, buyer afip.IVACondition) afip.InvoiceType {
	switch issuer {
	case afip.RegimeMonotributo:
		return afip.InvoiceTypeC
	case afip.RegimeResponsableInscripto:
		if buyer == afip.IVAResponsableInscripto {
			return afip.InvoiceTypeA
		}
		return afip.InvoiceTypeB
	default:
		return afip.InvoiceTypeB
	}
}
