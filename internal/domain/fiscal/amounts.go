package fiscal

import (
	"github.com/shopspring/decimal"

	"github.com/jhoicas/afip-facturacion/internal/domain/entity"
	"github.com/jhoicas/afip-facturacion/pkg/afip"
)

var vatFactor21 = decimal.RequireFromString("1.21")

// SplitVATInclusive separa un precio final con IVA 21% incluido en neto e IVA.
// El IVA se obtiene por diferencia para que neto + IVA == total siempre.
func SplitVATInclusive(total decimal.Decimal) (net, vat decimal.Decimal) {
	total = total.Round(2)
	net = total.DivRound(vatFactor21, 8).Round(2)
	vat = total.Sub(net)
	return net, vat
}

// ConceptForLines deduce el concepto: solo bienes -> 1, solo servicios -> 2, ambos -> 3.
func ConceptForLines(lines []entity.OrderLine) afip.Concept {
	var goods, services bool
	for _, l := range lines {
		if l.Virtual {
			services = true
		} else {
			goods = true
		}
	}
	switch {
	case goods && services:
		return afip.ConceptMixed
	case services:
		return afip.ConceptServices
	default:
		return afip.ConceptProducts
	}
}
