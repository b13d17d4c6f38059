// Package pdf implementa la representación impresa de la factura electrónica AFIP.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  EMISOR: Razón social + CUIT │ LETRA │ FACTURA + PV/Nro/Fecha │
//	│  ─────────────────────────────────────────────────────────  │
//	│  CLIENTE: Nombre + CUIT/DNI + Condición IVA                  │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: Cant | Descripción | P.Unit | Subtotal               │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TOTALES: Neto / IVA 21% (solo A) / TOTAL                    │
//	│  ─────────────────────────────────────────────────────────  │
//	│  PIE AFIP: QR + CAE + Vto. CAE                               │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"context"
	"fmt"
	"strings"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/afip-facturacion/internal/domain/entity"
	"github.com/jhoicas/afip-facturacion/internal/domain/fiscal"
	"github.com/jhoicas/afip-facturacion/pkg/afip"
)

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorWhite   = &props.Color{Red: 255, Green: 255, Blue: 255}
)

// Issuer datos del emisor impresos en el encabezado.
type Issuer struct {
	Name          string
	TaxID         string // CUIT, solo dígitos
	IVACondition  afip.IVACondition
	Address       string
	GrossIncomeID string // IIBB
	ActivityStart string // dd/mm/aaaa
}

// MarotoPDFGenerator genera el PDF con Maroto v2.
type MarotoPDFGenerator struct {
	issuer Issuer
}

func NewMarotoPDFGenerator(issuer Issuer) *MarotoPDFGenerator {
	return &MarotoPDFGenerator{issuer: issuer}
}

// GenerateInvoicePDF genera el PDF y devuelve sus bytes. Sin líneas imprime un
// único ítem "Servicios varios" por el total.
func (g *MarotoPDFGenerator) GenerateInvoicePDF(_ context.Context, inv *entity.Invoice, lines []entity.OrderLine) ([]byte, error) {
	qr, err := fiscal.QRURL(g.issuer.TaxID, inv)
	if err != nil {
		return nil, fmt.Errorf("pdf: %w", err)
	}

	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Factura "+inv.InvoiceType.Letter()+" "+inv.Number(), true).
		WithAuthor(g.issuer.Name, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(g.headerRow(inv))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(customerRow(inv))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))

	m.AddRows(tableHeaderRow())
	for _, r := range tableDetailRows(inv, lines) {
		m.AddRows(r)
	}

	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
	m.AddRows(totalsRow(inv))

	m.AddRows(line.NewRow(3))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	m.AddRows(afipFooterRow(inv, qr))

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return doc.GetBytes(), nil
}

// headerRow: emisor (izq), letra y código (centro), número y fecha (der).
func (g *MarotoPDFGenerator) headerRow(inv *entity.Invoice) core.Row {
	title := "FACTURA"
	if inv.InvoiceType.IsCreditNote() {
		title = "NOTA DE CRÉDITO"
	}
	issued := inv.IssuedAt.In(afip.ArgentinaTZ).Format("02/01/2006")

	return row.New(30).Add(
		col.New(5).Add(
			text.New(g.issuer.Name, props.Text{Style: fontstyle.Bold, Size: 12, Color: colorPrimary, Top: 1}),
			text.New("CUIT: "+afip.FormatTaxID(g.issuer.TaxID), props.Text{Size: 8, Top: 8, Color: colorGray}),
			text.New(g.issuer.IVACondition.String(), props.Text{Size: 8, Top: 12, Color: colorGray}),
			text.New("Domicilio: "+nonEmpty(g.issuer.Address, "—"), props.Text{Size: 8, Top: 16, Color: colorGray}),
			text.New("IIBB: "+nonEmpty(g.issuer.GrossIncomeID, "—"), props.Text{Size: 8, Top: 20, Color: colorGray}),
			text.New("Inicio Act.: "+nonEmpty(g.issuer.ActivityStart, "—"), props.Text{Size: 8, Top: 24, Color: colorGray}),
		),
		col.New(2).Add(
			text.New(inv.InvoiceType.Letter(), props.Text{
				Style: fontstyle.Bold, Size: 28, Align: align.Center, Top: 2,
			}),
			text.New(fmt.Sprintf("Cód. %03d", int(inv.InvoiceType)), props.Text{
				Size: 7, Align: align.Center, Top: 17, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New(title, props.Text{Style: fontstyle.Bold, Size: 12, Align: align.Right, Color: colorPrimary, Top: 1}),
			text.New(fmt.Sprintf("Punto de Venta: %05d", inv.PointOfSale), props.Text{Size: 8, Align: align.Right, Top: 9}),
			text.New(fmt.Sprintf("Comp. Nro: %08d", inv.InvoiceNumber), props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right, Top: 14}),
			text.New("Fecha: "+issued, props.Text{Size: 8, Align: align.Right, Top: 19, Color: colorGray}),
		),
	)
}

// customerRow: datos del receptor.
func customerRow(inv *entity.Invoice) core.Row {
	doc := "Sin identificar"
	switch {
	case inv.BuyerTaxID != "":
		doc = "CUIT: " + afip.FormatTaxID(inv.BuyerTaxID)
	case inv.BuyerNationalID != "":
		doc = "DNI: " + inv.BuyerNationalID
	}
	return row.New(16).Add(
		col.New(12).Add(
			text.New("DATOS DEL CLIENTE", props.Text{Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1}),
			text.New(nonEmpty(inv.BuyerName, "Consumidor Final"), props.Text{Style: fontstyle.Bold, Size: 10, Top: 5}),
			text.New(fmt.Sprintf("%s   |   Condición IVA: %s   |   Condición de Venta: Contado",
				doc, inv.BuyerTaxStatus.String(),
			), props.Text{Size: 8, Top: 11, Color: colorGray}),
		),
	)
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a,
			Color: colorWhite, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Cant.", 1, align.Center),
		h("Descripción", 6, align.Left),
		h("P. Unit.", 2, align.Right),
		h("Subtotal", 3, align.Right),
	).WithStyle(&props.Cell{BackgroundColor: colorPrimary})
}

// tableDetailRows: una fila por línea del pedido. Los precios incluyen IVA.
func tableDetailRows(inv *entity.Invoice, lines []entity.OrderLine) []core.Row {
	if len(lines) == 0 {
		lines = []entity.OrderLine{{Name: "Servicios varios", Quantity: decimal.NewFromInt(1), UnitPrice: inv.TotalAmount}}
	}
	result := make([]core.Row, 0, len(lines))
	for _, l := range lines {
		subtotal := l.UnitPrice.Mul(l.Quantity)
		result = append(result, row.New(7).Add(
			col.New(1).Add(text.New(l.Quantity.String(), props.Text{Size: 8, Align: align.Center, Top: 1})),
			col.New(6).Add(text.New(l.Name, props.Text{Size: 8, Align: align.Left, Top: 1, Left: 1})),
			col.New(2).Add(text.New("$"+formatMoney(l.UnitPrice), props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
			col.New(3).Add(text.New("$"+formatMoney(subtotal), props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
		))
	}
	return result
}

// totalsRow: la factura A discrimina neto e IVA; B y C muestran solo el total.
func totalsRow(inv *entity.Invoice) core.Row {
	label := func(s string, top float64) core.Component {
		return text.New(s, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2, Top: top})
	}
	value := func(s string, top float64) core.Component {
		return text.New(s, props.Text{Size: 9, Align: align.Right, Right: 1, Top: top})
	}
	grand := func(s string, top float64) core.Component {
		return text.New(s, props.Text{Style: fontstyle.Bold, Size: 10, Align: align.Right, Color: colorPrimary, Right: 1, Top: top})
	}

	labels := col.New(3)
	values := col.New(3)
	top := 1.0
	if inv.InvoiceType.RequiresBuyerTaxID() {
		labels.Add(label("Subtotal:", top), label("IVA 21%:", top+6))
		values.Add(value("$"+formatMoney(inv.NetAmount), top), value("$"+formatMoney(inv.VATAmount), top+6))
		top += 12
	}
	labels.Add(grand("TOTAL:", top))
	values.Add(grand("$"+formatMoney(inv.TotalAmount), top))

	return row.New(top+8).Add(col.New(6), labels, values)
}

// afipFooterRow: QR de verificación + CAE y vencimiento.
func afipFooterRow(inv *entity.Invoice, qr string) core.Row {
	return row.New(42).Add(
		col.New(3).Add(code.NewQr(qr, props.Rect{Percent: 95, Center: true})),
		col.New(9).Add(
			text.New("Comprobante Autorizado por AFIP", props.Text{
				Style: fontstyle.Bold, Size: 10, Top: 4, Left: 3, Color: colorPrimary,
			}),
			text.New("CAE: "+inv.CAE, props.Text{Style: fontstyle.Bold, Size: 9, Top: 14, Left: 3}),
			text.New("Vto. CAE: "+inv.CAEDueDate.Format("02/01/2006"), props.Text{Size: 9, Top: 20, Left: 3}),
			text.New("Escanee el código QR para verificar este comprobante en el sitio de AFIP.", props.Text{
				Size: 7, Top: 30, Left: 3, Color: colorGray,
			}),
		),
	)
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

// formatMoney formatea con coma decimal y punto de miles: 1234.5 -> "1.234,50".
func formatMoney(d decimal.Decimal) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac, _ := strings.Cut(s, ".")

	n := len(intPart)
	buf := make([]byte, 0, n+n/3)
	for i, c := range []byte(intPart) {
		if i > 0 && (n-i)%3 == 0 {
			buf = append(buf, '.')
		}
		buf = append(buf, c)
	}
	out := string(buf) + "," + frac
	if neg {
		out = "-" + out
	}
	return out
}
