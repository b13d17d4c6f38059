package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/afip-facturacion/internal/domain"
	"github.com/jhoicas/afip-facturacion/internal/domain/entity"
	"github.com/jhoicas/afip-facturacion/internal/domain/fiscal"
	"github.com/jhoicas/afip-facturacion/internal/domain/repository"
	"github.com/jhoicas/afip-facturacion/pkg/afip"
)

// Config comportamiento del facturador.
type Config struct {
	AutoInvoice bool // facturar al recibir el evento de pedido pagado
	SendEmail   bool
}

// Facturador factura pedidos: padrón, CAE, libro, PDF y email.
type Facturador struct {
	invoicer Invoicer
	invoices repository.InvoiceRepository
	registry TaxRegistry
	pdf      InvoicePDFGenerator
	files    PDFStore
	mailer   InvoiceMailer
	cfg      Config
	log      zerolog.Logger
}

// NewFacturador construye el caso de uso inyectando todas sus dependencias.
// mailer puede ser nil si el envío de correos está deshabilitado.
func NewFacturador(
	invoicer Invoicer,
	invoices repository.InvoiceRepository,
	registry TaxRegistry,
	pdf InvoicePDFGenerator,
	files PDFStore,
	mailer InvoiceMailer,
	cfg Config,
	log zerolog.Logger,
) *Facturador {
	return &Facturador{
		invoicer: invoicer,
		invoices: invoices,
		registry: registry,
		pdf:      pdf,
		files:    files,
		mailer:   mailer,
		cfg:      cfg,
		log:      log,
	}
}

// buyer datos del receptor resueltos para el comprobante.
type buyer struct {
	taxID      string
	nationalID string
	name       string
	status     afip.IVACondition
}

// OnOrderPaid dispara la facturación automática. Con AutoInvoice apagado devuelve nil, false, nil.
func (f *Facturador) OnOrderPaid(ctx context.Context, order *entity.Order) (*entity.Invoice, bool, error) {
	if !f.cfg.AutoInvoice {
		f.log.Debug().Str("order_ref", order.Reference).Msg("facturación automática deshabilitada")
		return nil, false, nil
	}
	return f.InvoiceOrder(ctx, order)
}

// InvoiceOrder emite la factura del pedido. Si el pedido ya tiene una factura
// emitida la devuelve sin volver a llamar a AFIP; created indica si se emitió ahora.
// La consulta previa y la emisión corren con el lock del pedido tomado, de modo
// que dos eventos simultáneos del mismo pedido piden un solo CAE.
func (f *Facturador) InvoiceOrder(ctx context.Context, order *entity.Order) (inv *entity.Invoice, created bool, err error) {
	if order == nil || order.Reference == "" || !order.Total.GreaterThan(decimal.Zero) {
		return nil, false, fmt.Errorf("%w: el pedido necesita referencia y total positivo", domain.ErrInvalidInput)
	}
	log := f.log.With().Str("order_ref", order.Reference).Logger()

	err = f.invoices.WithOrderLock(ctx, order.Reference, func(ctx context.Context) error {
		existing, err := f.invoices.GetIssuedByOrderRef(ctx, order.Reference)
		if err != nil {
			return fmt.Errorf("billing: buscar factura del pedido: %w", err)
		}
		if existing != nil {
			log.Info().Str("cae", existing.CAE).Msg("el pedido ya estaba facturado")
			inv = existing
			return nil
		}
		inv, err = f.issue(ctx, order, log)
		if err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		if !created {
			return nil, false, err
		}
		// la fila ya está en el libro; solo falló la liberación del lock
		log.Warn().Err(err).Str("cae", inv.CAE).Msg("no se pudo liberar el lock del pedido")
	}
	if !created {
		return inv, false, nil
	}

	pdf, err := f.renderAndStore(ctx, inv, nil)
	if err != nil {
		log.Error().Err(err).Msg("no se pudo generar el PDF de la factura")
	}

	if f.cfg.SendEmail && f.mailer != nil {
		if err := f.mailer.SendInvoice(ctx, order, inv, pdf); err != nil {
			log.Error().Err(err).Msg("no se pudo enviar la factura por email")
		}
	}
	return inv, true, nil
}

// issue pide el CAE y registra la factura en el libro.
func (f *Facturador) issue(ctx context.Context, order *entity.Order, log zerolog.Logger) (*entity.Invoice, error) {
	b := f.resolveBuyer(ctx, order)
	net, vat := fiscal.SplitVATInclusive(order.Total)
	req := &entity.InvoiceRequest{
		Concept:         fiscal.ConceptForLines(order.Lines),
		BuyerTaxID:      b.taxID,
		BuyerNationalID: b.nationalID,
		BuyerTaxStatus:  b.status,
		NetAmount:       net,
		VATAmount:       vat,
		TotalAmount:     order.Total,
	}

	res, err := f.invoicer.Issue(ctx, req)
	if err != nil {
		log.Error().Err(err).Str("category", afip.Category(err)).Msg("no se pudo emitir la factura")
		return nil, err
	}

	inv := &entity.Invoice{
		OrderRef:        order.Reference,
		InvoiceType:     res.InvoiceType,
		PointOfSale:     res.PointOfSale,
		InvoiceNumber:   res.InvoiceNumber,
		CAE:             res.CAE,
		CAEDueDate:      res.CAEDueDate,
		BuyerTaxID:      b.taxID,
		BuyerNationalID: b.nationalID,
		BuyerName:       b.name,
		BuyerTaxStatus:  b.status,
		NetAmount:       net,
		VATAmount:       vat,
		TotalAmount:     res.TotalAmount,
		Lines:           order.Lines,
		Status:          entity.InvoiceStatusIssued,
		IssuedAt:        res.IssuedAt,
	}
	if err := f.invoices.Create(ctx, inv); err != nil {
		// CAE otorgado sin registro local: queda en el log para conciliar a mano.
		log.Error().Err(err).
			Str("cae", res.CAE).
			Str("numero", res.Number()).
			Int("tipo", int(res.InvoiceType)).
			Msg("CAE otorgado pero no se pudo registrar la factura")
		return nil, fmt.Errorf("billing: registrar factura con CAE %s: %w", res.CAE, err)
	}
	log.Info().Str("cae", inv.CAE).Str("numero", inv.Number()).Msg("factura emitida")
	return inv, nil
}

// resolveBuyer: CUIT en padrón, si no la condición declarada en el checkout,
// si no consumidor final.
func (f *Facturador) resolveBuyer(ctx context.Context, order *entity.Order) buyer {
	taxID := afip.ExtractDigits(order.BuyerTaxID)
	nationalID := afip.ExtractDigits(order.BuyerNationalID)

	if taxID != "" && f.registry != nil {
		tp, err := f.registry.Lookup(ctx, taxID)
		switch {
		case err != nil:
			f.log.Warn().Err(err).Str("order_ref", order.Reference).Str("cuit", taxID).Msg("padrón no disponible, se usan los datos del checkout")
		case tp != nil && tp.Found:
			return buyer{taxID: taxID, name: tp.Name, status: tp.IVAConditionCode}
		}
	}
	if order.BuyerTaxStatus != 0 {
		return buyer{taxID: taxID, nationalID: nationalID, name: order.BuyerName(), status: afip.IVACondition(order.BuyerTaxStatus)}
	}
	return buyer{nationalID: nationalID, name: order.BuyerName(), status: afip.IVAConsumidorFinal}
}

func pdfName(inv *entity.Invoice) string {
	return fmt.Sprintf("factura-%s-%s.pdf", inv.InvoiceType.Letter(), inv.Number())
}

// renderAndStore genera y archiva el PDF. Sin lines usa las del libro.
func (f *Facturador) renderAndStore(ctx context.Context, inv *entity.Invoice, lines []entity.OrderLine) ([]byte, error) {
	if len(lines) == 0 {
		lines = inv.Lines
	}
	pdf, err := f.pdf.GenerateInvoicePDF(ctx, inv, lines)
	if err != nil {
		return nil, fmt.Errorf("generar PDF: %w", err)
	}
	p, err := f.files.Save(ctx, pdfName(inv), pdf)
	if err != nil {
		return pdf, err
	}
	if err := f.invoices.SetPDFPath(ctx, inv.ID, p); err != nil {
		return pdf, fmt.Errorf("anotar pdf_path: %w", err)
	}
	inv.PDFPath = p
	return pdf, nil
}

// GetOrderInvoice devuelve la factura emitida del pedido.
func (f *Facturador) GetOrderInvoice(ctx context.Context, orderRef string) (*entity.Invoice, error) {
	inv, err := f.invoices.GetIssuedByOrderRef(ctx, orderRef)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, domain.ErrNotFound
	}
	return inv, nil
}

// RegeneratePDF vuelve a generar el PDF y actualiza pdf_path. No toca los datos
// fiscales; sin lines se imprimen las líneas registradas con la factura.
func (f *Facturador) RegeneratePDF(ctx context.Context, invoiceID string, lines []entity.OrderLine) (*entity.Invoice, error) {
	inv, err := f.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, domain.ErrNotFound
	}
	if _, err := f.renderAndStore(ctx, inv, lines); err != nil {
		return nil, fmt.Errorf("billing: regenerar PDF: %w", err)
	}
	f.log.Info().Str("order_ref", inv.OrderRef).Str("pdf", inv.PDFPath).Msg("PDF regenerado")
	return inv, nil
}

// DownloadPDF devuelve el PDF archivado; si nunca se generó lo genera ahora con
// las líneas registradas.
func (f *Facturador) DownloadPDF(ctx context.Context, invoiceID string) (pdf []byte, filename string, err error) {
	inv, err := f.invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, "", err
	}
	if inv == nil {
		return nil, "", domain.ErrNotFound
	}
	if inv.PDFPath != "" {
		pdf, err = f.files.Load(ctx, inv.PDFPath)
		if err == nil {
			return pdf, pdfName(inv), nil
		}
		f.log.Warn().Err(err).Str("pdf", inv.PDFPath).Msg("PDF archivado no disponible, se regenera")
	}
	pdf, err = f.renderAndStore(ctx, inv, nil)
	if err != nil && pdf == nil {
		return nil, "", fmt.Errorf("billing: generar PDF: %w", err)
	}
	return pdf, pdfName(inv), nil
}

// LookupTaxpayer valida el CUIT y consulta el padrón.
func (f *Facturador) LookupTaxpayer(ctx context.Context, raw string) (*entity.Taxpayer, error) {
	cuit, err := afip.ValidateTaxID(raw)
	if err != nil {
		return nil, err
	}
	if f.registry == nil {
		return &entity.Taxpayer{TaxID: afip.FormatTaxID(cuit)}, nil
	}
	tp, err := f.registry.Lookup(ctx, cuit)
	if err != nil {
		var ae *afip.Error
		if errors.As(err, &ae) && ae.Kind == afip.KindInvalidInput {
			return nil, err
		}
		// CUIT válido aunque el padrón no responda.
		f.log.Warn().Err(err).Str("cuit", cuit).Msg("padrón no disponible")
		return &entity.Taxpayer{TaxID: afip.FormatTaxID(cuit)}, nil
	}
	return tp, nil
}
