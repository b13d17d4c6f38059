// Package notify envía la factura emitida al cliente por correo (SMTP).
package notify

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/gomail.v2"

	"github.com/jhoicas/afip-facturacion/internal/domain/entity"
)

// Config servidor SMTP y remitente.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// sender lo implementa *gomail.Dialer.
type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer envía el PDF de la factura adjunto.
type Mailer struct {
	dialer  sender
	from    string
	printer *message.Printer
	log     zerolog.Logger
}

func NewMailer(cfg Config, log zerolog.Logger) *Mailer {
	return &Mailer{
		dialer:  gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:    cfg.From,
		printer: message.NewPrinter(language.MustParse("es-AR")),
		log:     log,
	}
}

// SendInvoice arma y envía el correo. Sin email del comprador no hace nada.
func (m *Mailer) SendInvoice(ctx context.Context, order *entity.Order, inv *entity.Invoice, pdf []byte) error {
	if order.BuyerEmail == "" {
		m.log.Debug().Str("order_ref", order.Reference).Msg("pedido sin email, no se envía la factura")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", order.BuyerEmail)
	msg.SetHeader("Subject", fmt.Sprintf("Tu factura del pedido #%s", order.Reference))
	msg.SetBody("text/plain", m.body(order, inv))
	if len(pdf) > 0 {
		msg.Attach(fmt.Sprintf("factura-%s-%s.pdf", inv.InvoiceType.Letter(), inv.Number()),
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(pdf)
				return err
			}),
			gomail.SetHeader(map[string][]string{"Content-Type": {"application/pdf"}}),
		)
	}

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("enviar factura por email: %w", err)
	}
	m.log.Info().Str("order_ref", order.Reference).Str("to", order.BuyerEmail).Msg("factura enviada por email")
	return nil
}

func (m *Mailer) body(order *entity.Order, inv *entity.Invoice) string {
	total, _ := inv.TotalAmount.Round(2).Float64()
	return m.printer.Sprintf(
		"Hola %s,\n\nAdjuntamos la factura de tu pedido #%s.\n\nFactura: %s %s\nTotal: $ %.2f\nCAE: %s\nVto CAE: %s\n\n¡Gracias!",
		order.BuyerFirstName, order.Reference,
		inv.InvoiceType.Letter(), inv.Number(), total, inv.CAE, inv.CAEDueDate.Format("02/01/2006"),
	)
}
