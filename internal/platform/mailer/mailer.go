// Package mailer delivers transactional storefront email over SMTP.
package mailer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"text/template"

	"github.com/jordan-wright/email"

	"github.com/maison-panier/api/internal/services"
)

// ErrMailerInvalidInput indicates the mailer was configured or called with
// missing fields.
var ErrMailerInvalidInput = errors.New("mailer: invalid input")

// ErrMailerSendFailed indicates the SMTP relay rejected or dropped the message.
var ErrMailerSendFailed = errors.New("mailer: send failed")

// SMTPMailerDeps carries the relay coordinates and sender identity.
type SMTPMailerDeps struct {
	Host     string
	Port     int
	Username string
	Password string
	// From is the sender header, e.g. "Maison Panier <orders@maisonpanier.example>".
	From string
	// StoreName appears in subjects and template copy. Defaults to "Maison Panier".
	StoreName string
	// Send overrides the SMTP delivery, used by tests. Defaults to the
	// plain-auth send against Host:Port.
	Send func(msg *email.Email) error
}

// SMTPMailer renders HTML templates and hands them to an SMTP relay.
type SMTPMailer struct {
	from      string
	storeName string
	send      func(msg *email.Email) error

	confirmationTmpl *template.Template
	welcomeTmpl      *template.Template
}

// NewSMTPMailer builds the transactional mailer. The templates are parsed
// once at construction so rendering failures surface at boot.
func NewSMTPMailer(deps SMTPMailerDeps) (*SMTPMailer, error) {
	from := strings.TrimSpace(deps.From)
	if from == "" {
		return nil, fmt.Errorf("%w: from address is required", ErrMailerInvalidInput)
	}

	storeName := strings.TrimSpace(deps.StoreName)
	if storeName == "" {
		storeName = "Maison Panier"
	}

	send := deps.Send
	if send == nil {
		host := strings.TrimSpace(deps.Host)
		if host == "" {
			return nil, fmt.Errorf("%w: smtp host is required", ErrMailerInvalidInput)
		}
		addr := fmt.Sprintf("%s:%d", host, deps.Port)
		auth := smtp.PlainAuth("", deps.Username, deps.Password, host)
		send = func(msg *email.Email) error {
			return msg.Send(addr, auth)
		}
	}

	confirmationTmpl, err := template.New("orderConfirmation").Parse(orderConfirmationTemplate)
	if err != nil {
		return nil, fmt.Errorf("%w: order confirmation template: %v", ErrMailerInvalidInput, err)
	}
	welcomeTmpl, err := template.New("newsletterWelcome").Parse(newsletterWelcomeTemplate)
	if err != nil {
		return nil, fmt.Errorf("%w: newsletter welcome template: %v", ErrMailerInvalidInput, err)
	}

	return &SMTPMailer{
		from:             from,
		storeName:        storeName,
		send:             send,
		confirmationTmpl: confirmationTmpl,
		welcomeTmpl:      welcomeTmpl,
	}, nil
}

type confirmationLine struct {
	Name     string
	Variant  string
	Quantity int
	Amount   string
}

type confirmationView struct {
	StoreName       string
	Name            string
	PaymentIntentID string
	Lines           []confirmationLine
	Total           string
	ShippingMethod  string
}

// SendOrderConfirmation renders and delivers the order receipt.
func (m *SMTPMailer) SendOrderConfirmation(ctx context.Context, msg services.OrderConfirmationMail) error {
	if m == nil {
		return fmt.Errorf("%w: mailer is not initialised", ErrMailerInvalidInput)
	}
	to := strings.TrimSpace(msg.To)
	if to == "" {
		return fmt.Errorf("%w: recipient address is required", ErrMailerInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrMailerSendFailed, err)
	}

	view := confirmationView{
		StoreName:       m.storeName,
		Name:            strings.TrimSpace(msg.Name),
		PaymentIntentID: msg.PaymentIntentID,
		Total:           formatMinorUnits(msg.Total, msg.Currency),
		ShippingMethod:  msg.ShippingMethod,
	}
	if view.Name == "" {
		view.Name = "there"
	}
	for _, item := range msg.Items {
		qty := item.Quantity
		if qty < 1 {
			qty = 1
		}
		view.Lines = append(view.Lines, confirmationLine{
			Name:     item.Name,
			Variant:  item.VariantName,
			Quantity: qty,
			Amount:   formatMinorUnits(item.Price*int64(qty), msg.Currency),
		})
	}

	var body bytes.Buffer
	if err := m.confirmationTmpl.Execute(&body, view); err != nil {
		return fmt.Errorf("%w: render order confirmation: %v", ErrMailerSendFailed, err)
	}

	out := email.NewEmail()
	out.From = m.from
	out.To = []string{to}
	out.Subject = fmt.Sprintf("%s: your order is confirmed", m.storeName)
	out.HTML = body.Bytes()
	if err := m.send(out); err != nil {
		return fmt.Errorf("%w: %v", ErrMailerSendFailed, err)
	}
	return nil
}

type welcomeView struct {
	StoreName string
}

// SendNewsletterWelcome delivers the subscription welcome note.
func (m *SMTPMailer) SendNewsletterWelcome(ctx context.Context, to string) error {
	if m == nil {
		return fmt.Errorf("%w: mailer is not initialised", ErrMailerInvalidInput)
	}
	to = strings.TrimSpace(to)
	if to == "" {
		return fmt.Errorf("%w: recipient address is required", ErrMailerInvalidInput)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrMailerSendFailed, err)
	}

	var body bytes.Buffer
	if err := m.welcomeTmpl.Execute(&body, welcomeView{StoreName: m.storeName}); err != nil {
		return fmt.Errorf("%w: render newsletter welcome: %v", ErrMailerSendFailed, err)
	}

	out := email.NewEmail()
	out.From = m.from
	out.To = []string{to}
	out.Subject = fmt.Sprintf("Welcome to the %s newsletter", m.storeName)
	out.HTML = body.Bytes()
	if err := m.send(out); err != nil {
		return fmt.Errorf("%w: %v", ErrMailerSendFailed, err)
	}
	return nil
}

// formatMinorUnits renders a minor-unit amount as "12.34 EUR".
func formatMinorUnits(amount int64, currency string) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	code := strings.ToUpper(strings.TrimSpace(currency))
	if code == "" {
		code = "EUR"
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, amount/100, amount%100, code)
}

const orderConfirmationTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Order confirmation</title>
    <style>
        body { font-family: Georgia, serif; line-height: 1.6; color: #2b2b2b; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #1f3a2d; color: #f5f0e6; padding: 20px; text-align: center; }
        .content { padding: 30px; background-color: #faf7f0; }
        table { width: 100%; border-collapse: collapse; }
        td, th { padding: 8px 4px; border-bottom: 1px solid #e4ddcc; text-align: left; }
        .total { font-weight: bold; }
        .footer { padding: 20px; text-align: center; font-size: 12px; color: #777; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>{{.StoreName}}</h1>
        </div>
        <div class="content">
            <p>Hello {{.Name}},</p>
            <p>Thank you for your order. Your payment has been received and your baskets are being prepared.</p>
            <table>
                <tr><th>Item</th><th>Qty</th><th>Amount</th></tr>
                {{range .Lines}}<tr><td>{{.Name}}{{if .Variant}} ({{.Variant}}){{end}}</td><td>{{.Quantity}}</td><td>{{.Amount}}</td></tr>
                {{end}}<tr class="total"><td>Total</td><td></td><td>{{.Total}}</td></tr>
            </table>
            {{if .ShippingMethod}}<p>Shipping: {{.ShippingMethod}}</p>{{end}}
            <p>Order reference: {{.PaymentIntentID}}</p>
        </div>
        <div class="footer">
            <p>This message was sent automatically, please do not reply.</p>
            <p>&copy; {{.StoreName}}</p>
        </div>
    </div>
</body>
</html>
`

const newsletterWelcomeTemplate = `<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Welcome</title>
    <style>
        body { font-family: Georgia, serif; line-height: 1.6; color: #2b2b2b; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background-color: #1f3a2d; color: #f5f0e6; padding: 20px; text-align: center; }
        .content { padding: 30px; background-color: #faf7f0; }
        .footer { padding: 20px; text-align: center; font-size: 12px; color: #777; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>{{.StoreName}}</h1>
        </div>
        <div class="content">
            <p>Welcome to the {{.StoreName}} newsletter.</p>
            <p>You will be the first to hear about seasonal hampers, limited collections and private offers.</p>
        </div>
        <div class="footer">
            <p>This message was sent automatically, please do not reply.</p>
            <p>&copy; {{.StoreName}}</p>
        </div>
    </div>
</body>
</html>
`

var _ services.Mailer = (*SMTPMailer)(nil)
