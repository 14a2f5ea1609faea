package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"

	"github.com/Domenick1991/visitbooking/internal/domain"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// MessageSender delivers a composed message. *gomail.Dialer implements it.
type MessageSender interface {
	DialAndSend(m ...*gomail.Message) error
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func NewDialer(cfg Config) *gomail.Dialer {
	return gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
}

// Dispatcher sends booking confirmation emails with the receipt attached.
type Dispatcher struct {
	sender MessageSender
	from   string
	log    *zap.Logger
}

func NewDispatcher(sender MessageSender, from string, log *zap.Logger) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{sender: sender, from: from, log: log}
}

var confirmationTmpl = template.Must(template.New("confirmation").Parse(`<p>Dear {{.Booking.VisitorName}},</p>
<p>Your visit to <strong>{{.Institution.Name}}</strong> is confirmed.</p>
<table>
<tr><td>Booking ID</td><td>{{.Booking.BookingID}}</td></tr>
<tr><td>Date</td><td>{{.Booking.VisitDate}}</td></tr>
<tr><td>Time</td><td>{{.Booking.VisitTime}}</td></tr>
<tr><td>Amount paid</td><td>{{.Booking.Currency}} {{.Amount}}</td></tr>
<tr><td>Payment ID</td><td>{{.Booking.PaymentID}}</td></tr>
</table>
{{if .Institution.Address}}<p>{{.Institution.Address}}, {{.Institution.City}}, {{.Institution.State}}</p>{{end}}
<p>Your receipt is attached{{if .Booking.PDFURL}} and also available at <a href="{{.Booking.PDFURL}}">{{.Booking.PDFURL}}</a>{{end}}.</p>
`))

// Compose builds the confirmation message without sending it.
func (d *Dispatcher) Compose(b domain.Booking, inst domain.Institution, receipt []byte) (*gomail.Message, error) {
	var body bytes.Buffer
	err := confirmationTmpl.Execute(&body, struct {
		Booking     domain.Booking
		Institution domain.Institution
		Amount      string
	}{b, inst, b.Amount.StringFixed(2)})
	if err != nil {
		return nil, fmt.Errorf("render email body: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", d.from)
	m.SetHeader("To", b.VisitorEmail)
	m.SetHeader("Subject", fmt.Sprintf("Booking confirmed: %s (%s)", inst.Name, b.BookingID))
	m.SetBody("text/html", body.String())
	if len(receipt) > 0 {
		m.Attach("receipt-"+b.BookingID+".pdf",
			gomail.SetHeader(map[string][]string{"Content-Type": {"application/pdf"}}),
			gomail.SetCopyFunc(func(w io.Writer) error {
				_, err := w.Write(receipt)
				return err
			}),
		)
	}
	return m, nil
}

// SendConfirmation composes and sends the confirmation email. The SMTP
// exchange has no context support, so ctx only bounds how long the caller
// waits; a late send still completes in the background.
func (d *Dispatcher) SendConfirmation(ctx context.Context, b domain.Booking, inst domain.Institution, receipt []byte) error {
	if b.VisitorEmail == "" {
		return fmt.Errorf("booking %s has no visitor email", b.BookingID)
	}
	m, err := d.Compose(b, inst, receipt)
	if err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- d.sender.DialAndSend(m) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send confirmation for %s: %w", b.BookingID, err)
		}
		d.log.Info("confirmation email sent", zap.String("booking_id", b.BookingID), zap.String("to", b.VisitorEmail))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send confirmation for %s: %w", b.BookingID, ctx.Err())
	}
}
