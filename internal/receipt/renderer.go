// Package receipt renders booking receipts as PDF documents in memory.
package receipt

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/Domenick1991/visitbooking/internal/domain"
	"github.com/go-pdf/fpdf"
)

const footerText = "This receipt confirms a paid visit booking. Please carry it (printed or on your phone) " +
	"along with a photo ID on the day of your visit. Visit dates and times are subject to the institution's " +
	"visiting hours. For changes or cancellations contact the institution directly."

type Renderer struct {
	compress bool
}

type Option func(*Renderer)

// WithCompression toggles content stream compression. Uncompressed output
// keeps the receipt text searchable in the raw bytes.
func WithCompression(on bool) Option {
	return func(r *Renderer) {
		r.compress = on
	}
}

func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render produces the receipt for a booking. Output depends only on the two
// inputs, neither of which is modified.
func (r *Renderer) Render(b domain.Booking, inst domain.Institution) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(r.compress)
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(b.CreatedAt)
	pdf.SetModificationDate(b.CreatedAt)
	pdf.SetTitle("Booking receipt "+b.BookingID, false)
	pdf.SetAuthor(inst.Name, false)
	pdf.SetMargins(15, 15, 15)
	pdf.SetAutoPageBreak(true, 25)
	pdf.AliasNbPages("")

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-20)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(110, 110, 110)
		pdf.CellFormat(0, 5, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	// institution block
	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetTextColor(20, 40, 90)
	pdf.CellFormat(0, 10, tr(inst.Name), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(60, 60, 60)
	if addr := joinNonEmpty(", ", inst.Address, inst.City, inst.State); addr != "" {
		pdf.CellFormat(0, 5, tr(addr), "", 1, "L", false, 0, "")
	}
	if inst.Contact != "" {
		pdf.CellFormat(0, 5, tr("Contact: "+inst.Contact), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)
	pdf.SetDrawColor(20, 40, 90)
	pdf.Line(15, pdf.GetY(), 195, pdf.GetY())
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, 8, "Visit Booking Receipt", "", 1, "C", false, 0, "")
	pdf.Ln(4)

	section(pdf, "Booking")
	row(pdf, tr, "Booking ID", b.BookingID)
	row(pdf, tr, "Status", strings.ToUpper(string(b.Status)))
	row(pdf, tr, "Visit date", b.VisitDate)
	row(pdf, tr, "Visit time", b.VisitTime)
	if inst.VisitingHours != "" {
		row(pdf, tr, "Visiting hours", inst.VisitingHours)
	}
	if !b.CreatedAt.IsZero() {
		row(pdf, tr, "Booked on", b.CreatedAt.UTC().Format("2006-01-02 15:04 MST"))
	}
	pdf.Ln(3)

	section(pdf, "Payment")
	row(pdf, tr, "Amount", b.Currency+" "+b.Amount.StringFixed(2))
	row(pdf, tr, "Payment ID", b.PaymentID)
	row(pdf, tr, "Order ID", b.OrderID)
	pdf.Ln(3)

	section(pdf, "Visitor")
	row(pdf, tr, "Name", b.VisitorName)
	row(pdf, tr, "Email", b.VisitorEmail)
	if b.VisitorPhone != "" {
		row(pdf, tr, "Phone", b.VisitorPhone)
	}
	if b.Notes != "" {
		row(pdf, tr, "Notes", b.Notes)
	}
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetTextColor(90, 90, 90)
	pdf.MultiCell(0, 4.5, footerText, "T", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRender, err)
	}
	return buf.Bytes(), nil
}

func section(pdf *fpdf.Fpdf, title string) {
	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetFillColor(230, 236, 248)
	pdf.SetTextColor(20, 40, 90)
	pdf.CellFormat(0, 7, title, "", 1, "L", true, 0, "")
	pdf.Ln(1)
}

func row(pdf *fpdf.Fpdf, tr func(string) string, label, value string) {
	if value == "" {
		value = "-"
	}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetTextColor(60, 60, 60)
	pdf.CellFormat(45, 6, label, "", 0, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(0, 0, 0)
	pdf.MultiCell(0, 6, tr(value), "", "L", false)
}

func joinNonEmpty(sep string, parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}
