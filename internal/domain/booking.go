package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
	// BookingStatusCompleted is understood by readers but no operation produces it.
	BookingStatusCompleted BookingStatus = "completed"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusPending, BookingStatusConfirmed, BookingStatusCancelled, BookingStatusCompleted:
		return true
	}
	return false
}

// Booking is a visit to an institution. Visitor contact fields are a
// snapshot taken at creation; Amount never changes after insert.
type Booking struct {
	BookingID     string
	InstitutionID string
	VisitorID     string
	VisitorName   string
	VisitorEmail  string
	VisitorPhone  string
	VisitDate     string
	VisitTime     string
	Amount        decimal.Decimal
	Currency      string
	Notes         string
	Status        BookingStatus
	OrderID       string
	PaymentID     string
	PDFURL        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ReceiptKey is the object storage key of the booking's receipt.
func ReceiptKey(bookingID string) string {
	return "bookings/" + bookingID + "/receipt.pdf"
}

// BookingView is a booking joined with the institution display fields.
type BookingView struct {
	Booking
	InstitutionName    string
	InstitutionAddress string
	InstitutionCity    string
	InstitutionState   string
	InstitutionContact string
	VisitingHours      string
}
