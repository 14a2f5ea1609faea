package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Domenick1991/visitbooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ErrNotPending is returned by Confirm when the row is no longer pending.
var ErrNotPending = errors.New("booking is not pending")

type BookingRepository interface {
	Create(ctx context.Context, booking *domain.Booking) error
	GetByID(ctx context.Context, bookingID string) (*domain.Booking, error)
	GetView(ctx context.Context, bookingID string) (*domain.BookingView, error)
	ListByVisitor(ctx context.Context, visitorID string) ([]domain.BookingView, error)
	SetOrderID(ctx context.Context, bookingID, orderID string) error
	Confirm(ctx context.Context, bookingID, paymentID, pdfURL string) (*domain.Booking, error)
	Cancel(ctx context.Context, bookingID string) (*domain.Booking, error)
}

type PGBookingRepository struct {
	db DB
}

func NewBookingRepository(db DB) BookingRepository {
	return &PGBookingRepository{db: db}
}

const bookingColumns = `b.booking_id, b.institution_id, b.visitor_id, b.visitor_name, b.visitor_email, b.visitor_phone,
	b.visit_date, b.visit_time, b.amount::text, b.currency, b.notes, b.status,
	COALESCE(b.order_id, ''), COALESCE(b.payment_id, ''), COALESCE(b.pdf_url, ''), b.created_at, b.updated_at`

const viewColumns = bookingColumns + `,
	i.name, i.address, i.city, i.state, i.contact, COALESCE(i.visiting_hours, '')`

func (r *PGBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	booking.Status = domain.BookingStatusPending
	err := r.db.QueryRow(ctx, `INSERT INTO bookings (booking_id, institution_id, visitor_id, visitor_name, visitor_email, visitor_phone,
		visit_date, visit_time, amount, currency, notes, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`,
		booking.BookingID, booking.InstitutionID, booking.VisitorID, booking.VisitorName, booking.VisitorEmail, booking.VisitorPhone,
		booking.VisitDate, booking.VisitTime, booking.Amount.String(), booking.Currency, booking.Notes, string(booking.Status)).
		Scan(&booking.CreatedAt, &booking.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert booking %s: %w", booking.BookingID, err)
	}
	return nil
}

func (r *PGBookingRepository) GetByID(ctx context.Context, bookingID string) (*domain.Booking, error) {
	row := r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE b.booking_id=$1`, bookingID)
	b, err := scanBooking(row)
	if err != nil {
		return nil, notFound(err, bookingID)
	}
	return b, nil
}

func (r *PGBookingRepository) GetView(ctx context.Context, bookingID string) (*domain.BookingView, error) {
	row := r.db.QueryRow(ctx, `SELECT `+viewColumns+`
		FROM bookings b JOIN institutions i ON i.id = b.institution_id
		WHERE b.booking_id=$1`, bookingID)
	v, err := scanView(row)
	if err != nil {
		return nil, notFound(err, bookingID)
	}
	return v, nil
}

func (r *PGBookingRepository) ListByVisitor(ctx context.Context, visitorID string) ([]domain.BookingView, error) {
	rows, err := r.db.Query(ctx, `SELECT `+viewColumns+`
		FROM bookings b JOIN institutions i ON i.id = b.institution_id
		WHERE b.visitor_id=$1
		ORDER BY b.created_at DESC`, visitorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	views := make([]domain.BookingView, 0)
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}
	return views, rows.Err()
}

// SetOrderID records the first gateway order of a pending booking. A
// booking that already has one is left alone and reported as ErrNotPending.
func (r *PGBookingRepository) SetOrderID(ctx context.Context, bookingID, orderID string) error {
	res, err := r.db.Exec(ctx, `UPDATE bookings SET order_id=$2, updated_at=now()
		WHERE booking_id=$1 AND status=$3 AND order_id IS NULL`,
		bookingID, orderID, string(domain.BookingStatusPending))
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrNotPending
	}
	return nil
}

// Confirm moves a pending booking to confirmed and sets payment_id and
// pdf_url in the same statement. It returns ErrNotPending when no pending
// row matched, including when a concurrent call confirmed it first.
func (r *PGBookingRepository) Confirm(ctx context.Context, bookingID, paymentID, pdfURL string) (*domain.Booking, error) {
	row := r.db.QueryRow(ctx, `UPDATE bookings b SET status=$2, payment_id=$3, pdf_url=$4, updated_at=now()
		WHERE b.booking_id=$1 AND b.status=$5
		RETURNING `+bookingColumns,
		bookingID, string(domain.BookingStatusConfirmed), paymentID, pdfURL, string(domain.BookingStatusPending))
	b, err := scanBooking(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotPending
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *PGBookingRepository) Cancel(ctx context.Context, bookingID string) (*domain.Booking, error) {
	row := r.db.QueryRow(ctx, `UPDATE bookings b SET status=$2, updated_at=now()
		WHERE b.booking_id=$1 AND b.status IN ($3, $4)
		RETURNING `+bookingColumns,
		bookingID, string(domain.BookingStatusCancelled), string(domain.BookingStatusPending), string(domain.BookingStatusConfirmed))
	b, err := scanBooking(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotPending
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var (
		b      domain.Booking
		amount string
		status string
	)
	if err := row.Scan(&b.BookingID, &b.InstitutionID, &b.VisitorID, &b.VisitorName, &b.VisitorEmail, &b.VisitorPhone,
		&b.VisitDate, &b.VisitTime, &amount, &b.Currency, &b.Notes, &status,
		&b.OrderID, &b.PaymentID, &b.PDFURL, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	if err := fillBooking(&b, amount, status); err != nil {
		return nil, err
	}
	return &b, nil
}

func scanView(row pgx.Row) (*domain.BookingView, error) {
	var (
		v      domain.BookingView
		amount string
		status string
	)
	b := &v.Booking
	if err := row.Scan(&b.BookingID, &b.InstitutionID, &b.VisitorID, &b.VisitorName, &b.VisitorEmail, &b.VisitorPhone,
		&b.VisitDate, &b.VisitTime, &amount, &b.Currency, &b.Notes, &status,
		&b.OrderID, &b.PaymentID, &b.PDFURL, &b.CreatedAt, &b.UpdatedAt,
		&v.InstitutionName, &v.InstitutionAddress, &v.InstitutionCity, &v.InstitutionState, &v.InstitutionContact, &v.VisitingHours); err != nil {
		return nil, err
	}
	if err := fillBooking(b, amount, status); err != nil {
		return nil, err
	}
	return &v, nil
}

func fillBooking(b *domain.Booking, amount, status string) error {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return fmt.Errorf("booking %s amount %q: %w", b.BookingID, amount, err)
	}
	b.Amount = d
	b.Status = domain.BookingStatus(status)
	return nil
}

func notFound(err error, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("booking %s: %w", id, domain.ErrNotFound)
	}
	return err
}

var _ BookingRepository = (*PGBookingRepository)(nil)
