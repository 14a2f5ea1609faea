package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/visitbooking/internal/domain"
	"github.com/Domenick1991/visitbooking/internal/kafka"
	"github.com/Domenick1991/visitbooking/internal/payment"
	"github.com/Domenick1991/visitbooking/internal/repository"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type BookingUseCase interface {
	CreateBooking(ctx context.Context, input CreateBookingInput) (*CreateBookingResult, error)
	RetryOrder(ctx context.Context, bookingID string) (*payment.Order, error)
	VerifyPayment(ctx context.Context, input VerifyPaymentInput) (*VerifyResult, error)
	GetBookingDetails(ctx context.Context, bookingID string) (*domain.BookingView, error)
	ListVisitorBookings(ctx context.Context, visitorID string) ([]domain.BookingView, error)
	CancelBooking(ctx context.Context, bookingID string) (*domain.Booking, error)
}

type PaymentGateway interface {
	CreateOrder(ctx context.Context, amount decimal.Decimal, currency, receipt string) (*payment.Order, error)
	FetchOrder(ctx context.Context, orderID string) (*payment.Order, error)
	VerifySignature(orderID, paymentID, signature string) bool
}

type ReceiptRenderer interface {
	Render(b domain.Booking, inst domain.Institution) ([]byte, error)
}

type ReceiptStore interface {
	PutReceipt(ctx context.Context, bookingID string, pdf []byte) (string, error)
}

type Notifier interface {
	SendConfirmation(ctx context.Context, b domain.Booking, inst domain.Institution, receipt []byte) error
}

// Cache holds booking views and the per-booking verification lock.
// SetBookingView must drop the write when the booking was invalidated
// after the generation returned by GetBookingView.
type Cache interface {
	GetBookingView(ctx context.Context, bookingID string) (*domain.BookingView, int64, error)
	SetBookingView(ctx context.Context, view *domain.BookingView, gen int64) error
	InvalidateBooking(ctx context.Context, bookingID string) error
	LockBooking(ctx context.Context, bookingID string) (func(), error)
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type VisitorContact struct {
	Name  string `json:"name" validate:"required,max=200"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"omitempty,max=20"`
}

type CreateBookingInput struct {
	VisitorID     string          `validate:"required"`
	InstitutionID string          `validate:"required"`
	VisitDate     string          `validate:"required,datetime=2006-01-02"`
	VisitTime     string          `validate:"required,datetime=15:04"`
	Amount        decimal.Decimal `validate:"-"`
	Notes         string          `validate:"max=1000"`
	Contact       VisitorContact
}

type CreateBookingResult struct {
	Booking *domain.Booking
	Order   *payment.Order
}

// OrderError means the booking was stored but no gateway order exists for
// it yet. The booking stays pending and RetryOrder can be called.
type OrderError struct {
	BookingID string
	Err       error
}

func (e *OrderError) Error() string {
	return fmt.Sprintf("booking %s created but payment order failed: %v", e.BookingID, e.Err)
}

func (e *OrderError) Unwrap() error { return e.Err }

type BookingService struct {
	bookings     repository.BookingRepository
	institutions repository.InstitutionRepository
	gateway      PaymentGateway
	renderer     ReceiptRenderer
	store        ReceiptStore
	notifier     Notifier
	cache        Cache
	producer     Producer
	eventsTopic  string
	currency     string
	validate     *validator.Validate
	log          *zap.Logger
	now          func() time.Time
	newID        func(time.Time) string

	gatewayTimeout time.Duration
	storageTimeout time.Duration
	emailTimeout   time.Duration
}

type BookingServiceOption func(*BookingService)

func WithCache(cache Cache) BookingServiceOption {
	return func(s *BookingService) {
		s.cache = cache
	}
}

func WithEvents(producer Producer, topic string) BookingServiceOption {
	return func(s *BookingService) {
		s.producer = producer
		s.eventsTopic = topic
	}
}

func WithCurrency(currency string) BookingServiceOption {
	return func(s *BookingService) {
		s.currency = currency
	}
}

func WithTimeouts(gateway, storage, email time.Duration) BookingServiceOption {
	return func(s *BookingService) {
		s.gatewayTimeout = gateway
		s.storageTimeout = storage
		s.emailTimeout = email
	}
}

func WithLogger(log *zap.Logger) BookingServiceOption {
	return func(s *BookingService) {
		s.log = log
	}
}

func withClock(now func() time.Time) BookingServiceOption {
	return func(s *BookingService) {
		s.now = now
	}
}

func withIDGenerator(gen func(time.Time) string) BookingServiceOption {
	return func(s *BookingService) {
		s.newID = gen
	}
}

func NewBookingService(
	bookings repository.BookingRepository,
	institutions repository.InstitutionRepository,
	gateway PaymentGateway,
	renderer ReceiptRenderer,
	store ReceiptStore,
	notifier Notifier,
	opts ...BookingServiceOption,
) *BookingService {
	service := &BookingService{
		bookings:       bookings,
		institutions:   institutions,
		gateway:        gateway,
		renderer:       renderer,
		store:          store,
		notifier:       notifier,
		currency:       "INR",
		validate:       validator.New(),
		log:            zap.NewNop(),
		now:            time.Now,
		newID:          newBookingID,
		gatewayTimeout: 10 * time.Second,
		storageTimeout: 15 * time.Second,
		emailTimeout:   10 * time.Second,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// newBookingID returns ids like BK20250601-3F9A1C2B.
func newBookingID(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return "BK" + now.UTC().Format("20060102") + "-" + suffix
}

func (s *BookingService) CreateBooking(ctx context.Context, input CreateBookingInput) (*CreateBookingResult, error) {
	if err := s.validateCreate(input); err != nil {
		return nil, err
	}

	booking := &domain.Booking{
		BookingID:     s.newID(s.now()),
		InstitutionID: input.InstitutionID,
		VisitorID:     input.VisitorID,
		VisitorName:   strings.TrimSpace(input.Contact.Name),
		VisitorEmail:  strings.TrimSpace(input.Contact.Email),
		VisitorPhone:  strings.TrimSpace(input.Contact.Phone),
		VisitDate:     input.VisitDate,
		VisitTime:     input.VisitTime,
		Amount:        input.Amount,
		Currency:      s.currency,
		Notes:         input.Notes,
		Status:        domain.BookingStatusPending,
	}

	// the row must be committed before the gateway hears about it
	if err := s.bookings.Create(ctx, booking); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}
	s.log.Info("booking created",
		zap.String("booking_id", booking.BookingID),
		zap.String("institution_id", booking.InstitutionID),
		zap.String("amount", booking.Amount.String()))
	s.publish(ctx, "booking_created", booking)

	order, err := s.openOrder(ctx, booking)
	if err != nil {
		s.log.Error("payment order failed", zap.String("booking_id", booking.BookingID), zap.Error(err))
		return nil, &OrderError{BookingID: booking.BookingID, Err: err}
	}
	return &CreateBookingResult{Booking: booking, Order: order}, nil
}

func (s *BookingService) validateCreate(input CreateBookingInput) error {
	if err := s.validate.Struct(input); err != nil {
		return fmt.Errorf("%w: %s", domain.ErrValidation, err.Error())
	}
	if !input.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	}
	if !input.Amount.Equal(input.Amount.Round(2)) {
		return fmt.Errorf("%w: amount has more than two decimal places", domain.ErrValidation)
	}
	return nil
}

// RetryOrder opens a gateway order for a pending booking whose first order
// attempt failed. A booking that already holds an order gets that order
// back, so a payment made against it still verifies.
func (s *BookingService) RetryOrder(ctx context.Context, bookingID string) (*payment.Order, error) {
	if bookingID == "" {
		return nil, fmt.Errorf("%w: booking id is required", domain.ErrValidation)
	}
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != domain.BookingStatusPending {
		return nil, fmt.Errorf("%w: booking %s is %s", domain.ErrConflict, bookingID, booking.Status)
	}
	if booking.OrderID != "" {
		return storedOrder(booking), nil
	}
	return s.openOrder(ctx, booking)
}

func storedOrder(b *domain.Booking) *payment.Order {
	return &payment.Order{
		ID:       b.OrderID,
		Amount:   payment.ToMinorUnits(b.Amount),
		Currency: b.Currency,
		Receipt:  b.BookingID,
		Status:   "created",
	}
}

func (s *BookingService) openOrder(ctx context.Context, booking *domain.Booking) (*payment.Order, error) {
	octx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	order, err := s.gateway.CreateOrder(octx, booking.Amount, booking.Currency, booking.BookingID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	if want := payment.ToMinorUnits(booking.Amount); order.Amount != want {
		return nil, fmt.Errorf("%w: order %s amount %d, expected %d", domain.ErrUpstream, order.ID, order.Amount, want)
	}

	err = s.bookings.SetOrderID(ctx, booking.BookingID, order.ID)
	if errors.Is(err, repository.ErrNotPending) {
		// a concurrent call stored its order first; hand that one out
		current, gerr := s.bookings.GetByID(ctx, booking.BookingID)
		if gerr == nil && current.Status == domain.BookingStatusPending && current.OrderID != "" {
			booking.OrderID = current.OrderID
			return storedOrder(current), nil
		}
	}
	if err != nil {
		s.log.Warn("failed to store order id",
			zap.String("booking_id", booking.BookingID),
			zap.String("order_id", order.ID),
			zap.Error(err))
	} else {
		booking.OrderID = order.ID
	}
	return order, nil
}

func (s *BookingService) GetBookingDetails(ctx context.Context, bookingID string) (*domain.BookingView, error) {
	if bookingID == "" {
		return nil, fmt.Errorf("%w: booking id is required", domain.ErrValidation)
	}
	var (
		gen       int64
		cacheable bool
	)
	if s.cache != nil {
		cached, g, err := s.cache.GetBookingView(ctx, bookingID)
		if err == nil && cached != nil {
			return cached, nil
		}
		gen, cacheable = g, err == nil
	}

	view, err := s.bookings.GetView(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if cacheable {
		if err := s.cache.SetBookingView(ctx, view, gen); err != nil {
			s.log.Debug("booking view cache write failed", zap.String("booking_id", bookingID), zap.Error(err))
		}
	}
	return view, nil
}

func (s *BookingService) ListVisitorBookings(ctx context.Context, visitorID string) ([]domain.BookingView, error) {
	if visitorID == "" {
		return nil, fmt.Errorf("%w: visitor id is required", domain.ErrValidation)
	}
	return s.bookings.ListByVisitor(ctx, visitorID)
}

// CancelBooking is the administrative override. Pending and confirmed
// bookings become cancelled; an already cancelled booking is returned as is.
func (s *BookingService) CancelBooking(ctx context.Context, bookingID string) (*domain.Booking, error) {
	if bookingID == "" {
		return nil, fmt.Errorf("%w: booking id is required", domain.ErrValidation)
	}

	cancelled, err := s.bookings.Cancel(ctx, bookingID)
	if errors.Is(err, repository.ErrNotPending) {
		current, gerr := s.bookings.GetByID(ctx, bookingID)
		if gerr != nil {
			return nil, gerr
		}
		if current.Status == domain.BookingStatusCancelled {
			return current, nil
		}
		return nil, fmt.Errorf("%w: booking %s is %s", domain.ErrConflict, bookingID, current.Status)
	}
	if err != nil {
		return nil, fmt.Errorf("cancel booking %s: %w", bookingID, err)
	}

	s.log.Info("booking cancelled", zap.String("booking_id", bookingID))
	s.invalidate(ctx, bookingID)
	s.publish(ctx, "booking_cancelled", cancelled)
	return cancelled, nil
}

func (s *BookingService) invalidate(ctx context.Context, bookingID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateBooking(ctx, bookingID); err != nil {
		s.log.Warn("booking view cache invalidation failed", zap.String("booking_id", bookingID), zap.Error(err))
	}
}

func (s *BookingService) publish(ctx context.Context, eventType string, booking *domain.Booking) {
	if s.producer == nil || s.eventsTopic == "" {
		return
	}
	event := kafka.BookingEvent{
		Type:          eventType,
		BookingID:     booking.BookingID,
		InstitutionID: booking.InstitutionID,
		VisitorID:     booking.VisitorID,
		Status:        string(booking.Status),
		Amount:        booking.Amount.String(),
		Currency:      booking.Currency,
		PaymentID:     booking.PaymentID,
		PDFURL:        booking.PDFURL,
		OccurredAt:    s.now().UTC(),
	}
	if err := s.producer.Publish(ctx, s.eventsTopic, booking.BookingID, event); err != nil {
		s.log.Warn("failed to publish booking event",
			zap.String("booking_id", booking.BookingID),
			zap.String("type", eventType),
			zap.Error(err))
	}
}

var _ BookingUseCase = (*BookingService)(nil)
