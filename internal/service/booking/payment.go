package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/Domenick1991/visitbooking/internal/cache"
	"github.com/Domenick1991/visitbooking/internal/domain"
	"github.com/Domenick1991/visitbooking/internal/payment"
	"github.com/Domenick1991/visitbooking/internal/repository"
	"go.uber.org/zap"
)

type VerifyPaymentInput struct {
	OrderID   string `validate:"required"`
	PaymentID string `validate:"required"`
	Signature string `validate:"required"`
	BookingID string `validate:"required"`
}

// VerifyResult carries the booking after verification. AlreadyConfirmed is
// set when the booking was confirmed before this call and nothing was redone.
type VerifyResult struct {
	Booking          *domain.Booking
	AlreadyConfirmed bool
}

// VerifyPayment confirms a booking from a client-submitted payment callback.
// Steps run in order: signature check, load, render, upload, confirm,
// notify. The booking only becomes confirmed once its receipt is stored.
func (s *BookingService) VerifyPayment(ctx context.Context, input VerifyPaymentInput) (*VerifyResult, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, err.Error())
	}
	log := s.log.With(zap.String("booking_id", input.BookingID), zap.String("payment_id", input.PaymentID))

	if !s.gateway.VerifySignature(input.OrderID, input.PaymentID, input.Signature) {
		log.Warn("payment signature mismatch", zap.String("order_id", input.OrderID))
		return nil, fmt.Errorf("booking %s: %w", input.BookingID, domain.ErrInvalidSignature)
	}

	if s.cache != nil {
		unlock, err := s.cache.LockBooking(ctx, input.BookingID)
		switch {
		case err == nil:
			defer unlock()
		case errors.Is(err, cache.ErrLocked):
			return nil, fmt.Errorf("%w: verification in progress for %s", domain.ErrConflict, input.BookingID)
		case ctx.Err() != nil:
			return nil, err
		default:
			// The conditional confirm still prevents a double transition.
			log.Warn("verification lock unavailable, continuing without it", zap.Error(err))
		}
	}

	booking, err := s.bookings.GetByID(ctx, input.BookingID)
	if err != nil {
		return nil, err
	}
	switch booking.Status {
	case domain.BookingStatusConfirmed:
		log.Info("payment already verified")
		return &VerifyResult{Booking: booking, AlreadyConfirmed: true}, nil
	case domain.BookingStatusPending:
	default:
		return nil, fmt.Errorf("%w: booking %s is %s", domain.ErrConflict, booking.BookingID, booking.Status)
	}
	if err := s.checkOrder(ctx, booking, input.OrderID); err != nil {
		log.Warn("order does not match booking", zap.String("order_id", input.OrderID), zap.Error(err))
		return nil, err
	}

	inst, err := s.institutions.GetByID(ctx, booking.InstitutionID)
	if err != nil {
		return nil, fmt.Errorf("load institution for %s: %w", booking.BookingID, err)
	}

	paid := *booking
	paid.Status = domain.BookingStatusConfirmed
	paid.PaymentID = input.PaymentID
	paid.OrderID = input.OrderID

	pdf, err := s.renderer.Render(paid, *inst)
	if err != nil {
		if !errors.Is(err, domain.ErrRender) {
			err = fmt.Errorf("%w: %v", domain.ErrRender, err)
		}
		log.Error("receipt render failed", zap.Error(err))
		return nil, err
	}

	url, err := s.upload(ctx, booking.BookingID, pdf)
	if err != nil {
		log.Error("receipt upload failed", zap.Error(err))
		return nil, err
	}

	confirmed, err := s.bookings.Confirm(ctx, booking.BookingID, input.PaymentID, url)
	if errors.Is(err, repository.ErrNotPending) {
		current, gerr := s.bookings.GetByID(ctx, booking.BookingID)
		if gerr != nil {
			return nil, gerr
		}
		if current.Status == domain.BookingStatusConfirmed {
			log.Info("booking confirmed concurrently")
			return &VerifyResult{Booking: current, AlreadyConfirmed: true}, nil
		}
		return nil, fmt.Errorf("%w: booking %s is %s", domain.ErrConflict, booking.BookingID, current.Status)
	}
	if err != nil {
		return nil, fmt.Errorf("confirm booking %s: %w", booking.BookingID, err)
	}
	log.Info("booking confirmed", zap.String("pdf_url", url))

	s.invalidate(ctx, confirmed.BookingID)
	s.publish(ctx, "booking_confirmed", confirmed)
	s.notify(ctx, *confirmed, *inst, pdf)

	return &VerifyResult{Booking: confirmed}, nil
}

// checkOrder ties the paid order to the booking. When the order id was
// never stored, the gateway's copy of the order is checked instead.
func (s *BookingService) checkOrder(ctx context.Context, booking *domain.Booking, orderID string) error {
	if booking.OrderID != "" {
		if booking.OrderID != orderID {
			return fmt.Errorf("%w: order %s does not belong to booking %s", domain.ErrValidation, orderID, booking.BookingID)
		}
		return nil
	}

	octx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()
	order, err := s.gateway.FetchOrder(octx, orderID)
	if err != nil {
		if errors.Is(err, payment.ErrOrderNotFound) {
			return fmt.Errorf("%w: order %s not found", domain.ErrValidation, orderID)
		}
		return fmt.Errorf("%w: fetch order %s: %v", domain.ErrUpstream, orderID, err)
	}
	if order.Receipt != booking.BookingID {
		return fmt.Errorf("%w: order %s was opened for %q, not %s", domain.ErrValidation, orderID, order.Receipt, booking.BookingID)
	}
	if want := payment.ToMinorUnits(booking.Amount); order.Amount != want {
		return fmt.Errorf("%w: order %s amount %d, expected %d", domain.ErrValidation, orderID, order.Amount, want)
	}
	return nil
}

func (s *BookingService) upload(ctx context.Context, bookingID string, pdf []byte) (string, error) {
	sctx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()

	url, err := s.store.PutReceipt(sctx, bookingID, pdf)
	if err != nil {
		if !errors.Is(err, domain.ErrStorage) {
			err = fmt.Errorf("%w: %v", domain.ErrStorage, err)
		}
		return "", err
	}
	return url, nil
}

// notify never fails the caller: the booking is already confirmed.
func (s *BookingService) notify(ctx context.Context, b domain.Booking, inst domain.Institution, pdf []byte) {
	if s.notifier == nil {
		return
	}
	log := s.log.With(zap.String("booking_id", b.BookingID))
	defer func() {
		if r := recover(); r != nil {
			log.Error("confirmation email panicked", zap.Any("panic", r))
		}
	}()

	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.emailTimeout)
	defer cancel()

	if err := s.notifier.SendConfirmation(nctx, b, inst, pdf); err != nil {
		log.Warn("confirmation email failed", zap.Error(err))
	}
}
