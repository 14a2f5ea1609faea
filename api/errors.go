package api

import (
	"errors"
	"net/http"

	"github.com/Domenick1991/visitbooking/internal/domain"
	"github.com/Domenick1991/visitbooking/internal/service/booking"
	"github.com/gin-gonic/gin"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidSignature):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	_ = c.Error(err)
	status := statusFor(err)

	body := gin.H{"error": err.Error()}
	if status == http.StatusInternalServerError {
		body["error"] = "internal error"
	}
	var orderErr *booking.OrderError
	if errors.As(err, &orderErr) {
		body["booking_id"] = orderErr.BookingID
	}
	c.JSON(status, body)
}
