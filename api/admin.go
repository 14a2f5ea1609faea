package api

import (
	"net/http"

	"github.com/Domenick1991/visitbooking/internal/service/booking"
	"github.com/gin-gonic/gin"
)

type AdminHandler struct {
	service booking.BookingUseCase
}

func NewAdminHandler(service booking.BookingUseCase) *AdminHandler {
	return &AdminHandler{service: service}
}

func (h *AdminHandler) Register(router *gin.RouterGroup) {
	router.PATCH("/bookings/:booking_id/cancel", h.cancel)
}

func (h *AdminHandler) cancel(c *gin.Context) {
	cancelled, err := h.service.CancelBooking(c.Request.Context(), c.Param("booking_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"booking": toBookingResponse(cancelled)})
}
