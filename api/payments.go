package api

import (
	"net/http"

	"github.com/Domenick1991/visitbooking/internal/service/booking"
	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	service booking.BookingUseCase
}

// verifyPaymentRequest mirrors the payload the checkout widget hands back
// to the client after a successful payment.
type verifyPaymentRequest struct {
	OrderID   string `json:"razorpay_order_id" binding:"required"`
	PaymentID string `json:"razorpay_payment_id" binding:"required"`
	Signature string `json:"razorpay_signature" binding:"required"`
	BookingID string `json:"booking_id" binding:"required"`
}

type verifyPaymentResponse struct {
	Booking          bookingResponse `json:"booking"`
	AlreadyConfirmed bool            `json:"already_confirmed"`
}

func NewPaymentHandler(service booking.BookingUseCase) *PaymentHandler {
	return &PaymentHandler{service: service}
}

func (h *PaymentHandler) Register(router *gin.RouterGroup) {
	router.POST("/verify", h.verify)
}

func (h *PaymentHandler) verify(c *gin.Context) {
	var req verifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.VerifyPayment(c.Request.Context(), booking.VerifyPaymentInput{
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Signature: req.Signature,
		BookingID: req.BookingID,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, verifyPaymentResponse{
		Booking:          toBookingResponse(result.Booking),
		AlreadyConfirmed: result.AlreadyConfirmed,
	})
}
