package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Domenick1991/visitbooking/internal/domain"
	"github.com/Domenick1991/visitbooking/internal/payment"
	"github.com/Domenick1991/visitbooking/internal/service/booking"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type BookingHandler struct {
	service booking.BookingUseCase
}

type visitorDetails struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type createBookingRequest struct {
	InstitutionID  string          `json:"institution_id" binding:"required"`
	VisitDate      string          `json:"visit_date" binding:"required"`
	VisitTime      string          `json:"visit_time" binding:"required"`
	Amount         decimal.Decimal `json:"amount"`
	Notes          string          `json:"notes"`
	VisitorDetails *visitorDetails `json:"visitor_details"`
}

type bookingResponse struct {
	BookingID     string    `json:"booking_id"`
	InstitutionID string    `json:"institution_id"`
	VisitorName   string    `json:"visitor_name"`
	VisitorEmail  string    `json:"visitor_email"`
	VisitorPhone  string    `json:"visitor_phone,omitempty"`
	VisitDate     string    `json:"visit_date"`
	VisitTime     string    `json:"visit_time"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency"`
	Notes         string    `json:"notes,omitempty"`
	Status        string    `json:"status"`
	OrderID       *string   `json:"order_id"`
	PaymentID     *string   `json:"payment_id"`
	PDFURL        *string   `json:"pdf_url"`
	CreatedAt     time.Time `json:"created_at"`
}

type bookingViewResponse struct {
	bookingResponse
	InstitutionName    string `json:"institution_name"`
	InstitutionAddress string `json:"institution_address"`
	InstitutionCity    string `json:"institution_city"`
	InstitutionState   string `json:"institution_state"`
	InstitutionContact string `json:"institution_contact"`
	VisitingHours      string `json:"visiting_hours"`
}

type orderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status,omitempty"`
}

type createBookingResponse struct {
	Booking bookingResponse `json:"booking"`
	Order   orderResponse   `json:"order"`
}

func NewBookingHandler(service booking.BookingUseCase) *BookingHandler {
	return &BookingHandler{service: service}
}

func (h *BookingHandler) Register(router *gin.RouterGroup) {
	router.POST("", h.create)
	router.GET("", h.list)
	router.GET("/:booking_id", h.get)
	router.GET("/:booking_id/receipt", h.receipt)
	router.POST("/:booking_id/order", h.retryOrder)
}

func (h *BookingHandler) create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	claims := claimsFrom(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	contact := booking.VisitorContact{Name: claims.Name, Email: claims.Email, Phone: claims.Phone}
	if d := req.VisitorDetails; d != nil {
		if d.Name != "" {
			contact.Name = d.Name
		}
		if d.Email != "" {
			contact.Email = d.Email
		}
		if d.Phone != "" {
			contact.Phone = d.Phone
		}
	}

	result, err := h.service.CreateBooking(c.Request.Context(), booking.CreateBookingInput{
		VisitorID:     claims.Sub,
		InstitutionID: req.InstitutionID,
		VisitDate:     req.VisitDate,
		VisitTime:     req.VisitTime,
		Amount:        req.Amount,
		Notes:         req.Notes,
		Contact:       contact,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, createBookingResponse{
		Booking: toBookingResponse(result.Booking),
		Order:   toOrderResponse(result.Order),
	})
}

func (h *BookingHandler) list(c *gin.Context) {
	claims := claimsFrom(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}
	views, err := h.service.ListVisitorBookings(c.Request.Context(), claims.Sub)
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]bookingViewResponse, 0, len(views))
	for i := range views {
		out = append(out, toBookingViewResponse(&views[i]))
	}
	c.JSON(http.StatusOK, gin.H{"bookings": out})
}

func (h *BookingHandler) get(c *gin.Context) {
	view, ok := h.ownedView(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, toBookingViewResponse(view))
}

func (h *BookingHandler) receipt(c *gin.Context) {
	view, ok := h.ownedView(c)
	if !ok {
		return
	}
	if view.PDFURL == "" {
		writeError(c, fmt.Errorf("receipt for booking %s: %w", view.BookingID, domain.ErrNotFound))
		return
	}
	c.Redirect(http.StatusFound, view.PDFURL)
}

func (h *BookingHandler) retryOrder(c *gin.Context) {
	view, ok := h.ownedView(c)
	if !ok {
		return
	}
	order, err := h.service.RetryOrder(c.Request.Context(), view.BookingID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": toOrderResponse(order)})
}

// ownedView loads the booking named in the path. Bookings of other
// visitors are reported as missing unless the caller is an admin.
func (h *BookingHandler) ownedView(c *gin.Context) (*domain.BookingView, bool) {
	claims := claimsFrom(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return nil, false
	}
	id := c.Param("booking_id")
	view, err := h.service.GetBookingDetails(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	if view.VisitorID != claims.Sub && !claims.IsAdmin() {
		writeError(c, fmt.Errorf("booking %s: %w", id, domain.ErrNotFound))
		return nil, false
	}
	return view, true
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func toBookingResponse(b *domain.Booking) bookingResponse {
	return bookingResponse{
		BookingID:     b.BookingID,
		InstitutionID: b.InstitutionID,
		VisitorName:   b.VisitorName,
		VisitorEmail:  b.VisitorEmail,
		VisitorPhone:  b.VisitorPhone,
		VisitDate:     b.VisitDate,
		VisitTime:     b.VisitTime,
		Amount:        b.Amount.StringFixed(2),
		Currency:      b.Currency,
		Notes:         b.Notes,
		Status:        string(b.Status),
		OrderID:       optional(b.OrderID),
		PaymentID:     optional(b.PaymentID),
		PDFURL:        optional(b.PDFURL),
		CreatedAt:     b.CreatedAt,
	}
}

func toBookingViewResponse(v *domain.BookingView) bookingViewResponse {
	return bookingViewResponse{
		bookingResponse:    toBookingResponse(&v.Booking),
		InstitutionName:    v.InstitutionName,
		InstitutionAddress: v.InstitutionAddress,
		InstitutionCity:    v.InstitutionCity,
		InstitutionState:   v.InstitutionState,
		InstitutionContact: v.InstitutionContact,
		VisitingHours:      v.VisitingHours,
	}
}

func toOrderResponse(o *payment.Order) orderResponse {
	return orderResponse{
		ID:       o.ID,
		Amount:   o.Amount,
		Currency: o.Currency,
		Receipt:  o.Receipt,
		Status:   o.Status,
	}
}
