package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rechargetravels/service-booking/internal/application"
	"github.com/rechargetravels/service-booking/pkg/response"
)

// BookingHandler handles customer-facing booking and payment requests.
// Bookings are guest checkouts: the booking id or reference plus the contact
// e-mail identify the customer.
type BookingHandler struct {
	bookings *application.BookingService
	payments *application.PaymentService
}

// NewBookingHandler creates a new BookingHandler.
func NewBookingHandler(bookings *application.BookingService, payments *application.PaymentService) *BookingHandler {
	return &BookingHandler{bookings: bookings, payments: payments}
}

// RegisterRoutes registers all public booking routes on the given router group.
func (h *BookingHandler) RegisterRoutes(r *gin.RouterGroup) {
	bookings := r.Group("/api/v1/bookings")
	{
		bookings.POST("", h.CreateBooking)
		bookings.GET("/reference/:reference", h.GetBookingByReference)
		bookings.GET("/:id", h.GetBooking)
		bookings.POST("/:id/cancel", h.CancelBooking)
		bookings.POST("/:id/payments", h.CreatePayment)
		bookings.GET("/:id/payments", h.ListPayments)
	}

	r.GET("/api/v1/payments/:id", h.GetPayment)
}

// CreateBooking handles POST /api/v1/bookings.
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req application.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.bookings.CreateBooking(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// GetBooking handles GET /api/v1/bookings/:id?email=.
func (h *BookingHandler) GetBooking(c *gin.Context) {
	bookingID, ok := parseID(c, "booking")
	if !ok {
		return
	}

	result, err := h.bookings.GetBookingForContact(c.Request.Context(), bookingID, c.Query("email"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetBookingByReference handles GET /api/v1/bookings/reference/:reference?email=.
func (h *BookingHandler) GetBookingByReference(c *gin.Context) {
	result, err := h.bookings.GetBookingByReferenceForContact(c.Request.Context(), c.Param("reference"), c.Query("email"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// CancelBooking handles POST /api/v1/bookings/:id/cancel.
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	bookingID, ok := parseID(c, "booking")
	if !ok {
		return
	}

	var req application.CancelBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.bookings.CancelBooking(c.Request.Context(), bookingID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// CreatePayment handles POST /api/v1/bookings/:id/payments.
func (h *BookingHandler) CreatePayment(c *gin.Context) {
	bookingID, ok := parseID(c, "booking")
	if !ok {
		return
	}

	var req application.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.payments.CreatePayment(c.Request.Context(), bookingID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, result)
}

// ListPayments handles GET /api/v1/bookings/:id/payments?email=.
func (h *BookingHandler) ListPayments(c *gin.Context) {
	bookingID, ok := parseID(c, "booking")
	if !ok {
		return
	}

	result, err := h.payments.ListBookingPaymentsForContact(c.Request.Context(), bookingID, c.Query("email"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// GetPayment handles GET /api/v1/payments/:id?email=.
func (h *BookingHandler) GetPayment(c *gin.Context) {
	paymentID, ok := parseID(c, "payment")
	if !ok {
		return
	}

	result, err := h.payments.GetPaymentForContact(c.Request.Context(), paymentID, c.Query("email"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

// parseID reads the :id path parameter, answering 400 when it is not a UUID.
func parseID(c *gin.Context, entity string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid "+entity+" ID")
		return uuid.Nil, false
	}
	return id, true
}

// parsePagination extracts page and limit query parameters with defaults.
func parsePagination(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	return page, limit
}
