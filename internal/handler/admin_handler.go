package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rechargetravels/service-booking/internal/application"
	paymentDomain "github.com/rechargetravels/service-booking/internal/domain/payment"
	"github.com/rechargetravels/service-booking/pkg/auth"
	"github.com/rechargetravels/service-booking/pkg/middleware"
	"github.com/rechargetravels/service-booking/pkg/response"
)

// AdminHandler handles operator requests for booking and payment management.
// Errors carry the conflicting state snapshot so operators can see why a
// transition was refused.
type AdminHandler struct {
	bookings *application.BookingService
	payments *application.PaymentService
	recon    *application.ReconciliationService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(
	bookings *application.BookingService,
	payments *application.PaymentService,
	recon *application.ReconciliationService,
) *AdminHandler {
	return &AdminHandler{bookings: bookings, payments: payments, recon: recon}
}

// RegisterRoutes registers admin routes.
func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	authMW := middleware.AuthMiddleware(jwtManager)
	adminRole := middleware.RequireRole(auth.RoleAdmin)

	admin := r.Group("/api/v1/admin")
	admin.Use(authMW, adminRole)
	{
		admin.GET("/bookings", h.ListBookings)
		admin.GET("/bookings/:id", h.GetBookingDetail)
		admin.PATCH("/bookings/:id/status", h.UpdateStatus)
		admin.DELETE("/bookings/:id", h.PurgeBooking)
		admin.GET("/stats/bookings", h.BookingStats)

		admin.GET("/payments/bank-transfers", h.ListPendingBankTransfers)
		admin.GET("/payments/:id/proofs", h.ListProofs)
		admin.POST("/payments/:id/verify", h.VerifyBankTransfer)
		admin.POST("/payments/:id/collect", h.RecordPickupCollection)
		admin.POST("/payments/:id/gateway-result", h.ApplyGatewayResult)
		admin.POST("/payments/:id/refund/complete", h.CompleteRefund)
	}
}

// ListBookings handles GET /api/v1/admin/bookings.
func (h *AdminHandler) ListBookings(c *gin.Context) {
	page, limit := parsePagination(c)

	from, err := parseDateQuery(c, "from", false)
	if err != nil {
		response.BadRequest(c, "invalid from date")
		return
	}
	to, err := parseDateQuery(c, "to", true)
	if err != nil {
		response.BadRequest(c, "invalid to date")
		return
	}

	result, err := h.bookings.ListBookings(c.Request.Context(), application.ListBookingsQuery{
		Domain: c.Query("domain"),
		Status: c.Query("status"),
		From:   from,
		To:     to,
		Query:  c.Query("q"),
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		response.AdminError(c, err)
		return
	}

	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// GetBookingDetail handles GET /api/v1/admin/bookings/:id.
func (h *AdminHandler) GetBookingDetail(c *gin.Context) {
	bookingID, ok := parseID(c, "booking")
	if !ok {
		return
	}

	detail, err := h.bookings.GetBookingDetail(c.Request.Context(), bookingID)
	if err != nil {
		response.AdminError(c, err)
		return
	}

	response.Success(c, detail)
}

// UpdateStatus handles PATCH /api/v1/admin/bookings/:id/status.
func (h *AdminHandler) UpdateStatus(c *gin.Context) {
	bookingID, ok := parseID(c, "booking")
	if !ok {
		return
	}

	var req application.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.bookings.UpdateStatus(c.Request.Context(), bookingID, req)
	if err != nil {
		response.AdminError(c, err)
		return
	}

	response.Success(c, result)
}

// PurgeBooking handles DELETE /api/v1/admin/bookings/:id.
func (h *AdminHandler) PurgeBooking(c *gin.Context) {
	bookingID, ok := parseID(c, "booking")
	if !ok {
		return
	}

	if err := h.bookings.PurgeBooking(c.Request.Context(), bookingID); err != nil {
		response.AdminError(c, err)
		return
	}

	response.Success(c, gin.H{"id": bookingID, "purged": true})
}

// BookingStats handles GET /api/v1/admin/stats/bookings.
func (h *AdminHandler) BookingStats(c *gin.Context) {
	stats, err := h.bookings.GetBookingStats(c.Request.Context())
	if err != nil {
		response.AdminError(c, err)
		return
	}

	response.Success(c, stats)
}

// ListPendingBankTransfers handles GET /api/v1/admin/payments/bank-transfers.
func (h *AdminHandler) ListPendingBankTransfers(c *gin.Context) {
	page, limit := parsePagination(c)

	result, err := h.payments.ListPendingBankTransfers(c.Request.Context(), page, limit)
	if err != nil {
		response.AdminError(c, err)
		return
	}

	response.Paginated(c, result.Items, result.Total, result.Page, result.Limit)
}

// ListProofs handles GET /api/v1/admin/payments/:id/proofs.
func (h *AdminHandler) ListProofs(c *gin.Context) {
	paymentID, ok := parseID(c, "payment")
	if !ok {
		return
	}

	proofs, err := h.payments.ListProofs(c.Request.Context(), paymentID)
	if err != nil {
		response.AdminError(c, err)
		return
	}

	response.Success(c, proofs)
}

// VerifyBankTransfer handles POST /api/v1/admin/payments/:id/verify.
func (h *AdminHandler) VerifyBankTransfer(c *gin.Context) {
	paymentID, ok := parseID(c, "payment")
	if !ok {
		return
	}

	var req application.VerifyBankTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.recon.VerifyBankTransfer(c.Request.Context(), paymentID, req, operator(c))
	if err != nil {
		response.AdminError(c, err)
		return
	}

	response.Success(c, result)
}

type collectRequest struct {
	CollectedBy string `json:"collected_by"`
}

// RecordPickupCollection handles POST /api/v1/admin/payments/:id/collect.
func (h *AdminHandler) RecordPickupCollection(c *gin.Context) {
	paymentID, ok := parseID(c, "payment")
	if !ok {
		return
	}

	var req collectRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
	}
	if req.CollectedBy == "" {
		req.CollectedBy = operator(c)
	}

	result, err := h.payments.RecordPickupCollection(c.Request.Context(), paymentID, req.CollectedBy)
	if err != nil {
		response.AdminError(c, err)
		return
	}

	response.Success(c, result)
}

type gatewayResultRequest struct {
	Outcome       string `json:"outcome" binding:"required"`
	TransactionID string `json:"transaction_id"`
}

// ApplyGatewayResult handles POST /api/v1/admin/payments/:id/gateway-result.
// Operators use it to replay an outcome read from the gateway's merchant
// portal when the notification never arrived.
func (h *AdminHandler) ApplyGatewayResult(c *gin.Context) {
	paymentID, ok := parseID(c, "payment")
	if !ok {
		return
	}

	var req gatewayResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	outcome, err := paymentDomain.ParseOutcome(req.Outcome)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.recon.ApplyGatewayResult(c.Request.Context(), paymentID, req.TransactionID, outcome)
	if err != nil {
		response.AdminError(c, err)
		return
	}

	response.Success(c, result)
}

// CompleteRefund handles POST /api/v1/admin/payments/:id/refund/complete.
func (h *AdminHandler) CompleteRefund(c *gin.Context) {
	paymentID, ok := parseID(c, "payment")
	if !ok {
		return
	}

	var req application.CompleteRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	result, err := h.payments.CompleteRefund(c.Request.Context(), paymentID, req)
	if err != nil {
		response.AdminError(c, err)
		return
	}

	response.Success(c, result)
}

// operator identifies the authenticated admin for audit fields.
func operator(c *gin.Context) string {
	if id, ok := middleware.GetUserID(c); ok {
		return id.String()
	}
	return "admin"
}

// parseDateQuery accepts RFC 3339 timestamps or plain dates. A plain "to"
// date covers the whole day.
func parseDateQuery(c *gin.Context, key string, endOfDay bool) (*time.Time, error) {
	raw := c.Query(key)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
