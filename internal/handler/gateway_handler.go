package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/rechargetravels/service-booking/internal/application"
	"github.com/rechargetravels/service-booking/internal/gateway"
	"github.com/rechargetravels/service-booking/pkg/response"
)

// GatewayHandler receives the payment gateway's server-to-server notifications.
type GatewayHandler struct {
	checkout *gateway.Checkout
	recon    *application.ReconciliationService
	logger   *zap.Logger
}

// NewGatewayHandler creates a new GatewayHandler.
func NewGatewayHandler(checkout *gateway.Checkout, recon *application.ReconciliationService, logger *zap.Logger) *GatewayHandler {
	return &GatewayHandler{checkout: checkout, recon: recon, logger: logger}
}

// RegisterRoutes registers the webhook route.
func (h *GatewayHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/api/v1/payments/gateway/notify", h.Notify)
}

// Notify handles POST /api/v1/payments/gateway/notify. The notification is
// form encoded and signed; unsigned or mis-signed requests never reach
// reconciliation.
func (h *GatewayHandler) Notify(c *gin.Context) {
	var n gateway.Notification
	if err := c.ShouldBind(&n); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.checkout.Verify(n); err != nil {
		h.logger.Warn("rejected gateway notification",
			zap.String("order_id", n.OrderID),
			zap.String("client_ip", c.ClientIP()),
			zap.Error(err),
		)
		response.Unauthorized(c, "invalid notification signature")
		return
	}

	cb, err := n.Callback()
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	rec, err := h.recon.ApplyGatewayCallback(c.Request.Context(), cb)
	if err != nil {
		h.logger.Warn("gateway notification not applied",
			zap.String("order_id", n.OrderID),
			zap.Error(err),
		)
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "status": rec.Status})
}
