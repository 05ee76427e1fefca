package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"teahaven/internal/apierror"
	"teahaven/internal/dto"
	"teahaven/internal/infra"
	"teahaven/internal/middleware"
	"teahaven/internal/service"

	"github.com/gin-gonic/gin"
)

type CheckoutHandler struct {
	checkout      service.CheckoutService
	webhookSecret string
}

func NewCheckoutHandler(checkout service.CheckoutService, webhookSecret string) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, webhookSecret: webhookSecret}
}

func (h *CheckoutHandler) Begin(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		respondError(c, apierror.InvalidArgument("missing user identity"))
		return
	}
	var req dto.BeginCheckoutRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.checkout.BeginCheckout(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusCreated
	if resp.Reused {
		status = http.StatusOK
	}
	c.JSON(status, resp)
}

// Webhook receives the provider's payment callbacks. The signature covers the
// raw body, so the body is read before any JSON decoding.
func (h *CheckoutHandler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		respondError(c, apierror.InvalidArgument("unreadable body"))
		return
	}
	signature := c.GetHeader("X-Payment-Signature")
	if !infra.VerifyWebhookSignature(h.webhookSecret, body, signature) {
		c.JSON(http.StatusUnauthorized,
			apierror.Envelope(apierror.New(apierror.CodeInvalidArgument, "invalid webhook signature")))
		return
	}

	var payload dto.PaymentWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		respondError(c, apierror.InvalidArgument("invalid JSON body"))
		return
	}
	if err := validate.Struct(&payload); err != nil {
		respondError(c, apierror.InvalidArgument("missing webhook fields"))
		return
	}

	// Failed payments need no order; acknowledge so the provider stops
	// retrying.
	if payload.EventType == "payment.failed" {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	resp, err := h.checkout.ConfirmPayment(c.Request.Context(), payload)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Verify is the client-polled fallback for lost webhooks.
func (h *CheckoutHandler) Verify(c *gin.Context) {
	sessionID := c.Param("session_id")
	if sessionID == "" {
		respondError(c, apierror.InvalidArgument("missing session id"))
		return
	}
	resp, err := h.checkout.VerifySession(c.Request.Context(), sessionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
