package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-idempotent-contests/internal/apperr"
	"github.com/imrishuroy/go-idempotent-contests/internal/auth"
	"github.com/imrishuroy/go-idempotent-contests/internal/payments"
	"github.com/imrishuroy/go-idempotent-contests/internal/validation"
)

// SignatureHeader carries the webhook HMAC.
const SignatureHeader = "X-Razorpay-Signature"

func (a *API) createOrder(c *gin.Context) {
	var req validation.CreateOrderRequest
	if err := validation.BindAndValidate(c, &req, a.validate); err != nil {
		return
	}
	p, err := a.Registration.CreateOrder(c.Request.Context(), req.EventID, auth.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"orderId":  p.OrderID,
		"amount":   p.Amount,
		"currency": p.Currency,
		"eventId":  p.EventID,
		"status":   p.Status,
		"keyId":    a.RazorpayKeyID,
	})
}

// getOrder lets the payer poll an order after checkout. Orders of other users read as missing.
func (a *API) getOrder(c *gin.Context) {
	p, err := a.Payments.Get(c.Request.Context(), c.Param("id"))
	if err == nil && p.UserID != auth.UserID(c) {
		err = payments.ErrNotFound
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (a *API) verifyPayment(c *gin.Context) {
	var req validation.VerifyPaymentRequest
	if err := validation.BindAndValidate(c, &req, a.validate); err != nil {
		return
	}
	res, err := a.Registration.VerifyAndRegister(c.Request.Context(), req.OrderID, req.PaymentID, req.Signature, req.EventID, auth.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// webhook must see the exact bytes the provider signed.
func (a *API) webhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		writeError(c, apperr.Invalid("invalid_request_body", "could not read body"))
		return
	}
	ack, err := a.Webhooks.Handle(c.Request.Context(), body, c.GetHeader(SignatureHeader))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ack)
}
