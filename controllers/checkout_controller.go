package controllers

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/jobboard/metrics"
	"github.com/cppla/jobboard/services"
	"github.com/cppla/jobboard/utils"
)

const maxWebhookBody = 64 << 10

// Checkouts opens checkout sessions. services.CheckoutService implements it.
type Checkouts interface {
	CreateFeaturedCheckout(ctx context.Context, jobID int64, email string) (*services.CheckoutSession, error)
	CreateAlertCheckout(ctx context.Context, email string) (*services.CheckoutSession, error)
}

// WebhookHandler applies signed payment events. services.PaymentWebhook implements it.
type WebhookHandler interface {
	Handle(ctx context.Context, payload []byte, signature string) (string, error)
}

// CheckoutController serves checkout creation and the payment webhook.
type CheckoutController struct {
	checkouts  Checkouts
	webhook    WebhookHandler
	configured bool
}

// NewCheckoutController creates a CheckoutController. configured is false when no processor key is set.
func NewCheckoutController(checkouts Checkouts, webhook WebhookHandler, configured bool) *CheckoutController {
	return &CheckoutController{checkouts: checkouts, webhook: webhook, configured: configured}
}

type featuredCheckoutRequest struct {
	JobID int64  `json:"jobId"`
	Email string `json:"email"`
}

// Featured opens a checkout that features a job listing.
func (c *CheckoutController) Featured(ctx *gin.Context) {
	if !c.configured {
		notConfigured(ctx, "Stripe")
		return
	}
	var req featuredCheckoutRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, "Invalid request body")
		return
	}
	sess, err := c.checkouts.CreateFeaturedCheckout(ctx.Request.Context(), req.JobID, req.Email)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"sessionId": sess.ID, "url": sess.URL})
}

type alertCheckoutRequest struct {
	Email string `json:"email"`
}

// Alerts opens a subscription checkout for realtime alerts.
func (c *CheckoutController) Alerts(ctx *gin.Context) {
	if !c.configured {
		notConfigured(ctx, "Stripe")
		return
	}
	var req alertCheckoutRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, "Invalid request body")
		return
	}
	sess, err := c.checkouts.CreateAlertCheckout(ctx.Request.Context(), req.Email)
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"sessionId": sess.ID, "url": sess.URL})
}

// Webhook verifies the Stripe-Signature header before applying the event.
func (c *CheckoutController) Webhook(ctx *gin.Context) {
	if !c.configured {
		notConfigured(ctx, "Stripe")
		return
	}
	payload, err := io.ReadAll(io.LimitReader(ctx.Request.Body, maxWebhookBody))
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, "Invalid request body")
		return
	}
	eventType, err := c.webhook.Handle(ctx.Request.Context(), payload, ctx.GetHeader("Stripe-Signature"))
	if err != nil {
		respondError(ctx, err)
		return
	}
	metrics.WebhookEvent(eventType)
	utils.Success(ctx, gin.H{"received": true})
}
