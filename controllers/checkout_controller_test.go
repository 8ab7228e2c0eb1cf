package controllers_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/jobboard/controllers"
	"github.com/cppla/jobboard/services"
)

type stubCheckouts struct {
	jobID int64
	email string
}

func (s *stubCheckouts) CreateFeaturedCheckout(_ context.Context, jobID int64, email string) (*services.CheckoutSession, error) {
	if jobID <= 0 {
		return nil, &services.InputError{Msg: "Job ID is required"}
	}
	s.jobID, s.email = jobID, email
	return &services.CheckoutSession{ID: "cs_featured", URL: "https://pay/featured"}, nil
}

func (s *stubCheckouts) CreateAlertCheckout(_ context.Context, email string) (*services.CheckoutSession, error) {
	s.email = email
	return &services.CheckoutSession{ID: "cs_alert", URL: "https://pay/alert"}, nil
}

type stubWebhook struct {
	payload   string
	signature string
}

func (s *stubWebhook) Handle(_ context.Context, payload []byte, signature string) (string, error) {
	s.payload, s.signature = string(payload), signature
	if signature != "t=1,v1=ok" {
		return "", services.ErrInvalidSignature
	}
	return services.EventCheckoutCompleted, nil
}

func checkoutRouter(c *controllers.CheckoutController) *gin.Engine {
	r := gin.New()
	r.POST("/checkout/featured", c.Featured)
	r.POST("/checkout/alerts", c.Alerts)
	r.POST("/webhooks/stripe", c.Webhook)
	return r
}

func TestCheckoutFeatured(t *testing.T) {
	checkouts := &stubCheckouts{}
	r := checkoutRouter(controllers.NewCheckoutController(checkouts, &stubWebhook{}, true))

	w := perform(r, http.MethodPost, "/checkout/featured", `{"jobId":12,"email":"boss@example.com"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"sessionId":"cs_featured","url":"https://pay/featured"}`, w.Body.String())
	assert.Equal(t, int64(12), checkouts.jobID)

	w = perform(r, http.MethodPost, "/checkout/featured", `{"email":"boss@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Job ID is required", decode(t, w)["error"])
}

func TestCheckoutAlerts(t *testing.T) {
	checkouts := &stubCheckouts{}
	r := checkoutRouter(controllers.NewCheckoutController(checkouts, &stubWebhook{}, true))

	w := perform(r, http.MethodPost, "/checkout/alerts", `{"email":"a@example.com"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cs_alert", decode(t, w)["sessionId"])
	assert.Equal(t, "a@example.com", checkouts.email)
}

func TestCheckout_NotConfigured(t *testing.T) {
	r := checkoutRouter(controllers.NewCheckoutController(nil, nil, false))
	for _, path := range []string{"/checkout/featured", "/checkout/alerts", "/webhooks/stripe"} {
		w := perform(r, http.MethodPost, path, `{}`)
		assert.Equal(t, http.StatusInternalServerError, w.Code, path)
		assert.Equal(t, "Stripe not configured", decode(t, w)["error"], path)
	}
}

func TestStripeWebhook(t *testing.T) {
	hook := &stubWebhook{}
	r := checkoutRouter(controllers.NewCheckoutController(&stubCheckouts{}, hook, true))

	w := perform(r, http.MethodPost, "/webhooks/stripe", `{"id":"evt_1"}`, "Stripe-Signature", "t=1,v1=ok")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"received":true}`, w.Body.String())
	assert.Equal(t, `{"id":"evt_1"}`, hook.payload)

	w = perform(r, http.MethodPost, "/webhooks/stripe", `{"id":"evt_1"}`, "Stripe-Signature", "t=1,v1=forged")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid signature", decode(t, w)["error"])
}
