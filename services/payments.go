package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/cppla/jobboard/models"
	"github.com/cppla/jobboard/store"
)

// Checkout modes.
const (
	ModePayment      = "payment"
	ModeSubscription = "subscription"
)

// Metadata values identifying what a checkout pays for.
const (
	PurposeFeaturedJob = "featured_job"
	PurposeJobAlert    = "job_alert"
)

// Webhook event types handled by PaymentWebhook.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

// CheckoutRequest describes a hosted checkout page to open.
type CheckoutRequest struct {
	Mode          string
	PriceID       string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
	Metadata      map[string]string
}

// CheckoutSession is the processor's answer to a CheckoutRequest.
type CheckoutSession struct {
	ID  string `json:"sessionId"`
	URL string `json:"url"`
}

// WebhookEvent is a verified event from the payment processor.
type WebhookEvent struct {
	ID   string
	Type string
	// Object is the raw "data.object" of the event.
	Object json.RawMessage
}

// PaymentGateway is the payment processor.
type PaymentGateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
	// VerifyWebhook checks the signature header against the shared secret and decodes the event.
	VerifyWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

// CheckoutConfig carries the price ids and redirect urls of the checkouts.
type CheckoutConfig struct {
	FeaturedPriceID string
	AlertPriceID    string
	SuccessURL      string
	CancelURL       string
}

// CheckoutService opens checkout sessions for featured listings and paid alerts.
type CheckoutService struct {
	gateway PaymentGateway
	cfg     CheckoutConfig
}

// NewCheckoutService creates a CheckoutService. A nil gateway means payments are not configured.
func NewCheckoutService(gateway PaymentGateway, cfg CheckoutConfig) *CheckoutService {
	return &CheckoutService{gateway: gateway, cfg: cfg}
}

// CreateFeaturedCheckout opens a one-time payment that features jobID once completed.
func (s *CheckoutService) CreateFeaturedCheckout(ctx context.Context, jobID int64, email string) (*CheckoutSession, error) {
	if s.gateway == nil || s.cfg.FeaturedPriceID == "" {
		return nil, fmt.Errorf("featured checkout: %w", ErrNotConfigured)
	}
	if jobID <= 0 {
		return nil, invalid("Job ID is required")
	}
	return s.gateway.CreateCheckoutSession(ctx, CheckoutRequest{
		Mode:          ModePayment,
		PriceID:       s.cfg.FeaturedPriceID,
		CustomerEmail: NormalizeEmail(email),
		SuccessURL:    s.cfg.SuccessURL,
		CancelURL:     s.cfg.CancelURL,
		Metadata: map[string]string{
			"type":  PurposeFeaturedJob,
			"jobId": strconv.FormatInt(jobID, 10),
		},
	})
}

// CreateAlertCheckout opens a subscription that turns on realtime alerts for email once completed.
func (s *CheckoutService) CreateAlertCheckout(ctx context.Context, email string) (*CheckoutSession, error) {
	if s.gateway == nil || s.cfg.AlertPriceID == "" {
		return nil, fmt.Errorf("alert checkout: %w", ErrNotConfigured)
	}
	email = NormalizeEmail(email)
	if email == "" {
		return nil, invalid("Email is required")
	}
	return s.gateway.CreateCheckoutSession(ctx, CheckoutRequest{
		Mode:          ModeSubscription,
		PriceID:       s.cfg.AlertPriceID,
		CustomerEmail: email,
		SuccessURL:    s.cfg.SuccessURL,
		CancelURL:     s.cfg.CancelURL,
		Metadata: map[string]string{
			"type":  PurposeJobAlert,
			"email": email,
		},
	})
}

// CancelSubscription cancels a processor subscription.
func (s *CheckoutService) CancelSubscription(ctx context.Context, subscriptionID string) error {
	if s.gateway == nil {
		return fmt.Errorf("cancel subscription: %w", ErrNotConfigured)
	}
	return s.gateway.CancelSubscription(ctx, subscriptionID)
}

// PaymentWebhook applies verified processor events to jobs and alerts.
type PaymentWebhook struct {
	gateway   PaymentGateway
	store     store.Store
	jobsTable string
	alerts    *AlertService
	logger    *zap.Logger
}

// NewPaymentWebhook creates the webhook handler.
func NewPaymentWebhook(gateway PaymentGateway, s store.Store, jobsTable string, alerts *AlertService, logger *zap.Logger) *PaymentWebhook {
	if logger == nil {
		logger = zap.NewNop()
	}
	if jobsTable == "" {
		jobsTable = "jobs"
	}
	return &PaymentWebhook{gateway: gateway, store: s, jobsTable: jobsTable, alerts: alerts, logger: logger}
}

type checkoutSessionObject struct {
	ID              string            `json:"id"`
	Mode            string            `json:"mode"`
	Customer        string            `json:"customer"`
	Subscription    string            `json:"subscription"`
	CustomerEmail   string            `json:"customer_email"`
	Metadata        map[string]string `json:"metadata"`
	CustomerDetails struct {
		Email string `json:"email"`
	} `json:"customer_details"`
}

type subscriptionObject struct {
	ID       string `json:"id"`
	Customer string `json:"customer"`
}

// Handle verifies payload and applies it. Nothing is mutated before the signature verifies.
// It returns the event type that was processed.
func (w *PaymentWebhook) Handle(ctx context.Context, payload []byte, signature string) (string, error) {
	if w.gateway == nil {
		return "", fmt.Errorf("payment webhook: %w", ErrNotConfigured)
	}
	if signature == "" {
		return "", ErrInvalidSignature
	}
	ev, err := w.gateway.VerifyWebhook(payload, signature)
	if err != nil {
		if errors.Is(err, ErrNotConfigured) {
			return "", err
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	switch ev.Type {
	case EventCheckoutCompleted:
		var sess checkoutSessionObject
		if err := json.Unmarshal(ev.Object, &sess); err != nil {
			return ev.Type, fmt.Errorf("decode checkout session %s: %w", ev.ID, err)
		}
		return ev.Type, w.checkoutCompleted(ctx, sess)
	case EventSubscriptionDeleted:
		var sub subscriptionObject
		if err := json.Unmarshal(ev.Object, &sub); err != nil {
			return ev.Type, fmt.Errorf("decode subscription %s: %w", ev.ID, err)
		}
		return ev.Type, w.alerts.DeactivateSubscription(ctx, sub.ID)
	default:
		w.logger.Debug("ignoring payment event", zap.String("type", ev.Type), zap.String("id", ev.ID))
		return ev.Type, nil
	}
}

func (w *PaymentWebhook) checkoutCompleted(ctx context.Context, sess checkoutSessionObject) error {
	switch sess.Metadata["type"] {
	case PurposeFeaturedJob:
		jobID, err := strconv.ParseInt(sess.Metadata["jobId"], 10, 64)
		if err != nil || jobID <= 0 {
			return fmt.Errorf("checkout %s: %w: bad jobId metadata %q", sess.ID, ErrInvalidInput, sess.Metadata["jobId"])
		}
		err = w.store.UpdateFields(ctx, w.jobsTable, jobID, store.Row{
			models.JobFeatured: true,
			models.JobPaid:     true,
		})
		if errors.Is(err, store.ErrRowNotFound) {
			return fmt.Errorf("featured job %d: %w", jobID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("feature job %d: %w", jobID, err)
		}
		w.logger.Info("job featured", zap.Int64("job_id", jobID), zap.String("session", sess.ID))
		return nil
	case PurposeJobAlert:
		email := sess.Metadata["email"]
		if email == "" {
			email = sess.CustomerDetails.Email
		}
		if email == "" {
			email = sess.CustomerEmail
		}
		if email == "" {
			return fmt.Errorf("checkout %s: %w: no email", sess.ID, ErrInvalidInput)
		}
		return w.alerts.ActivatePaid(ctx, email, sess.Customer, sess.Subscription)
	default:
		w.logger.Warn("checkout completed without known purpose", zap.String("session", sess.ID))
		return nil
	}
}
