package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/cppla/jobboard/models"
	"github.com/cppla/jobboard/store"
)

// Mailer delivers plain text email. utils.SMTPMailer implements it.
type Mailer interface {
	Send(to, subject, body string) error
}

// AlertPayments is the part of CheckoutService alerts depend on.
type AlertPayments interface {
	CreateAlertCheckout(ctx context.Context, email string) (*CheckoutSession, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
}

// AlertRepository persists job alert subscriptions.
type AlertRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.JobAlert, error)
	FindByID(ctx context.Context, id int64) (*models.JobAlert, error)
	FindBySubscriptionID(ctx context.Context, subscriptionID string) (*models.JobAlert, error)
	Create(ctx context.Context, alert models.JobAlert) (*models.JobAlert, error)
	Update(ctx context.Context, alert models.JobAlert) error
}

// TableAlertRepository keeps alerts in a table of the tabular store.
type TableAlertRepository struct {
	store store.Store
	table string
}

// NewTableAlertRepository creates a repository over table of s.
func NewTableAlertRepository(s store.Store, table string) *TableAlertRepository {
	if table == "" {
		table = models.JobAlertsTable
	}
	return &TableAlertRepository{store: s, table: table}
}

func (r *TableAlertRepository) find(ctx context.Context, pred func(store.Row) bool) (*models.JobAlert, error) {
	row, ok, err := r.store.FindOne(ctx, r.table, pred)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	a := models.JobAlertFromRow(row)
	return &a, nil
}

// FindByEmail matches the stored email exactly; callers pass normalized addresses.
func (r *TableAlertRepository) FindByEmail(ctx context.Context, email string) (*models.JobAlert, error) {
	return r.find(ctx, func(row store.Row) bool { return store.String(row, "email") == email })
}

// FindByID looks an alert up by row id.
func (r *TableAlertRepository) FindByID(ctx context.Context, id int64) (*models.JobAlert, error) {
	return r.find(ctx, func(row store.Row) bool {
		rid, ok := store.Int64(row, store.IDField)
		return ok && rid == id
	})
}

// FindBySubscriptionID looks an alert up by its processor subscription.
func (r *TableAlertRepository) FindBySubscriptionID(ctx context.Context, subscriptionID string) (*models.JobAlert, error) {
	return r.find(ctx, func(row store.Row) bool {
		return store.String(row, "stripeSubscriptionId") == subscriptionID
	})
}

// Create inserts alert and returns it with its id.
func (r *TableAlertRepository) Create(ctx context.Context, alert models.JobAlert) (*models.JobAlert, error) {
	row, err := r.store.Create(ctx, r.table, alert.Fields())
	if err != nil {
		return nil, err
	}
	alert.ID, _ = store.Int64(row, store.IDField)
	return &alert, nil
}

// Update overwrites every field of alert.
func (r *TableAlertRepository) Update(ctx context.Context, alert models.JobAlert) error {
	err := r.store.UpdateFields(ctx, r.table, alert.ID, alert.Fields())
	if errors.Is(err, store.ErrRowNotFound) {
		return ErrNotFound
	}
	return err
}

// AlertService manages the lifecycle of email job alerts.
type AlertService struct {
	repo     AlertRepository
	payments AlertPayments
	mailer   Mailer
	clock    Clock
	baseURL  string
	logger   *zap.Logger
}

// AlertOptions configures an AlertService.
type AlertOptions struct {
	Payments AlertPayments
	Mailer   Mailer
	Clock    Clock
	// BaseURL prefixes the unsubscribe links sent by mail.
	BaseURL string
	Logger  *zap.Logger
}

// NewAlertService creates an AlertService.
func NewAlertService(repo AlertRepository, opts AlertOptions) *AlertService {
	s := &AlertService{
		repo:     repo,
		payments: opts.Payments,
		mailer:   opts.Mailer,
		clock:    opts.Clock,
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		logger:   opts.Logger,
	}
	if s.clock == nil {
		s.clock = RealClock{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// SubscribeResult is either an active alert or a checkout to complete first.
type SubscribeResult struct {
	Alert    *models.JobAlert `json:"alert,omitempty"`
	Checkout *CheckoutSession `json:"checkout,omitempty"`
}

// Subscribe creates or reactivates the alert of email. Realtime alerts are
// paid: unless the address already has a subscription, a checkout is returned
// and the alert is activated by the payment webhook.
func (s *AlertService) Subscribe(ctx context.Context, email, frequency string) (*SubscribeResult, error) {
	email, err := validateEmail(email)
	if err != nil {
		return nil, err
	}
	frequency = strings.ToLower(strings.TrimSpace(frequency))
	if frequency == "" {
		frequency = models.FrequencyDaily
	}
	if !models.ValidFrequency(frequency) {
		return nil, invalid("Invalid frequency. Must be daily, weekly, or realtime")
	}

	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("find alert: %w", err)
	}

	if frequency == models.FrequencyRealtime && (existing == nil || existing.StripeSubscriptionID == "") {
		if s.payments == nil {
			return nil, fmt.Errorf("realtime alerts: %w", ErrNotConfigured)
		}
		sess, err := s.payments.CreateAlertCheckout(ctx, email)
		if err != nil {
			return nil, err
		}
		return &SubscribeResult{Checkout: sess}, nil
	}

	now := s.clock.Now().UTC()
	var alert *models.JobAlert
	if existing != nil {
		existing.Frequency = frequency
		existing.IsActive = true
		existing.UpdatedAt = now
		if err := s.repo.Update(ctx, *existing); err != nil {
			return nil, fmt.Errorf("update alert: %w", err)
		}
		alert = existing
	} else {
		alert, err = s.repo.Create(ctx, models.JobAlert{
			Email:        email,
			Frequency:    frequency,
			IsActive:     true,
			SubscribedAt: now,
			UpdatedAt:    now,
		})
		if err != nil {
			return nil, fmt.Errorf("create alert: %w", err)
		}
	}

	s.sendConfirmation(*alert)
	return &SubscribeResult{Alert: alert}, nil
}

// Unsubscribe deactivates the alert named by token.
func (s *AlertService) Unsubscribe(ctx context.Context, token string) (*models.JobAlert, error) {
	rawID, email, err := DecodeUnsubscribeToken(token)
	if err != nil {
		return nil, err
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return nil, ErrInvalidToken
	}
	alert, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(alert.Email, email) {
		return nil, ErrInvalidToken
	}

	if alert.StripeSubscriptionID != "" && s.payments != nil {
		if err := s.payments.CancelSubscription(ctx, alert.StripeSubscriptionID); err != nil {
			// the deletion webhook will not arrive; keep the local record authoritative
			s.logger.Warn("cancel subscription failed", zap.Int64("alert_id", alert.ID), zap.Error(err))
		}
	}

	alert.IsActive = false
	alert.UpdatedAt = s.clock.Now().UTC()
	if err := s.repo.Update(ctx, *alert); err != nil {
		return nil, fmt.Errorf("deactivate alert: %w", err)
	}
	return alert, nil
}

// Status returns the alert of email.
func (s *AlertService) Status(ctx context.Context, email string) (*models.JobAlert, error) {
	email, err := validateEmail(email)
	if err != nil {
		return nil, err
	}
	return s.repo.FindByEmail(ctx, email)
}

// ActivatePaid records a completed realtime subscription for email.
func (s *AlertService) ActivatePaid(ctx context.Context, email, customerID, subscriptionID string) error {
	email = NormalizeEmail(email)
	now := s.clock.Now().UTC()
	alert, err := s.repo.FindByEmail(ctx, email)
	switch {
	case errors.Is(err, ErrNotFound):
		alert, err = s.repo.Create(ctx, models.JobAlert{
			Email:                email,
			Frequency:            models.FrequencyRealtime,
			IsActive:             true,
			StripeCustomerID:     customerID,
			StripeSubscriptionID: subscriptionID,
			SubscribedAt:         now,
			UpdatedAt:            now,
		})
		if err != nil {
			return fmt.Errorf("create paid alert: %w", err)
		}
	case err != nil:
		return fmt.Errorf("find alert: %w", err)
	default:
		alert.Frequency = models.FrequencyRealtime
		alert.IsActive = true
		alert.StripeCustomerID = customerID
		alert.StripeSubscriptionID = subscriptionID
		alert.UpdatedAt = now
		if err := s.repo.Update(ctx, *alert); err != nil {
			return fmt.Errorf("activate paid alert: %w", err)
		}
	}
	s.logger.Info("realtime alert activated", zap.Int64("alert_id", alert.ID), zap.String("subscription", subscriptionID))
	s.sendConfirmation(*alert)
	return nil
}

// DeactivateSubscription turns off the alert paid by subscriptionID. Unknown subscriptions are ignored.
func (s *AlertService) DeactivateSubscription(ctx context.Context, subscriptionID string) error {
	if subscriptionID == "" {
		return nil
	}
	alert, err := s.repo.FindBySubscriptionID(ctx, subscriptionID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("find alert by subscription: %w", err)
	}
	alert.IsActive = false
	alert.UpdatedAt = s.clock.Now().UTC()
	return s.repo.Update(ctx, *alert)
}

// UnsubscribeURL builds the link mailed with every alert.
func (s *AlertService) UnsubscribeURL(alert models.JobAlert) string {
	token := EncodeUnsubscribeToken(strconv.FormatInt(alert.ID, 10), alert.Email)
	return s.baseURL + "/api/v1/alerts/unsubscribe?token=" + url.QueryEscape(token)
}

func (s *AlertService) sendConfirmation(alert models.JobAlert) {
	if s.mailer == nil {
		return
	}
	body := fmt.Sprintf("You are subscribed to %s job alerts.\n\nTo stop receiving them, open:\n%s\n",
		alert.Frequency, s.UnsubscribeURL(alert))
	if err := s.mailer.Send(alert.Email, "Your job alert subscription", body); err != nil {
		s.logger.Warn("alert confirmation mail failed", zap.Int64("alert_id", alert.ID), zap.Error(err))
	}
}

func validateEmail(email string) (string, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return "", invalid("Email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", invalid("Invalid email address")
	}
	return email, nil
}
