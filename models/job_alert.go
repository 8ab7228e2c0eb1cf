package models

import (
	"time"

	"github.com/cppla/jobboard/store"
)

// JobAlertsTable holds one document per subscribed email.
const JobAlertsTable = "jobAlerts"

// Alert frequencies.
const (
	FrequencyDaily    = "daily"
	FrequencyWeekly   = "weekly"
	FrequencyRealtime = "realtime"
)

// ValidFrequency reports whether f is a supported alert frequency.
func ValidFrequency(f string) bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyRealtime:
		return true
	}
	return false
}

// JobAlert is an email subscription to new job postings.
type JobAlert struct {
	ID                   int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Email                string    `gorm:"column:email;size:255;index" json:"email"`
	Frequency            string    `gorm:"column:frequency;size:16" json:"frequency"`
	IsActive             bool      `gorm:"column:isActive;not null;default:false" json:"isActive"`
	StripeCustomerID     string    `gorm:"column:stripeCustomerId;size:255" json:"stripeCustomerId,omitempty"`
	StripeSubscriptionID string    `gorm:"column:stripeSubscriptionId;size:255;index" json:"stripeSubscriptionId,omitempty"`
	SubscribedAt         time.Time `gorm:"column:subscribedAt;type:varchar(32)" json:"subscribedAt"`
	UpdatedAt            time.Time `gorm:"column:updatedAt;type:varchar(32)" json:"updatedAt"`
}

// JobAlertFromRow decodes a jobAlerts row. Unparseable timestamps decode to zero.
func JobAlertFromRow(row store.Row) JobAlert {
	id, _ := store.Int64(row, store.IDField)
	subscribed, _ := time.Parse(time.RFC3339, store.String(row, "subscribedAt"))
	updated, _ := time.Parse(time.RFC3339, store.String(row, "updatedAt"))
	return JobAlert{
		ID:                   id,
		Email:                store.String(row, "email"),
		Frequency:            store.String(row, "frequency"),
		IsActive:             store.Bool(row, "isActive"),
		StripeCustomerID:     store.String(row, "stripeCustomerId"),
		StripeSubscriptionID: store.String(row, "stripeSubscriptionId"),
		SubscribedAt:         subscribed,
		UpdatedAt:            updated,
	}
}

// Fields encodes the alert for a Create or a full update.
func (a JobAlert) Fields() store.Row {
	return store.Row{
		"email":                a.Email,
		"frequency":            a.Frequency,
		"isActive":             a.IsActive,
		"stripeCustomerId":     a.StripeCustomerID,
		"stripeSubscriptionId": a.StripeSubscriptionID,
		"subscribedAt":         a.SubscribedAt.UTC().Format(time.RFC3339),
		"updatedAt":            a.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
