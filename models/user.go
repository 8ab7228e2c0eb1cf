package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// Provider names stored in User.Providers.
const (
	ProviderPassword = "password"
	ProviderLinkedIn = "linkedin"
)

// User is an account of the job board. Passwords are stored as bcrypt hashes only.
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Email        string         `gorm:"size:255;uniqueIndex;not null" json:"email"`
	DisplayName  string         `gorm:"size:255" json:"display_name"`
	AvatarURL    string         `gorm:"size:512" json:"avatar_url"`
	PasswordHash string         `gorm:"size:255" json:"-"`
	Providers    string         `gorm:"size:255" json:"-"` // comma separated
	LinkedInID   string         `gorm:"size:255;index" json:"-"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// ProviderList returns the linked sign-in providers.
func (u User) ProviderList() []string {
	var out []string
	for _, p := range strings.Split(u.Providers, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// HasProvider reports whether provider is linked to the account.
func (u User) HasProvider(provider string) bool {
	for _, p := range u.ProviderList() {
		if p == provider {
			return true
		}
	}
	return false
}

// AddProvider links provider if it is not linked yet.
func (u *User) AddProvider(provider string) {
	if u.HasProvider(provider) {
		return
	}
	u.Providers = strings.Join(append(u.ProviderList(), provider), ",")
}

// BeforeCreate ensures timestamps are set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return nil
}

// BeforeUpdate refreshes the UpdatedAt timestamp.
func (u *User) BeforeUpdate(tx *gorm.DB) error {
	u.UpdatedAt = time.Now()
	return nil
}
