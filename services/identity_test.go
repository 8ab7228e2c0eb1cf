package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/jobboard/models"
	"github.com/cppla/jobboard/services"
	"github.com/cppla/jobboard/utils"
)

// memDirectory accepts the token "reset-<id>" for user id.
type memDirectory struct {
	users     map[string]*models.User
	passwords map[uint]string
}

func newMemDirectory(users ...*models.User) *memDirectory {
	d := &memDirectory{users: map[string]*models.User{}, passwords: map[uint]string{}}
	for _, u := range users {
		d.users[u.Email] = u
	}
	return d
}

func (d *memDirectory) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	if u, ok := d.users[email]; ok {
		return u, nil
	}
	return nil, services.ErrNotFound
}

func (d *memDirectory) Authenticate(context.Context, string, string) (*models.User, error) {
	return nil, services.ErrInvalidCredentials
}

func (d *memDirectory) GeneratePasswordResetLink(_ context.Context, email string) (string, error) {
	return "https://jobs.example.com/reset?token=reset-" + email, nil
}

func (d *memDirectory) VerifyPasswordResetToken(_ context.Context, token string) (*models.User, time.Time, error) {
	for _, u := range d.users {
		if token == "reset-"+u.Email {
			return u, time.Now().Add(time.Hour), nil
		}
	}
	return nil, time.Time{}, services.ErrInvalidToken
}

func (d *memDirectory) UpdatePassword(_ context.Context, userID uint, password string) error {
	d.passwords[userID] = password
	return nil
}

func (d *memDirectory) UpsertOAuthUser(context.Context, string, services.OAuthProfile) (*models.User, error) {
	return nil, errors.New("not supported")
}

func TestPasswordReset_RequestMailsLink(t *testing.T) {
	dir := newMemDirectory(&models.User{ID: 1, Email: "dev@example.com", Providers: "password"})
	mailer := &fakeMailer{}
	svc := services.NewPasswordResetService(dir, mailer, nil, nil)

	require.NoError(t, svc.RequestReset(context.Background(), " DEV@example.com "))
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "dev@example.com", mailer.sent[0].to)
	assert.Contains(t, mailer.sent[0].body, "https://jobs.example.com/reset?token=reset-dev@example.com")
}

func TestPasswordReset_RequestErrors(t *testing.T) {
	ctx := context.Background()
	dir := newMemDirectory(&models.User{ID: 2, Email: "oauth@example.com", Providers: "linkedin"})

	err := services.NewPasswordResetService(nil, &fakeMailer{}, nil, nil).RequestReset(ctx, "a@example.com")
	assert.ErrorIs(t, err, services.ErrNotConfigured)
	err = services.NewPasswordResetService(dir, nil, nil, nil).RequestReset(ctx, "a@example.com")
	assert.ErrorIs(t, err, services.ErrNotConfigured)

	svc := services.NewPasswordResetService(dir, &fakeMailer{}, nil, nil)
	assert.ErrorIs(t, svc.RequestReset(ctx, "nobody@example.com"), services.ErrNotFound)
	assert.ErrorIs(t, svc.RequestReset(ctx, "bad"), services.ErrInvalidInput)

	err = svc.RequestReset(ctx, "oauth@example.com")
	var oauthOnly *services.OAuthOnlyError
	require.ErrorAs(t, err, &oauthOnly)
	assert.Equal(t, []string{"linkedin"}, oauthOnly.Providers)
	assert.ErrorIs(t, err, services.ErrInvalidInput)
}

func TestPasswordReset_ResetIsSingleUse(t *testing.T) {
	ctx := context.Background()
	dir := newMemDirectory(&models.User{ID: 3, Email: "dev@example.com", Providers: "password"})
	svc := services.NewPasswordResetService(dir, &fakeMailer{}, utils.NewTokenRevocationList(nil), nil)

	require.NoError(t, svc.ResetPassword(ctx, "reset-dev@example.com", "correct horse"))
	assert.Equal(t, "correct horse", dir.passwords[3])

	err := svc.ResetPassword(ctx, "reset-dev@example.com", "another password")
	assert.ErrorIs(t, err, services.ErrInvalidToken)
	assert.Equal(t, "correct horse", dir.passwords[3])
}

func TestPasswordReset_ResetValidates(t *testing.T) {
	ctx := context.Background()
	svc := services.NewPasswordResetService(newMemDirectory(), nil, nil, nil)

	assert.EqualError(t, svc.ResetPassword(ctx, "  ", "long enough"), "Token is required")
	assert.EqualError(t, svc.ResetPassword(ctx, "tok", "short"), "Password must be at least 8 characters")
	assert.ErrorIs(t, svc.ResetPassword(ctx, "tok", "long enough"), services.ErrInvalidToken)
}
