package controllers_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/cppla/jobboard/controllers"
	"github.com/cppla/jobboard/middleware"
	"github.com/cppla/jobboard/models"
	"github.com/cppla/jobboard/services"
	"github.com/cppla/jobboard/utils"
)

type stubDirectory struct {
	users    map[string]*models.User
	upserted *services.OAuthProfile
}

func newStubDirectory() *stubDirectory {
	return &stubDirectory{users: map[string]*models.User{
		"dev@example.com": {ID: 1, Email: "dev@example.com", DisplayName: "Dev", Providers: "password"},
	}}
}

func (d *stubDirectory) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	if u, ok := d.users[email]; ok {
		return u, nil
	}
	return nil, services.ErrNotFound
}

func (d *stubDirectory) Authenticate(_ context.Context, email, password string) (*models.User, error) {
	if u, ok := d.users[email]; ok && password == "hunter22" {
		return u, nil
	}
	return nil, services.ErrInvalidCredentials
}

func (d *stubDirectory) GeneratePasswordResetLink(context.Context, string) (string, error) {
	return "", errors.New("unused")
}

func (d *stubDirectory) VerifyPasswordResetToken(context.Context, string) (*models.User, time.Time, error) {
	return nil, time.Time{}, services.ErrInvalidToken
}

func (d *stubDirectory) UpdatePassword(context.Context, uint, string) error { return nil }

func (d *stubDirectory) UpsertOAuthUser(_ context.Context, provider string, p services.OAuthProfile) (*models.User, error) {
	d.upserted = &p
	if !p.EmailVerified {
		return nil, services.ErrEmailNotVerified
	}
	u := &models.User{ID: 9, Email: p.Email, DisplayName: p.DisplayName, Providers: provider, LinkedInID: p.ID}
	d.users[p.Email] = u
	return u, nil
}

type stubResets struct{ err error }

func (s stubResets) RequestReset(context.Context, string) error          { return s.err }
func (s stubResets) ResetPassword(context.Context, string, string) error { return s.err }

type stubLinkedIn struct{ unverified bool }

func (stubLinkedIn) AuthCodeURL(state string) string {
	return "https://www.linkedin.com/oauth/v2/authorization?state=" + state
}

func (stubLinkedIn) Exchange(_ context.Context, code string) (*oauth2.Token, error) {
	if code != "good-code" {
		return nil, errors.New("invalid_grant")
	}
	return &oauth2.Token{AccessToken: "at"}, nil
}

func (s stubLinkedIn) UserInfo(context.Context, *oauth2.Token) (*services.OAuthProfile, error) {
	if s.unverified {
		return &services.OAuthProfile{ID: "li-2", DisplayName: "Unverified"}, nil
	}
	return &services.OAuthProfile{ID: "li-1", Email: "member@example.com", EmailVerified: true, DisplayName: "Member"}, nil
}

func authRouter(deps controllers.AuthDeps, revoked middleware.Revocations) *gin.Engine {
	c := controllers.NewAuthController(deps)
	required := middleware.AuthRequired(revoked)
	r := gin.New()
	r.POST("/auth/login", c.Login)
	r.POST("/auth/logout", required, c.Logout)
	r.GET("/auth/me", required, c.Me)
	r.POST("/auth/password-reset", c.RequestPasswordReset)
	r.POST("/auth/password-reset/confirm", c.ConfirmPasswordReset)
	r.GET("/auth/linkedin/login", c.LinkedInLogin)
	r.GET("/auth/linkedin/callback", c.LinkedInCallback)
	return r
}

func TestLoginMeLogout(t *testing.T) {
	revocations := utils.NewTokenRevocationList(nil)
	r := authRouter(controllers.AuthDeps{Directory: newStubDirectory(), Revoker: revocations}, revocations)

	w := perform(r, http.MethodPost, "/auth/login", `{"email":"dev@example.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = perform(r, http.MethodPost, "/auth/login", `{"email":"dev@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = perform(r, http.MethodPost, "/auth/login", `{"email":"dev@example.com","password":"hunter22"}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	assert.Equal(t, []any{"password"}, body["user"].(map[string]any)["providers"])

	auth := "Bearer " + token
	w = perform(r, http.MethodGet, "/auth/me", "", "Authorization", auth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "dev@example.com", decode(t, w)["user"].(map[string]any)["email"])

	w = perform(r, http.MethodPost, "/auth/logout", "", "Authorization", auth)
	require.Equal(t, http.StatusOK, w.Code)

	w = perform(r, http.MethodGet, "/auth/me", "", "Authorization", auth)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Token revoked", decode(t, w)["error"])
}

func TestPasswordResetEndpoints(t *testing.T) {
	dir := newStubDirectory()
	tests := []struct {
		name   string
		err    error
		path   string
		status int
		msg    string
	}{
		{"sent", nil, "/auth/password-reset", http.StatusOK, ""},
		{"unknown email", services.ErrNotFound, "/auth/password-reset", http.StatusNotFound, "No account with that email"},
		{"oauth only", &services.OAuthOnlyError{Providers: []string{"linkedin"}}, "/auth/password-reset", http.StatusBadRequest,
			"This account signs in with linkedin. Use that provider to log in."},
		{"confirmed", nil, "/auth/password-reset/confirm", http.StatusOK, ""},
		{"spent token", services.ErrInvalidToken, "/auth/password-reset/confirm", http.StatusBadRequest, "Invalid or expired token"},
		{"short password", &services.InputError{Msg: "Password must be at least 8 characters"}, "/auth/password-reset/confirm",
			http.StatusBadRequest, "Password must be at least 8 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := authRouter(controllers.AuthDeps{Directory: dir, Resets: stubResets{err: tt.err}}, nil)
			w := perform(r, http.MethodPost, tt.path, `{"email":"dev@example.com","token":"t","password":"longenough"}`)
			assert.Equal(t, tt.status, w.Code)
			if tt.msg != "" {
				assert.Equal(t, tt.msg, decode(t, w)["error"])
			}
		})
	}
}

func TestPasswordReset_NotConfigured(t *testing.T) {
	r := authRouter(controllers.AuthDeps{}, nil)
	w := perform(r, http.MethodPost, "/auth/password-reset", `{"email":"dev@example.com"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Identity directory not configured", decode(t, w)["error"])
}

func TestLinkedInFlow(t *testing.T) {
	dir := newStubDirectory()
	r := authRouter(controllers.AuthDeps{
		Directory: dir,
		LinkedIn:  stubLinkedIn{},
		States:    utils.NewStateStore(nil, time.Minute),
	}, nil)

	w := perform(r, http.MethodGet, "/auth/linkedin/login", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	state := body["state"].(string)
	require.NotEmpty(t, state)
	assert.True(t, strings.HasSuffix(body["authorization_url"].(string), "state="+state))

	w = perform(r, http.MethodGet, "/auth/linkedin/callback?code=good-code&state=forged", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid or expired state", decode(t, w)["error"])

	w = perform(r, http.MethodGet, "/auth/linkedin/callback?code=good-code&state="+state, "")
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.NotEmpty(t, body["token"])
	require.NotNil(t, dir.upserted)
	assert.Equal(t, "li-1", dir.upserted.ID)

	// states are single use
	w = perform(r, http.MethodGet, "/auth/linkedin/callback?code=good-code&state="+state, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLinkedInCallback_Errors(t *testing.T) {
	states := utils.NewStateStore(nil, time.Minute)
	r := authRouter(controllers.AuthDeps{Directory: newStubDirectory(), LinkedIn: stubLinkedIn{}, States: states}, nil)

	w := perform(r, http.MethodGet, "/auth/linkedin/callback?error=user_cancelled_login", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = perform(r, http.MethodGet, "/auth/linkedin/callback?code=x", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Missing code or state", decode(t, w)["error"])

	state, err := states.Issue(context.Background())
	require.NoError(t, err)
	w = perform(r, http.MethodGet, "/auth/linkedin/callback?code=bad-code&state="+state, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Failed to exchange code", decode(t, w)["error"])
}

func TestLinkedInCallback_UnverifiedEmailIsForbidden(t *testing.T) {
	states := utils.NewStateStore(nil, time.Minute)
	dir := newStubDirectory()
	r := authRouter(controllers.AuthDeps{Directory: dir, LinkedIn: stubLinkedIn{unverified: true}, States: states}, nil)

	state, err := states.Issue(context.Background())
	require.NoError(t, err)
	w := perform(r, http.MethodGet, "/auth/linkedin/callback?code=good-code&state="+state, "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "LinkedIn email is not verified", decode(t, w)["error"])
	assert.NotContains(t, w.Body.String(), "token")
}

func TestLinkedIn_NotConfigured(t *testing.T) {
	w := perform(authRouter(controllers.AuthDeps{}, nil), http.MethodGet, "/auth/linkedin/login", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "LinkedIn client not configured", decode(t, w)["error"])
}
