package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/oauth2"

	"github.com/cppla/jobboard/middleware"
	"github.com/cppla/jobboard/models"
	"github.com/cppla/jobboard/services"
	"github.com/cppla/jobboard/utils"
)

const sessionTTL = 72 * time.Hour

// PasswordResets is services.PasswordResetService.
type PasswordResets interface {
	RequestReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password string) error
}

// OAuthProvider is services.LinkedInProvider.
type OAuthProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	UserInfo(ctx context.Context, tok *oauth2.Token) (*services.OAuthProfile, error)
}

// OAuthStates issues and consumes single-use OAuth state values. utils.StateStore implements it.
type OAuthStates interface {
	Issue(ctx context.Context) (string, error)
	Consume(ctx context.Context, state string) bool
}

// SessionRevoker signs session tokens out. utils.TokenRevocationList implements it.
type SessionRevoker interface {
	Revoke(token string, expiresAt time.Time)
}

// AuthController handles password sign-in, password resets and LinkedIn sign-in.
type AuthController struct {
	dir      services.Directory
	resets   PasswordResets
	linkedin OAuthProvider
	states   OAuthStates
	revoker  SessionRevoker
}

// AuthDeps groups the collaborators of AuthController. Nil members disable their endpoints.
type AuthDeps struct {
	Directory services.Directory
	Resets    PasswordResets
	LinkedIn  OAuthProvider
	States    OAuthStates
	Revoker   SessionRevoker
}

// NewAuthController creates a new AuthController instance.
func NewAuthController(d AuthDeps) *AuthController {
	return &AuthController{
		dir:      d.Directory,
		resets:   d.Resets,
		linkedin: d.LinkedIn,
		states:   d.States,
		revoker:  d.Revoker,
	}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login signs a password user in and issues a session JWT.
func (a *AuthController) Login(ctx *gin.Context) {
	if a.dir == nil {
		notConfigured(ctx, "Identity directory")
		return
	}
	var req loginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, "Email and password are required")
		return
	}
	user, err := a.dir.Authenticate(ctx.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(ctx, err)
		return
	}
	a.issueSession(ctx, user)
}

// Logout revokes the bearer token until it expires.
func (a *AuthController) Logout(ctx *gin.Context) {
	token := ctx.GetString(middleware.ContextTokenKey)
	claims, err := utils.ParseToken(token)
	if err != nil {
		utils.Error(ctx, http.StatusUnauthorized, "Invalid token")
		return
	}
	expiresAt := time.Now().Add(sessionTTL)
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if a.revoker != nil {
		a.revoker.Revoke(token, expiresAt)
	}
	utils.Success(ctx, gin.H{"message": "Logged out"})
}

// Me returns the signed-in user.
func (a *AuthController) Me(ctx *gin.Context) {
	if a.dir == nil {
		notConfigured(ctx, "Identity directory")
		return
	}
	user, err := a.dir.GetUserByEmail(ctx.Request.Context(), ctx.GetString(middleware.ContextEmailKey))
	if err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"user": userResponse(*user)})
}

type resetRequest struct {
	Email string `json:"email"`
}

// RequestPasswordReset mails a reset link. OAuth-only accounts get 400 naming their providers.
func (a *AuthController) RequestPasswordReset(ctx *gin.Context) {
	if a.resets == nil || a.dir == nil {
		notConfigured(ctx, "Identity directory")
		return
	}
	var req resetRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := a.resets.RequestReset(ctx.Request.Context(), req.Email); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			utils.Error(ctx, http.StatusNotFound, "No account with that email")
			return
		}
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"message": "Password reset email sent"})
}

type confirmResetRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// ConfirmPasswordReset sets a new password with a mailed token.
func (a *AuthController) ConfirmPasswordReset(ctx *gin.Context) {
	if a.resets == nil || a.dir == nil {
		notConfigured(ctx, "Identity directory")
		return
	}
	var req confirmResetRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := a.resets.ResetPassword(ctx.Request.Context(), req.Token, req.Password); err != nil {
		respondError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"message": "Password updated"})
}

// LinkedInLogin returns the LinkedIn authorization URL and its state.
func (a *AuthController) LinkedInLogin(ctx *gin.Context) {
	if a.linkedin == nil || a.states == nil {
		notConfigured(ctx, "LinkedIn client")
		return
	}
	state, err := a.states.Issue(ctx.Request.Context())
	if err != nil {
		utils.ServerError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"authorization_url": a.linkedin.AuthCodeURL(state), "state": state})
}

// LinkedInCallback exchanges the code, links the profile to a user and issues a session JWT.
func (a *AuthController) LinkedInCallback(ctx *gin.Context) {
	if a.linkedin == nil || a.states == nil {
		notConfigured(ctx, "LinkedIn client")
		return
	}
	if a.dir == nil {
		notConfigured(ctx, "Identity directory")
		return
	}
	if e := ctx.Query("error"); e != "" {
		utils.Error(ctx, http.StatusBadRequest, "LinkedIn sign-in failed: "+e)
		return
	}
	code, state := ctx.Query("code"), ctx.Query("state")
	if code == "" || state == "" {
		utils.Error(ctx, http.StatusBadRequest, "Missing code or state")
		return
	}
	if !a.states.Consume(ctx.Request.Context(), state) {
		utils.Error(ctx, http.StatusBadRequest, "Invalid or expired state")
		return
	}

	tok, err := a.linkedin.Exchange(ctx.Request.Context(), code)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, "Failed to exchange code")
		return
	}
	profile, err := a.linkedin.UserInfo(ctx.Request.Context(), tok)
	if err != nil {
		utils.ServerError(ctx, err)
		return
	}
	user, err := a.dir.UpsertOAuthUser(ctx.Request.Context(), models.ProviderLinkedIn, *profile)
	if errors.Is(err, services.ErrEmailNotVerified) {
		utils.Error(ctx, http.StatusForbidden, "LinkedIn email is not verified")
		return
	}
	if err != nil {
		utils.ServerError(ctx, err)
		return
	}
	a.issueSession(ctx, user)
}

func (a *AuthController) issueSession(ctx *gin.Context, user *models.User) {
	token, err := utils.GenerateToken(user.ID, user.Email, sessionTTL)
	if err != nil {
		utils.ServerError(ctx, err)
		return
	}
	utils.Success(ctx, gin.H{"token": token, "user": userResponse(*user)})
}

func userResponse(u models.User) gin.H {
	return gin.H{
		"id":           u.ID,
		"email":        u.Email,
		"display_name": u.DisplayName,
		"avatar_url":   u.AvatarURL,
		"providers":    u.ProviderList(),
	}
}
