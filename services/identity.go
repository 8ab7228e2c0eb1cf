package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/jobboard/models"
	"github.com/cppla/jobboard/utils"
)

const (
	resetTokenTTL     = time.Hour
	minPasswordLength = 8
)

// OAuthProfile is the identity returned by an OAuth provider.
type OAuthProfile struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	// EmailVerified is set when the provider vouches for Email.
	EmailVerified bool   `json:"emailVerified"`
	DisplayName   string `json:"name"`
	AvatarURL     string `json:"picture"`
}

// Directory is the identity provider of the job board.
type Directory interface {
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	// Authenticate checks a password sign-in.
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	// GeneratePasswordResetLink mints a one-hour link for email.
	GeneratePasswordResetLink(ctx context.Context, email string) (string, error)
	// VerifyPasswordResetToken returns the user the token was minted for and when it expires.
	VerifyPasswordResetToken(ctx context.Context, token string) (*models.User, time.Time, error)
	UpdatePassword(ctx context.Context, userID uint, password string) error
	UpsertOAuthUser(ctx context.Context, provider string, profile OAuthProfile) (*models.User, error)
}

// LocalDirectory implements Directory on the users table.
type LocalDirectory struct {
	db           *gorm.DB
	resetBaseURL string
}

// NewLocalDirectory creates a directory over db.
func NewLocalDirectory(db *gorm.DB, resetBaseURL string) *LocalDirectory {
	return &LocalDirectory{db: db, resetBaseURL: resetBaseURL}
}

// GetUserByEmail looks a user up by normalized email.
func (d *LocalDirectory) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := d.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Authenticate returns ErrInvalidCredentials for unknown emails, OAuth-only accounts and wrong passwords alike.
func (d *LocalDirectory) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := d.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if user.PasswordHash == "" || !utils.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// GeneratePasswordResetLink signs a reset token for email.
func (d *LocalDirectory) GeneratePasswordResetLink(ctx context.Context, email string) (string, error) {
	user, err := d.GetUserByEmail(ctx, email)
	if err != nil {
		return "", err
	}
	token, err := utils.GenerateScopedToken(user.ID, user.Email, utils.PurposePasswordReset, resetTokenTTL)
	if err != nil {
		return "", fmt.Errorf("sign reset token: %w", err)
	}
	return d.resetBaseURL + "?token=" + url.QueryEscape(token), nil
}

// VerifyPasswordResetToken checks the signature and that the account still has the same email.
func (d *LocalDirectory) VerifyPasswordResetToken(ctx context.Context, token string) (*models.User, time.Time, error) {
	claims, err := utils.ParseScopedToken(token, utils.PurposePasswordReset)
	if err != nil {
		return nil, time.Time{}, ErrInvalidToken
	}
	var user models.User
	if err := d.db.WithContext(ctx).First(&user, claims.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, time.Time{}, ErrInvalidToken
		}
		return nil, time.Time{}, err
	}
	if !strings.EqualFold(user.Email, claims.Email) {
		return nil, time.Time{}, ErrInvalidToken
	}
	var exp time.Time
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	return &user, exp, nil
}

// UpdatePassword stores a bcrypt hash of password and links the password provider.
func (d *LocalDirectory) UpdatePassword(ctx context.Context, userID uint, password string) error {
	hash, err := utils.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	var user models.User
	if err := d.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	user.PasswordHash = hash
	user.AddProvider(models.ProviderPassword)
	return d.db.WithContext(ctx).Save(&user).Error
}

// UpsertOAuthUser finds the user by provider id, then by verified email, and creates it otherwise.
// Unverified emails are neither matched nor stored, so a new account needs a verified one.
func (d *LocalDirectory) UpsertOAuthUser(ctx context.Context, provider string, p OAuthProfile) (*models.User, error) {
	if p.ID == "" {
		return nil, fmt.Errorf("oauth profile without subject")
	}
	email := ""
	if p.EmailVerified {
		email = NormalizeEmail(p.Email)
	}
	db := d.db.WithContext(ctx)
	var user models.User
	err := db.Where("linked_in_id = ?", p.ID).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) && email != "" {
		err = db.Where("email = ?", email).First(&user).Error
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound) && email == "":
		return nil, ErrEmailNotVerified
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = models.User{
			Email:       email,
			DisplayName: p.DisplayName,
			AvatarURL:   p.AvatarURL,
			LinkedInID:  p.ID,
		}
		user.AddProvider(provider)
		if err := db.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
	case err != nil:
		return nil, err
	default:
		user.LinkedInID = p.ID
		user.AddProvider(provider)
		if p.DisplayName != "" {
			user.DisplayName = p.DisplayName
		}
		if p.AvatarURL != "" {
			user.AvatarURL = p.AvatarURL
		}
		if err := db.Save(&user).Error; err != nil {
			return nil, fmt.Errorf("update user: %w", err)
		}
	}
	return &user, nil
}

// TokenRevoker records spent single-use tokens. utils.TokenRevocationList implements it.
type TokenRevoker interface {
	Revoke(token string, expiresAt time.Time)
	Revoked(token string) bool
}

// PasswordResetService delegates password resets to the directory and mails the link.
type PasswordResetService struct {
	dir     Directory
	mailer  Mailer
	revoked TokenRevoker
	logger  *zap.Logger
}

// NewPasswordResetService creates the service. A nil directory means identity is not configured.
func NewPasswordResetService(dir Directory, mailer Mailer, revoked TokenRevoker, logger *zap.Logger) *PasswordResetService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PasswordResetService{dir: dir, mailer: mailer, revoked: revoked, logger: logger}
}

// OAuthOnlyError reports an account that cannot reset a password because it signs in through providers only.
type OAuthOnlyError struct {
	Providers []string
}

func (e *OAuthOnlyError) Error() string {
	return "This account signs in with " + strings.Join(e.Providers, ", ") + ". Use that provider to log in."
}

// Is lets errors.Is(err, ErrInvalidInput) match.
func (e *OAuthOnlyError) Is(target error) bool { return target == ErrInvalidInput }

// RequestReset mails a reset link to email.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string) error {
	if s.dir == nil {
		return fmt.Errorf("identity directory: %w", ErrNotConfigured)
	}
	if s.mailer == nil {
		return fmt.Errorf("mailer: %w", ErrNotConfigured)
	}
	email, err := validateEmail(email)
	if err != nil {
		return err
	}
	user, err := s.dir.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !user.HasProvider(models.ProviderPassword) && len(user.ProviderList()) > 0 {
		return &OAuthOnlyError{Providers: user.ProviderList()}
	}
	link, err := s.dir.GeneratePasswordResetLink(ctx, email)
	if err != nil {
		return fmt.Errorf("generate reset link: %w", err)
	}
	body := fmt.Sprintf("We received a request to reset your password.\n\nOpen this link within one hour:\n%s\n\nIf you did not ask for it, ignore this email.\n", link)
	if err := s.mailer.Send(user.Email, "Reset your password", body); err != nil {
		return fmt.Errorf("send reset mail: %w", err)
	}
	s.logger.Info("password reset link sent", zap.Uint("user_id", user.ID))
	return nil
}

// ResetPassword sets a new password with a token minted by RequestReset. Each token works once.
func (s *PasswordResetService) ResetPassword(ctx context.Context, token, password string) error {
	if s.dir == nil {
		return fmt.Errorf("identity directory: %w", ErrNotConfigured)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return invalid("Token is required")
	}
	if len(password) < minPasswordLength {
		return invalid(fmt.Sprintf("Password must be at least %d characters", minPasswordLength))
	}
	if s.revoked != nil && s.revoked.Revoked(token) {
		return ErrInvalidToken
	}
	user, exp, err := s.dir.VerifyPasswordResetToken(ctx, token)
	if err != nil {
		return err
	}
	if err := s.dir.UpdatePassword(ctx, user.ID, password); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if s.revoked != nil {
		s.revoked.Revoke(token, exp)
	}
	return nil
}
