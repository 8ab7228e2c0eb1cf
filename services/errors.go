package services

import "errors"

var (
	// ErrInvalidInput marks a missing or malformed request field.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound marks a referenced record that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidSignature marks a webhook whose signature does not verify.
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrInvalidToken marks an unsubscribe or reset token that does not decode or match.
	ErrInvalidToken = errors.New("invalid token")
	// ErrNotConfigured marks a missing credential detected before calling a collaborator.
	ErrNotConfigured = errors.New("not configured")
	// ErrInvalidCredentials marks a failed password sign-in.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailNotVerified means an OAuth sign-in cannot create an account without a verified email.
	ErrEmailNotVerified = errors.New("email not verified")
)

// InputError is an ErrInvalidInput with a message meant for the caller.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string { return e.Msg }

// Is lets errors.Is(err, ErrInvalidInput) match.
func (e *InputError) Is(target error) bool { return target == ErrInvalidInput }

func invalid(msg string) error { return &InputError{Msg: msg} }
