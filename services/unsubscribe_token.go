package services

import (
	"encoding/base64"
	"strings"
)

// NormalizeEmail trims and lower-cases an address for storage and comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// EncodeUnsubscribeToken packs an alert id and its email into an opaque token.
// The pair decodes back unchanged as long as alertID holds no ':'.
func EncodeUnsubscribeToken(alertID, email string) string {
	return base64.StdEncoding.EncodeToString([]byte(alertID + ":" + email))
}

// DecodeUnsubscribeToken splits a token on its first ':' into alert id and email.
func DecodeUnsubscribeToken(token string) (alertID, email string, err error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		// links pasted from some mail clients lose the padding
		raw, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(strings.TrimSpace(token), "="))
		if err != nil {
			return "", "", ErrInvalidToken
		}
	}
	alertID, email, ok := strings.Cut(string(raw), ":")
	if !ok || alertID == "" || email == "" {
		return "", "", ErrInvalidToken
	}
	return alertID, email, nil
}
