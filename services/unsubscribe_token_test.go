package services_test

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/jobboard/services"
)

func TestUnsubscribeToken_RoundTrip(t *testing.T) {
	pairs := []struct{ id, email string }{
		{"1", "a@example.com"},
		{"42", "First.Last+jobs@Example.co.uk"},
		{"rec9f8e7d6", "user@sub.domain.io"},
		{"7", "odd:local@example.com"},
	}
	for _, p := range pairs {
		token := services.EncodeUnsubscribeToken(p.id, p.email)
		id, email, err := services.DecodeUnsubscribeToken(token)
		require.NoError(t, err)
		assert.Equal(t, p.id, id)
		assert.Equal(t, p.email, email)
	}
}

func TestUnsubscribeToken_AcceptsMissingPadding(t *testing.T) {
	raw := base64.RawStdEncoding.EncodeToString([]byte("12:a@example.com"))
	id, email, err := services.DecodeUnsubscribeToken(raw)
	require.NoError(t, err)
	assert.Equal(t, "12", id)
	assert.Equal(t, "a@example.com", email)
}

func TestUnsubscribeToken_Rejects(t *testing.T) {
	for _, token := range []string{
		"",
		"%%%not-base64",
		base64.StdEncoding.EncodeToString([]byte("no-separator")),
		base64.StdEncoding.EncodeToString([]byte(":a@example.com")),
		base64.StdEncoding.EncodeToString([]byte("12:")),
	} {
		_, _, err := services.DecodeUnsubscribeToken(token)
		assert.ErrorIs(t, err, services.ErrInvalidToken, token)
	}
}
