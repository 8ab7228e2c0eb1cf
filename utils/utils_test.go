package utils_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/jobboard/config"
	"github.com/cppla/jobboard/utils"
)

func TestMain(m *testing.M) {
	config.Set(config.AppConfig{JWTSecret: "utils-test-secret"})
	os.Exit(m.Run())
}

func TestScopedTokens(t *testing.T) {
	session, err := utils.GenerateToken(4, "dev@example.com", time.Hour)
	require.NoError(t, err)
	claims, err := utils.ParseToken(session)
	require.NoError(t, err)
	assert.Equal(t, uint(4), claims.UserID)
	assert.Equal(t, "dev@example.com", claims.Email)
	assert.Equal(t, utils.PurposeSession, claims.Purpose)

	_, err = utils.ParseScopedToken(session, utils.PurposePasswordReset)
	assert.Error(t, err, "a session token cannot reset a password")

	reset, err := utils.GenerateScopedToken(4, "dev@example.com", utils.PurposePasswordReset, time.Hour)
	require.NoError(t, err)
	_, err = utils.ParseToken(reset)
	assert.Error(t, err, "a reset token cannot sign in")

	expired, err := utils.GenerateToken(4, "dev@example.com", -time.Minute)
	require.NoError(t, err)
	_, err = utils.ParseToken(expired)
	assert.Error(t, err)
}

func TestPasswordHash(t *testing.T) {
	hash, err := utils.HashPassword("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)
	assert.True(t, utils.CheckPassword(hash, "correct horse"))
	assert.False(t, utils.CheckPassword(hash, "battery staple"))
}

func TestStateStore_InMemory(t *testing.T) {
	ctx := context.Background()
	s := utils.NewStateStore(nil, time.Minute)

	state, err := s.Issue(ctx)
	require.NoError(t, err)
	assert.True(t, s.Consume(ctx, state))
	assert.False(t, s.Consume(ctx, state), "states are single use")
	assert.False(t, s.Consume(ctx, "never-issued"))
	assert.False(t, s.Consume(ctx, ""))

	short := utils.NewStateStore(nil, time.Millisecond)
	stale, err := short.Issue(ctx)
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	assert.False(t, short.Consume(ctx, stale))
}

func TestTokenRevocationList_InMemory(t *testing.T) {
	l := utils.NewTokenRevocationList(nil)
	assert.False(t, l.Revoked("a"))

	l.Revoke("a", time.Now().Add(time.Hour))
	assert.True(t, l.Revoked("a"))

	l.Revoke("expired", time.Now().Add(-time.Second))
	assert.False(t, l.Revoked("expired"))
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "Tom & Jerry", utils.StripTags("<b>Tom</b> &amp; Jerry"))
	assert.Equal(t, "", utils.StripTags("<script>alert(1)</script>"))
	assert.Equal(t, "a < b", utils.StripTags("a < b"))

	for _, in := range []string{
		"&lt;script&gt;alert(1)&lt;/script&gt;Berlin",
		"&amp;lt;img src=x onerror=alert(1)&amp;gt;Berlin",
		"&amp;amp;amp;lt;b&amp;amp;amp;gt;Berlin",
	} {
		out := utils.StripTags(in)
		assert.NotContains(t, out, "<", in)
		assert.NotContains(t, out, ">", in)
		assert.Contains(t, out, "Berlin", in)
	}

	clean := utils.Sanitize(`<p onclick="x()">Hi <a href="javascript:alert(1)">there</a></p>`)
	assert.Contains(t, clean, "<p>")
	assert.NotContains(t, clean, "onclick")
	assert.NotContains(t, clean, "javascript")
}

func TestOptionalClients(t *testing.T) {
	assert.Nil(t, utils.NewRedisCache(nil, "jobboard"))
	assert.Nil(t, utils.NewSMTPMailer(config.AppConfig{SMTPHost: "smtp.example.com"}))
	assert.Nil(t, utils.NewSMTPMailer(config.AppConfig{SMTPFrom: "jobs@example.com"}))
}

func TestSMTPMailer_RejectsHeaderInjection(t *testing.T) {
	m := utils.NewSMTPMailer(config.AppConfig{SMTPHost: "127.0.0.1", SMTPPort: 1, SMTPFrom: "jobs@example.com"})
	require.NotNil(t, m)

	err := m.Send("victim@example.com\r\nBcc: everyone@example.com", "hi", "body")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "invalid mail header"))

	err = m.Send("a@example.com", "hi\nBcc: x@example.com", "body")
	require.Error(t, err)
}
