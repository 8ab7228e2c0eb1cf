package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/linkedin"
)

const linkedInUserInfoURL = "https://api.linkedin.com/v2/userinfo"

// LinkedInProvider signs users in with LinkedIn OpenID Connect.
type LinkedInProvider struct {
	conf        *oauth2.Config
	userInfoURL string
}

// NewLinkedInProvider returns nil when the client credentials are missing.
func NewLinkedInProvider(clientID, clientSecret, redirectURL string) *LinkedInProvider {
	if clientID == "" || clientSecret == "" {
		return nil
	}
	return &LinkedInProvider{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     linkedin.Endpoint,
			Scopes:       []string{"openid", "profile", "email"},
		},
		userInfoURL: linkedInUserInfoURL,
	}
}

// WithEndpoints points the provider at other token and userinfo URLs.
func (p *LinkedInProvider) WithEndpoints(ep oauth2.Endpoint, userInfoURL string) *LinkedInProvider {
	p.conf.Endpoint = ep
	p.userInfoURL = userInfoURL
	return p
}

// AuthCodeURL is the consent page users are redirected to.
func (p *LinkedInProvider) AuthCodeURL(state string) string {
	return p.conf.AuthCodeURL(state)
}

// Exchange trades an authorization code for a token.
func (p *LinkedInProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := p.conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("linkedin token exchange: %w", err)
	}
	return tok, nil
}

type linkedInUserInfo struct {
	Sub           string `json:"sub"`
	Name          string `json:"name"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Picture       string `json:"picture"`
}

// UserInfo fetches the profile of the token owner.
func (p *LinkedInProvider) UserInfo(ctx context.Context, tok *oauth2.Token) (*OAuthProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.conf.Client(ctx, tok).Do(req)
	if err != nil {
		return nil, fmt.Errorf("linkedin userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("linkedin userinfo: status %d: %s", resp.StatusCode, body)
	}
	var info linkedInUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode linkedin userinfo: %w", err)
	}
	if info.Sub == "" {
		return nil, fmt.Errorf("linkedin userinfo: missing subject")
	}
	profile := &OAuthProfile{
		ID:          info.Sub,
		DisplayName: info.Name,
		AvatarURL:   info.Picture,
	}
	// an unverified address must never match an existing account
	if info.EmailVerified {
		profile.Email = NormalizeEmail(info.Email)
		profile.EmailVerified = true
	}
	return profile, nil
}
