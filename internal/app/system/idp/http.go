// internal/app/system/idp/http.go
package idp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/opencourt/tournhub/internal/domain/models"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// HTTPClient talks to a GoTrue-style identity provider over REST. The code
// exchange rides on the provider's OAuth2 token endpoint; the remaining
// operations are plain JSON calls.
type HTTPClient struct {
	BaseURL string
	APIKey  string
	Log     *zap.Logger

	http *http.Client
}

// NewHTTPClient builds a provider client for the given base URL
// (e.g. "https://id.example.com/auth/v1").
func NewHTTPClient(baseURL, apiKey string, logger *zap.Logger) *HTTPClient {
	return &HTTPClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Log:     logger,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// oauth2Config returns the OAuth2 configuration for the provider's token
// endpoint. Only the token URL matters here; the authorize URL is used by
// the login feature when building the hand-off redirect.
func (c *HTTPClient) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID: c.APIKey,
		Endpoint: oauth2.Endpoint{
			AuthURL:   c.BaseURL + "/authorize",
			TokenURL:  c.BaseURL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
}

// AuthCodeURL builds the provider hand-off URL for interactive login.
func (c *HTTPClient) AuthCodeURL(state, redirectTo string) string {
	cfg := c.oauth2Config()
	cfg.RedirectURL = redirectTo
	return cfg.AuthCodeURL(state)
}

// GetSession validates the token pair with the provider and returns the
// session, or (nil, nil) when the provider reports no live session.
func (c *HTTPClient) GetSession(ctx context.Context, access, refresh string) (*models.ProviderSession, error) {
	if access == "" {
		return nil, nil
	}
	u, err := c.fetchUser(ctx, access)
	if err != nil {
		if pe, ok := err.(*providerError); ok && pe.Status == http.StatusUnauthorized {
			return nil, nil
		}
		return nil, err
	}
	return &models.ProviderSession{
		AccessToken:  access,
		RefreshToken: refresh,
		IdentityID:   u.ID,
		Email:        u.Email,
		DisplayName:  u.displayName(),
		AvatarURL:    u.avatarURL(),
	}, nil
}

// ExchangeCode redeems a one-time PKCE code via the token endpoint.
func (c *HTTPClient) ExchangeCode(ctx context.Context, code string) (*models.ProviderSession, error) {
	tok, err := c.oauth2Config().Exchange(ctx, code)
	if err != nil {
		return nil, classifyTransport(err)
	}
	return c.sessionFromToken(ctx, tok)
}

// SetSession installs an implicit-flow token pair. The refresh token is
// rotated through the token endpoint so the provider validates the pair
// server-side; a forged or stale pair fails here rather than lingering in
// the cookie session.
func (c *HTTPClient) SetSession(ctx context.Context, access, refresh string) (*models.ProviderSession, error) {
	src := c.oauth2Config().TokenSource(ctx, &oauth2.Token{
		AccessToken:  access,
		RefreshToken: refresh,
		// Force a refresh so the pair is actually verified.
		Expiry: time.Now().Add(-time.Minute),
	})
	tok, err := src.Token()
	if err != nil {
		return nil, classifyTransport(err)
	}
	return c.sessionFromToken(ctx, tok)
}

// VerifyOtp redeems a hashed one-time email token (signup confirmation,
// recovery, magic link, invite).
func (c *HTTPClient) VerifyOtp(ctx context.Context, tokenHash, otpType string) (*models.ProviderSession, error) {
	var out tokenResponse
	err := c.postJSON(ctx, "/verify", "", map[string]string{
		"token_hash": tokenHash,
		"type":       otpType,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.session(), nil
}

// SignUp registers a permanent identity with the provider.
func (c *HTTPClient) SignUp(ctx context.Context, email, password string) (*models.ProviderSession, error) {
	var out tokenResponse
	err := c.postJSON(ctx, "/signup", "", map[string]string{
		"email":    email,
		"password": password,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out.session(), nil
}

// UpdatePassword sets a new password for the session's identity.
func (c *HTTPClient) UpdatePassword(ctx context.Context, access, newPassword string) error {
	if access == "" {
		return ErrNoSession
	}
	return c.putJSON(ctx, "/user", access, map[string]string{"password": newPassword}, nil)
}

// SignOut revokes the session server-side. A 401 is treated as success: the
// session is gone either way.
func (c *HTTPClient) SignOut(ctx context.Context, access string) error {
	err := c.postJSON(ctx, "/logout", access, nil, nil)
	if pe, ok := err.(*providerError); ok && pe.Status == http.StatusUnauthorized {
		return nil
	}
	return err
}

/*─────────────────────────────────────────────────────────────────────────────*
| Wire types & helpers                                                         |
*─────────────────────────────────────────────────────────────────────────────*/

// providerUser is the provider's user record shape.
type providerUser struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	IsAnonymous bool   `json:"is_anonymous"`
	Metadata    struct {
		FullName  string `json:"full_name"`
		Name      string `json:"name"`
		AvatarURL string `json:"avatar_url"`
	} `json:"user_metadata"`
}

func (u providerUser) displayName() string {
	if u.Metadata.FullName != "" {
		return u.Metadata.FullName
	}
	if u.Metadata.Name != "" {
		return u.Metadata.Name
	}
	return u.Email
}

func (u providerUser) avatarURL() string { return u.Metadata.AvatarURL }

// tokenResponse is the provider's session payload for /verify and /signup.
type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int          `json:"expires_in"`
	User         providerUser `json:"user"`
}

func (t tokenResponse) session() *models.ProviderSession {
	s := &models.ProviderSession{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		IdentityID:   t.User.ID,
		Email:        t.User.Email,
		DisplayName:  t.User.displayName(),
		AvatarURL:    t.User.avatarURL(),
	}
	if t.ExpiresIn > 0 {
		s.ExpiresAt = time.Now().UTC().Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	return s
}

func (c *HTTPClient) sessionFromToken(ctx context.Context, tok *oauth2.Token) (*models.ProviderSession, error) {
	u, err := c.fetchUser(ctx, tok.AccessToken)
	if err != nil {
		return nil, err
	}
	return &models.ProviderSession{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
		IdentityID:   u.ID,
		Email:        u.Email,
		DisplayName:  u.displayName(),
		AvatarURL:    u.avatarURL(),
	}, nil
}

func (c *HTTPClient) fetchUser(ctx context.Context, access string) (*providerUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/user", nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req, access)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.readError(resp)
	}

	var u providerUser
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}
	return &u, nil
}

func (c *HTTPClient) postJSON(ctx context.Context, path, access string, body any, out any) error {
	return c.doJSON(ctx, http.MethodPost, path, access, body, out)
}

func (c *HTTPClient) putJSON(ctx context.Context, path, access string, body any, out any) error {
	return c.doJSON(ctx, http.MethodPut, path, access, body, out)
}

func (c *HTTPClient) doJSON(ctx context.Context, method, path, access string, body any, out any) error {
	var rdr io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rdr)
	if err != nil {
		return err
	}
	c.setHeaders(req, access)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return c.readError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return nil
}

func (c *HTTPClient) setHeaders(req *http.Request, access string) {
	if c.APIKey != "" {
		req.Header.Set("apikey", c.APIKey)
	}
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}
}

// providerError carries the provider's HTTP status and message so callers
// can classify without losing the original text.
type providerError struct {
	Status  int
	Message string
}

func (e *providerError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("provider returned status %d", e.Status)
	}
	return e.Message
}

// Is lets errors.Is match the sentinels the status/message maps onto.
func (e *providerError) Is(target error) bool {
	switch target {
	case ErrExpiredLink:
		return IsExpired(fmt.Errorf("%s", e.Message))
	case ErrCodeUsed:
		return e.Status == http.StatusConflict || IsAlreadyConsumed(fmt.Errorf("%s", e.Message))
	case ErrEmailTaken:
		return e.Status == http.StatusUnprocessableEntity && IsEmailTaken(fmt.Errorf("%s", e.Message))
	}
	return false
}

// readError drains an error response into a providerError. The provider may
// use any of several message fields depending on endpoint vintage.
func (c *HTTPClient) readError(resp *http.Response) error {
	var body struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
		Msg              string `json:"msg"`
		Message          string `json:"message"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(raw, &body)

	msg := body.ErrorDescription
	if msg == "" {
		msg = body.Msg
	}
	if msg == "" {
		msg = body.Message
	}
	if msg == "" {
		msg = body.Error
	}

	pe := &providerError{Status: resp.StatusCode, Message: msg}
	if c.Log != nil {
		c.Log.Debug("provider error response",
			zap.Int("status", resp.StatusCode),
			zap.String("message", msg))
	}
	return pe
}

// classifyTransport maps transport-level failures onto the abort sentinel so
// the dispatcher's retry policy sees them as transient.
func classifyTransport(err error) error {
	if err == nil {
		return nil
	}
	if IsAborted(err) {
		return fmt.Errorf("%w: %v", ErrAborted, err)
	}
	return err
}
