package auth

import (
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
	"go.uber.org/zap"
)

// GuestCookieName holds the signed guest identity between visits, separate
// from the authenticated session cookie so signing in never clobbers a guest
// that still needs merging.
const GuestCookieName = "tournhub-guest"

const guestCookieMaxAge = 30 * 24 * time.Hour

// GuestClaim is what the guest cookie carries.
type GuestClaim struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// GuestCookies encodes and decodes the signed guest cookie.
type GuestCookies struct {
	sc     *securecookie.SecureCookie
	secure bool
	log    *zap.Logger
}

// NewGuestCookies builds a guest cookie codec from the session key.
func NewGuestCookies(sessionKey string, secure bool, log *zap.Logger) *GuestCookies {
	sc := securecookie.New([]byte(sessionKey), nil)
	sc.MaxAge(int(guestCookieMaxAge.Seconds()))
	return &GuestCookies{sc: sc, secure: secure, log: log}
}

// Set writes the guest claim.
func (g *GuestCookies) Set(w http.ResponseWriter, claim GuestClaim) error {
	encoded, err := g.sc.Encode(GuestCookieName, claim)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     GuestCookieName,
		Value:    encoded,
		Path:     "/",
		MaxAge:   int(guestCookieMaxAge.Seconds()),
		Secure:   g.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Get reads the guest claim. A missing, expired, or tampered cookie reads as
// "no guest": the visitor simply starts fresh, and the bad cookie is cleared
// so it is not re-parsed on every request.
func (g *GuestCookies) Get(w http.ResponseWriter, r *http.Request) (GuestClaim, bool) {
	c, err := r.Cookie(GuestCookieName)
	if err != nil {
		return GuestClaim{}, false
	}

	var claim GuestClaim
	if err := g.sc.Decode(GuestCookieName, c.Value, &claim); err != nil {
		g.log.Warn("guest cookie rejected", zap.Error(err))
		g.Clear(w)
		return GuestClaim{}, false
	}
	if claim.ID == "" {
		g.Clear(w)
		return GuestClaim{}, false
	}
	return claim, true
}

// Clear drops the guest cookie. Called after a successful merge.
func (g *GuestCookies) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     GuestCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   g.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
