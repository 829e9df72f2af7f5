package auth

import (
	"errors"
	"net/http"
	"time"

	jwtmiddleware "github.com/auth0/go-jwt-middleware/v2"
)

const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"
)

// CookieOptions controls how session cookies are written.
type CookieOptions struct {
	Domain string
	Secure bool
	MaxAge time.Duration
}

func (o CookieOptions) cookie(name, value string, maxAge int) *http.Cookie {
	sameSite := http.SameSiteNoneMode
	if !o.Secure {
		// Browsers reject SameSite=None without Secure.
		sameSite = http.SameSiteLaxMode
	}
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   o.Secure,
		SameSite: sameSite,
		MaxAge:   maxAge,
	}
	if o.Secure {
		c.Domain = o.Domain
	}
	return c
}

func (o CookieOptions) SetSessionCookies(w http.ResponseWriter, access, refresh string) {
	http.SetCookie(w, o.cookie(AccessCookie, access, int(o.MaxAge.Seconds())))
	http.SetCookie(w, o.cookie(RefreshCookie, refresh, int(o.MaxAge.Seconds())))
}

func (o CookieOptions) SetAccessCookie(w http.ResponseWriter, access string) {
	http.SetCookie(w, o.cookie(AccessCookie, access, int(o.MaxAge.Seconds())))
}

func (o CookieOptions) ClearSessionCookies(w http.ResponseWriter) {
	http.SetCookie(w, o.cookie(AccessCookie, "", -1))
	http.SetCookie(w, o.cookie(RefreshCookie, "", -1))
}

// ExtractToken reads a token from the named cookie, falling back to the
// Authorization bearer header. The cookie wins when both are present.
// An empty string with a nil error means no token was sent.
func ExtractToken(r *http.Request, cookieName string) (string, error) {
	token, err := jwtmiddleware.CookieTokenExtractor(cookieName)(r)
	if err != nil && !errors.Is(err, http.ErrNoCookie) {
		return "", err
	}
	if token != "" {
		return token, nil
	}
	return jwtmiddleware.AuthHeaderTokenExtractor(r)
}
