package api

import (
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrNoCookie      = errors.New("no game cookie")
	ErrCookieInvalid = errors.New("game cookie is invalid")
	ErrCookieExpired = errors.New("game cookie has expired")
)

const (
	// CookieName is the browser cookie carrying the signed session id
	CookieName = "memorygame_session"

	// DefaultCookieTTL matches the lifetime of a browser game
	DefaultCookieTTL = 30 * time.Minute

	cookieIssuer = "memorygame"
)

// cookieClaims binds a browser to one game session; sub is the session id
type cookieClaims struct {
	jwt.RegisteredClaims
}

// CookieSessions issues and verifies HS256-signed cookies naming the game
// session of a browser
type CookieSessions struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// NewCookieSessions creates a cookie signer. An empty secret is replaced by
// random bytes, so cookies do not survive a restart.
func NewCookieSessions(secret string, ttl time.Duration) (*CookieSessions, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("failed to generate cookie secret: %w", err)
		}
	}
	if ttl <= 0 {
		ttl = DefaultCookieTTL
	}
	return &CookieSessions{secret: key, ttl: ttl, now: time.Now}, nil
}

// SetSecure marks issued cookies Secure (HTTPS only)
func (c *CookieSessions) SetSecure(secure bool) {
	c.secure = secure
}

// TTL returns the cookie lifetime
func (c *CookieSessions) TTL() time.Duration {
	return c.ttl
}

// Issue writes a cookie for sessionID that expires after the TTL
func (c *CookieSessions) Issue(w http.ResponseWriter, sessionID string) error {
	now := c.now()
	expiresAt := now.Add(c.ttl)

	claims := &cookieClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			Issuer:    cookieIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return fmt.Errorf("failed to sign cookie: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		MaxAge:   int(c.ttl.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// SessionID returns the session id from the request's cookie
func (c *CookieSessions) SessionID(r *http.Request) (string, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return "", ErrNoCookie
	}

	token, err := jwt.ParseWithClaims(cookie.Value, &cookieClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrCookieInvalid
		}
		return c.secret, nil
	},
		jwt.WithIssuer(cookieIssuer),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrCookieExpired
		}
		return "", ErrCookieInvalid
	}

	claims, ok := token.Claims.(*cookieClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return "", ErrCookieInvalid
	}
	return claims.Subject, nil
}

// Clear removes the cookie from the browser
func (c *CookieSessions) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
