package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

const (
	// CookieName holds the signed admin session.
	CookieName = "auth_session"
	// SessionTTL is how long an admin login lasts.
	SessionTTL = 24 * time.Hour

	issuer          = "idscan"
	adminContextKey = "admin"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidSession     = errors.New("invalid session")
)

// SessionClaims is the payload of an admin session token.
type SessionClaims struct {
	jwt.RegisteredClaims
}

// Sessions issues and checks admin session cookies.
type Sessions struct {
	username string
	password string
	secret   []byte
	secure   bool
	now      func() time.Time
}

// NewSessions creates the admin session manager. With an empty secret a random
// one is generated, so sessions do not survive a restart.
func NewSessions(username, password, secret string, secureCookies bool) (*Sessions, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
		slog.Warn("no session secret configured, admin sessions end on restart")
	}
	return &Sessions{
		username: username,
		password: password,
		secret:   key,
		secure:   secureCookies,
		now:      time.Now,
	}, nil
}

// Login checks the credentials and returns a signed session token.
func (s *Sessions) Login(username, password string) (string, time.Time, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.password)) == 1
	if !userOK || !passOK {
		return "", time.Time{}, ErrInvalidCredentials
	}

	now := s.now()
	expires := now.Add(SessionTTL)
	claims := &SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return token, expires, nil
}

// Verify parses a session token and checks signature, expiry and subject.
func (s *Sessions) Verify(token string) (*SessionClaims, error) {
	parser := jwt.Parser{}
	claims := &SessionClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidSession
	}
	if !claims.VerifyExpiresAt(s.now(), true) || claims.Issuer != issuer || claims.Subject != s.username {
		return nil, ErrInvalidSession
	}
	return claims, nil
}

// SetCookie stores token in the session cookie.
func (s *Sessions) SetCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, token, int(SessionTTL.Seconds()), "/", "", s.secure, true)
}

// ClearCookie expires the session cookie.
func (s *Sessions) ClearCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, "", -1, "/", "", s.secure, true)
}

// RequireAdmin rejects requests without a valid admin session cookie.
func (s *Sessions) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := c.Cookie(CookieName)
		if err != nil || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "admin login required",
			})
			return
		}
		claims, err := s.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "admin session expired or invalid",
			})
			return
		}
		c.Set(adminContextKey, claims.Subject)
		c.Next()
	}
}

// IsAdmin reports whether the request carries a valid admin session.
func (s *Sessions) IsAdmin(c *gin.Context) bool {
	token, err := c.Cookie(CookieName)
	if err != nil || token == "" {
		return false
	}
	_, err = s.Verify(token)
	return err == nil
}
